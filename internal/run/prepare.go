package run

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/majorcontext/ccs/internal/config"
	"github.com/majorcontext/ccs/internal/credential"
	"github.com/majorcontext/ccs/internal/log"
	"github.com/majorcontext/ccs/internal/mcp"
	"github.com/majorcontext/ccs/internal/secrets"
	"github.com/majorcontext/ccs/internal/worktree"
)

// Mode selects how the working tree is chosen.
type Mode int

const (
	// ModeAuto creates a worktree on a generated branch when the config
	// enables it, and uses the current worktree when already inside one.
	ModeAuto Mode = iota
	// ModeHere uses the directory as-is.
	ModeHere
	// ModeBranch provisions a worktree for Request.Branch.
	ModeBranch
)

// Request is one invocation of the launcher.
type Request struct {
	Path         string
	Mode         Mode
	Branch       string
	CreateBranch bool
	Detach       bool
	TTY          bool
	Passthrough  []string
	Config       *config.Config
}

// Preparer gathers everything a plan needs: the working tree, the agent
// credential, the resolved plugin servers and the configured environment.
type Preparer struct {
	Resolver mcp.SecretResolver
	// Discover defaults to credential.NewDiscoverer().Discover.
	Discover func(context.Context) (*credential.Credential, error)
	// LoadPlugins defaults to mcp.Load on the config's MCP path.
	LoadPlugins func(path string) ([]mcp.Server, error)
	Now         func() time.Time
}

// NewPreparer returns a Preparer wired to the real backends.
func NewPreparer() *Preparer {
	return &Preparer{
		Resolver:    secrets.NewResolver(secrets.DefaultBackends()...),
		Discover:    credential.NewDiscoverer().Discover,
		LoadPlugins: mcp.Load,
		Now:         time.Now,
	}
}

// Prepare resolves req into builder inputs. Plugin-server failures do not
// stop preparation; the returned report lists them and failing servers are
// left out of Inputs.Plugins.
func (p *Preparer) Prepare(ctx context.Context, req Request) (*Inputs, *mcp.Report, error) {
	cfg := req.Config
	if cfg == nil {
		cfg = config.Default()
	}
	resolver := p.Resolver
	if resolver == nil {
		resolver = secrets.NewResolver(secrets.DefaultBackends()...)
	}
	now := time.Now()
	if p.Now != nil {
		now = p.Now()
	}

	load := p.LoadPlugins
	if load == nil {
		load = mcp.Load
	}
	servers, err := load(cfg.MCPPath())
	if err != nil {
		return nil, nil, err
	}

	repo, err := worktree.ResolveContext(req.Path)
	if err != nil {
		return nil, nil, err
	}
	env, err := resolveConfigEnv(ctx, resolver, cfg)
	if err != nil {
		return nil, nil, err
	}

	discover := p.Discover
	if discover == nil {
		discover = credential.NewDiscoverer().Discover
	}
	cred, err := discover(ctx)
	if err != nil {
		return nil, nil, err
	}

	repo, err = p.selectTree(ctx, repo, req, cfg, now)
	if err != nil {
		return nil, nil, err
	}

	doc, report := mcp.Assemble(ctx, resolver, servers)

	return &Inputs{
		Repo:        repo,
		Plugins:     doc,
		Credential:  cred,
		Config:      cfg,
		Env:         env,
		Detach:      req.Detach,
		TTY:         req.TTY,
		Passthrough: req.Passthrough,
		Now:         now,
	}, report, nil
}

func (p *Preparer) selectTree(ctx context.Context, repo *worktree.Context, req Request, cfg *config.Config, now time.Time) (*worktree.Context, error) {
	var branch string
	create := req.CreateBranch
	switch req.Mode {
	case ModeHere:
		return repo, nil
	case ModeBranch:
		branch = req.Branch
	default:
		if repo.IsWorktree {
			log.Debug("already inside a worktree, using it", "root", repo.Root, "branch", repo.Branch)
			return repo, nil
		}
		if !cfg.Worktree.Auto {
			return repo, nil
		}
		branch = worktree.GenerateBranchName(now)
		create = true
	}

	spec, err := worktree.NewSpec(repo, cfg.Worktree.BasePath, branch, create)
	if err != nil {
		return nil, err
	}
	res, err := worktree.Provision(ctx, repo, spec)
	if err != nil {
		if errors.Is(err, worktree.ErrInsideWorktree) && req.Mode == ModeAuto {
			return repo, nil
		}
		return nil, err
	}
	log.Info("using worktree", "path", res.Root, "branch", spec.Branch, "reused", res.Reused)
	return res.Context, nil
}

// resolveConfigEnv resolves the configured environment in name order. Any
// failure is fatal; unlike plugin servers there is nothing to fall back to.
func resolveConfigEnv(ctx context.Context, resolver mcp.SecretResolver, cfg *config.Config) ([]EnvVar, error) {
	var env []EnvVar
	for _, name := range cfg.EnvNames() {
		raw := cfg.Env[name]
		if !secrets.IsReference(raw) {
			env = append(env, EnvVar{Name: name, Value: secrets.NewValue(raw)})
			continue
		}
		ref, err := secrets.ParseReference(raw)
		if err != nil {
			return nil, fmt.Errorf("env %s: %w", name, err)
		}
		res, err := resolver.Resolve(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("env %s: %w", name, err)
		}
		env = append(env, EnvVar{Name: name, Value: res.Value, Secret: true})
	}
	return env, nil
}
