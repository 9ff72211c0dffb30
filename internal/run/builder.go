package run

import (
	"errors"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/majorcontext/ccs/internal/config"
	"github.com/majorcontext/ccs/internal/container"
	"github.com/majorcontext/ccs/internal/credential"
	"github.com/majorcontext/ccs/internal/log"
	"github.com/majorcontext/ccs/internal/mcp"
	"github.com/majorcontext/ccs/internal/worktree"
)

// credentialMountName is the directory under the container user's home
// where the host credential directory is mounted read-only.
const credentialMountName = ".claude-host"

// Inputs are the resolved facts a plan is built from.
type Inputs struct {
	Repo       *worktree.Context
	Plugins    *mcp.Document
	Credential *credential.Credential
	Config     *config.Config
	// Env holds the user's configured variables, already resolved.
	Env         []EnvVar
	Detach      bool
	TTY         bool
	Passthrough []string
	Now         time.Time
}

// Builder assembles launch plans.
type Builder struct {
	// Detect finds the runtime; defaults to container.Detect.
	Detect func(override string) (container.Runtime, error)
	// Stat defaults to os.Stat and is used for the env file check.
	Stat func(string) (os.FileInfo, error)
	// PluginDir holds plugin documents; defaults to PluginDir().
	PluginDir string
}

// NewBuilder returns a Builder using the real runtime probe and filesystem.
func NewBuilder() *Builder {
	return &Builder{Detect: container.Detect, Stat: os.Stat}
}

// Build assembles the plan. The runtime is resolved first so a missing
// runtime fails before anything else is computed.
func (b *Builder) Build(in Inputs) (*Plan, error) {
	cfg := in.Config
	if cfg == nil {
		cfg = config.Default()
	}

	detect := b.Detect
	if detect == nil {
		detect = container.Detect
	}
	rt, err := detect(cfg.Runtime)
	if err != nil {
		return nil, err
	}

	if in.Repo == nil {
		return nil, errors.New("building launch plan: no repository context")
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	p := &Plan{
		Runtime:   rt,
		Name:      ContainerName(in.Repo.RepoName, now),
		RepoName:  in.Repo.RepoName,
		Workspace: in.Repo.Root,
		Limits:    Limits{Memory: cfg.Resources.Memory, CPUs: cfg.Resources.CPUs},
		Workdir:   cfg.Workdir,
		User:      cfg.User,
		Image:     cfg.Image,
		Detach:    in.Detach,
		TTY:       in.TTY && !in.Detach,
		Plugins:   in.Plugins,
		ExtraArgs: cfg.ExtraArgs,
	}

	p.Mounts, err = b.mounts(in, cfg)
	if err != nil {
		return nil, err
	}

	if c := in.Credential; c != nil {
		p.Env = append(p.Env, EnvVar{Name: c.EnvVar(), Value: c.Token, Secret: true})
	}
	p.Env = append(p.Env, in.Env...)
	p.EnvFile = b.envFile(in.Repo.Root, cfg)

	p.Command = []string{SkipPermissionsFlag}
	if !in.Plugins.Empty() {
		dir := b.PluginDir
		if dir == "" {
			dir = PluginDir()
		}
		p.PluginFile = PluginFileFor(dir, p.Name)
		p.Mounts = append(p.Mounts, Mount{Host: p.PluginFile, Container: PluginConfigPath, ReadOnly: true})
		p.Command = append(p.Command, PluginConfigFlag, PluginConfigPath)
	}
	p.Command = append(p.Command, in.Passthrough...)

	log.Debug("built launch plan",
		"runtime", rt.Kind,
		"name", p.Name,
		"mounts", len(p.Mounts),
		"env", len(p.Env),
		"plugins", pluginCount(in.Plugins),
		"detach", p.Detach)
	return p, nil
}

func (b *Builder) mounts(in Inputs, cfg *config.Config) ([]Mount, error) {
	repo := in.Repo
	mounts := []Mount{{Host: repo.Root, Container: ContainerWorkspace}}

	// A linked worktree's .git file points at an absolute path inside the
	// main repository's git directory, so the common dir is mounted at the
	// same path.
	if repo.IsWorktree {
		mounts = append(mounts, Mount{Host: repo.CommonGitDir, Container: filepath.ToSlash(repo.CommonGitDir)})
	}

	if c := in.Credential; c != nil && c.Dir() != "" {
		mounts = append(mounts, Mount{
			Host:      c.Dir(),
			Container: path.Join("/home", cfg.User, credentialMountName),
			ReadOnly:  true,
		})
	}

	for _, v := range cfg.Volumes {
		m, err := config.ParseMount(v)
		if err != nil {
			return nil, &config.Error{Path: cfg.Path(), Field: "volumes", Err: err}
		}
		mounts = append(mounts, Mount{Host: m.Source, Container: m.Target, ReadOnly: m.ReadOnly})
	}
	return mounts, nil
}

func (b *Builder) envFile(root string, cfg *config.Config) string {
	if !cfg.EnvFile.Enabled || cfg.EnvFile.Path == "" {
		return ""
	}
	p := cfg.EnvFile.Path
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	stat := b.Stat
	if stat == nil {
		stat = os.Stat
	}
	info, err := stat(p)
	if err != nil || info.IsDir() {
		return ""
	}
	return p
}

func pluginCount(d *mcp.Document) int {
	if d.Empty() {
		return 0
	}
	return len(d.Servers)
}
