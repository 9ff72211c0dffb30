package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/majorcontext/ccs/internal/config"
	"github.com/majorcontext/ccs/internal/container"
	"github.com/majorcontext/ccs/internal/credential"
	"github.com/majorcontext/ccs/internal/docker"
	"github.com/majorcontext/ccs/internal/doctor"
	"github.com/majorcontext/ccs/internal/session"
	"github.com/majorcontext/ccs/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the launcher environment",
	Long: `Show what a launch would use: the container runtime and engine, the
configured image, config and plugin-server files, the agent credential
source and any resource limits.

Credential values are never printed.`,
	Args: cobra.NoArgs,
	RunE: showStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func showStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	reg := doctor.NewRegistry()
	reg.Register(&runtimeSection{cfg: cfg})
	reg.Register(&configSection{cfg: cfg})
	reg.Register(&credentialSection{discover: credential.NewDiscoverer().Discover})
	results := reg.Run(cmd.Context())

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	for i, r := range results {
		if i > 0 {
			fmt.Println()
		}
		ui.Section(r.Name)
		for _, c := range r.Checks {
			ui.Check(c.OK, c.Label, c.Detail)
		}
	}
	return nil
}

// runtimeSection reports the runtime binary, the engine behind it, the
// configured image and any ccs containers the engine knows about.
type runtimeSection struct {
	cfg *config.Config
}

func (s *runtimeSection) Name() string { return "Runtime" }

func (s *runtimeSection) Checks(ctx context.Context) []doctor.Check {
	rt, err := container.Detect(s.cfg.Runtime)
	if err != nil {
		return []doctor.Check{{Label: "runtime", Detail: err.Error()}}
	}
	checks := []doctor.Check{{Label: "runtime", OK: true, Detail: rt.String()}}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cli, err := docker.NewClient(rt.Kind == container.KindPodman)
	if err != nil {
		return append(checks, doctor.Check{Label: "engine", Detail: err.Error()})
	}
	defer cli.Close()

	if err := cli.Ping(ctx); err != nil {
		return append(checks, doctor.Check{Label: "engine", Detail: err.Error()})
	}
	version, err := cli.Version(ctx)
	if err != nil {
		return append(checks, doctor.Check{Label: "engine", Detail: err.Error()})
	}
	checks = append(checks, doctor.Check{Label: "engine", OK: true, Detail: version})

	present, err := cli.ImageExists(ctx, s.cfg.Image)
	switch {
	case err != nil:
		checks = append(checks, doctor.Check{Label: "image", Detail: err.Error()})
	case !present:
		checks = append(checks, doctor.Check{Label: "image", Detail: s.cfg.Image + " not found locally; it will be pulled on first run"})
	default:
		checks = append(checks, doctor.Check{Label: "image", OK: true, Detail: s.cfg.Image})
	}

	containers, err := cli.ListContainers(ctx, session.ContainerPrefix)
	if err != nil {
		return append(checks, doctor.Check{Label: "containers", Detail: err.Error()})
	}
	running := 0
	for _, c := range containers {
		if c.State == "running" {
			running++
		}
	}
	checks = append(checks, doctor.Check{
		Label:  "containers",
		OK:     true,
		Detail: fmt.Sprintf("%d running, %d total", running, len(containers)),
	})
	for _, c := range containers {
		checks = append(checks, doctor.Check{
			Label:  "",
			OK:     c.State == "running",
			Detail: fmt.Sprintf("%s %s (%s, %s)", c.Name, c.State, c.ID, formatAge(c.Created)),
		})
	}
	return checks
}

// configSection reports the settings files and resource limits.
type configSection struct {
	cfg *config.Config
}

func (s *configSection) Name() string { return "Configuration" }

func (s *configSection) Checks(context.Context) []doctor.Check {
	limits := "none"
	if r := s.cfg.Resources; r.Memory != "" || r.CPUs != "" {
		limits = fmt.Sprintf("memory=%s cpus=%s", orDash(r.Memory), orDash(r.CPUs))
	}
	worktrees := "off"
	if s.cfg.Worktree.Auto {
		worktrees = "auto under " + s.cfg.Worktree.BasePath
	}
	return []doctor.Check{
		{Label: "config", OK: fileExists(s.cfg.Path()), Detail: s.cfg.Path()},
		{Label: "mcp", OK: fileExists(s.cfg.MCPPath()), Detail: s.cfg.MCPPath()},
		{Label: "worktrees", OK: true, Detail: worktrees},
		{Label: "limits", OK: true, Detail: limits},
	}
}

// credentialSection reports where the agent credential would come from.
type credentialSection struct {
	discover func(context.Context) (*credential.Credential, error)
}

func (s *credentialSection) Name() string { return "Credentials" }

func (s *credentialSection) Checks(ctx context.Context) []doctor.Check {
	cred, err := s.discover(ctx)
	if err != nil {
		return []doctor.Check{{Label: "agent", Detail: err.Error()}}
	}
	return []doctor.Check{{
		Label:  "agent",
		OK:     !cred.Expired(time.Now()),
		Detail: describeCredential(cred),
	}}
}

func describeCredential(c *credential.Credential) string {
	s := fmt.Sprintf("%s (%s)", c.Source, c.Kind)
	if c.Path != "" {
		s += " " + c.Path
	}
	if !c.ExpiresAt.IsZero() {
		if c.Expired(time.Now()) {
			s += ", expired"
		} else {
			s += ", expires " + c.ExpiresAt.Local().Format(time.RFC822)
		}
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
