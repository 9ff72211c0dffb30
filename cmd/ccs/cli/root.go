// Package cli implements the ccs command-line interface using Cobra. The
// root command launches the agent; subcommands manage detached sessions
// and worktrees.
package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/majorcontext/ccs/internal/config"
	"github.com/majorcontext/ccs/internal/container"
	"github.com/majorcontext/ccs/internal/log"
	"github.com/majorcontext/ccs/internal/ui"
)

var (
	verbose    bool
	dryRun     bool
	jsonOut    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "ccs [flags] [path] [-- agent-args...]",
	Short: "Run Claude Code in an ephemeral container",
	Long: `ccs runs the Claude Code agent inside a throwaway container with the
project mounted at /workspace.

By default each run gets its own git worktree on a fresh branch next to the
repository, so several agents can work on one project at once. Use --here to
run against the directory as-is, or --new to pick the branch.

Credentials are discovered on the host (ANTHROPIC_API_KEY, Claude Code's
credential file, the macOS keychain). Plugin servers come from
~/.ccs/mcp.yaml; their environment may reference secrets such as
op://vault/item/field, which are resolved at launch and never written to disk.

Examples:
  ccs                        # New worktree on a generated branch
  ccs --here                 # Use the current directory
  ccs --new feature-x -b     # Worktree on a new branch feature-x
  ccs -d                     # Start detached; see 'ccs list'
  ccs --dry-run              # Print the runtime command without running it
  ccs . -- -p "fix the tests"`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		retention := config.Default().Debug.RetentionDays
		if cfg, err := loadConfig(); err == nil {
			retention = cfg.Debug.RetentionDays
		}

		// The agent owns the terminal during a foreground run.
		interactive := !cmd.HasParent() && !detach && !dryRun

		if err := log.Init(log.Options{
			Verbose:       verbose,
			JSONFormat:    jsonOut,
			Interactive:   interactive,
			DebugDir:      filepath.Join(config.Dir(), "debug"),
			RetentionDays: retention,
		}); err != nil {
			cmd.PrintErrf("Warning: failed to initialize debug logging: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Close()
	},
	RunE: runAgent,
}

// Execute runs the root command and reports any error on stderr. A
// non-zero exit of the agent container is passed through silently; the
// agent has already explained itself.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		if _, ok := container.ExitCode(err); !ok {
			ui.Error(err.Error())
		}
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "show what would happen without executing")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.ccs/config.yaml, env: CCS_HOME)")
}

var loadedConfig *config.Config

// loadConfig loads the config once per process.
func loadConfig() (*config.Config, error) {
	if loadedConfig != nil {
		return loadedConfig, nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	loadedConfig = cfg
	return cfg, nil
}

func workingDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
