package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/majorcontext/ccs/internal/container"
	"github.com/majorcontext/ccs/internal/log"
	"github.com/majorcontext/ccs/internal/run"
	"github.com/majorcontext/ccs/internal/term"
	"github.com/majorcontext/ccs/internal/ui"
)

var (
	newBranch    string
	createBranch bool
	here         bool
	detach       bool
)

func init() {
	rootCmd.Flags().StringVarP(&newBranch, "new", "n", "", "run in a worktree for `BRANCH`")
	rootCmd.Flags().BoolVarP(&createBranch, "create-branch", "b", false, "create the --new branch if it does not exist")
	rootCmd.Flags().BoolVar(&here, "here", false, "run in the directory as-is, without a worktree")
	rootCmd.Flags().BoolVarP(&detach, "detach", "d", false, "start the container in the background")
}

// splitArgs separates the optional project path from arguments meant for
// the agent. Everything after "--" goes to the agent.
func splitArgs(args []string, dash int) (path string, passthrough []string, err error) {
	positional := args
	if dash >= 0 {
		positional = args[:dash]
		passthrough = args[dash:]
	}
	switch len(positional) {
	case 0:
		path = workingDir()
	case 1:
		path = positional[0]
	default:
		return "", nil, fmt.Errorf("expected at most one path, got %d (pass agent arguments after --)", len(positional))
	}
	return path, passthrough, nil
}

func runMode() (run.Mode, error) {
	switch {
	case here && newBranch != "":
		return 0, errors.New("--here and --new cannot be used together")
	case createBranch && newBranch == "":
		return 0, errors.New("--create-branch requires --new")
	case here:
		return run.ModeHere, nil
	case newBranch != "":
		return run.ModeBranch, nil
	}
	return run.ModeAuto, nil
}

func runAgent(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	path, passthrough, err := splitArgs(args, cmd.ArgsLenAtDash())
	if err != nil {
		return err
	}
	mode, err := runMode()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Resolve the runtime before touching the repository so a host without
	// podman or docker never gets a stray worktree.
	rt, err := container.Detect(cfg.Runtime)
	if err != nil {
		return err
	}
	log.Debug("detected runtime", "runtime", rt.Kind, "path", rt.Path)

	in, report, err := run.NewPreparer().Prepare(ctx, run.Request{
		Path:         path,
		Mode:         mode,
		Branch:       newBranch,
		CreateBranch: createBranch,
		Detach:       detach,
		TTY:          term.Interactive(),
		Passthrough:  passthrough,
		Config:       cfg,
	})
	if err != nil {
		return err
	}
	for _, f := range report.Failures {
		ui.Warnf("plugin server %s disabled: %v", f.Server, f.Err)
	}

	b := &run.Builder{
		Detect: func(string) (container.Runtime, error) { return rt, nil },
		Stat:   os.Stat,
	}
	plan, err := b.Build(*in)
	if err != nil {
		return err
	}
	log.SetInvocation(plan.Name)

	launcher := run.NewLauncher()
	if dryRun && jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(dryRunOutput{
			Runtime:   string(rt.Kind),
			Name:      plan.Name,
			Workspace: plan.Workspace,
			Args:      plan.Args(),
		})
	}

	res, err := launcher.Launch(ctx, plan, dryRun)
	if err != nil {
		if res != nil && res.ContainerID != "" {
			fmt.Printf("Started %s (%s) but it is not listed in 'ccs list'\n", plan.Name, res.ContainerID)
		}
		return err
	}
	if dryRun || !plan.Detach {
		return nil
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Session)
	}
	fmt.Printf("Started %s\n", ui.Bold(plan.Name))
	fmt.Printf("  Session:   %s\n", res.Session.ID)
	fmt.Printf("  Workspace: %s\n", plan.Workspace)
	fmt.Println()
	fmt.Printf("Attach with: ccs attach %s\n", plan.Name)
	fmt.Printf("Follow logs: ccs logs -f %s\n", plan.Name)
	fmt.Printf("Stop with:   ccs stop %s\n", plan.Name)
	return nil
}

type dryRunOutput struct {
	Runtime   string   `json:"runtime"`
	Name      string   `json:"name"`
	Workspace string   `json:"workspace"`
	Args      []string `json:"args"`
}
