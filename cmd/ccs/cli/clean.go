package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/majorcontext/ccs/internal/log"
	"github.com/majorcontext/ccs/internal/run"
	"github.com/majorcontext/ccs/internal/worktree"
)

// cleanMinAge keeps worktrees that were touched recently; a session may be
// about to start in them.
const cleanMinAge = time.Hour

var cleanCmd = &cobra.Command{
	Use:   "clean [path]",
	Short: "Remove idle worktrees",
	Long: `Remove worktrees under the configured worktree directory that are no
longer needed.

A worktree is removed only when no running session uses it, it has no
uncommitted changes, its branch has no commits missing from the main
branch, and it has not been modified in the last hour. Generated ccs-*
branches are deleted along with their worktree.

Use --dry-run to see what would be removed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: cleanWorktrees,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}

func cleanWorktrees(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := workingDir()
	if len(args) == 1 {
		path = args[0]
	}
	repo, err := worktree.ResolveContext(path)
	if err != nil {
		return err
	}

	inUse, err := liveWorkspaces(cmd)
	if err != nil {
		return err
	}

	home, _ := os.UserHomeDir()
	base := worktree.ExpandTemplate(cfg.Worktree.BasePath, repo.RepoName, repo.MainRoot(), home)
	decisions, err := worktree.Sweep(ctx, repo, worktree.SweepOptions{
		Base:   base,
		InUse:  func(p string) bool { return inUse[filepath.Clean(p)] },
		MinAge: cleanMinAge,
		DryRun: dryRun,
	})
	if err != nil {
		return err
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(decisions)
	}

	if len(decisions) == 0 {
		fmt.Printf("No worktrees under %s\n", base)
		return nil
	}
	removed := 0
	for _, d := range decisions {
		switch {
		case d.Removed && dryRun:
			fmt.Printf("Would remove %s (%s)\n", d.Path, d.Branch)
			removed++
		case d.Removed:
			fmt.Printf("Removed %s (%s)\n", d.Path, d.Branch)
			removed++
		default:
			fmt.Printf("Kept %s: %s\n", d.Path, d.Reason)
		}
	}
	if !dryRun {
		fmt.Printf("\n%d of %d worktrees removed\n", removed, len(decisions))
	}
	return nil
}

// liveWorkspaces returns the workspaces of sessions whose container is
// still present. Without a runtime to ask, or on a dry run, every
// registered session counts and the registry is left untouched.
func liveWorkspaces(cmd *cobra.Command) (map[string]bool, error) {
	store, err := openSessions()
	if err != nil {
		return nil, err
	}
	defer store.Close()

	live := make(map[string]bool)
	rt, err := detectRuntime()
	if err != nil || dryRun {
		if err != nil {
			log.Debug("no runtime, treating all sessions as live", "error", err)
		}
		sessions, err := store.List(cmd.Context())
		if err != nil {
			return nil, err
		}
		for _, s := range sessions {
			live[filepath.Clean(s.Workspace)] = true
		}
		return live, nil
	}

	probe, release := sessionProbe(cmd.Context(), rt)
	defer release()
	statuses, err := refreshSessions(cmd.Context(), store, probe, run.PluginDir())
	if err != nil {
		return nil, err
	}
	for _, s := range statuses {
		live[filepath.Clean(s.Workspace)] = true
	}
	return live, nil
}
