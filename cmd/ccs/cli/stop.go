package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/majorcontext/ccs/internal/log"
	"github.com/majorcontext/ccs/internal/run"
)

var stopCmd = &cobra.Command{
	Use:   "stop <session>",
	Short: "Stop and remove a detached session",
	Long: `Stop a detached agent container, remove it, and drop its session and
plugin-server file.

The worktree is left in place; use 'ccs clean' to remove idle worktrees.`,
	Args: cobra.ExactArgs(1),
	RunE: stopSession,
}

func init() {
	rootCmd.AddCommand(stopCmd)
}

func stopSession(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := detectRuntime()
	if err != nil {
		return err
	}
	store, err := openSessions()
	if err != nil {
		return err
	}
	defer store.Close()

	name, sess, err := resolveContainer(ctx, store, args[0])
	if err != nil {
		return err
	}

	if dryRun {
		fmt.Printf("Dry run - would stop %s\n", name)
		return nil
	}

	if err := rt.Remove(ctx, name); err != nil {
		return fmt.Errorf("stopping %s: %w", name, err)
	}
	if sess != nil {
		if err := store.Remove(ctx, sess.ID); err != nil {
			log.Warn("failed to remove session record", "id", sess.ID, "error", err)
		}
	}
	if err := run.RemovePluginFile(run.PluginDir(), name); err != nil {
		log.Warn("failed to remove plugin file", "container", name, "error", err)
	}

	fmt.Printf("Session %s stopped\n", name)
	return nil
}
