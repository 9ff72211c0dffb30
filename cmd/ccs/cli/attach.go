package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/majorcontext/ccs/internal/container"
)

var attachCmd = &cobra.Command{
	Use:   "attach <session>",
	Short: "Attach to a detached session",
	Long: `Attach the terminal to a detached agent container.

The session may be given by session ID, container name, or a unique prefix
of either.`,
	Args: cobra.ExactArgs(1),
	RunE: attachSession,
}

func init() {
	rootCmd.AddCommand(attachCmd)
}

func attachSession(cmd *cobra.Command, args []string) error {
	rt, err := detectRuntime()
	if err != nil {
		return err
	}
	name, err := lookupContainer(cmd, args[0])
	if err != nil {
		return err
	}
	if dryRun {
		fmt.Printf("Dry run - would attach to %s\n", name)
		return nil
	}
	return rt.Attach(cmd.Context(), name, container.StdStreams())
}
