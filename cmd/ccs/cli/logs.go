package cli

import (
	"github.com/spf13/cobra"

	"github.com/majorcontext/ccs/internal/container"
)

var logsFollow bool

var logsCmd = &cobra.Command{
	Use:   "logs <session>",
	Short: "Show output from a detached session",
	Args:  cobra.ExactArgs(1),
	RunE:  showLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "follow log output")
}

func showLogs(cmd *cobra.Command, args []string) error {
	rt, err := detectRuntime()
	if err != nil {
		return err
	}
	name, err := lookupContainer(cmd, args[0])
	if err != nil {
		return err
	}
	return rt.Logs(cmd.Context(), name, logsFollow, container.StdStreams())
}
