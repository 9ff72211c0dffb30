package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/majorcontext/ccs/internal/run"
	"github.com/majorcontext/ccs/internal/session"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls", "ps"},
	Short:   "List detached sessions",
	Long: `List detached agent sessions and their container state.

Sessions whose container has exited or been removed are dropped from the
registry as they are listed.`,
	Args: cobra.NoArgs,
	RunE: listSessions,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

type listEntry struct {
	*session.Session
	State string `json:"state"`
}

func listSessions(cmd *cobra.Command, args []string) error {
	rt, err := detectRuntime()
	if err != nil {
		return err
	}
	store, err := openSessions()
	if err != nil {
		return err
	}
	defer store.Close()

	probe, release := sessionProbe(cmd.Context(), rt)
	defer release()
	statuses, err := refreshSessions(cmd.Context(), store, probe, run.PluginDir())
	if err != nil {
		return err
	}

	if jsonOut {
		entries := make([]listEntry, 0, len(statuses))
		for _, s := range statuses {
			entries = append(entries, listEntry{Session: s.Session, State: s.State})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(statuses) == 0 {
		fmt.Println("No sessions found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tREPO\tSTATE\tSESSION\tCREATED\tWORKSPACE")
	for _, s := range statuses {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ContainerName,
			s.RepoName,
			s.State,
			s.ID,
			formatAge(s.CreatedAt),
			s.Workspace,
		)
	}
	return w.Flush()
}
