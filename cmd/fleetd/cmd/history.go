package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"fleetd/internal/fleet"
	"fleetd/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the execution ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		taskFilter, _ := cmd.Flags().GetString("task")

		var rows []store.Execution
		if taskFilter != "" {
			t, err := findTask(cmd, a, taskFilter)
			if err != nil {
				return err
			}
			rows, err = a.executions.ListByTask(cmd.Context(), t.ID, limit)
			if err != nil {
				return err
			}
		} else {
			rows, err = a.executions.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STARTED\tTASK\tHOST\tSTATUS\tERROR")
		for _, e := range rows {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				e.StartedAt.Format(time.RFC3339), e.TaskID, e.HostID, e.Status, firstLine(e.Error))
		}
		return w.Flush()
	},
}

// executionRow converts one fleet result into a ledger row.
func executionRow(taskID string, r fleet.Result) store.Execution {
	return store.Execution{
		TaskID:      taskID,
		HostID:      r.HostID,
		Status:      string(r.Status),
		Output:      r.Output,
		Error:       r.Error,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return s[:i]
		}
	}
	return s
}

func init() {
	historyCmd.Flags().Int("limit", 50, "maximum rows to show")
	historyCmd.Flags().String("task", "", "only show executions of this task")

	rootCmd.AddCommand(historyCmd)
}
