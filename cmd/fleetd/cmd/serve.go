package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fleetd/internal/events"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the schedule engine until interrupted",
	Long: `Start the tick loop that fires due schedules. The engine scans for
due schedules at the configured tick interval, runs each against its
host set in parallel, records results in the execution ledger, and
advances each schedule's next run. Ctrl-C stops the loop after any
in-flight firings finish.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		hub := events.NewHub()
		a.engine(hub).Run(ctx)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
