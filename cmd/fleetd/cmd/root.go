// Package cmd implements the fleetd command-line interface.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"fleetd/internal/config"
	"fleetd/internal/logger"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "fleetd",
	Short: "Run shell commands across a fleet of hosts over SSH",
	Long: `fleetd registers remote hosts, defines shell tasks, and runs those
tasks across many hosts at once over SSH, in parallel or one host at a
time. Results are recorded in an execution ledger, and schedules
(interval or cron minute/hour) re-run tasks unattended.

Common workflows:

  Register a host:
    fleetd host add web-1 --address 10.0.0.11 --user deploy --key-file ~/.ssh/id_ed25519

  Define a task:
    fleetd task add restart-nginx --command "systemctl restart nginx"

  Run it across hosts:
    fleetd run restart-nginx --hosts web-1,web-2,web-3

  Schedule it nightly at 02:00:
    fleetd schedule add nightly-restart --task restart-nginx --hosts web-1,web-2 --cron "0 2 * * *"

  Start the scheduler daemon:
    fleetd serve`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default "+config.DefaultConfigPath()+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return logger.New(level)
}
