package cmd

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"fleetd/internal/dispatch"
	"fleetd/internal/events"
	"fleetd/internal/fleet"
)

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Run a task across hosts",
	Long: `Run a task's command on one or more registered hosts. Output streams
live as hosts produce it; a per-host summary follows once every host
has settled. A failing host never stops the others.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		flags := cmd.Flags()
		hostNames, _ := flags.GetStringSlice("hosts")
		allHosts, _ := flags.GetBool("all")
		adhoc, _ := flags.GetString("cmd")
		sequential, _ := flags.GetBool("seq")
		askPassword, _ := flags.GetBool("ask-password")

		taskID := ""
		taskName := ""
		command := adhoc
		if len(args) == 1 {
			t, err := findTask(cmd, a, args[0])
			if err != nil {
				return err
			}
			taskID = t.ID
			taskName = t.Name
			command = t.Command
		}
		if command == "" {
			return fmt.Errorf("give a task name or --cmd")
		}
		if taskName == "" {
			taskName = "ad-hoc"
		}

		hosts, err := selectHosts(cmd, a, hostNames, allHosts)
		if err != nil {
			return err
		}
		if len(hosts) == 0 {
			return fmt.Errorf("no hosts selected; use --hosts or --all")
		}

		var password string
		if askPassword {
			password, err = promptSecret("SSH password: ")
			if err != nil {
				return err
			}
		}

		provider := fleet.StaticProvider{}
		targets := make([]fleet.Resolved, 0, len(hosts))
		for _, h := range hosts {
			if password != "" {
				h.Password = password
			}
			target, err := provider.Resolve(h)
			if err != nil {
				return err
			}
			targets = append(targets, target)
		}

		mode := dispatch.ModeParallel
		if sequential {
			mode = dispatch.ModeSequential
		}

		// Stream per-host output while the run is in flight.
		hub := events.NewHub()
		sub := hub.Subscribe(256)
		var printer sync.WaitGroup
		printer.Add(1)
		go func() {
			defer printer.Done()
			for ev := range sub.C {
				switch ev.Kind {
				case events.KindOutput, events.KindError:
					for _, line := range strings.Split(strings.TrimRight(ev.Data, "\n"), "\n") {
						fmt.Fprintf(cmd.OutOrStdout(), "%s | %s\n", ev.HostName, line)
					}
				}
			}
		}()

		results := a.dispatcher(hub).Run(cmd.Context(), dispatch.Request{
			TaskID:   taskID,
			TaskName: taskName,
			Command:  command,
			Targets:  targets,
			Mode:     mode,
		})
		sub.Cancel()
		printer.Wait()

		for _, r := range results {
			if taskID != "" {
				if err := a.executions.Append(cmd.Context(), executionRow(taskID, r)); err != nil {
					a.log.Error("ledger append failed", "host", r.HostName, "error", err)
				}
			}
		}

		failed := printSummary(cmd, results)
		if failed > 0 {
			return fmt.Errorf("%d of %d hosts failed", failed, len(results))
		}
		return nil
	},
}

func selectHosts(cmd *cobra.Command, a *app, names []string, all bool) ([]fleet.Host, error) {
	if all {
		return a.hosts.List(cmd.Context())
	}
	var hosts []fleet.Host
	for _, name := range names {
		h, err := a.hosts.GetByName(cmd.Context(), strings.TrimSpace(name))
		if err != nil {
			return nil, fmt.Errorf("host %q: %w", name, err)
		}
		hosts = append(hosts, *h)
	}
	return hosts, nil
}

func printSummary(cmd *cobra.Command, results []fleet.Result) int {
	failed := 0
	for _, r := range results {
		if r.Status == fleet.StatusError {
			failed++
			fmt.Fprintf(cmd.OutOrStdout(), "✗ %s: %s\n", r.HostName, r.Error)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s (%s)\n", r.HostName, r.Duration.Round(time.Millisecond))
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d ok, %d failed\n", len(results)-failed, failed)
	return failed
}

func init() {
	flags := runCmd.Flags()
	flags.StringSlice("hosts", nil, "comma-separated host names to target")
	flags.Bool("all", false, "target every registered host")
	flags.String("cmd", "", "run this command instead of a stored task")
	flags.Bool("seq", false, "run hosts one at a time, in order")
	flags.Bool("ask-password", false, "prompt for an SSH password overriding stored credentials")

	rootCmd.AddCommand(runCmd)
}
