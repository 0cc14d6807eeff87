package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"fleetd/internal/schedule"
	"fleetd/internal/store"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage recurring task schedules",
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a schedule",
	Long: `Create a schedule that fires a task against a host set on a
recurrence. Give exactly one of --every (minutes between firings,
anchored to the previous firing) or --cron (5-field expression; only
the minute and hour fields are evaluated).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		flags := cmd.Flags()
		taskRef, _ := flags.GetString("task")
		hostNames, _ := flags.GetStringSlice("hosts")
		every, _ := flags.GetInt("every")
		cronExpr, _ := flags.GetString("cron")

		if (every > 0) == (cronExpr != "") {
			return fmt.Errorf("give exactly one of --every or --cron")
		}
		if taskRef == "" {
			return fmt.Errorf("--task is required")
		}

		t, err := findTask(cmd, a, taskRef)
		if err != nil {
			return err
		}
		hosts, err := selectHosts(cmd, a, hostNames, false)
		if err != nil {
			return err
		}
		hostIDs := make([]string, len(hosts))
		for i, h := range hosts {
			hostIDs[i] = h.ID
		}

		sc := store.Schedule{
			Name:    args[0],
			TaskID:  t.ID,
			HostIDs: hostIDs,
			Enabled: true,
		}
		if every > 0 {
			sc.RuleKind = schedule.KindInterval
			sc.RuleValue = fmt.Sprintf("%d", every)
		} else {
			sc.RuleKind = schedule.KindCron
			sc.RuleValue = cronExpr
		}

		if err := a.engine(nil).CreateSchedule(cmd.Context(), &sc); err != nil {
			return err
		}
		cmd.Printf("schedule %s created, first run %s\n", sc.Name, sc.NextRun.Format(time.RFC3339))
		return nil
	},
}

var scheduleListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List schedules",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		schedules, err := a.schedules.List(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tRULE\tENABLED\tNEXT RUN\tRUNS\tHOSTS")
		for _, sc := range schedules {
			next := "-"
			if sc.NextRun != nil {
				next = sc.NextRun.Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\t%s %s\t%t\t%s\t%d\t%d\n",
				sc.Name, sc.RuleKind, sc.RuleValue, sc.Enabled, next, sc.RunCount, len(sc.HostIDs))
		}
		return w.Flush()
	},
}

var scheduleEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable a schedule",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setScheduleEnabled(cmd, args[0], true) },
}

var scheduleDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable a schedule without clearing its next run",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setScheduleEnabled(cmd, args[0], false) },
}

var scheduleRemoveCmd = &cobra.Command{
	Use:     "rm <name>",
	Aliases: []string{"remove"},
	Short:   "Delete a schedule",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		sc, err := findSchedule(cmd, a, args[0])
		if err != nil {
			return err
		}
		if err := a.engine(nil).DeleteSchedule(cmd.Context(), sc.ID); err != nil {
			return err
		}
		cmd.Printf("schedule %s deleted\n", args[0])
		return nil
	},
}

func setScheduleEnabled(cmd *cobra.Command, name string, enabled bool) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sc, err := findSchedule(cmd, a, name)
	if err != nil {
		return err
	}
	engine := a.engine(nil)
	if enabled {
		err = engine.EnableSchedule(cmd.Context(), sc.ID)
	} else {
		err = engine.DisableSchedule(cmd.Context(), sc.ID)
	}
	if err != nil {
		return err
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	cmd.Printf("schedule %s %s\n", name, state)
	return nil
}

func findSchedule(cmd *cobra.Command, a *app, nameOrID string) (*store.Schedule, error) {
	schedules, err := a.schedules.List(cmd.Context())
	if err != nil {
		return nil, err
	}
	for i := range schedules {
		if schedules[i].Name == nameOrID {
			return &schedules[i], nil
		}
	}
	return a.schedules.Get(cmd.Context(), nameOrID)
}

func init() {
	flags := scheduleAddCmd.Flags()
	flags.String("task", "", "task to run (name or id, required)")
	flags.StringSlice("hosts", nil, "comma-separated host names to target (required)")
	flags.Int("every", 0, "fire every N minutes")
	flags.String("cron", "", `fire on a cron expression, e.g. "0 2 * * *"`)

	scheduleCmd.AddCommand(scheduleAddCmd, scheduleListCmd, scheduleEnableCmd, scheduleDisableCmd, scheduleRemoveCmd)
	rootCmd.AddCommand(scheduleCmd)
}
