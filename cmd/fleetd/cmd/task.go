package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"fleetd/internal/fleet"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage task definitions",
}

var taskAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Define a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		command, _ := cmd.Flags().GetString("command")
		description, _ := cmd.Flags().GetString("description")
		if command == "" {
			return fmt.Errorf("--command is required")
		}

		t := fleet.Task{Name: args[0], Command: command, Description: description}
		if err := a.tasks.Create(cmd.Context(), &t); err != nil {
			return err
		}
		cmd.Printf("task %s added (%s)\n", t.Name, t.ID)
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		tasks, err := a.tasks.List(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tCOMMAND\tID")
		for _, t := range tasks {
			fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name, t.Command, t.ID)
		}
		return w.Flush()
	},
}

var taskRemoveCmd = &cobra.Command{
	Use:     "rm <name>",
	Aliases: []string{"remove"},
	Short:   "Remove a task",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		t, err := findTask(cmd, a, args[0])
		if err != nil {
			return err
		}
		if err := a.tasks.Delete(cmd.Context(), t.ID); err != nil {
			return err
		}
		cmd.Printf("task %s removed\n", args[0])
		return nil
	},
}

// findTask resolves a task by name first, then by id.
func findTask(cmd *cobra.Command, a *app, nameOrID string) (*fleet.Task, error) {
	tasks, err := a.tasks.List(cmd.Context())
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		if tasks[i].Name == nameOrID {
			return &tasks[i], nil
		}
	}
	return a.tasks.Get(cmd.Context(), nameOrID)
}

func init() {
	taskAddCmd.Flags().StringP("command", "c", "", "shell command to run (required)")
	taskAddCmd.Flags().StringP("description", "d", "", "task description")

	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskRemoveCmd)
	rootCmd.AddCommand(taskCmd)
}
