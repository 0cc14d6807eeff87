package cmd

import (
	"fmt"
	"os"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"fleetd/internal/fleet"
	"fleetd/internal/pathutil"
)

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Manage registered hosts",
}

var hostAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		flags := cmd.Flags()
		address, _ := flags.GetString("address")
		port, _ := flags.GetInt("port")
		user, _ := flags.GetString("user")
		keyFile, _ := flags.GetString("key-file")
		askPassword, _ := flags.GetBool("ask-password")
		askSudo, _ := flags.GetBool("ask-sudo-password")

		if address == "" {
			address = args[0]
		}

		h := fleet.Host{
			Name:     args[0],
			Address:  address,
			Port:     port,
			Username: user,
		}

		if keyFile != "" {
			key, err := os.ReadFile(pathutil.ExpandHome(keyFile))
			if err != nil {
				return fmt.Errorf("reading key file: %w", err)
			}
			h.PrivateKey = string(key)
		}
		if askPassword {
			pw, err := promptSecret("SSH password: ")
			if err != nil {
				return err
			}
			h.Password = pw
		}
		if askSudo {
			pw, err := promptSecret("sudo password: ")
			if err != nil {
				return err
			}
			h.SudoPassword = pw
		}

		if err := a.hosts.Create(cmd.Context(), &h); err != nil {
			return err
		}
		cmd.Printf("host %s added (%s)\n", h.Name, h.ID)
		return nil
	},
}

var hostListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List registered hosts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		hosts, err := a.hosts.List(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tADDRESS\tPORT\tUSER\tAUTH\tID")
		for _, h := range hosts {
			auth := "key"
			if h.Password != "" {
				auth = "password"
			} else if h.PrivateKey == "" {
				auth = "none"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n", h.Name, h.Address, h.Port, h.Username, auth, h.ID)
		}
		return w.Flush()
	},
}

var hostRemoveCmd = &cobra.Command{
	Use:     "rm <name>",
	Aliases: []string{"remove"},
	Short:   "Remove a host",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		h, err := a.hosts.GetByName(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := a.hosts.Delete(cmd.Context(), h.ID); err != nil {
			return err
		}
		cmd.Printf("host %s removed\n", args[0])
		return nil
	},
}

var hostTestCmd = &cobra.Command{
	Use:   "test <name>",
	Short: "Test the SSH connection to a host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		h, err := a.hosts.GetByName(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		target, err := fleet.StaticProvider{}.Resolve(*h)
		if err != nil {
			return err
		}

		executor := a.executor(nil)
		if err := executor.TestConnection(cmd.Context(), target); err != nil {
			return err
		}
		cmd.Printf("connection to %s ok\n", h.Name)
		return nil
	},
}

// promptSecret reads a secret from the terminal without echo.
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pw), nil
}

func init() {
	flags := hostAddCmd.Flags()
	flags.String("address", "", "hostname or IP to connect to (default: the host name)")
	flags.Int("port", 22, "SSH port")
	flags.String("user", "", "SSH username (default: resolved from ~/.ssh/config, then root)")
	flags.String("key-file", "", "path to a private key file to store for this host")
	flags.Bool("ask-password", false, "prompt for an SSH password to store")
	flags.Bool("ask-sudo-password", false, "prompt for a privilege-escalation password to store")

	hostCmd.AddCommand(hostAddCmd, hostListCmd, hostRemoveCmd, hostTestCmd)
	rootCmd.AddCommand(hostCmd)
}
