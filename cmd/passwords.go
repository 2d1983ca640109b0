// File: cmd/passwords.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/internal/observability"
	"github.com/xkilldash9x/formpilot/internal/passwords"
)

func newPasswordsCmd(a *app) *cobra.Command {
	passwordsCmd := &cobra.Command{
		Use:   "passwords",
		Short: "Manage the fallback password list and check password strength",
	}
	passwordsCmd.PersistentFlags().String("fallback-file", "", "Fallback password file (default fallback_passwords.yaml)")

	load := func() (*passwords.Fallbacks, error) {
		f, err := passwords.Load(a.cfg.Repair.FallbackFile)
		if err != nil {
			observability.GetLogger().Warn("Fallback password file unreadable, using defaults", zap.Error(err))
		}
		return f, nil
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Print the fallback passwords in the order they are tried",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := load()
			if err != nil {
				return err
			}
			for i, p := range f.List() {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, p)
			}
			return nil
		},
	}

	addCmd := &cobra.Command{
		Use:   "add <password>",
		Short: "Append a password to the fallback list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := load()
			if err != nil {
				return err
			}
			if err := f.Add(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added; %d fallback passwords in %s\n", len(f.List()), f.Path())
			return nil
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <password>",
		Short: "Remove a password from the fallback list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := load()
			if err != nil {
				return err
			}
			if err := f.Remove(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed; %d fallback passwords in %s\n", len(f.List()), f.Path())
			return nil
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check <password>",
		Short: "Check a password against the site's strength rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := passwords.ValidateStrength(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}

	passwordsCmd.AddCommand(listCmd, addCmd, removeCmd, checkCmd)
	return passwordsCmd
}
