// File: cmd/repair.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/internal/automation"
	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/observability"
	"github.com/xkilldash9x/formpilot/internal/passwords"
	"github.com/xkilldash9x/formpilot/internal/records"
	"github.com/xkilldash9x/formpilot/internal/runner"
)

func newRepairCmd(a *app) *cobra.Command {
	repairCmd := &cobra.Command{
		Use:   "repair",
		Short: "Log into existing accounts and fix usernames and passwords",
		Long: `repair logs into each selected account, trying the stored password and
then the fallback list. A working fallback is written back to the sheet.
Optionally it corrects the username column from the site and rotates the
password once the account's training is passed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger().Named("repair")
			cfg := a.cfg

			applyRepairFlags(cmd, &cfg.Run)
			if !cfg.Run.FixUsername && !cfg.Run.ChangePassword {
				logger.Info("Neither --fix-username nor --change-password set; only logging in and marking blank rows OK.")
			}
			if cfg.Run.ChangePassword {
				if err := passwords.ValidateStrength(cfg.Run.NewPassword); err != nil {
					return fmt.Errorf("--new-password rejected: %w", err)
				}
			}

			fallbacks, err := passwords.Load(cfg.Repair.FallbackFile)
			if err != nil {
				logger.Warn("Fallback password file unreadable, using defaults", zap.Error(err))
			}

			plan := runPlan{
				out:     cmd.OutOrStdout(),
				columns: cfg.Repair.Columns,
				window:  runner.Window{StartRow: cfg.Run.StartRow, Limit: cfg.Run.Limit, EndRow: cfg.Run.EndRow},
				policy:  repairPolicy(cfg.Run),
				preflight: func(rc *runner.RunContext) error {
					return checkRedundant(rc, cfg.Run, logger)
				},
				newFlow: func(page automation.Page, logger *zap.Logger) (automation.Flow, error) {
					opts := automation.RepairOptions{
						FixUsername:    cfg.Run.FixUsername,
						ChangePassword: cfg.Run.ChangePassword,
						NewPassword:    cfg.Run.NewPassword,
						Fallbacks:      fallbacks.List(),
					}
					return automation.NewRepairFlow(page, cfg.Repair, opts, automatorOptions(cfg.Browser), logger)
				},
			}
			sum, err := runFlow(ctx, cfg, plan, logger)
			printSummary(cmd, sum)
			return err
		},
	}

	addSourceFlags(repairCmd)
	repairCmd.Flags().String("fallback-file", "", "Fallback password file (default fallback_passwords.yaml)")
	repairCmd.Flags().Int("start-row", runner.FirstDataRow, "First sheet row to process (the header is row 1)")
	repairCmd.Flags().Int("end-row", 0, "Last sheet row to process, inclusive (0 means the last row)")
	repairCmd.Flags().Int("limit", 0, "Maximum number of rows to process (0 means no limit)")
	repairCmd.Flags().StringSlice("status", nil, "Only process rows with these statuses ('Blank' for empty)")
	repairCmd.Flags().StringSlice("password-filter", nil, "Only process rows whose stored password is one of these")
	repairCmd.Flags().Bool("fix-username", false, "Correct the username column from the site")
	repairCmd.Flags().Bool("change-password", false, "Rotate the password of accounts whose training is passed")
	repairCmd.Flags().String("new-password", "", "The password to rotate to")
	return repairCmd
}

func applyRepairFlags(cmd *cobra.Command, run *config.RunConfig) {
	flags := cmd.Flags()
	run.StartRow, _ = flags.GetInt("start-row")
	run.EndRow, _ = flags.GetInt("end-row")
	run.Limit, _ = flags.GetInt("limit")
	run.StatusFilter, _ = flags.GetStringSlice("status")
	run.PasswordFilter, _ = flags.GetStringSlice("password-filter")
	run.FixUsername, _ = flags.GetBool("fix-username")
	run.ChangePassword, _ = flags.GetBool("change-password")
	run.NewPassword, _ = flags.GetString("new-password")
}

// repairPolicy selects rows by the run's filters. Rows already OK are
// revisited; only duplicates are final.
func repairPolicy(run config.RunConfig) runner.Policy {
	return runner.Policy{
		Idempotency: runner.SkipDuplicates,
		Statuses:    run.StatusFilter,
		Passwords:   run.PasswordFilter,
	}
}

// checkRedundant refuses a password rotation when selected rows already
// carry the new password.
func checkRedundant(rc *runner.RunContext, run config.RunConfig, logger *zap.Logger) error {
	if !run.ChangePassword {
		return nil
	}
	w := runner.Window{StartRow: run.StartRow, Limit: run.Limit, EndRow: run.EndRow}
	pol := repairPolicy(run)
	from, to := w.Bounds(len(rc.Records))

	var selected []records.Record
	for _, rec := range rc.Records[from:to] {
		if pol.Selects(rec) {
			selected = append(selected, rec)
		}
	}
	redundant := passwords.Redundant(selected, run.NewPassword)
	if len(redundant) == 0 {
		return nil
	}
	rows := make([]int, len(redundant))
	for i, r := range redundant {
		rows[i] = r.SheetRow()
	}
	logger.Error("Selected rows already use the new password", zap.Ints("rows", rows))
	return fmt.Errorf("%d selected rows already use the new password (rows %v)", len(redundant), rows)
}
