// File: cmd/signup.go
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/internal/automation"
	"github.com/xkilldash9x/formpilot/internal/observability"
	"github.com/xkilldash9x/formpilot/internal/records"
	"github.com/xkilldash9x/formpilot/internal/runner"
)

func newSignupCmd(a *app) *cobra.Command {
	signupCmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account on the signup form for every pending row",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger().Named("signup")
			cfg := a.cfg

			cfg.Run.StartRow, _ = cmd.Flags().GetInt("start-row")
			cfg.Run.Limit, _ = cmd.Flags().GetInt("limit")

			plan := runPlan{
				out:     cmd.OutOrStdout(),
				columns: cfg.Signup.Columns,
				window:  runner.Window{StartRow: cfg.Run.StartRow, Limit: cfg.Run.Limit},
				newFlow: func(page automation.Page, logger *zap.Logger) (automation.Flow, error) {
					return automation.NewSignupFlow(page, cfg.Signup, automatorOptions(cfg.Browser), logger)
				},
			}
			sum, err := runFlow(ctx, cfg, plan, logger)
			printSummary(cmd, sum)
			return err
		},
	}

	addSourceFlags(signupCmd)
	signupCmd.Flags().Int("start-row", runner.FirstDataRow, "First sheet row to process (the header is row 1)")
	signupCmd.Flags().Int("limit", 0, "Maximum number of rows to process (0 means no limit)")
	return signupCmd
}

// addSourceFlags registers the flags shared by every run command.
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("sheet-url", "", "Google Sheet URL or spreadsheet id")
	cmd.Flags().String("credentials", "", "Service account credentials file (or FORMPILOT_CREDENTIALS_FILE)")
	cmd.Flags().String("csv", "", "Use a local CSV file instead of a Google Sheet")
	cmd.Flags().StringP("report", "o", "", "Write the final report to this path (default is the terminal)")
	cmd.Flags().StringP("format", "f", "", "Report format: csv or json")
	cmd.Flags().Bool("headless", false, "Run Chrome without a window")
	cmd.Flags().String("ledger", "", "Action log backend: none, sqlite or postgres")
}

func printSummary(cmd *cobra.Command, sum runner.Summary) {
	if sum.RunID == "" {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nRun %s (%s) finished in %s\n", sum.RunID, sum.Flow, sum.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "  in window: %d  processed: %d  skipped: %d  duplicates: %d  filtered: %d\n",
		sum.InWindow, sum.Processed, sum.Skipped, sum.Duplicates, sum.Filtered)
	for _, status := range []records.Status{records.StatusOK, records.StatusManualCheck, records.StatusFailed, records.StatusSkipped, records.StatusUnprocessed} {
		if n := sum.ByStatus[status]; n > 0 {
			fmt.Fprintf(out, "  %s: %d\n", status.Label(), n)
		}
	}
}
