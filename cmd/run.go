// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/internal/automation"
	"github.com/xkilldash9x/formpilot/internal/browser"
	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/ledger"
	"github.com/xkilldash9x/formpilot/internal/observability"
	"github.com/xkilldash9x/formpilot/internal/records"
	"github.com/xkilldash9x/formpilot/internal/records/csvfile"
	"github.com/xkilldash9x/formpilot/internal/records/sheets"
	"github.com/xkilldash9x/formpilot/internal/reporting"
	"github.com/xkilldash9x/formpilot/internal/runner"
)

const shutdownTimeout = 15 * time.Second

// Function variables so tests can run the pipeline without Google or Chrome.
var (
	openStore     = defaultOpenStore
	launchBrowser = defaultLaunchBrowser
)

func defaultOpenStore(ctx context.Context, cfg config.SourceConfig, logger *zap.Logger) (records.Store, error) {
	switch cfg.Kind {
	case "csv":
		if cfg.CSVPath == "" {
			return nil, fmt.Errorf("--csv (source.csv_path) is required for the csv source")
		}
		return csvfile.New(cfg.CSVPath, logger)
	default:
		if cfg.SheetURL == "" {
			return nil, fmt.Errorf("--sheet-url (source.sheet_url) is required for the sheets source")
		}
		return sheets.New(ctx, cfg, logger)
	}
}

// defaultLaunchBrowser starts Chrome and opens the run's single tab. The
// returned release function closes both.
func defaultLaunchBrowser(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (automation.Page, func(), error) {
	mgr, err := browser.NewManager(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := mgr.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Error during browser manager shutdown", zap.Error(err))
		}
	}
	session, err := mgr.NewSession(ctx)
	if err != nil {
		release()
		return nil, nil, err
	}
	return session, func() {
		session.Close()
		release()
	}, nil
}

// runPlan describes one run of a flow.
type runPlan struct {
	columns config.ColumnsConfig
	window  runner.Window
	policy  runner.Policy
	// preflight inspects the loaded records before the browser starts.
	preflight func(rc *runner.RunContext) error
	newFlow   func(page automation.Page, logger *zap.Logger) (automation.Flow, error)
	// out receives the report when no output path is configured.
	out io.Writer
}

// runFlow wires store, ledger, browser and processor together, runs the
// flow and writes the report. The browser is always released.
func runFlow(ctx context.Context, cfg *config.Config, plan runPlan, logger *zap.Logger) (runner.Summary, error) {
	store, err := openStore(ctx, cfg.Source, logger)
	if err != nil {
		return runner.Summary{}, fmt.Errorf("failed to open record store: %w", err)
	}

	l, err := ledger.Open(ctx, cfg.Ledger, logger)
	if err != nil {
		return runner.Summary{}, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer func() {
		if err := l.Close(); err != nil {
			logger.Warn("Failed to close ledger", zap.Error(err))
		}
	}()

	rc, err := runner.NewRunContext(ctx, store, plan.columns, l, logger)
	if err != nil {
		return runner.Summary{}, err
	}
	rc.Progress = func(i, n int, rec records.Record, status records.Status) {
		fields := append(observability.RecordFields(rec.SheetRow(), rec.Email),
			observability.Progress(i, n),
			zap.String("status", status.Label()),
		)
		rc.Logger.Info("Record done", fields...)
	}
	if plan.preflight != nil {
		if err := plan.preflight(rc); err != nil {
			return runner.Summary{}, err
		}
	}

	page, release, err := launchBrowser(ctx, cfg.Browser, logger)
	if err != nil {
		return runner.Summary{}, fmt.Errorf("failed to start browser: %w", err)
	}
	defer release()

	flow, err := plan.newFlow(page, logger)
	if err != nil {
		return runner.Summary{}, err
	}

	sum := runner.NewProcessor(logger).Process(ctx, rc, flow, plan.window, plan.policy)

	if err := writeReport(ctx, cfg.Report, plan.out, rc, sum, logger); err != nil {
		return sum, err
	}
	if sum.Aborted {
		return sum, ctx.Err()
	}
	return sum, nil
}

// writeReport emits the final table and action log, to out when no output
// path is configured.
func writeReport(ctx context.Context, cfg config.ReportConfig, out io.Writer, rc *runner.RunContext, sum runner.Summary, logger *zap.Logger) error {
	logger.Info("Generating run report...", zap.String("format", cfg.Format), zap.String("output_path", cfg.Output))

	var reporter reporting.Reporter
	var err error
	if (cfg.Output == "" || cfg.Output == "stdout") && out != nil {
		reporter, err = reporting.NewWriter(cfg.Format, out)
	} else {
		reporter, err = reporting.New(cfg.Format, cfg.Output)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize reporter: %w", err)
	}
	defer func() {
		if err := reporter.Close(); err != nil {
			logger.Error("Failed to close reporter", zap.Error(err))
		}
	}()

	actions, err := rc.Entries(context.WithoutCancel(ctx))
	if err != nil {
		logger.Warn("Failed to read action log for report", zap.Error(err))
	}
	report := &reporting.Report{Summary: sum, Table: rc.Table, Actions: actions}
	if err := reporter.Write(report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	logger.Info("Report generated successfully.", zap.String("path", cfg.Output))
	return nil
}

func automatorOptions(cfg config.BrowserConfig) automation.AutomatorOptions {
	return automation.AutomatorOptions{
		Settle:       cfg.PollInterval,
		PollInterval: cfg.PollInterval,
	}
}
