// internal/runner/context.go
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/internal/automation"
	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/ledger"
	"github.com/xkilldash9x/formpilot/internal/observability"
	"github.com/xkilldash9x/formpilot/internal/records"
)

// ProgressFunc is called after each in-window record with its 1-based
// position among the n records of the window.
type ProgressFunc func(i, n int, rec records.Record, status records.Status)

// RunContext carries everything one run shares between components: the
// record set, the store it came from, the action log and the logger. Flows
// see it only through the automation.RecordWriter and automation.Journal ports.
type RunContext struct {
	RunID    string
	Table    *records.Table
	Columns  records.Columns
	Records  []records.Record
	Store    records.Store
	Ledger   ledger.Ledger
	Logger   *zap.Logger
	Progress ProgressFunc
}

var (
	_ automation.RecordWriter = (*RunContext)(nil)
	_ automation.Journal      = (*RunContext)(nil)
)

// NewRunContext loads the table from store and resolves its columns.
func NewRunContext(ctx context.Context, store records.Store, cols config.ColumnsConfig, l ledger.Ledger, logger *zap.Logger) (*RunContext, error) {
	table, err := store.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	resolved, err := records.ResolveColumns(table.Headers, cols)
	if err != nil {
		return nil, err
	}
	if l == nil {
		l = ledger.NewMemory()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	runID := uuid.NewString()
	return &RunContext{
		RunID:   runID,
		Table:   table,
		Columns: resolved,
		Records: records.Records(table, resolved),
		Store:   store,
		Ledger:  l,
		Logger:  logger.With(zap.String("run_id", runID)),
	}, nil
}

// WriteField persists one field synchronously, then mirrors it into the
// in-memory table and record.
func (rc *RunContext) WriteField(ctx context.Context, rec *records.Record, field records.Field, value string) error {
	col := rc.Columns.Index(field)
	if col == records.NoColumn {
		return fmt.Errorf("%s: %w", field, records.ErrColumnNotFound)
	}
	if err := rc.Store.WriteCell(ctx, rec.Row, col, value); err != nil {
		return fmt.Errorf("failed to write %s for row %d: %w", field, rec.SheetRow(), err)
	}
	if err := rc.Table.SetCell(rec.Row, col, value); err != nil {
		return err
	}
	if rec.Cells != nil && col < len(rc.Table.Headers) {
		rec.Cells[rc.Table.Headers[col]] = value
	}
	return rec.Set(field, value)
}

// Log appends to the ledger and mirrors the entry into the live log. A ledger
// failure is logged and otherwise ignored.
func (rc *RunContext) Log(ctx context.Context, e ledger.Entry) {
	fields := append(observability.RecordFields(e.SheetRow, e.Email),
		zap.String("action", e.Action),
		zap.String("before", e.Before),
		zap.String("after", e.After),
		zap.String("result", e.Result),
	)
	rc.Logger.Info("Action", fields...)
	if err := rc.Ledger.Record(ctx, rc.RunID, e); err != nil {
		rc.Logger.Warn("Failed to persist action log entry.", zap.Error(err))
	}
}

// Entries returns the action log of this run.
func (rc *RunContext) Entries(ctx context.Context) ([]ledger.Entry, error) {
	return rc.Ledger.Entries(ctx, rc.RunID)
}

func entryFor(rec *records.Record, action, before, after, result string) ledger.Entry {
	return ledger.Entry{
		Time:     time.Now().UTC(),
		FullName: rec.FullName,
		Email:    rec.Email,
		SheetRow: rec.SheetRow(),
		Action:   action,
		Before:   before,
		After:    after,
		Result:   result,
	}
}
