// internal/automation/flow.go
package automation

import (
	"context"
	"time"

	"github.com/xkilldash9x/formpilot/internal/ledger"
	"github.com/xkilldash9x/formpilot/internal/records"
)

// RecordWriter persists one field of the record being processed, updating
// rec in place on success.
type RecordWriter interface {
	WriteField(ctx context.Context, rec *records.Record, field records.Field, value string) error
}

// Journal receives the per-record action log.
type Journal interface {
	Log(ctx context.Context, e ledger.Entry)
}

// Env is what a flow may touch besides the page: the record store, through
// the writer, and the action log.
type Env struct {
	Writer  RecordWriter
	Journal Journal
}

// Flow is a step sequencer for one record. The returned status is the
// record's terminal status for this run; an error is a fault the caller maps
// to FAILED.
type Flow interface {
	Name() string
	Process(ctx context.Context, env Env, rec *records.Record) (records.Status, error)
}

func (e Env) log(ctx context.Context, rec *records.Record, action, before, after, result string) {
	if e.Journal == nil {
		return
	}
	e.Journal.Log(ctx, ledger.Entry{
		Time:     time.Now().UTC(),
		FullName: rec.FullName,
		Email:    rec.Email,
		SheetRow: rec.SheetRow(),
		Action:   action,
		Before:   before,
		After:    after,
		Result:   result,
	})
}

func (e Env) write(ctx context.Context, rec *records.Record, field records.Field, value string) error {
	if e.Writer == nil {
		return rec.Set(field, value)
	}
	return e.Writer.WriteField(ctx, rec, field, value)
}
