// internal/runner/processor.go
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/internal/automation"
	"github.com/xkilldash9x/formpilot/internal/observability"
	"github.com/xkilldash9x/formpilot/internal/records"
)

// Summary totals one run.
type Summary struct {
	RunID      string                 `json:"run_id"`
	Flow       string                 `json:"flow"`
	Started    time.Time              `json:"started"`
	Duration   time.Duration          `json:"duration"`
	InWindow   int                    `json:"in_window"`
	Processed  int                    `json:"processed"`
	Skipped    int                    `json:"skipped"`
	Filtered   int                    `json:"filtered"`
	Duplicates int                    `json:"duplicates"`
	ByStatus   map[records.Status]int `json:"by_status"`
	// Aborted is set when the run stopped early because ctx was cancelled.
	Aborted bool `json:"aborted"`
}

// Processor walks the record set sequentially and hands eligible records to
// a flow.
type Processor struct {
	logger *zap.Logger
}

func NewProcessor(logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{logger: logger.Named("runner")}
}

// Process runs flow over the records of rc inside w that pass pol. Duplicates
// are computed over the whole record set first so that the outcome does not
// depend on the window. Each status is written through as soon as it is known.
func (p *Processor) Process(ctx context.Context, rc *RunContext, flow automation.Flow, w Window, pol Policy) Summary {
	started := time.Now()
	logger := p.logger.With(zap.String("run_id", rc.RunID), zap.String("flow", flow.Name()))
	sum := Summary{
		RunID:    rc.RunID,
		Flow:     flow.Name(),
		Started:  started.UTC(),
		ByStatus: make(map[records.Status]int),
	}

	mask := records.DuplicateMask(rc.Records)
	from, to := w.Bounds(len(rc.Records))
	sum.InWindow = to - from
	logger.Info("Starting run.",
		zap.Int("records", len(rc.Records)),
		zap.Int("first_row", from+FirstDataRow),
		zap.Int("last_row", to+FirstDataRow-1),
	)

	for i := from; i < to; i++ {
		if err := ctx.Err(); err != nil {
			logger.Warn("Run aborted at record boundary.", zap.Error(err))
			sum.Aborted = true
			break
		}
		rec := &rc.Records[i]
		status := p.step(ctx, rc, flow, rec, mask[i], pol, &sum, logger)
		if rc.Progress != nil {
			rc.Progress(i-from+1, to-from, *rec, status)
		}
	}

	sum.Duration = time.Since(started)
	logger.Info("Run finished.",
		zap.Int("processed", sum.Processed),
		zap.Int("skipped", sum.Skipped),
		zap.Int("duplicates", sum.Duplicates),
		zap.Int("filtered", sum.Filtered),
		zap.Duration("duration", sum.Duration),
	)
	return sum
}

// step applies the skip rules to one record and, if it is eligible, runs
// the flow. It returns the record's status after the step.
func (p *Processor) step(ctx context.Context, rc *RunContext, flow automation.Flow, rec *records.Record, duplicate bool, pol Policy, sum *Summary, logger *zap.Logger) records.Status {
	log := logger.With(observability.RecordFields(rec.SheetRow(), rec.Email)...)

	switch {
	case !pol.Selects(*rec):
		sum.Filtered++
		return rec.Status
	case rec.Status == records.StatusDuplicate:
		sum.Duplicates++
		sum.Skipped++
		return rec.Status
	case duplicate:
		sum.Duplicates++
		log.Info("Duplicate email, marking without automation.")
		before := rec.Status
		result := "Success"
		if err := p.persist(ctx, rc, rec, records.StatusDuplicate, log); err != nil {
			result = writeResult(err)
		}
		rc.Log(ctx, entryFor(rec, "Mark Duplicate", before.Label(), records.StatusDuplicate.Label(), result))
		return rec.Status
	case pol.Done(rec.Status):
		sum.Skipped++
		log.Debug("Already complete, skipping.", zap.String("status", string(rec.Status)))
		return rec.Status
	case rec.Identity() == "":
		sum.Skipped++
		log.Debug("No email, skipping.")
		return rec.Status
	}

	log.Info("Processing record.")
	status, err := p.invoke(ctx, rc, flow, rec)
	if err != nil {
		status = records.StatusFailed
		log.Error("Record failed.", zap.String("code", string(automation.Code(err))), zap.Error(err))
	}
	if status != rec.Status {
		before := rec.Status
		if err := p.persist(ctx, rc, rec, status, log); err != nil {
			rc.Log(ctx, entryFor(rec, "Write Status", before.Label(), status.Label(), writeResult(err)))
		}
	}
	sum.Processed++
	sum.ByStatus[status]++
	return status
}

// invoke is the record boundary. Panics inside a flow are recovered and
// reported as unrecoverable.
func (p *Processor) invoke(ctx context.Context, rc *RunContext, flow automation.Flow, rec *records.Record) (status records.Status, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Recovered from panic in flow.",
				zap.Any("panic", r),
				zap.Int("sheet_row", rec.SheetRow()),
				zap.Stack("stack"),
			)
			status = records.StatusFailed
			err = fmt.Errorf("%w: panic: %v", automation.ErrUnrecoverable, r)
		}
	}()
	return flow.Process(ctx, automation.Env{Writer: rc, Journal: rc}, rec)
}

// persist writes the status through to the store. On a failed write the
// in-memory record still takes the new status so the report reflects what
// the flow decided; the caller logs and moves on.
func (p *Processor) persist(ctx context.Context, rc *RunContext, rec *records.Record, status records.Status, log *zap.Logger) error {
	err := rc.WriteField(ctx, rec, records.FieldStatus, string(status))
	if err == nil {
		return nil
	}
	log.Error("Failed to write status.", zap.String("status", string(status)), zap.Error(err))
	rec.Status = status
	_ = rc.Table.SetCell(rec.Row, rc.Columns.Status, string(status))
	return err
}

func writeResult(err error) string {
	if errors.Is(err, context.Canceled) {
		return "Cancelled"
	}
	return "Write Failed"
}
