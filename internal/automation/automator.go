// internal/automation/automator.go
package automation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// FieldPolicy decides what happens when a field cannot be found.
type FieldPolicy string

const (
	// PolicyLenient logs and skips unmatched fields.
	PolicyLenient FieldPolicy = "lenient"
	// PolicyStrict fails the fill with ErrElementNotFound.
	PolicyStrict FieldPolicy = "strict"
)

// FieldValue is one field to fill. Field is tried as an element id, then as a
// name attribute.
type FieldValue struct {
	Field string
	Value string
}

// Target is a submit control with an optional fallback.
type Target struct {
	Primary  Selector
	Fallback Selector
}

// AutomatorOptions tunes an Automator.
type AutomatorOptions struct {
	Policy FieldPolicy
	// Settle is waited after submit before the snapshot is taken.
	Settle time.Duration
	// PollInterval spaces the snapshots taken by Classify.
	PollInterval time.Duration
}

// Automator drives a single logical page: fill, submit, classify.
type Automator struct {
	page   Page
	opts   AutomatorOptions
	logger *zap.Logger
}

// NewAutomator binds an Automator to a page.
func NewAutomator(page Page, opts AutomatorOptions, logger *zap.Logger) *Automator {
	if opts.Policy == "" {
		opts.Policy = PolicyLenient
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 250 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Automator{page: page, opts: opts, logger: logger.Named("automator")}
}

// Page exposes the underlying port.
func (a *Automator) Page() Page { return a.page }

// Fill clears and types one field, addressed by id first and by name second.
func (a *Automator) Fill(ctx context.Context, fv FieldValue) error {
	err := a.page.Fill(ctx, ID(fv.Field), fv.Value)
	if errors.Is(err, ErrElementNotFound) {
		err = a.page.Fill(ctx, Name(fv.Field), fv.Value)
	}
	if errors.Is(err, ErrElementNotFound) {
		if a.opts.Policy == PolicyStrict {
			return fmt.Errorf("field %q: %w", fv.Field, err)
		}
		a.logger.Debug("Field not present, skipping", zap.String("field", fv.Field))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to fill %q: %w", fv.Field, err)
	}
	return nil
}

// FillAll fills fields in declaration order.
func (a *Automator) FillAll(ctx context.Context, fields []FieldValue) error {
	for _, fv := range fields {
		if err := a.Fill(ctx, fv); err != nil {
			return err
		}
	}
	return nil
}

// Submit clicks the primary target, falling back to the secondary one when the
// primary is missing.
func (a *Automator) Submit(ctx context.Context, target Target) error {
	err := a.page.Click(ctx, target.Primary)
	if err == nil {
		return nil
	}
	if target.Fallback.IsZero() || !errors.Is(err, ErrElementNotFound) {
		return fmt.Errorf("failed to click %s: %w", target.Primary, err)
	}
	a.logger.Debug("Primary submit missing, using fallback", zap.Stringer("fallback", target.Fallback))
	if err := a.page.Click(ctx, target.Fallback); err != nil {
		return fmt.Errorf("failed to click fallback %s: %w", target.Fallback, err)
	}
	return nil
}

// FillAndSubmit fills fields in order, submits, waits the settle delay and
// returns the resulting snapshot.
func (a *Automator) FillAndSubmit(ctx context.Context, fields []FieldValue, submit Target) (Snapshot, error) {
	if err := a.FillAll(ctx, fields); err != nil {
		return Snapshot{}, err
	}
	if err := a.Submit(ctx, submit); err != nil {
		return Snapshot{}, err
	}
	if err := sleep(ctx, a.opts.Settle); err != nil {
		return Snapshot{}, err
	}
	return a.page.Snapshot(ctx)
}

// Classify polls snapshots until a marker matches or window elapses. It
// returns OutcomeNone, with the last snapshot, when nothing matched. At least
// one snapshot is always taken.
func (a *Automator) Classify(ctx context.Context, markers MarkerTable, window time.Duration) (Outcome, Snapshot, error) {
	deadline := time.Now().Add(window)
	for {
		snap, err := a.page.Snapshot(ctx)
		if err != nil {
			return OutcomeNone, snap, fmt.Errorf("failed to snapshot page: %w", err)
		}
		if out := markers.Classify(&snap); out != OutcomeNone {
			return out, snap, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return OutcomeNone, snap, nil
		}
		if err := sleep(ctx, min(a.opts.PollInterval, remaining)); err != nil {
			return OutcomeNone, snap, err
		}
	}
}

// Expect is Classify with ErrTimeout in place of OutcomeNone.
func (a *Automator) Expect(ctx context.Context, markers MarkerTable, window time.Duration) (Outcome, error) {
	out, _, err := a.Classify(ctx, markers, window)
	if err != nil {
		return OutcomeNone, err
	}
	if out == OutcomeNone {
		return OutcomeNone, fmt.Errorf("%w: none of %d markers within %s", ErrTimeout, len(markers), window)
	}
	return out, nil
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
