// internal/runner/window.go
package runner

import (
	"strings"

	"github.com/xkilldash9x/formpilot/internal/records"
)

// FirstDataRow is the sheet row of the first record; the header is row 1.
const FirstDataRow = 2

// Window selects a contiguous slice of the record set in sheet row numbers.
// Zero values mean "from the first record", "no limit" and "to the end".
type Window struct {
	StartRow int
	Limit    int
	EndRow   int
}

// Bounds clamps the window to n records and returns the half-open range of
// data-row indexes it covers.
func (w Window) Bounds(n int) (from, to int) {
	start := w.StartRow
	if start < FirstDataRow {
		start = FirstDataRow
	}
	from = start - FirstDataRow
	to = n
	if w.EndRow > 0 && w.EndRow-FirstDataRow+1 < to {
		to = w.EndRow - FirstDataRow + 1
	}
	if w.Limit > 0 && from+w.Limit < to {
		to = from + w.Limit
	}
	if from > n {
		from = n
	}
	if to < from {
		to = from
	}
	return from, to
}

// Idempotency decides which stored statuses end a record's processing.
type Idempotency int

const (
	// SkipTerminal leaves OK and DUP records alone. Signup runs use it.
	SkipTerminal Idempotency = iota
	// SkipDuplicates only leaves DUP records alone, so finished accounts can
	// be revisited. Repair runs use it.
	SkipDuplicates
)

// Policy narrows the window to records matching every non-empty filter and
// says which statuses are already final.
type Policy struct {
	Idempotency Idempotency
	// Statuses lists status labels to keep; "Blank" selects the empty status.
	Statuses []string
	// Passwords lists stored passwords to keep.
	Passwords []string
}

// Done reports whether a record with status s needs no further work.
func (p Policy) Done(s records.Status) bool {
	switch p.Idempotency {
	case SkipDuplicates:
		return s == records.StatusDuplicate
	default:
		return s.Terminal()
	}
}

// Selects reports whether rec passes the filters.
func (p Policy) Selects(rec records.Record) bool {
	if len(p.Statuses) > 0 {
		label := rec.Status.Label()
		ok := false
		for _, s := range p.Statuses {
			if strings.EqualFold(strings.TrimSpace(s), label) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(p.Passwords) > 0 {
		ok := false
		for _, pw := range p.Passwords {
			if pw == rec.Password {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}
