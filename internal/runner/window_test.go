// internal/runner/window_test.go
package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/formpilot/internal/records"
)

func TestWindowBounds(t *testing.T) {
	tests := []struct {
		name     string
		w        Window
		n        int
		from, to int
	}{
		{"ZeroValueCoversAll", Window{}, 5, 0, 5},
		{"StartRowIsSheetRow", Window{StartRow: 3}, 5, 1, 5},
		{"StartBelowFirstDataRowClamps", Window{StartRow: 1}, 5, 0, 5},
		{"Limit", Window{StartRow: 2, Limit: 2}, 5, 0, 2},
		{"LimitPastEnd", Window{StartRow: 5, Limit: 10}, 5, 3, 5},
		{"EndRowInclusive", Window{StartRow: 3, EndRow: 4}, 5, 1, 3},
		{"EndRowAndLimitTakeTighter", Window{StartRow: 2, EndRow: 6, Limit: 1}, 5, 0, 1},
		{"StartPastEnd", Window{StartRow: 20}, 5, 5, 5},
		{"EndBeforeStart", Window{StartRow: 5, EndRow: 3}, 5, 3, 3},
		{"Empty", Window{}, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to := tt.w.Bounds(tt.n)
			assert.Equal(t, tt.from, from)
			assert.Equal(t, tt.to, to)
		})
	}
}

func TestPolicySelects(t *testing.T) {
	blank := records.Record{Status: records.StatusUnprocessed, Password: "123Qwe"}
	failed := records.Record{Status: records.StatusFailed, Password: "Other1x"}

	assert.True(t, Policy{}.Selects(blank))

	p := Policy{Statuses: []string{"Blank"}}
	assert.True(t, p.Selects(blank))
	assert.False(t, p.Selects(failed))

	p = Policy{Statuses: []string{"failed", "Blank"}}
	assert.True(t, p.Selects(failed))

	p = Policy{Passwords: []string{"123Qwe"}}
	assert.True(t, p.Selects(blank))
	assert.False(t, p.Selects(failed))

	p = Policy{Statuses: []string{"Blank"}, Passwords: []string{"Other1x"}}
	assert.False(t, p.Selects(blank))
	assert.False(t, p.Selects(failed))
}

func TestPolicyDone(t *testing.T) {
	signup := Policy{}
	assert.True(t, signup.Done(records.StatusOK))
	assert.True(t, signup.Done(records.StatusDuplicate))
	assert.False(t, signup.Done(records.StatusFailed))
	assert.False(t, signup.Done(records.StatusUnprocessed))

	repair := Policy{Idempotency: SkipDuplicates}
	assert.False(t, repair.Done(records.StatusOK))
	assert.True(t, repair.Done(records.StatusDuplicate))
	assert.False(t, repair.Done(records.StatusManualCheck))
}
