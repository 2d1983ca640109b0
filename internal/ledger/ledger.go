// internal/ledger/ledger.go
package ledger

import (
	"context"
	"sync"
	"time"
)

// Entry is one line of the action log: what was done to which account, the
// value before and after, and how it ended.
type Entry struct {
	Time     time.Time `json:"time"`
	FullName string    `json:"full_name"`
	Email    string    `json:"email"`
	SheetRow int       `json:"sheet_row"`
	Action   string    `json:"action"`
	Before   string    `json:"before"`
	After    string    `json:"after"`
	Result   string    `json:"result"`
}

// Ledger persists action log entries per run.
type Ledger interface {
	Record(ctx context.Context, runID string, e Entry) error
	Entries(ctx context.Context, runID string) ([]Entry, error)
	Close() error
}

// Memory keeps entries in process. It backs tests and runs with no ledger driver.
type Memory struct {
	mu   sync.Mutex
	runs map[string][]Entry
}

func NewMemory() *Memory {
	return &Memory{runs: make(map[string][]Entry)}
}

func (m *Memory) Record(_ context.Context, runID string, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[runID] = append(m.runs[runID], e)
	return nil
}

func (m *Memory) Entries(_ context.Context, runID string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.runs[runID]...), nil
}

func (m *Memory) Close() error { return nil }
