// File: internal/records/memory/store.go
package memory

import (
	"context"
	"sync"

	"github.com/xkilldash9x/formpilot/internal/records"
)

// Write is one recorded WriteCell call.
type Write struct {
	Row   int
	Col   int
	Value string
}

// Store is an in-memory record store for tests and dry runs.
type Store struct {
	mu     sync.Mutex
	table  *records.Table
	writes []Write
	// FailWrites, when set, is returned by every WriteCell.
	FailWrites error
}

// New wraps a copy of t.
func New(t *records.Table) *Store {
	return &Store{table: t.Clone()}
}

// FromRows builds a store from raw headers and rows.
func FromRows(headers []string, rows ...[]string) *Store {
	return &Store{table: records.NewTable(headers, rows)}
}

func (s *Store) ReadAll(context.Context) (*records.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Clone(), nil
}

func (s *Store) WriteCell(_ context.Context, row, col int, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	if err := s.table.SetCell(row, col, value); err != nil {
		return err
	}
	s.writes = append(s.writes, Write{Row: row, Col: col, Value: value})
	return nil
}

// Writes returns every successful write in order.
func (s *Store) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Write(nil), s.writes...)
}

// Table returns a snapshot of the current contents.
func (s *Store) Table() *records.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Clone()
}
