// internal/ledger/sqlite.go
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"go.uber.org/zap"
)

const (
	sqliteCreateTable = `
		CREATE TABLE IF NOT EXISTS action_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			logged_at TEXT NOT NULL,
			full_name TEXT NOT NULL,
			email TEXT NOT NULL,
			sheet_row INTEGER NOT NULL,
			action TEXT NOT NULL,
			before_value TEXT NOT NULL,
			after_value TEXT NOT NULL,
			result TEXT NOT NULL
		);`
	sqliteInsertEntry = `INSERT INTO action_log (run_id, logged_at, full_name, email, sheet_row, action, before_value, after_value, result) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqliteSelectEntries = `SELECT logged_at, full_name, email, sheet_row, action, before_value, after_value, result FROM action_log WHERE run_id = ? ORDER BY id ASC`
)

// SQLite persists the action log to a local database file.
type SQLite struct {
	db  *sql.DB
	log *zap.Logger
}

// NewSQLite opens (or creates) the database at path.
func NewSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite ledger %s: %w", path, err)
	}
	// One writer at a time.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteCreateTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create action_log table: %w", err)
	}
	return &SQLite{db: db, log: logger.Named("ledger")}, nil
}

func (s *SQLite) Record(ctx context.Context, runID string, e Entry) error {
	_, err := s.db.ExecContext(ctx, sqliteInsertEntry,
		runID, e.Time.UTC().Format(time.RFC3339Nano), e.FullName, e.Email, e.SheetRow,
		e.Action, e.Before, e.After, e.Result,
	)
	if err != nil {
		return fmt.Errorf("failed to insert action log entry: %w", err)
	}
	return nil
}

func (s *SQLite) Entries(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelectEntries, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query action log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e  Entry
			ts string
		)
		if err := rows.Scan(&ts, &e.FullName, &e.Email, &e.SheetRow, &e.Action, &e.Before, &e.After, &e.Result); err != nil {
			return nil, fmt.Errorf("failed to scan action log row: %w", err)
		}
		if e.Time, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("bad timestamp %q in action log: %w", ts, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return entries, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
