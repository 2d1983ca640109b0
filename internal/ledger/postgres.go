// internal/ledger/postgres.go
package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DBPool abstracts pgxpool.Pool so the ledger can be tested with pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

const (
	pgCreateTable = `
        CREATE TABLE IF NOT EXISTS action_log (
            id BIGSERIAL PRIMARY KEY,
            run_id TEXT NOT NULL,
            logged_at TIMESTAMPTZ NOT NULL,
            full_name TEXT NOT NULL,
            email TEXT NOT NULL,
            sheet_row INTEGER NOT NULL,
            action TEXT NOT NULL,
            before_value TEXT NOT NULL,
            after_value TEXT NOT NULL,
            result TEXT NOT NULL
        );
    `
	pgInsertEntry = `
        INSERT INTO action_log (run_id, logged_at, full_name, email, sheet_row, action, before_value, after_value, result)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
    `
	pgSelectEntries = `
        SELECT logged_at, full_name, email, sheet_row, action, before_value, after_value, result
        FROM action_log
        WHERE run_id = $1
        ORDER BY id ASC;
    `
)

// Postgres persists the action log to a PostgreSQL table.
type Postgres struct {
	pool DBPool
	log  *zap.Logger
}

// NewPostgres verifies the connection and makes sure the table exists.
func NewPostgres(ctx context.Context, pool DBPool, logger *zap.Logger) (*Postgres, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, pgCreateTable); err != nil {
		return nil, fmt.Errorf("failed to create action_log table: %w", err)
	}
	return &Postgres{
		pool: pool,
		log:  logger.Named("ledger"),
	}, nil
}

func (p *Postgres) Record(ctx context.Context, runID string, e Entry) error {
	_, err := p.pool.Exec(ctx, pgInsertEntry,
		runID, e.Time.UTC(), e.FullName, e.Email, e.SheetRow,
		e.Action, e.Before, e.After, e.Result,
	)
	if err != nil {
		return fmt.Errorf("failed to insert action log entry: %w", err)
	}
	return nil
}

func (p *Postgres) Entries(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := p.pool.Query(ctx, pgSelectEntries, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query action log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Time, &e.FullName, &e.Email, &e.SheetRow, &e.Action, &e.Before, &e.After, &e.Result); err != nil {
			return nil, fmt.Errorf("failed to scan action log row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return entries, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
