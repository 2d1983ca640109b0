// internal/ledger/open.go
package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/internal/config"
)

// Open returns the ledger selected by cfg.Driver. "none" keeps the log in memory.
func Open(ctx context.Context, cfg config.LedgerConfig, logger *zap.Logger) (Ledger, error) {
	switch cfg.Driver {
	case "", "none":
		return NewMemory(), nil
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create connection pool: %w", err)
		}
		l, err := NewPostgres(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return l, nil
	case "sqlite":
		path, err := homedir.Expand(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to expand ledger path: %w", err)
		}
		return NewSQLite(ctx, path, logger)
	default:
		return nil, fmt.Errorf("unsupported ledger driver %q", cfg.Driver)
	}
}
