// Package ledger records check-ins in a SQL database.
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/safesea/internal/domain"
)

// Ledger is an append-only store of check-ins.
type Ledger interface {
	Name() string
	// RecordBatch inserts the check-ins. Already recorded IDs are skipped.
	RecordBatch(ctx context.Context, checkins []domain.Checkin) error
	// List returns the most recent check-ins, newest first.
	List(ctx context.Context, limit int) ([]domain.Checkin, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open connects to the ledger for driver ("sqlite" or "postgres") and
// creates the schema if needed.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (Ledger, error) {
	switch driver {
	case "sqlite":
		l, err := OpenSQLite(ctx, dsn, logger)
		if err != nil {
			return nil, err
		}
		return l, nil
	case "postgres":
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		l := NewPostgres(pool, logger)
		if err := l.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unsupported ledger driver: %s", driver)
	}
}
