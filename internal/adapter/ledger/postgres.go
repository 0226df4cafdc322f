package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/couchcryptid/safesea/internal/domain"
)

// Database is the subset of pgxpool.Pool the ledger uses.
type Database interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS checkins (
		id         UUID PRIMARY KEY,
		role       TEXT NOT NULL,
		name       TEXT NOT NULL,
		hull_id    TEXT NOT NULL DEFAULT '',
		lat        DOUBLE PRECISION NOT NULL,
		lon        DOUBLE PRECISION NOT NULL,
		source     TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);
`

const postgresInsert = `
	INSERT INTO checkins (id, role, name, hull_id, lat, lon, source, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO NOTHING;
`

const postgresList = `
	SELECT id::text, role, name, hull_id, lat, lon, source, created_at
	FROM checkins
	ORDER BY created_at DESC
	LIMIT $1;
`

// Postgres is a ledger backed by a pgx connection pool.
type Postgres struct {
	db  Database
	log *slog.Logger
}

// NewPostgres wraps an open pool.
func NewPostgres(db Database, log *slog.Logger) *Postgres {
	return &Postgres{db: db, log: log}
}

// Migrate creates the checkins table if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to create checkins table: %w", err)
	}
	return nil
}

func (p *Postgres) Name() string { return "postgres" }

func (p *Postgres) RecordBatch(ctx context.Context, checkins []domain.Checkin) error {
	if len(checkins) == 0 {
		return nil
	}
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, c := range checkins {
		if _, err := tx.Exec(ctx, postgresInsert,
			c.ID, string(c.Role), c.Name, c.HullID,
			c.Location.Lat, c.Location.Lon, c.Source, c.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert checkin %s: %w", c.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit checkins: %w", err)
	}
	p.log.DebugContext(ctx, "checkins recorded", "count", len(checkins))
	return nil
}

func (p *Postgres) List(ctx context.Context, limit int) ([]domain.Checkin, error) {
	rows, err := p.db.Query(ctx, postgresList, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkins: %w", err)
	}
	defer rows.Close()

	var out []domain.Checkin
	for rows.Next() {
		var (
			c    domain.Checkin
			role string
		)
		if err := rows.Scan(&c.ID, &role, &c.Name, &c.HullID, &c.Location.Lat, &c.Location.Lon, &c.Source, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan checkin: %w", err)
		}
		c.Role = domain.Role(role)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read row: %w", err)
	}
	return out, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}
