package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/couchcryptid/safesea/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS checkins (
	id         TEXT PRIMARY KEY,
	role       TEXT NOT NULL,
	name       TEXT NOT NULL,
	hull_id    TEXT NOT NULL DEFAULT '',
	lat        REAL NOT NULL,
	lon        REAL NOT NULL,
	source     TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS checkins_created_at ON checkins (created_at);
`

// sqliteTime is fixed width so created_at sorts lexically.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

// SQLite is a file-backed ledger using the pure-Go modernc driver.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens dsn over a single connection and creates the schema.
func OpenSQLite(ctx context.Context, dsn string, logger *slog.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One physical connection; SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}
	logger.Info("sqlite ledger ready", "dsn", dsn)
	return &SQLite{db: db, logger: logger}, nil
}

func (s *SQLite) Name() string { return "sqlite" }

func (s *SQLite) RecordBatch(ctx context.Context, checkins []domain.Checkin) error {
	if len(checkins) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sqlite tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO checkins (id, role, name, hull_id, lat, lon, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare sqlite insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range checkins {
		if _, err := stmt.ExecContext(ctx,
			c.ID, string(c.Role), c.Name, c.HullID,
			c.Location.Lat, c.Location.Lon, c.Source,
			c.CreatedAt.UTC().Format(sqliteTime),
		); err != nil {
			return fmt.Errorf("insert checkin %s: %w", c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sqlite tx: %w", err)
	}
	return nil
}

func (s *SQLite) List(ctx context.Context, limit int) ([]domain.Checkin, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, name, hull_id, lat, lon, source, created_at
		FROM checkins
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query checkins: %w", err)
	}
	defer rows.Close()

	var out []domain.Checkin
	for rows.Next() {
		var (
			c       domain.Checkin
			role    string
			created string
		)
		if err := rows.Scan(&c.ID, &role, &c.Name, &c.HullID, &c.Location.Lat, &c.Location.Lon, &c.Source, &created); err != nil {
			return nil, fmt.Errorf("scan checkin: %w", err)
		}
		c.Role = domain.Role(role)
		if c.CreatedAt, err = time.Parse(sqliteTime, created); err != nil {
			return nil, fmt.Errorf("parse created_at of %s: %w", c.ID, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read checkin rows: %w", err)
	}
	return out, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
