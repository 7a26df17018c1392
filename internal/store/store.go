// Package store implements the Definition Store: SQL-backed persistence of
// Metric, ScalingComponent and ScalingPlan documents, plus the
// metrics_data mirror table the Metric Buffer writes through to.
//
// Two drivers are supported, selected by the db_url scheme: modernc.org/sqlite
// (pure-Go, default, sqlite://) and lib/pq (postgres://). Access goes
// through jmoiron/sqlx rather than raw database/sql, following the same
// "third-party layer over database/sql" choice the pack's teacher-pool
// repos make for their own SQL access.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"wavectl/internal/telemetry/logging"
)

// Store owns the shared *sqlx.DB handle used by the Definition Store
// itself, the Metric Buffer's persistence mirror, and the History Log.
type Store struct {
	db     *sqlx.DB
	driver string
	log    logging.Logger
}

// Open connects to dbURL, selecting the driver by scheme (sqlite:// or
// postgres://), and runs the base schema migration.
func Open(ctx context.Context, dbURL string, log logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.New(nil)
	}

	var driver, dsn string
	switch {
	case strings.HasPrefix(dbURL, "sqlite://"):
		driver = "sqlite"
		dsn = strings.TrimPrefix(dbURL, "sqlite://")
	case strings.HasPrefix(dbURL, "postgres://"):
		driver = "postgres"
		dsn = dbURL
	default:
		return nil, fmt.Errorf("store: unsupported db_url scheme: %s", dbURL)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect (%s): %w", driver, err)
	}

	s := &Store{db: db, driver: driver, log: log}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// DB exposes the shared handle so sibling packages (the History Log) can
// issue their own queries/migrations against the same connection pool.
func (s *Store) DB() *sqlx.DB { return s.db }

// Driver returns "sqlite" or "postgres", matching the Definition Store's
// own dialect selection, so sibling packages that share its *sqlx.DB (the
// History Log) pick the right DDL and placeholder rebinding.
func (s *Store) Driver() string { return s.driver }

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// rebind adapts a query written with ? placeholders to the active
// driver's placeholder syntax ($1, $2, ... for postgres).
func (s *Store) rebind(query string) string { return s.db.Rebind(query) }

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS metric (
	db_id INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	collector TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	enabled INTEGER NOT NULL DEFAULT 1,
	yaml TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS scaling_component (
	db_id INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	component_kind TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	enabled INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS plan (
	db_id INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	metadata TEXT NOT NULL DEFAULT '{}',
	variables TEXT NOT NULL DEFAULT '{}',
	plans TEXT NOT NULL DEFAULT '[]',
	enabled INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS metrics_data (
	id TEXT PRIMARY KEY,
	collector TEXT NOT NULL DEFAULT '',
	metric_id TEXT NOT NULL,
	json_value TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_metrics_data_metric_id ON metrics_data(metric_id);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS metric (
	db_id BIGSERIAL PRIMARY KEY,
	id TEXT NOT NULL UNIQUE,
	collector TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	enabled BOOLEAN NOT NULL DEFAULT true,
	yaml TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS scaling_component (
	db_id BIGSERIAL PRIMARY KEY,
	id TEXT NOT NULL UNIQUE,
	component_kind TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	enabled BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS plan (
	db_id BIGSERIAL PRIMARY KEY,
	id TEXT NOT NULL UNIQUE,
	metadata TEXT NOT NULL DEFAULT '{}',
	variables TEXT NOT NULL DEFAULT '{}',
	plans TEXT NOT NULL DEFAULT '[]',
	enabled BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS metrics_data (
	id TEXT PRIMARY KEY,
	collector TEXT NOT NULL DEFAULT '',
	metric_id TEXT NOT NULL,
	json_value TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_metrics_data_metric_id ON metrics_data(metric_id);
`

func (s *Store) migrate(ctx context.Context) error {
	schema := schemaSQLite
	if s.driver == "postgres" {
		schema = schemaPostgres
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: migrate schema: %w", err)
	}
	return nil
}

// ResetDefinitions truncates the metric/scaling_component/plan tables, used
// when reset_definitions_on_startup is set.
func (s *Store) ResetDefinitions(ctx context.Context) error {
	for _, table := range []string{"metric", "scaling_component", "plan"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("store: reset %s: %w", table, err)
		}
	}
	return nil
}
