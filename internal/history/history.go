// Package history implements the History Log: an append-only audit of
// every plan dispatch, with a time-bounded retention sweep.
//
// It shares the Definition Store's *sqlx.DB handle rather than opening its
// own connection, but owns its own migration and table (plan_log) so the
// store package stays a pure metric/component/plan repository.
package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"

	"wavectl/internal/telemetry/logging"
	"wavectl/pkg/models"
)

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS plan_log (
	id TEXT PRIMARY KEY,
	plan_db_id INTEGER NOT NULL,
	plan_id TEXT NOT NULL,
	plan_item_json TEXT NOT NULL,
	metric_values_json TEXT NOT NULL DEFAULT '{}',
	metadata_values_json TEXT NOT NULL DEFAULT '{}',
	fail_message TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_plan_log_plan_id ON plan_log(plan_id);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS plan_log (
	id TEXT PRIMARY KEY,
	plan_db_id BIGINT NOT NULL,
	plan_id TEXT NOT NULL,
	plan_item_json TEXT NOT NULL,
	metric_values_json TEXT NOT NULL DEFAULT '{}',
	metadata_values_json TEXT NOT NULL DEFAULT '{}',
	fail_message TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_plan_log_plan_id ON plan_log(plan_id);
`

// Log is the History Log repository.
type Log struct {
	db     *sqlx.DB
	driver string
	log    logging.Logger
}

// New migrates plan_log (if absent) and returns a ready Log sharing db.
// driver is "sqlite" or "postgres", matching the Definition Store's
// selection so placeholder rebinding and DDL dialect agree.
func New(ctx context.Context, db *sqlx.DB, driver string, log logging.Logger) (*Log, error) {
	if log == nil {
		log = logging.New(nil)
	}
	schema := schemaSQLite
	if driver == "postgres" {
		schema = schemaPostgres
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("history: migrate plan_log: %w", err)
	}
	return &Log{db: db, driver: driver, log: log}, nil
}

// Append records one PlanExecution. Callers set ID to a fresh ulid before
// calling (the scheduler mints it so the same id can be echoed to G).
func (l *Log) Append(ctx context.Context, exec models.PlanExecution) error {
	query := l.db.Rebind(`
		INSERT INTO plan_log (id, plan_db_id, plan_id, plan_item_json, metric_values_json, metadata_values_json, fail_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := l.db.ExecContext(ctx, query,
		exec.ID, exec.PlanDBID, exec.PlanID, exec.PlanItemJSON,
		exec.MetricValuesJSON, exec.MetadataValuesJSON, exec.FailMessage,
	)
	if err != nil {
		return models.NewStorageError("history.Append", err)
	}
	return nil
}

// Filter narrows Query's result set. A zero-value Filter returns every
// row, newest first, capped at a sane default limit.
type Filter struct {
	PlanID string
	Limit  int
}

func (f Filter) withDefaults() Filter {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	return f
}

type planLogRow struct {
	ID                 string `db:"id"`
	PlanDBID           int64  `db:"plan_db_id"`
	PlanID             string `db:"plan_id"`
	PlanItemJSON       string `db:"plan_item_json"`
	MetricValuesJSON   string `db:"metric_values_json"`
	MetadataValuesJSON string `db:"metadata_values_json"`
	FailMessage        string `db:"fail_message"`
}

func (r planLogRow) toModel() models.PlanExecution {
	return models.PlanExecution{
		ID:                 r.ID,
		PlanDBID:           r.PlanDBID,
		PlanID:             r.PlanID,
		PlanItemJSON:       r.PlanItemJSON,
		MetricValuesJSON:   r.MetricValuesJSON,
		MetadataValuesJSON: r.MetadataValuesJSON,
		FailMessage:        r.FailMessage,
	}
}

// Query returns PlanExecutions matching filter, most recent first (id is a
// ulid, so lexicographic-descending order is chronological-descending).
func (l *Log) Query(ctx context.Context, filter Filter) ([]models.PlanExecution, error) {
	filter = filter.withDefaults()

	var sb strings.Builder
	sb.WriteString("SELECT id, plan_db_id, plan_id, plan_item_json, metric_values_json, metadata_values_json, fail_message FROM plan_log")
	args := []any{}
	if filter.PlanID != "" {
		sb.WriteString(" WHERE plan_id = ?")
		args = append(args, filter.PlanID)
	}
	sb.WriteString(" ORDER BY id DESC LIMIT ?")
	args = append(args, filter.Limit)

	var rows []planLogRow
	if err := l.db.SelectContext(ctx, &rows, l.db.Rebind(sb.String()), args...); err != nil {
		return nil, models.NewStorageError("history.Query", err)
	}
	out := make([]models.PlanExecution, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// Sweep deletes every row whose id (a ulid) was minted before now-retention,
// per spec.md's "id ≤ ulid(now − retention)" retention rule. It returns the
// number of rows removed.
func (l *Log) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	threshold := thresholdULID(time.Now().Add(-retention))
	res, err := l.db.ExecContext(ctx, l.db.Rebind("DELETE FROM plan_log WHERE id <= ?"), threshold)
	if err != nil {
		return 0, models.NewStorageError("history.Sweep", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, models.NewStorageError("history.Sweep", err)
	}
	return n, nil
}

// thresholdULID returns the smallest ulid string that could have been
// minted at or after t: t's millisecond timestamp with all-zero entropy.
// Any real ulid minted at exactly t sorts >= this one, so "id <= threshold"
// correctly selects only rows strictly older than t.
func thresholdULID(t time.Time) string {
	var id ulid.ULID
	_ = id.SetTime(ulid.Timestamp(t))
	return id.String()
}
