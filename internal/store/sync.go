package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wavectl/pkg/models"
)

// metricRow/componentRow/planRow mirror the SQL schema's column names so
// sqlx can scan directly into them.
type metricRow struct {
	DBID      int64     `db:"db_id"`
	ID        string    `db:"id"`
	Collector string    `db:"collector"`
	Metadata  string    `db:"metadata"`
	Enabled   bool      `db:"enabled"`
	YAML      string    `db:"yaml"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r metricRow) toModel() (models.MetricDefinition, error) {
	var meta map[string]any
	if err := json.Unmarshal([]byte(r.Metadata), &meta); err != nil {
		return models.MetricDefinition{}, fmt.Errorf("store: decode metric metadata: %w", err)
	}
	return models.MetricDefinition{
		DBID: r.DBID, ID: r.ID, Collector: r.Collector, Metadata: meta,
		Enabled: r.Enabled, YAML: r.YAML, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}, nil
}

type componentRow struct {
	DBID          int64     `db:"db_id"`
	ID            string    `db:"id"`
	ComponentKind string    `db:"component_kind"`
	Metadata      string    `db:"metadata"`
	Enabled       bool      `db:"enabled"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r componentRow) toModel() (models.ScalingComponentDefinition, error) {
	var meta map[string]any
	if err := json.Unmarshal([]byte(r.Metadata), &meta); err != nil {
		return models.ScalingComponentDefinition{}, fmt.Errorf("store: decode component metadata: %w", err)
	}
	return models.ScalingComponentDefinition{
		DBID: r.DBID, ID: r.ID, ComponentKind: r.ComponentKind, Metadata: meta,
		Enabled: r.Enabled, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}, nil
}

type planRow struct {
	DBID      int64     `db:"db_id"`
	ID        string    `db:"id"`
	Metadata  string    `db:"metadata"`
	Variables string    `db:"variables"`
	Plans     string    `db:"plans"`
	Enabled   bool      `db:"enabled"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r planRow) toModel() (models.ScalingPlanDefinition, error) {
	var meta map[string]any
	if err := json.Unmarshal([]byte(r.Metadata), &meta); err != nil {
		return models.ScalingPlanDefinition{}, fmt.Errorf("store: decode plan metadata: %w", err)
	}
	var vars map[string]any
	if err := json.Unmarshal([]byte(r.Variables), &vars); err != nil {
		return models.ScalingPlanDefinition{}, fmt.Errorf("store: decode plan variables: %w", err)
	}
	var items []models.PlanItem
	if err := json.Unmarshal([]byte(r.Plans), &items); err != nil {
		return models.ScalingPlanDefinition{}, fmt.Errorf("store: decode plan items: %w", err)
	}
	return models.ScalingPlanDefinition{
		DBID: r.DBID, ID: r.ID, Metadata: meta, Variables: vars, Plans: items,
		Enabled: r.Enabled, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}, nil
}

// SyncMetrics replaces the entire metric table with metrics, inside one
// transaction (spec §4.B: "delete-all-then-insert"). SYNC-1 depends on
// this being atomic: GetAllMetrics observes either the old set or the new
// set, never the empty table between the delete and the inserts.
func (s *Store) SyncMetrics(ctx context.Context, metrics []models.MetricDefinition) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.NewStorageError("sync_metrics begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM metric"); err != nil {
		return models.NewStorageError("sync_metrics delete", err)
	}

	now := time.Now().UTC()
	insert := s.rebind(`INSERT INTO metric (id, collector, metadata, enabled, yaml, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	for _, m := range metrics {
		metaJSON, err := json.Marshal(m.Metadata)
		if err != nil {
			return models.NewStorageError("sync_metrics marshal metadata", err)
		}
		createdAt, updatedAt := m.CreatedAt, m.UpdatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if updatedAt.IsZero() {
			updatedAt = now
		}
		if _, err := tx.ExecContext(ctx, insert, m.ID, m.Collector, string(metaJSON), m.Enabled, m.YAML, createdAt, updatedAt); err != nil {
			return models.NewStorageError("sync_metrics insert "+m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return models.NewStorageError("sync_metrics commit", err)
	}
	return nil
}

// SyncComponents replaces the entire scaling_component table, mirroring
// SyncMetrics.
func (s *Store) SyncComponents(ctx context.Context, components []models.ScalingComponentDefinition) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.NewStorageError("sync_components begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM scaling_component"); err != nil {
		return models.NewStorageError("sync_components delete", err)
	}

	now := time.Now().UTC()
	insert := s.rebind(`INSERT INTO scaling_component (id, component_kind, metadata, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	for _, c := range components {
		metaJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return models.NewStorageError("sync_components marshal metadata", err)
		}
		createdAt, updatedAt := c.CreatedAt, c.UpdatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if updatedAt.IsZero() {
			updatedAt = now
		}
		if _, err := tx.ExecContext(ctx, insert, c.ID, c.ComponentKind, string(metaJSON), c.Enabled, createdAt, updatedAt); err != nil {
			return models.NewStorageError("sync_components insert "+c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return models.NewStorageError("sync_components commit", err)
	}
	return nil
}

// UpsertPlans inserts or updates plans by id (spec §4.B: plans use
// insert-or-update, unlike metrics/components' delete-all-then-insert).
func (s *Store) UpsertPlans(ctx context.Context, plans []models.ScalingPlanDefinition) error {
	now := time.Now().UTC()
	upsert := s.rebind(`INSERT INTO plan (id, metadata, variables, plans, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			metadata = excluded.metadata,
			variables = excluded.variables,
			plans = excluded.plans,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at`)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.NewStorageError("upsert_plans begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range plans {
		metaJSON, err := json.Marshal(p.Metadata)
		if err != nil {
			return models.NewStorageError("upsert_plans marshal metadata", err)
		}
		varsJSON, err := json.Marshal(p.Variables)
		if err != nil {
			return models.NewStorageError("upsert_plans marshal variables", err)
		}
		itemsJSON, err := json.Marshal(p.Plans)
		if err != nil {
			return models.NewStorageError("upsert_plans marshal items", err)
		}
		createdAt := p.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := tx.ExecContext(ctx, upsert, p.ID, string(metaJSON), string(varsJSON), string(itemsJSON), p.Enabled, createdAt, now); err != nil {
			return models.NewStorageError("upsert_plans exec "+p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return models.NewStorageError("upsert_plans commit", err)
	}
	return nil
}

// GetAllMetrics returns every metric row regardless of enabled state,
// primarily so SYNC-1 can assert the post-sync id set exactly.
func (s *Store) GetAllMetrics(ctx context.Context) ([]models.MetricDefinition, error) {
	var rows []metricRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT db_id, id, collector, metadata, enabled, yaml, created_at, updated_at FROM metric"); err != nil {
		return nil, models.NewStorageError("get_all_metrics", err)
	}
	return decodeRows(rows, metricRow.toModel)
}

// GetEnabledMetrics returns metrics with enabled = true.
func (s *Store) GetEnabledMetrics(ctx context.Context) ([]models.MetricDefinition, error) {
	var rows []metricRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT db_id, id, collector, metadata, enabled, yaml, created_at, updated_at FROM metric WHERE enabled"); err != nil {
		return nil, models.NewStorageError("get_enabled_metrics", err)
	}
	return decodeRows(rows, metricRow.toModel)
}

// GetAllComponents returns every scaling component row regardless of
// enabled state, for the admin read endpoints.
func (s *Store) GetAllComponents(ctx context.Context) ([]models.ScalingComponentDefinition, error) {
	var rows []componentRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT db_id, id, component_kind, metadata, enabled, created_at, updated_at FROM scaling_component"); err != nil {
		return nil, models.NewStorageError("get_all_components", err)
	}
	return decodeRows(rows, componentRow.toModel)
}

// GetEnabledComponents returns scaling components with enabled = true.
func (s *Store) GetEnabledComponents(ctx context.Context) ([]models.ScalingComponentDefinition, error) {
	var rows []componentRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT db_id, id, component_kind, metadata, enabled, created_at, updated_at FROM scaling_component WHERE enabled"); err != nil {
		return nil, models.NewStorageError("get_enabled_components", err)
	}
	return decodeRows(rows, componentRow.toModel)
}

// GetAllPlans returns every plan row regardless of enabled state, for the
// admin read endpoints.
func (s *Store) GetAllPlans(ctx context.Context) ([]models.ScalingPlanDefinition, error) {
	var rows []planRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT db_id, id, metadata, variables, plans, enabled, created_at, updated_at FROM plan"); err != nil {
		return nil, models.NewStorageError("get_all_plans", err)
	}
	return decodeRows(rows, planRow.toModel)
}

// GetEnabledPlans returns plan definitions with enabled = true.
func (s *Store) GetEnabledPlans(ctx context.Context) ([]models.ScalingPlanDefinition, error) {
	var rows []planRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT db_id, id, metadata, variables, plans, enabled, created_at, updated_at FROM plan WHERE enabled"); err != nil {
		return nil, models.NewStorageError("get_enabled_plans", err)
	}
	return decodeRows(rows, planRow.toModel)
}

func decodeRows[R any, M any](rows []R, convert func(R) (M, error)) ([]M, error) {
	out := make([]M, 0, len(rows))
	for _, r := range rows {
		m, err := convert(r)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// PersistSample implements metricbuffer.Persister: it mirrors one metric
// sample into metrics_data, best-effort (callers treat a failure here as
// loggable, never fatal).
func (s *Store) PersistSample(ctx context.Context, sample models.MetricSample) error {
	insert := s.rebind(`INSERT INTO metrics_data (id, collector, metric_id, json_value) VALUES (?, '', ?, ?)
		ON CONFLICT(id) DO NOTHING`)
	if _, err := s.db.ExecContext(ctx, insert, sample.Ulid, sample.MetricID, string(sample.JSON)); err != nil {
		return models.NewStorageError("persist_sample", err)
	}
	return nil
}
