package sync

import (
	"context"
	"sync"
	"testing"
	"time"

	"wavectl/internal/drivers"
	"wavectl/internal/expr"
	"wavectl/internal/metricbuffer"
	"wavectl/internal/metricupdater"
	"wavectl/internal/scheduler"
	"wavectl/internal/telemetry/logging"
	"wavectl/internal/webhook"
	"wavectl/pkg/models"
)

type fakeStore struct {
	mu         sync.Mutex
	metrics    []models.MetricDefinition
	components []models.ScalingComponentDefinition
	plans      []models.ScalingPlanDefinition
	changes    chan time.Time
}

func (f *fakeStore) WatchChanges(ctx context.Context, interval time.Duration) <-chan time.Time {
	return f.changes
}

func (f *fakeStore) GetEnabledMetrics(ctx context.Context) ([]models.MetricDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.MetricDefinition(nil), f.metrics...), nil
}

func (f *fakeStore) GetEnabledComponents(ctx context.Context) ([]models.ScalingComponentDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ScalingComponentDefinition(nil), f.components...), nil
}

func (f *fakeStore) GetEnabledPlans(ctx context.Context) ([]models.ScalingPlanDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ScalingPlanDefinition(nil), f.plans...), nil
}

type noopSource struct{}

func (noopSource) RangeByMetric(metricID string, fromMS, toMS int64) ([]metricbuffer.RangeEntry, error) {
	return nil, nil
}

type noopHistory struct{}

func (noopHistory) Append(ctx context.Context, exec models.PlanExecution) error { return nil }

type noopNotifier struct{}

func (noopNotifier) Notify(ctx context.Context, targets []models.WebhookTarget, planID, planItemID string, outcomes []webhook.ComponentOutcome) {
}

type identityMapper struct{}

func (identityMapper) RenderValue(v any) any { return v }

func newTestSynchroniser(store *fakeStore) *Synchroniser {
	registry := drivers.NewRegistry()
	updater := metricupdater.New(noopSource{}, func() []string { return nil }, nil)
	schedDep := SchedulerDeps{
		Deps: scheduler.Deps{
			Expr:     expr.New(noopSource{}),
			Drivers:  registry,
			History:  noopHistory{},
			Notifier: noopNotifier{},
			Mapper:   identityMapper{},
			Log:      logging.New(nil),
		},
		Interval: 10 * time.Millisecond,
	}
	return New(store, registry, updater, schedDep, logging.New(nil))
}

func TestRebuildPopulatesMetricIDsAndRegistry(t *testing.T) {
	store := &fakeStore{
		metrics: []models.MetricDefinition{{ID: "cpu"}},
		components: []models.ScalingComponentDefinition{
			{ID: "funnel", ComponentKind: "netfunnel", Metadata: map[string]any{"endpoint": "http://example.test"}},
		},
		changes: make(chan time.Time),
	}
	s := newTestSynchroniser(store)

	s.rebuild(context.Background())

	if got := s.MetricIDs(); len(got) != 1 || got[0] != "cpu" {
		t.Fatalf("MetricIDs() = %v, want [cpu]", got)
	}
	if s.registry.Len() != 1 {
		t.Fatalf("registry.Len() = %d, want 1", s.registry.Len())
	}
}

func TestRebuildStartsPlanTasksForEnabledPlans(t *testing.T) {
	store := &fakeStore{
		plans: []models.ScalingPlanDefinition{
			{ID: "scale_web", Plans: []models.PlanItem{{ID: "always", Priority: 1}}},
		},
		changes: make(chan time.Time),
	}
	s := newTestSynchroniser(store)

	s.rebuild(context.Background())

	s.mu.Lock()
	n := len(s.planCancel)
	s.mu.Unlock()
	if n != 1 {
		t.Fatalf("running plan tasks = %d, want 1", n)
	}

	s.stopAllPlans()
	s.mu.Lock()
	n = len(s.planCancel)
	s.mu.Unlock()
	if n != 0 {
		t.Fatalf("running plan tasks after stopAllPlans = %d, want 0", n)
	}
}

func TestConcurrentRebuildSignalsCoalesceIntoOneExtraPass(t *testing.T) {
	store := &fakeStore{changes: make(chan time.Time)}
	s := newTestSynchroniser(store)

	s.mu.Lock()
	s.rebuilding = true
	s.mu.Unlock()

	s.rebuild(context.Background())
	s.rebuild(context.Background())

	s.mu.Lock()
	pending := s.pending
	s.mu.Unlock()
	if !pending {
		t.Fatal("expected a rebuild signal arriving mid-rebuild to set pending, got false")
	}

	s.mu.Lock()
	s.rebuilding = false
	s.mu.Unlock()
}
