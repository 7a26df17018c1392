// Package sync implements the Definition Synchroniser: it watches the
// Definition Store for changes and, on each signal, rebuilds the driver
// registry and plan scheduler tasks atomically (spec §4.J).
//
// Rebuild serialisation follows the teacher's HotReloadSystem
// (engine/internal/runtime/runtime.go, also the direct model for
// internal/varmap's own reload watcher): a mutex around the rebuild
// critical section plus a pending flag so a change signal arriving
// mid-rebuild is coalesced into "run one more pass after this one",
// never queued as a second concurrent rebuild.
package sync

import (
	"context"
	"sync"
	"time"

	"wavectl/internal/drivers"
	"wavectl/internal/metricupdater"
	"wavectl/internal/scheduler"
	"wavectl/internal/telemetry/logging"
	"wavectl/pkg/models"
)

// Store is the read side of the Definition Store the synchroniser polls
// and rebuilds from.
type Store interface {
	WatchChanges(ctx context.Context, interval time.Duration) <-chan time.Time
	GetEnabledMetrics(ctx context.Context) ([]models.MetricDefinition, error)
	GetEnabledComponents(ctx context.Context) ([]models.ScalingComponentDefinition, error)
	GetEnabledPlans(ctx context.Context) ([]models.ScalingPlanDefinition, error)
}

// SchedulerDeps bundles everything a rebuilt scheduler.Task needs besides
// its plan and ticking interval.
type SchedulerDeps struct {
	Deps     scheduler.Deps
	Interval time.Duration
}

// Synchroniser owns the live Registry, the Metric Updater's metric-id
// source, and the set of running plan tasks. Construct with New.
type Synchroniser struct {
	store    Store
	registry *drivers.Registry
	updater  *metricupdater.Updater
	schedDep SchedulerDeps
	log      logging.Logger

	mu          sync.Mutex
	rebuilding  bool
	pending     bool
	planCancel  map[string]context.CancelFunc
	metricIDs   []string
	metricIDsMu sync.RWMutex
}

// New returns a ready Synchroniser. registry and updater are the shared
// instances the rest of the app reads from; Run rebuilds their contents
// in place rather than replacing the pointers.
func New(store Store, registry *drivers.Registry, updater *metricupdater.Updater, schedDep SchedulerDeps, log logging.Logger) *Synchroniser {
	if log == nil {
		log = logging.New(nil)
	}
	return &Synchroniser{
		store:      store,
		registry:   registry,
		updater:    updater,
		schedDep:   schedDep,
		log:        log,
		planCancel: make(map[string]context.CancelFunc),
	}
}

// MetricIDs implements metricupdater.MetricIDsFunc: the Metric Updater
// reads whatever set the most recent rebuild observed.
func (s *Synchroniser) MetricIDs() []string {
	s.metricIDsMu.RLock()
	defer s.metricIDsMu.RUnlock()
	out := make([]string, len(s.metricIDs))
	copy(out, s.metricIDs)
	return out
}

// Run watches the store and rebuilds on every change signal until ctx is
// cancelled. It performs one rebuild immediately before watching, so the
// synchroniser reflects whatever is already persisted at startup.
func (s *Synchroniser) Run(ctx context.Context, watchInterval time.Duration) {
	s.rebuild(ctx)

	changes := s.store.WatchChanges(ctx, watchInterval)
	for {
		select {
		case <-ctx.Done():
			s.stopAllPlans()
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			s.rebuild(ctx)
		}
	}
}

// rebuild implements spec §4.J steps 1-4, serialised: a rebuild already in
// flight records the signal as pending and the in-flight pass re-runs once
// more after it finishes, rather than running two rebuilds concurrently.
func (s *Synchroniser) rebuild(ctx context.Context) {
	s.mu.Lock()
	if s.rebuilding {
		s.pending = true
		s.mu.Unlock()
		return
	}
	s.rebuilding = true
	s.mu.Unlock()

	s.rebuildOnce(ctx)

	s.mu.Lock()
	again := s.pending
	s.pending = false
	s.rebuilding = false
	s.mu.Unlock()

	if again {
		s.rebuild(ctx)
	}
}

func (s *Synchroniser) rebuildOnce(ctx context.Context) {
	metrics, err := s.store.GetEnabledMetrics(ctx)
	if err != nil {
		s.log.ErrorCtx(ctx, "sync: fetch enabled metrics failed, rebuild aborted", "error", err)
		return
	}
	components, err := s.store.GetEnabledComponents(ctx)
	if err != nil {
		s.log.ErrorCtx(ctx, "sync: fetch enabled components failed, rebuild aborted", "error", err)
		return
	}
	plans, err := s.store.GetEnabledPlans(ctx)
	if err != nil {
		s.log.ErrorCtx(ctx, "sync: fetch enabled plans failed, rebuild aborted", "error", err)
		return
	}

	// step 2: stop every running plan task before the driver set moves
	// out from under it.
	s.stopAllPlans()

	// step 3: replace D's driver set atomically.
	built, buildErrs := drivers.BuildAll(ctx, components)
	for _, buildErr := range buildErrs {
		s.log.WarnCtx(ctx, "sync: component build failed, omitted from registry", "error", buildErr)
	}
	s.registry.Replace(built)

	ids := make([]string, 0, len(metrics))
	for _, m := range metrics {
		ids = append(ids, m.ID)
	}
	s.metricIDsMu.Lock()
	s.metricIDs = ids
	s.metricIDsMu.Unlock()
	if s.updater != nil {
		s.updater.Refresh(ctx)
	}

	// step 4: if plans exist, (re)start the scheduler tasks.
	if len(plans) == 0 {
		return
	}
	s.mu.Lock()
	for _, plan := range plans {
		planCtx, cancel := context.WithCancel(ctx)
		s.planCancel[plan.ID] = cancel
		task := scheduler.NewTask(plan, s.schedDep.Deps, s.schedDep.Interval)
		go task.Run(planCtx)
	}
	s.mu.Unlock()

	s.log.InfoCtx(ctx, "sync: rebuild complete",
		"metrics", len(metrics), "components", s.registry.Len(), "plans", len(plans))
}

func (s *Synchroniser) stopAllPlans() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cancel := range s.planCancel {
		cancel()
		delete(s.planCancel, id)
	}
}
