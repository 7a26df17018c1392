// Package metricupdater implements the Metric Updater: a background task
// that periodically snapshots a working set of recent metric values out of
// the Metric Buffer, decoupling the scheduler's expression evaluation from
// the buffer's own locking (spec §4.I).
//
// The atomic.Pointer swap discipline mirrors the Variable Mapper's
// (internal/varmap) reload mechanism: readers always see a complete,
// internally-consistent snapshot and never observe a partial refresh.
package metricupdater

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"wavectl/internal/metricbuffer"
	"wavectl/internal/telemetry/logging"
	"wavectl/pkg/models"
)

// windowSeconds is the "last minute" window spec §4.I fixes for every
// refresh, regardless of polling interval.
const windowSeconds = 60

// Source is the read side of the Metric Buffer the updater polls.
// *metricbuffer.Buffer satisfies this directly.
type Source interface {
	RangeByMetric(metricID string, fromMS, toMS int64) ([]metricbuffer.RangeEntry, error)
}

// MetricIDsFunc returns the current set of known metric ids to poll. It is
// a func, not a static list, so the updater always reflects the
// synchroniser's latest rebuild without needing its own change signal.
type MetricIDsFunc func() []string

// Snapshot is the immutable working set F's expression context reads from.
type Snapshot struct {
	Values map[string][]models.MetricValue
	AsOf   time.Time
}

// Updater owns the refresh ticker and the current Snapshot.
type Updater struct {
	source  Source
	metrics MetricIDsFunc
	log     logging.Logger

	current atomic.Pointer[Snapshot]
}

// New returns a ready Updater holding an empty Snapshot until the first
// Refresh (or Run tick) populates it.
func New(source Source, metrics MetricIDsFunc, log logging.Logger) *Updater {
	if log == nil {
		log = logging.New(nil)
	}
	u := &Updater{source: source, metrics: metrics, log: log}
	u.current.Store(&Snapshot{Values: map[string][]models.MetricValue{}, AsOf: time.Time{}})
	return u
}

// Current returns the most recently published Snapshot. Callers must not
// mutate the returned value.
func (u *Updater) Current() *Snapshot {
	return u.current.Load()
}

// RangeByMetric serves get()/getValues() (E) out of the current Snapshot
// rather than the Metric Buffer directly, so the Expression Host reads
// through the Metric Updater's decoupled window (spec §4.I) instead of
// contending with the buffer's own locking on every expression evaluated.
// It satisfies expr.MetricSource.
func (u *Updater) RangeByMetric(metricID string, fromMS, toMS int64) ([]metricbuffer.RangeEntry, error) {
	snap := u.current.Load()
	byTimestamp := make(map[int64][]models.MetricEntry)
	for _, v := range snap.Values[metricID] {
		if v.Timestamp < fromMS || v.Timestamp > toMS {
			continue
		}
		byTimestamp[v.Timestamp] = append(byTimestamp[v.Timestamp], v.Entry)
	}

	out := make([]metricbuffer.RangeEntry, 0, len(byTimestamp))
	for ts, entries := range byTimestamp {
		out = append(out, metricbuffer.RangeEntry{TimestampMS: ts, Entries: entries})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TimestampMS < out[j].TimestampMS })
	return out, nil
}

// Refresh fetches the last-minute window for every known metric id and
// atomically swaps in a new Snapshot. It never returns an error: a
// per-metric read failure is logged and that metric is simply left out of
// the new snapshot rather than aborting the whole refresh.
func (u *Updater) Refresh(ctx context.Context) {
	now := time.Now()
	fromMS := now.Add(-windowSeconds * time.Second).UnixMilli()
	toMS := now.UnixMilli()

	values := make(map[string][]models.MetricValue)
	for _, metricID := range u.metrics() {
		ranges, err := u.source.RangeByMetric(metricID, fromMS, toMS)
		if err != nil {
			u.log.WarnCtx(ctx, "metricupdater: range query failed, metric omitted from snapshot",
				"metric_id", metricID, "error", err)
			continue
		}
		var vals []models.MetricValue
		for _, r := range ranges {
			for _, entry := range r.Entries {
				vals = append(vals, models.MetricValue{MetricID: metricID, Entry: entry, Timestamp: r.TimestampMS})
			}
		}
		if len(vals) > 0 {
			values[metricID] = vals
		}
	}

	u.current.Store(&Snapshot{Values: values, AsOf: now})
}

// Run refreshes once immediately, then every interval until ctx is
// cancelled.
func (u *Updater) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	u.Refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			u.Refresh(ctx)
		}
	}
}
