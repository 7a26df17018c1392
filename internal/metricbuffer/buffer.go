// Package metricbuffer implements the process-wide metric ring buffer: a
// size-bounded, per-metric time-ordered store fed by collector pushes and
// read by the expression host and metric updater.
//
// The shape is lifted from the teacher's resource manager
// (container/list LRU paired with a map, one lock, synchronous eviction)
// generalised to two-level keys (metric_id -> ulid -> sample) with a single
// flat eviction queue mirroring insertion order.
package metricbuffer

import (
	"container/list"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"wavectl/pkg/models"
)

// Persister mirrors inserted samples to durable storage, best-effort. A nil
// Persister disables mirroring regardless of Config.PersistEnabled.
type Persister interface {
	PersistSample(ctx context.Context, sample models.MetricSample) error
}

// Config controls the buffer's byte budget and persistence mirroring.
type Config struct {
	BudgetBytes    int64
	PersistEnabled bool
	// PersistQueueSize bounds the worker channel used for best-effort
	// mirroring; inserts never block on it, so a full queue drops the
	// incoming sample's mirror write and counts it in MirrorDrops.
	PersistQueueSize int
}

func (c Config) withDefaults() Config {
	if c.BudgetBytes <= 0 {
		c.BudgetBytes = 64 << 20 // 64MiB
	}
	if c.PersistQueueSize <= 0 {
		c.PersistQueueSize = 1024
	}
	return c
}

type queueEntry struct {
	metricID string
	ulid     string
	size     int64
}

// Buffer is the metric ring buffer. Zero value is not usable; construct via
// New.
type Buffer struct {
	cfg Config
	log *slog.Logger

	mu         sync.RWMutex
	samples    map[string]map[string]models.MetricSample // metric_id -> ulid -> sample
	queue      *list.List                                // of *queueEntry, oldest at Front
	totalBytes int64

	entropy *ulid.MonotonicEntropy

	persister  Persister
	persistCh  chan models.MetricSample
	persistWG  sync.WaitGroup
	stopOnce   sync.Once
	stopCh     chan struct{}
	droppedN   int64
	droppedMu  sync.Mutex
}

// Stats is the lightweight counters exposed alongside the per-metric view
// returned by Stats(window).
type Stats struct {
	Metrics      int   `json:"metrics"`
	LiveSamples  int   `json:"live_samples"`
	TotalBytes   int64 `json:"total_bytes"`
	BudgetBytes  int64 `json:"budget_bytes"`
	MirrorDrops  int64 `json:"mirror_drops"`
}

// New constructs a Buffer. persister may be nil; persistence mirroring is
// then a no-op even if cfg.PersistEnabled is set.
func New(cfg Config, persister Persister, log *slog.Logger) *Buffer {
	cfg = cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	b := &Buffer{
		cfg:     cfg,
		log:     log,
		samples: make(map[string]map[string]models.MetricSample),
		queue:   list.New(),
		entropy: ulid.Monotonic(rand.Reader, 0),
		persister: persister,
		stopCh:    make(chan struct{}),
	}
	if cfg.PersistEnabled && persister != nil {
		b.persistCh = make(chan models.MetricSample, cfg.PersistQueueSize)
		b.persistWG.Add(1)
		go b.persistLoop()
	}
	return b
}

// Close stops the persistence mirror worker, if running.
func (b *Buffer) Close() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
		if b.persistCh != nil {
			b.persistWG.Wait()
		}
	})
}

// sampleSize computes the eviction-accounting size for a sample. It
// deliberately double-counts metric_id and ulid (spec design note 3): the
// live map entry and the eviction queue entry each carry a copy of both
// keys, and the budget is meant to bound that combined footprint, not just
// the JSON payload.
func sampleSize(metricID, ulidStr string, jsonValue []byte) int64 {
	return int64(len(jsonValue)) + 2*int64(len(metricID)) + 2*int64(len(ulidStr))
}

// Insert mints a ulid for jsonValue, appends it to metricID's ordered set,
// and evicts the oldest live samples (across all metrics) until the buffer
// is back within budget. Insert fails only for an empty metricID; parsing
// of jsonValue is not attempted here (lazy, at query time).
func (b *Buffer) Insert(ctx context.Context, metricID string, jsonValue []byte) (string, error) {
	if metricID == "" {
		return "", fmt.Errorf("metricbuffer: empty metric_id")
	}
	id := ulid.MustNew(ulid.Now(), b.entropy)
	idStr := id.String()
	size := sampleSize(metricID, idStr, jsonValue)

	sample := models.MetricSample{MetricID: metricID, Ulid: idStr, JSON: append([]byte(nil), jsonValue...)}

	b.mu.Lock()
	inner, ok := b.samples[metricID]
	if !ok {
		inner = make(map[string]models.MetricSample)
		b.samples[metricID] = inner
	}
	inner[idStr] = sample
	b.queue.PushBack(&queueEntry{metricID: metricID, ulid: idStr, size: size})
	b.totalBytes += size

	for b.totalBytes > b.cfg.BudgetBytes {
		front := b.queue.Front()
		if front == nil {
			break
		}
		entry := front.Value.(*queueEntry)
		b.queue.Remove(front)
		b.totalBytes -= entry.size
		if set, ok := b.samples[entry.metricID]; ok {
			delete(set, entry.ulid)
			if len(set) == 0 {
				delete(b.samples, entry.metricID)
			}
		}
	}
	b.mu.Unlock()

	if b.persistCh != nil {
		select {
		case b.persistCh <- sample:
		default:
			b.droppedMu.Lock()
			b.droppedN++
			b.droppedMu.Unlock()
			b.log.Warn("metricbuffer: persist mirror queue full, dropping sample", "metric_id", metricID)
		}
	}

	return idStr, nil
}

// RangeEntry is one timestamped, lazily-parsed observation returned by
// RangeByMetric.
type RangeEntry struct {
	TimestampMS int64
	Entries     []models.MetricEntry
}

// RangeByMetric returns the live samples of metricID whose ulid timestamp
// lies in [fromMS, toMS], ascending by timestamp (MB-3).
func (b *Buffer) RangeByMetric(metricID string, fromMS, toMS int64) ([]RangeEntry, error) {
	b.mu.RLock()
	inner := b.samples[metricID]
	ulids := make([]string, 0, len(inner))
	for u := range inner {
		ulids = append(ulids, u)
	}
	samplesCopy := make(map[string]models.MetricSample, len(inner))
	for k, v := range inner {
		samplesCopy[k] = v
	}
	b.mu.RUnlock()

	sort.Strings(ulids) // ulid lexicographic order == chronological order

	out := make([]RangeEntry, 0, len(ulids))
	for _, u := range ulids {
		parsed, err := ulid.ParseStrict(u)
		if err != nil {
			continue
		}
		ts := int64(parsed.Time())
		if ts < fromMS || ts > toMS {
			continue
		}
		sample := samplesCopy[u]
		var entries []models.MetricEntry
		if err := json.Unmarshal(sample.JSON, &entries); err != nil {
			return nil, fmt.Errorf("metricbuffer: parse sample %s/%s: %w", metricID, u, err)
		}
		out = append(out, RangeEntry{TimestampMS: ts, Entries: entries})
	}
	return out, nil
}

// Stats summarises every metric's live sample count within window_s and its
// most recent value (the last numeric entry of its most recent sample).
func (b *Buffer) Stats(windowSec int) map[string]models.MetricStats {
	now := time.Now().UnixMilli()
	from := now - int64(windowSec)*1000

	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]models.MetricStats, len(b.samples))
	for metricID, inner := range b.samples {
		ulids := make([]string, 0, len(inner))
		for u := range inner {
			ulids = append(ulids, u)
		}
		sort.Strings(ulids)

		var stat models.MetricStats
		for _, u := range ulids {
			parsed, err := ulid.ParseStrict(u)
			if err != nil {
				continue
			}
			ts := int64(parsed.Time())
			if ts < from || ts > now {
				continue
			}
			stat.TimestampsInWindow++
			var entries []models.MetricEntry
			if err := json.Unmarshal(inner[u].JSON, &entries); err == nil && len(entries) > 0 {
				stat.LastValue = entries[len(entries)-1].Value
				stat.HasLastValue = true
			}
		}
		out[metricID] = stat
	}
	return out
}

// SnapshotStats returns lightweight buffer-wide counters, independent of
// any single metric's window.
func (b *Buffer) SnapshotStats() Stats {
	b.mu.RLock()
	live := 0
	for _, inner := range b.samples {
		live += len(inner)
	}
	s := Stats{
		Metrics:     len(b.samples),
		LiveSamples: live,
		TotalBytes:  b.totalBytes,
		BudgetBytes: b.cfg.BudgetBytes,
	}
	b.mu.RUnlock()

	b.droppedMu.Lock()
	s.MirrorDrops = b.droppedN
	b.droppedMu.Unlock()
	return s
}

func (b *Buffer) persistLoop() {
	defer b.persistWG.Done()
	ctx := context.Background()
	for {
		select {
		case sample, ok := <-b.persistCh:
			if !ok {
				return
			}
			if err := b.persister.PersistSample(ctx, sample); err != nil {
				b.log.Warn("metricbuffer: persist mirror failed", "metric_id", sample.MetricID, "error", err)
			}
		case <-b.stopCh:
			// drain remaining best-effort, then exit
			for {
				select {
				case sample, ok := <-b.persistCh:
					if !ok {
						return
					}
					_ = b.persister.PersistSample(ctx, sample)
				default:
					return
				}
			}
		}
	}
}
