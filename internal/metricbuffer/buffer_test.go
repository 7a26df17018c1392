package metricbuffer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"wavectl/pkg/models"
)

func entryJSON(t *testing.T, value float64) []byte {
	t.Helper()
	b, err := json.Marshal([]models.MetricEntry{{Value: value}})
	if err != nil {
		t.Fatalf("marshal entry: %v", err)
	}
	return b
}

// TestInsertStaysWithinBudget covers MB-1: total live size never exceeds
// budget_bytes after any sequence of inserts.
func TestInsertStaysWithinBudget(t *testing.T) {
	buf := New(Config{BudgetBytes: 1024}, nil, nil)
	defer buf.Close()

	ctx := context.Background()
	for i := 0; i < 100; i++ {
		payload := entryJSON(t, float64(i))
		if _, err := buf.Insert(ctx, "m", payload); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	stats := buf.SnapshotStats()
	if stats.TotalBytes > 1024 {
		t.Fatalf("total bytes %d exceeds budget 1024", stats.TotalBytes)
	}
	if stats.LiveSamples == 0 {
		t.Fatal("expected at least one surviving sample")
	}
}

// TestEvictionDropsOldestKeepsNewest covers scenario 5: streaming past
// budget evicts the oldest samples while the newest survives with no
// duplicate ulids, and Stats reports the last streamed value.
func TestEvictionDropsOldestKeepsNewest(t *testing.T) {
	buf := New(Config{BudgetBytes: 1024}, nil, nil)
	defer buf.Close()

	ctx := context.Background()
	var lastUlid string
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		payload := entryJSON(t, float64(i))
		u, err := buf.Insert(ctx, "m", payload)
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
		if seen[u] {
			t.Fatalf("duplicate ulid %s", u)
		}
		seen[u] = true
		lastUlid = u
		time.Sleep(time.Microsecond) // nudge the clock so ulids are strictly increasing in practice
	}

	entries, err := buf.RangeByMetric("m", 0, time.Now().UnixMilli()+1)
	if err != nil {
		t.Fatalf("RangeByMetric: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected surviving samples after eviction")
	}
	last := entries[len(entries)-1]
	if len(last.Entries) != 1 || last.Entries[0].Value != 99 {
		t.Fatalf("expected newest value 99, got %+v", last.Entries)
	}

	stats := buf.Stats(60)
	ms, ok := stats["m"]
	if !ok || !ms.HasLastValue || ms.LastValue != 99 {
		t.Fatalf("Stats last value = %+v, want 99", ms)
	}
	_ = lastUlid
}

// TestRangeByMetricBounds covers MB-3: RangeByMetric returns exactly the
// live samples within [a,b], ascending by timestamp.
func TestRangeByMetricBounds(t *testing.T) {
	buf := New(Config{BudgetBytes: 1 << 20}, nil, nil)
	defer buf.Close()

	ctx := context.Background()
	var timestamps []int64
	for i := 0; i < 5; i++ {
		_, err := buf.Insert(ctx, "cpu", entryJSON(t, float64(i*10)))
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		timestamps = append(timestamps, time.Now().UnixMilli())
		time.Sleep(time.Millisecond)
	}

	all, err := buf.RangeByMetric("cpu", 0, time.Now().UnixMilli()+1)
	if err != nil {
		t.Fatalf("RangeByMetric: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("got %d samples, want 5", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].TimestampMS < all[i-1].TimestampMS {
			t.Fatalf("entries not ascending: %+v", all)
		}
	}

	// a window before any insert should return nothing
	empty, err := buf.RangeByMetric("cpu", 0, timestamps[0]-1_000_000)
	if err != nil {
		t.Fatalf("RangeByMetric: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no entries outside window, got %d", len(empty))
	}
}

func TestInsertRejectsEmptyMetricID(t *testing.T) {
	buf := New(Config{}, nil, nil)
	defer buf.Close()
	if _, err := buf.Insert(context.Background(), "", entryJSON(t, 1)); err == nil {
		t.Fatal("expected error for empty metric_id")
	}
}

type recordingPersister struct {
	received chan models.MetricSample
}

func (r *recordingPersister) PersistSample(_ context.Context, sample models.MetricSample) error {
	r.received <- sample
	return nil
}

func TestInsertMirrorsToPersister(t *testing.T) {
	rec := &recordingPersister{received: make(chan models.MetricSample, 10)}
	buf := New(Config{BudgetBytes: 1 << 20, PersistEnabled: true}, rec, nil)
	defer buf.Close()

	if _, err := buf.Insert(context.Background(), "cpu", entryJSON(t, 42)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	select {
	case sample := <-rec.received:
		if sample.MetricID != "cpu" {
			t.Fatalf("mirrored sample has wrong metric id: %+v", sample)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for persisted mirror")
	}
}

func TestSampleSizeDoubleCounts(t *testing.T) {
	got := sampleSize("cpu", "01ARZ3NDEKTSV4RRFFQ69G5FAV", []byte(`[]`))
	want := int64(len([]byte(`[]`))) + 2*int64(len("cpu")) + 2*int64(len("01ARZ3NDEKTSV4RRFFQ69G5FAV"))
	if got != want {
		t.Fatalf("sampleSize = %d, want %d", got, want)
	}
}
