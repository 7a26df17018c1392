package metricupdater

import (
	"context"
	"testing"
	"time"

	"wavectl/internal/metricbuffer"
	"wavectl/pkg/models"
)

type fakeSource struct {
	ranges map[string][]metricbuffer.RangeEntry
	err    map[string]error
}

func (f fakeSource) RangeByMetric(metricID string, fromMS, toMS int64) ([]metricbuffer.RangeEntry, error) {
	if err, ok := f.err[metricID]; ok {
		return nil, err
	}
	return f.ranges[metricID], nil
}

func TestRefreshBuildsSnapshotFromKnownMetrics(t *testing.T) {
	now := time.Now().UnixMilli()
	source := fakeSource{ranges: map[string][]metricbuffer.RangeEntry{
		"cpu": {{TimestampMS: now, Entries: []models.MetricEntry{{Name: "cpu", Value: 72.5}}}},
	}}
	u := New(source, func() []string { return []string{"cpu"} }, nil)

	u.Refresh(context.Background())

	snap := u.Current()
	if len(snap.Values["cpu"]) != 1 || snap.Values["cpu"][0].Entry.Value != 72.5 {
		t.Fatalf("got snapshot %+v, want one cpu value of 72.5", snap.Values)
	}
}

func TestRefreshOmitsMetricOnSourceError(t *testing.T) {
	source := fakeSource{err: map[string]error{"broken": context.DeadlineExceeded}}
	u := New(source, func() []string { return []string{"broken"} }, nil)

	u.Refresh(context.Background())

	snap := u.Current()
	if _, ok := snap.Values["broken"]; ok {
		t.Fatalf("expected broken metric to be omitted, got %+v", snap.Values)
	}
}

func TestRangeByMetricServesFromCurrentSnapshotWindow(t *testing.T) {
	now := time.Now().UnixMilli()
	source := fakeSource{ranges: map[string][]metricbuffer.RangeEntry{
		"cpu": {{TimestampMS: now, Entries: []models.MetricEntry{{Name: "cpu", Value: 72.5}}}},
	}}
	u := New(source, func() []string { return []string{"cpu"} }, nil)
	u.Refresh(context.Background())

	ranges, err := u.RangeByMetric("cpu", now-1000, now+1000)
	if err != nil {
		t.Fatalf("RangeByMetric: %v", err)
	}
	if len(ranges) != 1 || len(ranges[0].Entries) != 1 || ranges[0].Entries[0].Value != 72.5 {
		t.Fatalf("ranges = %+v, want one entry at 72.5", ranges)
	}

	if out, err := u.RangeByMetric("cpu", now+10_000, now+20_000); err != nil || len(out) != 0 {
		t.Fatalf("ranges outside window = %+v, err=%v, want empty", out, err)
	}
}

func TestCurrentNeverNilBeforeFirstRefresh(t *testing.T) {
	u := New(fakeSource{}, func() []string { return nil }, nil)
	snap := u.Current()
	if snap == nil || snap.Values == nil {
		t.Fatal("expected a non-nil empty snapshot before the first refresh")
	}
}
