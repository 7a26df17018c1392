package models

// MetricEntry is one element of a MetricSample's json_value array: a single
// timestamped numeric observation, optionally named and tagged.
type MetricEntry struct {
	Name      string            `json:"name,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
	Value     float64           `json:"value"`
	Timestamp int64             `json:"timestamp,omitempty"`
}

// MetricSample is the unit the Metric Buffer stores: one ulid-ordered push,
// carrying an array of MetricEntry values. Ordering is by Ulid ascending;
// Ulid encodes insertion time in its high 48 bits.
type MetricSample struct {
	MetricID string `json:"metric_id"`
	Ulid     string `json:"ulid"`
	JSON     []byte `json:"json_value"`
}

// MetricValue is one reduced, flattened observation used by the Metric
// Updater's snapshot and the Expression Host's window scan.
type MetricValue struct {
	MetricID  string
	Entry     MetricEntry
	Timestamp int64 // ms, derived from the owning sample's ulid; Entry.Timestamp is not consulted
}

// MetricStats is the per-metric summary returned by Metric Buffer's
// Stats(window_s) call.
type MetricStats struct {
	TimestampsInWindow int
	LastValue          float64
	HasLastValue       bool
}
