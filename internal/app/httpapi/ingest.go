package httpapi

import (
	"encoding/json"
	"fmt"

	"wavectl/pkg/models"
)

// normalizeIngestBatch converts one collector's raw metric documents into
// the core's flat []MetricEntry shape (spec §6):
//   - vector: counter.value ?? gauge.value
//   - telegraf: one entry per field, named "{metric.name}_{field}"
//   - custom: value/timestamp passed through as-is
func normalizeIngestBatch(collector string, raw []json.RawMessage) ([]models.MetricEntry, error) {
	switch collector {
	case "vector":
		return normalizeVector(raw)
	case "telegraf":
		return normalizeTelegraf(raw)
	case "custom", "":
		return normalizeCustom(raw)
	default:
		return nil, fmt.Errorf("httpapi: unknown collector %q", collector)
	}
}

func normalizeVector(raw []json.RawMessage) ([]models.MetricEntry, error) {
	type vectorMetric struct {
		Name    string            `json:"name"`
		Tags    map[string]string `json:"tags"`
		Counter *struct {
			Value float64 `json:"value"`
		} `json:"counter"`
		Gauge *struct {
			Value float64 `json:"value"`
		} `json:"gauge"`
		Timestamp int64 `json:"timestamp"`
	}
	out := make([]models.MetricEntry, 0, len(raw))
	for _, item := range raw {
		var m vectorMetric
		if err := json.Unmarshal(item, &m); err != nil {
			return nil, fmt.Errorf("httpapi: malformed vector metric: %w", err)
		}
		var value float64
		switch {
		case m.Counter != nil:
			value = m.Counter.Value
		case m.Gauge != nil:
			value = m.Gauge.Value
		default:
			continue
		}
		out = append(out, models.MetricEntry{Name: m.Name, Tags: m.Tags, Value: value, Timestamp: m.Timestamp})
	}
	return out, nil
}

func normalizeTelegraf(raw []json.RawMessage) ([]models.MetricEntry, error) {
	type telegrafMetric struct {
		Name      string             `json:"name"`
		Tags      map[string]string  `json:"tags"`
		Fields    map[string]float64 `json:"fields"`
		Timestamp int64              `json:"timestamp"`
	}
	out := make([]models.MetricEntry, 0, len(raw))
	for _, item := range raw {
		var m telegrafMetric
		if err := json.Unmarshal(item, &m); err != nil {
			return nil, fmt.Errorf("httpapi: malformed telegraf metric: %w", err)
		}
		for field, value := range m.Fields {
			out = append(out, models.MetricEntry{
				Name:      fmt.Sprintf("%s_%s", m.Name, field),
				Tags:      m.Tags,
				Value:     value,
				Timestamp: m.Timestamp,
			})
		}
	}
	return out, nil
}

func normalizeCustom(raw []json.RawMessage) ([]models.MetricEntry, error) {
	out := make([]models.MetricEntry, 0, len(raw))
	for _, item := range raw {
		var m models.MetricEntry
		if err := json.Unmarshal(item, &m); err != nil {
			return nil, fmt.Errorf("httpapi: malformed custom metric: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}
