package models

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// DocumentKind is the discriminator on a multi-document YAML stream (spec
// §6: "each document has kind ∈ {Metric, ScalingComponent, ScalingPlan}").
type DocumentKind string

const (
	DocumentMetric           DocumentKind = "Metric"
	DocumentScalingComponent DocumentKind = "ScalingComponent"
	DocumentScalingPlan      DocumentKind = "ScalingPlan"
)

// rawDocument mirrors the envelope every YAML document shares before its
// kind-specific fields are picked apart.
type rawDocument struct {
	Kind      string         `yaml:"kind"`
	ID        string         `yaml:"id"`
	Collector string         `yaml:"collector"`

	ComponentKind string `yaml:"component_kind"`

	Metadata  map[string]any `yaml:"metadata"`
	Variables map[string]any `yaml:"variables"`
	Plans     []PlanItem     `yaml:"plans"`
	Enabled   *bool          `yaml:"enabled"`
}

// Document is one parsed YAML document together with its own re-serialized
// source text, kept so MetricDefinition.YAML can round-trip what was
// actually submitted.
type Document struct {
	Kind DocumentKind
	Raw  rawDocument
	YAML string
}

// ParseDocuments splits a multi-document YAML stream and classifies each
// document by its kind field. Documents with an unrecognised or empty kind
// are returned in skipped rather than failing the whole stream (spec §6:
// "unknown kinds are logged and skipped").
func ParseDocuments(r io.Reader) (docs []Document, skipped []string, err error) {
	dec := yaml.NewDecoder(r)
	for {
		var node yaml.Node
		if decErr := dec.Decode(&node); decErr != nil {
			if decErr == io.EOF {
				break
			}
			return nil, nil, NewConfigError("decode yaml document", decErr)
		}
		var raw rawDocument
		if decErr := node.Decode(&raw); decErr != nil {
			return nil, nil, NewConfigError("decode yaml document fields", decErr)
		}

		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if encErr := enc.Encode(&node); encErr != nil {
			return nil, nil, NewConfigError("re-encode yaml document", encErr)
		}
		_ = enc.Close()

		switch DocumentKind(raw.Kind) {
		case DocumentMetric, DocumentScalingComponent, DocumentScalingPlan:
			docs = append(docs, Document{Kind: DocumentKind(raw.Kind), Raw: raw, YAML: buf.String()})
		default:
			skipped = append(skipped, fmt.Sprintf("document with id=%q has unknown kind %q", raw.ID, raw.Kind))
		}
	}
	return docs, skipped, nil
}

// ToMetricDefinition converts a Metric-kind Document. CreatedAt/UpdatedAt
// are both set to now; the store keeps them as given.
func (d Document) ToMetricDefinition(now time.Time) (MetricDefinition, error) {
	if d.Kind != DocumentMetric {
		return MetricDefinition{}, NewConfigError("document is not kind Metric", nil)
	}
	enabled := true
	if d.Raw.Enabled != nil {
		enabled = *d.Raw.Enabled
	}
	m := MetricDefinition{
		ID:        d.Raw.ID,
		Collector: d.Raw.Collector,
		Metadata:  d.Raw.Metadata,
		Enabled:   enabled,
		YAML:      d.YAML,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return m, m.Validate()
}

// ToScalingComponentDefinition converts a ScalingComponent-kind Document.
func (d Document) ToScalingComponentDefinition(now time.Time) (ScalingComponentDefinition, error) {
	if d.Kind != DocumentScalingComponent {
		return ScalingComponentDefinition{}, NewConfigError("document is not kind ScalingComponent", nil)
	}
	enabled := true
	if d.Raw.Enabled != nil {
		enabled = *d.Raw.Enabled
	}
	c := ScalingComponentDefinition{
		ID:            d.Raw.ID,
		ComponentKind: d.Raw.ComponentKind,
		Metadata:      d.Raw.Metadata,
		Enabled:       enabled,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return c, c.Validate()
}

// ToScalingPlanDefinition converts a ScalingPlan-kind Document.
func (d Document) ToScalingPlanDefinition(now time.Time) (ScalingPlanDefinition, error) {
	if d.Kind != DocumentScalingPlan {
		return ScalingPlanDefinition{}, NewConfigError("document is not kind ScalingPlan", nil)
	}
	enabled := true
	if d.Raw.Enabled != nil {
		enabled = *d.Raw.Enabled
	}
	p := ScalingPlanDefinition{
		ID:        d.Raw.ID,
		Metadata:  d.Raw.Metadata,
		Variables: d.Raw.Variables,
		Plans:     d.Raw.Plans,
		Enabled:   enabled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return p, p.Validate()
}
