package models

import (
	"regexp"
	"strings"
	"time"
)

// idPattern enforces spec §6's "lowercase, alphanumeric + underscore" id
// validation rule, shared by all three definition kinds.
var idPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// ValidID reports whether id satisfies the lowercase/alphanumeric/underscore
// rule every definition id must follow.
func ValidID(id string) bool {
	return id != "" && idPattern.MatchString(id)
}

// MetricDefinition is one collector-fed metric source, as declared by a
// Metric YAML document. The zero value's DBID is unset until persisted.
type MetricDefinition struct {
	DBID      int64          `db:"db_id" json:"-"`
	ID        string         `db:"id" json:"id"`
	Collector string         `db:"collector" json:"collector"`
	Metadata  map[string]any `db:"metadata" json:"metadata"`
	Enabled   bool           `db:"enabled" json:"enabled"`
	YAML      string         `db:"yaml" json:"-"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// Validate checks the invariants spec §3 places on a MetricDefinition: a
// well-formed, lowercase, non-empty id.
func (m MetricDefinition) Validate() error {
	if !ValidID(m.ID) {
		return NewConfigError("metric id must be lowercase alphanumeric/underscore: "+m.ID, nil)
	}
	if strings.TrimSpace(m.Collector) == "" {
		return NewConfigError("metric "+m.ID+" missing collector", nil)
	}
	return nil
}

// ScalingComponentDefinition binds a component_kind (a driver registry key)
// to driver-specific metadata. The core never interprets Metadata beyond
// variable substitution.
type ScalingComponentDefinition struct {
	DBID          int64          `db:"db_id" json:"-"`
	ID            string         `db:"id" json:"id"`
	ComponentKind string         `db:"component_kind" json:"component_kind"`
	Metadata      map[string]any `db:"metadata" json:"metadata"`
	Enabled       bool           `db:"enabled" json:"enabled"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

func (c ScalingComponentDefinition) Validate() error {
	if !ValidID(c.ID) {
		return NewConfigError("scaling component id must be lowercase alphanumeric/underscore: "+c.ID, nil)
	}
	if strings.TrimSpace(c.ComponentKind) == "" {
		return NewConfigError("scaling component "+c.ID+" missing component_kind", nil)
	}
	return nil
}

// ScalingComponentRef is one {component_id, params} pair inside a PlanItem.
type ScalingComponentRef struct {
	ComponentID string         `json:"component_id" yaml:"component_id"`
	Params      map[string]any `json:"params" yaml:"params"`
}

// PlanItem is one rule inside a ScalingPlanDefinition: its own predicate,
// priority, and set of components to dispatch when it fires.
type PlanItem struct {
	ID                string                 `json:"id" yaml:"id"`
	Description       string                 `json:"description,omitempty" yaml:"description,omitempty"`
	Expression        string                 `json:"expression,omitempty" yaml:"expression,omitempty"`
	CronExpression    string                 `json:"cron_expression,omitempty" yaml:"cron_expression,omitempty"`
	Priority          int                    `json:"priority" yaml:"priority"`
	Cooldown          time.Duration          `json:"cooldown,omitempty" yaml:"cooldown,omitempty"`
	ScalingComponents []ScalingComponentRef  `json:"scaling_components" yaml:"scaling_components"`
}

// HasPredicate reports whether the item carries either selection gate. An
// item with neither is always eligible (spec §4.F step 2).
func (p PlanItem) HasPredicate() bool {
	return p.Expression != "" || p.CronExpression != ""
}

// ScalingPlanDefinition is the top-level plan document: its own variable
// scope and an ordered list of PlanItems.
type ScalingPlanDefinition struct {
	DBID      int64          `db:"db_id" json:"-"`
	ID        string         `db:"id" json:"id"`
	Metadata  map[string]any `db:"metadata" json:"metadata"`
	Variables map[string]any `db:"variables" json:"variables"`
	Plans     []PlanItem     `db:"-" json:"plans"`
	Enabled   bool           `db:"enabled" json:"enabled"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// Validate checks the within-plan invariants spec §3 requires: unique item
// ids and a well-formed plan id. Component-reference existence is resolved
// at dispatch time, not here (spec §9 "cyclic references").
func (p ScalingPlanDefinition) Validate() error {
	if !ValidID(p.ID) {
		return NewConfigError("plan id must be lowercase alphanumeric/underscore: "+p.ID, nil)
	}
	seen := make(map[string]struct{}, len(p.Plans))
	for _, item := range p.Plans {
		if item.ID == "" {
			return NewConfigError("plan "+p.ID+" has an item with an empty id", nil)
		}
		if _, dup := seen[item.ID]; dup {
			return NewConfigError("plan "+p.ID+" has duplicate item id: "+item.ID, nil)
		}
		seen[item.ID] = struct{}{}
	}
	return nil
}

// Timezone returns the plan's metadata["timezone"] override, if set, for
// cron matching. Absent an override the scheduler assumes UTC.
func (p ScalingPlanDefinition) Timezone() (string, bool) {
	if p.Metadata == nil {
		return "", false
	}
	tz, ok := p.Metadata["timezone"].(string)
	return tz, ok && tz != ""
}

// WebhookTarget is one {type, url, headers} fanout destination referenced
// by a plan's metadata.webhooks list (spec §4.G).
type WebhookTarget struct {
	Type    string            `json:"type" yaml:"type"` // "http" or "slack"
	URL     string            `json:"url" yaml:"url"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Webhooks parses the plan's metadata["webhooks"] array, tolerating the
// map[string]any shape every metadata value takes after a YAML/JSON
// decode. Malformed entries are skipped rather than failing the whole
// plan — a bad webhook target shouldn't block scaling.
func (p ScalingPlanDefinition) Webhooks() []WebhookTarget {
	if p.Metadata == nil {
		return nil
	}
	raw, ok := p.Metadata["webhooks"].([]any)
	if !ok {
		return nil
	}
	out := make([]WebhookTarget, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		t, _ := m["type"].(string)
		url, _ := m["url"].(string)
		if t == "" || url == "" {
			continue
		}
		target := WebhookTarget{Type: t, URL: url}
		if hdrs, ok := m["headers"].(map[string]any); ok {
			target.Headers = make(map[string]string, len(hdrs))
			for k, v := range hdrs {
				if s, ok := v.(string); ok {
					target.Headers[k] = s
				}
			}
		}
		out = append(out, target)
	}
	return out
}
