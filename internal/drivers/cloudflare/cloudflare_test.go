package cloudflare

import (
	"context"
	"errors"
	"testing"

	"wavectl/pkg/models"
)

func TestNewRuleValidatesLevel(t *testing.T) {
	_, err := NewRule("rule-1", map[string]any{
		"level": "region", "identifier": "zone-1", "ruleset_id": "rs-1", "rule_id": "r-1",
	})
	if err == nil {
		t.Fatal("expected error for level not in {zone, account}")
	}
}

func TestNewRuleRequiresAllIdentifiers(t *testing.T) {
	cases := []map[string]any{
		{"identifier": "z", "ruleset_id": "rs", "rule_id": "r"},
		{"level": "zone", "ruleset_id": "rs", "rule_id": "r"},
		{"level": "zone", "identifier": "z", "rule_id": "r"},
		{"level": "zone", "identifier": "z", "ruleset_id": "rs"},
	}
	for _, metadata := range cases {
		if _, err := NewRule("rule-1", metadata); err == nil {
			t.Fatalf("expected error for incomplete metadata %v", metadata)
		}
	}
}

func TestNewRuleAcceptsZoneLevelWithAPIToken(t *testing.T) {
	d, err := NewRule("rule-1", map[string]any{
		"level": "zone", "identifier": "zone-1", "ruleset_id": "rs-1", "rule_id": "r-1",
		"api_token": "fake-token",
	})
	if err != nil {
		t.Fatalf("NewRule: %v", err)
	}
	if d.Kind() != "cloudflare-rule" || d.ID() != "rule-1" {
		t.Fatalf("Kind/ID = %q/%q", d.Kind(), d.ID())
	}
}

func TestApplyRejectsMissingRuleParam(t *testing.T) {
	d, err := NewRule("rule-1", map[string]any{
		"level": "zone", "identifier": "zone-1", "ruleset_id": "rs-1", "rule_id": "r-1",
		"api_token": "fake-token",
	})
	if err != nil {
		t.Fatalf("NewRule: %v", err)
	}
	err = d.Apply(context.Background(), map[string]any{})
	if err == nil {
		t.Fatal("expected error for missing rule param")
	}
	if models.KindOf(err) != models.KindConfig {
		t.Fatalf("KindOf = %v, want config", models.KindOf(err))
	}
}

func TestClassifyErrorWrapsAsTransient(t *testing.T) {
	err := classifyError(errors.New("boom"))
	if models.KindOf(err) != models.KindTransient {
		t.Fatalf("KindOf = %v, want transient", models.KindOf(err))
	}
}
