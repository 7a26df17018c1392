package models

import "testing"

func TestValidID(t *testing.T) {
	cases := []struct {
		id   string
		want bool
	}{
		{"cpu", true},
		{"cpu_util_01", true},
		{"", false},
		{"CPU", false},
		{"cpu-util", false},
		{"cpu util", false},
	}
	for _, tc := range cases {
		if got := ValidID(tc.id); got != tc.want {
			t.Errorf("ValidID(%q) = %v, want %v", tc.id, got, tc.want)
		}
	}
}

func TestMetricDefinitionValidate(t *testing.T) {
	t.Run("rejects invalid id", func(t *testing.T) {
		m := MetricDefinition{ID: "Bad-ID", Collector: "vector"}
		if err := m.Validate(); err == nil {
			t.Fatal("expected validation error for invalid id")
		}
	})

	t.Run("rejects missing collector", func(t *testing.T) {
		m := MetricDefinition{ID: "cpu", Collector: ""}
		if err := m.Validate(); err == nil {
			t.Fatal("expected validation error for missing collector")
		}
	})

	t.Run("accepts well-formed definition", func(t *testing.T) {
		m := MetricDefinition{ID: "cpu", Collector: "vector"}
		if err := m.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestScalingPlanDefinitionValidate(t *testing.T) {
	t.Run("rejects duplicate item ids", func(t *testing.T) {
		p := ScalingPlanDefinition{
			ID: "plan_a",
			Plans: []PlanItem{
				{ID: "item_1", Priority: 1},
				{ID: "item_1", Priority: 2},
			},
		}
		if err := p.Validate(); err == nil {
			t.Fatal("expected validation error for duplicate item id")
		}
	})

	t.Run("accepts unique item ids", func(t *testing.T) {
		p := ScalingPlanDefinition{
			ID: "plan_a",
			Plans: []PlanItem{
				{ID: "item_1", Priority: 1},
				{ID: "item_2", Priority: 2},
			},
		}
		if err := p.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestScalingPlanDefinitionTimezone(t *testing.T) {
	p := ScalingPlanDefinition{Metadata: map[string]any{"timezone": "Asia/Seoul"}}
	tz, ok := p.Timezone()
	if !ok || tz != "Asia/Seoul" {
		t.Fatalf("Timezone() = (%q, %v), want (Asia/Seoul, true)", tz, ok)
	}

	var empty ScalingPlanDefinition
	if _, ok := empty.Timezone(); ok {
		t.Fatal("expected no timezone override on empty metadata")
	}
}

func TestPlanItemHasPredicate(t *testing.T) {
	if (PlanItem{}).HasPredicate() {
		t.Fatal("empty item should have no predicate")
	}
	if !(PlanItem{Expression: "true"}).HasPredicate() {
		t.Fatal("expression-bearing item should have a predicate")
	}
	if !(PlanItem{CronExpression: "* * * * *"}).HasPredicate() {
		t.Fatal("cron-bearing item should have a predicate")
	}
}
