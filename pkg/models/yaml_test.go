package models

import (
	"strings"
	"testing"
	"time"
)

const sampleStream = `
kind: Metric
id: cpu
collector: vector
metadata:
  source: node_exporter
---
kind: ScalingComponent
id: asg
component_kind: aws-ec2-autoscaling
metadata:
  region: us-east-1
---
kind: ScalingPlan
id: plan_a
variables:
  threshold: 25
plans:
  - id: item_1
    expression: "get({metric_id:'cpu', stats:'avg'}) > 25"
    priority: 1
    scaling_components:
      - component_id: asg
        params:
          desired: 4
---
kind: Unsupported
id: mystery
`

func TestParseDocuments(t *testing.T) {
	docs, skipped, err := ParseDocuments(strings.NewReader(sampleStream))
	if err != nil {
		t.Fatalf("ParseDocuments: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("got %d documents, want 3", len(docs))
	}
	if len(skipped) != 1 {
		t.Fatalf("got %d skipped, want 1 (the Unsupported kind)", len(skipped))
	}

	now := time.Now()

	metric, err := docs[0].ToMetricDefinition(now)
	if err != nil {
		t.Fatalf("ToMetricDefinition: %v", err)
	}
	if metric.ID != "cpu" || metric.Collector != "vector" || !metric.Enabled {
		t.Fatalf("unexpected metric definition: %+v", metric)
	}

	component, err := docs[1].ToScalingComponentDefinition(now)
	if err != nil {
		t.Fatalf("ToScalingComponentDefinition: %v", err)
	}
	if component.ID != "asg" || component.ComponentKind != "aws-ec2-autoscaling" {
		t.Fatalf("unexpected component definition: %+v", component)
	}

	plan, err := docs[2].ToScalingPlanDefinition(now)
	if err != nil {
		t.Fatalf("ToScalingPlanDefinition: %v", err)
	}
	if plan.ID != "plan_a" || len(plan.Plans) != 1 || plan.Plans[0].ID != "item_1" {
		t.Fatalf("unexpected plan definition: %+v", plan)
	}
	if len(plan.Plans[0].ScalingComponents) != 1 || plan.Plans[0].ScalingComponents[0].ComponentID != "asg" {
		t.Fatalf("unexpected plan item components: %+v", plan.Plans[0].ScalingComponents)
	}
}

func TestParseDocumentsWrongKindConversion(t *testing.T) {
	docs, _, err := ParseDocuments(strings.NewReader(sampleStream))
	if err != nil {
		t.Fatalf("ParseDocuments: %v", err)
	}
	if _, err := docs[0].ToScalingPlanDefinition(time.Now()); err == nil {
		t.Fatal("expected error converting a Metric document to a plan")
	}
}
