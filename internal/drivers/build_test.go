package drivers

import (
	"context"
	"testing"

	"wavectl/pkg/models"
)

func TestBuildRejectsUnknownKind(t *testing.T) {
	_, err := Build(context.Background(), models.ScalingComponentDefinition{
		ID: "c-1", ComponentKind: "not-a-real-kind", Metadata: map[string]any{},
	})
	if models.KindOf(err) != models.KindUnknownKind {
		t.Fatalf("KindOf = %v, want unknown_kind", models.KindOf(err))
	}
}

func TestBuildRejectsIncompleteMetadataAsConfigError(t *testing.T) {
	_, err := Build(context.Background(), models.ScalingComponentDefinition{
		ID: "c-1", ComponentKind: "aws-ecs", Metadata: map[string]any{},
	})
	if models.KindOf(err) != models.KindConfig {
		t.Fatalf("KindOf = %v, want config (missing cluster/service)", models.KindOf(err))
	}
}

func TestBuildAllSeparatesSuccessesFromFailures(t *testing.T) {
	components := []models.ScalingComponentDefinition{
		{ID: "c-1", ComponentKind: "not-a-real-kind", Metadata: map[string]any{}},
		{ID: "c-2", ComponentKind: "netfunnel", Metadata: map[string]any{"endpoint": "http://example.invalid"}},
	}
	built, errs := BuildAll(context.Background(), components)
	if len(built) != 1 {
		t.Fatalf("len(built) = %d, want 1", len(built))
	}
	if len(errs) != 1 {
		t.Fatalf("len(errs) = %d, want 1", len(errs))
	}
	if built[0].ID() != "c-2" {
		t.Fatalf("built[0].ID() = %q, want c-2", built[0].ID())
	}
}
