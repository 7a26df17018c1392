package k8s

import (
	"testing"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"wavectl/pkg/models"
)

func TestNewJSONPatchRequiresNameAPIVersionResource(t *testing.T) {
	cases := []map[string]any{
		{"api_version": "apps/v1", "resource": "deployments"},
		{"name": "web", "resource": "deployments"},
		{"name": "web", "api_version": "apps/v1"},
	}
	for _, metadata := range cases {
		if _, err := NewJSONPatch("d-1", metadata); err == nil {
			t.Fatalf("expected error for incomplete metadata %v", metadata)
		}
	}
}

func TestNewJSONPatchRejectsMalformedAPIVersion(t *testing.T) {
	_, err := NewJSONPatch("d-1", map[string]any{
		"name": "web", "api_version": "too/many/slashes", "resource": "deployments",
	})
	if err == nil {
		t.Fatal("expected error for malformed api_version")
	}
}

func TestClassifyErrorNotFoundIsPermanent(t *testing.T) {
	err := classifyError(apierrors.NewNotFound(schema.GroupResource{Resource: "deployments"}, "web"))
	if models.KindOf(err) != models.KindPermanent {
		t.Fatalf("KindOf = %v, want permanent", models.KindOf(err))
	}
}

func TestClassifyErrorTooManyRequestsIsTransient(t *testing.T) {
	err := classifyError(apierrors.NewTooManyRequests("retry later", 5))
	if models.KindOf(err) != models.KindTransient {
		t.Fatalf("KindOf = %v, want transient", models.KindOf(err))
	}
}

func TestClassifyErrorServiceUnavailableIsTransient(t *testing.T) {
	err := classifyError(apierrors.NewServiceUnavailable("down for maintenance"))
	if models.KindOf(err) != models.KindTransient {
		t.Fatalf("KindOf = %v, want transient", models.KindOf(err))
	}
}

func TestClassifyErrorNilIsNil(t *testing.T) {
	if classifyError(nil) != nil {
		t.Fatal("expected nil error to classify as nil")
	}
}
