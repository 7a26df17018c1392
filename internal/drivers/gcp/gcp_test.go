package gcp

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/api/googleapi"

	"wavectl/pkg/models"
)

func TestNewComputeMIGRequiresProjectAndGroupName(t *testing.T) {
	if _, err := NewComputeMIG(context.Background(), "mig-1", map[string]any{"group_name": "g", "location": "us-central1-a"}); err == nil {
		t.Fatal("expected error for missing project")
	}
	if _, err := NewComputeMIG(context.Background(), "mig-1", map[string]any{"project": "p", "location": "us-central1-a"}); err == nil {
		t.Fatal("expected error for missing group_name")
	}
}

func TestNewCloudFunctionsRequiresFunctionName(t *testing.T) {
	if _, err := NewCloudFunctions(context.Background(), "fn-1", map[string]any{}); err == nil {
		t.Fatal("expected error for missing function_name")
	}
}

func TestNewCloudRunRequiresServiceName(t *testing.T) {
	if _, err := NewCloudRun(context.Background(), "svc-1", map[string]any{}); err == nil {
		t.Fatal("expected error for missing service_name")
	}
}

func TestClientOptionsPrefersExplicitCredentials(t *testing.T) {
	opts := clientOptions(map[string]any{"credentials_json": `{"type":"service_account"}`})
	if len(opts) != 1 {
		t.Fatalf("len(opts) = %d, want 1", len(opts))
	}
}

func TestClientOptionsFallsBackToAmbient(t *testing.T) {
	if opts := clientOptions(map[string]any{}); opts != nil {
		t.Fatalf("opts = %v, want nil (ambient ADC)", opts)
	}
}

func TestClassifyErrorRateLimitIsTransient(t *testing.T) {
	err := classifyError(&googleapi.Error{Code: 429})
	if models.KindOf(err) != models.KindTransient {
		t.Fatalf("KindOf = %v, want transient", models.KindOf(err))
	}
}

func TestClassifyErrorServerErrorIsTransient(t *testing.T) {
	err := classifyError(&googleapi.Error{Code: 503})
	if models.KindOf(err) != models.KindTransient {
		t.Fatalf("KindOf = %v, want transient", models.KindOf(err))
	}
}

func TestClassifyErrorNotFoundIsPermanent(t *testing.T) {
	err := classifyError(&googleapi.Error{Code: 404})
	if models.KindOf(err) != models.KindPermanent {
		t.Fatalf("KindOf = %v, want permanent", models.KindOf(err))
	}
}

func TestClassifyErrorWrapsNonAPIError(t *testing.T) {
	err := classifyError(errors.New("dial tcp: timeout"))
	if models.KindOf(err) != models.KindTransient {
		t.Fatalf("KindOf = %v, want transient for unclassified network error", models.KindOf(err))
	}
}
