package azure

import (
	"context"
	"errors"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"wavectl/pkg/models"
)

func TestNewVMSSRequiresAllThreeIdentifiers(t *testing.T) {
	cases := []map[string]any{
		{"resource_group": "rg", "vmss_name": "vmss"},
		{"subscription_id": "sub", "vmss_name": "vmss"},
		{"subscription_id": "sub", "resource_group": "rg"},
	}
	for _, metadata := range cases {
		if _, err := NewVMSS(context.Background(), "vmss-1", metadata); err == nil {
			t.Fatalf("expected error for incomplete metadata %v", metadata)
		}
	}
}

func TestNewFunctionsRequiresAllThreeIdentifiers(t *testing.T) {
	cases := []map[string]any{
		{"resource_group": "rg", "site_name": "site"},
		{"subscription_id": "sub", "site_name": "site"},
		{"subscription_id": "sub", "resource_group": "rg"},
	}
	for _, metadata := range cases {
		if _, err := NewFunctions(context.Background(), "fn-1", metadata); err == nil {
			t.Fatalf("expected error for incomplete metadata %v", metadata)
		}
	}
}

func TestNewFunctionsBuildsARMURL(t *testing.T) {
	d, err := NewFunctions(context.Background(), "fn-1", map[string]any{
		"subscription_id": "sub-1",
		"resource_group":  "rg-1",
		"site_name":       "site-1",
	})
	if err != nil {
		t.Fatalf("NewFunctions: %v", err)
	}
	want := "https://management.azure.com/subscriptions/sub-1/resourceGroups/rg-1/providers/Microsoft.Web/sites/site-1/config/web?api-version=2022-03-01"
	if d.url != want {
		t.Fatalf("url = %q, want %q", d.url, want)
	}
}

func TestClassifyErrorRateLimitIsTransient(t *testing.T) {
	err := classifyError(&azcore.ResponseError{StatusCode: 429})
	if models.KindOf(err) != models.KindTransient {
		t.Fatalf("KindOf = %v, want transient", models.KindOf(err))
	}
}

func TestClassifyErrorServerErrorIsTransient(t *testing.T) {
	err := classifyError(&azcore.ResponseError{StatusCode: 500})
	if models.KindOf(err) != models.KindTransient {
		t.Fatalf("KindOf = %v, want transient", models.KindOf(err))
	}
}

func TestClassifyErrorClientErrorIsPermanent(t *testing.T) {
	err := classifyError(&azcore.ResponseError{StatusCode: 403})
	if models.KindOf(err) != models.KindPermanent {
		t.Fatalf("KindOf = %v, want permanent", models.KindOf(err))
	}
}

func TestClassifyErrorWrapsNonResponseError(t *testing.T) {
	err := classifyError(errors.New("connection reset"))
	if models.KindOf(err) != models.KindTransient {
		t.Fatalf("KindOf = %v, want transient for unclassified error", models.KindOf(err))
	}
}
