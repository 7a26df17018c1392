package netfunnel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"wavectl/pkg/models"
)

func TestNewRequiresEndpoint(t *testing.T) {
	if _, err := New("funnel-1", map[string]any{}); err == nil {
		t.Fatal("expected error for missing endpoint")
	}
}

func TestApplyRequiresMaxInflow(t *testing.T) {
	d, err := New("funnel-1", map[string]any{"endpoint": "http://example.invalid"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = d.Apply(context.Background(), map[string]any{})
	if models.KindOf(err) != models.KindConfig {
		t.Fatalf("KindOf = %v, want config", models.KindOf(err))
	}
}

func TestApplyPostsMaxInflowAndSucceedsOn200(t *testing.T) {
	var gotBody map[string]int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d, err := New("funnel-1", map[string]any{"endpoint": srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Apply(context.Background(), map[string]any{"max_inflow": 42}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if gotBody["max_inflow"] != 42 {
		t.Fatalf("gotBody = %v, want max_inflow=42", gotBody)
	}
}

func TestApplyClassifiesServerErrorAsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d, err := New("funnel-1", map[string]any{"endpoint": srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = d.Apply(context.Background(), map[string]any{"max_inflow": 10})
	if models.KindOf(err) != models.KindTransient {
		t.Fatalf("KindOf = %v, want transient", models.KindOf(err))
	}
}

func TestApplyClassifiesBadRequestAsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	d, err := New("funnel-1", map[string]any{"endpoint": srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = d.Apply(context.Background(), map[string]any{"max_inflow": 10})
	if models.KindOf(err) != models.KindPermanent {
		t.Fatalf("KindOf = %v, want permanent", models.KindOf(err))
	}
}
