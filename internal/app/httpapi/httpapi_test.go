package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"wavectl/pkg/models"
)

type fakeStore struct {
	metrics    []models.MetricDefinition
	components []models.ScalingComponentDefinition
	plans      []models.ScalingPlanDefinition
	syncErr    error
}

func (f *fakeStore) GetAllMetrics(ctx context.Context) ([]models.MetricDefinition, error) {
	return f.metrics, nil
}
func (f *fakeStore) SyncMetrics(ctx context.Context, metrics []models.MetricDefinition) error {
	if f.syncErr != nil {
		return f.syncErr
	}
	f.metrics = metrics
	return nil
}
func (f *fakeStore) GetAllComponents(ctx context.Context) ([]models.ScalingComponentDefinition, error) {
	return f.components, nil
}
func (f *fakeStore) SyncComponents(ctx context.Context, components []models.ScalingComponentDefinition) error {
	f.components = components
	return nil
}
func (f *fakeStore) GetAllPlans(ctx context.Context) ([]models.ScalingPlanDefinition, error) {
	return f.plans, nil
}
func (f *fakeStore) UpsertPlans(ctx context.Context, plans []models.ScalingPlanDefinition) error {
	f.plans = plans
	return nil
}

type fakeBuffer struct {
	lastMetricID string
	lastJSON     []byte
}

func (f *fakeBuffer) Insert(ctx context.Context, metricID string, jsonValue []byte) (string, error) {
	f.lastMetricID = metricID
	f.lastJSON = jsonValue
	return "01FAKE", nil
}

func TestPingReturnsEpochMillis(t *testing.T) {
	s := New(&fakeStore{}, &fakeBuffer{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rr := httptest.NewRecorder()
	s.Router(nil).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "epoch_ms") {
		t.Fatalf("body missing epoch_ms: %s", rr.Body.String())
	}
}

func TestIngestCustomCollectorStoresNormalizedEntries(t *testing.T) {
	buf := &fakeBuffer{}
	s := New(&fakeStore{}, buf, nil)

	body := `{"metrics":[{"value":42,"timestamp":1000}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/metrics-receiver?collector=custom&metric_id=cpu", strings.NewReader(body))
	rr := httptest.NewRecorder()
	s.Router(nil).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rr.Code, rr.Body.String())
	}
	if buf.lastMetricID != "cpu" {
		t.Fatalf("lastMetricID = %q, want cpu", buf.lastMetricID)
	}
	if !strings.Contains(string(buf.lastJSON), `"value":42`) {
		t.Fatalf("normalized json = %s, missing value", buf.lastJSON)
	}
}

func TestIngestTelegrafExpandsFieldsIntoSeparateEntries(t *testing.T) {
	buf := &fakeBuffer{}
	s := New(&fakeStore{}, buf, nil)

	body := `{"metrics":[{"name":"cpu","fields":{"usage_idle":98.5,"usage_user":1.5},"timestamp":2000}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/metrics-receiver?collector=telegraf&metric_id=cpu", strings.NewReader(body))
	rr := httptest.NewRecorder()
	s.Router(nil).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(string(buf.lastJSON), "cpu_usage_idle") || !strings.Contains(string(buf.lastJSON), "cpu_usage_user") {
		t.Fatalf("normalized json = %s, expected both expanded field names", buf.lastJSON)
	}
}

func TestIngestMissingMetricIDReturns400(t *testing.T) {
	s := New(&fakeStore{}, &fakeBuffer{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/metrics-receiver?collector=custom", strings.NewReader(`{"metrics":[]}`))
	rr := httptest.NewRecorder()
	s.Router(nil).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestIngestMalformedBodyReturns400(t *testing.T) {
	s := New(&fakeStore{}, &fakeBuffer{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/metrics-receiver?collector=custom&metric_id=cpu", strings.NewReader(`not json`))
	rr := httptest.NewRecorder()
	s.Router(nil).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestIngestUnknownCollectorReturns400(t *testing.T) {
	s := New(&fakeStore{}, &fakeBuffer{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/metrics-receiver?collector=bogus&metric_id=cpu", strings.NewReader(`{"metrics":[]}`))
	rr := httptest.NewRecorder()
	s.Router(nil).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestGetMetricsReturnsStoreContents(t *testing.T) {
	store := &fakeStore{metrics: []models.MetricDefinition{{ID: "cpu", Collector: "vector"}}}
	s := New(store, &fakeBuffer{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/metrics", nil)
	rr := httptest.NewRecorder()
	s.Router(nil).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"cpu"`) {
		t.Fatalf("body missing cpu: %s", rr.Body.String())
	}
}

func TestPostPlansYAMLUpsertsParsedDocuments(t *testing.T) {
	store := &fakeStore{}
	s := New(store, &fakeBuffer{}, nil)

	doc := "kind: ScalingPlan\nid: scale_web\nplans: []\n"
	req := httptest.NewRequest(http.MethodPost, "/api/plans/yaml", strings.NewReader(doc))
	rr := httptest.NewRecorder()
	s.Router(nil).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rr.Code, rr.Body.String())
	}
	if len(store.plans) != 1 || store.plans[0].ID != "scale_web" {
		t.Fatalf("store.plans = %+v, want one plan scale_web", store.plans)
	}
}

func TestPostMetricsYAMLSkipsUnknownKind(t *testing.T) {
	store := &fakeStore{}
	s := New(store, &fakeBuffer{}, nil)

	doc := "kind: ScalingPlan\nid: scale_web\nplans: []\n"
	req := httptest.NewRequest(http.MethodPost, "/api/metrics/yaml", strings.NewReader(doc))
	rr := httptest.NewRecorder()
	s.Router(nil).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"skipped"`) {
		t.Fatalf("body missing skipped notice: %s", rr.Body.String())
	}
	if len(store.metrics) != 0 {
		t.Fatalf("store.metrics = %+v, want none synced", store.metrics)
	}
}
