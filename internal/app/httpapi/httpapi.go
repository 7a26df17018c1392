// Package httpapi implements the admin/ingestion HTTP surface (spec §6):
// the metric ingest endpoint, the three definition endpoints (metrics,
// scaling-components, plans) in both JSON and YAML form, and /ping.
//
// Handlers are thin: they decode the request, call through to the
// Definition Store or Metric Buffer, and encode the response. This is the
// "sketched" admin surface spec.md marks out of scope for deep testing, so
// it carries no validation beyond what §6 specifies.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"wavectl/internal/telemetry/logging"
	"wavectl/pkg/models"
)

// Store is the subset of the Definition Store the HTTP surface reads and
// writes through.
type Store interface {
	GetAllMetrics(ctx context.Context) ([]models.MetricDefinition, error)
	SyncMetrics(ctx context.Context, metrics []models.MetricDefinition) error
	GetAllComponents(ctx context.Context) ([]models.ScalingComponentDefinition, error)
	SyncComponents(ctx context.Context, components []models.ScalingComponentDefinition) error
	GetAllPlans(ctx context.Context) ([]models.ScalingPlanDefinition, error)
	UpsertPlans(ctx context.Context, plans []models.ScalingPlanDefinition) error
}

// Buffer is the subset of the Metric Buffer the ingest endpoint writes
// into.
type Buffer interface {
	Insert(ctx context.Context, metricID string, jsonValue []byte) (string, error)
}

// Server bundles the dependencies every handler needs.
type Server struct {
	store  Store
	buffer Buffer
	log    logging.Logger
}

// New returns a Server. The /metrics handler is not a Server dependency;
// it is passed to Router instead, since only Router needs it.
func New(store Store, buffer Buffer, log logging.Logger) *Server {
	if log == nil {
		log = logging.New(nil)
	}
	return &Server{store: store, buffer: buffer, log: log}
}

// Router builds the chi router. metricsHandler may be nil to omit /metrics.
func (s *Server) Router(metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/ping", s.handlePing)

	r.Post("/api/metrics-receiver", s.handleIngest)

	r.Get("/api/metrics", s.handleGetMetrics)
	r.Get("/api/metrics/yaml", s.handleGetMetricsYAML)
	r.Post("/api/metrics/yaml", s.handlePostMetricsYAML)

	r.Get("/api/scaling-components", s.handleGetComponents)
	r.Get("/api/scaling-components/yaml", s.handleGetComponentsYAML)
	r.Post("/api/scaling-components/yaml", s.handlePostComponentsYAML)

	r.Get("/api/plans", s.handleGetPlans)
	r.Get("/api/plans/yaml", s.handleGetPlansYAML)
	r.Post("/api/plans/yaml", s.handlePostPlansYAML)

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}
	return r
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int64{"epoch_ms": time.Now().UnixMilli()})
}

// handleIngest implements POST /api/metrics-receiver?collector=...&metric_id=....
// The request body is normalised per-collector into a flat []MetricEntry
// and stored as one Metric Buffer sample.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	collector := r.URL.Query().Get("collector")
	metricID := r.URL.Query().Get("metric_id")
	if metricID == "" {
		writeError(w, http.StatusBadRequest, "metric_id is required")
		return
	}

	var body struct {
		Metrics []json.RawMessage `json:"metrics"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	entries, err := normalizeIngestBatch(collector, body.Metrics)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jsonValue, err := json.Marshal(entries)
	if err != nil {
		writeError(w, http.StatusBadRequest, "encode normalised entries: "+err.Error())
		return
	}
	if _, err := s.buffer.Insert(r.Context(), metricID, jsonValue); err != nil {
		s.log.ErrorCtx(r.Context(), "httpapi: ingest insert failed", "metric_id", metricID, "error", err)
		writeError(w, http.StatusInternalServerError, "persist failed")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleGetMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := s.store.GetAllMetrics(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) handleGetMetricsYAML(w http.ResponseWriter, r *http.Request) {
	metrics, err := s.store.GetAllMetrics(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	for _, m := range metrics {
		fmt.Fprintln(w, m.YAML)
		fmt.Fprintln(w, "---")
	}
}

func (s *Server) handlePostMetricsYAML(w http.ResponseWriter, r *http.Request) {
	docs, skipped, err := models.ParseDocuments(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	now := time.Now()
	metrics := make([]models.MetricDefinition, 0, len(docs))
	for _, d := range docs {
		if d.Kind != models.DocumentMetric {
			skipped = append(skipped, "document "+d.Raw.ID+" is not kind Metric, skipped on this endpoint")
			continue
		}
		m, err := d.ToMetricDefinition(now)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		metrics = append(metrics, m)
	}
	if err := s.store.SyncMetrics(r.Context(), metrics); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"synced": len(metrics), "skipped": skipped})
}

func (s *Server) handleGetComponents(w http.ResponseWriter, r *http.Request) {
	components, err := s.store.GetAllComponents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, components)
}

func (s *Server) handleGetComponentsYAML(w http.ResponseWriter, r *http.Request) {
	components, err := s.store.GetAllComponents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	enc := yamlEncoder(w)
	for _, c := range components {
		_ = enc.Encode(c)
	}
}

func (s *Server) handlePostComponentsYAML(w http.ResponseWriter, r *http.Request) {
	docs, skipped, err := models.ParseDocuments(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	now := time.Now()
	components := make([]models.ScalingComponentDefinition, 0, len(docs))
	for _, d := range docs {
		if d.Kind != models.DocumentScalingComponent {
			skipped = append(skipped, "document "+d.Raw.ID+" is not kind ScalingComponent, skipped on this endpoint")
			continue
		}
		c, err := d.ToScalingComponentDefinition(now)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		components = append(components, c)
	}
	if err := s.store.SyncComponents(r.Context(), components); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"synced": len(components), "skipped": skipped})
}

func (s *Server) handleGetPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.store.GetAllPlans(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (s *Server) handleGetPlansYAML(w http.ResponseWriter, r *http.Request) {
	plans, err := s.store.GetAllPlans(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	enc := yamlEncoder(w)
	for _, p := range plans {
		_ = enc.Encode(p)
	}
}

func (s *Server) handlePostPlansYAML(w http.ResponseWriter, r *http.Request) {
	docs, skipped, err := models.ParseDocuments(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	now := time.Now()
	plans := make([]models.ScalingPlanDefinition, 0, len(docs))
	for _, d := range docs {
		if d.Kind != models.DocumentScalingPlan {
			skipped = append(skipped, "document "+d.Raw.ID+" is not kind ScalingPlan, skipped on this endpoint")
			continue
		}
		p, err := d.ToScalingPlanDefinition(now)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		plans = append(plans, p)
	}
	// plans are insert-or-update (spec §4.B), unlike metrics/components.
	if err := s.store.UpsertPlans(r.Context(), plans); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"synced": len(plans), "skipped": skipped})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
