// Package metrics wraps prometheus/client_golang behind the small
// Provider interface the teacher's telemetry/metrics package exposes, so
// components depend on an interface rather than the Prometheus client
// directly.
package metrics

import (
	"fmt"
	"net/http"
	"regexp"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

var metricNameRE = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)

// Provider is the minimal metrics surface wavectl's components depend on.
type Provider interface {
	Counter(name, help string, labels ...string) Counter
	Gauge(name, help string, labels ...string) Gauge
	Histogram(name, help string, buckets []float64, labels ...string) Histogram
}

type Counter interface{ Inc(labelValues ...string) }
type Gauge interface {
	Set(v float64, labelValues ...string)
	Add(delta float64, labelValues ...string)
}
type Histogram interface{ Observe(v float64, labelValues ...string) }

// PrometheusProvider implements Provider backed by a prometheus.Registry.
type PrometheusProvider struct {
	reg *prom.Registry

	mu         sync.Mutex
	counters   map[string]*prom.CounterVec
	gauges     map[string]*prom.GaugeVec
	histograms map[string]*prom.HistogramVec
}

// NewPrometheusProvider constructs a provider. A nil registry creates a
// fresh one.
func NewPrometheusProvider(reg *prom.Registry) *PrometheusProvider {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	return &PrometheusProvider{
		reg:        reg,
		counters:   make(map[string]*prom.CounterVec),
		gauges:     make(map[string]*prom.GaugeVec),
		histograms: make(map[string]*prom.HistogramVec),
	}
}

// Handler exposes the registry over HTTP for the /metrics endpoint.
func (p *PrometheusProvider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

// NewProvider constructs the Provider named by backend ("prometheus" or
// "otel"), plus its HTTP exposition handler where one exists. The OTEL
// backend has none: it records into an exporter-less SDK MeterProvider
// until a deployment attaches a real exporter.
func NewProvider(backend string) (Provider, http.Handler) {
	if backend == "otel" {
		return NewOTelProvider(), nil
	}
	p := NewPrometheusProvider(nil)
	return p, p.Handler()
}

func validName(name string) error {
	if !metricNameRE.MatchString(name) {
		return fmt.Errorf("metrics: invalid metric name %q", name)
	}
	return nil
}

func (p *PrometheusProvider) Counter(name, help string, labels ...string) Counter {
	if err := validName(name); err != nil {
		return noopCounter{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if vec, ok := p.counters[name]; ok {
		return &promCounter{vec: vec}
	}
	vec := prom.NewCounterVec(prom.CounterOpts{Name: name, Help: help}, labels)
	if err := p.reg.Register(vec); err != nil {
		if are, ok := err.(prom.AlreadyRegisteredError); ok {
			vec = are.ExistingCollector.(*prom.CounterVec)
		} else {
			return noopCounter{}
		}
	}
	p.counters[name] = vec
	return &promCounter{vec: vec}
}

func (p *PrometheusProvider) Gauge(name, help string, labels ...string) Gauge {
	if err := validName(name); err != nil {
		return noopGauge{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if vec, ok := p.gauges[name]; ok {
		return &promGauge{vec: vec}
	}
	vec := prom.NewGaugeVec(prom.GaugeOpts{Name: name, Help: help}, labels)
	if err := p.reg.Register(vec); err != nil {
		if are, ok := err.(prom.AlreadyRegisteredError); ok {
			vec = are.ExistingCollector.(*prom.GaugeVec)
		} else {
			return noopGauge{}
		}
	}
	p.gauges[name] = vec
	return &promGauge{vec: vec}
}

func (p *PrometheusProvider) Histogram(name, help string, buckets []float64, labels ...string) Histogram {
	if err := validName(name); err != nil {
		return noopHistogram{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if vec, ok := p.histograms[name]; ok {
		return &promHistogram{vec: vec}
	}
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}
	vec := prom.NewHistogramVec(prom.HistogramOpts{Name: name, Help: help, Buckets: buckets}, labels)
	if err := p.reg.Register(vec); err != nil {
		if are, ok := err.(prom.AlreadyRegisteredError); ok {
			vec = are.ExistingCollector.(*prom.HistogramVec)
		} else {
			return noopHistogram{}
		}
	}
	p.histograms[name] = vec
	return &promHistogram{vec: vec}
}

type promCounter struct{ vec *prom.CounterVec }

func (c *promCounter) Inc(labelValues ...string) { c.vec.WithLabelValues(labelValues...).Inc() }

type promGauge struct{ vec *prom.GaugeVec }

func (g *promGauge) Set(v float64, labelValues ...string) { g.vec.WithLabelValues(labelValues...).Set(v) }
func (g *promGauge) Add(delta float64, labelValues ...string) {
	g.vec.WithLabelValues(labelValues...).Add(delta)
}

type promHistogram struct{ vec *prom.HistogramVec }

func (h *promHistogram) Observe(v float64, labelValues ...string) {
	h.vec.WithLabelValues(labelValues...).Observe(v)
}

type noopCounter struct{}

func (noopCounter) Inc(...string) {}

type noopGauge struct{}

func (noopGauge) Set(float64, ...string) {}
func (noopGauge) Add(float64, ...string) {}

type noopHistogram struct{}

func (noopHistogram) Observe(float64, ...string) {}

// NewNoopProvider returns a Provider whose collectors silently discard
// observations, used when metrics are disabled.
func NewNoopProvider() Provider { return noopProvider{} }

type noopProvider struct{}

func (noopProvider) Counter(string, string, ...string) Counter        { return noopCounter{} }
func (noopProvider) Gauge(string, string, ...string) Gauge            { return noopGauge{} }
func (noopProvider) Histogram(string, string, []float64, ...string) Histogram {
	return noopHistogram{}
}
