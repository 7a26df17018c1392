package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// OTelProvider implements Provider backed by an OTEL MeterProvider, adapted
// from the teacher's own OTEL metrics bridge (engine/telemetry/metrics).
// It is exporter-less by default: instruments record into the SDK's
// in-memory aggregation, ready for a deployment to attach a real exporter
// later, same as the teacher's "zero-config" stance.
type OTelProvider struct {
	mp    *sdkmetric.MeterProvider
	meter metric.Meter

	mu         sync.Mutex
	counters   map[string]metric.Float64Counter
	gauges     map[string]metric.Float64UpDownCounter
	histograms map[string]metric.Float64Histogram
}

// NewOTelProvider constructs a Provider over a fresh, exporter-less
// sdkmetric.MeterProvider.
func NewOTelProvider() *OTelProvider {
	mp := sdkmetric.NewMeterProvider()
	return &OTelProvider{
		mp:         mp,
		meter:      mp.Meter("wavectl"),
		counters:   make(map[string]metric.Float64Counter),
		gauges:     make(map[string]metric.Float64UpDownCounter),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

func (p *OTelProvider) Counter(name, help string, labels ...string) Counter {
	if err := validName(name); err != nil {
		return noopCounter{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	inst, ok := p.counters[name]
	if !ok {
		var err error
		inst, err = p.meter.Float64Counter(name, metric.WithDescription(help))
		if err != nil {
			return noopCounter{}
		}
		p.counters[name] = inst
	}
	return &otelCounter{inst: inst, labelKeys: labels}
}

func (p *OTelProvider) Gauge(name, help string, labels ...string) Gauge {
	if err := validName(name); err != nil {
		return noopGauge{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	inst, ok := p.gauges[name]
	if !ok {
		var err error
		inst, err = p.meter.Float64UpDownCounter(name, metric.WithDescription(help))
		if err != nil {
			return noopGauge{}
		}
		p.gauges[name] = inst
	}
	return &otelGauge{inst: inst, labelKeys: labels}
}

func (p *OTelProvider) Histogram(name, help string, buckets []float64, labels ...string) Histogram {
	if err := validName(name); err != nil {
		return noopHistogram{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	inst, ok := p.histograms[name]
	if !ok {
		var err error
		inst, err = p.meter.Float64Histogram(name, metric.WithDescription(help))
		if err != nil {
			return noopHistogram{}
		}
		p.histograms[name] = inst
	}
	return &otelHistogram{inst: inst, labelKeys: labels}
}

// Shutdown flushes and releases the underlying MeterProvider.
func (p *OTelProvider) Shutdown(ctx context.Context) error {
	return p.mp.Shutdown(ctx)
}

type otelCounter struct {
	inst      metric.Float64Counter
	labelKeys []string
}

func (c *otelCounter) Inc(labelValues ...string) {
	c.inst.Add(context.Background(), 1, metric.WithAttributes(toAttributes(c.labelKeys, labelValues)...))
}

type otelGauge struct {
	inst      metric.Float64UpDownCounter
	labelKeys []string
}

func (g *otelGauge) Set(v float64, labelValues ...string) {
	// UpDownCounter has no Set semantics; record the delta from zero each
	// call, matching the teacher's own "simulate Set via delta" approach.
	g.inst.Add(context.Background(), v, metric.WithAttributes(toAttributes(g.labelKeys, labelValues)...))
}

func (g *otelGauge) Add(delta float64, labelValues ...string) {
	g.inst.Add(context.Background(), delta, metric.WithAttributes(toAttributes(g.labelKeys, labelValues)...))
}

type otelHistogram struct {
	inst      metric.Float64Histogram
	labelKeys []string
}

func (h *otelHistogram) Observe(v float64, labelValues ...string) {
	h.inst.Record(context.Background(), v, metric.WithAttributes(toAttributes(h.labelKeys, labelValues)...))
}

func toAttributes(keys, values []string) []attribute.KeyValue {
	n := len(keys)
	if len(values) < n {
		n = len(values)
	}
	out := make([]attribute.KeyValue, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, attribute.String(keys[i], values[i]))
	}
	return out
}
