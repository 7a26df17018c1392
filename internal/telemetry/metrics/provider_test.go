package metrics

import (
	"context"
	"testing"
)

func TestPrometheusProviderCounterIncrements(t *testing.T) {
	p := NewPrometheusProvider(nil)
	c := p.Counter("wavectl_test_counter", "test counter", "kind")
	c.Inc("aws-ecs")
	c.Inc("aws-ecs")

	// Re-requesting the same name returns the same underlying vector.
	c2 := p.Counter("wavectl_test_counter", "test counter", "kind")
	c2.Inc("aws-ecs")
}

func TestPrometheusProviderRejectsInvalidName(t *testing.T) {
	p := NewPrometheusProvider(nil)
	c := p.Counter("not a valid name", "help")
	// Should not panic; returns a noop collector.
	c.Inc()
}

func TestNoopProviderDoesNothing(t *testing.T) {
	p := NewNoopProvider()
	p.Counter("x", "help").Inc()
	p.Gauge("y", "help").Set(1)
	p.Histogram("z", "help", nil).Observe(1)
}

func TestOTelProviderRecordsWithoutPanicking(t *testing.T) {
	p := NewOTelProvider()
	p.Counter("wavectl_otel_counter", "test counter", "kind").Inc("aws-ecs")
	p.Gauge("wavectl_otel_gauge", "test gauge").Set(3)
	p.Gauge("wavectl_otel_gauge", "test gauge").Add(1)
	p.Histogram("wavectl_otel_histogram", "test histogram", nil).Observe(0.5)

	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestNewProviderSelectsBackend(t *testing.T) {
	if _, h := NewProvider("prometheus"); h == nil {
		t.Fatal("prometheus backend should expose an HTTP handler")
	}
	if p, h := NewProvider("otel"); h != nil {
		t.Fatalf("otel backend should expose no HTTP handler, got %v", h)
	} else if _, ok := p.(*OTelProvider); !ok {
		t.Fatalf("otel backend returned %T, want *OTelProvider", p)
	}
}
