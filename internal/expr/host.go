// Package expr implements the Expression Host: a sandboxed JS evaluator
// exposing get()/getValues() host functions backed by the Metric Buffer.
//
// There is no teacher file for an embedded-JS host; dop251/goja is named as
// an out-of-pack ecosystem dependency in DESIGN.md. Each Host.NewEvaluator
// call builds a fresh goja.Runtime. The scheduler calls it once per
// expression-gated plan item during selection and once per dispatched
// component, so a tick's expressions do not share one runtime.
package expr

import (
	"context"
	"fmt"
	"time"

	"github.com/dop251/goja"

	"wavectl/internal/metricbuffer"
	"wavectl/pkg/models"
)

// MetricSource is the subset of *metricbuffer.Buffer the host needs.
type MetricSource interface {
	RangeByMetric(metricID string, fromMS, toMS int64) ([]metricbuffer.RangeEntry, error)
}

// Host evaluates JS expressions against a metric source.
type Host struct {
	buf MetricSource
}

// New constructs a Host reading from buf.
func New(buf MetricSource) *Host {
	return &Host{buf: buf}
}

// Query is the parsed shape of get()/getValues()'s single object argument.
type Query struct {
	MetricID  string
	Name      string
	HasName   bool
	Tags      map[string]string
	Stats     string
	PeriodSec int
}

// Evaluator wraps one goja.Runtime, pre-seeded with globals and the
// get/getValues host functions.
type Evaluator struct {
	rt *goja.Runtime
}

// NewEvaluator builds an Evaluator: globals (plan variables, expression
// params) become top-level JS bindings, and get()/getValues() are wired to
// query ctx's metric window relative to time.Now() at call time.
func (h *Host) NewEvaluator(ctx context.Context, globals map[string]any) (*Evaluator, error) {
	rt := goja.New()
	for name, value := range globals {
		if err := rt.Set(name, value); err != nil {
			return nil, fmt.Errorf("expr: set global %q: %w", name, err)
		}
	}
	if err := rt.Set("get", h.getFunc(ctx, rt)); err != nil {
		return nil, fmt.Errorf("expr: wire get(): %w", err)
	}
	if err := rt.Set("getValues", h.getValuesFunc(ctx, rt)); err != nil {
		return nil, fmt.Errorf("expr: wire getValues(): %w", err)
	}
	return &Evaluator{rt: rt}, nil
}

// Bool runs source and coerces the result to a JS boolean (used for plan
// item predicates).
func (ev *Evaluator) Bool(source string) (bool, error) {
	v, err := ev.rt.RunString(source)
	if err != nil {
		return false, models.NewExpressionError(source, err)
	}
	return v.ToBoolean(), nil
}

// Number runs source and coerces the result to a float64 (used for driver
// expression params such as EC2 ASG's desired count).
func (ev *Evaluator) Number(source string) (float64, error) {
	v, err := ev.rt.RunString(source)
	if err != nil {
		return 0, models.NewExpressionError(source, err)
	}
	return v.ToFloat(), nil
}

func (h *Host) getFunc(ctx context.Context, rt *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		q, err := parseQueryArg(call)
		if err != nil {
			panic(rt.NewGoError(err))
		}
		value, err := h.resolveGet(ctx, q)
		if err != nil {
			panic(rt.NewGoError(err))
		}
		return rt.ToValue(value)
	}
}

func (h *Host) getValuesFunc(ctx context.Context, rt *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		q, err := parseQueryArg(call)
		if err != nil {
			panic(rt.NewGoError(err))
		}
		values, err := h.collect(ctx, q)
		if err != nil {
			panic(rt.NewGoError(err))
		}
		return rt.ToValue(values)
	}
}

func parseQueryArg(call goja.FunctionCall) (Query, error) {
	if len(call.Arguments) == 0 {
		return Query{}, fmt.Errorf("get: expects one object argument")
	}
	raw, ok := call.Argument(0).Export().(map[string]interface{})
	if !ok {
		return Query{}, fmt.Errorf("get: argument must be an object")
	}

	q := Query{Stats: "latest", PeriodSec: 300}
	if v, ok := raw["metric_id"].(string); ok {
		q.MetricID = v
	}
	if q.MetricID == "" {
		return Query{}, fmt.Errorf("get: metric_id is required")
	}
	if v, ok := raw["name"].(string); ok {
		q.Name, q.HasName = v, true
	}
	if v, ok := raw["tags"].(map[string]interface{}); ok {
		q.Tags = make(map[string]string, len(v))
		for k, vv := range v {
			q.Tags[k] = fmt.Sprint(vv)
		}
	}
	if v, ok := raw["stats"].(string); ok {
		q.Stats = v
	}
	if v, ok := raw["period_sec"]; ok {
		switch n := v.(type) {
		case int64:
			q.PeriodSec = int(n)
		case float64:
			q.PeriodSec = int(n)
		}
	}
	return q, nil
}

func (h *Host) resolveGet(ctx context.Context, q Query) (float64, error) {
	values, err := h.collect(ctx, q)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, models.NewMetricNotAvailableError(q.MetricID)
	}
	return reduce(q.Stats, values)
}

// collect queries [now-period_sec, now] and flattens matching entries into
// a chronological value slice (spec §4.E steps 1-3).
func (h *Host) collect(ctx context.Context, q Query) ([]float64, error) {
	now := time.Now().UnixMilli()
	from := now - int64(q.PeriodSec)*1000

	ranges, err := h.buf.RangeByMetric(q.MetricID, from, now)
	if err != nil {
		return nil, fmt.Errorf("expr: query %s: %w", q.MetricID, err)
	}

	var values []float64
	for _, r := range ranges {
		for _, e := range r.Entries {
			if q.HasName && e.Name != q.Name {
				continue
			}
			if !tagsMatch(q.Tags, e.Tags) {
				continue
			}
			values = append(values, e.Value)
		}
	}
	return values, nil
}

func tagsMatch(want, got map[string]string) bool {
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}
