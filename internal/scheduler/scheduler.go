// Package scheduler implements the Plan Scheduler: one cooperative task
// per enabled plan, ticking at a fixed interval, selecting at most one
// eligible plan item per tick, dispatching its components, and recording
// and notifying the outcome (spec §4.F).
//
// The per-plan-goroutine-with-cancellable-context shape mirrors the
// teacher's engine worker loops (engine/internal/runtime/runtime.go):
// one long-lived task per owned unit of work, stopped by cancelling its
// context rather than by forcibly tearing down state.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"wavectl/internal/expr"
	"wavectl/internal/metricupdater"
	"wavectl/internal/telemetry/logging"
	"wavectl/internal/webhook"
	"wavectl/pkg/models"
)

// DefaultInterval is the tick period spec §4.F fixes absent an override.
const DefaultInterval = time.Second

// ExprHost builds evaluators, matching *expr.Host's own signature. A tick
// builds one per expression-gated item in selection and one per
// dispatched component; they are not shared across the tick. The
// Metric Updater's snapshot is not threaded through here directly: it is
// read inside E's get()/getValues() host functions, which already close
// over the metric source at construction.
type ExprHost interface {
	NewEvaluator(ctx context.Context, globals map[string]any) (*expr.Evaluator, error)
}

// Drivers is the dispatch side of the Scaling Driver Registry the
// scheduler invokes, matching *drivers.Registry's own signature.
type Drivers interface {
	ApplyTo(ctx context.Context, componentID string, params map[string]any) error

	// CurrentStateOf fetches componentID's current resource state
	// ($desired/$min/$max) so "$"-prefixed expression params can resolve
	// against it (spec §8 scenario 4).
	CurrentStateOf(ctx context.Context, componentID string, params map[string]any) (map[string]float64, error)
}

// MetricSnapshot is the Metric Updater's read side: the scheduler records
// the same last-minute window E's get()/getValues() evaluate against,
// rather than standing the plan's own variables in for it, matching
// *metricupdater.Updater's own signature.
type MetricSnapshot interface {
	Current() *metricupdater.Snapshot
}

// History is the append side of the History Log.
type History interface {
	Append(ctx context.Context, exec models.PlanExecution) error
}

// Notifier is the Webhook Fanout's dispatch side.
type Notifier interface {
	Notify(ctx context.Context, targets []models.WebhookTarget, planID, planItemID string, outcomes []webhook.ComponentOutcome)
}

// Mapper renders templated strings/trees against the Variable Mapper's
// current source set, matching *varmap.Mapper's own signature.
type Mapper interface {
	RenderValue(v any) any
}

// Deps bundles every component the scheduler dispatches through.
type Deps struct {
	Expr     ExprHost
	Drivers  Drivers
	History  History
	Notifier Notifier
	Mapper   Mapper
	Metrics  MetricSnapshot
	Log      logging.Logger
}

// Task runs one plan's tick loop. Construct via NewTask; Run blocks until
// ctx is cancelled.
type Task struct {
	plan     models.ScalingPlanDefinition
	deps     Deps
	interval time.Duration

	mu          sync.Mutex
	lastFiredAt map[string]time.Time // plan item id -> last successful selection

	cronCache map[string]cron.Schedule
}

// NewTask constructs a Task for plan, ticking at interval (DefaultInterval
// if interval <= 0).
func NewTask(plan models.ScalingPlanDefinition, deps Deps, interval time.Duration) *Task {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Task{
		plan:        plan,
		deps:        deps,
		interval:    interval,
		lastFiredAt: make(map[string]time.Time),
		cronCache:   make(map[string]cron.Schedule),
	}
}

// Run loops until ctx is cancelled, ticking every interval. Each tick's
// errors are logged, never fatal — the loop only exits on cancellation
// (spec §7 "plan loop never dies on user-induced errors").
func (t *Task) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

// tick runs one full cycle: select, dispatch, record, notify, update
// cooldown (spec §4.F steps 2-6).
func (t *Task) tick(ctx context.Context) {
	now := time.Now()
	item, ok := t.selectItem(ctx, now)
	if !ok {
		return
	}

	outcomes, resolvedParams, failMessage := t.dispatch(ctx, item)
	t.recordAndNotify(ctx, item, outcomes, resolvedParams, failMessage)

	t.mu.Lock()
	t.lastFiredAt[item.ID] = now
	t.mu.Unlock()
}

// selectItem implements SCH-1: the highest-priority eligible item not in
// cooldown, or ok=false if nothing qualifies this tick.
func (t *Task) selectItem(ctx context.Context, now time.Time) (models.PlanItem, bool) {
	globals := t.globals()

	eligible := make([]models.PlanItem, 0, len(t.plan.Plans))
	for _, item := range t.plan.Plans {
		ok, err := t.isEligible(ctx, item, now, globals)
		if err != nil {
			t.deps.Log.WarnCtx(ctx, "scheduler: eligibility check failed, item skipped",
				"plan_id", t.plan.ID, "plan_item_id", item.ID, "error", err)
			continue
		}
		if ok {
			eligible = append(eligible, item)
		}
	}
	if len(eligible) == 0 {
		return models.PlanItem{}, false
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Priority > eligible[j].Priority
	})

	for _, item := range eligible {
		if t.inCooldown(item, now) {
			continue
		}
		return item, true
	}
	return models.PlanItem{}, false
}

func (t *Task) inCooldown(item models.PlanItem, now time.Time) bool {
	if item.Cooldown <= 0 {
		return false
	}
	t.mu.Lock()
	last, ok := t.lastFiredAt[item.ID]
	t.mu.Unlock()
	if !ok {
		return false
	}
	return last.Add(item.Cooldown).After(now)
}

// isEligible implements spec §4.F step 2: cron and expression gates are
// ANDed when both are present (an explicit open question, decided in
// DESIGN.md); an item with neither is always eligible.
func (t *Task) isEligible(ctx context.Context, item models.PlanItem, now time.Time, globals map[string]any) (bool, error) {
	if !item.HasPredicate() {
		return true, nil
	}
	if item.CronExpression != "" {
		ok, err := t.cronMatches(item.CronExpression, now)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	if item.Expression != "" {
		ev, err := t.deps.Expr.NewEvaluator(ctx, globals)
		if err != nil {
			return false, err
		}
		ok, err := ev.Bool(item.Expression)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// cronMatches reports whether a scheduled fire for expr falls within the
// tick interval ending at now: (now-interval, now]. The plan's
// metadata.timezone override (UTC otherwise) governs the comparison, per
// spec §4.F.
func (t *Task) cronMatches(cronExpr string, now time.Time) (bool, error) {
	t.mu.Lock()
	schedule, ok := t.cronCache[cronExpr]
	t.mu.Unlock()
	if !ok {
		parsed, err := cron.ParseStandard(cronExpr)
		if err != nil {
			return false, models.NewConfigError("invalid cron_expression: "+cronExpr, err)
		}
		schedule = parsed
		t.mu.Lock()
		t.cronCache[cronExpr] = schedule
		t.mu.Unlock()
	}

	loc := time.UTC
	if tz, ok := t.plan.Timezone(); ok {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}
	localNow := now.In(loc)
	windowStart := localNow.Add(-t.interval)
	next := schedule.Next(windowStart)
	return !next.After(localNow), nil
}

// globals composes the expression context's variable bindings: the plan's
// own variables only. The latest metric snapshot is not injected here; it
// is read via E's host functions, and the snapshot lives behind I.
func (t *Task) globals() map[string]any {
	globals := make(map[string]any, len(t.plan.Variables))
	for k, v := range t.plan.Variables {
		globals[k] = v
	}
	return globals
}

// dispatch implements spec §4.F step 4: render, resolve expression
// params, and invoke D for every component in item, in definition order,
// collecting per-component outcomes without aborting on the first
// failure. It also returns the fully resolved param set per component,
// for recordAndNotify to audit.
func (t *Task) dispatch(ctx context.Context, item models.PlanItem) ([]webhook.ComponentOutcome, map[string]map[string]any, string) {
	outcomes := make([]webhook.ComponentOutcome, 0, len(item.ScalingComponents))
	resolved := make(map[string]map[string]any, len(item.ScalingComponents))
	var failParts []string

	planGlobals := t.globals()

	tracer := otel.Tracer("wavectl/scheduler")
	for _, ref := range item.ScalingComponents {
		spanCtx, span := tracer.Start(ctx, "scheduler.dispatch_component", oteltrace.WithAttributes(
			attribute.String("plan_id", t.plan.ID),
			attribute.String("plan_item_id", item.ID),
			attribute.String("component_id", ref.ComponentID),
		))

		rendered, ok := t.deps.Mapper.RenderValue(ref.Params).(map[string]any)
		if !ok {
			rendered = map[string]any{}
		}

		ev, evErr := t.componentEvaluator(spanCtx, ref.ComponentID, rendered, planGlobals)
		if evErr == nil {
			rendered = resolveExpressionParams(ev, rendered)
		}
		resolved[ref.ComponentID] = rendered

		var err error
		if evErr != nil {
			err = evErr
		} else {
			err = t.deps.Drivers.ApplyTo(spanCtx, ref.ComponentID, rendered)
		}

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()

		outcomes = append(outcomes, webhook.ComponentOutcome{ComponentID: ref.ComponentID, Err: err})
		if err != nil {
			failParts = append(failParts, ref.ComponentID+": "+err.Error())
		}
	}

	failMessage := ""
	if len(failParts) > 0 {
		failMessage = strings.Join(failParts, "; ")
	}
	return outcomes, resolved, failMessage
}

// componentEvaluator builds the evaluator componentID's params resolve
// against: the plan's own variable globals, plus — only when rendered
// actually carries a "$"-prefixed expression param — componentID's current
// driver state ($desired/$min/$max) fetched via D's CurrentStateOf (spec §8
// scenario 4's `'$desired + 1'` form). Components with no expression params
// never pay for a driver round trip.
func (t *Task) componentEvaluator(ctx context.Context, componentID string, rendered map[string]any, planGlobals map[string]any) (*expr.Evaluator, error) {
	if !hasExpressionParam(rendered) {
		return t.deps.Expr.NewEvaluator(ctx, planGlobals)
	}

	state, err := t.deps.Drivers.CurrentStateOf(ctx, componentID, rendered)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]any, len(planGlobals)+len(state))
	for k, v := range planGlobals {
		merged[k] = v
	}
	for k, v := range state {
		merged[k] = v
	}
	return t.deps.Expr.NewEvaluator(ctx, merged)
}

func hasExpressionParam(params map[string]any) bool {
	for _, v := range params {
		if s, ok := v.(string); ok && strings.HasPrefix(s, "$") {
			return true
		}
	}
	return false
}

// resolveExpressionParams replaces any string param value starting with
// "$" with the numeric result of evaluating the remainder as a JS
// expression against ev (spec §8 scenario 4's `'$desired + 1'` form).
func resolveExpressionParams(ev *expr.Evaluator, params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		s, ok := v.(string)
		if !ok || !strings.HasPrefix(s, "$") {
			out[k] = v
			continue
		}
		n, err := ev.Number(strings.TrimPrefix(s, "$"))
		if err != nil {
			out[k] = v
			continue
		}
		out[k] = n
	}
	return out
}

// recordAndNotify implements spec §4.F step 5: append the PlanExecution
// and fan out over G.
func (t *Task) recordAndNotify(ctx context.Context, item models.PlanItem, outcomes []webhook.ComponentOutcome, resolvedParams map[string]map[string]any, failMessage string) {
	itemJSON, _ := marshalCompact(item)

	// The Metric Updater's last-minute snapshot (I) is the same window
	// get()/getValues() (E) evaluated against this tick; it is recorded
	// verbatim rather than the plan's own variables, which carry nothing
	// about what metric data actually drove the decision.
	var metricValues map[string][]models.MetricValue
	if t.deps.Metrics != nil {
		metricValues = t.deps.Metrics.Current().Values
	}
	metricValuesJSON, _ := marshalCompact(metricValues)
	metadataJSON, _ := marshalCompact(resolvedParams)
	id := ulid.Make().String()

	exec := models.PlanExecution{
		ID:                 id,
		PlanDBID:           t.plan.DBID,
		PlanID:             t.plan.ID,
		PlanItemJSON:       itemJSON,
		MetricValuesJSON:   metricValuesJSON,
		MetadataValuesJSON: metadataJSON,
		FailMessage:        failMessage,
	}
	if err := t.deps.History.Append(ctx, exec); err != nil {
		t.deps.Log.ErrorCtx(ctx, "scheduler: failed to append history row",
			"plan_id", t.plan.ID, "plan_item_id", item.ID, "error", err)
	}

	if targets := t.plan.Webhooks(); len(targets) > 0 {
		t.deps.Notifier.Notify(ctx, targets, t.plan.ID, item.ID, outcomes)
	}
}

func marshalCompact(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("scheduler: marshal: %w", err)
	}
	return string(b), nil
}
