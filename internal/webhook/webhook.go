// Package webhook implements the Webhook Fanout: fire-and-forget
// notification of plan outcomes to HTTP and Slack targets.
//
// The bounded, non-blocking delivery discipline is modeled directly on the
// teacher's telemetry/events bus (engine/telemetry/events/events.go):
// Notify never blocks the caller, one buffered worker per target URL, and
// a full worker queue drops the newest notification rather than stalling
// the plan scheduler tick that produced it.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/slack-go/slack"

	"wavectl/internal/telemetry/logging"
	"wavectl/pkg/models"
)

// Payload is the flat event shape POSTed to HTTP targets, per spec §4.G.
type Payload struct {
	Timestamp        time.Time `json:"timestamp"`
	PlanID           string    `json:"plan_id"`
	PlanItemID       string    `json:"plan_item_id"`
	ScalingComponent string    `json:"scaling_component"`
	Status           string    `json:"status"` // "success" or "error"
	FailMessage      string    `json:"fail_message,omitempty"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ComponentOutcome is one component's dispatch result within a fired plan
// item; Fanout emits one Payload per (target, outcome) pair.
type ComponentOutcome struct {
	ComponentID string
	Err         error
}

func (o ComponentOutcome) payload(planID, planItemID string, ts time.Time) Payload {
	p := Payload{
		Timestamp: ts, PlanID: planID, PlanItemID: planItemID,
		ScalingComponent: o.ComponentID, Status: StatusSuccess,
	}
	if o.Err != nil {
		p.Status = StatusError
		p.FailMessage = o.Err.Error()
	}
	return p
}

// Fanout dispatches Payloads to configured webhook targets. The zero value
// is not usable; construct with New.
type Fanout struct {
	client    *http.Client
	log       logging.Logger
	queueSize int

	mu      sync.Mutex
	workers map[string]chan Payload // keyed by target URL
}

// New returns a ready Fanout. queueSize bounds each target's worker
// channel; 0 selects a small default.
func New(log logging.Logger, queueSize int) *Fanout {
	if log == nil {
		log = logging.New(nil)
	}
	if queueSize <= 0 {
		queueSize = 32
	}
	return &Fanout{
		client:    &http.Client{Timeout: 5 * time.Second},
		log:       log,
		queueSize: queueSize,
		workers:   make(map[string]chan Payload),
	}
}

// Notify fans out one Payload per (target, outcome) pair. It never blocks:
// each target has its own buffered worker, and a full worker queue drops
// the notification (logged, not escalated — fanout failures never affect
// the plan outcome, per spec §4.G).
func (f *Fanout) Notify(ctx context.Context, targets []models.WebhookTarget, planID, planItemID string, outcomes []ComponentOutcome) {
	if len(targets) == 0 || len(outcomes) == 0 {
		return
	}
	now := time.Now()
	for _, target := range targets {
		ch := f.workerFor(target)
		for _, outcome := range outcomes {
			select {
			case ch <- outcome.payload(planID, planItemID, now):
			default:
				f.log.WarnCtx(ctx, "webhook: dropped notification, target queue full",
					"target", target.URL, "plan_id", planID, "plan_item_id", planItemID)
			}
		}
	}
}

func (f *Fanout) workerFor(target models.WebhookTarget) chan Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.workers[target.URL]; ok {
		return ch
	}
	ch := make(chan Payload, f.queueSize)
	f.workers[target.URL] = ch
	go f.run(target, ch)
	return ch
}

func (f *Fanout) run(target models.WebhookTarget, ch chan Payload) {
	for payload := range ch {
		if err := f.deliver(target, payload); err != nil {
			f.log.WarnCtx(context.Background(), "webhook: delivery failed",
				"target", target.URL, "type", target.Type, "error", err)
		}
	}
}

func (f *Fanout) deliver(target models.WebhookTarget, payload Payload) error {
	var body []byte
	var err error
	switch target.Type {
	case "slack":
		body, err = json.Marshal(slackMessage(payload))
	default:
		body, err = json.Marshal(payload)
	}
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range target.Headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp.StatusCode)
	}
	return nil
}

type statusError int

func (e statusError) Error() string {
	return "webhook target returned non-2xx status"
}

// slackMessage renders a Payload as a block-kit message: a section block
// with the same fields laid out as YAML-formatted text, per spec §4.G.
func slackMessage(p Payload) slack.Message {
	text := "plan_id: " + p.PlanID + "\n" +
		"plan_item_id: " + p.PlanItemID + "\n" +
		"scaling_component: " + p.ScalingComponent + "\n" +
		"status: " + p.Status + "\n"
	if p.FailMessage != "" {
		text += "fail_message: " + p.FailMessage + "\n"
	}

	msg := slack.NewBlockMessage(
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, "```\n"+text+"```", false, false),
			nil, nil,
		),
	)
	return msg
}
