// Package netfunnel implements the netfunnel Scaling Driver Registry
// driver: a simple HTTP control-plane call setting a traffic funnel's
// max_inflow. There is no public SDK for this (it is a bespoke in-house
// system in the original deployment this spec was distilled from), so
// this talks stdlib net/http directly rather than reaching for a
// third-party client — a correct stdlib-only case, not a corpus gap.
package netfunnel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"wavectl/internal/drivers/paramutil"
	"wavectl/pkg/models"
)

// Driver drives the netfunnel kind: POSTs {max_inflow} to the funnel's
// control endpoint.
type Driver struct {
	id       string
	endpoint string
	client   *http.Client
}

func New(id string, metadata map[string]any) (*Driver, error) {
	endpoint, err := paramutil.RequireString(metadata, "endpoint")
	if err != nil {
		return nil, models.NewConfigError("netfunnel metadata", err)
	}
	return &Driver{id: id, endpoint: endpoint, client: &http.Client{Timeout: 5 * time.Second}}, nil
}

func (d *Driver) Kind() string { return "netfunnel" }
func (d *Driver) ID() string   { return d.id }

func (d *Driver) Apply(ctx context.Context, params map[string]any) error {
	maxInflow, ok := paramutil.Int(params, "max_inflow")
	if !ok {
		return models.NewConfigError("netfunnel params", fmt.Errorf("max_inflow is required"))
	}

	body, err := json.Marshal(map[string]int{"max_inflow": maxInflow})
	if err != nil {
		return fmt.Errorf("netfunnel: marshal body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("netfunnel: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return models.NewTransientError("netfunnel", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return models.NewTransientError("netfunnel", fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return models.NewPermanentError("netfunnel", fmt.Errorf("status %d", resp.StatusCode))
	default:
		return nil
	}
}
