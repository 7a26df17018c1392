// Package drivers implements the Scaling Driver Registry: a polymorphic
// apply(params) actuator set keyed by component_kind, dispatched by
// component id. The shape — a small interface plus a map-backed registry,
// no inheritance — is grounded on the teacher's engine/strategies package.
package drivers

import (
	"context"
	"fmt"
	"sync"

	"wavectl/pkg/models"
)

// Driver is satisfied by every concrete actuator (spec §4.D).
type Driver interface {
	Kind() string
	ID() string
	Apply(ctx context.Context, params map[string]any) error
}

// CurrentStateProvider is an optional interface a Driver may implement to
// expose $desired/$min/$max (or a provider equivalent) for expression
// params. Drivers that don't implement it simply don't support expression
// params for their target fields.
type CurrentStateProvider interface {
	CurrentState(ctx context.Context, params map[string]any) (map[string]float64, error)
}

// Registry holds the live driver set, one instance per enabled
// ScalingComponentDefinition, keyed by component id. It is rebuilt
// wholesale by the Definition Synchroniser on every resync and read
// concurrently by the Plan Scheduler.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]Driver
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Driver)}
}

// Replace atomically swaps in a freshly built driver set.
func (r *Registry) Replace(drivers []Driver) {
	byID := make(map[string]Driver, len(drivers))
	for _, d := range drivers {
		byID[d.ID()] = d
	}
	r.mu.Lock()
	r.byID = byID
	r.mu.Unlock()
}

func (r *Registry) lookup(componentID string) (Driver, error) {
	r.mu.RLock()
	d, ok := r.byID[componentID]
	r.mu.RUnlock()
	if !ok {
		return nil, models.NewUnknownComponentError(componentID)
	}
	return d, nil
}

// ApplyTo dispatches params to componentID's driver.
func (r *Registry) ApplyTo(ctx context.Context, componentID string, params map[string]any) error {
	d, err := r.lookup(componentID)
	if err != nil {
		return err
	}
	return d.Apply(ctx, params)
}

// CurrentStateOf fetches componentID's current resource state, used to
// seed the Expression Host's symbol table for expression-valued params.
func (r *Registry) CurrentStateOf(ctx context.Context, componentID string, params map[string]any) (map[string]float64, error) {
	d, err := r.lookup(componentID)
	if err != nil {
		return nil, err
	}
	csp, ok := d.(CurrentStateProvider)
	if !ok {
		return nil, models.NewExpressionError("current_state", fmt.Errorf("component %s's driver does not expose current state", componentID))
	}
	return csp.CurrentState(ctx, params)
}

// Len reports the number of registered drivers, mainly for diagnostics.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
