// Package engine is the seam between the hub/spoke runtime and the
// optimization engine attached to each rank. The runtime only constructs
// engines and asks them for per-iteration estimates; how an engine models
// or solves its scenarios is its own business.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ShayCichocki/hubspoke/internal/comm"
	"github.com/ShayCichocki/hubspoke/pkg/models"
)

// Estimate is an engine's view of the objective after one iteration.
// Outer bounds the optimum from the side the hub improves; Inner from the
// side spokes improve.
type Estimate struct {
	Outer float64
	Inner float64
}

// Gap returns Outer - Inner.
func (e Estimate) Gap() float64 {
	return e.Outer - e.Inner
}

// Engine performs the computational work of one rank. Iterate is
// collective over the role communicator the engine was built with.
type Engine interface {
	Iterate(ctx context.Context, k int) (Estimate, error)
}

// Factory builds an engine on one rank. roleComm groups every rank running
// the same role; the engine splits its scenario work across it.
type Factory func(ctx context.Context, roleComm comm.Communicator, opts models.Kwargs) (Engine, error)

// Registry maps opt_class selectors to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry holding the built-in engines.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(ScenarioMeanName, NewScenarioMean)
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names lists the registered selectors, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// New constructs the engine registered under name.
func (r *Registry) New(ctx context.Context, name string, roleComm comm.Communicator, opts models.Kwargs) (Engine, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown engine %q", name)
	}
	return f(ctx, roleComm, opts)
}
