// Package spcomm defines the hub and spoke runtime objects driven by the
// orchestrator, along with reference implementations.
//
// Every rank owns one SPCommunicator. The hub of a cylinder coordinates
// its spokes through a shared window and signals termination; spokes run
// until they observe that signal.
package spcomm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ShayCichocki/hubspoke/internal/comm"
	"github.com/ShayCichocki/hubspoke/internal/engine"
	"github.com/ShayCichocki/hubspoke/pkg/models"
)

// SPCommunicator is the lifecycle contract shared by hubs and spokes.
type SPCommunicator interface {
	// SetupSharedState opens the cylinder's window. Collective over the cylinder.
	SetupSharedState(ctx context.Context) error
	// Main runs the algorithm until it finishes.
	Main(ctx context.Context) error
	// Finalize does deferred local bookkeeping.
	Finalize(ctx context.Context) error
	// HubFinalize lets the hub consume values posted before the final
	// barrier. Spokes implement it as a no-op.
	HubFinalize(ctx context.Context) error
	// ReleaseSharedState closes the window.
	ReleaseSharedState(ctx context.Context) error
}

// Hub adds the hub-only lifecycle steps.
type Hub interface {
	SPCommunicator
	// SetupHub runs after the window exists, before Main.
	SetupHub(ctx context.Context) error
	// SendTerminate tells the cylinder's spokes to stop.
	SendTerminate(ctx context.Context) error
}

// Base carries what every hub or spoke is built from.
type Base struct {
	Engine   engine.Engine
	World    comm.Communicator
	Cylinder comm.Communicator
	RoleComm comm.Communicator
}

// HubFactory builds a hub. It sees the full spoke list.
type HubFactory func(b Base, spokes []models.SpokeSpec, kwargs models.Kwargs) (Hub, error)

// SpokeFactory builds a spoke.
type SpokeFactory func(b Base, kwargs models.Kwargs) (SPCommunicator, error)

// Registry maps hub_class and spoke_class selectors to factories.
type Registry struct {
	mu     sync.RWMutex
	hubs   map[string]HubFactory
	spokes map[string]SpokeFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		hubs:   make(map[string]HubFactory),
		spokes: make(map[string]SpokeFactory),
	}
}

// DefaultRegistry returns a registry with the reference hub and spoke.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterHub(ConvergenceHubName, NewConvergenceHub)
	r.RegisterSpoke(BoundSpokeName, NewBoundSpoke)
	return r
}

// RegisterHub adds or replaces a hub factory.
func (r *Registry) RegisterHub(name string, f HubFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hubs[name] = f
}

// RegisterSpoke adds or replaces a spoke factory.
func (r *Registry) RegisterSpoke(name string, f SpokeFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spokes[name] = f
}

// HasHub reports whether a hub is registered under name.
func (r *Registry) HasHub(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.hubs[name]
	return ok
}

// HasSpoke reports whether a spoke is registered under name.
func (r *Registry) HasSpoke(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.spokes[name]
	return ok
}

// Names lists registered hubs and spokes, sorted.
func (r *Registry) Names() (hubs, spokes []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name := range r.hubs {
		hubs = append(hubs, name)
	}
	for name := range r.spokes {
		spokes = append(spokes, name)
	}
	sort.Strings(hubs)
	sort.Strings(spokes)
	return hubs, spokes
}

// NewHub constructs the hub registered under name.
func (r *Registry) NewHub(name string, b Base, spokes []models.SpokeSpec, kwargs models.Kwargs) (Hub, error) {
	r.mu.RLock()
	f, ok := r.hubs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown hub %q", name)
	}
	return f(b, spokes, kwargs)
}

// NewSpoke constructs the spoke registered under name.
func (r *Registry) NewSpoke(name string, b Base, kwargs models.Kwargs) (SPCommunicator, error) {
	r.mu.RLock()
	f, ok := r.spokes[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown spoke %q", name)
	}
	return f(b, kwargs)
}
