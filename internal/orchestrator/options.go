package orchestrator

import (
	"github.com/ShayCichocki/hubspoke/internal/engine"
	"github.com/ShayCichocki/hubspoke/internal/spcomm"
	"github.com/ShayCichocki/hubspoke/internal/state"
)

// RankRecorder stores the outcome of each rank. *state.DB implements it.
type RankRecorder interface {
	RecordRank(rec state.RankRecord) error
}

// Option configures Run. Use With* functions to create Options.
type Option func(*runOptions)

type runOptions struct {
	registry *spcomm.Registry
	engines  *engine.Registry
	logger   *DebugLogger
	ledger   RankRecorder
	runID    string
	progress func(msg string)
	events   *EventEmitter
}

func defaultOptions() *runOptions {
	return &runOptions{
		registry: spcomm.DefaultRegistry(),
		engines:  engine.DefaultRegistry(),
		logger:   NopLogger(),
	}
}

func applyOptions(opts []Option) *runOptions {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithRegistry sets the hub and spoke constructors.
func WithRegistry(r *spcomm.Registry) Option {
	return func(o *runOptions) { o.registry = r }
}

// WithEngines sets the engine constructors.
func WithEngines(r *engine.Registry) Option {
	return func(o *runOptions) { o.engines = r }
}

// WithLogger sets the debug logger. Each rank logs through ForRank.
func WithLogger(l *DebugLogger) Option {
	return func(o *runOptions) { o.logger = l }
}

// WithLedger records every rank's placement and outcome under runID.
func WithLedger(rec RankRecorder, runID string) Option {
	return func(o *runOptions) {
		o.ledger = rec
		o.runID = runID
	}
}

// WithProgress sets a callback for the progress markers printed by global
// rank 0 at lifecycle milestones.
func WithProgress(fn func(msg string)) Option {
	return func(o *runOptions) { o.progress = fn }
}

// WithEvents sets the emitter ranks report phase changes to.
func WithEvents(e *EventEmitter) Option {
	return func(o *runOptions) { o.events = e }
}
