package models

import "fmt"

// Phase is a step of the hub/spoke lifecycle every rank advances through
// in lockstep. Each transition corresponds to one collective operation.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseTopologyBuilt Phase = "topology_built"
	PhaseWindowsOpen   Phase = "windows_open"
	PhaseRunning       Phase = "running"
	PhaseTerminating   Phase = "terminating"
	PhaseFinalized     Phase = "finalized"
	PhaseTornDown      Phase = "torn_down"
)

// phaseOrder is the only legal sequence of phases.
var phaseOrder = []Phase{
	PhaseIdle,
	PhaseTopologyBuilt,
	PhaseWindowsOpen,
	PhaseRunning,
	PhaseTerminating,
	PhaseFinalized,
	PhaseTornDown,
}

// Valid returns true if the phase is a known value.
func (p Phase) Valid() bool {
	return p.ordinal() >= 0
}

// Next returns the phase that follows p. The last phase has no successor.
func (p Phase) Next() (Phase, bool) {
	i := p.ordinal()
	if i < 0 || i == len(phaseOrder)-1 {
		return "", false
	}
	return phaseOrder[i+1], true
}

func (p Phase) ordinal() int {
	for i, q := range phaseOrder {
		if q == p {
			return i
		}
	}
	return -1
}

// Phases returns the lifecycle phases in order.
func Phases() []Phase {
	out := make([]Phase, len(phaseOrder))
	copy(out, phaseOrder)
	return out
}

// PhaseTracker records the phases one rank has passed through and rejects
// any transition that skips or repeats a phase.
type PhaseTracker struct {
	current Phase
	history []Phase
}

// NewPhaseTracker returns a tracker positioned at PhaseIdle.
func NewPhaseTracker() *PhaseTracker {
	return &PhaseTracker{current: PhaseIdle, history: []Phase{PhaseIdle}}
}

// Current returns the phase the tracker is in.
func (t *PhaseTracker) Current() Phase {
	return t.current
}

// History returns every phase entered so far, starting with PhaseIdle.
func (t *PhaseTracker) History() []Phase {
	out := make([]Phase, len(t.history))
	copy(out, t.history)
	return out
}

// Advance moves the tracker to to, which must be the immediate successor of
// the current phase.
func (t *PhaseTracker) Advance(to Phase) error {
	next, ok := t.current.Next()
	if !ok || next != to {
		return fmt.Errorf("illegal phase transition %s -> %s", t.current, to)
	}
	t.current = to
	t.history = append(t.history, to)
	return nil
}
