package orchestrator

import (
	"time"

	"github.com/ShayCichocki/hubspoke/pkg/models"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventPhaseChanged indicates a rank advanced its lifecycle phase.
	EventPhaseChanged EventType = "phase_changed"
	// EventProgress carries one of the rank-0 progress markers.
	EventProgress EventType = "progress"
	// EventRankFailed indicates a rank returned an error.
	EventRankFailed EventType = "rank_failed"
	// EventRankDone indicates a rank finished its lifecycle.
	EventRankDone EventType = "rank_done"
)

// Event represents an event emitted by a rank.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// Rank is the global rank that emitted the event.
	Rank int
	// Role is the rank's role, once known.
	Role models.Role
	// Phase is the rank's phase after the event.
	Phase models.Phase
	// Message provides additional context.
	Message string
	// Error contains error details for failure events.
	Error error
	// Elapsed is the time since the rank started Run.
	Elapsed time.Duration
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
