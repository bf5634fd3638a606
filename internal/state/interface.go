package state

import "io"

// RunStore handles run-level persistence.
type RunStore interface {
	CreateRun(r *Run) error
	GetRun(id string) (*Run, error)
	FinishRun(id string, runErr error) error
	ListRuns(status *RunStatus) ([]Run, error)
}

// RankStore handles per-rank records.
type RankStore interface {
	RecordRank(rec RankRecord) error
	ListRanks(runID string) ([]RankRecord, error)
}

// AssignmentStore handles scenario assignments.
type AssignmentStore interface {
	SaveAssignment(runID string, assignment map[string]map[string]int) error
	LoadAssignment(runID string) (map[string]map[string]int, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	Migrate() error
}

// Ledger is the full run ledger.
type Ledger interface {
	io.Closer
	Migrator
	RunStore
	RankStore
	AssignmentStore
}

var (
	_ Ledger          = (*DB)(nil)
	_ RunStore        = (*DB)(nil)
	_ RankStore       = (*DB)(nil)
	_ AssignmentStore = (*DB)(nil)
)
