package state

import (
	"database/sql"
	"fmt"
	"math"
	"time"
)

// RunStatus represents the status of a run.
type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunCompleted   RunStatus = "completed"
	RunFailed      RunStatus = "failed"
	RunInterrupted RunStatus = "interrupted"
)

// Run is one invocation of the orchestrator over a world.
type Run struct {
	ID         string     `json:"id"`
	SpecPath   string     `json:"spec_path"`
	WorldSize  int        `json:"world_size"`
	SpokeCount int        `json:"spoke_count"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	Status     RunStatus  `json:"status"`
	Error      string     `json:"error"`
}

// RankRecord is the placement and outcome of one rank in a run.
type RankRecord struct {
	RunID        string  `json:"run_id"`
	GlobalRank   int     `json:"global_rank"`
	Role         string  `json:"role"`
	Replica      int     `json:"replica"`
	CylinderRank int     `json:"cylinder_rank"`
	RoleRank     int     `json:"role_rank"`
	FinalPhase   string  `json:"final_phase"`
	Iterations   int     `json:"iterations"`
	Outer        float64 `json:"outer"`
	Inner        float64 `json:"inner"`
}

// CreateRun inserts a new run.
func (db *DB) CreateRun(r *Run) error {
	if r.Status == "" {
		r.Status = RunRunning
	}
	_, err := db.Exec(`
		INSERT INTO runs (id, spec_path, world_size, spoke_count, started_at, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.SpecPath, r.WorldSize, r.SpokeCount, formatTime(r.StartedAt), string(r.Status), r.Error)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun sets the terminal status of a run. A nil runErr marks it
// completed.
func (db *DB) FinishRun(id string, runErr error) error {
	status, msg := RunCompleted, ""
	if runErr != nil {
		status, msg = RunFailed, runErr.Error()
	}
	return db.UpdateRunStatus(id, status, msg)
}

// UpdateRunStatus sets a run's status and stamps its finish time.
func (db *DB) UpdateRunStatus(id string, status RunStatus, msg string) error {
	var finished any
	if status != RunRunning {
		finished = formatTime(time.Now())
	}
	res, err := db.Exec(`
		UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?
	`, string(status), msg, finished, id)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update run: no run %q", id)
	}
	return nil
}

const runColumns = `id, spec_path, world_size, spoke_count, started_at, finished_at, status, error`

func scanRun(scan func(dest ...any) error) (Run, error) {
	var r Run
	var startedAt string
	var finishedAt sql.NullString
	err := scan(&r.ID, &r.SpecPath, &r.WorldSize, &r.SpokeCount, &startedAt, &finishedAt, &r.Status, &r.Error)
	if err != nil {
		return r, err
	}
	r.StartedAt, _ = parseTime(startedAt)
	r.FinishedAt = parseNullableTime(finishedAt)
	return r, nil
}

// GetRun retrieves a run by ID. It returns nil, nil when no such run exists.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &r, nil
}

// ListRuns lists runs newest first, optionally filtered by status.
func (db *DB) ListRuns(status *RunStatus) ([]Run, error) {
	var rows *sql.Rows
	var err error
	if status != nil {
		rows, err = db.Query(`SELECT `+runColumns+` FROM runs WHERE status = ? ORDER BY started_at DESC`, string(*status))
	} else {
		rows, err = db.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC`)
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteRun deletes a run and everything recorded under it.
func (db *DB) DeleteRun(id string) error {
	if _, err := db.Exec("DELETE FROM runs WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

// MarkInterrupted flags runs still marked running as interrupted. A run
// left running belongs to a process that exited without finishing it.
// Returns the number of runs updated.
func (db *DB) MarkInterrupted() (int64, error) {
	res, err := db.Exec(`
		UPDATE runs SET status = ?, finished_at = ? WHERE status = ?
	`, string(RunInterrupted), formatTime(time.Now()), string(RunRunning))
	if err != nil {
		return 0, fmt.Errorf("mark interrupted runs: %w", err)
	}
	return res.RowsAffected()
}

// bound maps infinite bounds to NULL.
func bound(v float64) any {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return v
}

func unbound(v sql.NullFloat64, inf float64) float64 {
	if !v.Valid {
		return inf
	}
	return v.Float64
}

// RecordRank stores or replaces the record of one rank.
func (db *DB) RecordRank(rec RankRecord) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO rank_records
			(run_id, global_rank, role, replica, cylinder_rank, role_rank, final_phase, iterations, outer_bound, inner_bound)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.RunID, rec.GlobalRank, rec.Role, rec.Replica, rec.CylinderRank, rec.RoleRank,
		rec.FinalPhase, rec.Iterations, bound(rec.Outer), bound(rec.Inner))
	if err != nil {
		return fmt.Errorf("record rank %d: %w", rec.GlobalRank, err)
	}
	return nil
}

// ListRanks returns the rank records of a run ordered by global rank.
func (db *DB) ListRanks(runID string) ([]RankRecord, error) {
	rows, err := db.Query(`
		SELECT run_id, global_rank, role, replica, cylinder_rank, role_rank, final_phase, iterations, outer_bound, inner_bound
		FROM rank_records WHERE run_id = ? ORDER BY global_rank
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list ranks: %w", err)
	}
	defer rows.Close()

	var recs []RankRecord
	for rows.Next() {
		var r RankRecord
		var outer, inner sql.NullFloat64
		if err := rows.Scan(&r.RunID, &r.GlobalRank, &r.Role, &r.Replica, &r.CylinderRank, &r.RoleRank,
			&r.FinalPhase, &r.Iterations, &outer, &inner); err != nil {
			return nil, fmt.Errorf("scan rank: %w", err)
		}
		r.Outer = unbound(outer, math.Inf(1))
		r.Inner = unbound(inner, math.Inf(-1))
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
