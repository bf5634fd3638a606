package state

import (
	"database/sql"
	"fmt"
	"sort"
)

// SaveAssignment stores a scenario-to-rank mapping per tree node for a
// run, replacing any previous one.
func (db *DB) SaveAssignment(runID string, assignment map[string]map[string]int) error {
	nodes := make([]string, 0, len(assignment))
	for node := range assignment {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)

	return db.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM scenario_assignments WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("clear assignment: %w", err)
		}
		stmt, err := tx.Prepare(`INSERT INTO scenario_assignments (run_id, node, scenario, rank) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare assignment insert: %w", err)
		}
		defer stmt.Close()
		for _, node := range nodes {
			for scen, rank := range assignment[node] {
				if _, err := stmt.Exec(runID, node, scen, rank); err != nil {
					return fmt.Errorf("save assignment %s/%s: %w", node, scen, err)
				}
			}
		}
		return nil
	})
}

// LoadAssignment returns the mapping saved for a run. A run with no saved
// assignment yields an empty map.
func (db *DB) LoadAssignment(runID string) (map[string]map[string]int, error) {
	rows, err := db.Query(`SELECT node, scenario, rank FROM scenario_assignments WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("load assignment: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[string]int)
	for rows.Next() {
		var node, scen string
		var rank int
		if err := rows.Scan(&node, &scen, &rank); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		if out[node] == nil {
			out[node] = make(map[string]int)
		}
		out[node][scen] = rank
	}
	return out, rows.Err()
}
