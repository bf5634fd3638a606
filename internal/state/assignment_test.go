package state

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestSaveAndLoadAssignment(t *testing.T) {
	db := setupTestDB(t)
	if err := db.CreateRun(&Run{ID: "run", WorldSize: 4, StartedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	want := map[string]map[string]int{
		"ROOT":   {"S0": 0, "S1": 1, "S2": 2, "S3": 3},
		"ROOT_0": {"S0": 0, "S1": 1},
		"ROOT_1": {"S2": 2, "S3": 3},
	}
	if err := db.SaveAssignment("run", want); err != nil {
		t.Fatalf("SaveAssignment: %v", err)
	}
	got, err := db.LoadAssignment("run")
	if err != nil {
		t.Fatalf("LoadAssignment: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("assignment mismatch (-want +got):\n%s", diff)
	}

	// Saving again replaces rather than merges.
	if err := db.SaveAssignment("run", map[string]map[string]int{"ROOT": {"S0": 0}}); err != nil {
		t.Fatal(err)
	}
	got, err = db.LoadAssignment("run")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || len(got["ROOT"]) != 1 {
		t.Errorf("expected replaced assignment, got %v", got)
	}
}

func TestLoadAssignment_Empty(t *testing.T) {
	db := setupTestDB(t)
	got, err := db.LoadAssignment("none")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty assignment, got %v", got)
	}
}
