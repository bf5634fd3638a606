package state

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestRunLifecycle(t *testing.T) {
	db := setupTestDB(t)

	r := &Run{ID: "run-1", SpecPath: "spec.yaml", WorldSize: 6, SpokeCount: 2, StartedAt: time.Now()}
	if err := db.CreateRun(r); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	got, err := db.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got == nil {
		t.Fatal("GetRun returned nil")
	}
	if got.Status != RunRunning || got.WorldSize != 6 || got.SpokeCount != 2 || got.FinishedAt != nil {
		t.Errorf("unexpected run: %+v", got)
	}

	if err := db.FinishRun("run-1", errors.New("rank 2: boom")); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	got, _ = db.GetRun("run-1")
	if got.Status != RunFailed || got.Error != "rank 2: boom" || got.FinishedAt == nil {
		t.Errorf("unexpected finished run: %+v", got)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	db := setupTestDB(t)
	got, err := db.GetRun("missing")
	if err != nil || got != nil {
		t.Errorf("GetRun(missing) = %v, %v; want nil, nil", got, err)
	}
	if err := db.FinishRun("missing", nil); err == nil {
		t.Error("expected error finishing a missing run")
	}
}

func TestListRuns(t *testing.T) {
	db := setupTestDB(t)
	base := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		if err := db.CreateRun(&Run{ID: id, WorldSize: 3, SpokeCount: 2, StartedAt: base.Add(time.Duration(i) * time.Second)}); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.FinishRun("b", nil); err != nil {
		t.Fatal(err)
	}

	all, err := db.ListRuns(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].ID != "c" || all[2].ID != "a" {
		t.Errorf("ListRuns(nil) order = %v", all)
	}

	status := RunCompleted
	done, err := db.ListRuns(&status)
	if err != nil {
		t.Fatal(err)
	}
	if len(done) != 1 || done[0].ID != "b" {
		t.Errorf("ListRuns(completed) = %v", done)
	}
}

func TestMarkInterrupted(t *testing.T) {
	db := setupTestDB(t)
	for _, id := range []string{"x", "y"} {
		if err := db.CreateRun(&Run{ID: id, WorldSize: 1, StartedAt: time.Now()}); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.FinishRun("y", nil); err != nil {
		t.Fatal(err)
	}

	n, err := db.MarkInterrupted()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("MarkInterrupted() = %d, want 1", n)
	}
	got, _ := db.GetRun("x")
	if got.Status != RunInterrupted {
		t.Errorf("status = %s, want %s", got.Status, RunInterrupted)
	}
}

func TestRankRecords(t *testing.T) {
	db := setupTestDB(t)
	if err := db.CreateRun(&Run{ID: "run", WorldSize: 2, SpokeCount: 1, StartedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	recs := []RankRecord{
		{RunID: "run", GlobalRank: 1, Role: "spoke-1", CylinderRank: 1, FinalPhase: "torn_down", Iterations: 4, Outer: math.Inf(1), Inner: 1.5},
		{RunID: "run", GlobalRank: 0, Role: "hub", FinalPhase: "torn_down", Iterations: 3, Outer: 2.5, Inner: 1.5},
	}
	for _, r := range recs {
		if err := db.RecordRank(r); err != nil {
			t.Fatalf("RecordRank: %v", err)
		}
	}

	got, err := db.ListRanks("run")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].Role != "hub" || got[0].Outer != 2.5 {
		t.Errorf("rank 0 = %+v", got[0])
	}
	if got[1].Role != "spoke-1" || !math.IsInf(got[1].Outer, 1) || got[1].Inner != 1.5 {
		t.Errorf("rank 1 = %+v", got[1])
	}

	if err := db.DeleteRun("run"); err != nil {
		t.Fatal(err)
	}
	got, err = db.ListRanks("run")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("rank records survived run deletion: %v", got)
	}
}

func TestPurgeOldRuns(t *testing.T) {
	db := setupTestDB(t)
	if err := db.CreateRun(&Run{ID: "old", StartedAt: time.Now().Add(-48 * time.Hour)}); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateRun(&Run{ID: "new", StartedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	n, err := db.PurgeOldRuns(24 * time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("PurgeOldRuns() = %d, want 1", n)
	}
}
