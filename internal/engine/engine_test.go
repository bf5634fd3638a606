package engine

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/hubspoke/internal/comm"
	"github.com/ShayCichocki/hubspoke/pkg/models"
)

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	if !r.Has(ScenarioMeanName) {
		t.Fatalf("expected %q to be registered", ScenarioMeanName)
	}
	if r.Has("nope") {
		t.Error("unexpected registration for nope")
	}
	if names := r.Names(); len(names) != 1 || names[0] != ScenarioMeanName {
		t.Errorf("Names() = %v", names)
	}
	if _, err := r.New(context.Background(), "nope", nil, nil); err == nil {
		t.Error("expected error for unknown engine")
	}
}

func TestScenarioMean_SplitsScenariosAcrossRoleGroup(t *testing.T) {
	w, err := comm.NewLocalWorld(3)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts := models.Kwargs{"num_scens": 9, "seed": 3}
	var mu sync.Mutex
	owned := make(map[int]int)
	estimates := make([]Estimate, 3)

	err = w.Run(ctx, func(ctx context.Context, world comm.Communicator) error {
		eng, err := NewScenarioMean(ctx, world, opts)
		if err != nil {
			return err
		}
		sm := eng.(*ScenarioMean)
		mu.Lock()
		for _, s := range sm.LocalScenarios() {
			owned[s]++
		}
		mu.Unlock()
		est, err := eng.Iterate(ctx, 2)
		if err != nil {
			return err
		}
		estimates[world.Rank()] = est
		return nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(owned) != 9 {
		t.Errorf("expected 9 scenarios covered, got %d", len(owned))
	}
	for s, n := range owned {
		if n != 1 {
			t.Errorf("scenario %d evaluated %d times", s, n)
		}
	}

	ref := &ScenarioMean{seed: 3}
	var total float64
	for s := 0; s < 9; s++ {
		total += ref.scenarioValue(s)
	}
	mean := total / 9
	for rank, est := range estimates {
		if math.Abs(est.Outer-(mean+5)) > 1e-9 || math.Abs(est.Inner-(mean-5)) > 1e-9 {
			t.Errorf("rank %d: estimate %+v, want mean %v +/- 5", rank, est, mean)
		}
		if math.Abs(est.Gap()-10) > 1e-9 {
			t.Errorf("rank %d: gap %v, want 10", rank, est.Gap())
		}
	}
}

func TestScenarioMean_MultiStagePartition(t *testing.T) {
	w, err := comm.NewLocalWorld(2)
	if err != nil {
		t.Fatal(err)
	}
	err = w.Run(context.Background(), func(ctx context.Context, world comm.Communicator) error {
		eng, err := NewScenarioMean(ctx, world, models.Kwargs{
			"num_scens":         6,
			"branching_factors": []any{2, 3},
		})
		if err != nil {
			return err
		}
		local := eng.(*ScenarioMean).LocalScenarios()
		want := []int{0, 1, 2}
		if world.Rank() == 1 {
			want = []int{3, 4, 5}
		}
		if len(local) != 3 || local[0] != want[0] || local[2] != want[2] {
			t.Errorf("rank %d: local = %v, want %v", world.Rank(), local, want)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
}

func TestScenarioMean_TooManyRanks(t *testing.T) {
	w, err := comm.NewLocalWorld(4)
	if err != nil {
		t.Fatal(err)
	}
	err = w.Run(context.Background(), func(ctx context.Context, world comm.Communicator) error {
		_, err := NewScenarioMean(ctx, world, models.Kwargs{"num_scens": 2})
		return err
	})
	if err == nil {
		t.Fatal("expected error when the role group outnumbers the scenarios")
	}
}

func TestScenarioMean_RejectsIterationZero(t *testing.T) {
	e := &ScenarioMean{}
	if _, err := e.Iterate(context.Background(), 0); err == nil {
		t.Error("expected error for iteration 0")
	}
}
