package engine

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/hubspoke/internal/comm"
	"github.com/ShayCichocki/hubspoke/internal/scentree"
	"github.com/ShayCichocki/hubspoke/pkg/models"
)

// ScenarioMeanName is the selector of the built-in reference engine.
const ScenarioMeanName = "scenario_mean"

// ScenarioMean estimates the probability-weighted mean of a deterministic
// per-scenario value. Each rank of the role group evaluates only the
// scenarios the partitioner gives it; an allreduce combines the partial
// sums. The bracket around the mean shrinks as 1/k.
//
// Options: num_scens (default: role-group size), branching_factors
// (optional, multi-stage partition), seed, spread.
type ScenarioMean struct {
	roleComm comm.Communicator
	local    []int
	numScens int
	seed     int
	spread   float64
}

// NewScenarioMean is the Factory for ScenarioMean.
func NewScenarioMean(ctx context.Context, roleComm comm.Communicator, opts models.Kwargs) (Engine, error) {
	numScens := opts.Int("num_scens", roleComm.Size())
	bfs := opts.Ints("branching_factors")
	p, err := scentree.ScensToRanks(numScens, roleComm.Size(), roleComm.Rank(), bfs)
	if err != nil {
		return nil, fmt.Errorf("partition scenarios: %w", err)
	}
	return &ScenarioMean{
		roleComm: roleComm,
		local:    p.Scenarios(roleComm.Rank()),
		numScens: numScens,
		seed:     opts.Int("seed", 1),
		spread:   opts.Float("spread", 10),
	}, nil
}

// LocalScenarios returns the scenario indices evaluated by this rank.
func (e *ScenarioMean) LocalScenarios() []int {
	return append([]int(nil), e.local...)
}

// scenarioValue is a cheap deterministic stand-in for a scenario solve.
func (e *ScenarioMean) scenarioValue(s int) float64 {
	return float64((s*7919+e.seed*104729)%1000) / 10
}

// Iterate is collective over the role communicator.
func (e *ScenarioMean) Iterate(ctx context.Context, k int) (Estimate, error) {
	if k < 1 {
		return Estimate{}, fmt.Errorf("iteration must be >= 1 (got %d)", k)
	}
	var partial float64
	for _, s := range e.local {
		partial += e.scenarioValue(s)
	}
	sum, err := e.roleComm.AllreduceSum(ctx, []float64{partial})
	if err != nil {
		return Estimate{}, fmt.Errorf("reduce scenario values: %w", err)
	}
	mean := sum[0] / float64(e.numScens)
	width := e.spread / float64(k)
	return Estimate{Outer: mean + width, Inner: mean - width}, nil
}
