package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/hubspoke/internal/comm"
	"github.com/ShayCichocki/hubspoke/internal/engine"
	"github.com/ShayCichocki/hubspoke/internal/spcomm"
	"github.com/ShayCichocki/hubspoke/internal/state"
	"github.com/ShayCichocki/hubspoke/pkg/models"
)

func hubSpec() models.HubSpec {
	return models.HubSpec{
		HubClass:  spcomm.ConvergenceHubName,
		OptClass:  engine.ScenarioMeanName,
		HubKwargs: models.Kwargs{"max_iterations": 4, "rel_gap": 0.0},
	}
}

func spokeSpecs(n int) []models.SpokeSpec {
	out := make([]models.SpokeSpec, n)
	for i := range out {
		out[i] = models.SpokeSpec{
			SpokeClass:  spcomm.BoundSpokeName,
			OptClass:    engine.ScenarioMeanName,
			SpokeKwargs: models.Kwargs{"poll_ms": 0},
		}
	}
	return out
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestLaunch_OneHubTwoSpokes(t *testing.T) {
	results, err := Launch(testCtx(t), 3, hubSpec(), spokeSpecs(2))
	require.NoError(t, err)
	require.Len(t, results, 3)

	wantRoles := []models.Role{models.HubRole(), models.SpokeRole(1), models.SpokeRole(2)}
	for rank, res := range results {
		require.NotNil(t, res, "rank %d", rank)
		assert.Equal(t, wantRoles[rank], res.Role, "rank %d", rank)
		assert.Equal(t, 3, res.Topology.Cylinder.Size(), "rank %d cylinder", rank)
		assert.Equal(t, 1, res.Topology.RoleComm.Size(), "rank %d role group", rank)
		assert.Equal(t, models.PhaseTornDown, res.Phases.Current(), "rank %d", rank)
		assert.Equal(t, models.Phases(), res.Phases.History(), "rank %d", rank)
	}

	hub, ok := results[0].SPComm.(*spcomm.ConvergenceHub)
	require.True(t, ok, "rank 0 should hold the hub, got %T", results[0].SPComm)
	assert.True(t, hub.MainReturned())
	assert.Equal(t, 1, hub.TerminateCount())

	_, isHubSpec := results[0].Spec.(*models.HubSpec)
	assert.True(t, isHubSpec)
	_, isSpokeSpec := results[2].Spec.(*models.SpokeSpec)
	assert.True(t, isSpokeSpec)
}

func TestLaunch_ReplicatedCylinders(t *testing.T) {
	results, err := Launch(testCtx(t), 6, hubSpec(), spokeSpecs(2))
	require.NoError(t, err)

	for rank, res := range results {
		assert.Equal(t, rank/3, res.Topology.Replica, "rank %d", rank)
		assert.Equal(t, 2, res.Topology.RoleComm.Size(), "rank %d", rank)
		assert.Equal(t, rank%3, res.Role.Index(), "rank %d", rank)
	}
	// Hub replicas vote together, so they stop after the same iteration.
	h0 := results[0].SPComm.(*spcomm.ConvergenceHub).Report()
	h1 := results[3].SPComm.(*spcomm.ConvergenceHub).Report()
	assert.Equal(t, h0.Iterations, h1.Iterations)
}

func TestRun_ConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		hub     func(*models.HubSpec)
		spokes  func([]models.SpokeSpec)
		wantMsg string
	}{
		{
			name:    "missing hub_class",
			size:    3,
			hub:     func(h *models.HubSpec) { h.HubClass = "" },
			wantMsg: `hub: missing required key "hub_class"`,
		},
		{
			name:    "missing spoke opt_class",
			size:    3,
			spokes:  func(s []models.SpokeSpec) { s[1].OptClass = "" },
			wantMsg: `spokes[1]: missing required key "opt_class"`,
		},
		{
			name:    "unknown hub",
			size:    3,
			hub:     func(h *models.HubSpec) { h.HubClass = "nope" },
			wantMsg: `hub: unknown hub_class "nope"`,
		},
		{
			name:    "unknown engine",
			size:    3,
			spokes:  func(s []models.SpokeSpec) { s[0].OptClass = "nope" },
			wantMsg: `spokes[0]: unknown opt_class "nope"`,
		},
		{
			name:    "world not a multiple",
			size:    4,
			wantMsg: "need a multiple of 3 processes (got 4)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub, spokes := hubSpec(), spokeSpecs(2)
			if tt.hub != nil {
				tt.hub(&hub)
			}
			if tt.spokes != nil {
				tt.spokes(spokes)
			}
			results, err := Launch(testCtx(t), tt.size, hub, spokes)
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrConfig)
			assert.Contains(t, err.Error(), tt.wantMsg)
			for _, res := range results {
				assert.Nil(t, res, "no rank should get past validation")
			}
		})
	}
}

func TestRun_FillsMissingKwargs(t *testing.T) {
	hub := hubSpec()
	hub.OptKwargs = nil
	results, err := Launch(testCtx(t), 2, hub, spokeSpecs(1))
	require.NoError(t, err)
	spec := results[0].Spec.(*models.HubSpec)
	assert.NotNil(t, spec.OptKwargs)
	assert.NotNil(t, results[1].Spec.(*models.SpokeSpec).OptKwargs)
}

func TestRun_ProgressMarkersFromRankZero(t *testing.T) {
	var mu sync.Mutex
	var got []string
	var buf bytes.Buffer
	logger := NewWriterLogger(&syncWriter{w: &buf})

	_, err := Launch(testCtx(t), 6, hubSpec(), spokeSpecs(2),
		WithLogger(logger),
		WithProgress(func(msg string) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, msg)
		}))
	require.NoError(t, err)

	assert.Equal(t, []string{MarkerMainStarted, MarkerHubComplete, MarkerWindowsFreed}, got)
	out := buf.String()
	assert.Contains(t, out, "[rank 0] "+MarkerWindowsFreed)
	assert.Contains(t, out, "[rank 5] phase torn_down")
	assert.NotContains(t, out, "[rank 3] "+MarkerMainStarted)
}

func TestRun_EmitsEvents(t *testing.T) {
	events := NewEventEmitter(256)
	_, err := Launch(testCtx(t), 3, hubSpec(), spokeSpecs(2), WithEvents(events))
	require.NoError(t, err)
	events.Close()

	done := 0
	phases := make(map[int]int)
	for ev := range events.Events() {
		switch ev.Type {
		case EventRankDone:
			done++
		case EventPhaseChanged:
			phases[ev.Rank]++
		}
	}
	assert.Equal(t, 3, done)
	for rank := 0; rank < 3; rank++ {
		assert.Equal(t, len(models.Phases())-1, phases[rank], "rank %d", rank)
	}
	assert.Zero(t, events.DroppedCount())
}

var errBoom = errors.New("boom")

type failingEngine struct{}

func (failingEngine) Iterate(ctx context.Context, k int) (engine.Estimate, error) {
	return engine.Estimate{}, errBoom
}

func TestRun_MainErrorPropagates(t *testing.T) {
	engines := engine.DefaultRegistry()
	engines.Register("failing", func(ctx context.Context, roleComm comm.Communicator, opts models.Kwargs) (engine.Engine, error) {
		return failingEngine{}, nil
	})
	hub := hubSpec()
	hub.OptClass = "failing"

	results, err := Launch(testCtx(t), 3, hub, spokeSpecs(2), WithEngines(engines))
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	require.NotNil(t, results[0])
	assert.Equal(t, models.PhaseRunning, results[0].Phases.Current())

	h := results[0].SPComm.(*spcomm.ConvergenceHub)
	assert.False(t, h.MainReturned())
	assert.Zero(t, h.TerminateCount())
}

type memLedger struct {
	mu   sync.Mutex
	recs map[int]string
}

func (m *memLedger) RecordRank(rec state.RankRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.RunID != "run-1" {
		return fmt.Errorf("unexpected run id %q", rec.RunID)
	}
	m.recs[rec.GlobalRank] = rec.Role + "/" + rec.FinalPhase
	return nil
}

func TestRun_RecordsRanks(t *testing.T) {
	ledger := &memLedger{recs: make(map[int]string)}
	_, err := Launch(testCtx(t), 3, hubSpec(), spokeSpecs(2), WithLedger(ledger, "run-1"))
	require.NoError(t, err)
	assert.Equal(t, map[int]string{
		0: "hub/torn_down",
		1: "spoke-1/torn_down",
		2: "spoke-2/torn_down",
	}, ledger.recs)
}

type syncWriter struct {
	mu sync.Mutex
	w  *bytes.Buffer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func TestDebugLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf)
	l.ForRank(2).Log("hello %d", 7)
	assert.True(t, strings.HasSuffix(buf.String(), "[rank 2] hello 7\n"), buf.String())

	var nilLogger *DebugLogger
	nilLogger.Log("ignored")
	assert.NoError(t, nilLogger.Close())
	assert.NoError(t, NopLogger().ForRank(1).Close())
}
