package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/hubspoke/internal/orchestrator"
	"github.com/ShayCichocki/hubspoke/internal/scentree"
	"github.com/ShayCichocki/hubspoke/internal/state"
	"github.com/ShayCichocki/hubspoke/internal/topology"
	"github.com/ShayCichocki/hubspoke/pkg/models"
)

func phaseEvent(rank int, role models.Role, p models.Phase) EventMsg {
	return EventMsg{Event: orchestrator.Event{
		Type:      orchestrator.EventPhaseChanged,
		Rank:      rank,
		Role:      role,
		Phase:     p,
		Timestamp: time.Now(),
	}}
}

func TestRunApp_TracksPhases(t *testing.T) {
	app := NewRunApp(2)
	app.Update(phaseEvent(0, models.HubRole(), models.PhaseRunning))
	app.Update(phaseEvent(1, models.SpokeRole(1), models.PhaseTornDown))
	app.Update(phaseEvent(7, models.SpokeRole(1), models.PhaseTornDown))

	ranks := app.Ranks()
	require.Len(t, ranks, 2)
	assert.Equal(t, models.PhaseRunning, ranks[0].Phase)
	assert.True(t, ranks[0].Role.IsHub())
	assert.Equal(t, models.PhaseTornDown, ranks[1].Phase)

	view := app.View()
	assert.Contains(t, view, "rank 0")
	assert.Contains(t, view, "hub")
	assert.Contains(t, view, "spoke-1")
	assert.Contains(t, view, "torn_down")
}

func TestRunApp_FailureAndDone(t *testing.T) {
	app := NewRunApp(1)
	app.Update(EventMsg{Event: orchestrator.Event{
		Type:  orchestrator.EventRankFailed,
		Rank:  0,
		Role:  models.HubRole(),
		Phase: models.PhaseRunning,
		Error: errors.New("boom"),
	}})
	app.Update(DoneMsg{Err: errors.New("rank 0: boom")})

	assert.True(t, app.Ranks()[0].Failed)
	done, err := app.Done()
	assert.True(t, done)
	assert.EqualError(t, err, "rank 0: boom")
	assert.Contains(t, app.View(), "Error: rank 0: boom")
}

func TestRunApp_ProgressLog(t *testing.T) {
	app := NewRunApp(1)
	app.Update(EventMsg{Event: orchestrator.Event{
		Type:      orchestrator.EventProgress,
		Message:   orchestrator.MarkerMainStarted,
		Timestamp: time.Now(),
	}})
	assert.Contains(t, app.View(), orchestrator.MarkerMainStarted)
}

func TestRunApp_Quit(t *testing.T) {
	app := NewRunApp(1)
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestRankView_Progress(t *testing.T) {
	v := NewRankView(2)
	assert.Zero(t, v.Progress())
	v.Apply(RankState{Rank: 0, Phase: models.PhaseTornDown, Known: true})
	v.Apply(RankState{Rank: 1, Phase: models.PhaseTornDown, Known: true})
	assert.InDelta(t, 1.0, v.Progress(), 1e-9)
}

func TestRenderLayout(t *testing.T) {
	placements, err := topology.Layout(6, 2)
	require.NoError(t, err)
	out := RenderLayout(placements)
	assert.Contains(t, out, "cylinder rank")
	assert.Equal(t, 2, strings.Count(out, "hub"))
	assert.Contains(t, out, "spoke-2")
}

func TestRenderAssignment(t *testing.T) {
	tree, err := scentree.BuildTree([]int{2, 3}, scentree.ScenarioNames("S", 6))
	require.NoError(t, err)
	a, err := scentree.AssignRanks(tree, 4, 0)
	require.NoError(t, err)
	out := RenderAssignment(tree, a, 4)
	assert.Contains(t, out, "ROOT_1")
	assert.Contains(t, out, "S4,S5")
}

func TestRenderRuns(t *testing.T) {
	out := RenderRuns([]state.Run{{ID: "0123456789abcdef", WorldSize: 3, SpokeCount: 2, Status: state.RunCompleted, StartedAt: time.Now()}})
	assert.Contains(t, out, "01234567")
	assert.NotContains(t, out, "89abcdef")
	assert.Contains(t, out, "completed")

	out = RenderRanks([]state.RankRecord{{GlobalRank: 0, Role: "hub", FinalPhase: "torn_down", Iterations: 3, Outer: 2, Inner: 1}})
	assert.Contains(t, out, "torn_down")
}
