package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/hubspoke/pkg/models"
)

// RankState is what the monitor knows about one rank.
type RankState struct {
	Rank    int
	Role    models.Role
	Known   bool
	Phase   models.Phase
	Failed  bool
	Err     error
	Elapsed time.Duration
}

// RankView lists every rank with its role and phase.
type RankView struct {
	ranks []RankState

	labelStyle  lipgloss.Style
	hubStyle    lipgloss.Style
	spokeStyle  lipgloss.Style
	idleStyle   lipgloss.Style
	activeStyle lipgloss.Style
	doneStyle   lipgloss.Style
	failedStyle lipgloss.Style
}

// NewRankView creates a view for size ranks.
func NewRankView(size int) *RankView {
	ranks := make([]RankState, size)
	for i := range ranks {
		ranks[i] = RankState{Rank: i, Phase: models.PhaseIdle}
	}
	return &RankView{
		ranks: ranks,

		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(8),

		hubStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Width(10),

		spokeStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Width(10),

		idleStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")), // Gray

		activeStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")), // Orange

		doneStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")), // Green

		failedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")), // Red
	}
}

// Apply records a rank update. Updates for unknown ranks are ignored.
func (v *RankView) Apply(s RankState) {
	if s.Rank < 0 || s.Rank >= len(v.ranks) {
		return
	}
	v.ranks[s.Rank] = s
}

// Ranks returns a copy of the current rank states.
func (v *RankView) Ranks() []RankState {
	return append([]RankState(nil), v.ranks...)
}

// Progress returns the fraction of phase transitions completed across all
// ranks, in [0, 1].
func (v *RankView) Progress() float64 {
	steps := len(models.Phases()) - 1
	if len(v.ranks) == 0 || steps == 0 {
		return 0
	}
	done := 0
	for _, r := range v.ranks {
		for i, p := range models.Phases() {
			if p == r.Phase {
				done += i
			}
		}
	}
	return float64(done) / float64(steps*len(v.ranks))
}

// View renders one line per rank.
func (v *RankView) View() string {
	var b strings.Builder
	for _, r := range v.ranks {
		b.WriteString(v.labelStyle.Render(fmt.Sprintf("rank %d", r.Rank)))
		b.WriteString(" ")
		b.WriteString(v.renderRole(r))
		b.WriteString(" ")
		b.WriteString(v.renderPhase(r))
		if r.Elapsed > 0 {
			b.WriteString(v.idleStyle.Render(fmt.Sprintf("  %s", r.Elapsed.Round(time.Millisecond))))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (v *RankView) renderRole(r RankState) string {
	if !r.Known {
		return v.idleStyle.Width(10).Render("?")
	}
	if r.Role.IsHub() {
		return v.hubStyle.Render(r.Role.String())
	}
	return v.spokeStyle.Render(r.Role.String())
}

func (v *RankView) renderPhase(r RankState) string {
	switch {
	case r.Failed:
		msg := "✗ failed in " + string(r.Phase)
		if r.Err != nil {
			msg += ": " + r.Err.Error()
		}
		return v.failedStyle.Render(msg)
	case r.Phase == models.PhaseTornDown:
		return v.doneStyle.Render("✓ " + string(r.Phase))
	case r.Phase == models.PhaseIdle:
		return v.idleStyle.Render("○ " + string(r.Phase))
	default:
		return v.activeStyle.Render("● " + string(r.Phase))
	}
}
