package tui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/ShayCichocki/hubspoke/internal/scentree"
	"github.com/ShayCichocki/hubspoke/internal/state"
	"github.com/ShayCichocki/hubspoke/internal/topology"
)

var (
	headerCell = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")).Padding(0, 1)
	bodyCell   = lipgloss.NewStyle().Padding(0, 1)
	hubCell    = bodyCell.Foreground(lipgloss.Color("205"))
	border     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(border).
		Headers(headers...)
}

// RenderLayout renders the placement of every rank.
func RenderLayout(placements []topology.Placement) string {
	t := newTable("rank", "role", "replica", "cylinder rank", "role rank")
	hubRows := make(map[int]bool)
	for i, p := range placements {
		t.Row(strconv.Itoa(p.GlobalRank), p.Role.String(), strconv.Itoa(p.Replica),
			strconv.Itoa(p.CylinderRank), strconv.Itoa(p.RoleRank))
		hubRows[i] = p.Role.IsHub()
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return headerCell
		case hubRows[row]:
			return hubCell
		default:
			return bodyCell
		}
	})
	return t.Render()
}

// RenderAssignment renders which ranks serve each tree node and the
// scenarios each rank owns.
func RenderAssignment(tree *scentree.Tree, a *scentree.Assignment, numRanks int) string {
	nodes := newTable("node", "stage", "scenarios", "first rank", "ranks")
	for _, n := range tree.Nodes() {
		nodes.Row(n.Name, strconv.Itoa(n.Stage),
			fmt.Sprintf("%d-%d", n.ScenFirst, n.ScenLast),
			strconv.Itoa(a.FirstRank[n.Name]),
			joinInts(a.RanksForNode(n.Name)))
	}
	nodes.StyleFunc(plainStyle)

	ranks := newTable("rank", "scenarios")
	for r := 0; r < numRanks; r++ {
		ranks.Row(strconv.Itoa(r), strings.Join(a.ScenariosForRank(tree, r), ","))
	}
	ranks.StyleFunc(plainStyle)

	return lipgloss.JoinVertical(lipgloss.Left, nodes.Render(), ranks.Render())
}

// RenderRuns renders run ledger entries.
func RenderRuns(runs []state.Run) string {
	t := newTable("id", "started", "world", "spokes", "status", "error")
	for _, r := range runs {
		t.Row(shortID(r.ID), r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			strconv.Itoa(r.WorldSize), strconv.Itoa(r.SpokeCount), string(r.Status), r.Error)
	}
	t.StyleFunc(plainStyle)
	return t.Render()
}

// RenderRanks renders the rank records of one run.
func RenderRanks(recs []state.RankRecord) string {
	t := newTable("rank", "role", "replica", "final phase", "iterations", "outer", "inner")
	for _, r := range recs {
		t.Row(strconv.Itoa(r.GlobalRank), r.Role, strconv.Itoa(r.Replica), r.FinalPhase,
			strconv.Itoa(r.Iterations), fmt.Sprintf("%.4g", r.Outer), fmt.Sprintf("%.4g", r.Inner))
	}
	t.StyleFunc(plainStyle)
	return t.Render()
}

func plainStyle(row, col int) lipgloss.Style {
	if row == table.HeaderRow {
		return headerCell
	}
	return bodyCell
}

func joinInts(xs []int) string {
	sort.Ints(xs)
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ",")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
