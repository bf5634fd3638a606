package scentree

import (
	"fmt"
	"sort"

	"github.com/ShayCichocki/hubspoke/pkg/models"
)

// ScenRange is a half-open range [Start, End) of scenario indices.
type ScenRange struct {
	Start int
	End   int
}

// Len returns the number of scenarios in the range.
func (r ScenRange) Len() int {
	return r.End - r.Start
}

// Contains reports whether scenario index i is in the range.
func (r ScenRange) Contains(i int) bool {
	return i >= r.Start && i < r.End
}

// RankAssignment maps a node name to the rank owning each of the node's
// scenarios.
type RankAssignment map[string]map[string]int

// Assignment is the result of partitioning a tree across ranks.
type Assignment struct {
	// Ranks maps every node to its scenario -> rank entries.
	Ranks RankAssignment
	// Slices holds, per terminal node, the absolute scenario range of each
	// rank in that node's rank range. Two-stage consumers index it like a
	// flat rank -> scenario slice table.
	Slices [][]ScenRange
	// FirstRank is the lowest rank serving each node.
	FirstRank map[string]int
}

// floorDiv returns floor(i*n/m) for non-negative operands, the exact
// value of floor(i * (n/m)).
func floorDiv(i, n, m int) int {
	return i * n / m
}

// AssignRanks partitions the tree's scenarios across numRanks ranks so that
// every node's scenarios map to a contiguous rank range.
//
// The result depends only on the tree and numRanks. myRank is accepted for
// callers that pass their own rank but does not affect the outcome; every
// rank computes the same global assignment and indexes into it.
func AssignRanks(t *Tree, numRanks, myRank int) (*Assignment, error) {
	if numRanks < 1 {
		return nil, &models.ConfigError{Key: "num_ranks", Msg: fmt.Sprintf("rank count must be positive (got %d)", numRanks)}
	}
	if numRanks == 1 {
		return assignSingle(t), nil
	}

	terms := t.Terminals()
	if numRanks < len(terms) {
		return nil, &models.ConfigError{
			Key:      "num_ranks",
			Msg:      fmt.Sprintf("%d ranks is not enough for %d terminal non-leaf nodes", numRanks, len(terms)),
			Expected: len(terms),
			Actual:   numRanks,
		}
	}

	a := &Assignment{
		Ranks:     RankAssignment{RootName: {}},
		Slices:    make([][]ScenRange, len(terms)),
		FirstRank: map[string]int{RootName: 0},
	}

	for i, nd := range terms {
		rankStart := floorDiv(i, numRanks, len(terms))
		rankEnd := floorDiv(i+1, numRanks, len(terms))
		nRanks := rankEnd - rankStart
		a.FirstRank[nd.Name] = rankStart
		a.Ranks[nd.Name] = make(map[string]int, nd.NumScens())

		nScens := nd.NumScens()
		slices := make([]ScenRange, nRanks)
		for j := 0; j < nRanks; j++ {
			rel := ScenRange{Start: floorDiv(j, nScens, nRanks), End: floorDiv(j+1, nScens, nRanks)}
			slices[j] = ScenRange{Start: nd.ScenFirst + rel.Start, End: nd.ScenFirst + rel.End}
			for s := slices[j].Start; s < slices[j].End; s++ {
				name := t.names[s]
				a.Ranks[nd.Name][name] = rankStart + j
				a.Ranks[RootName][name] = rankStart + j
			}
		}
		a.Slices[i] = slices
	}

	// Interior nodes copy their entries from the root map. Children are
	// visited first so a node can inherit its first child's first rank.
	var fill func(idx int)
	fill = func(idx int) {
		nd := &t.nodes[idx]
		for _, kid := range nd.Kids {
			fill(kid)
		}
		if idx == 0 || t.IsTerminal(nd) {
			return
		}
		m := make(map[string]int, nd.NumScens())
		for s := nd.ScenFirst; s <= nd.ScenLast; s++ {
			m[t.names[s]] = a.Ranks[RootName][t.names[s]]
		}
		a.Ranks[nd.Name] = m
		a.FirstRank[nd.Name] = a.FirstRank[t.nodes[nd.Kids[0]].Name]
	}
	fill(0)

	return a, nil
}

// assignSingle puts every scenario of every node on rank 0.
func assignSingle(t *Tree) *Assignment {
	a := &Assignment{
		Ranks:     make(RankAssignment, len(t.nodes)),
		FirstRank: make(map[string]int, len(t.nodes)),
	}
	for i := range t.nodes {
		nd := &t.nodes[i]
		m := make(map[string]int, nd.NumScens())
		for s := nd.ScenFirst; s <= nd.ScenLast; s++ {
			m[t.names[s]] = 0
		}
		a.Ranks[nd.Name] = m
		a.FirstRank[nd.Name] = 0
	}
	for _, nd := range t.Terminals() {
		a.Slices = append(a.Slices, []ScenRange{{Start: nd.ScenFirst, End: nd.ScenLast + 1}})
	}
	return a
}

// RankOf returns the rank owning the named scenario.
func (a *Assignment) RankOf(scenario string) (int, bool) {
	r, ok := a.Ranks[RootName][scenario]
	return r, ok
}

// RanksForNode returns the distinct ranks serving a node, ascending.
func (a *Assignment) RanksForNode(node string) []int {
	seen := make(map[int]bool)
	for _, r := range a.Ranks[node] {
		seen[r] = true
	}
	out := make([]int, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Ints(out)
	return out
}

// ScenariosForRank returns the scenarios owned by rank, in tree order.
func (a *Assignment) ScenariosForRank(t *Tree, rank int) []string {
	var out []string
	for _, name := range t.names {
		if r, ok := a.Ranks[RootName][name]; ok && r == rank {
			out = append(out, name)
		}
	}
	return out
}
