package scentree

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/ShayCichocki/hubspoke/pkg/models"
)

// FlatPartition divides scenCount scenarios into numRanks contiguous ranges
// for two-stage problems, where there is no tree to respect.
func FlatPartition(scenCount, numRanks int) ([]ScenRange, error) {
	if numRanks < 1 {
		return nil, &models.ConfigError{Key: "num_ranks", Msg: fmt.Sprintf("rank count must be positive (got %d)", numRanks)}
	}
	if scenCount < numRanks {
		return nil, &models.ConfigError{
			Key:      "num_ranks",
			Msg:      fmt.Sprintf("more ranks (%d) supplied than needed given the number of scenarios (%d)", numRanks, scenCount),
			Expected: scenCount,
			Actual:   numRanks,
		}
	}
	out := make([]ScenRange, numRanks)
	for i := range out {
		out[i] = ScenRange{Start: floorDiv(i, scenCount, numRanks), End: floorDiv(i+1, scenCount, numRanks)}
	}
	return out, nil
}

// Partition is the per-rank view of a scenario split.
type Partition struct {
	// RankSlices[r] lists the scenario index ranges owned by rank r.
	RankSlices [][]ScenRange
	// Tree and Assignment are nil for two-stage partitions.
	Tree       *Tree
	Assignment *Assignment
}

// Scenarios returns the scenario indices owned by rank.
func (p *Partition) Scenarios(rank int) []int {
	var out []int
	for _, r := range p.RankSlices[rank] {
		for s := r.Start; s < r.End; s++ {
			out = append(out, s)
		}
	}
	return out
}

// ScensToRanks partitions scenCount scenarios over numRanks ranks. With no
// branching factors it is a flat split; otherwise a tree is built over
// generated names ID0..ID<n-1> and partitioned with AssignRanks.
func ScensToRanks(scenCount, numRanks, myRank int, bfs []int) (*Partition, error) {
	if scenCount < numRanks {
		return nil, &models.ConfigError{
			Key:      "num_ranks",
			Msg:      fmt.Sprintf("more ranks (%d) supplied than needed given the number of scenarios (%d)", numRanks, scenCount),
			Expected: scenCount,
			Actual:   numRanks,
		}
	}
	if len(bfs) == 0 {
		flat, err := FlatPartition(scenCount, numRanks)
		if err != nil {
			return nil, err
		}
		p := &Partition{RankSlices: make([][]ScenRange, numRanks)}
		for r, sl := range flat {
			p.RankSlices[r] = []ScenRange{sl}
		}
		return p, nil
	}

	tree, err := BuildTree(bfs, ScenarioNames("ID", scenCount))
	if err != nil {
		return nil, err
	}
	a, err := AssignRanks(tree, numRanks, myRank)
	if err != nil {
		return nil, err
	}
	p := &Partition{RankSlices: make([][]ScenRange, numRanks), Tree: tree, Assignment: a}
	for i, nd := range tree.Terminals() {
		first := a.FirstRank[nd.Name]
		for j, sl := range a.Slices[i] {
			p.RankSlices[first+j] = append(p.RankSlices[first+j], sl)
		}
	}
	return p, nil
}

// ScenarioNames returns prefix0..prefix<n-1>.
func ScenarioNames(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = prefix + strconv.Itoa(i)
	}
	return out
}

var trailingNum = regexp.MustCompile(`(\d+)$`)

// ExtractNum returns the integer at the end of a scenario name, e.g. 324
// for "scenario324".
func ExtractNum(name string) (int, error) {
	m := trailingNum.FindStringSubmatch(name)
	if m == nil {
		return 0, fmt.Errorf("scenario name %q has no trailing number", name)
	}
	return strconv.Atoi(m[1])
}
