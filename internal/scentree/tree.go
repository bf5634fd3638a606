// Package scentree builds scenario trees and partitions them across ranks.
//
// A tree is described by a branching-factor sequence: the root splits into
// bfs[0] children, each of those into bfs[1], and so on. The last factor
// counts the scenarios (leaves) under each terminal node, so leaves are
// never materialized as nodes. Every node owns a contiguous, inclusive
// range of indices into the flat scenario-name list, and a node's range is
// exactly the concatenation of its children's ranges.
package scentree

import (
	"fmt"
	"strconv"

	"github.com/ShayCichocki/hubspoke/pkg/models"
)

// RootName is the name of the root node. Descendants append "_<k>".
const RootName = "ROOT"

// Node is one non-leaf node of a scenario tree. Nodes live in the tree's
// arena and refer to each other by index.
type Node struct {
	Name      string
	Stage     int
	ScenFirst int
	ScenLast  int
	// Parent is the arena index of the parent, -1 for the root.
	Parent int
	// Kids are the arena indices of the children, in branch order.
	Kids []int
}

// NumScens returns the number of scenarios under the node.
func (n *Node) NumScens() int {
	return n.ScenLast - n.ScenFirst + 1
}

// Tree is an immutable scenario tree.
type Tree struct {
	bfs       []int
	names     []string
	nodes     []Node
	byName    map[string]int
	terminals []int
}

// BuildTree constructs the tree for the given branching factors over
// names. It requires at least two factors and exactly prod(bfs) names.
func BuildTree(bfs []int, names []string) (*Tree, error) {
	if len(bfs) < 2 {
		return nil, &models.ConfigError{
			Key: "branching_factors",
			Msg: fmt.Sprintf("a scenario tree needs at least 2 branching factors (got %d)", len(bfs)),
		}
	}
	prod := 1
	for i, bf := range bfs {
		if bf < 1 {
			return nil, &models.ConfigError{
				Key: "branching_factors",
				Msg: fmt.Sprintf("branching factor %d must be positive (got %d)", i, bf),
			}
		}
		prod *= bf
	}
	if prod != len(names) {
		return nil, &models.ConfigError{
			Key:      "scenario_names",
			Msg:      fmt.Sprintf("branching factors %v require %d scenarios (got %d)", bfs, prod, len(names)),
			Expected: prod,
			Actual:   len(names),
		}
	}

	t := &Tree{
		bfs:    append([]int(nil), bfs...),
		names:  append([]string(nil), names...),
		byName: make(map[string]int),
	}
	t.grow(-1, 0, len(names)-1, RootName)
	for i := range t.nodes {
		if t.nodes[i].Stage == t.NumStages()-2 {
			t.terminals = append(t.terminals, i)
		}
	}
	return t, nil
}

// grow appends the node and its subtree in depth-first preorder.
func (t *Tree) grow(parent, first, last int, name string) int {
	stage := 0
	if parent >= 0 {
		stage = t.nodes[parent].Stage + 1
	}
	idx := len(t.nodes)
	t.nodes = append(t.nodes, Node{
		Name:      name,
		Stage:     stage,
		ScenFirst: first,
		ScenLast:  last,
		Parent:    parent,
	})
	t.byName[name] = idx

	if stage < len(t.bfs)-1 {
		bf := t.bfs[stage]
		n := last - first + 1
		for b := 0; b < bf; b++ {
			kidFirst := first + b*n/bf
			kidLast := first + (b+1)*n/bf - 1
			kid := t.grow(idx, kidFirst, kidLast, name+"_"+strconv.Itoa(b))
			t.nodes[idx].Kids = append(t.nodes[idx].Kids, kid)
		}
	}
	return idx
}

// NumStages counts the materialized stages plus the leaf stage, so terminal
// non-leaf nodes sit at stage NumStages()-2.
func (t *Tree) NumStages() int {
	return len(t.bfs) + 1
}

// NumScens returns the number of scenarios in the tree.
func (t *Tree) NumScens() int {
	return len(t.names)
}

// BranchingFactors returns a copy of the factors the tree was built from.
func (t *Tree) BranchingFactors() []int {
	return append([]int(nil), t.bfs...)
}

// ScenarioNames returns a copy of the flat scenario-name list.
func (t *Tree) ScenarioNames() []string {
	return append([]string(nil), t.names...)
}

// Root returns the root node.
func (t *Tree) Root() *Node {
	return &t.nodes[0]
}

// Node returns the node at arena index i.
func (t *Tree) Node(i int) *Node {
	return &t.nodes[i]
}

// Lookup returns the node with the given name.
func (t *Tree) Lookup(name string) (*Node, bool) {
	i, ok := t.byName[name]
	if !ok {
		return nil, false
	}
	return &t.nodes[i], true
}

// Nodes returns every node in depth-first preorder, root first.
func (t *Tree) Nodes() []*Node {
	out := make([]*Node, len(t.nodes))
	for i := range t.nodes {
		out[i] = &t.nodes[i]
	}
	return out
}

// Terminals returns the terminal non-leaf nodes in branch order.
func (t *Tree) Terminals() []*Node {
	out := make([]*Node, len(t.terminals))
	for i, idx := range t.terminals {
		out[i] = &t.nodes[idx]
	}
	return out
}

// IsTerminal reports whether n is a terminal non-leaf node.
func (t *Tree) IsTerminal(n *Node) bool {
	return n.Stage == t.NumStages()-2
}

// Scenarios returns the names of the scenarios under n.
func (t *Tree) Scenarios(n *Node) []string {
	return append([]string(nil), t.names[n.ScenFirst:n.ScenLast+1]...)
}

// Parent returns n's parent, or nil for the root.
func (t *Tree) Parent(n *Node) *Node {
	if n.Parent < 0 {
		return nil
	}
	return &t.nodes[n.Parent]
}
