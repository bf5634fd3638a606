package scentree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/hubspoke/pkg/models"
)

func TestBuildTree_TwoStage(t *testing.T) {
	tree, err := BuildTree([]int{2, 3}, ScenarioNames("S", 6))
	require.NoError(t, err)

	root := tree.Root()
	assert.Equal(t, RootName, root.Name)
	assert.Equal(t, 0, root.Stage)
	assert.Equal(t, 0, root.ScenFirst)
	assert.Equal(t, 5, root.ScenLast)
	assert.Equal(t, -1, root.Parent)
	require.Len(t, root.Kids, 2)

	first, second := tree.Node(root.Kids[0]), tree.Node(root.Kids[1])
	assert.Equal(t, "ROOT_0", first.Name)
	assert.Equal(t, [2]int{0, 2}, [2]int{first.ScenFirst, first.ScenLast})
	assert.Equal(t, "ROOT_1", second.Name)
	assert.Equal(t, [2]int{3, 5}, [2]int{second.ScenFirst, second.ScenLast})
	assert.Empty(t, first.Kids, "leaves are not materialized")

	assert.Equal(t, 3, tree.NumStages())
	assert.Len(t, tree.Terminals(), 2)
	assert.True(t, tree.IsTerminal(first))
	assert.Equal(t, root, tree.Parent(first))
	assert.Nil(t, tree.Parent(root))
	assert.Equal(t, []string{"S3", "S4", "S5"}, tree.Scenarios(second))
}

func TestBuildTree_ChildrenPartitionParent(t *testing.T) {
	tree, err := BuildTree([]int{2, 3, 3}, ScenarioNames("Scenario", 18))
	require.NoError(t, err)

	assert.Len(t, tree.Nodes(), 1+2+6)
	assert.Len(t, tree.Terminals(), 6)

	for _, nd := range tree.Nodes() {
		if len(nd.Kids) == 0 {
			continue
		}
		next := nd.ScenFirst
		for _, k := range nd.Kids {
			kid := tree.Node(k)
			assert.Equal(t, nd.Stage+1, kid.Stage)
			assert.Equal(t, next, kid.ScenFirst, "kid %s must start where its sibling ended", kid.Name)
			next = kid.ScenLast + 1
		}
		assert.Equal(t, nd.ScenLast+1, next, "kids of %s must cover its range", nd.Name)
	}

	nd, ok := tree.Lookup("ROOT_1_2")
	require.True(t, ok)
	assert.Equal(t, 15, nd.ScenFirst)
	assert.Equal(t, 17, nd.ScenLast)

	_, ok = tree.Lookup("ROOT_2")
	assert.False(t, ok)
}

func TestBuildTree_Errors(t *testing.T) {
	tests := []struct {
		name  string
		bfs   []int
		count int
	}{
		{"single factor", []int{4}, 4},
		{"no factors", nil, 1},
		{"product mismatch", []int{2, 3}, 5},
		{"zero factor", []int{2, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildTree(tt.bfs, ScenarioNames("S", tt.count))
			assert.ErrorIs(t, err, models.ErrConfig)
		})
	}
}

func TestTree_AccessorsCopy(t *testing.T) {
	bfs := []int{2, 2}
	tree, err := BuildTree(bfs, ScenarioNames("S", 4))
	require.NoError(t, err)

	bfs[0] = 9
	assert.Equal(t, []int{2, 2}, tree.BranchingFactors())

	names := tree.ScenarioNames()
	names[0] = "changed"
	assert.Equal(t, "S0", tree.ScenarioNames()[0])
	assert.Equal(t, 4, tree.NumScens())
}
