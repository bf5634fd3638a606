package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/hubspoke/pkg/models"
)

const sampleSpec = `
world_size: 6
hub:
  hub_class: convergence_hub
  opt_class: scenario_mean
  hub_kwargs:
    max_iterations: 20
    rel_gap: 0.001
  opt_kwargs:
    num_scens: 12
spokes:
  - spoke_class: bound_spoke
    opt_class: scenario_mean
  - spoke_class: bound_spoke
    opt_class: scenario_mean
    spoke_kwargs:
      poll_ms: 5
tree:
  branching_factors: [3, 4]
`

func TestLoadRunSpec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleSpec), 0644))

	spec, err := LoadRunSpec(path)
	require.NoError(t, err)

	assert.Equal(t, 6, spec.WorldSize)
	assert.Equal(t, "convergence_hub", spec.Hub.HubClass)
	assert.Equal(t, 20, spec.Hub.HubKwargs.Int("max_iterations", 0))
	assert.InDelta(t, 0.001, spec.Hub.HubKwargs.Float("rel_gap", 0), 1e-12)
	assert.Equal(t, 12, spec.Hub.OptKwargs.Int("num_scens", 0))
	require.Len(t, spec.Spokes, 2)
	assert.Nil(t, spec.Spokes[0].SpokeKwargs)
	assert.Equal(t, 5, spec.Spokes[1].SpokeKwargs.Int("poll_ms", 0))
	require.NotNil(t, spec.Tree)
	assert.Equal(t, []int{3, 4}, spec.Tree.BranchingFactors)
	names := spec.Tree.Names()
	require.Len(t, names, 12)
	assert.Equal(t, "ID0", names[0])
	assert.Equal(t, "ID11", names[11])
}

func TestRunSpec_ApplyTree(t *testing.T) {
	spec, err := ParseRunSpec([]byte(sampleSpec))
	require.NoError(t, err)

	for _, kw := range []models.Kwargs{spec.Hub.OptKwargs, spec.Spokes[0].OptKwargs, spec.Spokes[1].OptKwargs} {
		assert.Equal(t, []int{3, 4}, kw.Ints("branching_factors"))
		assert.Equal(t, 12, kw.Int("num_scens", 0))
	}

	custom := &TreeSpec{BranchingFactors: []int{2}, ScenarioPrefix: "Scen"}
	assert.Equal(t, []string{"Scen0", "Scen1"}, custom.Names())
}

func TestRunSpec_ApplyTreeConflicts(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		key  string
	}{
		{
			name: "num_scens",
			yaml: "hub: {hub_class: h, opt_class: o, opt_kwargs: {num_scens: 5}}\ntree: {branching_factors: [2, 2]}\n",
			key:  "hub.opt_kwargs.num_scens",
		},
		{
			name: "branching_factors",
			yaml: "hub: {hub_class: h, opt_class: o}\nspokes:\n  - {spoke_class: s, opt_class: o, opt_kwargs: {branching_factors: [4]}}\ntree: {branching_factors: [2, 2]}\n",
			key:  "spokes[0].opt_kwargs.branching_factors",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRunSpec([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrConfig)
			var cfgErr *models.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.key, cfgErr.Key)
		})
	}
}

func TestParseRunSpec_Errors(t *testing.T) {
	_, err := ParseRunSpec([]byte(""))
	assert.Error(t, err)

	_, err = ParseRunSpec([]byte("hub:\n  hub_clas: typo\n"))
	assert.Error(t, err, "unknown keys should be rejected")

	_, err = ParseRunSpec([]byte("world_size: -3\n"))
	assert.True(t, errors.Is(err, models.ErrConfig))
}

func TestRunSpec_MarshalRoundTrip(t *testing.T) {
	spec, err := ParseRunSpec([]byte(sampleSpec))
	require.NoError(t, err)
	out, err := spec.Marshal()
	require.NoError(t, err)
	again, err := ParseRunSpec(out)
	require.NoError(t, err)
	assert.Equal(t, spec.Hub.HubClass, again.Hub.HubClass)
	assert.Equal(t, len(spec.Spokes), len(again.Spokes))
}

func TestLoadRunSpec_Missing(t *testing.T) {
	_, err := LoadRunSpec(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
