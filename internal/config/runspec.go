package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/hubspoke/internal/scentree"
	"github.com/ShayCichocki/hubspoke/pkg/models"
)

// RunSpec is the content of a run-spec file.
type RunSpec struct {
	// WorldSize is the number of ranks; zero defers to the flag or config.
	WorldSize int `yaml:"world_size"`
	// Hub configures the hub on every cylinder.
	Hub models.HubSpec `yaml:"hub"`
	// Spokes configures one spoke role each.
	Spokes []models.SpokeSpec `yaml:"spokes"`
	// Tree, when set, is the scenario tree every engine partitions over.
	// Its assignment is recorded with the run.
	Tree *TreeSpec `yaml:"tree,omitempty"`
}

// TreeSpec describes a multi-stage scenario tree.
type TreeSpec struct {
	BranchingFactors []int  `yaml:"branching_factors"`
	ScenarioPrefix   string `yaml:"scenario_prefix,omitempty"`
}

// DefaultScenarioPrefix matches the names engines generate for their own
// partitions.
const DefaultScenarioPrefix = "ID"

// NumScens returns the number of leaf scenarios.
func (t *TreeSpec) NumScens() int {
	n := 1
	for _, bf := range t.BranchingFactors {
		n *= bf
	}
	return n
}

// Names returns the tree's scenario names, "ID0".. by default.
func (t *TreeSpec) Names() []string {
	prefix := t.ScenarioPrefix
	if prefix == "" {
		prefix = DefaultScenarioPrefix
	}
	return scentree.ScenarioNames(prefix, t.NumScens())
}

// ApplyTree hands the tree to every engine: branching_factors and
// num_scens are added to each opt_kwargs that lacks them. An engine that
// already names a different shape is a configuration error.
func (s *RunSpec) ApplyTree() error {
	if s.Tree == nil {
		return nil
	}
	if err := applyTreeKwargs(&s.Hub.OptKwargs, s.Tree, "hub.opt_kwargs"); err != nil {
		return err
	}
	for i := range s.Spokes {
		key := fmt.Sprintf("spokes[%d].opt_kwargs", i)
		if err := applyTreeKwargs(&s.Spokes[i].OptKwargs, s.Tree, key); err != nil {
			return err
		}
	}
	return nil
}

func applyTreeKwargs(kw *models.Kwargs, t *TreeSpec, key string) error {
	if *kw == nil {
		*kw = models.Kwargs{}
	}
	k := *kw
	if _, ok := k["branching_factors"]; ok {
		if !slices.Equal(k.Ints("branching_factors"), t.BranchingFactors) {
			return &models.ConfigError{Key: key + ".branching_factors",
				Msg: fmt.Sprintf("branching factors %v disagree with tree %v", k.Ints("branching_factors"), t.BranchingFactors)}
		}
	} else {
		k["branching_factors"] = slices.Clone(t.BranchingFactors)
	}
	if _, ok := k["num_scens"]; ok {
		if n := k.Int("num_scens", -1); n != t.NumScens() {
			return &models.ConfigError{Key: key + ".num_scens", Expected: t.NumScens(), Actual: n,
				Msg: fmt.Sprintf("num_scens %d disagrees with the tree's %d scenarios", n, t.NumScens())}
		}
	} else {
		k["num_scens"] = t.NumScens()
	}
	return nil
}

// LoadRunSpec reads a run-spec file. Unknown keys are rejected so typos in
// selector names surface early.
func LoadRunSpec(path string) (*RunSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run spec: %w", err)
	}
	spec, err := ParseRunSpec(data)
	if err != nil {
		return nil, fmt.Errorf("parse run spec %s: %w", path, err)
	}
	return spec, nil
}

// ParseRunSpec decodes a run spec from YAML.
func ParseRunSpec(data []byte) (*RunSpec, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var spec RunSpec
	if err := dec.Decode(&spec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty run spec")
		}
		return nil, err
	}
	if spec.WorldSize < 0 {
		return nil, &models.ConfigError{Key: "world_size", Actual: spec.WorldSize,
			Msg: fmt.Sprintf("world_size must be non-negative (got %d)", spec.WorldSize)}
	}
	if err := spec.ApplyTree(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Marshal renders the spec back to YAML.
func (s *RunSpec) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}
