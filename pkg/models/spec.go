package models

// Kwargs is a keyword-style option bundle handed to a constructor.
type Kwargs map[string]any

// HubSpec controls construction of the hub on every hub rank.
type HubSpec struct {
	// HubClass selects the hub implementation.
	HubClass string `yaml:"hub_class" mapstructure:"hub_class" validate:"required"`
	// OptClass selects the optimization engine attached to the hub.
	OptClass string `yaml:"opt_class" mapstructure:"opt_class" validate:"required"`
	// HubKwargs are passed to the hub constructor.
	HubKwargs Kwargs `yaml:"hub_kwargs,omitempty" mapstructure:"hub_kwargs"`
	// OptKwargs are passed to the engine constructor.
	OptKwargs Kwargs `yaml:"opt_kwargs,omitempty" mapstructure:"opt_kwargs"`
}

// SpokeSpec controls construction of one spoke role.
type SpokeSpec struct {
	// SpokeClass selects the spoke implementation.
	SpokeClass string `yaml:"spoke_class" mapstructure:"spoke_class" validate:"required"`
	// OptClass selects the optimization engine attached to the spoke.
	OptClass string `yaml:"opt_class" mapstructure:"opt_class" validate:"required"`
	// SpokeKwargs are passed to the spoke constructor.
	SpokeKwargs Kwargs `yaml:"spoke_kwargs,omitempty" mapstructure:"spoke_kwargs"`
	// OptKwargs are passed to the engine constructor.
	OptKwargs Kwargs `yaml:"opt_kwargs,omitempty" mapstructure:"opt_kwargs"`
}

// RoleSpec is the spec that produced a rank's role: a *HubSpec on the hub,
// the matching *SpokeSpec on a spoke.
type RoleSpec interface {
	Class() string
	Engine() string
	ClassKwargs() Kwargs
	EngineKwargs() Kwargs
}

// Class returns the hub implementation selector.
func (s *HubSpec) Class() string { return s.HubClass }

// Engine returns the engine selector.
func (s *HubSpec) Engine() string { return s.OptClass }

// ClassKwargs returns the hub constructor options.
func (s *HubSpec) ClassKwargs() Kwargs { return s.HubKwargs }

// EngineKwargs returns the engine constructor options.
func (s *HubSpec) EngineKwargs() Kwargs { return s.OptKwargs }

// Class returns the spoke implementation selector.
func (s *SpokeSpec) Class() string { return s.SpokeClass }

// Engine returns the engine selector.
func (s *SpokeSpec) Engine() string { return s.OptClass }

// ClassKwargs returns the spoke constructor options.
func (s *SpokeSpec) ClassKwargs() Kwargs { return s.SpokeKwargs }

// EngineKwargs returns the engine constructor options.
func (s *SpokeSpec) EngineKwargs() Kwargs { return s.OptKwargs }

// ApplyDefaults fills missing option bundles with empty sets.
func (s *HubSpec) ApplyDefaults() {
	if s.HubKwargs == nil {
		s.HubKwargs = Kwargs{}
	}
	if s.OptKwargs == nil {
		s.OptKwargs = Kwargs{}
	}
}

// ApplyDefaults fills missing option bundles with empty sets.
func (s *SpokeSpec) ApplyDefaults() {
	if s.SpokeKwargs == nil {
		s.SpokeKwargs = Kwargs{}
	}
	if s.OptKwargs == nil {
		s.OptKwargs = Kwargs{}
	}
}

// Int reads an integer option, accepting the numeric types YAML and viper
// produce. def is returned when the key is absent or not numeric.
func (k Kwargs) Int(key string, def int) int {
	switch v := k[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case uint64:
		return int(v)
	default:
		return def
	}
}

// Float reads a float option with a default.
func (k Kwargs) Float(key string, def float64) float64 {
	switch v := k[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

// Ints reads a list of integers, e.g. branching factors.
func (k Kwargs) Ints(key string) []int {
	raw, ok := k[key].([]any)
	if !ok {
		if ints, ok := k[key].([]int); ok {
			return ints
		}
		return nil
	}
	out := make([]int, 0, len(raw))
	for _, v := range raw {
		switch n := v.(type) {
		case int:
			out = append(out, n)
		case int64:
			out = append(out, int(n))
		case float64:
			out = append(out, int(n))
		}
	}
	return out
}
