package models

import (
	"errors"
	"fmt"
)

// ErrConfig marks configuration errors: missing spec keys, a process count
// that does not fit the cylinders, too few ranks for a scenario tree. They
// are detected before any communicator or runtime object is built.
var ErrConfig = errors.New("configuration error")

// ConfigError carries the context needed to act on a configuration error
// without reading the code.
type ConfigError struct {
	// Spec names the offending spec, e.g. "hub" or "spokes[1]".
	Spec string
	// Key is the missing or invalid key.
	Key string
	// Expected and Actual are set for count mismatches.
	Expected int
	Actual   int
	// Msg is the human-readable description.
	Msg string
}

func (e *ConfigError) Error() string {
	if e.Spec != "" && e.Key != "" {
		return fmt.Sprintf("%s: %s", e.Spec, e.Msg)
	}
	return e.Msg
}

// Is lets errors.Is match ErrConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}
