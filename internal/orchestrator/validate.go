package orchestrator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ShayCichocki/hubspoke/internal/engine"
	"github.com/ShayCichocki/hubspoke/internal/spcomm"
	"github.com/ShayCichocki/hubspoke/pkg/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		// Report the key as it is spelled in spec files.
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// checkSpec validates one spec and returns a ConfigError naming the first
// missing key.
func checkSpec(name string, spec any) error {
	err := validate.Struct(spec)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate %s: %w", name, err)
	}
	key := verrs[0].Field()
	return &models.ConfigError{
		Spec: name,
		Key:  key,
		Msg:  fmt.Sprintf("missing required key %q", key),
	}
}

// ValidateSpecs checks the hub and spoke specs, fills missing option
// bundles, and confirms every selector is registered. It runs before any
// communicator is built.
func ValidateSpecs(hub *models.HubSpec, spokes []models.SpokeSpec, reg *spcomm.Registry, engines *engine.Registry) error {
	if err := checkSpec("hub", hub); err != nil {
		return err
	}
	hub.ApplyDefaults()
	for i := range spokes {
		name := fmt.Sprintf("spokes[%d]", i)
		if err := checkSpec(name, &spokes[i]); err != nil {
			return err
		}
		spokes[i].ApplyDefaults()
	}

	if reg != nil {
		if !reg.HasHub(hub.HubClass) {
			return unknownSelector("hub", "hub_class", hub.HubClass)
		}
		for i, s := range spokes {
			if !reg.HasSpoke(s.SpokeClass) {
				return unknownSelector(fmt.Sprintf("spokes[%d]", i), "spoke_class", s.SpokeClass)
			}
		}
	}
	if engines != nil {
		if !engines.Has(hub.OptClass) {
			return unknownSelector("hub", "opt_class", hub.OptClass)
		}
		for i, s := range spokes {
			if !engines.Has(s.OptClass) {
				return unknownSelector(fmt.Sprintf("spokes[%d]", i), "opt_class", s.OptClass)
			}
		}
	}
	return nil
}

func unknownSelector(spec, key, value string) error {
	return &models.ConfigError{
		Spec: spec,
		Key:  key,
		Msg:  fmt.Sprintf("unknown %s %q", key, value),
	}
}
