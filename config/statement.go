package config

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-sqlmap/mapping"
)

const (
	KeyGeneratorNone      = "none"
	KeyGeneratorGenerated = "generated"
)

// Statement declares one mapped statement with static SQL.
type Statement struct {
	ID      string `yaml:"id"`
	Command string `yaml:"command"`
	SQL     string `yaml:"sql"`
	// Params lists one property per placeholder, in order. A ":out" or
	// ":inout" suffix sets the parameter mode.
	Params []string `yaml:"params"`
	// Cache references a Cache by id.
	Cache         string        `yaml:"cache"`
	FlushCache    *bool         `yaml:"flush_cache"`
	UseCache      *bool         `yaml:"use_cache"`
	Timeout       time.Duration `yaml:"timeout"`
	KeyGenerator  string        `yaml:"key_generator"`
	KeyProperties []string      `yaml:"key_properties"`
}

func (s Statement) CommandType() (mapping.CommandType, error) {
	return mapping.ParseCommandType(s.Command)
}

// Mappings parses Params.
func (s Statement) Mappings() ([]mapping.ParameterMapping, error) {
	out := make([]mapping.ParameterMapping, len(s.Params))
	for i, p := range s.Params {
		pm, err := ParseParam(p)
		if err != nil {
			return nil, err
		}
		out[i] = pm
	}
	return out, nil
}

// ParseParam reads "property" or "property:mode".
func ParseParam(s string) (mapping.ParameterMapping, error) {
	name, mode, _ := strings.Cut(strings.TrimSpace(s), ":")
	if name == "" {
		return mapping.ParameterMapping{}, fmt.Errorf("empty parameter %q", s)
	}
	pm := mapping.In(name)
	switch strings.ToLower(mode) {
	case "", "in":
	case "out":
		pm.Mode = mapping.ModeOut
	case "inout":
		pm.Mode = mapping.ModeInOut
	default:
		return mapping.ParameterMapping{}, fmt.Errorf("parameter %s: unknown mode %q", name, mode)
	}
	return pm, nil
}

func (s Statement) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ID, validation.Required),
		validation.Field(&s.Command, validation.Required, validation.By(func(any) error {
			_, err := s.CommandType()
			return err
		})),
		validation.Field(&s.SQL, validation.Required),
		validation.Field(&s.Params, validation.By(func(any) error {
			_, err := s.Mappings()
			return err
		})),
		validation.Field(&s.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&s.KeyGenerator, validation.In(KeyGeneratorNone, KeyGeneratorGenerated)),
		validation.Field(&s.KeyProperties, validation.When(s.KeyGenerator == KeyGeneratorGenerated, validation.Required)),
	)
}
