package cache

import (
	"fmt"
	"sort"
	"strconv"
)

// PropertyKind is the declared type of a configurable cache property.
type PropertyKind int

const (
	KindString PropertyKind = iota + 1
	KindInt
	KindInt64
	KindInt16
	KindInt8
	KindFloat32
	KindBool
	KindFloat64
)

func (k PropertyKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindInt64:
		return "int64"
	case KindInt16:
		return "int16"
	case KindInt8:
		return "int8"
	case KindFloat32:
		return "float32"
	case KindBool:
		return "bool"
	case KindFloat64:
		return "float64"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Property is one settable property. Set receives the value already coerced
// to the Go type matching Kind.
type Property struct {
	Kind PropertyKind
	Set  func(v any) error
}

// Configurable caches and decorators expose their properties by name.
// Properties in the configuration that a layer does not declare are ignored
// by that layer.
type Configurable interface {
	Properties() map[string]Property
}

// Initializer is called after properties have been applied to a layer.
type Initializer interface {
	Initialize() error
}

func coerce(kind PropertyKind, raw string) (any, error) {
	switch kind {
	case KindString:
		return raw, nil
	case KindInt:
		return strconv.Atoi(raw)
	case KindInt64:
		return strconv.ParseInt(raw, 10, 64)
	case KindInt16:
		v, err := strconv.ParseInt(raw, 10, 16)
		return int16(v), err
	case KindInt8:
		v, err := strconv.ParseInt(raw, 10, 8)
		return int8(v), err
	case KindFloat32:
		v, err := strconv.ParseFloat(raw, 32)
		return float32(v), err
	case KindBool:
		return strconv.ParseBool(raw)
	case KindFloat64:
		return strconv.ParseFloat(raw, 64)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPropertyType, kind)
	}
}

// applyProperties sets every declared property of c found in props, in name
// order, then runs c's Initializer.
func applyProperties(c Cache, props map[string]string) error {
	if cfg, ok := c.(Configurable); ok && len(props) > 0 {
		declared := cfg.Properties()
		names := make([]string, 0, len(props))
		for name := range props {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			p, ok := declared[name]
			if !ok {
				continue
			}
			v, err := coerce(p.Kind, props[name])
			if err != nil {
				return &BuildError{Cache: c.ID(), Property: name, Err: err}
			}
			if err := p.Set(v); err != nil {
				return &BuildError{Cache: c.ID(), Property: name, Err: err}
			}
		}
	}
	if init, ok := c.(Initializer); ok {
		if err := init.Initialize(); err != nil {
			return &BuildError{Cache: c.ID(), Err: fmt.Errorf("initialize %T: %w", c, err)}
		}
	}
	return nil
}
