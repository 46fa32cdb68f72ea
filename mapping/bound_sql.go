package mapping

import (
	"strings"

	"github.com/goliatone/go-sqlmap/meta"
)

// ParameterMode is the direction of a statement parameter.
type ParameterMode int

const (
	ModeIn ParameterMode = iota
	ModeOut
	ModeInOut
)

// ParameterMapping binds one placeholder to a property of the parameter object.
type ParameterMapping struct {
	Property string
	Mode     ParameterMode
}

func In(property string) ParameterMapping { return ParameterMapping{Property: property} }

// BoundSQL is final SQL text plus the ordered parameter mappings for one call.
type BoundSQL struct {
	sql        string
	mappings   []ParameterMapping
	param      any
	additional map[string]any
}

func NewBoundSQL(sql string, mappings []ParameterMapping, param any) *BoundSQL {
	return &BoundSQL{
		sql:        sql,
		mappings:   append([]ParameterMapping(nil), mappings...),
		param:      param,
		additional: make(map[string]any),
	}
}

func (b *BoundSQL) SQL() string                           { return b.sql }
func (b *BoundSQL) ParameterMappings() []ParameterMapping { return b.mappings }
func (b *BoundSQL) ParameterObject() any                  { return b.param }

// SetAdditionalParameter records a value produced while resolving the SQL,
// such as a loop variable, that takes precedence over the parameter object.
func (b *BoundSQL) SetAdditionalParameter(name string, value any) {
	b.additional[name] = value
}

// HasAdditionalParameter checks the first segment of a dotted property path.
func (b *BoundSQL) HasAdditionalParameter(path string) bool {
	_, ok := b.additional[rootName(path)]
	return ok
}

func (b *BoundSQL) AdditionalParameter(accessor meta.Accessor, path string) (any, error) {
	return accessor.Get(b.additional, path)
}

func rootName(path string) string {
	if i := strings.IndexAny(path, ".["); i >= 0 {
		return path[:i]
	}
	return path
}

// ResolveParameter returns the value bound for pm: an additional parameter
// when one exists, the parameter object itself when it is a scalar, or the
// named property of the parameter object.
func ResolveParameter(b *BoundSQL, accessor meta.Accessor, pm ParameterMapping) (any, error) {
	switch {
	case b.HasAdditionalParameter(pm.Property):
		return b.AdditionalParameter(accessor, pm.Property)
	case b.param == nil:
		return nil, nil
	case meta.IsScalar(b.param):
		return b.param, nil
	default:
		return accessor.Get(b.param, pm.Property)
	}
}

// BindArgs resolves every input parameter, in order, for execution.
func BindArgs(b *BoundSQL, accessor meta.Accessor) ([]any, error) {
	args := make([]any, 0, len(b.mappings))
	for _, pm := range b.mappings {
		if pm.Mode == ModeOut {
			continue
		}
		v, err := ResolveParameter(b, accessor, pm)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return args, nil
}
