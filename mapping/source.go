package mapping

// SQLSource produces the BoundSQL for a parameter object.
type SQLSource interface {
	BoundSQL(param any) (*BoundSQL, error)
}

// StaticSQL is a SQLSource whose text and mappings never depend on the parameter.
type StaticSQL struct {
	SQL      string
	Mappings []ParameterMapping
}

// NewStaticSQL builds a static source with one input mapping per property.
func NewStaticSQL(sql string, properties ...string) StaticSQL {
	mappings := make([]ParameterMapping, len(properties))
	for i, p := range properties {
		mappings[i] = In(p)
	}
	return StaticSQL{SQL: sql, Mappings: mappings}
}

func (s StaticSQL) BoundSQL(param any) (*BoundSQL, error) {
	return NewBoundSQL(s.SQL, s.Mappings, param), nil
}

// SQLSourceFunc adapts a function to SQLSource.
type SQLSourceFunc func(param any) (*BoundSQL, error)

func (f SQLSourceFunc) BoundSQL(param any) (*BoundSQL, error) { return f(param) }
