package mapping

import (
	"context"
	"database/sql"
)

// KeyGenerator fills generated keys into the parameter object around an insert.
type KeyGenerator interface {
	ProcessBefore(ctx context.Context, ms *MappedStatement, param any) error
	ProcessAfter(ctx context.Context, ms *MappedStatement, result sql.Result, param any) error
}

// BatchKeyGenerator can process a whole flushed batch entry at once.
// Generators without this capability get ProcessAfter once per parameter set.
type BatchKeyGenerator interface {
	KeyGenerator
	ProcessBatch(ctx context.Context, ms *MappedStatement, results []sql.Result, params []any) error
}

// NoKeyGenerator does nothing.
type NoKeyGenerator struct{}

func (NoKeyGenerator) ProcessBefore(context.Context, *MappedStatement, any) error { return nil }

func (NoKeyGenerator) ProcessAfter(context.Context, *MappedStatement, sql.Result, any) error {
	return nil
}

// IsNoKeyGenerator reports whether kg never does anything.
func IsNoKeyGenerator(kg KeyGenerator) bool {
	if kg == nil {
		return true
	}
	_, ok := kg.(NoKeyGenerator)
	return ok
}
