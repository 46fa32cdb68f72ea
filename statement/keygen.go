package statement

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goliatone/go-sqlmap/mapping"
	"github.com/goliatone/go-sqlmap/meta"
)

// GeneratedKeys copies the driver's last insert id into the statement's
// first key property. It needs a driver that reports LastInsertId, such as
// sqlite; lib/pq does not.
type GeneratedKeys struct {
	Accessor meta.Accessor
}

func NewGeneratedKeys(accessor meta.Accessor) *GeneratedKeys {
	return &GeneratedKeys{Accessor: accessor}
}

func (g *GeneratedKeys) ProcessBefore(context.Context, *mapping.MappedStatement, any) error {
	return nil
}

func (g *GeneratedKeys) ProcessAfter(_ context.Context, ms *mapping.MappedStatement, res sql.Result, param any) error {
	props := ms.KeyProperties()
	if len(props) == 0 || param == nil || res == nil {
		return nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("statement: generated key for %s: %w", ms.ID(), err)
	}
	return g.Accessor.Set(param, props[0], id)
}

// ProcessBatch assigns one key per parameter object of a flushed batch entry.
func (g *GeneratedKeys) ProcessBatch(ctx context.Context, ms *mapping.MappedStatement, results []sql.Result, params []any) error {
	if len(results) != len(params) {
		return fmt.Errorf("statement: %s produced %d results for %d parameter objects", ms.ID(), len(results), len(params))
	}
	for i, param := range params {
		if err := g.ProcessAfter(ctx, ms, results[i], param); err != nil {
			return err
		}
	}
	return nil
}
