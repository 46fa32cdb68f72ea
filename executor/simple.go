package executor

import (
	"context"

	"github.com/goliatone/go-sqlmap/mapping"
	"github.com/goliatone/go-sqlmap/transaction"
)

// SimpleExecutor prepares a new statement for every call and closes it
// afterwards.
type SimpleExecutor struct {
	*BaseExecutor
}

func NewSimpleExecutor(cfg Config, tx transaction.Transaction) *SimpleExecutor {
	e := &SimpleExecutor{}
	e.BaseExecutor = newBaseExecutor(cfg, tx, e, e)
	return e
}

func (e *SimpleExecutor) doUpdate(ctx context.Context, ms *mapping.MappedStatement, param any) (int64, error) {
	h, err := e.newHandler(ms, param, mapping.DefaultRowBounds, nil, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := e.prepare(ctx, h)
	if err != nil {
		return 0, err
	}
	defer e.closeStatement(stmt)
	return h.Update(ctx, stmt)
}

func (e *SimpleExecutor) doQuery(ctx context.Context, ms *mapping.MappedStatement, param any, bounds mapping.RowBounds, rh mapping.ResultHandler, bound *mapping.BoundSQL) ([]any, error) {
	h, err := e.newHandler(ms, param, bounds, rh, bound)
	if err != nil {
		return nil, err
	}
	stmt, err := e.prepare(ctx, h)
	if err != nil {
		return nil, err
	}
	defer e.closeStatement(stmt)
	return h.Query(ctx, stmt, rh)
}

func (e *SimpleExecutor) doQueryCursor(ctx context.Context, ms *mapping.MappedStatement, param any, bounds mapping.RowBounds, bound *mapping.BoundSQL) (mapping.Cursor, error) {
	h, err := e.newHandler(ms, param, bounds, nil, bound)
	if err != nil {
		return nil, err
	}
	stmt, err := e.prepare(ctx, h)
	if err != nil {
		return nil, err
	}
	stmt.CloseOnCompletion()
	cursor, err := h.QueryCursor(ctx, stmt)
	if err != nil {
		e.closeStatement(stmt)
		return nil, err
	}
	return cursor, nil
}

func (e *SimpleExecutor) doFlushStatements(context.Context, bool) ([]BatchResult, error) {
	return []BatchResult{}, nil
}
