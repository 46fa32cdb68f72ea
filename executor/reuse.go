package executor

import (
	"context"

	"github.com/goliatone/go-sqlmap/mapping"
	"github.com/goliatone/go-sqlmap/transaction"
)

// ReuseExecutor keeps prepared statements keyed by SQL text until the next
// flush, commit or rollback.
type ReuseExecutor struct {
	*BaseExecutor
	statements map[string]Statement
}

func NewReuseExecutor(cfg Config, tx transaction.Transaction) *ReuseExecutor {
	e := &ReuseExecutor{statements: make(map[string]Statement)}
	e.BaseExecutor = newBaseExecutor(cfg, tx, e, e)
	return e
}

func (e *ReuseExecutor) doUpdate(ctx context.Context, ms *mapping.MappedStatement, param any) (int64, error) {
	h, err := e.newHandler(ms, param, mapping.DefaultRowBounds, nil, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := e.statementFor(ctx, h)
	if err != nil {
		return 0, err
	}
	return h.Update(ctx, stmt)
}

func (e *ReuseExecutor) doQuery(ctx context.Context, ms *mapping.MappedStatement, param any, bounds mapping.RowBounds, rh mapping.ResultHandler, bound *mapping.BoundSQL) ([]any, error) {
	h, err := e.newHandler(ms, param, bounds, rh, bound)
	if err != nil {
		return nil, err
	}
	stmt, err := e.statementFor(ctx, h)
	if err != nil {
		return nil, err
	}
	return h.Query(ctx, stmt, rh)
}

func (e *ReuseExecutor) doQueryCursor(ctx context.Context, ms *mapping.MappedStatement, param any, bounds mapping.RowBounds, bound *mapping.BoundSQL) (mapping.Cursor, error) {
	h, err := e.newHandler(ms, param, bounds, nil, bound)
	if err != nil {
		return nil, err
	}
	stmt, err := e.statementFor(ctx, h)
	if err != nil {
		return nil, err
	}
	return h.QueryCursor(ctx, stmt)
}

func (e *ReuseExecutor) doFlushStatements(context.Context, bool) ([]BatchResult, error) {
	for sql, stmt := range e.statements {
		e.closeStatement(stmt)
		delete(e.statements, sql)
	}
	return []BatchResult{}, nil
}

// statementFor returns the cached statement for the handler's SQL when it is
// still usable, otherwise prepares and caches a new one.
func (e *ReuseExecutor) statementFor(ctx context.Context, h StatementHandler) (Statement, error) {
	sql := h.BoundSQL().SQL()
	stmt, ok := e.statements[sql]
	if ok && stmt.Valid() {
		stmt.ApplyTransactionTimeout(e.tx.Timeout())
	} else {
		if ok {
			e.closeStatement(stmt)
			delete(e.statements, sql)
		}
		conn, err := e.connection(ctx)
		if err != nil {
			return nil, err
		}
		stmt, err = h.Prepare(ctx, conn, e.tx.Timeout())
		if err != nil {
			return nil, err
		}
		e.statements[sql] = stmt
	}
	if err := h.Parameterize(ctx, stmt); err != nil {
		return nil, err
	}
	return stmt, nil
}

// Len reports how many prepared statements are cached.
func (e *ReuseExecutor) Len() int { return len(e.statements) }
