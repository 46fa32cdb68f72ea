package executor

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goliatone/go-sqlmap/logging"
	"github.com/goliatone/go-sqlmap/mapping"
	"github.com/goliatone/go-sqlmap/transaction"
)

// BatchResult is one flushed batch entry: consecutive writes that shared a
// mapped statement and SQL text.
type BatchResult struct {
	MappedStatement  *mapping.MappedStatement
	SQL              string
	ParameterObjects []any
	UpdateCounts     []int64
}

// ParameterObject returns the first parameter object of the entry.
func (r BatchResult) ParameterObject() any {
	if len(r.ParameterObjects) == 0 {
		return nil
	}
	return r.ParameterObjects[0]
}

// BatchError reports the entry that failed during a flush together with the
// entries that had already executed.
type BatchError struct {
	Successful  []BatchResult
	Index       int
	StatementID string
	SQL         string
	Err         error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("executor: batch entry %d (statement %s) failed: %v; %d earlier entries executed successfully; SQL: %s",
		e.Index, e.StatementID, e.Err, len(e.Successful), e.SQL)
}

func (e *BatchError) Unwrap() error { return e.Err }

// BatchExecutor queues writes and runs them on FlushStatements. Any query
// flushes the queue first so it sees earlier writes.
type BatchExecutor struct {
	*BaseExecutor
	statements []Statement
	results    []*BatchResult
	currentSQL string
	currentMS  *mapping.MappedStatement
}

func NewBatchExecutor(cfg Config, tx transaction.Transaction) *BatchExecutor {
	e := &BatchExecutor{}
	e.BaseExecutor = newBaseExecutor(cfg, tx, e, e)
	return e
}

// doUpdate queues the write. It appends to the last entry when both the SQL
// and the mapped statement match, and opens a new entry otherwise.
func (e *BatchExecutor) doUpdate(ctx context.Context, ms *mapping.MappedStatement, param any) (int64, error) {
	h, err := e.newHandler(ms, param, mapping.DefaultRowBounds, nil, nil)
	if err != nil {
		return 0, err
	}
	sql := h.BoundSQL().SQL()

	var stmt Statement
	if last := len(e.statements) - 1; last >= 0 && sql == e.currentSQL && ms == e.currentMS {
		stmt = e.statements[last]
		stmt.ApplyTransactionTimeout(e.tx.Timeout())
		if err := h.Parameterize(ctx, stmt); err != nil {
			return 0, err
		}
		e.results[last].ParameterObjects = append(e.results[last].ParameterObjects, param)
	} else {
		stmt, err = e.prepare(ctx, h)
		if err != nil {
			return 0, err
		}
		e.currentSQL = sql
		e.currentMS = ms
		e.statements = append(e.statements, stmt)
		e.results = append(e.results, &BatchResult{MappedStatement: ms, SQL: sql, ParameterObjects: []any{param}})
	}
	if err := h.Batch(ctx, stmt); err != nil {
		return 0, err
	}
	return BatchUpdateReturnValue, nil
}

func (e *BatchExecutor) doQuery(ctx context.Context, ms *mapping.MappedStatement, param any, bounds mapping.RowBounds, rh mapping.ResultHandler, bound *mapping.BoundSQL) ([]any, error) {
	if _, err := e.flushStatements(ctx, false); err != nil {
		return nil, err
	}
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

func (e *BatchExecutor) doQueryCursor(ctx context.Context, ms *mapping.MappedStatement, param any, bounds mapping.RowBounds, bound *mapping.BoundSQL) (mapping.Cursor, error) {
	if _, err := e.flushStatements(ctx, false); err != nil {
		return nil, err
	}
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

// doFlushStatements executes the queued entries in order, or just discards
// them on rollback. All statements are closed and the queue reset whatever
// happens.
func (e *BatchExecutor) doFlushStatements(ctx context.Context, isRollback bool) ([]BatchResult, error) {
	defer e.resetBatch()

	out := make([]BatchResult, 0, len(e.results))
	if isRollback {
		return out, nil
	}
	for i, stmt := range e.statements {
		br := e.results[i]
		res, err := stmt.ExecuteBatch(ctx)
		if err == nil {
			err = e.generateKeys(ctx, br, res)
		}
		if err != nil {
			return out, &BatchError{
				Successful:  out,
				Index:       i,
				StatementID: br.MappedStatement.ID(),
				SQL:         br.SQL,
				Err:         err,
			}
		}
		br.UpdateCounts = make([]int64, len(res))
		for j, r := range res {
			n, rerr := r.RowsAffected()
			if rerr != nil {
				n = -1
			}
			br.UpdateCounts[j] = n
		}
		out = append(out, *br)
	}
	e.logger.Debug("flushed batch", logging.Fields{"executor": e.id, "entries": len(out)})
	return out, nil
}

func (e *BatchExecutor) generateKeys(ctx context.Context, br *BatchResult, res []sql.Result) error {
	kg := br.MappedStatement.KeyGenerator()
	if bkg, ok := kg.(mapping.BatchKeyGenerator); ok {
		return bkg.ProcessBatch(ctx, br.MappedStatement, res, br.ParameterObjects)
	}
	if mapping.IsNoKeyGenerator(kg) {
		return nil
	}
	for j, param := range br.ParameterObjects {
		if j >= len(res) {
			break
		}
		if err := kg.ProcessAfter(ctx, br.MappedStatement, res[j], param); err != nil {
			return err
		}
	}
	return nil
}

func (e *BatchExecutor) resetBatch() {
	for _, stmt := range e.statements {
		e.closeStatement(stmt)
	}
	e.statements = nil
	e.results = nil
	e.currentSQL = ""
	e.currentMS = nil
}

// Pending reports how many entries are queued.
func (e *BatchExecutor) Pending() int { return len(e.results) }
