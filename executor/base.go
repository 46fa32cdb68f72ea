package executor

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/goliatone/go-sqlmap/cache"
	"github.com/goliatone/go-sqlmap/logging"
	"github.com/goliatone/go-sqlmap/mapping"
	"github.com/goliatone/go-sqlmap/transaction"
)

// strategy is the part of an executor that talks to native statements.
type strategy interface {
	doUpdate(ctx context.Context, ms *mapping.MappedStatement, param any) (int64, error)
	doQuery(ctx context.Context, ms *mapping.MappedStatement, param any, bounds mapping.RowBounds, rh mapping.ResultHandler, bound *mapping.BoundSQL) ([]any, error)
	doQueryCursor(ctx context.Context, ms *mapping.MappedStatement, param any, bounds mapping.RowBounds, bound *mapping.BoundSQL) (mapping.Cursor, error)
	doFlushStatements(ctx context.Context, isRollback bool) ([]BatchResult, error)
}

// BaseExecutor holds the behavior shared by every strategy: the local
// cache, deferred loads, nested query tracking and the transaction
// lifecycle.
type BaseExecutor struct {
	id       string
	cfg      Config
	logger   logging.Logger
	tx       transaction.Transaction
	impl     strategy
	wrapper  Executor
	local    *localCache
	deferred []*deferredLoad

	queryStack int
	closed     bool
}

func newBaseExecutor(cfg Config, tx transaction.Transaction, impl strategy, self Executor) *BaseExecutor {
	cfg = cfg.withDefaults()
	id := uuid.NewString()
	return &BaseExecutor{
		id:      id,
		cfg:     cfg,
		logger:  cfg.Logger,
		tx:      tx,
		impl:    impl,
		wrapper: self,
		local:   newLocalCache(),
	}
}

func (e *BaseExecutor) ID() string { return e.id }

func (e *BaseExecutor) Transaction() transaction.Transaction { return e.tx }

func (e *BaseExecutor) IsClosed() bool { return e.closed }

// SetWrapper records the outermost executor, which is handed to statement
// handlers so nested queries go through every layer.
func (e *BaseExecutor) SetWrapper(wrapper Executor) error {
	e.wrapper = wrapper
	return nil
}

func (e *BaseExecutor) Update(ctx context.Context, ms *mapping.MappedStatement, param any) (int64, error) {
	if e.closed {
		return 0, ErrExecutorClosed
	}
	e.logger.Debug("executing update", logging.Fields{"executor": e.id, "statement": ms.ID()})
	e.ClearLocalCache()
	return e.impl.doUpdate(ctx, ms, param)
}

func (e *BaseExecutor) Query(ctx context.Context, ms *mapping.MappedStatement, param any, bounds mapping.RowBounds, rh mapping.ResultHandler) ([]any, error) {
	bounds = bounds.Normalize()
	bound, err := ms.BoundSQL(param)
	if err != nil {
		return nil, err
	}
	key, err := e.CreateCacheKey(ms, param, bounds, bound)
	if err != nil {
		return nil, err
	}
	return e.QueryWithKey(ctx, ms, param, bounds, rh, key, bound)
}

// QueryWithKey answers from the local cache when it can and queries the
// database otherwise. When the key belongs to a query that is still running
// further up the stack it fails with ErrExecutionPending; the caller should
// register a deferred load instead.
func (e *BaseExecutor) QueryWithKey(ctx context.Context, ms *mapping.MappedStatement, param any, bounds mapping.RowBounds, rh mapping.ResultHandler, key *cache.CacheKey, bound *mapping.BoundSQL) ([]any, error) {
	if e.closed {
		return nil, ErrExecutorClosed
	}
	bounds = bounds.Normalize()
	if e.queryStack == 0 && ms.FlushCacheRequired() {
		e.ClearLocalCache()
	}

	list, err := e.nestedQuery(ctx, ms, param, bounds, rh, key, bound)

	if e.queryStack == 0 {
		if err == nil {
			err = e.runDeferredLoads()
		} else {
			e.deferred = nil
		}
		if e.cfg.LocalCacheScope == ScopeStatement {
			e.ClearLocalCache()
		}
	}
	return list, err
}

func (e *BaseExecutor) nestedQuery(ctx context.Context, ms *mapping.MappedStatement, param any, bounds mapping.RowBounds, rh mapping.ResultHandler, key *cache.CacheKey, bound *mapping.BoundSQL) ([]any, error) {
	e.queryStack++
	defer func() { e.queryStack-- }()

	if rh == nil {
		entry := e.local.lookup(key)
		switch entry.state {
		case entryPresent:
			e.logger.Debug("local cache hit", logging.Fields{"executor": e.id, "statement": ms.ID()})
			return entry.list, nil
		case entryPending:
			return nil, fmt.Errorf("%w: %s", ErrExecutionPending, ms.ID())
		}
	}
	return e.queryFromDatabase(ctx, ms, param, bounds, rh, key, bound)
}

func (e *BaseExecutor) queryFromDatabase(ctx context.Context, ms *mapping.MappedStatement, param any, bounds mapping.RowBounds, rh mapping.ResultHandler, key *cache.CacheKey, bound *mapping.BoundSQL) ([]any, error) {
	e.local.markPending(key)
	list, err := func() ([]any, error) {
		defer e.local.remove(key)
		return e.impl.doQuery(ctx, ms, param, bounds, rh, bound)
	}()
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []any{}
	}
	e.local.store(key, list)
	return list, nil
}

func (e *BaseExecutor) runDeferredLoads() error {
	pending := e.deferred
	e.deferred = nil
	var errs []error
	for _, dl := range pending {
		if err := dl.load(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *BaseExecutor) QueryCursor(ctx context.Context, ms *mapping.MappedStatement, param any, bounds mapping.RowBounds) (mapping.Cursor, error) {
	if e.closed {
		return nil, ErrExecutorClosed
	}
	bound, err := ms.BoundSQL(param)
	if err != nil {
		return nil, err
	}
	return e.impl.doQueryCursor(ctx, ms, param, bounds.Normalize(), bound)
}

func (e *BaseExecutor) FlushStatements(ctx context.Context) ([]BatchResult, error) {
	return e.flushStatements(ctx, false)
}

func (e *BaseExecutor) flushStatements(ctx context.Context, isRollback bool) ([]BatchResult, error) {
	if e.closed {
		return nil, ErrExecutorClosed
	}
	return e.impl.doFlushStatements(ctx, isRollback)
}

// Commit flushes pending statements and, when required, commits the
// transaction. The local cache is cleared either way.
func (e *BaseExecutor) Commit(ctx context.Context, required bool) error {
	if e.closed {
		return fmt.Errorf("cannot commit: %w", ErrExecutorClosed)
	}
	e.ClearLocalCache()
	if _, err := e.flushStatements(ctx, false); err != nil {
		return err
	}
	if required && e.tx != nil {
		return e.tx.Commit(ctx)
	}
	return nil
}

// Rollback discards pending statements and, when required, rolls the
// transaction back even if discarding failed.
func (e *BaseExecutor) Rollback(ctx context.Context, required bool) error {
	if e.closed {
		return nil
	}
	e.ClearLocalCache()
	_, flushErr := e.flushStatements(ctx, true)
	if !required || e.tx == nil {
		return flushErr
	}
	return errors.Join(flushErr, e.tx.Rollback(ctx))
}

// Close rolls back (when forced) and closes the transaction. It never fails;
// problems are logged.
func (e *BaseExecutor) Close(ctx context.Context, forceRollback bool) {
	if e.closed {
		return
	}
	if err := e.Rollback(ctx, forceRollback); err != nil {
		e.logger.Warn("unexpected error on rollback during close", logging.Fields{"executor": e.id, "error": err.Error()})
	}
	if e.tx != nil {
		if err := e.tx.Close(ctx); err != nil {
			e.logger.Warn("unexpected error closing transaction", logging.Fields{"executor": e.id, "error": err.Error()})
		}
	}
	e.local.clear()
	e.deferred = nil
	e.closed = true
}

// CreateCacheKey contributes the statement id, offset, limit, SQL text,
// every non-OUT parameter value and the environment id, in that order.
func (e *BaseExecutor) CreateCacheKey(ms *mapping.MappedStatement, param any, bounds mapping.RowBounds, bound *mapping.BoundSQL) (*cache.CacheKey, error) {
	if e.closed {
		return nil, ErrExecutorClosed
	}
	bounds = bounds.Normalize()
	key := cache.NewCacheKey(ms.ID(), bounds.Offset, bounds.Limit, bound.SQL())
	for _, pm := range bound.ParameterMappings() {
		if pm.Mode == mapping.ModeOut {
			continue
		}
		v, err := mapping.ResolveParameter(bound, e.cfg.Accessor, pm)
		if err != nil {
			return nil, fmt.Errorf("executor: resolve parameter %s of %s: %w", pm.Property, ms.ID(), err)
		}
		key.Update(v)
	}
	if e.cfg.EnvironmentID != "" {
		key.Update(e.cfg.EnvironmentID)
	}
	return key, nil
}

func (e *BaseExecutor) IsCached(_ *mapping.MappedStatement, key *cache.CacheKey) bool {
	return e.local.contains(key)
}

// ClearLocalCache drops every local entry. Deferred loads are kept.
func (e *BaseExecutor) ClearLocalCache() {
	if e.closed {
		return
	}
	e.local.clear()
}

// DeferLoad sets target's property from the result cached under key. It
// happens now when that result is already present, otherwise once the
// outermost query returns.
func (e *BaseExecutor) DeferLoad(_ context.Context, _ *mapping.MappedStatement, target any, property string, key *cache.CacheKey, targetType reflect.Type) error {
	if e.closed {
		return ErrExecutorClosed
	}
	dl := &deferredLoad{
		target:     target,
		property:   property,
		key:        key,
		local:      e.local,
		accessor:   e.cfg.Accessor,
		targetType: targetType,
	}
	if dl.canLoad() {
		return dl.load()
	}
	e.deferred = append(e.deferred, dl)
	return nil
}

func (e *BaseExecutor) connection(ctx context.Context) (transaction.Conn, error) {
	if e.tx == nil {
		return nil, ErrNoTransaction
	}
	conn, err := e.tx.Connection(ctx)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("using connection", logging.Fields{"executor": e.id})
	return conn, nil
}

func (e *BaseExecutor) newHandler(ms *mapping.MappedStatement, param any, bounds mapping.RowBounds, rh mapping.ResultHandler, bound *mapping.BoundSQL) (StatementHandler, error) {
	if e.cfg.Handlers == nil {
		return nil, ErrNoHandlerFactory
	}
	return e.cfg.Handlers(e.wrapper, ms, param, bounds, rh, bound)
}

// prepare opens and parameterizes a fresh statement, closing it again when
// parameterizing fails.
func (e *BaseExecutor) prepare(ctx context.Context, h StatementHandler) (Statement, error) {
	conn, err := e.connection(ctx)
	if err != nil {
		return nil, err
	}
	stmt, err := h.Prepare(ctx, conn, e.tx.Timeout())
	if err != nil {
		return nil, err
	}
	if err := h.Parameterize(ctx, stmt); err != nil {
		e.closeStatement(stmt)
		return nil, err
	}
	return stmt, nil
}

func (e *BaseExecutor) closeStatement(stmt Statement) {
	if stmt == nil {
		return
	}
	if err := stmt.Close(); err != nil {
		e.logger.Debug("error closing statement", logging.Fields{"executor": e.id, "error": err.Error()})
	}
}
