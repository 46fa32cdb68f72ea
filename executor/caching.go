package executor

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/goliatone/go-sqlmap/cache"
	"github.com/goliatone/go-sqlmap/logging"
	"github.com/goliatone/go-sqlmap/mapping"
	"github.com/goliatone/go-sqlmap/transaction"
)

// CachingExecutor adds the namespace (second level) cache on top of a
// strategy executor. Reads and writes to the shared caches are staged per
// session and only become visible to other sessions on commit.
type CachingExecutor struct {
	delegate Executor
	tcm      *cache.TransactionalCacheManager
	logger   logging.Logger
}

// NewCachingExecutor wraps delegate and registers itself as the delegate's
// outermost executor. It fails when delegate refuses a wrapper, which is
// the case for another CachingExecutor.
func NewCachingExecutor(delegate Executor, logger logging.Logger) (*CachingExecutor, error) {
	ce := &CachingExecutor{
		delegate: delegate,
		tcm:      cache.NewTransactionalCacheManager(),
		logger:   logging.OrNop(logger),
	}
	if err := delegate.SetWrapper(ce); err != nil {
		return nil, fmt.Errorf("wrap %T: %w", delegate, err)
	}
	return ce, nil
}

func (e *CachingExecutor) Delegate() Executor { return e.delegate }

func (e *CachingExecutor) Transaction() transaction.Transaction { return e.delegate.Transaction() }

func (e *CachingExecutor) IsClosed() bool { return e.delegate.IsClosed() }

// SetWrapper always fails: nothing may wrap the caching layer.
func (e *CachingExecutor) SetWrapper(Executor) error { return ErrWrapperNotSupported }

// Close publishes staged cache writes unless forced to roll back, then
// closes the delegate.
func (e *CachingExecutor) Close(ctx context.Context, forceRollback bool) {
	defer e.delegate.Close(ctx, forceRollback)
	if e.delegate.IsClosed() {
		return
	}
	var err error
	if forceRollback {
		err = e.tcm.Rollback(ctx)
	} else {
		err = e.tcm.Commit(ctx)
	}
	if err != nil {
		e.logger.Warn("unexpected error settling second level cache during close", logging.Fields{"error": err.Error()})
	}
}

func (e *CachingExecutor) Update(ctx context.Context, ms *mapping.MappedStatement, param any) (int64, error) {
	if e.delegate.IsClosed() {
		return 0, ErrExecutorClosed
	}
	if err := e.flushCacheIfRequired(ctx, ms); err != nil {
		return 0, err
	}
	return e.delegate.Update(ctx, ms, param)
}

func (e *CachingExecutor) QueryCursor(ctx context.Context, ms *mapping.MappedStatement, param any, bounds mapping.RowBounds) (mapping.Cursor, error) {
	if e.delegate.IsClosed() {
		return nil, ErrExecutorClosed
	}
	if err := e.flushCacheIfRequired(ctx, ms); err != nil {
		return nil, err
	}
	return e.delegate.QueryCursor(ctx, ms, param, bounds)
}

func (e *CachingExecutor) Query(ctx context.Context, ms *mapping.MappedStatement, param any, bounds mapping.RowBounds, rh mapping.ResultHandler) ([]any, error) {
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

// QueryWithKey consults the statement's namespace cache before the
// delegate. Queries with a result handler bypass it and so do statements
// with useCache off, although a required flush still happens.
func (e *CachingExecutor) QueryWithKey(ctx context.Context, ms *mapping.MappedStatement, param any, bounds mapping.RowBounds, rh mapping.ResultHandler, key *cache.CacheKey, bound *mapping.BoundSQL) ([]any, error) {
	if e.delegate.IsClosed() {
		return nil, ErrExecutorClosed
	}
	c := ms.Cache()
	if c == nil {
		return e.delegate.QueryWithKey(ctx, ms, param, bounds, rh, key, bound)
	}
	if err := e.flushCacheIfRequired(ctx, ms); err != nil {
		return nil, err
	}
	if !ms.UseCache() || rh != nil {
		return e.delegate.QueryWithKey(ctx, ms, param, bounds, rh, key, bound)
	}
	if err := ensureNoOutParams(ms, bound); err != nil {
		return nil, err
	}

	v, ok, err := e.tcm.Get(ctx, c, key)
	if err != nil {
		return nil, err
	}
	if ok {
		list, isList := v.([]any)
		if !isList && v != nil {
			return nil, fmt.Errorf("executor: cache %s holds %T under %s, expected a result list", c.ID(), v, ms.ID())
		}
		return list, nil
	}

	list, err := e.delegate.QueryWithKey(ctx, ms, param, bounds, rh, key, bound)
	if err != nil {
		if rerr := e.tcm.Release(ctx, c, key); rerr != nil {
			e.logger.Warn("failed to release cache key after failed load", logging.Fields{
				"cache": c.ID(), "statement": ms.ID(), "error": rerr.Error(),
			})
		}
		return nil, err
	}
	if err := e.tcm.Put(ctx, c, key, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (e *CachingExecutor) FlushStatements(ctx context.Context) ([]BatchResult, error) {
	return e.delegate.FlushStatements(ctx)
}

// Commit commits the delegate first, then publishes staged cache writes.
func (e *CachingExecutor) Commit(ctx context.Context, required bool) error {
	if err := e.delegate.Commit(ctx, required); err != nil {
		return err
	}
	return e.tcm.Commit(ctx)
}

// Rollback rolls back the delegate and always discards staged cache writes.
func (e *CachingExecutor) Rollback(ctx context.Context, required bool) error {
	err := e.delegate.Rollback(ctx, required)
	return errors.Join(err, e.tcm.Rollback(ctx))
}

func (e *CachingExecutor) CreateCacheKey(ms *mapping.MappedStatement, param any, bounds mapping.RowBounds, bound *mapping.BoundSQL) (*cache.CacheKey, error) {
	return e.delegate.CreateCacheKey(ms, param, bounds, bound)
}

func (e *CachingExecutor) IsCached(ms *mapping.MappedStatement, key *cache.CacheKey) bool {
	return e.delegate.IsCached(ms, key)
}

func (e *CachingExecutor) DeferLoad(ctx context.Context, ms *mapping.MappedStatement, target any, property string, key *cache.CacheKey, targetType reflect.Type) error {
	return e.delegate.DeferLoad(ctx, ms, target, property, key, targetType)
}

func (e *CachingExecutor) ClearLocalCache() { e.delegate.ClearLocalCache() }

func (e *CachingExecutor) flushCacheIfRequired(ctx context.Context, ms *mapping.MappedStatement) error {
	if c := ms.Cache(); c != nil && ms.FlushCacheRequired() {
		return e.tcm.Clear(ctx, c)
	}
	return nil
}

func ensureNoOutParams(ms *mapping.MappedStatement, bound *mapping.BoundSQL) error {
	for _, pm := range bound.ParameterMappings() {
		if pm.Mode != mapping.ModeIn {
			return fmt.Errorf("%w: %s parameter %s", ErrOutParamsNotCacheable, ms.ID(), pm.Property)
		}
	}
	return nil
}
