package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/goliatone/go-sqlmap/cache"
	"github.com/goliatone/go-sqlmap/logging"
	"github.com/goliatone/go-sqlmap/mapping"
	"github.com/goliatone/go-sqlmap/meta"
	"github.com/goliatone/go-sqlmap/transaction"
)

var (
	ErrExecutorClosed        = errors.New("executor: executor was closed")
	ErrNoTransaction         = errors.New("executor: no transaction")
	ErrExecutionPending      = errors.New("executor: query for this key is already executing; defer the load")
	ErrWrapperNotSupported   = errors.New("executor: caching executor must be the outermost executor")
	ErrOutParamsNotCacheable = errors.New("executor: caching statements with OUT parameters is not supported")
	ErrTooManyResults        = errors.New("executor: expected at most one result")
	ErrNoHandlerFactory      = errors.New("executor: no statement handler factory configured")
)

// BatchUpdateReturnValue is what Update returns for a write queued by the
// Batch strategy; real counts arrive with FlushStatements.
const BatchUpdateReturnValue int64 = -2147482646

// Executor runs mapped statements for one session.
type Executor interface {
	Update(ctx context.Context, ms *mapping.MappedStatement, param any) (int64, error)
	Query(ctx context.Context, ms *mapping.MappedStatement, param any, bounds mapping.RowBounds, rh mapping.ResultHandler) ([]any, error)
	QueryWithKey(ctx context.Context, ms *mapping.MappedStatement, param any, bounds mapping.RowBounds, rh mapping.ResultHandler, key *cache.CacheKey, bound *mapping.BoundSQL) ([]any, error)
	QueryCursor(ctx context.Context, ms *mapping.MappedStatement, param any, bounds mapping.RowBounds) (mapping.Cursor, error)
	FlushStatements(ctx context.Context) ([]BatchResult, error)
	Commit(ctx context.Context, required bool) error
	Rollback(ctx context.Context, required bool) error
	CreateCacheKey(ms *mapping.MappedStatement, param any, bounds mapping.RowBounds, bound *mapping.BoundSQL) (*cache.CacheKey, error)
	IsCached(ms *mapping.MappedStatement, key *cache.CacheKey) bool
	ClearLocalCache()
	DeferLoad(ctx context.Context, ms *mapping.MappedStatement, target any, property string, key *cache.CacheKey, targetType reflect.Type) error
	Transaction() transaction.Transaction
	Close(ctx context.Context, forceRollback bool)
	IsClosed() bool
	SetWrapper(wrapper Executor) error
}

// Statement is a native prepared statement as seen by the strategies.
type Statement interface {
	SQL() string
	// Bind sets the arguments for the next Exec, Query or AddBatch.
	Bind(args []any)
	AddBatch()
	// ExecuteBatch runs every queued argument set in order.
	ExecuteBatch(ctx context.Context) ([]sql.Result, error)
	Exec(ctx context.Context) (sql.Result, error)
	Query(ctx context.Context) (*sql.Rows, error)
	ApplyTransactionTimeout(d time.Duration)
	// CloseOnCompletion closes the statement once the rows of a cursor opened on it are closed.
	CloseOnCompletion()
	// Valid reports whether the statement and its connection are still open.
	Valid() bool
	Close() error
}

// StatementHandler prepares, parameterizes and runs one statement call.
type StatementHandler interface {
	Prepare(ctx context.Context, conn transaction.Conn, txTimeout time.Duration) (Statement, error)
	Parameterize(ctx context.Context, stmt Statement) error
	Batch(ctx context.Context, stmt Statement) error
	Update(ctx context.Context, stmt Statement) (int64, error)
	Query(ctx context.Context, stmt Statement, rh mapping.ResultHandler) ([]any, error)
	QueryCursor(ctx context.Context, stmt Statement) (mapping.Cursor, error)
	BoundSQL() *mapping.BoundSQL
}

// HandlerFactory creates the StatementHandler for one call. ex is the
// outermost executor, to be used by nested queries issued while mapping
// results. bound is nil when the handler should resolve it itself.
type HandlerFactory func(ex Executor, ms *mapping.MappedStatement, param any, bounds mapping.RowBounds, rh mapping.ResultHandler, bound *mapping.BoundSQL) (StatementHandler, error)

// Type selects the statement reuse strategy.
type Type int

const (
	TypeSimple Type = iota
	TypeReuse
	TypeBatch
)

func (t Type) String() string {
	switch t {
	case TypeReuse:
		return "REUSE"
	case TypeBatch:
		return "BATCH"
	default:
		return "SIMPLE"
	}
}

func ParseType(s string) (Type, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "SIMPLE":
		return TypeSimple, nil
	case "REUSE":
		return TypeReuse, nil
	case "BATCH":
		return TypeBatch, nil
	default:
		return TypeSimple, fmt.Errorf("executor: unknown executor type %q", s)
	}
}

// LocalCacheScope is how long local cache entries live.
type LocalCacheScope int

const (
	// ScopeSession keeps entries until a write, commit, rollback or close.
	ScopeSession LocalCacheScope = iota
	// ScopeStatement wipes the local cache whenever an outermost query returns.
	ScopeStatement
)

func (s LocalCacheScope) String() string {
	if s == ScopeStatement {
		return "STATEMENT"
	}
	return "SESSION"
}

func ParseLocalCacheScope(s string) (LocalCacheScope, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "SESSION":
		return ScopeSession, nil
	case "STATEMENT":
		return ScopeStatement, nil
	default:
		return ScopeSession, fmt.Errorf("executor: unknown local cache scope %q", s)
	}
}

// Config is shared by every executor of a configuration.
type Config struct {
	// EnvironmentID, when set, is the last contribution to every CacheKey.
	EnvironmentID   string
	LocalCacheScope LocalCacheScope
	Handlers        HandlerFactory
	Accessor        meta.Accessor
	Logger          logging.Logger
}

func (c Config) withDefaults() Config {
	if c.Accessor == nil {
		c.Accessor = meta.NewRegistry()
	}
	c.Logger = logging.OrNop(c.Logger)
	return c
}

// New creates a strategy executor of the given type.
func New(t Type, cfg Config, tx transaction.Transaction) Executor {
	switch t {
	case TypeReuse:
		return NewReuseExecutor(cfg, tx)
	case TypeBatch:
		return NewBatchExecutor(cfg, tx)
	default:
		return NewSimpleExecutor(cfg, tx)
	}
}
