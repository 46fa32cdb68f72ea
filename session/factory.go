// Package session is the unit of work callers use: a Session resolves
// statement ids, runs them through its executor and tracks whether a commit
// or rollback has anything to do.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-sqlmap/executor"
	"github.com/goliatone/go-sqlmap/logging"
	"github.com/goliatone/go-sqlmap/mapping"
	"github.com/goliatone/go-sqlmap/transaction"
)

// Factory opens sessions that share statements, caches and executor settings.
type Factory struct {
	statements   *mapping.Registry
	transactions transaction.Factory
	executorCfg  executor.Config
	executorType executor.Type
	cacheEnabled bool
	txTimeout    time.Duration
	logger       logging.Logger
}

type Option func(*Factory)

func WithExecutorType(t executor.Type) Option { return func(f *Factory) { f.executorType = t } }

// WithCacheEnabled turns the namespace cache layer on or off. It is on by default.
func WithCacheEnabled(enabled bool) Option { return func(f *Factory) { f.cacheEnabled = enabled } }

// WithTransactionTimeout bounds every statement run inside one transaction.
func WithTransactionTimeout(d time.Duration) Option { return func(f *Factory) { f.txTimeout = d } }

func WithLogger(l logging.Logger) Option { return func(f *Factory) { f.logger = logging.OrNop(l) } }

func NewFactory(statements *mapping.Registry, transactions transaction.Factory, cfg executor.Config, opts ...Option) *Factory {
	f := &Factory{
		statements:   statements,
		transactions: transactions,
		executorCfg:  cfg,
		cacheEnabled: true,
		logger:       logging.OrNop(cfg.Logger),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.executorCfg.Logger == nil {
		f.executorCfg.Logger = f.logger
	}
	return f
}

func (f *Factory) Statements() *mapping.Registry { return f.statements }

// OpenSession opens a session with the factory's executor type and no autocommit.
func (f *Factory) OpenSession() (*Session, error) {
	return f.Open(f.executorType, false)
}

// Open opens a session with its own transaction and executor.
func (f *Factory) Open(t executor.Type, autoCommit bool) (*Session, error) {
	tx := f.transactions.NewTransaction(transaction.Options{AutoCommit: autoCommit, Timeout: f.txTimeout})
	ex := executor.New(t, f.executorCfg, tx)
	if f.cacheEnabled {
		ce, err := executor.NewCachingExecutor(ex, f.logger)
		if err != nil {
			ex.Close(context.Background(), true)
			return nil, fmt.Errorf("session: %w", err)
		}
		ex = ce
	}
	s := &Session{
		id:         uuid.NewString(),
		statements: f.statements,
		ex:         ex,
		autoCommit: autoCommit,
		logger:     f.logger,
	}
	f.logger.Debug("session opened", logging.Fields{"session": s.id, "executor": t.String(), "autocommit": autoCommit})
	return s, nil
}
