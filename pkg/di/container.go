// Package di wires a loaded configuration into a ready engine: the
// database, the namespace caches, the mapped statements and the session
// factory that ties them together.
package di

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-sqlmap/cache"
	"github.com/goliatone/go-sqlmap/codec"
	"github.com/goliatone/go-sqlmap/config"
	"github.com/goliatone/go-sqlmap/datasource"
	"github.com/goliatone/go-sqlmap/executor"
	"github.com/goliatone/go-sqlmap/internal/cacheinfra"
	"github.com/goliatone/go-sqlmap/logging"
	"github.com/goliatone/go-sqlmap/mapping"
	"github.com/goliatone/go-sqlmap/meta"
	"github.com/goliatone/go-sqlmap/session"
	"github.com/goliatone/go-sqlmap/statement"
	"github.com/goliatone/go-sqlmap/transaction"
)

// Container provides dependency injection for the engine.
// It owns the database it opened and every cache store that needs closing,
// and hands out the session factory built on top of them.
type Container struct {
	config     config.Config
	db         *bun.DB
	ownsDB     bool
	redis      cacheinfra.RedisClient
	accessor   *meta.Registry
	logger     logging.Logger
	caches     map[string]cache.Cache
	closers    []io.Closer
	statements *mapping.Registry
	handlers   *statement.Factory
	sessions   *session.Factory
}

// Option customizes a Container under construction.
type Option func(*Container)

func WithLogger(l logging.Logger) Option { return func(c *Container) { c.logger = logging.OrNop(l) } }

// WithDB uses db instead of opening the configured datasource. The
// container does not close it.
func WithDB(db *bun.DB) Option { return func(c *Container) { c.db = db } }

// WithAccessor supplies the property accessor table used for parameters
// and generated keys.
func WithAccessor(r *meta.Registry) Option { return func(c *Container) { c.accessor = r } }

// WithRedisClient shares a client with every redis backed cache.
func WithRedisClient(client cacheinfra.RedisClient) Option {
	return func(c *Container) { c.redis = client }
}

// NewContainer validates cfg and builds everything it describes.
// On error, whatever was already opened is closed again.
func NewContainer(cfg config.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("di: %w", err)
	}

	c := &Container{
		config:     cfg,
		logger:     logging.Nop{},
		caches:     make(map[string]cache.Cache, len(cfg.Caches)),
		statements: mapping.NewRegistry(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.accessor == nil {
		c.accessor = meta.NewRegistry()
	}

	if err := c.build(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// NewContainerFromFile loads the YAML file at path and builds a container from it.
func NewContainerFromFile(path string, opts ...Option) (*Container, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return NewContainer(*cfg, opts...)
}

func (c *Container) build() error {
	if c.db == nil {
		db, err := datasource.Open(c.config.Datasource)
		if err != nil {
			return err
		}
		c.db = db
		c.ownsDB = true
	}

	for _, cc := range c.config.Caches {
		built, err := c.buildCache(cc)
		if err != nil {
			return fmt.Errorf("di: %w", err)
		}
		c.caches[cc.ID] = built
	}

	c.handlers = &statement.Factory{
		Accessor:       c.accessor,
		Logger:         c.logger,
		DefaultTimeout: c.config.Settings.DefaultTimeout,
	}

	for _, sc := range c.config.Statements {
		ms, err := c.buildStatement(sc)
		if err != nil {
			return fmt.Errorf("di: statement %s: %w", sc.ID, err)
		}
		if err := c.statements.Add(ms); err != nil {
			return fmt.Errorf("di: %w", err)
		}
	}

	return c.buildSessions()
}

func (c *Container) buildCache(cc config.Cache) (cache.Cache, error) {
	cd, err := codec.ByName(cc.Codec)
	if err != nil {
		return nil, err
	}

	bc := cache.BuilderConfig{
		ID:            cc.ID,
		Size:          cc.Size,
		ClearInterval: cc.ClearInterval,
		ReadWrite:     cc.ReadWrite,
		Blocking:      cc.Blocking,
		Properties:    cc.Properties,
		Codec:         cd,
		Logger:        c.logger,
	}
	for _, name := range cc.Decorators {
		d, err := cache.DecoratorByName(name)
		if err != nil {
			return nil, err
		}
		bc.Decorators = append(bc.Decorators, d)
	}
	if !cc.IsDefault() {
		factory, err := cacheinfra.Provider(cc.Provider, cacheinfra.Options{
			Codec:     cd,
			Redis:     c.redis,
			BadgerDir: cc.Dir,
		})
		if err != nil {
			return nil, err
		}
		bc.Implementation = factory
	}

	built, err := cache.Build(bc)
	if err != nil {
		return nil, err
	}
	for _, layer := range cache.Chain(built) {
		if closer, ok := layer.(io.Closer); ok {
			c.closers = append(c.closers, closer)
		}
	}
	c.logger.Debug("cache built", logging.Fields{"cache": cc.ID, "provider": cc.Provider})
	return built, nil
}

func (c *Container) buildStatement(sc config.Statement) (*mapping.MappedStatement, error) {
	command, err := sc.CommandType()
	if err != nil {
		return nil, err
	}
	mappings, err := sc.Mappings()
	if err != nil {
		return nil, err
	}

	opts := []mapping.Option{mapping.WithTimeout(sc.Timeout)}
	if sc.Cache != "" {
		opts = append(opts, mapping.WithCache(c.caches[sc.Cache]))
	}
	if sc.FlushCache != nil {
		opts = append(opts, mapping.WithFlushCache(*sc.FlushCache))
	}
	if sc.UseCache != nil {
		opts = append(opts, mapping.WithUseCache(*sc.UseCache))
	}
	if sc.KeyGenerator == config.KeyGeneratorGenerated {
		opts = append(opts, mapping.WithKeyGenerator(statement.NewGeneratedKeys(c.accessor), sc.KeyProperties...))
	}

	source := mapping.StaticSQL{SQL: sc.SQL, Mappings: mappings}
	return mapping.NewMappedStatement(sc.ID, source, command, opts...), nil
}

func (c *Container) buildSessions() error {
	settings := c.config.Settings
	typ, err := settings.Executor()
	if err != nil {
		return err
	}
	scope, err := settings.Scope()
	if err != nil {
		return err
	}

	exCfg := executor.Config{
		EnvironmentID:   c.config.Environment,
		LocalCacheScope: scope,
		Handlers:        c.handlers.Handler,
		Accessor:        c.accessor,
		Logger:          c.logger,
	}
	c.sessions = session.NewFactory(
		c.statements,
		transaction.BunFactory{DB: c.db, Logger: c.logger},
		exCfg,
		session.WithExecutorType(typ),
		session.WithCacheEnabled(settings.CachingEnabled()),
		session.WithTransactionTimeout(settings.TransactionTimeout),
		session.WithLogger(c.logger),
	)
	return nil
}

// Config returns a copy of the configuration used by this container.
func (c *Container) Config() config.Config { return c.config }

func (c *Container) DB() *bun.DB { return c.db }

func (c *Container) Accessor() *meta.Registry { return c.accessor }

// Statements is the registry sessions resolve ids against. Statements
// that need a RowMapper can be added to it directly.
func (c *Container) Statements() *mapping.Registry { return c.statements }

func (c *Container) Sessions() *session.Factory { return c.sessions }

// OpenSession opens a session with the configured executor type and autocommit.
func (c *Container) OpenSession() (*session.Session, error) {
	typ, _ := c.config.Settings.Executor()
	return c.sessions.Open(typ, c.config.Settings.AutoCommit)
}

// Cache returns the namespace cache declared with id.
func (c *Container) Cache(id string) (cache.Cache, bool) {
	built, ok := c.caches[id]
	return built, ok
}

// CacheIDs lists the declared caches in name order.
func (c *Container) CacheIDs() []string {
	ids := make([]string, 0, len(c.caches))
	for id := range c.caches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CacheStats is a snapshot of one namespace cache.
type CacheStats struct {
	ID       string
	Requests int64
	Hits     int64
	HitRatio float64
	Size     int
}

// Stats reports every cache in name order. Request counts come from the
// logging layer every built cache carries.
func (c *Container) Stats(ctx context.Context) ([]CacheStats, error) {
	out := make([]CacheStats, 0, len(c.caches))
	for _, id := range c.CacheIDs() {
		built := c.caches[id]
		size, err := built.Size(ctx)
		if err != nil {
			return nil, fmt.Errorf("di: size of cache %s: %w", id, err)
		}
		st := CacheStats{ID: id, Size: size}
		if lc, ok := cache.Find[*cache.LoggingCache](built); ok {
			st.Requests = lc.Requests()
			st.Hits = lc.Hits()
			st.HitRatio = lc.HitRatio()
		}
		out = append(out, st)
	}
	return out, nil
}

// Close releases cache stores and, when the container opened it, the database.
func (c *Container) Close() error {
	var errs []error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	if c.ownsDB && c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, err)
		}
		c.ownsDB = false
	}
	return errors.Join(errs...)
}
