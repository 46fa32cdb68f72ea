package di

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-sqlmap/cache"
	"github.com/goliatone/go-sqlmap/config"
	"github.com/goliatone/go-sqlmap/datasource"
	"github.com/goliatone/go-sqlmap/executor"
	"github.com/goliatone/go-sqlmap/internal/cacheinfra"
	"github.com/goliatone/go-sqlmap/pkg/testsupport"
)

func intPtr(n int) *int { return &n }

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Datasource: datasource.Config{
			Driver: datasource.DriverSQLite,
			DSN:    "file:" + filepath.Join(t.TempDir(), "di.db") + "?_busy_timeout=5000",
		},
		Environment: "test",
		Settings:    config.Settings{ExecutorType: "reuse"},
		Caches: []config.Cache{
			{ID: "users", Decorators: []string{"fifo"}, Size: intPtr(64)},
			{ID: "orders", Provider: "sturdyc", Properties: map[string]string{"capacity": "512"}},
		},
		Statements: []config.Statement{
			{ID: "users.byID", Command: "select", SQL: "SELECT id, name FROM users WHERE id = ?", Params: []string{"id"}, Cache: "users"},
			{ID: "orders.all", Command: "select", SQL: "SELECT id FROM orders", Cache: "orders"},
		},
	}
}

func TestNewContainer(t *testing.T) {
	cfg := testConfig(t)

	container, err := NewContainer(cfg)
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	defer container.Close()

	if container.DB() == nil {
		t.Error("Container should have a non-nil database")
	}

	if container.Sessions() == nil {
		t.Error("Container should have a non-nil session factory")
	}

	ids := container.CacheIDs()
	if len(ids) != 2 || ids[0] != "orders" || ids[1] != "users" {
		t.Errorf("Expected caches [orders users], got %v", ids)
	}

	users, ok := container.Cache("users")
	if !ok {
		t.Fatal("users cache not registered")
	}
	if _, ok := cache.Find[*cache.FIFOCache](users); !ok {
		t.Error("users cache should use the fifo decorator")
	}

	orders, _ := container.Cache("orders")
	store, ok := cache.Find[*cacheinfra.SturdycCache](orders)
	if !ok {
		t.Fatal("orders cache should be backed by sturdyc")
	}
	if store.Config().Capacity != 512 {
		t.Errorf("Expected capacity 512, got %d", store.Config().Capacity)
	}

	ms, err := container.Statements().Get("users.byID")
	if err != nil {
		t.Fatalf("statement not registered: %v", err)
	}
	if ms.Cache() != users {
		t.Error("users.byID should reference the users cache")
	}

	if container.Config().Environment != cfg.Environment {
		t.Errorf("Expected environment %q, got %q", cfg.Environment, container.Config().Environment)
	}
}

func TestNewContainer_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Datasource.Driver = "oracle"

	_, err := NewContainer(cfg)
	if err == nil {
		t.Error("NewContainer() should fail with invalid config")
	}
}

func TestNewContainer_BadCacheProperty(t *testing.T) {
	cfg := testConfig(t)
	cfg.Caches[0].Blocking = true
	cfg.Caches[0].Properties = map[string]string{"timeout": "soon"}

	_, err := NewContainer(cfg)
	var buildErr *cache.BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("Expected a cache build error, got %v", err)
	}
	if buildErr.Property != "timeout" {
		t.Errorf("Expected failing property timeout, got %q", buildErr.Property)
	}
}

func TestNewContainerFromFile(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "file.db")
	path := testsupport.WriteFixture(t, "sqlmap.yaml", []byte(`
datasource:
  driver: sqlite3
  dsn: "`+dsn+`"
settings:
  executor_type: batch
  cache_enabled: false
statements:
  - id: ping
    command: select
    sql: SELECT 1 AS one
`))

	container, err := NewContainerFromFile(path)
	if err != nil {
		t.Fatalf("NewContainerFromFile() failed: %v", err)
	}
	defer container.Close()

	s, err := container.OpenSession()
	if err != nil {
		t.Fatalf("OpenSession() failed: %v", err)
	}
	defer s.Close(context.Background())

	if _, ok := s.Executor().(*executor.BatchExecutor); !ok {
		t.Errorf("Expected a bare batch executor when caching is disabled, got %T", s.Executor())
	}
}

func TestContainerSingletonBehavior(t *testing.T) {
	container, err := NewContainer(testConfig(t))
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	defer container.Close()

	if container.Sessions() != container.Sessions() {
		t.Error("Sessions() should return the same instance (singleton behavior)")
	}

	if container.Statements() != container.Statements() {
		t.Error("Statements() should return the same instance (singleton behavior)")
	}

	c1, _ := container.Cache("users")
	c2, _ := container.Cache("users")
	if c1 != c2 {
		t.Error("Cache() should return the same instance (singleton behavior)")
	}
}

func TestContainer_CloseKeepsExternalDB(t *testing.T) {
	db := testsupport.OpenSQLite(t)

	container, err := NewContainer(testConfig(t), WithDB(db))
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	if container.DB() != db {
		t.Fatal("Container should use the supplied database")
	}

	if err := container.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		t.Errorf("external database should stay open: %v", err)
	}
}

func TestContainer_CloseOwnedDB(t *testing.T) {
	container, err := NewContainer(testConfig(t))
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	if err := container.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := container.DB().PingContext(context.Background()); err == nil {
		t.Error("owned database should be closed")
	}
}
