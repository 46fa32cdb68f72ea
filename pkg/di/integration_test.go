package di

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-sqlmap/config"
	"github.com/goliatone/go-sqlmap/datasource"
	"github.com/goliatone/go-sqlmap/executor"
	"github.com/goliatone/go-sqlmap/pkg/testsupport"
	"github.com/goliatone/go-sqlmap/session"
)

func boolPtr(b bool) *bool { return &b }

// newEngine wires a container over a seeded sqlite database.
func newEngine(t testing.TB, settings config.Settings) (*Container, *bun.DB) {
	t.Helper()

	db := openSeeded(t)
	cfg := config.Config{
		Datasource:  datasource.Config{Driver: datasource.DriverSQLite, DSN: "unused"},
		Environment: "integration",
		Settings:    settings,
		Caches: []config.Cache{
			{ID: "users", Decorators: []string{"lru"}, Size: intPtr(128), ReadWrite: true, Blocking: true},
			{ID: "totals", Provider: "ristretto"},
		},
		Statements: []config.Statement{
			{ID: "users.byID", Command: "select", SQL: "SELECT id, name FROM users WHERE id = ?", Params: []string{"id"}, Cache: "users"},
			{ID: "users.all", Command: "select", SQL: "SELECT id, name FROM users ORDER BY id", Cache: "users"},
			{ID: "users.insert", Command: "insert", SQL: "INSERT INTO users (name) VALUES (?)", Params: []string{"name"}, Cache: "users",
				KeyGenerator: config.KeyGeneratorGenerated, KeyProperties: []string{"id"}},
			{ID: "users.rename", Command: "update", SQL: "UPDATE users SET name = ? WHERE id = ?", Params: []string{"name", "id"}, Cache: "users"},
			{ID: "users.count", Command: "select", SQL: "SELECT count(*) AS n FROM users", Cache: "totals"},
			{ID: "users.live", Command: "select", SQL: "SELECT count(*) AS n FROM users", Cache: "users", UseCache: boolPtr(false)},
		},
	}

	container, err := NewContainer(cfg, WithDB(db))
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })
	return container, db
}

func openSeeded(t testing.TB) *bun.DB {
	t.Helper()
	if tt, ok := t.(*testing.T); ok {
		return testsupport.OpenSQLite(tt, seed...)
	}
	b := t.(*testing.B)
	db, err := datasource.Open(datasource.Config{
		Driver: datasource.DriverSQLite,
		DSN:    "file:" + filepath.Join(b.TempDir(), "bench.db") + "?_busy_timeout=5000",
	})
	require.NoError(b, err)
	b.Cleanup(func() { _ = db.Close() })
	for _, stmt := range seed {
		_, err := db.ExecContext(context.Background(), stmt)
		require.NoError(b, err)
	}
	return db
}

var seed = []string{
	"CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL)",
	"INSERT INTO users (name) VALUES ('ada'), ('grace')",
}

func stats(t testing.TB, c *Container, id string) CacheStats {
	t.Helper()
	all, err := c.Stats(context.Background())
	require.NoError(t, err)
	for _, st := range all {
		if st.ID == id {
			return st
		}
	}
	t.Fatalf("no stats for cache %s", id)
	return CacheStats{}
}

func TestSecondLevelCacheAcrossSessions(t *testing.T) {
	ctx := context.Background()
	container, db := newEngine(t, config.Settings{})

	s1 := openSession(t, container)
	got, err := s1.SelectOne(ctx, "users.byID", map[string]any{"id": 1})
	require.NoError(t, err)
	assert.Equal(t, "ada", got.(map[string]any)["name"])
	s1.Close(ctx)

	st := stats(t, container, "users")
	assert.EqualValues(t, 1, st.Requests)
	assert.Zero(t, st.Hits)
	assert.Equal(t, 1, st.Size)

	_, err = db.ExecContext(ctx, "DELETE FROM users WHERE id = 1")
	require.NoError(t, err)

	s2 := openSession(t, container)
	got, err = s2.SelectOne(ctx, "users.byID", map[string]any{"id": 1})
	require.NoError(t, err)
	assert.Equal(t, "ada", got.(map[string]any)["name"], "served from the namespace cache")
	s2.Close(ctx)

	st = stats(t, container, "users")
	assert.EqualValues(t, 2, st.Requests)
	assert.EqualValues(t, 1, st.Hits)
	assert.InDelta(t, 0.5, st.HitRatio, 0.001)
}

func TestUseCacheFalseBypassesNamespaceCache(t *testing.T) {
	ctx := context.Background()
	container, db := newEngine(t, config.Settings{})

	s1 := openSession(t, container)
	rows, err := s1.SelectList(ctx, "users.live", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, rows[0].(map[string]any)["n"])
	s1.Close(ctx)

	_, err = db.ExecContext(ctx, "DELETE FROM users")
	require.NoError(t, err)

	s2 := openSession(t, container)
	defer s2.Close(ctx)
	rows, err = s2.SelectList(ctx, "users.live", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 0, rows[0].(map[string]any)["n"])
	assert.Zero(t, stats(t, container, "users").Requests)
}

func TestUpdateFlushesNamespaceCache(t *testing.T) {
	ctx := context.Background()
	container, _ := newEngine(t, config.Settings{})

	reader := openSession(t, container)
	_, err := reader.SelectList(ctx, "users.all", nil)
	require.NoError(t, err)
	reader.Close(ctx)
	require.Equal(t, 1, stats(t, container, "users").Size)

	writer := openSession(t, container)
	n, err := writer.Update(ctx, "users.rename", map[string]any{"name": "ada lovelace", "id": 1})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	require.NoError(t, writer.Commit(ctx, false))
	writer.Close(ctx)

	assert.Zero(t, stats(t, container, "users").Size)

	after := openSession(t, container)
	defer after.Close(ctx)
	got, err := after.SelectOne(ctx, "users.byID", map[string]any{"id": 1})
	require.NoError(t, err)
	assert.Equal(t, "ada lovelace", got.(map[string]any)["name"])
}

func TestInsertAssignsGeneratedKey(t *testing.T) {
	ctx := context.Background()
	container, db := newEngine(t, config.Settings{})

	s := openSession(t, container)
	param := map[string]any{"name": "linus"}
	n, err := s.Insert(ctx, "users.insert", param)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.EqualValues(t, 3, param["id"])
	require.NoError(t, s.Commit(ctx, false))
	s.Close(ctx)

	assert.Equal(t, 3, testsupport.CountRows(t, db, "users"))
}

func TestBatchSettingsDeferWritesUntilCommit(t *testing.T) {
	ctx := context.Background()
	container, db := newEngine(t, config.Settings{ExecutorType: "batch"})

	s := openSession(t, container)
	for _, name := range []string{"linus", "ken", "rob"} {
		n, err := s.Insert(ctx, "users.insert", map[string]any{"name": name})
		require.NoError(t, err)
		assert.Equal(t, executor.BatchUpdateReturnValue, n)
	}
	require.NoError(t, s.Commit(ctx, false))
	s.Close(ctx)

	assert.Equal(t, 5, testsupport.CountRows(t, db, "users"))
}

func TestRollbackDiscardsStagedEntries(t *testing.T) {
	ctx := context.Background()
	container, _ := newEngine(t, config.Settings{})

	s := openSession(t, container)
	_, err := s.SelectList(ctx, "users.all", nil)
	require.NoError(t, err)
	require.NoError(t, s.Rollback(ctx, true))
	s.Close(ctx)

	assert.Zero(t, stats(t, container, "users").Size)
}

func TestCustomStoreBacksNamespace(t *testing.T) {
	ctx := context.Background()
	container, _ := newEngine(t, config.Settings{})

	for i := 0; i < 2; i++ {
		s := openSession(t, container)
		rows, err := s.SelectList(ctx, "users.count", nil)
		require.NoError(t, err)
		assert.EqualValues(t, 2, rows[0].(map[string]any)["n"])
		s.Close(ctx)
	}

	st := stats(t, container, "totals")
	assert.EqualValues(t, 2, st.Requests)
	assert.EqualValues(t, 1, st.Hits)
}

func TestDisabledCacheNeverTouchesNamespace(t *testing.T) {
	ctx := context.Background()
	container, _ := newEngine(t, config.Settings{CacheEnabled: boolPtr(false)})

	s := openSession(t, container)
	_, err := s.SelectList(ctx, "users.all", nil)
	require.NoError(t, err)
	s.Close(ctx)

	st := stats(t, container, "users")
	assert.Zero(t, st.Requests)
	assert.Zero(t, st.Size)
}

// TestConcurrentAccess runs many read-only sessions against one container.
func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	container, _ := newEngine(t, config.Settings{})

	const numGoroutines = 20
	const operationsPerGoroutine = 10

	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines*operationsPerGoroutine)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for j := 0; j < operationsPerGoroutine; j++ {
				s, err := container.OpenSession()
				if err != nil {
					errs <- fmt.Errorf("worker %d operation %d: %w", workerID, j, err)
					continue
				}
				id := (workerID+j)%2 + 1
				got, err := s.SelectOne(ctx, "users.byID", map[string]any{"id": id})
				s.Close(ctx)
				if err != nil {
					errs <- fmt.Errorf("worker %d operation %d: %w", workerID, j, err)
					continue
				}
				if got == nil {
					errs <- fmt.Errorf("worker %d operation %d: user %d not found", workerID, j, id)
				}
			}
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	st := stats(t, container, "users")
	assert.EqualValues(t, numGoroutines*operationsPerGoroutine, st.Requests)
	assert.Positive(t, st.Hits)
	assert.Equal(t, 2, st.Size)
}

func openSession(t testing.TB, container *Container) *session.Session {
	t.Helper()
	s, err := container.OpenSession()
	require.NoError(t, err)
	return s
}
