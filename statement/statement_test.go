package statement

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-sqlmap/executor"
	"github.com/goliatone/go-sqlmap/mapping"
	"github.com/goliatone/go-sqlmap/meta"
	"github.com/goliatone/go-sqlmap/pkg/testsupport"
	"github.com/goliatone/go-sqlmap/transaction"
)

const usersSchema = "CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL)"

type user struct {
	ID   int64
	Name string
}

func newAccessor() *meta.Registry {
	r := meta.NewRegistry()
	meta.Register(r, "id", func(u *user) any { return u.ID }, func(u *user, v any) error {
		id, ok := v.(int64)
		if !ok {
			return fmt.Errorf("id must be int64, got %T", v)
		}
		u.ID = id
		return nil
	})
	meta.Register(r, "name", func(u *user) any { return u.Name }, nil)
	return r
}

func setup(t *testing.T, typ executor.Type, seed ...string) (*bun.DB, executor.Executor, *Factory) {
	t.Helper()
	db := testsupport.OpenSQLite(t, append([]string{usersSchema}, seed...)...)
	accessor := newAccessor()
	f := NewFactory(accessor, nil)
	tx := transaction.NewBunTransaction(db, transaction.Options{}, nil)
	ex := executor.New(typ, executor.Config{Handlers: f.Handler, Accessor: accessor}, tx)
	t.Cleanup(func() { ex.Close(context.Background(), false) })
	return db, ex, f
}

func seedUsers(names ...string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, fmt.Sprintf("INSERT INTO users (name) VALUES ('%s')", n))
	}
	return out
}

var selectAll = mapping.NewMappedStatement("users.all",
	mapping.NewStaticSQL("SELECT id, name FROM users ORDER BY id"), mapping.CommandSelect)

func TestQuery_MapsRowsToMaps(t *testing.T) {
	_, ex, _ := setup(t, executor.TypeSimple, seedUsers("ada", "grace")...)

	list, err := ex.Query(context.Background(), selectAll, nil, mapping.RowBounds{}, nil)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, map[string]any{"id": int64(1), "name": "ada"}, list[0])
}

func TestQuery_RowBounds(t *testing.T) {
	_, ex, _ := setup(t, executor.TypeSimple, seedUsers("a", "b", "c", "d")...)

	list, err := ex.Query(context.Background(), selectAll, nil, mapping.RowBounds{Offset: 1, Limit: 2}, nil)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].(map[string]any)["name"])
	assert.Equal(t, "c", list[1].(map[string]any)["name"])
}

func TestQuery_RowMapperAndParameter(t *testing.T) {
	_, ex, _ := setup(t, executor.TypeSimple, seedUsers("ada", "grace")...)
	ms := mapping.NewMappedStatement("users.byID",
		mapping.NewStaticSQL("SELECT id, name FROM users WHERE id = ?", "id"), mapping.CommandSelect,
		mapping.WithRowMapper(func(_ []string, values []any) (any, error) {
			return &user{ID: values[0].(int64), Name: values[1].(string)}, nil
		}))

	list, err := ex.Query(context.Background(), ms, 2, mapping.RowBounds{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{&user{ID: 2, Name: "grace"}}, list)
}

func TestQuery_ResultHandlerCanStop(t *testing.T) {
	_, ex, _ := setup(t, executor.TypeSimple, seedUsers("a", "b", "c")...)

	var names []any
	rh := mapping.ResultHandlerFunc(func(rc *mapping.ResultContext) {
		names = append(names, rc.Object().(map[string]any)["name"])
		if rc.Count() == 2 {
			rc.Stop()
		}
	})
	list, err := ex.Query(context.Background(), selectAll, nil, mapping.RowBounds{}, rh)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, []any{"a", "b"}, names)
}

func TestUpdate_GeneratedKeys(t *testing.T) {
	ctx := context.Background()
	db, ex, f := setup(t, executor.TypeSimple)
	insert := mapping.NewMappedStatement("users.insert",
		mapping.NewStaticSQL("INSERT INTO users (name) VALUES (?)", "name"), mapping.CommandInsert,
		mapping.WithKeyGenerator(NewGeneratedKeys(f.Accessor), "id"))

	u := &user{Name: "ada"}
	n, err := ex.Update(ctx, insert, u)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.EqualValues(t, 1, u.ID)

	require.NoError(t, ex.Commit(ctx, true))
	assert.Equal(t, 1, testsupport.CountRows(t, db, "users"))
}

func TestBatch_GeneratedKeysPerParameter(t *testing.T) {
	ctx := context.Background()
	db, ex, f := setup(t, executor.TypeBatch)
	insert := mapping.NewMappedStatement("users.insert",
		mapping.NewStaticSQL("INSERT INTO users (name) VALUES (?)", "name"), mapping.CommandInsert,
		mapping.WithKeyGenerator(NewGeneratedKeys(f.Accessor), "id"))

	users := []*user{{Name: "ada"}, {Name: "grace"}, {Name: "linus"}}
	for _, u := range users {
		n, err := ex.Update(ctx, insert, u)
		require.NoError(t, err)
		assert.Equal(t, executor.BatchUpdateReturnValue, n)
	}

	results, err := ex.FlushStatements(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []int64{1, 1, 1}, results[0].UpdateCounts)
	for i, u := range users {
		assert.EqualValues(t, i+1, u.ID)
	}

	require.NoError(t, ex.Commit(ctx, true))
	assert.Equal(t, 3, testsupport.CountRows(t, db, "users"))
}

func TestBatch_FailureKeepsEarlierEntries(t *testing.T) {
	ctx := context.Background()
	_, ex, _ := setup(t, executor.TypeBatch)
	insert := mapping.NewMappedStatement("users.insert",
		mapping.NewStaticSQL("INSERT INTO users (name) VALUES (?)", "name"), mapping.CommandInsert)
	broken := mapping.NewMappedStatement("users.broken",
		mapping.NewStaticSQL("INSERT INTO users (id, name) VALUES (?, ?)", "id", "name"), mapping.CommandInsert)

	_, err := ex.Update(ctx, insert, map[string]any{"name": "ada"})
	require.NoError(t, err)
	_, err = ex.Update(ctx, broken, map[string]any{"id": 1, "name": "dup"})
	require.NoError(t, err)

	results, err := ex.FlushStatements(ctx)
	var batchErr *executor.BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, 1, batchErr.Index)
	assert.Equal(t, "users.broken", batchErr.StatementID)
	assert.Len(t, batchErr.Successful, 1)
	assert.Len(t, results, 1)
}

func TestReuse_StatementSurvivesUntilCommit(t *testing.T) {
	ctx := context.Background()
	_, ex, _ := setup(t, executor.TypeReuse, seedUsers("ada")...)
	reuse := ex.(*executor.ReuseExecutor)

	for i := 0; i < 3; i++ {
		ex.ClearLocalCache()
		list, err := ex.Query(ctx, selectAll, nil, mapping.RowBounds{}, nil)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	}
	assert.Equal(t, 1, reuse.Len())

	require.NoError(t, ex.Commit(ctx, true))
	assert.Zero(t, reuse.Len())

	list, err := ex.Query(ctx, selectAll, nil, mapping.RowBounds{}, nil)
	require.NoError(t, err)
	assert.Len(t, list, 1, "a new statement is prepared on the next transaction")
}

func TestCursor(t *testing.T) {
	ctx := context.Background()
	_, ex, _ := setup(t, executor.TypeSimple, seedUsers("a", "b", "c", "d")...)

	cur, err := ex.QueryCursor(ctx, selectAll, nil, mapping.RowBounds{Offset: 1, Limit: 2})
	require.NoError(t, err)
	assert.True(t, cur.IsOpen())
	assert.Equal(t, -1, cur.CurrentIndex())

	var names []any
	for cur.Next() {
		names = append(names, cur.Value().(map[string]any)["name"])
	}
	require.NoError(t, cur.Err())
	assert.Equal(t, []any{"b", "c"}, names)
	assert.Equal(t, 1, cur.CurrentIndex())
	assert.True(t, cur.IsConsumed())
	assert.False(t, cur.IsOpen())
	assert.False(t, cur.Next(), "cursors cannot be restarted")
	assert.NoError(t, cur.Close())
}

func TestCursor_CloseReleasesStatement(t *testing.T) {
	ctx := context.Background()
	db := testsupport.OpenSQLite(t, append([]string{usersSchema}, seedUsers("a", "b")...)...)
	f := NewFactory(nil, nil)

	h, err := f.Handler(nil, selectAll, nil, mapping.RowBounds{}, nil, nil)
	require.NoError(t, err)
	stmt, err := h.Prepare(ctx, db.DB, 0)
	require.NoError(t, err)
	require.NoError(t, h.Parameterize(ctx, stmt))
	stmt.CloseOnCompletion()

	cur, err := h.QueryCursor(ctx, stmt)
	require.NoError(t, err)
	require.True(t, cur.Next())
	require.NoError(t, cur.Close())
	assert.False(t, stmt.Valid())
}

func TestEffectiveTimeout(t *testing.T) {
	assert.Equal(t, time.Second, effectiveTimeout(0, time.Second))
	assert.Equal(t, time.Second, effectiveTimeout(time.Second, 0))
	assert.Equal(t, time.Second, effectiveTimeout(time.Minute, time.Second))
	assert.Equal(t, time.Second, effectiveTimeout(time.Second, time.Minute))
}

func TestHandler_StatementTimeout(t *testing.T) {
	ctx := context.Background()
	db := testsupport.OpenSQLite(t, usersSchema)
	f := NewFactory(nil, nil)
	f.DefaultTimeout = time.Minute

	ms := mapping.NewMappedStatement("users.slow", mapping.NewStaticSQL("SELECT 1"), mapping.CommandSelect,
		mapping.WithTimeout(10*time.Second))
	h, err := f.Handler(nil, ms, nil, mapping.RowBounds{}, nil, nil)
	require.NoError(t, err)
	stmt, err := h.Prepare(ctx, db.DB, 2*time.Second)
	require.NoError(t, err)
	defer stmt.Close()
	assert.Equal(t, 2*time.Second, stmt.(*PreparedStatement).Timeout())

	plain, err := f.Handler(nil, selectAll, nil, mapping.RowBounds{}, nil, nil)
	require.NoError(t, err)
	stmt2, err := plain.Prepare(ctx, db.DB, 0)
	require.NoError(t, err)
	defer stmt2.Close()
	assert.Equal(t, time.Minute, stmt2.(*PreparedStatement).Timeout())
}

func TestPreparedStatement_ReusedQueryKeepsOneTimer(t *testing.T) {
	ctx := context.Background()
	db := testsupport.OpenSQLite(t, append([]string{usersSchema}, seedUsers("ada")...)...)

	ps, err := prepare(ctx, db.DB, "SELECT id, name FROM users", time.Minute, nil)
	require.NoError(t, err)
	defer ps.Close()

	rows, err := ps.Query(ctx)
	require.NoError(t, err)
	require.NoError(t, rows.Close())
	require.NotNil(t, ps.cancel)

	released := 0
	first := ps.cancel
	ps.cancel = func() { released++; first() }

	rows, err = ps.Query(ctx)
	require.NoError(t, err)
	require.NoError(t, rows.Close())
	assert.Equal(t, 1, released, "starting a query releases the previous timer")

	require.NoError(t, ps.Close())
	assert.Nil(t, ps.cancel)
}

func TestMapRow_DecodesBytes(t *testing.T) {
	row, err := MapRow([]string{"id", "blob"}, []any{int64(1), []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": int64(1), "blob": "x"}, row)
}
