package executor

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-sqlmap/mapping"
	"github.com/goliatone/go-sqlmap/meta"
	"github.com/goliatone/go-sqlmap/transaction"
)

type fakeResult struct{ rows int64 }

func (r fakeResult) LastInsertId() (int64, error) { return 0, errors.New("not supported") }
func (r fakeResult) RowsAffected() (int64, error) { return r.rows, nil }

type fakeCall struct {
	SQL  string
	Args []any
}

// fakeDB records every round trip the strategies make.
type fakeDB struct {
	rows      map[string][]any
	onQuery   func(ex Executor, ms *mapping.MappedStatement, args []any) ([]any, error)
	onExec    func(query string, args []any) (sql.Result, error)
	queries   []fakeCall
	execs     []fakeCall
	prepared  []string
	closed    int
	executors []Executor
}

func newFakeDB() *fakeDB {
	return &fakeDB{rows: make(map[string][]any)}
}

func (db *fakeDB) queryCount(query string) int {
	n := 0
	for _, q := range db.queries {
		if q.SQL == query {
			n++
		}
	}
	return n
}

func (db *fakeDB) exec(query string, args []any) (sql.Result, error) {
	db.execs = append(db.execs, fakeCall{SQL: query, Args: args})
	if db.onExec != nil {
		return db.onExec(query, args)
	}
	return fakeResult{rows: 1}, nil
}

type fakeStatement struct {
	db                *fakeDB
	sql               string
	args              []any
	batch             [][]any
	closed            bool
	invalid           bool
	timeouts          int
	closeOnCompletion bool
}

func (s *fakeStatement) SQL() string        { return s.sql }
func (s *fakeStatement) Bind(args []any)    { s.args = args }
func (s *fakeStatement) AddBatch()          { s.batch = append(s.batch, s.args) }
func (s *fakeStatement) CloseOnCompletion() { s.closeOnCompletion = true }
func (s *fakeStatement) Valid() bool        { return !s.closed && !s.invalid }

func (s *fakeStatement) ApplyTransactionTimeout(time.Duration) { s.timeouts++ }

func (s *fakeStatement) ExecuteBatch(context.Context) ([]sql.Result, error) {
	out := make([]sql.Result, 0, len(s.batch))
	for _, args := range s.batch {
		res, err := s.db.exec(s.sql, args)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	s.batch = nil
	return out, nil
}

func (s *fakeStatement) Exec(context.Context) (sql.Result, error) {
	return s.db.exec(s.sql, s.args)
}

func (s *fakeStatement) Query(context.Context) (*sql.Rows, error) {
	return nil, errors.New("fake statements return rows through the handler")
}

func (s *fakeStatement) Close() error {
	if !s.closed {
		s.closed = true
		s.db.closed++
	}
	return nil
}

type fakeHandler struct {
	db       *fakeDB
	ex       Executor
	ms       *mapping.MappedStatement
	bound    *mapping.BoundSQL
	bounds   mapping.RowBounds
	accessor meta.Accessor
}

func (h *fakeHandler) Prepare(_ context.Context, _ transaction.Conn, _ time.Duration) (Statement, error) {
	h.db.prepared = append(h.db.prepared, h.bound.SQL())
	return &fakeStatement{db: h.db, sql: h.bound.SQL()}, nil
}

func (h *fakeHandler) Parameterize(_ context.Context, stmt Statement) error {
	args, err := mapping.BindArgs(h.bound, h.accessor)
	if err != nil {
		return err
	}
	stmt.Bind(args)
	return nil
}

func (h *fakeHandler) Batch(_ context.Context, stmt Statement) error {
	stmt.AddBatch()
	return nil
}

func (h *fakeHandler) Update(ctx context.Context, stmt Statement) (int64, error) {
	res, err := stmt.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (h *fakeHandler) Query(_ context.Context, stmt Statement, rh mapping.ResultHandler) ([]any, error) {
	fs := stmt.(*fakeStatement)
	h.db.queries = append(h.db.queries, fakeCall{SQL: fs.sql, Args: fs.args})
	var rows []any
	if h.db.onQuery != nil {
		var err error
		if rows, err = h.db.onQuery(h.ex, h.ms, fs.args); err != nil {
			return nil, err
		}
	} else {
		rows = h.db.rows[fs.sql]
	}
	if rh != nil {
		rc := mapping.NewResultContext()
		for _, r := range rows {
			rc.Next(r)
			rh.HandleResult(rc)
			if rc.IsStopped() {
				break
			}
		}
		return []any{}, nil
	}
	return append([]any{}, rows...), nil
}

func (h *fakeHandler) QueryCursor(_ context.Context, stmt Statement) (mapping.Cursor, error) {
	fs := stmt.(*fakeStatement)
	h.db.queries = append(h.db.queries, fakeCall{SQL: fs.sql, Args: fs.args})
	return &sliceCursor{rows: h.db.rows[fs.sql], stmt: fs, index: -1}, nil
}

func (h *fakeHandler) BoundSQL() *mapping.BoundSQL { return h.bound }

type sliceCursor struct {
	rows   []any
	stmt   *fakeStatement
	index  int
	closed bool
}

func (c *sliceCursor) Next() bool {
	if c.closed || c.index+1 >= len(c.rows) {
		return false
	}
	c.index++
	return true
}

func (c *sliceCursor) Value() any        { return c.rows[c.index] }
func (c *sliceCursor) Err() error        { return nil }
func (c *sliceCursor) IsOpen() bool      { return !c.closed }
func (c *sliceCursor) IsConsumed() bool  { return c.index+1 >= len(c.rows) }
func (c *sliceCursor) CurrentIndex() int { return c.index }

func (c *sliceCursor) Close() error {
	c.closed = true
	if c.stmt.closeOnCompletion {
		return c.stmt.Close()
	}
	return nil
}

func (db *fakeDB) factory(accessor meta.Accessor) HandlerFactory {
	return func(ex Executor, ms *mapping.MappedStatement, param any, bounds mapping.RowBounds, _ mapping.ResultHandler, bound *mapping.BoundSQL) (StatementHandler, error) {
		if bound == nil {
			var err error
			if bound, err = ms.BoundSQL(param); err != nil {
				return nil, err
			}
		}
		db.executors = append(db.executors, ex)
		return &fakeHandler{db: db, ex: ex, ms: ms, bound: bound, bounds: bounds, accessor: accessor}, nil
	}
}

type fakeTx struct {
	commits   int
	rollbacks int
	closes    int
	timeout   time.Duration
}

func (t *fakeTx) Connection(context.Context) (transaction.Conn, error) { return nil, nil }
func (t *fakeTx) Commit(context.Context) error                         { t.commits++; return nil }
func (t *fakeTx) Rollback(context.Context) error                       { t.rollbacks++; return nil }
func (t *fakeTx) Close(context.Context) error                          { t.closes++; return nil }
func (t *fakeTx) Timeout() time.Duration                               { return t.timeout }

func testConfig(db *fakeDB) Config {
	accessor := meta.NewRegistry()
	return Config{
		EnvironmentID: "test",
		Handlers:      db.factory(accessor),
		Accessor:      accessor,
	}
}

func selectStmt(id, sql string, opts ...mapping.Option) *mapping.MappedStatement {
	return mapping.NewMappedStatement(id, mapping.NewStaticSQL(sql, "id"), mapping.CommandSelect, opts...)
}

func insertStmt(id, sql string, opts ...mapping.Option) *mapping.MappedStatement {
	return mapping.NewMappedStatement(id, mapping.NewStaticSQL(sql, "id"), mapping.CommandInsert, opts...)
}
