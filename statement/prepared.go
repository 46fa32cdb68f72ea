package statement

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-sqlmap/logging"
	"github.com/goliatone/go-sqlmap/transaction"
)

// PreparedStatement is a database/sql prepared statement together with the
// arguments bound for its next execution and any queued batch.
type PreparedStatement struct {
	stmt    *sql.Stmt
	conn    transaction.Conn
	sql     string
	args    []any
	batch   [][]any
	timeout time.Duration
	logger  logging.Logger

	cancel            context.CancelFunc
	closeOnCompletion bool
	closed            bool
}

func prepare(ctx context.Context, conn transaction.Conn, query string, timeout time.Duration, logger logging.Logger) (*PreparedStatement, error) {
	stmt, err := conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &PreparedStatement{
		stmt:    stmt,
		conn:    conn,
		sql:     query,
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (s *PreparedStatement) SQL() string { return s.sql }

func (s *PreparedStatement) Bind(args []any) { s.args = args }

func (s *PreparedStatement) AddBatch() {
	s.batch = append(s.batch, append([]any(nil), s.args...))
}

// Timeout is the query timeout currently in force, zero meaning none.
func (s *PreparedStatement) Timeout() time.Duration { return s.timeout }

// ApplyTransactionTimeout lowers the query timeout to d when d is shorter.
func (s *PreparedStatement) ApplyTransactionTimeout(d time.Duration) {
	s.timeout = effectiveTimeout(s.timeout, d)
}

func (s *PreparedStatement) CloseOnCompletion() { s.closeOnCompletion = true }

func (s *PreparedStatement) Valid() bool {
	return !s.closed && !transaction.IsClosed(s.conn)
}

func (s *PreparedStatement) Exec(ctx context.Context) (sql.Result, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.stmt.ExecContext(ctx, s.args...)
}

// ExecuteBatch runs the queued argument sets in order and stops at the first
// failure, returning the results gathered so far. The queue is emptied
// either way.
func (s *PreparedStatement) ExecuteBatch(ctx context.Context) ([]sql.Result, error) {
	batch := s.batch
	s.batch = nil

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	results := make([]sql.Result, 0, len(batch))
	for _, args := range batch {
		res, err := s.stmt.ExecContext(ctx, args...)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Query runs the statement. The timeout covers reading the rows as well, so
// its timer stays armed until the rows are released, the next query starts
// on this statement, or the statement is closed. A statement runs one query
// at a time.
func (s *PreparedStatement) Query(ctx context.Context) (*sql.Rows, error) {
	s.releaseQuery()
	ctx, cancel := s.withTimeout(ctx)
	rows, err := s.stmt.QueryContext(ctx, s.args...)
	if err != nil {
		cancel()
		return nil, err
	}
	s.cancel = cancel
	return rows, nil
}

func (s *PreparedStatement) releaseQuery() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *PreparedStatement) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.releaseQuery()
	return s.stmt.Close()
}

// rowsClosed is called by a cursor when it releases its rows.
func (s *PreparedStatement) rowsClosed() error {
	if s.closeOnCompletion {
		return s.Close()
	}
	s.releaseQuery()
	return nil
}

func (s *PreparedStatement) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// effectiveTimeout returns the shorter of two timeouts, ignoring zeros.
func effectiveTimeout(current, candidate time.Duration) time.Duration {
	switch {
	case candidate <= 0:
		return current
	case current <= 0 || candidate < current:
		return candidate
	default:
		return current
	}
}
