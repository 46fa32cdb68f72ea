// Package transaction wraps the database connection an executor works on.
//
// The executors never begin or finish database transactions themselves; they
// ask a Transaction for its connection and tell it to commit, roll back or
// close. Two implementations are provided: BunTransaction owns a bun-managed
// transaction, ManagedTransaction defers to a connection owned by someone else.
package transaction

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrTransactionClosed = errors.New("transaction: already closed")

// Conn is the subset of *sql.Tx, *sql.Conn and *sql.DB the statement layer uses.
type Conn interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Transaction owns the connection of one session.
type Transaction interface {
	Connection(ctx context.Context) (Conn, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close(ctx context.Context) error
	// Timeout is the remaining time budget for statements, zero for none.
	Timeout() time.Duration
}

// Factory opens transactions for new sessions.
type Factory interface {
	NewTransaction(opts Options) Transaction
}

// Options configure a transaction opened by a Factory.
type Options struct {
	Isolation  sql.IsolationLevel
	AutoCommit bool
	Timeout    time.Duration
}

// IsClosed reports whether conn belongs to a transaction that has since
// ended. Connections not produced by this package are assumed open.
func IsClosed(conn Conn) bool {
	c, ok := conn.(interface{ Closed() bool })
	return ok && c.Closed()
}
