package transaction

import (
	"context"
	"io"
	"time"
)

// ManagedTransaction runs on a connection whose transaction is owned
// elsewhere, such as an outer unit of work. Commit and Rollback are no-ops.
type ManagedTransaction struct {
	conn      Conn
	closeConn bool
	timeout   time.Duration
	closed    bool
}

var _ Transaction = (*ManagedTransaction)(nil)

// NewManagedTransaction wraps conn. When closeConn is set and conn is an
// io.Closer, Close closes it.
func NewManagedTransaction(conn Conn, closeConn bool, timeout time.Duration) *ManagedTransaction {
	return &ManagedTransaction{conn: conn, closeConn: closeConn, timeout: timeout}
}

func (t *ManagedTransaction) Connection(context.Context) (Conn, error) {
	if t.closed {
		return nil, ErrTransactionClosed
	}
	return t.conn, nil
}

func (t *ManagedTransaction) Commit(context.Context) error   { return nil }
func (t *ManagedTransaction) Rollback(context.Context) error { return nil }

func (t *ManagedTransaction) Close(context.Context) error {
	if t.closed {
		return nil
	}
	t.closed = true
	if c, ok := t.conn.(io.Closer); ok && t.closeConn {
		return c.Close()
	}
	return nil
}

func (t *ManagedTransaction) Timeout() time.Duration { return t.timeout }

// ManagedFactory hands the same externally owned connection to every session.
type ManagedFactory struct {
	Conn      Conn
	CloseConn bool
}

func (f ManagedFactory) NewTransaction(opts Options) Transaction {
	return NewManagedTransaction(f.Conn, f.CloseConn, opts.Timeout)
}
