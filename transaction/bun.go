package transaction

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goliatone/go-sqlmap/logging"
	"github.com/uptrace/bun"
)

// BunTransaction begins a bun transaction lazily on first use and begins a
// new one after every commit or rollback. With AutoCommit it pins a single
// connection instead and Commit and Rollback do nothing.
type BunTransaction struct {
	db      *bun.DB
	opts    Options
	logger  logging.Logger
	started time.Time
	tx      *bun.Tx
	conn    *bun.Conn
	gen     int
	closed  bool
}

var _ Transaction = (*BunTransaction)(nil)

func NewBunTransaction(db *bun.DB, opts Options, logger logging.Logger) *BunTransaction {
	return &BunTransaction{db: db, opts: opts, logger: logging.OrNop(logger), started: time.Now()}
}

type liveConn struct {
	Conn
	owner *BunTransaction
	gen   int
}

func (c liveConn) Closed() bool { return c.owner.closed || c.owner.gen != c.gen }

func (t *BunTransaction) Connection(ctx context.Context) (Conn, error) {
	if t.closed {
		return nil, ErrTransactionClosed
	}

	if t.opts.AutoCommit {
		if t.conn == nil {
			conn, err := t.db.Conn(ctx)
			if err != nil {
				return nil, fmt.Errorf("transaction: open connection: %w", err)
			}
			t.conn = &conn
		}
		return liveConn{Conn: t.conn.Conn, owner: t, gen: t.gen}, nil
	}

	if t.tx == nil {
		tx, err := t.db.BeginTx(ctx, &sql.TxOptions{Isolation: t.opts.Isolation})
		if err != nil {
			return nil, fmt.Errorf("transaction: begin: %w", err)
		}
		t.tx = &tx
		t.gen++
		t.logger.Debug("transaction started", logging.Fields{"isolation": t.opts.Isolation.String()})
	}
	return liveConn{Conn: t.tx.Tx, owner: t, gen: t.gen}, nil
}

func (t *BunTransaction) Commit(ctx context.Context) error {
	if t.tx == nil {
		return nil
	}
	tx := t.tx
	t.tx = nil
	t.gen++
	t.logger.Debug("transaction commit", nil)
	return tx.Commit()
}

func (t *BunTransaction) Rollback(ctx context.Context) error {
	if t.tx == nil {
		return nil
	}
	tx := t.tx
	t.tx = nil
	t.gen++
	t.logger.Debug("transaction rollback", nil)
	return tx.Rollback()
}

// Close rolls back an open transaction and releases the pinned connection.
func (t *BunTransaction) Close(ctx context.Context) error {
	if t.closed {
		return nil
	}
	err := t.Rollback(ctx)
	if t.conn != nil {
		if cerr := t.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
		t.conn = nil
	}
	t.closed = true
	return err
}

func (t *BunTransaction) Timeout() time.Duration {
	if t.opts.Timeout <= 0 {
		return 0
	}
	remaining := t.opts.Timeout - time.Since(t.started)
	if remaining <= 0 {
		return time.Nanosecond
	}
	return remaining
}

// BunFactory opens BunTransactions on one database.
type BunFactory struct {
	DB     *bun.DB
	Logger logging.Logger
}

func (f BunFactory) NewTransaction(opts Options) Transaction {
	return NewBunTransaction(f.DB, opts, f.Logger)
}
