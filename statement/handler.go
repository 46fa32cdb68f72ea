package statement

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-sqlmap/executor"
	"github.com/goliatone/go-sqlmap/logging"
	"github.com/goliatone/go-sqlmap/mapping"
	"github.com/goliatone/go-sqlmap/meta"
	"github.com/goliatone/go-sqlmap/transaction"
)

// Factory creates Handlers. Its Handler method is an executor.HandlerFactory.
type Factory struct {
	Accessor meta.Accessor
	Logger   logging.Logger
	// DefaultTimeout applies to statements that declare no timeout of their own.
	DefaultTimeout time.Duration
}

func NewFactory(accessor meta.Accessor, logger logging.Logger) *Factory {
	if accessor == nil {
		accessor = meta.NewRegistry()
	}
	return &Factory{Accessor: accessor, Logger: logging.OrNop(logger)}
}

func (f *Factory) Handler(ex executor.Executor, ms *mapping.MappedStatement, param any, bounds mapping.RowBounds, rh mapping.ResultHandler, bound *mapping.BoundSQL) (executor.StatementHandler, error) {
	h := &Handler{
		ex:       ex,
		ms:       ms,
		param:    param,
		bounds:   bounds.Normalize(),
		rh:       rh,
		bound:    bound,
		accessor: f.Accessor,
		logger:   logging.OrNop(f.Logger),
		timeout:  ms.Timeout(),
	}
	if h.timeout <= 0 {
		h.timeout = f.DefaultTimeout
	}
	if bound == nil {
		// Writes resolve their own SQL and may need keys generated first.
		h.generateBefore = true
		var err error
		if h.bound, err = ms.BoundSQL(param); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Handler runs one statement call.
type Handler struct {
	ex       executor.Executor
	ms       *mapping.MappedStatement
	param    any
	bounds   mapping.RowBounds
	rh       mapping.ResultHandler
	bound    *mapping.BoundSQL
	accessor meta.Accessor
	logger   logging.Logger
	timeout  time.Duration

	generateBefore bool
}

func (h *Handler) BoundSQL() *mapping.BoundSQL { return h.bound }

// Executor is the outermost executor of the session, for nested queries.
func (h *Handler) Executor() executor.Executor { return h.ex }

func (h *Handler) Prepare(ctx context.Context, conn transaction.Conn, txTimeout time.Duration) (executor.Statement, error) {
	h.logger.Debug("preparing", logging.Fields{"statement": h.ms.ID(), "sql": h.bound.SQL()})
	stmt, err := prepare(ctx, conn, h.bound.SQL(), h.timeout, h.logger)
	if err != nil {
		return nil, fmt.Errorf("statement: prepare %s: %w", h.ms.ID(), err)
	}
	stmt.ApplyTransactionTimeout(txTimeout)
	return stmt, nil
}

func (h *Handler) Parameterize(ctx context.Context, stmt executor.Statement) error {
	if h.generateBefore {
		h.generateBefore = false
		if kg := h.ms.KeyGenerator(); !mapping.IsNoKeyGenerator(kg) {
			if err := kg.ProcessBefore(ctx, h.ms, h.param); err != nil {
				return err
			}
		}
	}
	args, err := mapping.BindArgs(h.bound, h.accessor)
	if err != nil {
		return fmt.Errorf("statement: bind %s: %w", h.ms.ID(), err)
	}
	h.logger.Debug("parameters", logging.Fields{"statement": h.ms.ID(), "args": args})
	stmt.Bind(args)
	return nil
}

func (h *Handler) Batch(_ context.Context, stmt executor.Statement) error {
	stmt.AddBatch()
	return nil
}

func (h *Handler) Update(ctx context.Context, stmt executor.Statement) (int64, error) {
	res, err := stmt.Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		n = 0
	}
	if kg := h.ms.KeyGenerator(); !mapping.IsNoKeyGenerator(kg) {
		if err := kg.ProcessAfter(ctx, h.ms, res, h.param); err != nil {
			return n, err
		}
	}
	h.logger.Debug("updated", logging.Fields{"statement": h.ms.ID(), "rows": n})
	return n, nil
}

// Query materializes the rows inside the row bounds. With a result handler
// every row is handed to it instead and the returned list is empty.
func (h *Handler) Query(ctx context.Context, stmt executor.Statement, rh mapping.ResultHandler) ([]any, error) {
	rows, err := stmt.Query(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reader, err := newRowReader(rows, h.ms.RowMapper())
	if err != nil {
		return nil, err
	}
	if err := reader.skip(h.bounds.Offset); err != nil {
		return nil, err
	}

	list := make([]any, 0)
	rc := mapping.NewResultContext()
	for rc.Count() < h.bounds.Limit {
		obj, ok, err := reader.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		rc.Next(obj)
		if rh == nil {
			list = append(list, obj)
			continue
		}
		rh.HandleResult(rc)
		if rc.IsStopped() {
			break
		}
	}
	h.logger.Debug("fetched", logging.Fields{"statement": h.ms.ID(), "rows": rc.Count()})
	return list, nil
}

func (h *Handler) QueryCursor(ctx context.Context, stmt executor.Statement) (mapping.Cursor, error) {
	rows, err := stmt.Query(ctx)
	if err != nil {
		return nil, err
	}
	reader, err := newRowReader(rows, h.ms.RowMapper())
	if err != nil {
		_ = rows.Close()
		return nil, err
	}
	return newCursor(reader, stmt, h.bounds), nil
}
