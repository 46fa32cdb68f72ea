package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-sqlmap/logging"
	"github.com/goliatone/go-sqlmap/mapping"
	"github.com/goliatone/go-sqlmap/session"
)

var (
	ErrNotFound   = errors.New("repository: record not found")
	ErrNoSessions = errors.New("repository: no session factory")
)

// Statements names the statement ids a repository runs.
type Statements struct {
	GetByID string
	List    string
	Count   string
	Create  string
	Update  string
	Delete  string
}

// StatementsFor returns the conventional ids within namespace.
func StatementsFor(namespace string) Statements {
	return Statements{
		GetByID: namespace + ".get_by_id",
		List:    namespace + ".list",
		Count:   namespace + ".count",
		Create:  namespace + ".create",
		Update:  namespace + ".update",
		Delete:  namespace + ".delete",
	}
}

// Decoder turns one result row into a record.
type Decoder[T any] func(row any) (T, error)

// Repository runs a namespace's statements and decodes their rows into T.
type Repository[T any] struct {
	sessions   *session.Factory
	session    *session.Session
	statements Statements
	decode     Decoder[T]
	logger     logging.Logger
}

type Option[T any] func(*Repository[T])

// WithNamespace replaces the namespace derived from T.
func WithNamespace[T any](namespace string) Option[T] {
	return func(r *Repository[T]) { r.statements = StatementsFor(namespace) }
}

func WithStatements[T any](s Statements) Option[T] {
	return func(r *Repository[T]) { r.statements = s }
}

// WithDecoder sets how rows become records. By default a row must already
// be a T, which is the case when the statements carry a RowMapper for T.
func WithDecoder[T any](d Decoder[T]) Option[T] {
	return func(r *Repository[T]) { r.decode = d }
}

func WithLogger[T any](l logging.Logger) Option[T] {
	return func(r *Repository[T]) { r.logger = logging.OrNop(l) }
}

func New[T any](sessions *session.Factory, opts ...Option[T]) *Repository[T] {
	r := &Repository[T]{
		sessions:   sessions,
		statements: StatementsFor(namespaceOf[T]()),
		decode:     assertRow[T],
		logger:     logging.Nop{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func assertRow[T any](row any) (T, error) {
	rec, ok := row.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("repository: cannot use %T as %T", row, zero)
	}
	return rec, nil
}

// With returns a copy of r that runs on s. Calls on the copy leave
// committing and closing s to the caller.
func (r *Repository[T]) With(s *session.Session) *Repository[T] {
	cp := *r
	cp.session = s
	return &cp
}

func (r *Repository[T]) Statements() Statements { return r.statements }

// run executes fn on the bound session, or on a fresh one that is
// committed when fn succeeds and closed either way.
func (r *Repository[T]) run(ctx context.Context, fn func(s *session.Session) error) error {
	if r.session != nil {
		return fn(r.session)
	}
	if r.sessions == nil {
		return ErrNoSessions
	}
	s, err := r.sessions.OpenSession()
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	if err := fn(s); err != nil {
		return err
	}
	return s.Commit(ctx, false)
}

// GetByID returns the single record matching param, or ErrNotFound.
func (r *Repository[T]) GetByID(ctx context.Context, param any) (T, error) {
	var rec T
	err := r.run(ctx, func(s *session.Session) error {
		row, err := s.SelectOne(ctx, r.statements.GetByID, param)
		if err != nil {
			return err
		}
		if row == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, r.statements.GetByID)
		}
		rec, err = r.decode(row)
		return err
	})
	return rec, err
}

// List returns the records selected by param within bounds. The zero
// RowBounds selects everything.
func (r *Repository[T]) List(ctx context.Context, param any, bounds mapping.RowBounds) ([]T, error) {
	var out []T
	err := r.run(ctx, func(s *session.Session) error {
		rows, err := s.SelectPage(ctx, r.statements.List, param, bounds)
		if err != nil {
			return err
		}
		out = make([]T, 0, len(rows))
		for _, row := range rows {
			rec, err := r.decode(row)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

// Count reads the single column of the count statement's single row.
func (r *Repository[T]) Count(ctx context.Context, param any) (int64, error) {
	var n int64
	err := r.run(ctx, func(s *session.Session) error {
		row, err := s.SelectOne(ctx, r.statements.Count, param)
		if err != nil {
			return err
		}
		n, err = countOf(row)
		return err
	})
	return n, err
}

func countOf(row any) (int64, error) {
	v := row
	if m, ok := row.(map[string]any); ok {
		if len(m) != 1 {
			return 0, fmt.Errorf("repository: count row has %d columns", len(m))
		}
		for _, col := range m {
			v = col
		}
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("repository: count is %T", v)
	}
}

// Create inserts record. Generated keys are written back into it, so
// pointer and map records come back with their ids set.
func (r *Repository[T]) Create(ctx context.Context, record T) (T, error) {
	err := r.run(ctx, func(s *session.Session) error {
		_, err := s.Insert(ctx, r.statements.Create, record)
		return err
	})
	if err != nil {
		r.logger.Error("create failed", logging.Fields{"statement": r.statements.Create, "error": err.Error()})
	}
	return record, err
}

// Update returns the number of rows changed.
func (r *Repository[T]) Update(ctx context.Context, record T) (int64, error) {
	var n int64
	err := r.run(ctx, func(s *session.Session) error {
		var err error
		n, err = s.Update(ctx, r.statements.Update, record)
		return err
	})
	return n, err
}

// Delete removes what param selects and returns the number of rows deleted.
func (r *Repository[T]) Delete(ctx context.Context, param any) (int64, error) {
	var n int64
	err := r.run(ctx, func(s *session.Session) error {
		var err error
		n, err = s.Delete(ctx, r.statements.Delete, param)
		return err
	})
	return n, err
}
