package session

import (
	"context"
	"fmt"

	"github.com/goliatone/go-sqlmap/executor"
	"github.com/goliatone/go-sqlmap/logging"
	"github.com/goliatone/go-sqlmap/mapping"
)

// Session runs statements by id. It is not safe for concurrent use.
type Session struct {
	id         string
	statements *mapping.Registry
	ex         executor.Executor
	autoCommit bool
	dirty      bool
	cursors    []mapping.Cursor
	logger     logging.Logger
}

func (s *Session) ID() string { return s.id }

func (s *Session) Executor() executor.Executor { return s.ex }

// Dirty reports whether a write ran since the last commit or rollback.
func (s *Session) Dirty() bool { return s.dirty }

func (s *Session) SelectList(ctx context.Context, id string, param any) ([]any, error) {
	return s.SelectPage(ctx, id, param, mapping.DefaultRowBounds)
}

func (s *Session) SelectPage(ctx context.Context, id string, param any, bounds mapping.RowBounds) ([]any, error) {
	ms, err := s.statements.Get(id)
	if err != nil {
		return nil, err
	}
	return s.ex.Query(ctx, ms, param, bounds, nil)
}

// SelectOne returns the single result, or nil when there is none.
func (s *Session) SelectOne(ctx context.Context, id string, param any) (any, error) {
	list, err := s.SelectList(ctx, id, param)
	if err != nil {
		return nil, err
	}
	switch len(list) {
	case 0:
		return nil, nil
	case 1:
		return list[0], nil
	default:
		return nil, fmt.Errorf("%w: %s returned %d rows", executor.ErrTooManyResults, id, len(list))
	}
}

// Select streams results to rh without caching them.
func (s *Session) Select(ctx context.Context, id string, param any, bounds mapping.RowBounds, rh mapping.ResultHandler) error {
	ms, err := s.statements.Get(id)
	if err != nil {
		return err
	}
	_, err = s.ex.Query(ctx, ms, param, bounds, rh)
	return err
}

// SelectCursor opens a cursor that is closed with the session if the caller
// has not closed it first.
func (s *Session) SelectCursor(ctx context.Context, id string, param any, bounds mapping.RowBounds) (mapping.Cursor, error) {
	ms, err := s.statements.Get(id)
	if err != nil {
		return nil, err
	}
	cur, err := s.ex.QueryCursor(ctx, ms, param, bounds)
	if err != nil {
		return nil, err
	}
	s.cursors = append(s.cursors, cur)
	return cur, nil
}

func (s *Session) Insert(ctx context.Context, id string, param any) (int64, error) {
	return s.Update(ctx, id, param)
}

func (s *Session) Delete(ctx context.Context, id string, param any) (int64, error) {
	return s.Update(ctx, id, param)
}

// Update runs any write and marks the session dirty.
func (s *Session) Update(ctx context.Context, id string, param any) (int64, error) {
	ms, err := s.statements.Get(id)
	if err != nil {
		return 0, err
	}
	s.dirty = true
	return s.ex.Update(ctx, ms, param)
}

func (s *Session) FlushStatements(ctx context.Context) ([]executor.BatchResult, error) {
	return s.ex.FlushStatements(ctx)
}

// Commit flushes and publishes cache writes. The transaction itself is only
// committed when the session is dirty and not autocommit, or when forced.
func (s *Session) Commit(ctx context.Context, force bool) error {
	if err := s.ex.Commit(ctx, s.commitOrRollbackRequired(force)); err != nil {
		return fmt.Errorf("session: commit: %w", err)
	}
	s.dirty = false
	return nil
}

func (s *Session) Rollback(ctx context.Context, force bool) error {
	if err := s.ex.Rollback(ctx, s.commitOrRollbackRequired(force)); err != nil {
		return fmt.Errorf("session: rollback: %w", err)
	}
	s.dirty = false
	return nil
}

func (s *Session) ClearCache() { s.ex.ClearLocalCache() }

// Close releases open cursors and the executor, rolling back uncommitted
// writes.
func (s *Session) Close(ctx context.Context) {
	for _, cur := range s.cursors {
		if err := cur.Close(); err != nil {
			s.logger.Warn("error closing cursor", logging.Fields{"session": s.id, "error": err.Error()})
		}
	}
	s.cursors = nil
	s.ex.Close(ctx, s.commitOrRollbackRequired(false))
	s.dirty = false
	s.logger.Debug("session closed", logging.Fields{"session": s.id})
}

func (s *Session) commitOrRollbackRequired(force bool) bool {
	return force || (!s.autoCommit && s.dirty)
}
