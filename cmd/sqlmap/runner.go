package main

import (
	"context"
	"fmt"
	"maps"

	"github.com/goliatone/go-sqlmap/config"
	"github.com/goliatone/go-sqlmap/logging"
	"github.com/goliatone/go-sqlmap/pkg/di"
	"github.com/goliatone/go-sqlmap/session"
)

type summary struct {
	steps      int
	statements int
	rows       int
	affected   int64
}

// runner plays workload steps on one session at a time.
type runner struct {
	container *di.Container
	logger    logging.Logger
	session   *session.Session
	summary   summary
}

func newRunner(container *di.Container, logger logging.Logger) *runner {
	return &runner{container: container, logger: logging.OrNop(logger)}
}

func (r *runner) run(ctx context.Context, steps []config.Step) error {
	s, err := r.container.OpenSession()
	if err != nil {
		return err
	}
	r.session = s
	defer func() { r.session.Close(ctx) }()

	for i, step := range steps {
		for n := 0; n < step.Times(); n++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := r.step(ctx, step); err != nil {
				return fmt.Errorf("step %d (%s %s): %w", i, step.Op, step.Statement, err)
			}
			r.summary.steps++
		}
	}
	return nil
}

func (r *runner) step(ctx context.Context, step config.Step) error {
	var param any
	if step.Param != nil {
		// Generated keys are written back into the parameter.
		param = maps.Clone(step.Param)
	}
	if step.NeedsStatement() {
		r.summary.statements++
	}

	s := r.session
	switch step.Op {
	case config.OpSelect:
		rows, err := s.SelectList(ctx, step.Statement, param)
		if err != nil {
			return err
		}
		r.summary.rows += len(rows)
	case config.OpSelectOne:
		row, err := s.SelectOne(ctx, step.Statement, param)
		if err != nil {
			return err
		}
		if row != nil {
			r.summary.rows++
		}
	case config.OpInsert, config.OpUpdate, config.OpDelete:
		n, err := s.Update(ctx, step.Statement, param)
		if err != nil {
			return err
		}
		if n > 0 {
			r.summary.affected += n
		}
	case config.OpFlush:
		results, err := s.FlushStatements(ctx)
		if err != nil {
			return err
		}
		for _, res := range results {
			for _, n := range res.UpdateCounts {
				r.summary.affected += n
			}
		}
	case config.OpCommit:
		return s.Commit(ctx, false)
	case config.OpRollback:
		return s.Rollback(ctx, false)
	case config.OpClearCache:
		s.ClearCache()
	case config.OpNewSession:
		s.Close(ctx)
		next, err := r.container.OpenSession()
		if err != nil {
			return err
		}
		r.session = next
		r.logger.Debug("workload switched session", logging.Fields{"session": r.session.ID()})
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}
