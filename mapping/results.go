package mapping

import "math"

const (
	NoRowOffset = 0
	NoRowLimit  = math.MaxInt32
)

// RowBounds pages a result in memory: Offset rows are skipped and at most
// Limit rows are materialized.
type RowBounds struct {
	Offset int
	Limit  int
}

// DefaultRowBounds selects every row.
var DefaultRowBounds = RowBounds{Offset: NoRowOffset, Limit: NoRowLimit}

// Normalize maps the zero value to DefaultRowBounds.
func (b RowBounds) Normalize() RowBounds {
	if b.Limit <= 0 {
		b.Limit = NoRowLimit
	}
	if b.Offset < 0 {
		b.Offset = NoRowOffset
	}
	return b
}

// RowMapper materializes one raw row into a result object.
type RowMapper func(columns []string, values []any) (any, error)

// ResultContext is handed to a ResultHandler for every materialized row.
type ResultContext struct {
	object  any
	count   int
	stopped bool
}

func NewResultContext() *ResultContext { return &ResultContext{} }

// Next records the next materialized row.
func (rc *ResultContext) Next(obj any) {
	rc.object = obj
	rc.count++
}

func (rc *ResultContext) Object() any     { return rc.object }
func (rc *ResultContext) Count() int      { return rc.count }
func (rc *ResultContext) Stop()           { rc.stopped = true }
func (rc *ResultContext) IsStopped() bool { return rc.stopped }

// ResultHandler consumes rows as they are materialized. A query given a
// ResultHandler returns no list and bypasses both caches.
type ResultHandler interface {
	HandleResult(rc *ResultContext)
}

// ResultHandlerFunc adapts a function to ResultHandler.
type ResultHandlerFunc func(rc *ResultContext)

func (f ResultHandlerFunc) HandleResult(rc *ResultContext) { f(rc) }

// Cursor is a lazy, forward-only, non-restartable sequence of rows.
type Cursor interface {
	Next() bool
	Value() any
	Err() error
	Close() error
	IsOpen() bool
	IsConsumed() bool
	// CurrentIndex is the zero-based index of the current row, -1 before the first.
	CurrentIndex() int
}
