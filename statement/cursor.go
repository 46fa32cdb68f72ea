package statement

import (
	"errors"

	"github.com/goliatone/go-sqlmap/executor"
	"github.com/goliatone/go-sqlmap/mapping"
)

// Cursor streams rows one at a time. It is forward only and cannot be
// restarted; it closes itself once the rows or the row bounds are exhausted.
type Cursor struct {
	reader  *rowReader
	stmt    executor.Statement
	bounds  mapping.RowBounds
	skipped bool

	index    int
	value    any
	err      error
	closed   bool
	consumed bool
}

func newCursor(reader *rowReader, stmt executor.Statement, bounds mapping.RowBounds) *Cursor {
	return &Cursor{reader: reader, stmt: stmt, bounds: bounds.Normalize(), index: -1}
}

func (c *Cursor) Next() bool {
	if c.closed || c.consumed {
		return false
	}
	if !c.skipped {
		c.skipped = true
		if err := c.reader.skip(c.bounds.Offset); err != nil {
			return c.finish(err)
		}
	}
	if c.index+1 >= c.bounds.Limit {
		return c.finish(nil)
	}
	obj, ok, err := c.reader.next()
	if err != nil || !ok {
		return c.finish(err)
	}
	c.index++
	c.value = obj
	return true
}

func (c *Cursor) finish(err error) bool {
	c.err = err
	c.consumed = true
	c.value = nil
	if cerr := c.Close(); c.err == nil {
		c.err = cerr
	}
	return false
}

func (c *Cursor) Value() any { return c.value }

func (c *Cursor) Err() error { return c.err }

func (c *Cursor) IsOpen() bool { return !c.closed }

func (c *Cursor) IsConsumed() bool { return c.consumed }

// CurrentIndex is the zero based index of the current row, -1 before the first.
func (c *Cursor) CurrentIndex() int { return c.index }

func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.reader.close()
	if ps, ok := c.stmt.(interface{ rowsClosed() error }); ok {
		err = errors.Join(err, ps.rowsClosed())
	}
	return err
}
