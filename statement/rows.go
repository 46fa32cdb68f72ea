package statement

import (
	"database/sql"

	"github.com/goliatone/go-sqlmap/mapping"
)

// rowReader scans rows into result objects.
type rowReader struct {
	rows    *sql.Rows
	columns []string
	mapper  mapping.RowMapper
}

func newRowReader(rows *sql.Rows, mapper mapping.RowMapper) (*rowReader, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if mapper == nil {
		mapper = MapRow
	}
	return &rowReader{rows: rows, columns: columns, mapper: mapper}, nil
}

func (r *rowReader) skip(n int) error {
	for i := 0; i < n; i++ {
		if !r.rows.Next() {
			return r.rows.Err()
		}
	}
	return nil
}

// next returns false once the rows are exhausted.
func (r *rowReader) next() (any, bool, error) {
	if !r.rows.Next() {
		return nil, false, r.rows.Err()
	}
	values := make([]any, len(r.columns))
	dest := make([]any, len(r.columns))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := r.rows.Scan(dest...); err != nil {
		return nil, false, err
	}
	obj, err := r.mapper(r.columns, values)
	if err != nil {
		return nil, false, err
	}
	return obj, true, nil
}

func (r *rowReader) close() error { return r.rows.Close() }

// MapRow is the default RowMapper: a map from column name to value, with
// byte slices turned into strings.
func MapRow(columns []string, values []any) (any, error) {
	row := make(map[string]any, len(columns))
	for i, col := range columns {
		if b, ok := values[i].([]byte); ok {
			row[col] = string(b)
			continue
		}
		row[col] = values[i]
	}
	return row, nil
}
