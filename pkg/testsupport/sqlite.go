package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-sqlmap/datasource"
)

// OpenSQLite opens a file backed sqlite database in a temporary directory,
// runs every schema statement and closes the database when the test ends.
func OpenSQLite(t *testing.T, schema ...string) *bun.DB {
	t.Helper()

	db, err := datasource.Open(datasource.Config{
		Driver: datasource.DriverSQLite,
		DSN:    "file:" + filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000",
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range schema {
		if _, err := db.ExecContext(context.Background(), stmt); err != nil {
			t.Fatalf("failed to apply schema %q: %v", stmt, err)
		}
	}

	return db
}

// CountRows returns the number of rows in table.
func CountRows(t *testing.T, db *bun.DB, table string) int {
	t.Helper()

	var n int
	if err := db.QueryRowContext(context.Background(), "SELECT count(*) FROM "+table).Scan(&n); err != nil {
		t.Fatalf("failed to count %s: %v", table, err)
	}
	return n
}
