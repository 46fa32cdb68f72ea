package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-sqlmap/executor"
	"github.com/goliatone/go-sqlmap/mapping"
	"github.com/goliatone/go-sqlmap/pkg/testsupport"
)

const minimal = `
datasource:
  driver: sqlite3
  dsn: ":memory:"
`

func TestLoad(t *testing.T) {
	t.Setenv("SQLMAP_TEST_DB", "app.db")

	cfg, err := Load(testsupport.FixturePath("config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "file:app.db?cache=shared", cfg.Datasource.DSN)
	assert.Equal(t, "test", cfg.Environment)

	typ, err := cfg.Settings.Executor()
	require.NoError(t, err)
	assert.Equal(t, executor.TypeReuse, typ)

	scope, err := cfg.Settings.Scope()
	require.NoError(t, err)
	assert.Equal(t, executor.ScopeStatement, scope)
	assert.True(t, cfg.Settings.CachingEnabled())
	assert.Equal(t, 5*time.Second, cfg.Settings.DefaultTimeout)

	require.Len(t, cfg.Caches, 2)
	users := cfg.Caches[0]
	assert.True(t, users.IsDefault())
	require.NotNil(t, users.Size)
	assert.Equal(t, 256, *users.Size)
	assert.Equal(t, time.Minute, users.ClearInterval)
	assert.Equal(t, "2000", users.Properties["timeout"])
	assert.False(t, cfg.Caches[1].IsDefault())

	require.Len(t, cfg.Statements, 3)
	total := cfg.Statements[2]
	require.NotNil(t, total.UseCache)
	assert.False(t, *total.UseCache)
	assert.Nil(t, total.FlushCache)
	assert.Equal(t, 500*time.Millisecond, total.Timeout)

	require.Len(t, cfg.Workload, 2)
	assert.Equal(t, 3, cfg.Workload[0].Times())
	assert.Equal(t, 1, cfg.Workload[1].Times())
	assert.Equal(t, 1, cfg.Workload[0].Param["id"])
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(testsupport.FixturePath("missing.yaml"))
	assert.Error(t, err)
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimal))
	require.NoError(t, err)

	typ, err := cfg.Settings.Executor()
	require.NoError(t, err)
	assert.Equal(t, executor.TypeSimple, typ)

	scope, err := cfg.Settings.Scope()
	require.NoError(t, err)
	assert.Equal(t, executor.ScopeSession, scope)
	assert.True(t, cfg.Settings.CachingEnabled())
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		errorMsg string
	}{
		{name: "empty document", doc: "", errorMsg: "empty document"},
		{name: "unknown field", doc: minimal + "extra: true\n", errorMsg: "extra"},
		{name: "missing driver", doc: "datasource:\n  dsn: x\n", errorMsg: "Driver"},
		{name: "bad executor type", doc: minimal + "settings:\n  executor_type: parallel\n", errorMsg: "ExecutorType"},
		{name: "bad scope", doc: minimal + "settings:\n  local_cache_scope: global\n", errorMsg: "LocalCacheScope"},
		{name: "bad provider", doc: minimal + "caches:\n  - id: users\n    provider: memcached\n", errorMsg: "Provider"},
		{name: "bad decorator", doc: minimal + "caches:\n  - id: users\n    decorators: [lfu]\n", errorMsg: "Decorators"},
		{name: "bad codec", doc: minimal + "caches:\n  - id: users\n    codec: gob\n", errorMsg: "Codec"},
		{name: "zero size", doc: minimal + "caches:\n  - id: users\n    size: 0\n", errorMsg: "Size"},
		{name: "duplicate cache", doc: minimal + "caches:\n  - id: users\n  - id: users\n", errorMsg: "duplicate"},
		{
			name:     "unknown cache reference",
			doc:      minimal + "statements:\n  - id: a\n    command: select\n    sql: SELECT 1\n    cache: nope\n",
			errorMsg: "unknown cache",
		},
		{
			name:     "bad command",
			doc:      minimal + "statements:\n  - id: a\n    command: merge\n    sql: SELECT 1\n",
			errorMsg: "Command",
		},
		{
			name:     "bad parameter mode",
			doc:      minimal + "statements:\n  - id: a\n    command: select\n    sql: SELECT ?\n    params: [\"id:both\"]\n",
			errorMsg: "Params",
		},
		{
			name:     "generated keys without properties",
			doc:      minimal + "statements:\n  - id: a\n    command: insert\n    sql: INSERT INTO t DEFAULT VALUES\n    key_generator: generated\n",
			errorMsg: "KeyProperties",
		},
		{
			name:     "unknown statement in workload",
			doc:      minimal + "workload:\n  - op: select\n    statement: nope\n",
			errorMsg: "unknown statement",
		},
		{
			name:     "statement op without statement",
			doc:      minimal + "workload:\n  - op: insert\n",
			errorMsg: "Statement",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestParseParam(t *testing.T) {
	pm, err := ParseParam("id")
	require.NoError(t, err)
	assert.Equal(t, mapping.In("id"), pm)

	pm, err = ParseParam("total:OUT")
	require.NoError(t, err)
	assert.Equal(t, mapping.ModeOut, pm.Mode)

	pm, err = ParseParam("count:inout")
	require.NoError(t, err)
	assert.Equal(t, mapping.ModeInOut, pm.Mode)

	_, err = ParseParam(":out")
	assert.Error(t, err)
}

func TestStep_NeedsStatement(t *testing.T) {
	assert.True(t, Step{Op: OpSelectOne}.NeedsStatement())
	assert.False(t, Step{Op: OpCommit}.NeedsStatement())
}

func TestExpandEnv_KeepsPositionalPlaceholders(t *testing.T) {
	t.Setenv("SQLMAP_TABLE", "users")

	got := expandEnv([]byte("SELECT * FROM ${SQLMAP_TABLE} WHERE id = $1"))
	assert.Equal(t, "SELECT * FROM users WHERE id = $1", string(got))
}
