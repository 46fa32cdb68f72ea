package mapping

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-sqlmap/cache"
)

// CommandType classifies a mapped statement.
type CommandType int

const (
	CommandUnknown CommandType = iota
	CommandSelect
	CommandInsert
	CommandUpdate
	CommandDelete
)

func (c CommandType) String() string {
	switch c {
	case CommandSelect:
		return "SELECT"
	case CommandInsert:
		return "INSERT"
	case CommandUpdate:
		return "UPDATE"
	case CommandDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// ParseCommandType accepts select, insert, update and delete in any case.
func ParseCommandType(s string) (CommandType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SELECT":
		return CommandSelect, nil
	case "INSERT":
		return CommandInsert, nil
	case "UPDATE":
		return CommandUpdate, nil
	case "DELETE":
		return CommandDelete, nil
	default:
		return CommandUnknown, fmt.Errorf("mapping: unknown command type %q", s)
	}
}

// MappedStatement describes one named SQL operation. It is built once with
// NewMappedStatement and never mutated afterwards.
type MappedStatement struct {
	id            string
	source        SQLSource
	command       CommandType
	cache         cache.Cache
	flushRequired bool
	useCache      bool
	keyGenerator  KeyGenerator
	keyProperties []string
	timeout       time.Duration
	rowMapper     RowMapper
}

// Option customizes a MappedStatement under construction.
type Option func(*MappedStatement)

// NewMappedStatement builds a statement. Selects default to useCache=true and
// flushCache=false; every other command defaults to flushCache=true.
func NewMappedStatement(id string, source SQLSource, command CommandType, opts ...Option) *MappedStatement {
	ms := &MappedStatement{
		id:            id,
		source:        source,
		command:       command,
		flushRequired: command != CommandSelect,
		useCache:      command == CommandSelect,
		keyGenerator:  NoKeyGenerator{},
	}
	for _, opt := range opts {
		opt(ms)
	}
	return ms
}

// WithCache attaches the namespace (second-level) cache.
func WithCache(c cache.Cache) Option { return func(ms *MappedStatement) { ms.cache = c } }

func WithFlushCache(flush bool) Option { return func(ms *MappedStatement) { ms.flushRequired = flush } }

func WithUseCache(use bool) Option { return func(ms *MappedStatement) { ms.useCache = use } }

// WithKeyGenerator sets the key generator and the properties it fills.
func WithKeyGenerator(kg KeyGenerator, keyProperties ...string) Option {
	return func(ms *MappedStatement) {
		if kg == nil {
			kg = NoKeyGenerator{}
		}
		ms.keyGenerator = kg
		ms.keyProperties = append([]string(nil), keyProperties...)
	}
}

func WithTimeout(d time.Duration) Option { return func(ms *MappedStatement) { ms.timeout = d } }

// WithRowMapper sets how raw rows of this statement are materialized.
func WithRowMapper(m RowMapper) Option { return func(ms *MappedStatement) { ms.rowMapper = m } }

func (ms *MappedStatement) ID() string                 { return ms.id }
func (ms *MappedStatement) Command() CommandType       { return ms.command }
func (ms *MappedStatement) Cache() cache.Cache         { return ms.cache }
func (ms *MappedStatement) FlushCacheRequired() bool   { return ms.flushRequired }
func (ms *MappedStatement) UseCache() bool             { return ms.useCache }
func (ms *MappedStatement) KeyGenerator() KeyGenerator { return ms.keyGenerator }
func (ms *MappedStatement) Timeout() time.Duration     { return ms.timeout }
func (ms *MappedStatement) RowMapper() RowMapper       { return ms.rowMapper }

func (ms *MappedStatement) KeyProperties() []string {
	return append([]string(nil), ms.keyProperties...)
}

// Namespace is the id up to its last dot.
func (ms *MappedStatement) Namespace() string {
	if i := strings.LastIndex(ms.id, "."); i >= 0 {
		return ms.id[:i]
	}
	return ""
}

// BoundSQL resolves the statement's SQL for a parameter object.
func (ms *MappedStatement) BoundSQL(param any) (*BoundSQL, error) {
	if ms.source == nil {
		return nil, fmt.Errorf("mapping: statement %s has no SQL source", ms.id)
	}
	return ms.source.BoundSQL(param)
}
