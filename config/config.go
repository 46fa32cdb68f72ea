// Package config loads the YAML description of an engine: where the data
// lives, how executors behave, which namespace caches exist and which
// statements run against them.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-sqlmap/datasource"
	"github.com/goliatone/go-sqlmap/executor"
)

// Config is the root of a configuration file.
type Config struct {
	Datasource datasource.Config `yaml:"datasource"`
	// Environment is contributed to every cache key when set.
	Environment string      `yaml:"environment"`
	Settings    Settings    `yaml:"settings"`
	Caches      []Cache     `yaml:"caches"`
	Statements  []Statement `yaml:"statements"`
	Workload    []Step      `yaml:"workload"`
}

// Settings tune the executors sessions are opened with.
type Settings struct {
	ExecutorType    string `yaml:"executor_type"`
	LocalCacheScope string `yaml:"local_cache_scope"`
	// CacheEnabled defaults to true.
	CacheEnabled       *bool         `yaml:"cache_enabled"`
	AutoCommit         bool          `yaml:"auto_commit"`
	DefaultTimeout     time.Duration `yaml:"default_timeout"`
	TransactionTimeout time.Duration `yaml:"transaction_timeout"`
}

// Executor parses ExecutorType. Empty means SIMPLE.
func (s Settings) Executor() (executor.Type, error) {
	if s.ExecutorType == "" {
		return executor.TypeSimple, nil
	}
	return executor.ParseType(s.ExecutorType)
}

// Scope parses LocalCacheScope. Empty means SESSION.
func (s Settings) Scope() (executor.LocalCacheScope, error) {
	if s.LocalCacheScope == "" {
		return executor.ScopeSession, nil
	}
	return executor.ParseLocalCacheScope(s.LocalCacheScope)
}

func (s Settings) CachingEnabled() bool {
	return s.CacheEnabled == nil || *s.CacheEnabled
}

func (s Settings) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ExecutorType, validation.By(func(any) error {
			_, err := s.Executor()
			return err
		})),
		validation.Field(&s.LocalCacheScope, validation.By(func(any) error {
			_, err := s.Scope()
			return err
		})),
		validation.Field(&s.DefaultTimeout, validation.Min(time.Duration(0))),
		validation.Field(&s.TransactionTimeout, validation.Min(time.Duration(0))),
	)
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Datasource),
		validation.Field(&c.Settings),
		validation.Field(&c.Caches, validation.By(uniqueIDs(c.cacheIDs()))),
		validation.Field(&c.Statements, validation.By(uniqueIDs(c.statementIDs())), validation.By(c.cacheRefs)),
		validation.Field(&c.Workload, validation.By(c.statementRefs)),
	)
}

func (c Config) cacheIDs() []string {
	ids := make([]string, len(c.Caches))
	for i, cc := range c.Caches {
		ids[i] = cc.ID
	}
	return ids
}

func (c Config) statementIDs() []string {
	ids := make([]string, len(c.Statements))
	for i, s := range c.Statements {
		ids[i] = s.ID
	}
	return ids
}

func uniqueIDs(ids []string) validation.RuleFunc {
	return func(any) error {
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			if seen[id] {
				return fmt.Errorf("duplicate id %q", id)
			}
			seen[id] = true
		}
		return nil
	}
}

func (c Config) cacheRefs(any) error {
	known := make(map[string]bool, len(c.Caches))
	for _, id := range c.cacheIDs() {
		known[id] = true
	}
	for _, s := range c.Statements {
		if s.Cache != "" && !known[s.Cache] {
			return fmt.Errorf("statement %s: unknown cache %q", s.ID, s.Cache)
		}
	}
	return nil
}

func (c Config) statementRefs(any) error {
	known := make(map[string]bool, len(c.Statements))
	for _, id := range c.statementIDs() {
		known[id] = true
	}
	for i, step := range c.Workload {
		if step.Statement != "" && !known[step.Statement] {
			return fmt.Errorf("step %d: unknown statement %q", i, step.Statement)
		}
	}
	return nil
}

// Load reads, expands and validates the file at path. Environment
// variables written as ${NAME} are substituted before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// envRef only matches the braced form so postgres placeholders like $1 survive.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(m []byte) []byte {
		return []byte(os.Getenv(string(m[2 : len(m)-1])))
	})
}

// Parse decodes and validates a configuration document. Unknown fields are
// rejected.
func Parse(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(expandEnv(data)))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty document")
		}
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
