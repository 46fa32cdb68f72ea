package config

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Workload operations.
const (
	OpSelect     = "select"
	OpSelectOne  = "select_one"
	OpInsert     = "insert"
	OpUpdate     = "update"
	OpDelete     = "delete"
	OpFlush      = "flush"
	OpCommit     = "commit"
	OpRollback   = "rollback"
	OpClearCache = "clear_cache"
	// OpNewSession closes the current session, committing it, and opens another.
	OpNewSession = "new_session"
)

// Step is one scripted operation run by the CLI.
type Step struct {
	Op        string         `yaml:"op"`
	Statement string         `yaml:"statement"`
	Param     map[string]any `yaml:"param"`
	// Repeat runs the step this many times. Zero means once.
	Repeat int `yaml:"repeat"`
}

// NeedsStatement reports whether the op runs a mapped statement.
func (s Step) NeedsStatement() bool {
	switch s.Op {
	case OpSelect, OpSelectOne, OpInsert, OpUpdate, OpDelete:
		return true
	}
	return false
}

func (s Step) Times() int {
	if s.Repeat < 1 {
		return 1
	}
	return s.Repeat
}

func (s Step) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Op, validation.Required, validation.In(
			OpSelect, OpSelectOne, OpInsert, OpUpdate, OpDelete,
			OpFlush, OpCommit, OpRollback, OpClearCache, OpNewSession,
		)),
		validation.Field(&s.Statement, validation.When(s.NeedsStatement(), validation.Required)),
		validation.Field(&s.Repeat, validation.Min(0)),
	)
}
