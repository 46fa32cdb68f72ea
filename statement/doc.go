// Package statement is the default statement-handling capability for the
// executors: it prepares statements through database/sql, binds parameters
// resolved by the meta accessor table, and materializes rows into
// map[string]any values or whatever a statement's RowMapper returns.
package statement
