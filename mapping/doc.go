// Package mapping holds the immutable descriptors the executors run: mapped
// statements, bound SQL, parameter mappings, paging bounds and the result
// handler and cursor contracts shared with the statement-handling layer.
//
// SQL is opaque here. A SQLSource turns a parameter object into final SQL
// text plus the ordered list of parameter mappings; templating, if any,
// happens before this package sees it.
package mapping
