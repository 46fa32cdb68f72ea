package meta

import (
	"database/sql/driver"
	"time"
)

// IsScalar reports whether v binds directly as a single statement parameter,
// as opposed to being an object whose properties are looked up by name.
func IsScalar(v any) bool {
	switch v.(type) {
	case bool, string, []byte, time.Time,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64,
		*bool, *string, *time.Time, *int, *int64, *float64:
		return true
	case driver.Valuer:
		return true
	}
	return false
}
