package cache

import (
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// partSeparator delimits the values of a CacheKey in its string form.
const partSeparator = ":"

// encodeValue renders a value contributed to a CacheKey as a type-tagged,
// deterministic string. Two values encode equally only when they have the
// same dynamic type and the same content, so "1" and 1 stay distinct.
//
// Function and channel values use %p and are therefore stable only within a
// single process; keys that must survive a restart should not contain them.
func encodeValue(v any) string {
	return (&valueEncoder{}).encode(v)
}

// valueEncoder tracks the pointers, maps and slices on the current path so
// a value that refers back to itself encodes as a cycle marker.
type valueEncoder struct {
	path map[visit]bool
}

type visit struct {
	ptr uintptr
	typ reflect.Type
}

func (e *valueEncoder) enter(rv reflect.Value) bool {
	at := visit{ptr: rv.Pointer(), typ: rv.Type()}
	if e.path == nil {
		e.path = make(map[visit]bool)
	}
	if e.path[at] {
		return false
	}
	e.path[at] = true
	return true
}

func (e *valueEncoder) leave(rv reflect.Value) {
	delete(e.path, visit{ptr: rv.Pointer(), typ: rv.Type()})
}

func (e *valueEncoder) encode(v any) string {
	if v == nil {
		return "nil"
	}

	switch t := v.(type) {
	case string:
		return "string:" + t
	case []byte:
		return "bytes:" + hex.EncodeToString(t)
	case time.Time:
		return "time:" + t.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if t == nil {
			return "nil"
		}
		return "time:" + t.UTC().Format(time.RFC3339Nano)
	case *CacheKey:
		if t == nil {
			return "nil"
		}
		return "key:{" + t.String() + "}"
	}

	rv := reflect.ValueOf(v)
	rt := rv.Type()

	if (rt.Kind() == reflect.Ptr || rt.Kind() == reflect.Interface) && rv.IsNil() {
		return "nil"
	}
	if valuer, ok := v.(driver.Valuer); ok {
		if dv, err := valuer.Value(); err == nil {
			return fmt.Sprintf("valuer:%s:{%s}", rt, e.encode(dv))
		}
	}
	if opaque(rt) {
		if s, ok := v.(fmt.Stringer); ok {
			return fmt.Sprintf("%s:%s", rt, s.String())
		}
	}

	switch rt.Kind() {
	case reflect.Func:
		return fmt.Sprintf("func:%p", v)
	case reflect.Chan:
		return fmt.Sprintf("chan:%p", v)
	case reflect.Ptr:
		if !e.enter(rv) {
			return "cycle:" + rt.String()
		}
		defer e.leave(rv)
		return e.encode(rv.Elem().Interface())
	case reflect.Interface:
		return e.encode(rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return "slice:nil"
		}
		if rv.Len() > 0 {
			if !e.enter(rv) {
				return "cycle:" + rt.String()
			}
			defer e.leave(rv)
		}
		return e.encodeSequence("slice", rv)
	case reflect.Array:
		return e.encodeSequence("array", rv)
	case reflect.Map:
		if rv.IsNil() {
			return "map:nil"
		}
		if !e.enter(rv) {
			return "cycle:" + rt.String()
		}
		defer e.leave(rv)
		return e.encodeMap(rv)
	case reflect.Struct:
		if !hasExportedField(rt) {
			return fmt.Sprintf("%s:%#v", rt, v)
		}
		return e.encodeStruct(rv, rt)
	}

	if isBasicKind(rt.Kind()) {
		return fmt.Sprintf("%s:%v", rt.String(), v)
	}

	return jsonFallback(v)
}

func (e *valueEncoder) encodeSequence(tag string, rv reflect.Value) string {
	length := rv.Len()
	parts := make([]string, length)
	for i := 0; i < length; i++ {
		parts[i] = e.encode(rv.Index(i).Interface())
	}
	return fmt.Sprintf("%s[%d]:{%s}", tag, length, strings.Join(parts, ","))
}

// encodeMap sorts entries by their encoded key so iteration order never leaks into the key.
func (e *valueEncoder) encodeMap(rv reflect.Value) string {
	pairs := make([]string, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		pairs = append(pairs, e.encode(iter.Key().Interface())+"="+e.encode(iter.Value().Interface()))
	}
	sort.Strings(pairs)
	return fmt.Sprintf("map[%d]:{%s}", len(pairs), strings.Join(pairs, ","))
}

func (e *valueEncoder) encodeStruct(rv reflect.Value, rt reflect.Type) string {
	parts := make([]string, 0, rv.NumField())
	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		fv := rv.Field(i)
		if !fv.CanInterface() {
			continue
		}
		parts = append(parts, field.Name+"="+e.encode(fv.Interface()))
	}
	return fmt.Sprintf("%s:{%s}", rt.String(), strings.Join(parts, ","))
}

// opaque reports whether rt, or the struct it points to, hides all of its
// state in unexported fields.
func opaque(rt reflect.Type) bool {
	if rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	return rt.Kind() == reflect.Struct && !hasExportedField(rt)
}

func hasExportedField(rt reflect.Type) bool {
	for i := 0; i < rt.NumField(); i++ {
		if rt.Field(i).IsExported() {
			return true
		}
	}
	return false
}

func isBasicKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128,
		reflect.String:
		return true
	default:
		return false
	}
}

func jsonFallback(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("fallback:%T", v)
	}
	return fmt.Sprintf("json:%T:%s", v, data)
}
