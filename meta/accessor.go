// Package meta resolves named properties on parameter and result objects.
//
// Properties are not discovered by reflection. Each Go type that takes part
// in parameter binding or deferred association loading registers typed
// getter and setter closures once, at configuration time, and lookups go
// through that table. map[string]any values are supported without
// registration. Paths may be dotted ("author.id") and may index slices,
// arrays and string-keyed maps ("authors[0].id").
package meta

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

var (
	ErrNoGetter = errors.New("meta: no getter registered")
	ErrNoSetter = errors.New("meta: no setter registered")
)

// Getter reads one property off an object.
type Getter func(obj any) (any, error)

// Setter writes one property on an object.
type Setter func(obj any, value any) error

// Accessor reads and writes named properties.
type Accessor interface {
	Get(obj any, path string) (any, error)
	Set(obj any, path string, value any) error
	HasGetter(obj any, name string) bool
}

type typeInfo struct {
	getters map[string]Getter
	setters map[string]Setter
}

// Registry is the Accessor backed by an explicit per-type property table.
type Registry struct {
	mu    sync.RWMutex
	types map[reflect.Type]*typeInfo
}

var _ Accessor = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{types: make(map[reflect.Type]*typeInfo)}
}

// Register adds a property for T. Either get or set may be nil.
func Register[T any](r *Registry, name string, get func(T) any, set func(T, any) error) {
	var zero T
	typ := reflect.TypeOf(&zero).Elem()

	r.mu.Lock()
	defer r.mu.Unlock()

	info := r.types[typ]
	if info == nil {
		info = &typeInfo{getters: map[string]Getter{}, setters: map[string]Setter{}}
		r.types[typ] = info
	}
	if get != nil {
		info.getters[name] = func(obj any) (any, error) {
			t, ok := obj.(T)
			if !ok {
				return nil, fmt.Errorf("meta: %s: expected %s, got %T", name, typ, obj)
			}
			return get(t), nil
		}
	}
	if set != nil {
		info.setters[name] = func(obj any, value any) error {
			t, ok := obj.(T)
			if !ok {
				return fmt.Errorf("meta: %s: expected %s, got %T", name, typ, obj)
			}
			return set(t, value)
		}
	}
}

func (r *Registry) lookup(obj any) *typeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.types[reflect.TypeOf(obj)]
}

// Get resolves path on obj. A nil object anywhere along the path yields nil.
// Segments may index into slices, arrays and string-keyed maps: "items[0].id".
func (r *Registry) Get(obj any, path string) (any, error) {
	cur := obj
	for _, seg := range strings.Split(path, ".") {
		name, indexes, err := parseSegment(seg)
		if err != nil {
			return nil, fmt.Errorf("meta: %s: %w", path, err)
		}
		if name != "" {
			if cur == nil {
				return nil, nil
			}
			if cur, err = r.getOne(cur, name); err != nil {
				return nil, err
			}
		}
		for _, idx := range indexes {
			if cur == nil {
				return nil, nil
			}
			if cur, err = index(cur, idx); err != nil {
				return nil, fmt.Errorf("meta: %s: %w", path, err)
			}
		}
	}
	return cur, nil
}

// parseSegment splits "items[0][1]" into "items" and its index expressions.
func parseSegment(seg string) (string, []string, error) {
	open := strings.IndexByte(seg, '[')
	if open < 0 {
		return seg, nil, nil
	}
	name, rest := seg[:open], seg[open:]
	var indexes []string
	for rest != "" {
		end := strings.IndexByte(rest, ']')
		if rest[0] != '[' || end < 0 {
			return "", nil, fmt.Errorf("malformed index in %q", seg)
		}
		indexes = append(indexes, rest[1:end])
		rest = rest[end+1:]
	}
	return name, indexes, nil
}

func index(obj any, idx string) (any, error) {
	rv := reflect.ValueOf(obj)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(idx)
		if err != nil {
			return nil, fmt.Errorf("index %q on %T is not an integer", idx, obj)
		}
		if i < 0 || i >= rv.Len() {
			return nil, fmt.Errorf("index %d out of range for %T of length %d", i, obj, rv.Len())
		}
		return rv.Index(i).Interface(), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("cannot index %T with %q", obj, idx)
		}
		v := rv.MapIndex(reflect.ValueOf(idx).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, nil
		}
		return v.Interface(), nil
	default:
		return nil, fmt.Errorf("cannot index %T", obj)
	}
}

func (r *Registry) getOne(obj any, name string) (any, error) {
	if m, ok := obj.(map[string]any); ok {
		return m[name], nil
	}
	info := r.lookup(obj)
	if info == nil {
		return nil, fmt.Errorf("%w: %T.%s", ErrNoGetter, obj, name)
	}
	get, ok := info.getters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %T.%s", ErrNoGetter, obj, name)
	}
	return get(obj)
}

// Set writes value at path on obj. Intermediate objects must already exist.
func (r *Registry) Set(obj any, path string, value any) error {
	names := strings.Split(path, ".")
	target := obj
	if len(names) > 1 {
		parent, err := r.Get(obj, strings.Join(names[:len(names)-1], "."))
		if err != nil {
			return err
		}
		if parent == nil {
			return fmt.Errorf("meta: cannot set %s: parent is nil", path)
		}
		target = parent
	}
	last := names[len(names)-1]
	if strings.ContainsRune(last, '[') {
		return fmt.Errorf("%w: indexed path %s", ErrNoSetter, path)
	}

	if m, ok := target.(map[string]any); ok {
		m[last] = value
		return nil
	}
	info := r.lookup(target)
	if info == nil {
		return fmt.Errorf("%w: %T.%s", ErrNoSetter, target, last)
	}
	set, ok := info.setters[last]
	if !ok {
		return fmt.Errorf("%w: %T.%s", ErrNoSetter, target, last)
	}
	return set(target, value)
}

func (r *Registry) HasGetter(obj any, name string) bool {
	if _, ok := obj.(map[string]any); ok {
		return true
	}
	info := r.lookup(obj)
	if info == nil {
		return false
	}
	_, ok := info.getters[name]
	return ok
}
