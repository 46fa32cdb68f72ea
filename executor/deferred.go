package executor

import (
	"fmt"
	"reflect"

	"github.com/goliatone/go-sqlmap/cache"
	"github.com/goliatone/go-sqlmap/meta"
)

var anySliceType = reflect.TypeOf([]any(nil))

// deferredLoad fills a property once the query it depends on has finished
// further up the stack.
type deferredLoad struct {
	target     any
	property   string
	key        *cache.CacheKey
	local      *localCache
	accessor   meta.Accessor
	targetType reflect.Type
}

func (d *deferredLoad) canLoad() bool {
	return d.local.lookup(d.key).state == entryPresent
}

// load copies the cached result into the target. A key that is no longer
// cached is skipped.
func (d *deferredLoad) load() error {
	entry := d.local.lookup(d.key)
	if entry.state != entryPresent {
		return nil
	}
	value, err := ExtractResult(entry.list, d.targetType)
	if err != nil {
		return fmt.Errorf("executor: deferred load of %s: %w", d.property, err)
	}
	return d.accessor.Set(d.target, d.property, value)
}

// ExtractResult shapes a result list for a property of type targetType.
// A []any target gets the list itself, other slice types get a converted
// copy, and anything else gets the single element or nil.
func ExtractResult(list []any, targetType reflect.Type) (any, error) {
	if targetType == anySliceType {
		return list, nil
	}
	if targetType != nil && targetType.Kind() == reflect.Slice {
		out := reflect.MakeSlice(targetType, 0, len(list))
		elem := targetType.Elem()
		for i, v := range list {
			if v == nil {
				out = reflect.Append(out, reflect.Zero(elem))
				continue
			}
			rv := reflect.ValueOf(v)
			switch {
			case rv.Type().AssignableTo(elem):
			case rv.Type().ConvertibleTo(elem):
				rv = rv.Convert(elem)
			default:
				return nil, fmt.Errorf("executor: element %d of type %s cannot be stored in %s", i, rv.Type(), targetType)
			}
			out = reflect.Append(out, rv)
		}
		return out.Interface(), nil
	}
	switch len(list) {
	case 0:
		return nil, nil
	case 1:
		return list[0], nil
	default:
		return nil, fmt.Errorf("%w: got %d", ErrTooManyResults, len(list))
	}
}
