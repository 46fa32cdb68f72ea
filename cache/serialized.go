package cache

import (
	"context"
	"fmt"
	"reflect"

	"github.com/goliatone/go-sqlmap/codec"
)

// SerializedCache stores encoded copies of values, so every Get returns a
// fresh value that the caller may mutate without affecting other sessions.
type SerializedCache struct {
	delegate Cache
	codec    codec.Codec
}

var _ Cache = (*SerializedCache)(nil)

// serializedValue is one encoded value and the type to decode it into.
// Result lists are kept element by element, so rows of different concrete
// types inside an []any come back as the types they went in as.
type serializedValue struct {
	data  []byte
	typ   reflect.Type
	list  bool
	items []serializedValue
}

// NewSerializedCache wraps delegate; a nil codec selects msgpack.
func NewSerializedCache(delegate Cache, c codec.Codec) *SerializedCache {
	if c == nil {
		c = codec.Msgpack{}
	}
	return &SerializedCache{delegate: delegate, codec: c}
}

func (c *SerializedCache) Unwrap() Cache { return c.delegate }
func (c *SerializedCache) ID() string    { return c.delegate.ID() }

func (c *SerializedCache) Put(ctx context.Context, key *CacheKey, value any) error {
	if value == nil {
		return c.delegate.Put(ctx, key, nil)
	}
	sv, err := c.encode(value)
	if err != nil {
		return fmt.Errorf("cache %s: serialize %T: %w", c.ID(), value, err)
	}
	return c.delegate.Put(ctx, key, sv)
}

func (c *SerializedCache) encode(value any) (serializedValue, error) {
	if value == nil {
		return serializedValue{}, nil
	}
	if list, ok := value.([]any); ok {
		sv := serializedValue{list: true, items: make([]serializedValue, len(list))}
		for i, item := range list {
			enc, err := c.encode(item)
			if err != nil {
				return serializedValue{}, fmt.Errorf("element %d: %w", i, err)
			}
			sv.items[i] = enc
		}
		return sv, nil
	}
	data, err := c.codec.Marshal(value)
	if err != nil {
		return serializedValue{}, err
	}
	return serializedValue{data: data, typ: reflect.TypeOf(value)}, nil
}

func (c *SerializedCache) decode(sv serializedValue) (any, error) {
	if sv.list {
		out := make([]any, len(sv.items))
		for i, item := range sv.items {
			v, err := c.decode(item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	}
	if sv.typ == nil {
		return nil, nil
	}
	ptr := reflect.New(sv.typ)
	if err := c.codec.Unmarshal(sv.data, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("deserialize %s: %w", sv.typ, err)
	}
	return ptr.Elem().Interface(), nil
}

func (c *SerializedCache) Get(ctx context.Context, key *CacheKey) (any, bool, error) {
	v, ok, err := c.delegate.Get(ctx, key)
	if err != nil || !ok || v == nil {
		return v, ok, err
	}
	sv, isSerialized := v.(serializedValue)
	if !isSerialized {
		return nil, false, fmt.Errorf("cache %s: unexpected entry of type %T", c.ID(), v)
	}
	out, err := c.decode(sv)
	if err != nil {
		return nil, false, fmt.Errorf("cache %s: %w", c.ID(), err)
	}
	return out, true, nil
}

func (c *SerializedCache) Remove(ctx context.Context, key *CacheKey) error {
	return c.delegate.Remove(ctx, key)
}

func (c *SerializedCache) Clear(ctx context.Context) error { return c.delegate.Clear(ctx) }

func (c *SerializedCache) Size(ctx context.Context) (int, error) { return c.delegate.Size(ctx) }
