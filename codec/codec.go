// Package codec serializes cached values for stores that keep bytes and for
// the read/write (copy-on-read) cache decorator.
package codec

import (
	"fmt"
	"strings"
)

// Codec encodes values to bytes and back.
// Unmarshal decodes into v, which must be a non-nil pointer.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// ByName resolves a codec from configuration. An empty name selects msgpack.
func ByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "msgpack":
		return Msgpack{}, nil
	case "cbor":
		return NewCBOR()
	case "json":
		return JSON{}, nil
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
}
