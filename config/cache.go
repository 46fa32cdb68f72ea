package config

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-sqlmap/cache"
	"github.com/goliatone/go-sqlmap/codec"
	"github.com/goliatone/go-sqlmap/internal/cacheinfra"
)

// ProviderDefault selects the in-process store with the full decorator
// pipeline. Any other provider is a custom store.
const ProviderDefault = "perpetual"

// Cache declares one namespace cache.
type Cache struct {
	ID string `yaml:"id"`
	// Provider names the backing store: perpetual (default), sturdyc,
	// ristretto, bigcache, badger or redis.
	Provider      string            `yaml:"provider"`
	Decorators    []string          `yaml:"decorators"`
	Size          *int              `yaml:"size"`
	ClearInterval time.Duration     `yaml:"clear_interval"`
	ReadWrite     bool              `yaml:"read_write"`
	Blocking      bool              `yaml:"blocking"`
	Codec         string            `yaml:"codec"`
	Dir           string            `yaml:"dir"`
	Properties    map[string]string `yaml:"properties"`
}

// IsDefault reports whether the cache uses the built-in store.
func (c Cache) IsDefault() bool {
	p := strings.ToLower(strings.TrimSpace(c.Provider))
	return p == "" || p == ProviderDefault
}

func (c Cache) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ID, validation.Required),
		validation.Field(&c.Provider, validation.By(func(any) error {
			if c.IsDefault() {
				return nil
			}
			_, err := cacheinfra.Provider(c.Provider, cacheinfra.Options{})
			return err
		})),
		validation.Field(&c.Decorators, validation.Each(validation.By(func(v any) error {
			_, err := cache.DecoratorByName(v.(string))
			return err
		}))),
		validation.Field(&c.Size, validation.NilOrNotEmpty, validation.Min(1)),
		validation.Field(&c.ClearInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.Codec, validation.By(func(any) error {
			_, err := codec.ByName(c.Codec)
			return err
		})),
	)
}
