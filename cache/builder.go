package cache

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-sqlmap/codec"
	"github.com/goliatone/go-sqlmap/logging"
)

// Factory constructs a base cache for a namespace id.
type Factory func(id string) (Cache, error)

// Decorator wraps a cache with one additional behavior.
type Decorator func(delegate Cache) (Cache, error)

// BuilderConfig describes one namespace cache.
type BuilderConfig struct {
	// ID is the namespace, usually the statement namespace.
	ID string

	// Implementation builds the base store. Nil selects PerpetualCache.
	Implementation Factory

	// Decorators are applied in order around a default base store.
	// Empty selects LRU.
	Decorators []Decorator

	// Size, when set, is applied to the outermost declared decorator that
	// has a "size" property.
	Size *int

	// ClearInterval enables the Scheduled decorator when positive.
	ClearInterval time.Duration

	// ReadWrite enables the Serialized decorator so readers get copies.
	ReadWrite bool

	// Blocking enables the per-key Blocking decorator.
	Blocking bool

	// Properties are raw configuration values coerced to each layer's
	// declared property kinds.
	Properties map[string]string

	// Codec is used by the Serialized decorator. Nil selects msgpack.
	Codec codec.Codec

	Logger logging.Logger
}

// Validate checks whether the configuration values are valid.
func (c BuilderConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ID, validation.Required),
		validation.Field(&c.ClearInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.Size, validation.NilOrNotEmpty, validation.Min(1)),
	)
}

// BuildError reports a cache that could not be assembled. It is raised at
// configuration time, never while serving queries.
type BuildError struct {
	Cache    string
	Property string
	Err      error
}

func (e *BuildError) Error() string {
	if e.Property != "" {
		return fmt.Sprintf("cache %s: property %s: %v", e.Cache, e.Property, e.Err)
	}
	return fmt.Sprintf("cache %s: %v", e.Cache, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// Build assembles the namespace cache described by cfg.
//
// A default base store gets the declared decorators and then the standard
// ones: size, Scheduled, Serialized, Logging, Synchronized and Blocking. A
// custom store only gets Logging, since it is expected to bring its own
// eviction and concurrency.
func Build(cfg BuilderConfig) (Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &BuildError{Cache: cfg.ID, Err: err}
	}

	factory := cfg.Implementation
	if factory == nil {
		factory = PerpetualFactory
	}
	decorators := cfg.Decorators
	if len(decorators) == 0 {
		decorators = []Decorator{LRU}
	}

	base, err := factory(cfg.ID)
	if err != nil {
		return nil, &BuildError{Cache: cfg.ID, Err: err}
	}
	if base == nil {
		return nil, &BuildError{Cache: cfg.ID, Err: fmt.Errorf("%w: implementation returned nil", ErrInvalidFactory)}
	}
	if err := applyProperties(base, cfg.Properties); err != nil {
		return nil, err
	}

	if _, isDefault := base.(*PerpetualCache); !isDefault {
		if _, ok := base.(*LoggingCache); ok {
			return base, nil
		}
		return NewLoggingCache(base, cfg.Logger), nil
	}

	c := base
	for i, decorate := range decorators {
		if decorate == nil {
			return nil, &BuildError{Cache: cfg.ID, Err: fmt.Errorf("%w: decorator %d is nil", ErrInvalidFactory, i)}
		}
		next, err := decorate(c)
		if err != nil {
			return nil, &BuildError{Cache: cfg.ID, Err: err}
		}
		if next == nil {
			return nil, &BuildError{Cache: cfg.ID, Err: fmt.Errorf("%w: decorator %d returned nil", ErrInvalidFactory, i)}
		}
		c = next
		if err := applyProperties(c, cfg.Properties); err != nil {
			return nil, err
		}
	}
	return standardDecorators(c, cfg)
}

func standardDecorators(c Cache, cfg BuilderConfig) (Cache, error) {
	if cfg.Size != nil {
		if err := applyProperties(c, map[string]string{"size": strconv.Itoa(*cfg.Size)}); err != nil {
			return nil, err
		}
	}
	if cfg.ClearInterval > 0 {
		c = NewScheduledCache(c, cfg.ClearInterval)
		if err := applyProperties(c, cfg.Properties); err != nil {
			return nil, err
		}
	}
	if cfg.ReadWrite {
		c = NewSerializedCache(c, cfg.Codec)
	}
	c = NewLoggingCache(c, cfg.Logger)
	c = NewSynchronizedCache(c)
	if cfg.Blocking {
		c = NewBlockingCache(c)
		if err := applyProperties(c, cfg.Properties); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// DecoratorByName resolves an eviction decorator from configuration.
func DecoratorByName(name string) (Decorator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "lru":
		return LRU, nil
	case "fifo":
		return FIFO, nil
	default:
		return nil, fmt.Errorf("%w: unknown decorator %q", ErrInvalidFactory, name)
	}
}
