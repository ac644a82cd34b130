package cache

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/gob"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config configures a Cache.
type Config struct {
	Provider Provider
	// DBs are the databases available to sql dependencies.
	DBs    map[string]*sql.DB
	Logger *zerolog.Logger
}

// Cache stores values in a provider together with the dependency they were
// created under. Failures of the provider never reach the caller: reads fail
// as misses and writes report false.
type Cache struct {
	provider Provider
	resolver *Resolver
	logger   *zerolog.Logger
	now      func() time.Time
}

// envelope is the stored form of a value.
type envelope struct {
	Value       []byte
	Dependency  *DependencySpec
	Fingerprint string
}

func New(config Config) (*Cache, error) {
	if config.Provider == nil {
		return nil, errors.New("cache provider is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = &log.Logger
	}
	return &Cache{
		provider: config.Provider,
		resolver: NewResolver(config.Provider, config.DBs),
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Resolver returns the resolver used to rebuild recorded dependencies.
func (c *Cache) Resolver() *Resolver {
	return c.resolver
}

// Provider returns the underlying provider.
func (c *Cache) Provider() Provider {
	return c.provider
}

// Get returns the value stored under key. A value whose recorded dependency
// has changed, or that cannot be read, is a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	b, ok, err := c.provider.Get(ctx, key)
	if err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("Could not read from cache")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&env); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Could not decode cache entry")
		return nil, false
	}
	if env.Dependency != nil {
		dep, err := c.resolver.Resolve(*env.Dependency)
		if err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("Could not rebuild dependency")
			return nil, false
		}
		if IsChanged(ctx, dep, env.Fingerprint) {
			c.logger.Debug().Str("key", key).Str("kind", env.Dependency.Kind).Msg("Dependency changed")
			return nil, false
		}
	}
	return env.Value, true
}

// Set stores value under key for ttl (0 means no expiry), recording the
// fingerprint of dep if not nil. It returns whether the value was stored.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration, dep Dependency) bool {
	env := envelope{Value: value}
	if dep != nil {
		fingerprint, err := dep.Evaluate(ctx)
		if err != nil {
			c.logger.Error().Err(err).Str("key", key).Msg("Could not evaluate dependency")
			return false
		}
		spec := dep.Spec()
		env.Dependency = &spec
		env.Fingerprint = fingerprint
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(env); err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("Could not encode cache entry")
		return false
	}
	var expires time.Time
	if ttl > 0 {
		expires = c.now().Add(ttl)
	}
	if err := c.provider.Put(ctx, key, expires, buf.Bytes()); err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("Could not write to cache")
		return false
	}
	c.logger.Trace().Str("key", key).Time("expires", expires).Msg("Stored in cache")
	return true
}

// Delete removes the value stored under key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.provider.Purge(ctx, key)
}

// InvalidateTags marks every value stored under a tag dependency on one of
// the tags as changed.
func (c *Cache) InvalidateTags(ctx context.Context, tags ...string) error {
	for _, tag := range tags {
		if _, err := touchTag(ctx, c.provider, tag); err != nil {
			return err
		}
		c.logger.Debug().Str("tag", tag).Msg("Invalidated tag")
	}
	return nil
}
