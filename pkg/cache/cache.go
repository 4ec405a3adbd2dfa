// Package cache holds compiled validators keyed by the content of the schema
// they were compiled from.
package cache

import (
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/platinummonkey/jsonguard/pkg/jsonschema"
)

const (
	// DefaultMaxEntries bounds the number of cached validators
	DefaultMaxEntries = 1024
	// DefaultTTL expires validators that have not been re-added
	DefaultTTL = 30 * time.Minute
)

// Config holds cache configuration
type Config struct {
	MaxEntries int           // Max cached validators (default: 1024)
	TTL        time.Duration // Entry lifetime, 0 disables expiry
	// OnEvict is called after an entry leaves the cache by eviction or expiry
	OnEvict func(Key)
}

// DefaultConfig returns default cache configuration
func DefaultConfig() *Config {
	return &Config{
		MaxEntries: DefaultMaxEntries,
		TTL:        DefaultTTL,
	}
}

// Stats represents cache statistics
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64
	ItemCount int64
}

// ValidatorCache is an LRU of compiled validators with optional expiry. It is
// safe for concurrent use.
type ValidatorCache struct {
	cache *lru.LRU[Key, *jsonschema.Validator]

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	removing  atomic.Int32
}

// New creates a cache. A nil config selects the defaults.
func New(config *Config) *ValidatorCache {
	if config == nil {
		config = DefaultConfig()
	}
	size := config.MaxEntries
	if size <= 0 {
		size = DefaultMaxEntries
	}

	c := &ValidatorCache{}
	onEvict := config.OnEvict
	c.cache = lru.NewLRU[Key, *jsonschema.Validator](size, func(k Key, _ *jsonschema.Validator) {
		// Purge and Remove also fire the callback; only capacity and
		// expiry removals count as evictions.
		if c.removing.Load() > 0 {
			return
		}
		c.evictions.Add(1)
		if onEvict != nil {
			onEvict(k)
		}
	}, config.TTL)
	return c
}

// Get retrieves the validator compiled for key
func (c *ValidatorCache) Get(key Key) (*jsonschema.Validator, error) {
	if key == "" {
		return nil, ErrInvalidCacheKey
	}
	v, ok := c.cache.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, ErrCacheMiss
	}
	c.hits.Add(1)
	return v, nil
}

// Set stores a validator under key
func (c *ValidatorCache) Set(key Key, v *jsonschema.Validator) error {
	if key == "" {
		return ErrInvalidCacheKey
	}
	c.cache.Add(key, v)
	return nil
}

// Delete removes the validator stored under key
func (c *ValidatorCache) Delete(key Key) {
	c.removing.Add(1)
	defer c.removing.Add(-1)
	c.cache.Remove(key)
}

// Purge removes every entry
func (c *ValidatorCache) Purge() {
	c.removing.Add(1)
	defer c.removing.Add(-1)
	c.cache.Purge()
}

// Len returns the number of cached validators
func (c *ValidatorCache) Len() int {
	return c.cache.Len()
}

// Stats returns cache statistics
func (c *ValidatorCache) Stats() Stats {
	s := Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		ItemCount: int64(c.cache.Len()),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}
