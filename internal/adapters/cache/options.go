package cache

import (
	"time"

	"github.com/okian/arena/pkg/logger"
)

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets how long cached entrants live.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithPrefix namespaces every key written by the cache.
func WithPrefix(prefix string) Option {
	return func(c *Cache) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithLogger sets the logger used for cache failures.
func WithLogger(l logger.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}
