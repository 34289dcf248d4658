package cache

import (
	"fmt"
	"time"
)

// Config selects and configures a cache backend.
type Config struct {
	// Type is the backend type: "memory" or "redis".
	Type string

	// RedisURL is the Redis connection URL (redis type only).
	RedisURL string

	// Prefix is the key prefix (redis type only).
	Prefix string

	// DefaultTTL is the default TTL for cache entries.
	DefaultTTL time.Duration

	// MaxSize is the maximum number of entries for the memory backend
	// (0 = unlimited).
	MaxSize int

	// CleanupInterval is the expired-entry cleanup interval for the
	// memory backend.
	CleanupInterval time.Duration
}

// DefaultConfig returns the default memory-backend configuration.
func DefaultConfig() Config {
	return Config{
		Type:            "memory",
		DefaultTTL:      time.Hour,
		MaxSize:         10000,
		CleanupInterval: time.Minute,
	}
}

// New creates a cache backend from the configuration. An empty or "memory"
// type yields the in-memory backend; "redis" requires RedisURL.
func New(cfg Config) (Cacher, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryCache(MemoryCacheOptions{
			DefaultTTL:      cfg.DefaultTTL,
			MaxSize:         cfg.MaxSize,
			CleanupInterval: cfg.CleanupInterval,
		}), nil
	case "redis":
		opts := DefaultRedisCacheOptions()
		opts.URL = cfg.RedisURL
		if cfg.Prefix != "" {
			opts.Prefix = cfg.Prefix
		}
		if cfg.DefaultTTL > 0 {
			opts.DefaultTTL = cfg.DefaultTTL
		}
		return NewRedisCache(opts)
	default:
		return nil, fmt.Errorf("unknown cache type %q", cfg.Type)
	}
}
