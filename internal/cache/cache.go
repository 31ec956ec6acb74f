// Package cache stores serialized recommendation results with a TTL.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache is a JSON value store. Get reports a miss as (false, nil).
// DeletePattern takes a glob such as "recommend:*".
type Cache interface {
	Get(ctx context.Context, key string, target interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) (int64, error)
	Close() error
}

// Options select and configure a backend
type Options struct {
	Type      string // "none", "bolt", "redis"
	Path      string
	RedisAddr string
	RedisPass string
	TTL       time.Duration
}

// Open returns the configured backend, or nil for "none"
func Open(ctx context.Context, opts Options) (Cache, error) {
	switch opts.Type {
	case "", "none":
		return nil, nil
	case "bolt":
		return NewBoltCache(opts.Path, opts.TTL)
	case "redis":
		return NewRedisCache(ctx, opts.RedisAddr, opts.RedisPass, opts.TTL)
	default:
		return nil, fmt.Errorf("unknown cache type %q", opts.Type)
	}
}

// Key joins a prefix and parts into a namespaced cache key
func Key(prefix string, parts ...string) string {
	key := prefix
	for _, p := range parts {
		key += ":" + p
	}
	return key
}
