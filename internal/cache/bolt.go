package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const resultsBucket = "results"

// envelope carries the expiry next to the cached payload
type envelope struct {
	ExpiresAt time.Time       `json:"expires_at"`
	Value     json.RawMessage `json:"value"`
}

// BoltCache is a single-file local cache
type BoltCache struct {
	db     *bolt.DB
	logger *slog.Logger
	ttl    time.Duration
	now    func() time.Time
}

// NewBoltCache opens (or creates) the cache file at path
func NewBoltCache(path string, ttl time.Duration) (*BoltCache, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt cache path missing")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt cache at %s: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(resultsBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &BoltCache{
		db:     db,
		logger: slog.Default().With("component", "bolt_cache"),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Get unmarshals a live entry into target; expired entries are misses
func (c *BoltCache) Get(ctx context.Context, key string, target interface{}) (bool, error) {
	var env envelope
	found := false

	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(resultsBucket)).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &env)
	})
	if err != nil {
		return false, fmt.Errorf("bolt get failed for key %s: %w", key, err)
	}
	if !found {
		c.logger.Debug("cache miss", "key", key)
		return false, nil
	}
	if c.now().After(env.ExpiresAt) {
		c.logger.Debug("cache entry expired", "key", key)
		return false, c.Delete(ctx, key)
	}

	if err := json.Unmarshal(env.Value, target); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value for key %s: %w", key, err)
	}

	c.logger.Debug("cache hit", "key", key)
	return true, nil
}

// Set stores value with the default TTL
func (c *BoltCache) Set(ctx context.Context, key string, value interface{}) error {
	return c.SetWithTTL(ctx, key, value, c.ttl)
}

// SetWithTTL stores value, expiring after ttl
func (c *BoltCache) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value for key %s: %w", key, err)
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	data, err := json.Marshal(envelope{ExpiresAt: c.now().Add(ttl), Value: raw})
	if err != nil {
		return err
	}

	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(resultsBucket)).Put([]byte(key), data)
	})
}

// Delete removes a key
func (c *BoltCache) Delete(ctx context.Context, key string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(resultsBucket)).Delete([]byte(key))
	})
}

// DeletePattern removes every key matching the glob pattern
func (c *BoltCache) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return 0, fmt.Errorf("invalid cache pattern %s: %w", pattern, err)
	}

	var deleted int64
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(resultsBucket))

		var keys [][]byte
		err := b.ForEach(func(k, _ []byte) error {
			if ok, _ := path.Match(pattern, string(k)); ok {
				keys = append(keys, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		deleted = int64(len(keys))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("bolt delete failed for pattern %s: %w", pattern, err)
	}

	c.logger.Debug("cache entries purged", "pattern", pattern, "count", deleted)
	return deleted, nil
}

// Close closes the database file
func (c *BoltCache) Close() error {
	return c.db.Close()
}
