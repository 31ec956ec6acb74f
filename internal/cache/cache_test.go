package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedResult struct {
	Login string  `json:"login"`
	Score float64 `json:"score"`
}

func TestBoltCache_RoundTripAndExpiry(t *testing.T) {
	c, err := NewBoltCache(filepath.Join(t.TempDir(), "nested", "cache.db"), time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	ctx := context.Background()

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	var got cachedResult
	hit, err := c.Get(ctx, "recommend:abc", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, "recommend:abc", cachedResult{Login: "raj", Score: 0.5}))

	hit, err = c.Get(ctx, "recommend:abc", &got)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "raj", got.Login)

	now = now.Add(2 * time.Minute)
	hit, err = c.Get(ctx, "recommend:abc", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestBoltCache_Delete(t *testing.T) {
	c, err := NewBoltCache(filepath.Join(t.TempDir(), "cache.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	ctx := context.Background()

	require.NoError(t, c.SetWithTTL(ctx, "k", cachedResult{Login: "sue"}, time.Hour))
	require.NoError(t, c.Delete(ctx, "k"))

	var got cachedResult
	hit, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestBoltCache_DeletePattern(t *testing.T) {
	c, err := NewBoltCache(filepath.Join(t.TempDir(), "cache.db"), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	ctx := context.Background()

	for _, key := range []string{"recommend:chrev:a1", "recommend:turnover:b2", "workload:q3"} {
		require.NoError(t, c.Set(ctx, key, cachedResult{Login: "raj"}))
	}

	n, err := c.DeletePattern(ctx, "recommend:*")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var got cachedResult
	hit, err := c.Get(ctx, "recommend:chrev:a1", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	hit, err = c.Get(ctx, "workload:q3", &got)
	require.NoError(t, err)
	assert.True(t, hit)

	n, err = c.DeletePattern(ctx, "recommend:*")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = c.DeletePattern(ctx, "recommend:[")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	c, err := Open(ctx, Options{Type: "none"})
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = Open(ctx, Options{Type: "memcached"})
	assert.Error(t, err)

	c, err = Open(ctx, Options{Type: "bolt", Path: filepath.Join(t.TempDir(), "c.db")})
	require.NoError(t, err)
	assert.NoError(t, c.Close())

	assert.Equal(t, "recommend:chrev:abc", Key("recommend", "chrev", "abc"))
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping redis integration test")
	}
	ctx := context.Background()

	c, err := NewRedisCache(ctx, addr, os.Getenv("REDIS_PASSWORD"), time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	key := Key("rscout-test", time.Now().Format(time.RFC3339Nano))
	require.NoError(t, c.Set(ctx, key, cachedResult{Login: "raj", Score: 1}))

	var got cachedResult
	hit, err := c.Get(ctx, key, &got)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, 1.0, got.Score)

	n, err := c.DeletePattern(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
