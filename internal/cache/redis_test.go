// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisCache(client, "test:", zerolog.Nop())
}

func TestRedisCache_SetGet(t *testing.T) {
	mr, c := setupMiniRedis(t)

	c.Set("movie-1", []byte(`{"id":"movie-1"}`), 5*time.Minute)

	val, ok := c.Get("movie-1")
	require.True(t, ok)
	assert.JSONEq(t, `{"id":"movie-1"}`, string(val))
	assert.True(t, mr.Exists("test:movie-1"))

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Sets)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, 1, stats.CurrentSize)
}

func TestRedisCache_GetMissing(t *testing.T) {
	_, c := setupMiniRedis(t)

	val, ok := c.Get("nonexistent")
	assert.False(t, ok)
	assert.Nil(t, val)
	assert.Equal(t, int64(1), c.Stats().Misses)
}

func TestRedisCache_TTL(t *testing.T) {
	mr, c := setupMiniRedis(t)

	c.Set("k", []byte("v"), time.Second)
	mr.FastForward(2 * time.Second)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestRedisCache_ClearKeepsForeignKeys(t *testing.T) {
	mr, c := setupMiniRedis(t)
	require.NoError(t, mr.Set("other:key", "keep"))

	c.Set("a", []byte("1"), time.Minute)
	c.Set("b", []byte("2"), time.Minute)
	c.Delete("a")
	assert.False(t, mr.Exists("test:a"))

	c.Clear()
	assert.False(t, mr.Exists("test:b"))
	assert.True(t, mr.Exists("other:key"))
}

func TestRedisCache_GetFailsClosed(t *testing.T) {
	mr, c := setupMiniRedis(t)
	mr.Close()

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Error(t, c.HealthCheck(context.Background()))
}
