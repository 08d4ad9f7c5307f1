package tools

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKeyDeterministic(t *testing.T) {
	k1, err := cacheKey("add", map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	k2, err := cacheKey("add", map[string]any{"b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, k1, k2, "key order must not affect the cache key")

	k3, err := cacheKey("add", map[string]any{"a": 1, "b": 3})
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)

	k4, err := cacheKey("subtract", map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.NotEqual(t, k1, k4, "tool name is part of the key")
}

func TestCacheKeyUnserializable(t *testing.T) {
	_, err := cacheKey("x", map[string]any{"f": func() {}})
	assert.Error(t, err)
}

func TestResultCacheGetSet(t *testing.T) {
	c := newResultCache(time.Minute)

	_, ok := c.get("k")
	assert.False(t, ok)

	c.set("k", 42)
	got, ok := c.get("k")
	require.True(t, ok)
	assert.Equal(t, 42, got)

	stats := c.stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Stores)
	assert.Equal(t, 1, stats.Entries)
}

func TestResultCacheExpiry(t *testing.T) {
	c := newResultCache(20 * time.Millisecond)

	c.set("k", "v")
	_, ok := c.get("k")
	require.True(t, ok)

	time.Sleep(40 * time.Millisecond)
	_, ok = c.get("k")
	assert.False(t, ok, "entry must expire after the TTL")
	assert.Equal(t, int64(1), c.stats().Evicted)
}

func TestResultCacheRefreshReplaces(t *testing.T) {
	c := newResultCache(time.Minute)

	c.set("k", "old")
	c.set("k", "new")

	got, ok := c.get("k")
	require.True(t, ok)
	assert.Equal(t, "new", got)
	assert.Equal(t, 1, c.stats().Entries)
}

func TestResultCacheInvalidateAndClear(t *testing.T) {
	c := newResultCache(time.Minute)

	c.set("a", 1)
	c.set("b", 2)

	c.invalidate("a")
	_, ok := c.get("a")
	assert.False(t, ok)
	_, ok = c.get("b")
	assert.True(t, ok)

	c.clear()
	assert.Equal(t, 0, c.stats().Entries)
}

func TestResultCacheConcurrentAccess(t *testing.T) {
	c := newResultCache(time.Minute)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 200; j++ {
				key, _ := cacheKey("t", map[string]any{"i": i, "j": j % 10})
				c.set(key, j)
				c.get(key)
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
