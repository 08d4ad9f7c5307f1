package tools

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const cacheShards = 16

// cacheEntry is immutable once stored; a refresh replaces the whole entry.
type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// resultCache is a sharded TTL cache so unrelated keys never contend on
// one lock.
type resultCache struct {
	shards [cacheShards]cacheShard
	ttl    time.Duration

	hits    atomic.Int64
	misses  atomic.Int64
	stores  atomic.Int64
	evicted atomic.Int64
}

type cacheShard struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// CacheStats is a point-in-time snapshot of cache activity.
type CacheStats struct {
	Hits    int64
	Misses  int64
	Stores  int64
	Evicted int64
	Entries int
}

func newResultCache(ttl time.Duration) *resultCache {
	c := &resultCache{ttl: ttl}
	for i := range c.shards {
		c.shards[i].entries = make(map[string]cacheEntry)
	}
	return c
}

// cacheKey canonicalizes (name, args) into a stable hash. Map keys are
// sorted by the JSON encoder, so equal argument sets always produce the
// same key.
func cacheKey(name string, args map[string]any) (string, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("canonicalize args: %w", err)
	}
	sum := md5.Sum([]byte(name + ":" + string(payload)))
	return hex.EncodeToString(sum[:]), nil
}

func (c *resultCache) shard(key string) *cacheShard {
	if key == "" {
		return &c.shards[0]
	}
	return &c.shards[key[0]%cacheShards]
}

// get returns a live entry's value.
func (c *resultCache) get(key string) (any, bool) {
	s := c.shard(key)
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		// Recheck under the write lock; a concurrent set may have
		// refreshed the entry.
		if cur, still := s.entries[key]; still && time.Now().After(cur.expiresAt) {
			delete(s.entries, key)
			c.evicted.Add(1)
		}
		s.mu.Unlock()
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return entry.value, true
}

// set stores value under key for the cache TTL.
func (c *resultCache) set(key string, value any) {
	s := c.shard(key)
	s.mu.Lock()
	s.entries[key] = cacheEntry{value: value, expiresAt: time.Now().Add(c.ttl)}
	s.mu.Unlock()
	c.stores.Add(1)
}

// invalidate drops one key.
func (c *resultCache) invalidate(key string) {
	s := c.shard(key)
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// clear drops every entry.
func (c *resultCache) clear() {
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		s.entries = make(map[string]cacheEntry)
		s.mu.Unlock()
	}
}

// stats snapshots the counters.
func (c *resultCache) stats() CacheStats {
	entries := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.RLock()
		entries += len(s.entries)
		s.mu.RUnlock()
	}
	return CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Stores:  c.stores.Load(),
		Evicted: c.evicted.Load(),
		Entries: entries,
	}
}
