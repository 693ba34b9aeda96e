package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupCacheLookup(t *testing.T) {
	c := newDedupCache(0, 0)
	assert.Equal(t, DefaultCacheTTL, c.ttl)
	assert.Equal(t, DefaultCacheCapacity, c.capacity)

	c.Store("gdocs://ABC", "hash1", "doc-1")
	hash, docID, ok := c.Lookup("gdocs://ABC")
	require.True(t, ok)
	assert.Equal(t, "hash1", hash)
	assert.Equal(t, "doc-1", docID)

	_, _, ok = c.Lookup("gdocs://missing")
	assert.False(t, ok)
}

func TestDedupCacheExpiry(t *testing.T) {
	clock := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c := newDedupCache(time.Hour, 10)
	c.now = func() time.Time { return clock }

	c.Store("a", "h", "d")
	clock = clock.Add(2 * time.Hour)

	_, _, ok := c.Lookup("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestDedupCacheOverflowEvictsExpiredFirst(t *testing.T) {
	clock := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c := newDedupCache(time.Hour, 3)
	c.now = func() time.Time { return clock }

	c.Store("old1", "h", "d")
	c.Store("old2", "h", "d")
	clock = clock.Add(90 * time.Minute)
	c.Store("fresh", "h", "d")

	c.Store("overflow", "h", "d")

	_, _, ok := c.Lookup("fresh")
	assert.True(t, ok)
	_, _, ok = c.Lookup("overflow")
	assert.True(t, ok)
	_, _, ok = c.Lookup("old1")
	assert.False(t, ok)
	_, _, ok = c.Lookup("old2")
	assert.False(t, ok)
}

func TestDedupCacheOverflowWithoutExpiredDropsOldest(t *testing.T) {
	clock := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c := newDedupCache(24*time.Hour, 2)
	c.now = func() time.Time { return clock }

	c.Store("first", "h", "d")
	clock = clock.Add(time.Minute)
	c.Store("second", "h", "d")
	clock = clock.Add(time.Minute)
	c.Store("third", "h", "d")

	assert.Equal(t, 2, c.Len())
	_, _, ok := c.Lookup("first")
	assert.False(t, ok)
	_, _, ok = c.Lookup("third")
	assert.True(t, ok)
}

func TestDedupCacheUpdateDoesNotEvict(t *testing.T) {
	c := newDedupCache(24*time.Hour, 2)
	c.Store("a", "h1", "d")
	c.Store("b", "h1", "d")
	c.Store("a", "h2", "d")

	assert.Equal(t, 2, c.Len())
	hash, _, ok := c.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "h2", hash)
}

func TestDedupCacheCapacityBound(t *testing.T) {
	c := newDedupCache(24*time.Hour, 100)
	for i := 0; i < 500; i++ {
		c.Store(fmt.Sprintf("path-%d", i), "h", "d")
	}
	assert.LessOrEqual(t, c.Len(), 100)
}

func TestDedupCacheStats(t *testing.T) {
	c := newDedupCache(24*time.Hour, 2)

	c.Lookup("absent")
	c.Store("a", "h", "d")
	c.Lookup("a")
	c.Store("b", "h", "d")
	c.Store("c", "h", "d")

	hits, misses, evictions := c.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
	assert.Equal(t, 1, evictions)
}
