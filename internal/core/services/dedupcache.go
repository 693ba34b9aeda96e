package services

import (
	"time"
)

// Dedup cache defaults.
const (
	DefaultCacheTTL      = 24 * time.Hour
	DefaultCacheCapacity = 10000
)

type cacheEntry struct {
	contentHash string
	docID       string
	lastSeen    time.Time
}

// dedupCache short-circuits the common duplicate payload without
// touching storage. It is not authoritative: a miss still consults the
// store before the payload is treated as new.
type dedupCache struct {
	ttl      time.Duration
	capacity int
	entries  map[string]cacheEntry

	hits      int
	misses    int
	evictions int

	// now is overridable in tests.
	now func() time.Time
}

func newDedupCache(ttl time.Duration, capacity int) *dedupCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &dedupCache{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[string]cacheEntry),
		now:      time.Now,
	}
}

// Lookup returns the cached fingerprint and doc id for a source path.
// Expired entries read as absent.
func (c *dedupCache) Lookup(sourcePath string) (contentHash, docID string, ok bool) {
	e, found := c.entries[sourcePath]
	if !found {
		c.misses++
		return "", "", false
	}
	if c.now().Sub(e.lastSeen) > c.ttl {
		delete(c.entries, sourcePath)
		c.misses++
		return "", "", false
	}
	c.hits++
	return e.contentHash, e.docID, true
}

// Store records a source path's current fingerprint. On overflow,
// expired entries are evicted first; if none have expired, the oldest
// entry goes.
func (c *dedupCache) Store(sourcePath, contentHash, docID string) {
	now := c.now()

	if _, exists := c.entries[sourcePath]; !exists && len(c.entries) >= c.capacity {
		c.evict(now)
	}
	c.entries[sourcePath] = cacheEntry{
		contentHash: contentHash,
		docID:       docID,
		lastSeen:    now,
	}
}

func (c *dedupCache) evict(now time.Time) {
	var (
		oldestKey  string
		oldestSeen time.Time
		dropped    bool
	)
	for key, e := range c.entries {
		if now.Sub(e.lastSeen) > c.ttl {
			delete(c.entries, key)
			c.evictions++
			dropped = true
			continue
		}
		if oldestKey == "" || e.lastSeen.Before(oldestSeen) {
			oldestKey = key
			oldestSeen = e.lastSeen
		}
	}
	if !dropped && oldestKey != "" {
		delete(c.entries, oldestKey)
		c.evictions++
	}
}

// Len reports the live entry count, for periodic stats logging.
func (c *dedupCache) Len() int {
	return len(c.entries)
}

// Stats reports cumulative hit, miss, and eviction counts.
func (c *dedupCache) Stats() (hits, misses, evictions int) {
	return c.hits, c.misses, c.evictions
}
