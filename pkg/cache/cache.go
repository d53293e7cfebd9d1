// Package cache provides a bounded, TTL-based cache for verified credential
// information, keyed by a one-way hash of the raw bearer credential.
//
// The cache is shared process-wide and protected by a single mutex. Entries
// are cheap and short-lived, so correctness is preferred over fine-grained
// locking. Cached values are sensitive; they are never logged.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"time"
)

type entry struct {
	value      any
	insertedAt time.Time
	expiresAt  time.Time
}

// TokenCache maps hashed bearer credentials to verified identity information.
type TokenCache struct {
	mu      sync.Mutex
	entries map[string]entry
	maxSize int
	now     func() time.Time
}

// New creates a TokenCache holding at most maxSize entries.
func New(maxSize int) *TokenCache {
	return &TokenCache{
		entries: make(map[string]entry),
		maxSize: maxSize,
		now:     time.Now,
	}
}

// NewWithClock creates a TokenCache with an injected clock for tests.
func NewWithClock(maxSize int, now func() time.Time) *TokenCache {
	c := New(maxSize)
	c.now = now
	return c
}

// hashKey derives the cache key from the raw credential so that raw secrets
// never appear as map keys in memory dumps or debug output.
func hashKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached value for the credential, if present and unexpired.
// An expired entry is removed and reported absent.
func (c *TokenCache) Get(token string) (any, bool) {
	key := hashKey(token)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Put caches the value for the credential with the given TTL. If the cache
// grows past its maximum size, the oldest half of the entries (by insertion
// time) is evicted to amortize eviction cost.
func (c *TokenCache) Put(token string, value any, ttl time.Duration) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[hashKey(token)] = entry{
		value:      value,
		insertedAt: now,
		expiresAt:  now.Add(ttl),
	}

	if len(c.entries) > c.maxSize {
		c.evictOldestHalf()
	}
}

// Len reports the number of entries currently held, including any that have
// expired but not yet been read.
func (c *TokenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictOldestHalf removes the oldest half of the entries by insertion time.
// Caller must hold the mutex.
func (c *TokenCache) evictOldestHalf() {
	type aged struct {
		key        string
		insertedAt time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for key, e := range c.entries {
		all = append(all, aged{key: key, insertedAt: e.insertedAt})
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].insertedAt.Before(all[j].insertedAt)
	})
	for _, a := range all[:len(all)/2] {
		delete(c.entries, a.key)
	}
}
