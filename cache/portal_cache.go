package cache

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DefaultPortalCacheCapacity bounds the portal cache when no capacity is given.
const DefaultPortalCacheCapacity = 1000

// PortalEntry is a previous successful resolution of a portal token.
type PortalEntry struct {
	SubjectID string
	ExpiresAt time.Time
}

// PortalCache memoizes portal token resolutions, keyed by token hash.
//
// Expiry is decided against the caller's now, not the wall clock. The
// ttlcache TTL and capacity only bound memory. No cleanup goroutine is
// started; expired entries are dropped when they are looked up.
type PortalCache struct {
	items *ttlcache.Cache[string, PortalEntry]
}

// NewPortalCache creates a cache holding at most capacity entries.
func NewPortalCache(capacity uint64) *PortalCache {
	if capacity == 0 {
		capacity = DefaultPortalCacheCapacity
	}
	return &PortalCache{
		items: ttlcache.New(
			ttlcache.WithCapacity[string, PortalEntry](capacity),
			ttlcache.WithDisableTouchOnHit[string, PortalEntry](),
		),
	}
}

// Remember stores entry for token. An entry already expired at now is
// not stored, and any previous entry for token is dropped.
func (c *PortalCache) Remember(token string, entry PortalEntry, now time.Time) {
	key := HashToken(token)
	ttl := entry.ExpiresAt.Sub(now)
	if ttl <= 0 {
		c.items.Delete(key)
		return
	}
	c.items.Set(key, entry, ttl)
}

// Lookup returns the cached entry for token when it is still valid at now.
// A stale entry is removed.
func (c *PortalCache) Lookup(token string, now time.Time) (PortalEntry, bool) {
	key := HashToken(token)
	item := c.items.Get(key)
	if item == nil {
		return PortalEntry{}, false
	}

	entry := item.Value()
	if !entry.ExpiresAt.After(now) {
		c.items.Delete(key)
		return PortalEntry{}, false
	}
	return entry, true
}

// Forget drops the entry for token.
func (c *PortalCache) Forget(token string) {
	c.items.Delete(HashToken(token))
}

// ForgetSubject drops every entry resolved to subjectID and returns how
// many were dropped.
func (c *PortalCache) ForgetSubject(subjectID string) int {
	var keys []string
	for key, item := range c.items.Items() {
		if item.Value().SubjectID == subjectID {
			keys = append(keys, key)
		}
	}

	for _, key := range keys {
		c.items.Delete(key)
	}
	return len(keys)
}

// Len returns the number of stored entries.
func (c *PortalCache) Len() int {
	return c.items.Len()
}
