package apikeys

import (
	"sync"
	"time"
)

// ValidationTTL is how long a successfully validated key stays cached
// in-process. Revocation invalidates the entry immediately within the
// revoking process; other processes converge within this bound.
const ValidationTTL = 5 * time.Minute

// cacheEntry is a resolved identity for a given key hash, cached to avoid a
// store round trip on every request.
type cacheEntry struct {
	userSub    string
	userEmail  string
	expiresAt  time.Time
}

// Cache is an in-process key_hash -> identity table: a sync.Map of entries
// with a per-entry expiry, dropped on Lookup once expired and by Sweep.
type Cache struct {
	entries sync.Map // map[string]cacheEntry
}

func NewCache() *Cache {
	return &Cache{}
}

// Lookup returns the cached identity for keyHash if present and unexpired.
func (c *Cache) Lookup(keyHash string) (userSub, userEmail string, ok bool) {
	v, found := c.entries.Load(keyHash)
	if !found {
		return "", "", false
	}

	entry := v.(cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.entries.Delete(keyHash)
		return "", "", false
	}

	return entry.userSub, entry.userEmail, true
}

// Store caches a resolved identity for ValidationTTL.
func (c *Cache) Store(keyHash, userSub, userEmail string) {
	c.entries.Store(keyHash, cacheEntry{
		userSub:   userSub,
		userEmail: userEmail,
		expiresAt: time.Now().Add(ValidationTTL),
	})
}

// Evict removes a cached entry immediately, used by the revoke endpoint so
// that within the revoking process the revocation is visible right away.
func (c *Cache) Evict(keyHash string) {
	c.entries.Delete(keyHash)
}

// Sweep removes expired entries. Intended to be called periodically from a
// background goroutine.
func (c *Cache) Sweep() {
	now := time.Now()
	c.entries.Range(func(key, value any) bool {
		if entry := value.(cacheEntry); now.After(entry.expiresAt) {
			c.entries.Delete(key)
		}
		return true
	})
}
