// Package upstreamtoken caches the short-lived credential used to call the
// managed LLM platform, refreshing it on expiry under a single mutex so
// concurrent requests never trigger redundant refreshes.
package upstreamtoken

import (
	"context"
	"sync"
	"time"
)

// refreshSafetyMargin is subtracted from the token's reported expiry so a
// refresh happens slightly ahead of the deadline rather than racing it.
const refreshSafetyMargin = 60 * time.Second

// Provider mints a fresh upstream credential. Implementations may block on
// network I/O.
type Provider interface {
	Token(ctx context.Context) (token string, expiresAt time.Time, err error)
}

// Cache holds the current token and serializes refreshes.
type Cache struct {
	provider Provider

	mu           sync.Mutex
	cachedToken  string
	tokenExpires time.Time
}

func NewCache(provider Provider) *Cache {
	return &Cache{provider: provider}
}

// Get returns a valid token, refreshing it first if the cached one is
// absent or past its safety margin. Failure of the provider call
// propagates to the caller unchanged.
func (c *Cache) Get(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cachedToken != "" && time.Now().Before(c.tokenExpires.Add(-refreshSafetyMargin)) {
		return c.cachedToken, nil
	}

	return c.refreshLocked(ctx)
}

func (c *Cache) refreshLocked(ctx context.Context) (string, error) {
	token, expiresAt, err := c.provider.Token(ctx)
	if err != nil {
		return "", err
	}

	c.cachedToken = token
	c.tokenExpires = expiresAt

	return token, nil
}
