// Package versionpolicy holds the minimum-supported client version, fetched
// from a remote manifest and re-fetched on read once older than
// RefreshInterval. A fetch failure keeps
// the last known value rather than blocking or rejecting requests.
package versionpolicy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
)

// RefreshInterval is how stale the cached minimum may get before a read
// triggers a re-fetch.
const RefreshInterval = 5 * time.Minute

// Cache holds the current minimum-supported client version.
type Cache struct {
	manifestURL string
	httpClient  *http.Client

	mu        sync.Mutex
	minimum   string
	fetchedAt time.Time
}

func NewCache(manifestURL string) *Cache {
	return &Cache{
		manifestURL: manifestURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Minimum returns the current minimum version string, refreshing first if
// the cached value is older than RefreshInterval or hasn't been fetched
// yet. Returns "" when no manifest URL is configured or nothing has ever
// been fetched successfully — callers must treat that as "unknown" and
// fail open.
func (c *Cache) Minimum(ctx context.Context) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.manifestURL == "" {
		return ""
	}

	if time.Since(c.fetchedAt) < RefreshInterval && c.minimum != "" {
		return c.minimum
	}

	if min, err := c.fetch(ctx); err == nil {
		c.minimum = min
		c.fetchedAt = time.Now()
	}
	// On fetch failure, c.minimum (possibly still "") is kept as-is:
	// fail-open on refresh.

	return c.minimum
}

type manifest struct {
	Minimum string `json:"minimum"`
}

func (c *Cache) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.manifestURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("version manifest returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var m manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return "", err
	}

	return m.Minimum, nil
}

// Satisfies reports whether clientVersion meets minVersion, comparing only
// (major, minor, patch) and ignoring pre-release/build metadata. A parse
// failure on either side is reported via ok=false so the caller can fail
// open.
func Satisfies(clientVersion, minVersion string) (satisfies bool, ok bool) {
	client, err := semver.NewVersion(clientVersion)
	if err != nil {
		return false, false
	}

	min, err := semver.NewVersion(minVersion)
	if err != nil {
		return false, false
	}

	clientCore := semver.New(client.Major(), client.Minor(), client.Patch(), "", "")
	minCore := semver.New(min.Major(), min.Minor(), min.Patch(), "", "")

	return clientCore.Compare(minCore) >= 0, true
}
