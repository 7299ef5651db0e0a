package apikeys

import (
	"testing"
	"time"
)

func TestCache_StoreAndLookup(t *testing.T) {
	c := NewCache()
	c.Store("hash1", "user-1", "user1@example.com")

	sub, email, ok := c.Lookup("hash1")
	if !ok {
		t.Fatal("expected a cache hit right after Store")
	}
	if sub != "user-1" || email != "user1@example.com" {
		t.Errorf("got (%q, %q), want (user-1, user1@example.com)", sub, email)
	}
}

func TestCache_LookupMiss(t *testing.T) {
	c := NewCache()
	if _, _, ok := c.Lookup("missing"); ok {
		t.Error("expected a miss for a hash never stored")
	}
}

func TestCache_ExpiredEntryIsEvictedOnLookup(t *testing.T) {
	c := NewCache()
	c.entries.Store("hash-expired", cacheEntry{
		userSub:   "user-2",
		userEmail: "user2@example.com",
		expiresAt: time.Now().Add(-time.Minute),
	})

	if _, _, ok := c.Lookup("hash-expired"); ok {
		t.Fatal("expected an expired entry to be reported as a miss")
	}
	if _, found := c.entries.Load("hash-expired"); found {
		t.Error("expected Lookup to have deleted the expired entry")
	}
}

func TestCache_Evict(t *testing.T) {
	c := NewCache()
	c.Store("hash1", "user-1", "user1@example.com")
	c.Evict("hash1")

	if _, _, ok := c.Lookup("hash1"); ok {
		t.Error("expected entry to be gone after Evict")
	}
}

func TestCache_SweepRemovesOnlyExpiredEntries(t *testing.T) {
	c := NewCache()
	c.Store("fresh", "user-1", "user1@example.com")
	c.entries.Store("stale", cacheEntry{
		userSub:   "user-2",
		userEmail: "user2@example.com",
		expiresAt: time.Now().Add(-time.Minute),
	})

	c.Sweep()

	if _, found := c.entries.Load("stale"); found {
		t.Error("expected Sweep to remove the expired entry")
	}
	if _, found := c.entries.Load("fresh"); !found {
		t.Error("expected Sweep to leave the unexpired entry in place")
	}
}
