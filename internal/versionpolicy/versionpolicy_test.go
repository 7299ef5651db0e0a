package versionpolicy

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSatisfies_IgnoresPrereleaseAndBuildMetadata(t *testing.T) {
	cases := []struct {
		client, min string
		want        bool
	}{
		{"1.2.3", "1.2.0", true},
		{"1.1.9", "1.2.0", false},
		{"1.2.0-beta.1", "1.2.0", true},
		{"1.2.0+build5", "1.2.0", true},
	}

	for _, c := range cases {
		got, ok := Satisfies(c.client, c.min)
		if !ok {
			t.Fatalf("Satisfies(%q, %q) ok=false, want valid parse", c.client, c.min)
		}
		if got != c.want {
			t.Errorf("Satisfies(%q, %q) = %v, want %v", c.client, c.min, got, c.want)
		}
	}
}

func TestSatisfies_UnparsableVersionFailsOpen(t *testing.T) {
	if _, ok := Satisfies("not-a-version", "1.0.0"); ok {
		t.Error("expected ok=false for an unparsable client version")
	}
}

func TestCache_Minimum_NoManifestURLReturnsEmpty(t *testing.T) {
	c := NewCache("")
	if got := c.Minimum(context.TODO()); got != "" {
		t.Errorf("Minimum() = %q, want empty when no manifest URL is configured", got)
	}
}

func TestCache_Minimum_FetchesAndCaches(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, `{"minimum":"2.1.0"}`)
	}))
	defer srv.Close()

	c := NewCache(srv.URL)

	first := c.Minimum(context.TODO())
	second := c.Minimum(context.TODO())

	if first != "2.1.0" || second != "2.1.0" {
		t.Errorf("Minimum() = %q, %q, want 2.1.0 both times", first, second)
	}
	if hits != 1 {
		t.Errorf("manifest fetched %d times, want 1 (second call should use the cached value)", hits)
	}
}

func TestCache_Minimum_FetchFailureKeepsLastKnownValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewCache(srv.URL)
	c.minimum = "1.0.0"
	c.fetchedAt = c.fetchedAt.Add(-2 * RefreshInterval)

	if got := c.Minimum(context.TODO()); got != "1.0.0" {
		t.Errorf("Minimum() = %q, want the stale-but-last-known value 1.0.0 on fetch failure", got)
	}
}
