package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws-samples/bedrock-chat-router/internal/apikeys"
	"github.com/aws-samples/bedrock-chat-router/internal/httperr"
	"github.com/aws-samples/bedrock-chat-router/internal/identity"
)

var authBypassPrefixes = []string{"/health/", "/v1/update/"}

// bearerOnlyPrefixes identifies paths that require a caller identity but
// only accept a bearer JWT: the Key-Lifecycle Endpoints manage a user's own
// API keys, so authenticating with one of those keys would be circular.
var bearerOnlyPrefixes = []string{"/v1/api-keys"}

func authBypass(path string) bool {
	if path == "/health" || path == "/ready" {
		return true
	}
	for _, p := range authBypassPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func bearerOnly(path string) bool {
	for _, p := range bearerOnlyPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Authenticate resolves the caller's identity from either a bearer JWT or
// an X-API-Key header and attaches it to the request context. Rejects with
// 401 per the credential-failure table in spec §4.1.
func Authenticate(store *apikeys.Store, cache *apikeys.Cache) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authBypass(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				token := strings.TrimPrefix(auth, "Bearer ")
				id, err := identity.Decode(token)
				if err != nil {
					unauthorized(w, "invalid bearer token", "missing_credentials")
					return
				}

				ctx := withAuth(r.Context(), AuthContext{UserSub: id.Sub, UserEmail: id.Email})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if bearerOnly(r.URL.Path) {
				unauthorized(w, "missing credentials: provide Authorization: Bearer", "missing_credentials")
				return
			}

			key := r.Header.Get("X-API-Key")
			if key == "" || !strings.HasPrefix(key, "oc_") {
				unauthorized(w, "missing credentials: provide Authorization: Bearer or X-API-Key", "missing_credentials")
				return
			}

			keyHash := hashAPIKey(key)

			userSub, userEmail, ok := cache.Lookup(keyHash)
			if !ok {
				record, err := store.Get(r.Context(), keyHash)
				if err != nil {
					if errors.Is(err, apikeys.ErrNotFound) {
						unauthorized(w, "invalid API key", "invalid_api_key")
						return
					}
					slog.Error("api key store lookup failed", "error", err)
					httperr.Write(w, http.StatusInternalServerError, "key store unavailable", "server_error", "store_unavailable", nil)
					return
				}

				if record.Status != apikeys.StatusActive {
					unauthorized(w, "API key has been revoked", "revoked_api_key")
					return
				}
				if time.Now().After(record.ExpiresAt.Time) {
					unauthorized(w, "API key has expired", "expired_api_key")
					return
				}

				userSub, userEmail = record.UserSub, record.UserEmail
				cache.Store(keyHash, userSub, userEmail)
			}

			ctx := withAuth(r.Context(), AuthContext{UserSub: userSub, UserEmail: userEmail, APIKeyPrefix: key[:min(len(key), 10)]})
			next.ServeHTTP(w, r.WithContext(ctx))

			go touchLastUsed(store, keyHash)
		})
	}
}

func touchLastUsed(store *apikeys.Store, keyHash string) {
	ctx := context.WithoutCancel(context.Background())
	if err := store.TouchLastUsed(ctx, keyHash, time.Now()); err != nil {
		slog.Warn("failed to update last_used_at", "error", err)
	}
}

func hashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func unauthorized(w http.ResponseWriter, message, code string) {
	httperr.Write(w, http.StatusUnauthorized, message, "auth_error", code, nil)
}
