package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aws-samples/bedrock-chat-router/internal/apikeys"
)

func signedTestToken(t *testing.T, sub, email string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub, "email": email})
	signed, err := token.SignedString([]byte("unused-since-signature-is-not-verified"))
	if err != nil {
		t.Fatalf("sign test token: %v", err)
	}
	return signed
}

func authCapturingHandler(got *AuthContext) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth, ok := Auth(r.Context()); ok {
			*got = auth
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate_BearerTokenSetsIdentity(t *testing.T) {
	var captured AuthContext
	mw := Authenticate(nil, apikeys.NewCache())(authCapturingHandler(&captured))

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	req.Header.Set("Authorization", "Bearer "+signedTestToken(t, "user-1", "user1@example.com"))
	rec := httptest.NewRecorder()

	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if captured.UserSub != "user-1" || captured.UserEmail != "user1@example.com" {
		t.Errorf("captured auth = %#v", captured)
	}
}

func TestAuthenticate_MalformedBearerTokenRejected(t *testing.T) {
	mw := Authenticate(nil, apikeys.NewCache())(passThroughHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()

	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthenticate_MalformedAPIKeyPrefixRejected(t *testing.T) {
	mw := Authenticate(nil, apikeys.NewCache())(passThroughHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	req.Header.Set("X-API-Key", "not-prefixed-correctly")
	rec := httptest.NewRecorder()

	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthenticate_MissingCredentialsRejected(t *testing.T) {
	mw := Authenticate(nil, apikeys.NewCache())(passThroughHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	rec := httptest.NewRecorder()

	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthenticate_BypassesHealthPaths(t *testing.T) {
	mw := Authenticate(nil, apikeys.NewCache())(passThroughHandler())

	for _, path := range []string{"/health", "/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()

		mw.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("path %q: status = %d, want 200 (bypass, no credentials)", path, rec.Code)
		}
	}
}

func TestAuthenticate_KeyManagementPathsRequireBearerToken(t *testing.T) {
	mw := Authenticate(nil, apikeys.NewCache())(passThroughHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/api-keys", nil)
	rec := httptest.NewRecorder()

	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for /v1/api-keys with no credentials", rec.Code)
	}
}

func TestAuthenticate_KeyManagementPathsRejectAPIKeyCredential(t *testing.T) {
	cache := apikeys.NewCache()
	cache.Store(hashAPIKey("oc_abcdef1234567890"), "user-2", "user2@example.com")

	mw := Authenticate(nil, cache)(passThroughHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/api-keys", nil)
	req.Header.Set("X-API-Key", "oc_abcdef1234567890")
	rec := httptest.NewRecorder()

	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401: /v1/api-keys must not accept an X-API-Key credential", rec.Code)
	}
}

func TestAuthenticate_KeyManagementPathsAcceptBearerToken(t *testing.T) {
	var captured AuthContext
	mw := Authenticate(nil, apikeys.NewCache())(authCapturingHandler(&captured))

	req := httptest.NewRequest(http.MethodGet, "/v1/api-keys", nil)
	req.Header.Set("Authorization", "Bearer "+signedTestToken(t, "user-3", "user3@example.com"))
	rec := httptest.NewRecorder()

	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if captured.UserSub != "user-3" {
		t.Errorf("captured auth = %#v", captured)
	}
}
