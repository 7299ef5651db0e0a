package server

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/worldline-go/types"

	"github.com/aws-samples/bedrock-chat-router/internal/apikeys"
	"github.com/aws-samples/bedrock-chat-router/internal/httperr"
	"github.com/aws-samples/bedrock-chat-router/internal/middleware"
)

const (
	apiKeyPrefix       = "oc_"
	maxActiveKeys      = 10
	defaultExpiresDays = 90
	minExpiresDays     = 1
	maxExpiresDays     = 365
	ttlGraceSeconds    = 30 * 24 * 60 * 60
)

type createKeyRequest struct {
	Description   string `json:"description,omitempty"`
	ExpiresInDays *int   `json:"expires_in_days,omitempty"`
}

type createKeyResponse struct {
	Key         string `json:"key"`
	KeyPrefix   string `json:"key_prefix"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	ExpiresAt   string `json:"expires_at"`
}

type listKeysResponse struct {
	Keys []keySummary `json:"keys"`
}

type keySummary struct {
	KeyPrefix   string `json:"key_prefix"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	ExpiresAt   string `json:"expires_at"`
	LastUsedAt  string `json:"last_used_at,omitempty"`
}

// CreateAPIKey implements POST /v1/api-keys.
func (s *Server) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.Auth(r.Context())
	if !ok {
		httperr.Write(w, http.StatusUnauthorized, "missing bearer identity", "auth_error", "missing_credentials", nil)
		return
	}

	var req createKeyRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httperr.Write(w, http.StatusBadRequest, "malformed JSON body", "validation_error", "invalid_json", nil)
			return
		}
	}

	days := defaultExpiresDays
	if req.ExpiresInDays != nil {
		days = *req.ExpiresInDays
	}
	if days < minExpiresDays || days > maxExpiresDays {
		httperr.Write(w, http.StatusBadRequest, "expires_in_days must be between 1 and 365", "validation_error", "invalid_expires_in_days", nil)
		return
	}

	existing, err := s.apiKeyStore.QueryByUser(r.Context(), auth.UserSub)
	if err != nil {
		slog.Error("query existing api keys failed", "error", err)
		httperr.Write(w, http.StatusInternalServerError, "key store unavailable", "server_error", "store_unavailable", nil)
		return
	}

	activeCount := 0
	for _, k := range existing {
		if k.Status == apikeys.StatusActive {
			activeCount++
		}
	}
	if activeCount >= maxActiveKeys {
		httperr.Write(w, http.StatusConflict, "maximum of 10 active API keys reached", "conflict", "key_limit_exceeded", nil)
		return
	}

	rawKey, keyHash, keyPrefixValue, err := generateAPIKey()
	if err != nil {
		slog.Error("generate api key failed", "error", err)
		httperr.Write(w, http.StatusInternalServerError, "failed to generate API key", "server_error", "key_generation_failed", nil)
		return
	}

	now := time.Now().UTC()
	expiresAt := now.AddDate(0, 0, days)

	record := apikeys.Record{
		KeyHash:     keyHash,
		KeyPrefix:   keyPrefixValue,
		UserSub:     auth.UserSub,
		UserEmail:   auth.UserEmail,
		Description: req.Description,
		Status:      apikeys.StatusActive,
		CreatedAt:   types.NewTime(now),
		ExpiresAt:   types.NewTime(expiresAt),
		TTL:         expiresAt.Unix() + ttlGraceSeconds,
	}

	if err := s.apiKeyStore.Put(r.Context(), record); err != nil {
		slog.Error("put api key failed", "error", err)
		httperr.Write(w, http.StatusInternalServerError, "failed to store API key", "server_error", "store_unavailable", nil)
		return
	}

	httperr.JSON(w, http.StatusCreated, createKeyResponse{
		Key:         rawKey,
		KeyPrefix:   keyPrefixValue,
		Description: req.Description,
		Status:      apikeys.StatusActive,
		CreatedAt:   now.Format(time.RFC3339),
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	})
}

// ListAPIKeys implements GET /v1/api-keys.
func (s *Server) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.Auth(r.Context())
	if !ok {
		httperr.Write(w, http.StatusUnauthorized, "missing bearer identity", "auth_error", "missing_credentials", nil)
		return
	}

	records, err := s.apiKeyStore.QueryByUser(r.Context(), auth.UserSub)
	if err != nil {
		slog.Error("query api keys failed", "error", err)
		httperr.Write(w, http.StatusInternalServerError, "key store unavailable", "server_error", "store_unavailable", nil)
		return
	}

	keys := make([]keySummary, 0, len(records))
	for _, rec := range records {
		summary := keySummary{
			KeyPrefix:   rec.KeyPrefix,
			Description: rec.Description,
			Status:      rec.Status,
			CreatedAt:   rec.CreatedAt.Time.Format(time.RFC3339),
			ExpiresAt:   rec.ExpiresAt.Time.Format(time.RFC3339),
		}
		if rec.LastUsedAt.Valid {
			summary.LastUsedAt = rec.LastUsedAt.V.Time.Format(time.RFC3339)
		}
		keys = append(keys, summary)
	}

	httperr.JSON(w, http.StatusOK, listKeysResponse{Keys: keys})
}

// RevokeAPIKey implements DELETE /v1/api-keys/{key_prefix}.
func (s *Server) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	keyPrefix := r.PathValue("key_prefix")
	if keyPrefix == "" {
		httperr.Write(w, http.StatusNotFound, "API key not found", "not_found", "key_not_found", nil)
		return
	}

	auth, ok := middleware.Auth(r.Context())
	if !ok {
		httperr.Write(w, http.StatusUnauthorized, "missing bearer identity", "auth_error", "missing_credentials", nil)
		return
	}

	records, err := s.apiKeyStore.QueryByUser(r.Context(), auth.UserSub)
	if err != nil {
		slog.Error("query api keys failed", "error", err)
		httperr.Write(w, http.StatusInternalServerError, "key store unavailable", "server_error", "store_unavailable", nil)
		return
	}

	var target *apikeys.Record
	for i := range records {
		if records[i].KeyPrefix == keyPrefix {
			target = &records[i]
			break
		}
	}
	if target == nil {
		httperr.Write(w, http.StatusNotFound, "API key not found", "not_found", "key_not_found", nil)
		return
	}
	if target.Status != apikeys.StatusActive {
		httperr.Write(w, http.StatusConflict, "API key is already revoked", "conflict", "already_revoked", nil)
		return
	}

	if err := s.apiKeyStore.ConditionalRevoke(r.Context(), target.KeyHash, auth.UserSub, time.Now()); err != nil {
		if errors.Is(err, apikeys.ErrConditionFailed) {
			httperr.Write(w, http.StatusConflict, "API key is already revoked", "conflict", "already_revoked", nil)
			return
		}
		slog.Error("revoke api key failed", "error", err)
		httperr.Write(w, http.StatusInternalServerError, "failed to revoke API key", "server_error", "store_unavailable", nil)
		return
	}

	s.apiKeyCache.Evict(target.KeyHash)

	if s.revoker != nil {
		if err := s.revoker.BroadcastRevoke(r.Context(), target.KeyHash); err != nil {
			slog.Warn("broadcast key revocation failed", "error", err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

func generateAPIKey() (rawKey, keyHash, keyPrefix string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", "", err
	}

	rawKey = apiKeyPrefix + base64.RawURLEncoding.EncodeToString(buf)

	sum := sha256.Sum256([]byte(rawKey))
	keyHash = hex.EncodeToString(sum[:])

	keyPrefix = rawKey
	if len(keyPrefix) > 10 {
		keyPrefix = keyPrefix[:10]
	}

	return rawKey, keyHash, keyPrefix, nil
}
