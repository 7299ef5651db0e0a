package server

import (
	"context"
	"net/http"
	"time"

	"github.com/aws-samples/bedrock-chat-router/internal/config"
	"github.com/aws-samples/bedrock-chat-router/internal/httperr"
)

type healthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// Health implements GET /health: always 200.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	httperr.JSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Service:   config.Service,
		Version:   config.Version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready implements GET /ready: attempts an upstream token fetch.
func (s *Server) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if _, err := s.upstreamTokens.Get(ctx); err != nil {
		httperr.Write(w, http.StatusServiceUnavailable, "upstream token unavailable: "+err.Error(), "not_ready", "token_unavailable", map[string]any{
			"token_status": "unavailable",
		})
		return
	}

	httperr.JSON(w, http.StatusOK, map[string]any{
		"status":       "ready",
		"token_status": "valid",
	})
}
