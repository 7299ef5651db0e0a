package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	mrequestid "github.com/rakunlabs/ada/middleware/requestid"

	"github.com/aws-samples/bedrock-chat-router/internal/dispatcher"
	"github.com/aws-samples/bedrock-chat-router/internal/httperr"
	"github.com/aws-samples/bedrock-chat-router/internal/translator"
)

// ChatCompletions implements POST /v1/chat/completions: parse, resolve the
// model alias, and dispatch to whichever backend the resolved model maps
// to, unary or streaming.
func (s *Server) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		httperr.Write(w, http.StatusBadRequest, "failed to read request body", "validation_error", "invalid_body", nil)
		return
	}

	var req translator.ChatCompletionRequest
	if err := json.Unmarshal(rawBody, &req); err != nil {
		httperr.Write(w, http.StatusBadRequest, "malformed JSON body", "validation_error", "invalid_json", nil)
		return
	}

	requestID := r.Header.Get(mrequestid.HeaderXRequestID)

	if req.Stream {
		s.streamChatCompletion(w, r, rawBody, req, requestID)
		return
	}

	if err := s.dispatcher.Complete(r.Context(), rawBody, req, requestID, w); err != nil {
		httperr.Write(w, http.StatusBadGateway, "upstream completion failed: "+err.Error(), "bad_gateway", "upstream_error", nil)
		return
	}
}

func (s *Server) streamChatCompletion(w http.ResponseWriter, r *http.Request, rawBody []byte, req translator.ChatCompletionRequest, requestID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httperr.Write(w, http.StatusInternalServerError, "streaming not supported by this server", "server_error", "streaming_unsupported", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if err := s.dispatcher.StreamTo(r.Context(), rawBody, req, requestID, w, flusher); err != nil {
		// Headers are already committed; nothing more to do beyond logging.
		slog.Error("stream chat completion failed", "error", err, "request_id", requestID)
		return
	}
}

// ListModels implements GET /v1/models: enumerate the alias table.
func (s *Server) ListModels(w http.ResponseWriter, r *http.Request) {
	aliases := s.aliases.All()
	data := make([]translator.ModelData, 0, len(aliases))
	for alias := range aliases {
		data = append(data, translator.ModelData{
			ID:      alias,
			Object:  "model",
			OwnedBy: "bedrock",
		})
	}

	httperr.JSON(w, http.StatusOK, translator.ModelsResponse{
		Object: "list",
		Data:   data,
	})
}
