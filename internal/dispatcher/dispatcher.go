// Package dispatcher implements the dual-backend request router: every
// chat-completion request is classified by its resolved model id and sent
// either to the Bedrock Converse backend (Anthropic-family models) or
// passed through to the OpenAI-compatible upstream (everything else).
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/oklog/ulid/v2"

	"github.com/aws-samples/bedrock-chat-router/internal/bedrockclient"
	"github.com/aws-samples/bedrock-chat-router/internal/httperr"
	"github.com/aws-samples/bedrock-chat-router/internal/openaiproxy"
	"github.com/aws-samples/bedrock-chat-router/internal/translator"
)

// Dispatcher resolves a request's model id and sends it to the right
// backend, translating on the way in and out for the Converse path and
// passing bytes through unchanged for the OpenAI-HTTP path.
type Dispatcher struct {
	bedrock *bedrockclient.Client
	openai  *openaiproxy.Backend
	aliases *AliasMap
	pool    *pool
}

func New(bedrock *bedrockclient.Client, openai *openaiproxy.Backend, aliases *AliasMap) *Dispatcher {
	return &Dispatcher{
		bedrock: bedrock,
		openai:  openai,
		aliases: aliases,
		pool:    newPool(defaultWorkers),
	}
}

func newChatID() string {
	return fmt.Sprintf("chatcmpl-%s", ulid.Make().String())
}

// Complete performs a unary chat-completion request, resolving the model
// alias and routing to the appropriate backend. It writes the result to w
// itself: a translated JSON body for the Converse backend, or the
// upstream's raw bytes, status, and content type passed through unchanged
// for the OpenAI-HTTP backend, mirroring how StreamTo writes its backend's
// output directly rather than returning it to the caller.
func (d *Dispatcher) Complete(ctx context.Context, rawBody []byte, req translator.ChatCompletionRequest, requestID string, w http.ResponseWriter) error {
	canonical := d.aliases.Resolve(req.Model)

	if !IsAnthropicFamily(canonical) {
		return d.completeOpenAI(ctx, rawBody, canonical, requestID, w)
	}

	return d.completeConverse(ctx, canonical, req, w)
}

func (d *Dispatcher) completeConverse(ctx context.Context, canonical string, req translator.ChatCompletionRequest, w http.ResponseWriter) error {
	creq, err := translator.BuildConverseRequest(canonical, req, true)
	if err != nil {
		return fmt.Errorf("translate request: %w", err)
	}

	var resp *translator.ChatCompletionResponse

	err = d.pool.run(ctx, func() error {
		converseOut, tokenUsage, reason, cErr := d.bedrock.Converse(ctx, creq)
		if cErr != nil {
			return cErr
		}

		translated, tErr := translator.FromConverseOutput(newChatID(), canonical, converseOut, tokenUsage, reason)
		if tErr != nil {
			return tErr
		}

		resp = translated
		return nil
	})
	if err != nil {
		return fmt.Errorf("invoke converse: %w", err)
	}

	httperr.JSON(w, http.StatusOK, resp)
	return nil
}

// completeOpenAI forwards the patched body to the OpenAI-HTTP upstream and
// writes its response straight through to w unchanged: same status code,
// same Content-Type, same body bytes, whether that is a 200 or an error
// status from the upstream itself.
func (d *Dispatcher) completeOpenAI(ctx context.Context, rawBody []byte, canonical, requestID string, w http.ResponseWriter) error {
	patched, err := patchModel(rawBody, canonical)
	if err != nil {
		return err
	}

	status, contentType, body, err := d.openai.Forward(ctx, patched, requestID)
	if err != nil {
		return fmt.Errorf("forward to upstream: %w", err)
	}

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write upstream response: %w", err)
	}

	return nil
}

// StreamTo performs a streaming chat-completion request, writing SSE
// chunks directly to w as they arrive. w must also implement
// http.Flusher, as the HTTP server wrapping this call guarantees.
func (d *Dispatcher) StreamTo(ctx context.Context, rawBody []byte, req translator.ChatCompletionRequest, requestID string, w http.ResponseWriter, flusher http.Flusher) error {
	canonical := d.aliases.Resolve(req.Model)

	if !IsAnthropicFamily(canonical) {
		return d.streamOpenAI(ctx, rawBody, canonical, requestID, w, flusher)
	}

	return d.streamConverse(ctx, canonical, req, w, flusher)
}

func (d *Dispatcher) streamConverse(ctx context.Context, canonical string, req translator.ChatCompletionRequest, w http.ResponseWriter, flusher http.Flusher) error {
	creq, err := translator.BuildConverseRequest(canonical, req, true)
	if err != nil {
		return fmt.Errorf("translate request: %w", err)
	}

	chatID := newChatID()

	return d.pool.run(ctx, func() error {
		stream, err := d.bedrock.ConverseStream(ctx, creq)
		if err != nil {
			writeChunk(w, flusher, translator.ErrorChunk(chatID, canonical, err.Error()))
			writeDone(w, flusher)
			return nil
		}
		defer stream.Close()

		st := translator.NewStreamTranslator(chatID, canonical)

		for event := range stream.Events() {
			for _, chunk := range st.Translate(event) {
				writeChunk(w, flusher, chunk)
			}
		}

		if err := stream.Err(); err != nil {
			slog.Error("converse stream error", "error", err, "model", canonical)
			writeChunk(w, flusher, translator.ErrorChunk(chatID, canonical, err.Error()))
		}

		writeDone(w, flusher)
		return nil
	})
}

func (d *Dispatcher) streamOpenAI(ctx context.Context, rawBody []byte, canonical, requestID string, w http.ResponseWriter, flusher http.Flusher) error {
	patched, err := patchModel(rawBody, canonical)
	if err != nil {
		return err
	}

	resp, err := d.openai.ForwardStream(ctx, patched, requestID)
	if err != nil {
		writeChunk(w, flusher, translator.ErrorChunk(newChatID(), canonical, err.Error()))
		writeDone(w, flusher)
		return nil
	}
	defer resp.Body.Close()

	return openaiproxy.CopyStream(w, flusher, resp.Body, requestID)
}

func writeChunk(w http.ResponseWriter, flusher http.Flusher, chunk translator.ChatCompletionChunk) {
	data, err := json.Marshal(chunk)
	if err != nil {
		slog.Error("marshal stream chunk", "error", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

func writeDone(w http.ResponseWriter, flusher http.Flusher) {
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// patchModel rewrites the "model" field of a raw JSON request body to the
// resolved canonical id before forwarding it upstream unchanged otherwise.
func patchModel(rawBody []byte, canonical string) ([]byte, error) {
	var body map[string]any
	if err := json.Unmarshal(rawBody, &body); err != nil {
		return nil, fmt.Errorf("decode request body: %w", err)
	}
	body["model"] = canonical
	return json.Marshal(body)
}
