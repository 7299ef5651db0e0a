package dispatcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws-samples/bedrock-chat-router/internal/openaiproxy"
	"github.com/aws-samples/bedrock-chat-router/internal/translator"
	"github.com/aws-samples/bedrock-chat-router/internal/upstreamtoken"
)

type stubTokenProvider struct{}

func (stubTokenProvider) Token(ctx context.Context) (string, time.Time, error) {
	return "test-token", time.Now().Add(time.Hour), nil
}

func newTestDispatcher(t *testing.T, upstream http.HandlerFunc) *Dispatcher {
	t.Helper()
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	backend, err := openaiproxy.New(srv.URL, upstreamtoken.NewCache(stubTokenProvider{}))
	if err != nil {
		t.Fatalf("openaiproxy.New: %v", err)
	}

	return New(nil, backend, NewAliasMap(nil))
}

func TestPatchModel_ReplacesModelField(t *testing.T) {
	raw := []byte(`{"model":"gpt-5-mini","messages":[{"role":"user","content":"hi"}]}`)

	patched, err := patchModel(raw, "gpt-5")
	if err != nil {
		t.Fatalf("patchModel: %v", err)
	}

	var body map[string]any
	if err := json.Unmarshal(patched, &body); err != nil {
		t.Fatalf("unmarshal patched body: %v", err)
	}
	if body["model"] != "gpt-5" {
		t.Errorf("model = %v, want gpt-5", body["model"])
	}
	if _, ok := body["messages"]; !ok {
		t.Error("expected messages field to survive patching")
	}
}

func TestPatchModel_MalformedBodyErrors(t *testing.T) {
	if _, err := patchModel([]byte("not json"), "gpt-5"); err == nil {
		t.Error("expected an error for malformed JSON")
	}
}

func TestComplete_OpenAIBackendPassesUpstreamBodyAndStatusThrough(t *testing.T) {
	d := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"chatcmpl-upstream","choices":[]}`))
	})

	rec := httptest.NewRecorder()
	req := translator.ChatCompletionRequest{Model: "gpt-5"}

	if err := d.Complete(context.Background(), []byte(`{"model":"gpt-5","messages":[]}`), req, "req-1", rec); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Body.String() != `{"id":"chatcmpl-upstream","choices":[]}` {
		t.Errorf("body = %q, want the upstream body unchanged", rec.Body.String())
	}
}

func TestComplete_OpenAIBackendPassesUpstreamErrorStatusThrough(t *testing.T) {
	d := newTestDispatcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	})

	rec := httptest.NewRecorder()
	req := translator.ChatCompletionRequest{Model: "gpt-5"}

	if err := d.Complete(context.Background(), []byte(`{"model":"gpt-5","messages":[]}`), req, "req-2", rec); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429 (the upstream's own status, not a synthetic 502)", rec.Code)
	}
	if rec.Body.String() != `{"error":{"message":"rate limited"}}` {
		t.Errorf("body = %q, want the upstream error body unchanged", rec.Body.String())
	}
}
