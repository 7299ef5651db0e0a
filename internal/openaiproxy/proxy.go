// Package openaiproxy implements the OpenAI-HTTP backend: a byte-for-byte
// passthrough to an upstream OpenAI-compatible endpoint for every
// non-Anthropic-family model.
package openaiproxy

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/worldline-go/klient"

	"github.com/aws-samples/bedrock-chat-router/internal/upstreamtoken"
)

// Backend posts chat-completion bodies to the upstream URL, attaching a
// bearer token from the shared upstream token cache.
type Backend struct {
	client  *klient.Client
	tokens  *upstreamtoken.Cache
	baseURL string
}

func New(baseURL string, tokens *upstreamtoken.Cache) (*Backend, error) {
	client, err := klient.New(
		klient.WithBaseURL(baseURL),
		klient.WithLogger(slog.Default()),
		klient.WithDisableRetry(true),
	)
	if err != nil {
		return nil, err
	}

	return &Backend{client: client, tokens: tokens, baseURL: baseURL}, nil
}

// Forward performs the unary pass-through, returning the upstream status
// code, content type, and raw body bytes unchanged.
func (b *Backend) Forward(ctx context.Context, body []byte, requestID string) (status int, contentType string, respBody []byte, err error) {
	req, err := b.buildRequest(ctx, body, requestID)
	if err != nil {
		return 0, "", nil, err
	}

	resp, err := b.client.HTTP.Do(req)
	if err != nil {
		return 0, "", nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", nil, fmt.Errorf("read upstream response: %w", err)
	}

	return resp.StatusCode, resp.Header.Get("Content-Type"), data, nil
}

// ForwardStream opens the upstream SSE response and returns it for the
// caller to copy byte-for-byte. The caller must close the returned body.
func (b *Backend) ForwardStream(ctx context.Context, body []byte, requestID string) (*http.Response, error) {
	req, err := b.buildRequest(ctx, body, requestID)
	if err != nil {
		return nil, err
	}

	resp, err := b.client.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream stream request failed: %w", err)
	}

	return resp, nil
}

func (b *Backend) buildRequest(ctx context.Context, body []byte, requestID string) (*http.Request, error) {
	token, err := b.tokens.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire upstream token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	return req, nil
}

// CopyStream copies upstream SSE bytes to dst unchanged line-by-line,
// flushing after each write, and logs (diagnostic only) whether the last
// non-[DONE] data line looked like it carried a usage object. It never
// alters the bytes written to dst.
func CopyStream(dst http.ResponseWriter, flusher http.Flusher, upstream io.Reader, requestID string) error {
	scanner := bufio.NewScanner(upstream)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	// Split on '\n' but keep each line's own terminator (including any
	// '\r'), so the bytes written are exactly the bytes read.
	scanner.Split(func(data []byte, atEOF bool) (int, []byte, error) {
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			return i + 1, data[:i+1], nil
		}
		if atEOF && len(data) > 0 {
			return len(data), data, nil
		}
		return 0, nil, nil
	})

	var lastDataLine string

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "data: ") && !strings.Contains(line, "[DONE]") {
			lastDataLine = line
		}

		if _, err := io.WriteString(dst, line); err != nil {
			return err
		}
		flusher.Flush()
	}

	if strings.Contains(lastDataLine, `"usage"`) {
		slog.Debug("upstream stream included usage", "request_id", requestID)
	} else {
		slog.Debug("upstream stream had no usage field", "request_id", requestID)
	}

	return scanner.Err()
}
