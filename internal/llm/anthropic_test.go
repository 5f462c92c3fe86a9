package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnthropicTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func newAnthropicTestProvider(baseURL string, maxRetries int) *AnthropicProvider {
	p := NewAnthropicProvider(AnthropicConfig{
		APIKey:  "test-api-key",
		Model:   "claude-sonnet-4-20250514",
		BaseURL: baseURL,
	}, 5*time.Second, maxRetries)
	p.retryDelay = time.Millisecond
	return p
}

func writeMessagesResponse(w http.ResponseWriter, blocks ...contentBlock) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(messagesResponse{
		ID:      "msg_1",
		Type:    "message",
		Role:    "assistant",
		Content: blocks,
		Model:   "claude-sonnet-4-20250514",
		Usage:   anthropicUsage{InputTokens: 80, OutputTokens: 20},
	})
}

func TestAnthropicProvider_Complete(t *testing.T) {
	var received messagesRequest
	var headers http.Header
	var path string

	server := newAnthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		writeMessagesResponse(w,
			contentBlock{Type: "thinking"},
			contentBlock{Type: "text", Text: "Strategy 1: Start broad."},
		)
	})

	provider := newAnthropicTestProvider(server.URL, 0)
	result, err := provider.Complete(context.Background(), CompletionRequest{
		System:      "system prompt",
		User:        "user prompt",
		Temperature: 0.5,
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1/messages", path)
	assert.Equal(t, "test-api-key", headers.Get("x-api-key"))
	assert.Equal(t, anthropicAPIVersion, headers.Get("anthropic-version"))
	assert.Equal(t, "system prompt", received.System)
	assert.Equal(t, defaultAnthropicMaxTokens, received.MaxTokens)
	assert.Equal(t, 0.5, received.Temperature)
	require.Len(t, received.Messages, 1)
	assert.Equal(t, "user", received.Messages[0].Role)
	assert.Equal(t, "user prompt", received.Messages[0].Content)

	assert.Equal(t, "Strategy 1: Start broad.", result.Text)
	assert.Equal(t, 80, result.InputTokens)
	assert.Equal(t, 20, result.OutputTokens)
}

func TestAnthropicProvider_Complete_JSONMode(t *testing.T) {
	var received messagesRequest
	server := newAnthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		writeMessagesResponse(w, contentBlock{Type: "text", Text: `{"papers": []}`})
	})

	_, err := newAnthropicTestProvider(server.URL, 0).Complete(context.Background(), CompletionRequest{
		System:    "rate papers",
		User:      "u",
		JSON:      true,
		MaxTokens: 512,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(received.System, "rate papers"))
	assert.True(t, strings.HasSuffix(received.System, jsonInstruction))
	assert.Equal(t, 512, received.MaxTokens)
}

func TestAnthropicProvider_Complete_APIError(t *testing.T) {
	var calls atomic.Int32
	server := newAnthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "invalid_request_error", "message": "max_tokens too large"}}`))
	})

	_, err := newAnthropicTestProvider(server.URL, 3).Complete(context.Background(), CompletionRequest{User: "u"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "anthropic", apiErr.Provider)
	assert.Equal(t, "invalid_request_error", apiErr.Type)
	assert.Equal(t, "max_tokens too large", apiErr.Message)
	assert.Equal(t, int32(1), calls.Load(), "client errors are not retried")
}

func TestAnthropicProvider_Complete_RetryThenSuccess(t *testing.T) {
	var calls atomic.Int32
	server := newAnthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(529)
			_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "overloaded_error", "message": "Overloaded"}}`))
			return
		}
		writeMessagesResponse(w, contentBlock{Type: "text", Text: "done"})
	})

	result, err := newAnthropicTestProvider(server.URL, 3).Complete(context.Background(), CompletionRequest{User: "u"})
	require.NoError(t, err)
	assert.Equal(t, "done", result.Text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestAnthropicProvider_Complete_RetriesExhausted(t *testing.T) {
	server := newAnthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := newAnthropicTestProvider(server.URL, 2).Complete(context.Background(), CompletionRequest{User: "u"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exhausted 2 retries")
	assert.Equal(t, "server_error", ErrorType(err))
}

func TestAnthropicProvider_Complete_NoTextBlocks(t *testing.T) {
	server := newAnthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeMessagesResponse(w)
	})

	_, err := newAnthropicTestProvider(server.URL, 0).Complete(context.Background(), CompletionRequest{User: "u"})
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestAnthropicProvider_Complete_ContextCancelled(t *testing.T) {
	server := newAnthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	provider := newAnthropicTestProvider(server.URL, 5)
	provider.retryDelay = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := provider.Complete(ctx, CompletionRequest{User: "u"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestAnthropicProvider_Metadata(t *testing.T) {
	p := NewAnthropicProvider(AnthropicConfig{}, 0, 0)
	assert.Equal(t, "anthropic", p.Provider())
	assert.Equal(t, defaultAnthropicModel, p.Model())
	assert.Equal(t, defaultAnthropicBaseURL, p.baseURL)
}
