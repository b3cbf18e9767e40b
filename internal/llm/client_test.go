package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest() CompletionRequest {
	return CompletionRequest{
		Model:       "test-model",
		Messages:    NewPrompt("be terse", "analyze").Messages,
		MaxTokens:   256,
		Temperature: 0.2,
		TopP:        0.9,
	}
}

func openAIServer(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewOpenAIClient("test-key", ts.URL+"/v1", ts.Client())
}

func TestNewPrompt_SkipsEmptySystem(t *testing.T) {
	assert.Len(t, NewPrompt("", "hi").Messages, 1)
	p := NewPrompt("sys", "hi")
	require.Len(t, p.Messages, 2)
	assert.Equal(t, RoleSystem, p.Messages[0].Role)
}

func TestOpenAIClient_Success(t *testing.T) {
	c := openAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body["model"])
		assert.EqualValues(t, 256, body["max_tokens"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"test-model","choices":[{"message":{"role":"assistant","content":" {\"executive_summary\":\"ok\"} "}}],"usage":{"total_tokens":321}}`))
	})

	resp, err := c.Complete(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"executive_summary":"ok"}`, resp.Content)
	assert.Equal(t, 321, resp.TotalTokens)
}

func TestOpenAIClient_ClassifiesStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		kind      ErrorKind
		retryable bool
	}{
		{"rate limited json", http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"rate_limit"}}`, KindRateLimited, true},
		{"rate limited plain", http.StatusTooManyRequests, `too many`, KindRateLimited, true},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"bad model"}}`, KindHTTP, false},
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"no key"}}`, KindHTTP, false},
		{"server error", http.StatusBadGateway, `upstream down`, KindHTTP, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := openAIServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			_, err := c.Complete(context.Background(), testRequest())
			require.Error(t, err)
			var ae *AttemptError
			require.True(t, errors.As(err, &ae))
			assert.Equal(t, tc.kind, ae.Kind)
			assert.Equal(t, tc.status, ae.StatusCode)
			assert.Equal(t, tc.retryable, IsRetryable(err))
		})
	}
}

func TestOpenAIClient_EmptyChoicesIsMalformed(t *testing.T) {
	c := openAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	_, err := c.Complete(context.Background(), testRequest())
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindMalformed, kind)
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.False(t, IsRetryable(err))
}

func TestOpenAIClient_GarbageBodyIsMalformed(t *testing.T) {
	c := openAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`<html>oops</html>`))
	})

	_, err := c.Complete(context.Background(), testRequest())
	kind, _ := KindOf(err)
	assert.Equal(t, KindMalformed, kind)
}

func TestOpenAIClient_TimeoutIsRetryable(t *testing.T) {
	c := openAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Complete(ctx, testRequest())
	kind, _ := KindOf(err)
	assert.Equal(t, KindTimeout, kind)
	assert.True(t, IsRetryable(err))
}

func TestOpenAIClient_ConnectionRefusedIsNetwork(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := NewOpenAIClient("k", url+"/v1", nil)
	_, err := c.Complete(context.Background(), testRequest())
	kind, _ := KindOf(err)
	assert.Equal(t, KindNetwork, kind)
}

func TestAnthropicClient_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var body anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "be terse", body.System)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, RoleUser, body.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"claude","content":[{"type":"text","text":"hello "},{"type":"text","text":"world"}],"usage":{"input_tokens":10,"output_tokens":5}}`))
	}))
	defer ts.Close()

	c := NewAnthropicClient("test-key", ts.URL+"/v1", ts.Client())
	resp, err := c.Complete(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "hello world", resp.Content)
	assert.Equal(t, 15, resp.TotalTokens)
}

func TestAnthropicClient_ClassifiesStatus(t *testing.T) {
	status := http.StatusTooManyRequests
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow"}}`))
	}))
	defer ts.Close()

	c := NewAnthropicClient("k", ts.URL, ts.Client())

	_, err := c.Complete(context.Background(), testRequest())
	kind, _ := KindOf(err)
	assert.Equal(t, KindRateLimited, kind)
	assert.Contains(t, err.Error(), "slow")

	status = http.StatusBadRequest
	_, err = c.Complete(context.Background(), testRequest())
	kind, _ = KindOf(err)
	assert.Equal(t, KindHTTP, kind)
	assert.False(t, IsRetryable(err))
}

func TestAnthropicClient_NoTextIsMalformed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[]}`))
	}))
	defer ts.Close()

	c := NewAnthropicClient("k", ts.URL, ts.Client())
	_, err := c.Complete(context.Background(), testRequest())
	kind, _ := KindOf(err)
	assert.Equal(t, KindMalformed, kind)
}

func TestIsRetryable_ForeignError(t *testing.T) {
	assert.False(t, IsRetryable(errors.New("plain")))
}
