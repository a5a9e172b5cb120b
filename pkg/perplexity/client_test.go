package perplexity

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-refinery/internal/resilience"
)

func fastRetry() Option {
	return WithRetryPolicy(resilience.Policy{Attempts: 3, Base: time.Millisecond, Max: 2 * time.Millisecond})
}

func TestChatCompletion(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantErr   string
		wantCalls int32
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body: `{
				"id": "cmpl-123",
				"choices": [{"index": 0, "message": {"role": "assistant", "content": "Jane Doe is CTO of Acme."}}],
				"usage": {"prompt_tokens": 10, "completion_tokens": 5},
				"citations": ["https://acme.com/team"],
				"search_results": [{"title": "Team", "url": "https://acme.com/team", "snippet": "Jane Doe, CTO"}]
			}`,
			wantCalls: 1,
		},
		{
			name:      "rate_limit_retried",
			status:    http.StatusTooManyRequests,
			body:      `{"error": "rate limit exceeded"}`,
			wantErr:   "unexpected status 429",
			wantCalls: 3,
		},
		{
			name:      "bad_request_not_retried",
			status:    http.StatusBadRequest,
			body:      `{"error": "bad"}`,
			wantErr:   "unexpected status 400",
			wantCalls: 1,
		},
		{
			name:      "invalid_json",
			status:    http.StatusOK,
			body:      `{not json`,
			wantErr:   "unmarshal response",
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				assert.Equal(t, "/chat/completions", r.URL.Path)
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body)) //nolint:errcheck
			}))
			defer srv.Close()

			c := NewClient("test-key", WithBaseURL(srv.URL), fastRetry())
			resp, err := c.ChatCompletion(context.Background(), ChatCompletionRequest{
				Messages: []Message{{Role: "user", Content: "who"}},
			})
			assert.Equal(t, tt.wantCalls, calls.Load())

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "cmpl-123", resp.ID)
			assert.Equal(t, "Jane Doe is CTO of Acme.", resp.Content())
			assert.Equal(t, []string{"https://acme.com/team"}, resp.Citations)
			require.Len(t, resp.SearchResults, 1)
			assert.Equal(t, "Jane Doe, CTO", resp.SearchResults[0].Snippet)
		})
	}
}

func TestChatCompletion_DefaultModel(t *testing.T) {
	var got ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Write([]byte(`{"id":"x","choices":[]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL), WithModel("sonar-pro"), fastRetry())
	resp, err := c.ChatCompletion(context.Background(), ChatCompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "sonar-pro", got.Model)
	assert.Equal(t, "", resp.Content())
}

func TestChatCompletion_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte(`{}`)) //nolint:errcheck
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	c := NewClient("k", WithBaseURL(srv.URL), fastRetry())
	_, err := c.ChatCompletion(ctx, ChatCompletionRequest{})
	require.Error(t, err)
}
