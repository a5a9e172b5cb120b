package jina

import (
	"context"
	"encoding/json"
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

func TestRead_Success(t *testing.T) {
	t.Parallel()

	want := ReadResponse{
		Code: 200,
		Data: ReadData{
			Title:   "Acme Corp",
			URL:     "https://acme.com",
			Content: "# Acme Corp\n\nLeadership team.",
			Usage:   Usage{Tokens: 2150},
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "markdown", r.Header.Get("X-Return-Format"))
		assert.Equal(t, "/https://acme.com", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(want) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), fastRetry())
	got, err := client.Read(context.Background(), "https://acme.com")

	require.NoError(t, err)
	assert.Equal(t, want.Data.Title, got.Data.Title)
	assert.Equal(t, want.Data.Content, got.Data.Content)
	assert.Equal(t, 2150, got.Data.Usage.Tokens)
}

func TestRead_RetriesThenFails(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limit exceeded"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), fastRetry())
	_, err := client.Read(context.Background(), "https://acme.com")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Equal(t, int32(3), calls.Load())
}

func TestRead_NonRetryableStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), fastRetry())
	_, err := client.Read(context.Background(), "https://acme.com")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 403")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSearch_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "linkedin.com", r.URL.Query().Get("site"))
		assert.Equal(t, "5", r.URL.Query().Get("count"))
		assert.Contains(t, r.URL.Path, "Jane Doe")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SearchResponse{ //nolint:errcheck
			Code: 200,
			Data: []SearchResult{
				{Title: "Jane Doe - CTO - Acme | LinkedIn", URL: "https://www.linkedin.com/in/janedoe", Description: "CTO at Acme", Usage: Usage{Tokens: 10}},
				{Title: "Acme leadership", URL: "https://acme.com/team", Content: "Jane Doe leads technology", Usage: Usage{Tokens: 20}},
			},
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithSearchBaseURL(srv.URL), fastRetry())
	got, err := client.Search(context.Background(), `"Jane Doe" Acme`, WithSiteFilter("linkedin.com"), WithCount(5))

	require.NoError(t, err)
	require.Len(t, got.Data, 2)
	assert.Equal(t, "CTO at Acme", got.Data[0].Snippet())
	assert.Equal(t, "Jane Doe leads technology", got.Data[1].Snippet())
	assert.Equal(t, 30, got.Tokens())
}

func TestSearch_422IsEmpty(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithSearchBaseURL(srv.URL), fastRetry())
	got, err := client.Search(context.Background(), "nobody anywhere")

	require.NoError(t, err)
	assert.Empty(t, got.Data)
	assert.Equal(t, 0, got.Tokens())
}

func TestSearch_RecoversAfterTransient(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":200,"data":[{"title":"t","url":"https://x.test"}]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient("test-key", WithSearchBaseURL(srv.URL), fastRetry())
	got, err := client.Search(context.Background(), "q")

	require.NoError(t, err)
	require.Len(t, got.Data, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSearch_BadJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`not json`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient("test-key", WithSearchBaseURL(srv.URL), fastRetry())
	_, err := client.Search(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal search response")
}

func TestSearch_ContextCanceled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient("test-key", WithSearchBaseURL(srv.URL), fastRetry())
	_, err := client.Search(ctx, "q")
	require.Error(t, err)
}
