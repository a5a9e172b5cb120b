// Package jina provides a client for the Jina AI reader and search API.
package jina

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-refinery/internal/resilience"
)

// Client defines the Jina operations used for evidence discovery.
type Client interface {
	// Search performs a web search and returns ranked results.
	Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error)
	// Read fetches a URL through the reader and returns markdown content.
	Read(ctx context.Context, targetURL string) (*ReadResponse, error)
}

// ReadResponse is the parsed reader response.
type ReadResponse struct {
	Code int      `json:"code"`
	Data ReadData `json:"data"`
}

// ReadData holds the content from the reader.
type ReadData struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// Usage tracks token consumption.
type Usage struct {
	Tokens int `json:"tokens"`
}

// SearchResponse is the parsed search response.
type SearchResponse struct {
	Code int            `json:"code"`
	Data []SearchResult `json:"data"`
}

// SearchResult represents a single search result.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Content     string `json:"content"`
	Description string `json:"description"`
	Usage       Usage  `json:"usage"`
}

// Snippet returns the description, falling back to page content.
func (r SearchResult) Snippet() string {
	if r.Description != "" {
		return r.Description
	}
	return r.Content
}

// Tokens sums reported token usage across results.
func (r *SearchResponse) Tokens() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, d := range r.Data {
		n += d.Usage.Tokens
	}
	return n
}

// SearchOption configures a search request.
type SearchOption func(*searchOpts)

type searchOpts struct {
	siteFilter string
	count      int
}

// WithSiteFilter restricts search results to a specific domain.
func WithSiteFilter(domain string) SearchOption {
	return func(o *searchOpts) { o.siteFilter = domain }
}

// WithCount caps the number of results returned.
func WithCount(n int) SearchOption {
	return func(o *searchOpts) { o.count = n }
}

// Option configures the Jina client.
type Option func(*httpClient)

// WithBaseURL sets a custom reader base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithSearchBaseURL sets a custom search base URL.
func WithSearchBaseURL(u string) Option {
	return func(c *httpClient) { c.searchBaseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRetryPolicy overrides the retry policy for transient failures.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *httpClient) { c.retry = p }
}

type httpClient struct {
	apiKey        string
	baseURL       string
	searchBaseURL string
	http          *http.Client
	retry         resilience.Policy
}

// NewClient creates a new Jina client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:        apiKey,
		baseURL:       "https://r.jina.ai",
		searchBaseURL: "https://s.jina.ai",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.DefaultPolicy(),
	}
	c.retry.OnRetry = resilience.LogRetry("jina", "request")
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do executes req with retries on transient failures and returns the final
// body and status.
func (c *httpClient) do(ctx context.Context, req *http.Request) ([]byte, int, error) {
	type result struct {
		body   []byte
		status int
	}
	res, err := resilience.RetryVal(ctx, c.retry, func(ctx context.Context) (result, error) {
		resp, err := c.http.Do(req.Clone(ctx))
		if err != nil {
			return result{}, err
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return result{}, resilience.Transient(eris.Wrap(err, "jina: read response body"), resp.StatusCode)
		}
		if resilience.RetryableStatus(resp.StatusCode) {
			return result{body: body, status: resp.StatusCode},
				resilience.Transient(eris.Errorf("jina: status %d: %s", resp.StatusCode, string(body)), resp.StatusCode)
		}
		return result{body: body, status: resp.StatusCode}, nil
	})
	if err != nil {
		return nil, res.status, err
	}
	return res.body, res.status, nil
}

func (c *httpClient) Read(ctx context.Context, targetURL string) (*ReadResponse, error) {
	reqURL := fmt.Sprintf("%s/%s", c.baseURL, targetURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "jina: create request")
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Return-Format", "markdown")

	body, statusCode, err := c.do(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "jina: request failed")
	}

	if statusCode != http.StatusOK {
		return nil, eris.Errorf("jina: unexpected status %d: %s", statusCode, string(body))
	}

	var result ReadResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "jina: unmarshal response")
	}

	return &result, nil
}

func (c *httpClient) Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error) {
	so := &searchOpts{}
	for _, opt := range opts {
		opt(so)
	}

	reqURL := fmt.Sprintf("%s/%s", c.searchBaseURL, url.PathEscape(query))
	params := url.Values{}
	if so.siteFilter != "" {
		params.Set("site", so.siteFilter)
	}
	if so.count > 0 {
		params.Set("count", strconv.Itoa(so.count))
	}
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "jina: create search request")
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Respond-With", "no-content")

	body, statusCode, err := c.do(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "jina: search request failed")
	}

	// Jina returns 422 when no results are available for the query.
	if statusCode == http.StatusUnprocessableEntity {
		return &SearchResponse{Code: statusCode}, nil
	}

	if statusCode != http.StatusOK {
		return nil, eris.Errorf("jina: search unexpected status %d: %s", statusCode, string(body))
	}

	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "jina: unmarshal search response")
	}

	return &result, nil
}
