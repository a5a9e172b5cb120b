// Package salesforce wraps go-salesforce with a context-aware, rate-limited
// client for the collection endpoints the CRM sink uses.
package salesforce

import (
	"context"
	"os"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// MaxBatchSize is the Collections API limit per request.
const MaxBatchSize = 200

// Client is the subset of the Salesforce REST API used here.
type Client interface {
	Query(ctx context.Context, soql string, out any) error
	InsertCollection(ctx context.Context, sObjectName string, records []map[string]any) ([]CollectionResult, error)
	UpdateCollection(ctx context.Context, sObjectName string, records []CollectionRecord) ([]CollectionResult, error)
}

// CollectionRecord is one record of a collection update.
type CollectionRecord struct {
	ID     string         `json:"Id"`
	Fields map[string]any `json:"fields"`
}

// CollectionResult is the per-record outcome of a collection call.
type CollectionResult struct {
	ID      string   `json:"id"`
	Success bool     `json:"success"`
	Errors  []string `json:"errors"`
}

// JWTConfig holds connected-app credentials for the JWT bearer flow.
type JWTConfig struct {
	LoginURL string
	Username string
	ClientID string
	KeyPath  string
}

// Option configures the client.
type Option func(*sfClient)

// WithRateLimit caps API calls per second.
func WithRateLimit(rps float64) Option {
	return func(c *sfClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// go-salesforce takes no context; ctx only bounds the rate limiter wait.
type sfClient struct {
	sf      *salesforce.Salesforce
	limiter *rate.Limiter
}

// NewClient wraps an initialized go-salesforce instance.
func NewClient(sf *salesforce.Salesforce, opts ...Option) Client {
	c := &sfClient{sf: sf}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect authenticates with the JWT bearer flow and returns a Client.
func Connect(cfg JWTConfig, opts ...Option) (Client, error) {
	pem, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "sf: read jwt private key")
	}
	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.LoginURL,
		Username:       cfg.Username,
		ConsumerKey:    cfg.ClientID,
		ConsumerRSAPem: string(pem),
	})
	if err != nil {
		return nil, eris.Wrap(err, "sf: init")
	}
	return NewClient(sf, opts...), nil
}

func (c *sfClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return eris.Wrap(c.limiter.Wait(ctx), "sf: rate limit")
}

func (c *sfClient) Query(ctx context.Context, soql string, out any) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	if err := c.sf.Query(soql, out); err != nil {
		return eris.Wrap(err, "sf: query")
	}
	return nil
}

func (c *sfClient) InsertCollection(ctx context.Context, sObjectName string, records []map[string]any) ([]CollectionResult, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	res, err := c.sf.InsertCollection(sObjectName, records, MaxBatchSize)
	if err != nil {
		return nil, eris.Wrapf(err, "sf: insert collection %s", sObjectName)
	}
	return toResults(res), nil
}

func (c *sfClient) UpdateCollection(ctx context.Context, sObjectName string, records []CollectionRecord) ([]CollectionResult, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	rows := make([]map[string]any, len(records))
	for i, rec := range records {
		m := make(map[string]any, len(rec.Fields)+1)
		for k, v := range rec.Fields {
			m[k] = v
		}
		m["Id"] = rec.ID
		rows[i] = m
	}
	res, err := c.sf.UpdateCollection(sObjectName, rows, MaxBatchSize)
	if err != nil {
		return nil, eris.Wrapf(err, "sf: update collection %s", sObjectName)
	}
	return toResults(res), nil
}

func toResults(res salesforce.SalesforceResults) []CollectionResult {
	out := make([]CollectionResult, len(res.Results))
	for i, r := range res.Results {
		var errs []string
		for _, e := range r.Errors {
			errs = append(errs, e.Message)
		}
		out[i] = CollectionResult{ID: r.Id, Success: r.Success, Errors: errs}
	}
	return out
}
