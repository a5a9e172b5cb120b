// Package discovery gathers public evidence about a lead from an external
// search capability.
package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-refinery/internal/model"
	"github.com/sells-group/lead-refinery/internal/resilience"
)

// ErrUnavailable means the search capability failed, timed out, or returned
// something unusable. Callers continue with empty evidence.
var ErrUnavailable = eris.New("discovery: unavailable")

// Discoverer returns ranked evidence for one lead.
type Discoverer interface {
	Discover(ctx context.Context, identity model.LeadIdentity) (*model.EvidenceBundle, error)
	// Provider names the backend for logs, metrics, and cost attribution.
	Provider() string
}

const defaultMaxFragments = 5

// Option configures a discoverer.
type Option func(*options)

type options struct {
	maxFragments int
	timeout      time.Duration
	breaker      *resilience.Breaker
	readWebsite  bool
}

// WithMaxFragments caps the fragments kept from the ranked results.
func WithMaxFragments(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxFragments = n
		}
	}
}

// WithTimeout bounds a single Discover call.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithBreaker guards the backend with a circuit breaker.
func WithBreaker(b *resilience.Breaker) Option {
	return func(o *options) { o.breaker = b }
}

// WithReadWebsite also reads the lead's website for headquarters evidence
// when the backend supports it.
func WithReadWebsite(on bool) Option {
	return func(o *options) { o.readWebsite = on }
}

func newOptions(opts []Option) options {
	o := options{maxFragments: defaultMaxFragments}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// BuildQuery returns the search query for a lead: the person's professional
// profile or corporate bio, or failing that, the firm's headquarters address
// so location can fall back to it.
func BuildQuery(identity model.LeadIdentity) string {
	name := identity.FullName()
	firm := strings.TrimSpace(identity.FirmName)
	return fmt.Sprintf(`site:linkedin.com/in "%s" "%s" OR "%s" corporate bio official %s OR "%s" headquarters address`,
		name, firm, name, firm, firm)
}

func unavailable(provider string, err error) error {
	return eris.Wrapf(ErrUnavailable, "%s: %v", provider, err)
}

// withTimeout applies the configured timeout, if any.
func (o options) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout > 0 {
		return context.WithTimeout(ctx, o.timeout)
	}
	return context.WithCancel(ctx)
}

// capFragments drops empty hits and keeps at most n in rank order.
func capFragments(in []model.EvidenceFragment, n int) []model.EvidenceFragment {
	out := make([]model.EvidenceFragment, 0, min(len(in), n))
	for _, f := range in {
		if len(out) == n {
			break
		}
		f.URL = strings.TrimSpace(f.URL)
		f.Snippet = strings.TrimSpace(f.Snippet)
		if f.URL == "" && f.Snippet == "" {
			continue
		}
		out = append(out, f)
	}
	return out
}

// rawText flattens fragments into a single text blob.
func rawText(frags []model.EvidenceFragment) string {
	var b strings.Builder
	for i, f := range frags {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if f.Title != "" {
			b.WriteString(f.Title)
			b.WriteString("\n")
		}
		b.WriteString(f.URL)
		if f.Snippet != "" {
			b.WriteString("\n")
			b.WriteString(f.Snippet)
		}
	}
	return b.String()
}

// Noop returns empty evidence without calling anything.
type Noop struct{}

// Discover implements Discoverer.
func (Noop) Discover(_ context.Context, identity model.LeadIdentity) (*model.EvidenceBundle, error) {
	ev := model.EmptyEvidence(BuildQuery(identity))
	ev.Source = "none"
	return ev, nil
}

// Provider implements Discoverer.
func (Noop) Provider() string { return "none" }
