package discovery

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/lead-refinery/internal/model"
	"github.com/sells-group/lead-refinery/internal/resilience"
	"github.com/sells-group/lead-refinery/pkg/jina"
)

// websiteSnippetLen bounds the website excerpt appended as evidence.
const websiteSnippetLen = 2000

// Jina discovers evidence through Jina Search, optionally reading the
// lead's website through Jina Reader.
type Jina struct {
	client jina.Client
	opts   options
}

// NewJina creates a Jina-backed discoverer.
func NewJina(client jina.Client, opts ...Option) *Jina {
	return &Jina{client: client, opts: newOptions(opts)}
}

// Provider implements Discoverer.
func (j *Jina) Provider() string { return "jina" }

// Discover implements Discoverer.
func (j *Jina) Discover(ctx context.Context, identity model.LeadIdentity) (*model.EvidenceBundle, error) {
	query := BuildQuery(identity)

	ctx, cancel := j.opts.withTimeout(ctx)
	defer cancel()

	resp, err := resilience.Call(ctx, j.opts.breaker, func(ctx context.Context) (*jina.SearchResponse, error) {
		return j.client.Search(ctx, query, jina.WithCount(j.opts.maxFragments))
	})
	if err != nil {
		return nil, unavailable("jina", err)
	}
	if resp == nil {
		return nil, unavailable("jina", errMalformed)
	}

	frags := make([]model.EvidenceFragment, 0, len(resp.Data))
	for _, r := range resp.Data {
		frags = append(frags, model.EvidenceFragment{
			URL:     r.URL,
			Snippet: r.Snippet(),
			Title:   r.Title,
		})
	}
	frags = capFragments(frags, j.opts.maxFragments)
	tokens := resp.Tokens()

	if j.opts.readWebsite && identity.Website != "" {
		if f, n, ok := j.readWebsite(ctx, identity.Website); ok {
			frags = append(frags, f)
			tokens += n
		}
	}

	return &model.EvidenceBundle{
		Query:     query,
		Fragments: frags,
		RawText:   rawText(frags),
		Source:    j.Provider(),
		Tokens:    tokens,
	}, nil
}

// readWebsite is best effort; a failure only loses the extra fragment.
func (j *Jina) readWebsite(ctx context.Context, website string) (model.EvidenceFragment, int, bool) {
	target := website
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = "https://" + target
	}

	resp, err := j.client.Read(ctx, target)
	if err != nil || resp == nil || strings.TrimSpace(resp.Data.Content) == "" {
		zap.L().Debug("discovery: website read skipped",
			zap.String("website", website),
			zap.Error(err),
		)
		return model.EvidenceFragment{}, 0, false
	}

	content := model.ClipText(strings.TrimSpace(resp.Data.Content), websiteSnippetLen)
	url := resp.Data.URL
	if url == "" {
		url = target
	}
	return model.EvidenceFragment{URL: url, Snippet: content, Title: resp.Data.Title}, resp.Data.Usage.Tokens, true
}
