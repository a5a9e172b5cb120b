package discovery

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-refinery/internal/model"
	"github.com/sells-group/lead-refinery/internal/resilience"
	"github.com/sells-group/lead-refinery/pkg/perplexity"
)

var errMalformed = eris.New("malformed response")

const perplexitySystemPrompt = `You are a professional discovery engine. Search the web for the person described and report what public sources say about their current role, employer, LinkedIn profile URL, and work location. Also report the employer's headquarters street address, city, state, ZIP and country. Quote sources; do not guess.`

// Perplexity discovers evidence through Perplexity's grounded search.
type Perplexity struct {
	client perplexity.Client
	opts   options
}

// NewPerplexity creates a Perplexity-backed discoverer.
func NewPerplexity(client perplexity.Client, opts ...Option) *Perplexity {
	return &Perplexity{client: client, opts: newOptions(opts)}
}

// Provider implements Discoverer.
func (p *Perplexity) Provider() string { return "perplexity" }

// Discover implements Discoverer.
func (p *Perplexity) Discover(ctx context.Context, identity model.LeadIdentity) (*model.EvidenceBundle, error) {
	query := BuildQuery(identity)

	ctx, cancel := p.opts.withTimeout(ctx)
	defer cancel()

	temp := 0.0
	req := perplexity.ChatCompletionRequest{
		Messages: []perplexity.Message{
			{Role: "system", Content: perplexitySystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Discovery request for %s at %s. Search: %s", identity.FullName(), identity.FirmName, query)},
		},
		Temperature: &temp,
	}

	resp, err := resilience.Call(ctx, p.opts.breaker, func(ctx context.Context) (*perplexity.ChatCompletionResponse, error) {
		return p.client.ChatCompletion(ctx, req)
	})
	if err != nil {
		return nil, unavailable("perplexity", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, unavailable("perplexity", errMalformed)
	}

	var frags []model.EvidenceFragment
	if len(resp.SearchResults) > 0 {
		for _, r := range resp.SearchResults {
			frags = append(frags, model.EvidenceFragment{URL: r.URL, Snippet: r.Snippet, Title: r.Title})
		}
	} else {
		for _, u := range resp.Citations {
			frags = append(frags, model.EvidenceFragment{URL: u})
		}
	}
	frags = capFragments(frags, p.opts.maxFragments)

	return &model.EvidenceBundle{
		Query:     query,
		Fragments: frags,
		RawText:   resp.Content(),
		Source:    p.Provider(),
		Tokens:    resp.Usage.PromptTokens + resp.Usage.CompletionTokens,
	}, nil
}
