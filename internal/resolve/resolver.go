// Package resolve maps a lead and its evidence onto the closed taxonomies.
// The classifier call and the validation of its output are kept apart so
// the governance rules can be tested without a network.
package resolve

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-refinery/internal/cost"
	"github.com/sells-group/lead-refinery/internal/model"
	"github.com/sells-group/lead-refinery/internal/resilience"
	"github.com/sells-group/lead-refinery/internal/taxonomy"
	"github.com/sells-group/lead-refinery/pkg/anthropic"
)

// ErrResolutionFailed means the classifier could not produce usable output
// after one reparse, or could not be reached.
var ErrResolutionFailed = eris.New("resolve: resolution failed")

const (
	defaultModel     = "claude-sonnet-4-5-20250929"
	defaultMaxTokens = 1024
)

// Resolution pairs the classifier's raw output with the validated intel.
type Resolution struct {
	Raw            json.RawMessage
	Classification RawClassification
	Validated      model.ResolutionIntel
	Warnings       []Warning
	Usage          model.TokenUsage
	Attempts       int
	Model          string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithModel sets the classifier model.
func WithModel(m string) Option {
	return func(r *Resolver) { r.model = m }
}

// WithMaxTokens caps the classifier response.
func WithMaxTokens(n int64) Option {
	return func(r *Resolver) { r.maxTokens = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(r *Resolver) { r.temperature = &t }
}

// WithTimeout bounds one Resolve call, reparse included.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

// WithBreaker guards the classifier with a circuit breaker.
func WithBreaker(b *resilience.Breaker) Option {
	return func(r *Resolver) { r.breaker = b }
}

// WithCostCalculator prices token usage on each resolution.
func WithCostCalculator(c *cost.Calculator) Option {
	return func(r *Resolver) { r.calc = c }
}

// Resolver classifies leads against an injected registry.
type Resolver struct {
	client      anthropic.Client
	registry    *taxonomy.Registry
	model       string
	maxTokens   int64
	temperature *float64
	timeout     time.Duration
	breaker     *resilience.Breaker
	calc        *cost.Calculator
	system      []anthropic.SystemBlock
}

// NewResolver creates a Resolver. The system prompt is built once from the
// registry and reused for every lead.
func NewResolver(client anthropic.Client, reg *taxonomy.Registry, opts ...Option) *Resolver {
	zero := 0.0
	r := &Resolver{
		client:      client,
		registry:    reg,
		model:       defaultModel,
		maxTokens:   defaultMaxTokens,
		temperature: &zero,
	}
	for _, o := range opts {
		o(r)
	}
	r.system = anthropic.BuildCachedSystemBlocks(SystemPrompt(reg), "")
	return r
}

// Registry returns the registry the resolver validates against.
func (r *Resolver) Registry() *taxonomy.Registry { return r.registry }

// Resolve classifies one lead. Garbled output gets exactly one reparse
// request; a second failure is ErrResolutionFailed.
func (r *Resolver) Resolve(ctx context.Context, identity model.LeadIdentity, evidence *model.EvidenceBundle) (*Resolution, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	res := &Resolution{Model: r.model}
	messages := []anthropic.Message{{Role: "user", Content: BuildUserMessage(identity, evidence)}}

	var (
		raw     RawClassification
		cleaned json.RawMessage
	)
	for attempt := 1; attempt <= 2; attempt++ {
		res.Attempts = attempt
		text, err := r.classify(ctx, messages, &res.Usage)
		if err != nil {
			return nil, eris.Wrapf(ErrResolutionFailed, "classify: %v", err)
		}

		var parseErr error
		raw, cleaned, parseErr = ParseClassification(text)
		if parseErr == nil {
			break
		}
		if attempt == 2 {
			return nil, eris.Wrapf(ErrResolutionFailed, "reparse: %v", parseErr)
		}

		zap.L().Warn("resolve: classifier output unparseable, requesting reparse",
			zap.String("firm", identity.FirmName),
			zap.Error(parseErr),
		)
		messages = append(messages,
			anthropic.Message{Role: "assistant", Content: text},
			anthropic.Message{Role: "user", Content: reparseInstruction},
		)
	}

	intel, warnings := Validate(identity, evidence, raw, r.registry)
	for _, w := range warnings {
		zap.L().Warn("resolve: taxonomy id unresolved",
			zap.String("kind", string(w.Kind)),
			zap.String("value", w.Value),
			zap.String("firm", identity.FirmName),
		)
	}

	res.Raw = cleaned
	res.Classification = raw
	res.Validated = intel
	res.Warnings = warnings
	if r.calc != nil {
		res.Usage.Cost = r.calc.Claude(r.model,
			res.Usage.InputTokens, res.Usage.OutputTokens,
			res.Usage.CacheCreationTokens, res.Usage.CacheReadTokens)
	}
	return res, nil
}

func (r *Resolver) classify(ctx context.Context, messages []anthropic.Message, usage *model.TokenUsage) (string, error) {
	req := anthropic.MessageRequest{
		Model:       r.model,
		MaxTokens:   r.maxTokens,
		System:      r.system,
		Messages:    messages,
		Temperature: r.temperature,
	}
	resp, err := resilience.Call(ctx, r.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return r.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", eris.New("resolve: empty classifier response")
	}
	usage.Add(model.TokenUsage{
		InputTokens:         int(resp.Usage.InputTokens),
		OutputTokens:        int(resp.Usage.OutputTokens),
		CacheCreationTokens: int(resp.Usage.CacheCreationInputTokens),
		CacheReadTokens:     int(resp.Usage.CacheReadInputTokens),
	})
	return resp.Text(), nil
}
