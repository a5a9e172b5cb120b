// Package pipeline runs one lead through discovery, resolution,
// sanitization and assembly, and persists the result.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-refinery/internal/assemble"
	"github.com/sells-group/lead-refinery/internal/cost"
	"github.com/sells-group/lead-refinery/internal/discovery"
	"github.com/sells-group/lead-refinery/internal/entitlement"
	"github.com/sells-group/lead-refinery/internal/leadlock"
	"github.com/sells-group/lead-refinery/internal/metrics"
	"github.com/sells-group/lead-refinery/internal/model"
	"github.com/sells-group/lead-refinery/internal/resolve"
	"github.com/sells-group/lead-refinery/internal/sanitize"
	"github.com/sells-group/lead-refinery/internal/store"
)

// ErrInvalidLead means the identity lacks the fields needed to search.
var ErrInvalidLead = eris.New("pipeline: invalid lead")

// Phase names used in logs and metrics.
const (
	PhaseDiscover = "discover"
	PhaseResolve  = "resolve"
	PhasePersist  = "persist"
	PhaseTotal    = "total"
)

// Pipeline is the enrichment entry point. It is safe for concurrent use;
// the only shared state is the read-only taxonomy inside the resolver.
type Pipeline struct {
	discoverer discovery.Discoverer
	resolver   *resolve.Resolver
	assembler  *assemble.Assembler
	store      store.Store
	gate       entitlement.Gate
	locker     leadlock.Locker
	metrics    *metrics.Metrics
	costCalc   *cost.Calculator
	now        func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithGate sets the entitlement gate. Default allows everything.
func WithGate(g entitlement.Gate) Option {
	return func(p *Pipeline) { p.gate = g }
}

// WithLocker guards each raw lead id against concurrent enrichment.
func WithLocker(l leadlock.Locker) Option {
	return func(p *Pipeline) { p.locker = l }
}

// WithMetrics records phase latencies and outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithCostCalculator prices discovery calls.
func WithCostCalculator(c *cost.Calculator) Option {
	return func(p *Pipeline) { p.costCalc = c }
}

// WithClock overrides the clock used for lead state timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline.
func New(d discovery.Discoverer, r *resolve.Resolver, a *assemble.Assembler, st store.Store, opts ...Option) *Pipeline {
	if d == nil {
		d = discovery.Noop{}
	}
	p := &Pipeline{
		discoverer: d,
		resolver:   r,
		assembler:  a,
		store:      st,
		gate:       entitlement.Unlimited{},
		now:        time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Store returns the store records are written to.
func (p *Pipeline) Store() store.Store { return p.store }

// EnrichLead resolves one lead and upserts the record keyed by rawLeadID.
// An empty rawLeadID gets a fresh one. On failure the lead is left in the
// error state with the message, and calling again with the same id
// replaces whatever was there.
func (p *Pipeline) EnrichLead(ctx context.Context, identity model.LeadIdentity, rawLeadID string) (*model.EnrichedRecord, error) {
	identity = identity.Trimmed()
	if rawLeadID == "" {
		rawLeadID = uuid.NewString()
	}
	log := zap.L().With(zap.String("raw_lead_id", rawLeadID), zap.String("firm", identity.FirmName))

	if err := validateIdentity(identity); err != nil {
		return nil, err
	}

	if p.locker != nil {
		release, err := p.locker.Acquire(ctx, rawLeadID)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	start := time.Now()
	attempts := p.nextAttempt(ctx, rawLeadID)
	if err := p.gate.Authorize(ctx, rawLeadID); err != nil {
		p.fail(ctx, log, identity, rawLeadID, attempts-1, err)
		return nil, err
	}

	p.setState(ctx, log, model.LeadState{
		RawLeadID: rawLeadID,
		Identity:  identity,
		Status:    model.LeadStatusRunning,
		Attempts:  attempts,
	})

	evidence := p.discover(ctx, log, identity)

	phaseStart := time.Now()
	res, err := p.resolver.Resolve(ctx, identity, evidence)
	p.metrics.ObservePhase(PhaseResolve, time.Since(phaseStart))
	if err != nil {
		p.fail(ctx, log, identity, rawLeadID, attempts, err)
		return nil, err
	}
	for _, w := range res.Warnings {
		p.metrics.IncUnresolved(string(w.Kind))
	}

	fields := sanitize.Sanitize(res.Validated)
	rec := p.assembler.Assemble(identity, res, fields, evidence, rawLeadID)

	// The classifier has already run; a denial here means nothing is kept.
	if err := p.gate.Settle(ctx, rawLeadID); err != nil {
		p.fail(ctx, log, identity, rawLeadID, attempts, err)
		return nil, err
	}

	phaseStart = time.Now()
	if err := p.store.UpsertRecord(ctx, rec); err != nil {
		err = eris.Wrapf(err, "pipeline: persist %s", rawLeadID)
		p.fail(ctx, log, identity, rawLeadID, attempts, err)
		return nil, err
	}
	p.metrics.ObservePhase(PhasePersist, time.Since(phaseStart))

	p.setState(ctx, log, model.LeadState{
		RawLeadID: rawLeadID,
		Identity:  identity,
		Status:    model.LeadStatusCompleted,
		Attempts:  attempts,
	})

	discoveryCost := 0.0
	if p.costCalc != nil {
		discoveryCost = p.costCalc.Discovery(p.discoverer.Provider(), evidence.Tokens)
	}
	p.metrics.AddTokens(res.Usage.InputTokens, res.Usage.OutputTokens)
	p.metrics.AddCost("anthropic", res.Usage.Cost)
	p.metrics.AddCost(p.discoverer.Provider(), discoveryCost)
	p.metrics.IncIntent(string(rec.IntentSignal))
	p.metrics.IncLead(string(model.LeadStatusCompleted))
	p.metrics.ObservePhase(PhaseTotal, time.Since(start))

	log.Info("pipeline: lead enriched",
		zap.String("job_id", rec.JobID),
		zap.String("standard_title", rec.StandardTitle),
		zap.String("job_level_id", rec.JobLevelID),
		zap.String("intent_signal", string(rec.IntentSignal)),
		zap.String("resolution_status", rec.ResolutionStatus),
		zap.Int("attempts", res.Attempts),
		zap.Float64("cost_usd", res.Usage.Cost+discoveryCost),
		zap.Duration("elapsed", time.Since(start)),
	)
	return rec, nil
}

// discover never fails: an unavailable backend yields empty evidence.
func (p *Pipeline) discover(ctx context.Context, log *zap.Logger, identity model.LeadIdentity) *model.EvidenceBundle {
	start := time.Now()
	evidence, err := p.discoverer.Discover(ctx, identity)
	p.metrics.ObservePhase(PhaseDiscover, time.Since(start))
	if err != nil || evidence == nil {
		log.Warn("pipeline: discovery unavailable, resolving from declared title",
			zap.String("provider", p.discoverer.Provider()),
			zap.Error(err),
		)
		p.metrics.IncDiscoveryFailure(p.discoverer.Provider())
		return model.EmptyEvidence(discovery.BuildQuery(identity))
	}
	return evidence
}

func (p *Pipeline) nextAttempt(ctx context.Context, rawLeadID string) int {
	prev, err := p.store.GetLeadState(ctx, rawLeadID)
	if err != nil || prev == nil {
		return 1
	}
	return prev.Attempts + 1
}

func (p *Pipeline) fail(ctx context.Context, log *zap.Logger, identity model.LeadIdentity, rawLeadID string, attempts int, err error) {
	log.Error("pipeline: lead failed", zap.Error(err))
	p.metrics.IncLead(string(model.LeadStatusError))
	p.setState(ctx, log, model.LeadState{
		RawLeadID: rawLeadID,
		Identity:  identity,
		Status:    model.LeadStatusError,
		Error:     err.Error(),
		Attempts:  attempts,
	})
}

func (p *Pipeline) setState(ctx context.Context, log *zap.Logger, st model.LeadState) {
	st.UpdatedAt = p.now().UTC()
	// State writes must land even when the lead's own context was cancelled.
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}
	if err := p.store.SetLeadState(ctx, st); err != nil {
		log.Warn("pipeline: failed to update lead state",
			zap.String("status", string(st.Status)),
			zap.Error(err),
		)
	}
}

func validateIdentity(id model.LeadIdentity) error {
	var missing []string
	if id.FirmName == "" {
		missing = append(missing, "firm_name")
	}
	if id.FirstName == "" && id.LastName == "" {
		missing = append(missing, "name")
	}
	if len(missing) > 0 {
		return eris.Wrapf(ErrInvalidLead, "missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// IsRetryable reports whether a failed lead can be re-run as is.
func IsRetryable(err error) bool {
	return errors.Is(err, resolve.ErrResolutionFailed) || errors.Is(err, entitlement.ErrInsufficient)
}
