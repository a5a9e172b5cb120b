package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-refinery/internal/assemble"
	"github.com/sells-group/lead-refinery/internal/cost"
	"github.com/sells-group/lead-refinery/internal/discovery"
	"github.com/sells-group/lead-refinery/internal/entitlement"
	"github.com/sells-group/lead-refinery/internal/leadlock"
	"github.com/sells-group/lead-refinery/internal/metrics"
	"github.com/sells-group/lead-refinery/internal/model"
	"github.com/sells-group/lead-refinery/internal/resolve"
	"github.com/sells-group/lead-refinery/internal/store"
	"github.com/sells-group/lead-refinery/internal/taxonomy"
	"github.com/sells-group/lead-refinery/pkg/anthropic"
	anthropicmocks "github.com/sells-group/lead-refinery/pkg/anthropic/mocks"
)

const janeClassification = `{
  "standard_title": "VP Marketing",
  "job_level_id": "L2",
  "function_taxonomy_id": "FT006",
  "industry_id": "",
  "location": {"city": "", "state": "", "country": "", "zip": "00000"},
  "hq": {"city": "", "state": "", "country": "", "zip": ""},
  "confidence": 65,
  "linkedin_url": "",
  "linkedin_employer": "",
  "intent_signal": "Medium",
  "salutation": "",
  "phone": "",
  "alternate_profile_url": ""
}`

const verifiedClassification = `{
  "standard_title": "Vice President, Marketing",
  "job_level_id": "L2",
  "function_taxonomy_id": "FT004",
  "industry_id": "IND002",
  "location": {"city": "Austin", "state": "TX", "country": "", "zip": "78701"},
  "hq": {"city": "Austin", "state": "TX", "country": "United States", "zip": "78701"},
  "confidence": 92,
  "linkedin_url": "https://www.linkedin.com/in/janedoe",
  "linkedin_employer": "Acme Corp",
  "intent_signal": "High",
  "salutation": "",
  "phone": "",
  "alternate_profile_url": ""
}`

type fakeDiscoverer struct {
	calls atomic.Int32
	fn    func(model.LeadIdentity) (*model.EvidenceBundle, error)
}

func (f *fakeDiscoverer) Discover(_ context.Context, id model.LeadIdentity) (*model.EvidenceBundle, error) {
	f.calls.Add(1)
	return f.fn(id)
}

func (f *fakeDiscoverer) Provider() string { return "jina" }

func evidenceFor(id model.LeadIdentity) (*model.EvidenceBundle, error) {
	return &model.EvidenceBundle{
		Query:  discovery.BuildQuery(id),
		Source: "jina",
		Fragments: []model.EvidenceFragment{{
			URL:     "https://www.linkedin.com/in/janedoe",
			Title:   id.FullName() + " - " + id.FirmName + " | LinkedIn",
			Snippet: "Vice President of Marketing at " + id.FirmName,
		}},
		Tokens: 1000,
	}, nil
}

func unavailable(model.LeadIdentity) (*model.EvidenceBundle, error) {
	return nil, eris.Wrap(discovery.ErrUnavailable, "jina: search timed out")
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 2000, OutputTokens: 300},
	}
}

func jane() model.LeadIdentity {
	return model.LeadIdentity{
		Email:         "jane.doe@acme.com",
		FirstName:     "Jane",
		LastName:      "Doe",
		FirmName:      "Acme Corp",
		DeclaredTitle: "VP Marketing",
	}
}

type harness struct {
	p      *Pipeline
	st     *store.SQLiteStore
	client *anthropicmocks.MockClient
	disc   *fakeDiscoverer
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	reg, err := taxonomy.Default()
	require.NoError(t, err)

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "refinery.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	client := anthropicmocks.NewMockClient(t)
	disc := &fakeDiscoverer{fn: evidenceFor}

	var n atomic.Int32
	asm := &assemble.Assembler{
		Now:       func() time.Time { return time.Date(2026, 2, 1, 9, 0, int(n.Add(1)), 0, time.UTC) },
		Token:     assemble.RandomToken,
		TenantID:  "INSTITUTIONAL-DEFAULT",
		ProjectID: "REFINERY-MAIN",
		JobPrefix: "INFY-REQ",
	}
	r := resolve.NewResolver(client, reg, resolve.WithCostCalculator(cost.NewCalculator(cost.DefaultRates())))
	opts = append([]Option{WithMetrics(metrics.New()), WithCostCalculator(cost.NewCalculator(cost.DefaultRates()))}, opts...)
	return &harness{
		p:      New(disc, r, asm, st, opts...),
		st:     st,
		client: client,
		disc:   disc,
	}
}

func TestEnrichLead_Success(t *testing.T) {
	h := newHarness(t)
	h.client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(verifiedClassification), nil).Once()

	rec, err := h.p.EnrichLead(context.Background(), jane(), "lead-1")
	require.NoError(t, err)

	assert.Equal(t, "lead-1", rec.RawLeadID)
	assert.Regexp(t, `^INFY-REQ-[0-9A-Z]{5}$`, rec.JobID)
	assert.Equal(t, "Vice President, Marketing", rec.StandardTitle)
	assert.Equal(t, 2, rec.JobLevel)
	assert.Equal(t, "United States", rec.Country)
	assert.Equal(t, "Americas", rec.Region)
	assert.Equal(t, "78701", rec.Zip)
	assert.True(t, rec.IsVerified)
	assert.Equal(t, model.IntentHigh, rec.IntentSignal)
	require.NotNil(t, rec.LinkedInURL)
	assert.Equal(t, model.ResolutionCompleted, rec.ResolutionStatus)

	stored, err := h.st.GetRecord(context.Background(), "lead-1")
	require.NoError(t, err)
	assert.Equal(t, rec.JobID, stored.JobID)

	state, err := h.st.GetLeadState(context.Background(), "lead-1")
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusCompleted, state.Status)
	assert.Equal(t, 1, state.Attempts)
}

func TestEnrichLead_JaneDoeWithoutEvidence(t *testing.T) {
	h := newHarness(t)
	h.disc.fn = unavailable
	h.client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return strings.Contains(req.Messages[0].Content, "EVIDENCE: none found")
	})).Return(textResponse(janeClassification), nil).Once()

	rec, err := h.p.EnrichLead(context.Background(), jane(), "lead-jane")
	require.NoError(t, err)

	assert.Equal(t, 2, rec.JobLevel)
	assert.Equal(t, "L2", rec.JobLevelID)
	require.NotNil(t, rec.F0)
	assert.Equal(t, "Marketing", *rec.F0)
	assert.Equal(t, "", rec.Zip)
	assert.Equal(t, "Global", rec.Region)
	assert.LessOrEqual(t, rec.IntentScore, 39.0)
	assert.Equal(t, model.IntentLow, rec.IntentSignal)
	assert.False(t, rec.IsVerified)
	assert.Equal(t, model.ResolutionDegraded, rec.ResolutionStatus)
	assert.Empty(t, rec.RawEvidence.SerpResults)
	assert.Contains(t, rec.RawEvidence.SerpQuery, `"Jane Doe"`)
}

func TestEnrichLead_ResolutionFailedThenRetry(t *testing.T) {
	h := newHarness(t)
	h.client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("no idea"), nil).Twice()

	_, err := h.p.EnrichLead(context.Background(), jane(), "lead-2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, resolve.ErrResolutionFailed))
	assert.True(t, IsRetryable(err))

	state, err := h.st.GetLeadState(context.Background(), "lead-2")
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusError, state.Status)
	assert.Contains(t, state.Error, "resolution failed")
	assert.Equal(t, "Jane", state.Identity.FirstName)

	_, err = h.st.GetRecord(context.Background(), "lead-2")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	h.client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(verifiedClassification), nil).Once()

	rec, err := h.p.EnrichLead(context.Background(), jane(), "lead-2")
	require.NoError(t, err)
	assert.Equal(t, "lead-2", rec.RawLeadID)

	state, err = h.st.GetLeadState(context.Background(), "lead-2")
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusCompleted, state.Status)
	assert.Equal(t, 2, state.Attempts)
	assert.Empty(t, state.Error)
}

func TestEnrichLead_Idempotent(t *testing.T) {
	h := newHarness(t)
	h.client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(verifiedClassification), nil).Twice()

	first, err := h.p.EnrichLead(context.Background(), jane(), "lead-3")
	require.NoError(t, err)
	second, err := h.p.EnrichLead(context.Background(), jane(), "lead-3")
	require.NoError(t, err)

	a, b := *first, *second
	a.JobID, b.JobID = "", ""
	a.CreatedAt, b.CreatedAt = time.Time{}, time.Time{}
	a.LastSyncedAt, b.LastSyncedAt = time.Time{}, time.Time{}
	assert.Equal(t, a, b)

	all, err := h.st.FetchAll(context.Background(), store.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, second.JobID, all[0].JobID)
}

func TestEnrichLead_PreflightDenied(t *testing.T) {
	h := newHarness(t, WithGate(entitlement.NewQuota(0)))

	_, err := h.p.EnrichLead(context.Background(), jane(), "lead-4")
	require.Error(t, err)
	assert.True(t, errors.Is(err, entitlement.ErrInsufficient))
	assert.Zero(t, h.disc.calls.Load())
	h.client.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)

	state, err := h.st.GetLeadState(context.Background(), "lead-4")
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusError, state.Status)
}

type settleDenied struct{ entitlement.Unlimited }

func (settleDenied) Settle(context.Context, string) error {
	return entitlement.ErrInsufficient
}

func TestEnrichLead_SettleDeniedPersistsNothing(t *testing.T) {
	h := newHarness(t, WithGate(settleDenied{}))
	h.client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(verifiedClassification), nil).Once()

	_, err := h.p.EnrichLead(context.Background(), jane(), "lead-5")
	require.Error(t, err)
	assert.True(t, errors.Is(err, entitlement.ErrInsufficient))

	_, err = h.st.GetRecord(context.Background(), "lead-5")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	state, err := h.st.GetLeadState(context.Background(), "lead-5")
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusError, state.Status)
}

func TestEnrichLead_InvalidLead(t *testing.T) {
	h := newHarness(t)
	_, err := h.p.EnrichLead(context.Background(), model.LeadIdentity{Email: "x@y.com"}, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidLead))
	assert.Contains(t, err.Error(), "firm_name")
	assert.Zero(t, h.disc.calls.Load())
}

func TestEnrichLead_GeneratesRawLeadID(t *testing.T) {
	h := newHarness(t)
	h.client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(verifiedClassification), nil).Once()

	rec, err := h.p.EnrichLead(context.Background(), jane(), "")
	require.NoError(t, err)
	assert.Len(t, rec.RawLeadID, 36)
}

func TestEnrichLead_Locked(t *testing.T) {
	locker := leadlock.NewMemory()
	h := newHarness(t, WithLocker(locker))

	release, err := locker.Acquire(context.Background(), "lead-6")
	require.NoError(t, err)
	defer release()

	_, err = h.p.EnrichLead(context.Background(), jane(), "lead-6")
	assert.True(t, errors.Is(err, leadlock.ErrLocked))
	assert.Zero(t, h.disc.calls.Load())
}
