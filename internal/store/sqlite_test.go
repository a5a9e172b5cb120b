package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-refinery/internal/model"
)

var _ Store = (*SQLiteStore)(nil)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testRecord(rawLeadID string, created time.Time) *model.EnrichedRecord {
	f0 := "Marketing"
	return &model.EnrichedRecord{
		JobID:         "INFY-REQ-AAAAA",
		RawLeadID:     rawLeadID,
		Email:         rawLeadID + "@acme.com",
		FirstName:     "Jane",
		LastName:      "Doe",
		FirmName:      "Acme Corp",
		StandardTitle: "Vice President, Marketing",
		JobLevel:      2,
		JobLevelID:    "L2",
		F0:            &f0,
		Region:        "Americas",
		IntentScore:   90,
		IntentSignal:  model.IntentHigh,
		IsVerified:    true,
		TenantID:      "INSTITUTIONAL-DEFAULT",
		CreatedAt:     created,
		LastSyncedAt:  created,
		RawEvidence: model.RawEvidence{
			SerpQuery:   "q",
			SerpResults: []model.EvidenceFragment{{URL: "https://acme.com"}},
			AIOutput:    []byte(`{"standard_title":"Vice President, Marketing"}`),
		},
	}
}

// --- Records ---

func TestSQLite_UpsertAndGetRecord(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, st.UpsertRecord(ctx, testRecord("lead-1", now)))

	got, err := st.GetRecord(ctx, "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "Vice President, Marketing", got.StandardTitle)
	require.NotNil(t, got.F0)
	assert.Equal(t, "Marketing", *got.F0)
	assert.Nil(t, got.F1)
	assert.True(t, now.Equal(got.CreatedAt))
	assert.JSONEq(t, `{"standard_title":"Vice President, Marketing"}`, string(got.RawEvidence.AIOutput))
}

func TestSQLite_UpsertReplaces(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, st.UpsertRecord(ctx, testRecord("lead-1", now)))

	rerun := testRecord("lead-1", now.Add(time.Minute))
	rerun.JobID = "INFY-REQ-BBBBB"
	rerun.StandardTitle = "Senior Vice President, Marketing"
	rerun.F0 = nil
	require.NoError(t, st.UpsertRecord(ctx, rerun))

	all, err := st.FetchAll(ctx, RecordFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "INFY-REQ-BBBBB", all[0].JobID)
	assert.Equal(t, "Senior Vice President, Marketing", all[0].StandardTitle)
	assert.Nil(t, all[0].F0)
}

func TestSQLite_GetRecord_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.GetRecord(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_FetchAll_Order(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, st.UpsertRecord(ctx, testRecord(id, base.Add(time.Duration(i)*time.Hour))))
	}
	unverified := testRecord("d", base.Add(-time.Hour))
	unverified.IsVerified = false
	unverified.TenantID = "OTHER"
	require.NoError(t, st.UpsertRecord(ctx, unverified))

	all, err := st.FetchAll(ctx, RecordFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []string{"c", "b", "a", "d"}, rawIDs(all))

	verified, err := st.FetchAll(ctx, RecordFilter{VerifiedOnly: true})
	require.NoError(t, err)
	assert.Len(t, verified, 3)

	other, err := st.FetchAll(ctx, RecordFilter{TenantID: "OTHER"})
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, rawIDs(other))

	page, err := st.FetchAll(ctx, RecordFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, rawIDs(page))
}

func TestSQLite_FetchAll_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)
	all, err := st.FetchAll(context.Background(), RecordFilter{})
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func rawIDs(recs []model.EnrichedRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.RawLeadID
	}
	return out
}

// --- Lead states ---

func TestSQLite_LeadStates(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	id := model.LeadIdentity{Email: "j@acme.com", FirstName: "Jane", FirmName: "Acme"}

	n, err := st.EnqueueLeads(ctx, []model.LeadState{
		{RawLeadID: "l1", Identity: id},
		{RawLeadID: "l2", Identity: id},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := st.GetLeadState(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusQueued, got.Status)
	assert.Equal(t, "Jane", got.Identity.FirstName)

	require.NoError(t, st.SetLeadState(ctx, model.LeadState{
		RawLeadID: "l2",
		Identity:  id,
		Status:    model.LeadStatusError,
		Error:     "resolve: resolution failed",
		Attempts:  1,
	}))

	errored, err := st.ListLeadStates(ctx, LeadFilter{Status: model.LeadStatusError})
	require.NoError(t, err)
	require.Len(t, errored, 1)
	assert.Equal(t, "l2", errored[0].RawLeadID)
	assert.Equal(t, 1, errored[0].Attempts)
	assert.Equal(t, "resolve: resolution failed", errored[0].Error)

	all, err := st.ListLeadStates(ctx, LeadFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLite_LeadState_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.GetLeadState(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_EnqueueLeads_KeepsRunning(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	id := model.LeadIdentity{Email: "j@acme.com", FirstName: "Jane", FirmName: "Acme"}

	require.NoError(t, st.SetLeadState(ctx, model.LeadState{
		RawLeadID: "l1",
		Identity:  id,
		Status:    model.LeadStatusRunning,
		Attempts:  1,
	}))
	require.NoError(t, st.SetLeadState(ctx, model.LeadState{
		RawLeadID: "l2",
		Identity:  id,
		Status:    model.LeadStatusError,
		Error:     "resolve: resolution failed",
		Attempts:  1,
	}))

	n, err := st.EnqueueLeads(ctx, []model.LeadState{
		{RawLeadID: "l1", Identity: id},
		{RawLeadID: "l2", Identity: id},
		{RawLeadID: "l3", Identity: id},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	running, err := st.GetLeadState(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusRunning, running.Status)
	assert.Equal(t, 1, running.Attempts)

	requeued, err := st.GetLeadState(ctx, "l2")
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusQueued, requeued.Status)
}

func TestSQLite_EnqueueLeads_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)
	n, err := st.EnqueueLeads(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
