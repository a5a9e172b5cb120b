package crm

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-refinery/internal/model"
	"github.com/sells-group/lead-refinery/internal/store"
	"github.com/sells-group/lead-refinery/pkg/salesforce"
	"github.com/sells-group/lead-refinery/pkg/salesforce/mocks"
)

func newStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "crm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func record(id, email string, verified bool, created time.Time) *model.EnrichedRecord {
	return &model.EnrichedRecord{
		JobID:         "INFY-REQ-" + id,
		RawLeadID:     id,
		Email:         email,
		FirstName:     "Jane",
		LastName:      "Doe",
		FirmName:      "Acme Corp",
		StandardTitle: "Vice President, Marketing",
		IntentScore:   90,
		IntentSignal:  model.IntentHigh,
		IsVerified:    verified,
		Region:        "Americas",
		CreatedAt:     created,
		LastSyncedAt:  created,
	}
}

func TestLeadFields(t *testing.T) {
	industry := "Hi Tech"
	rec := record("r1", "jane@acme.com", true, time.Now())
	rec.City, rec.State, rec.Zip, rec.Country = "Austin", "TX", "78701", "United States"
	rec.Industry = &industry
	rec.LastName = ""

	f := LeadFields(rec)
	assert.Equal(t, "jane@acme.com", f["Email"])
	assert.Equal(t, "[not provided]", f["LastName"])
	assert.Equal(t, "Acme Corp", f["Company"])
	assert.Equal(t, "Vice President, Marketing", f["Title"])
	assert.Equal(t, "78701", f["PostalCode"])
	assert.Equal(t, "Hi Tech", f["Industry"])
	assert.Equal(t, "Hot", f["Rating"])
	assert.Equal(t, LeadSource, f["LeadSource"])
	_, hasPhone := f["Phone"]
	assert.False(t, hasPhone)
	_, hasSalutation := f["Salutation"]
	assert.False(t, hasSalutation)
}

func TestPublish_VerifiedOnly(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, st.UpsertRecord(ctx, record("a", "a@acme.com", true, base)))
	require.NoError(t, st.UpsertRecord(ctx, record("b", "b@acme.com", false, base.Add(time.Hour))))
	require.NoError(t, st.UpsertRecord(ctx, record("c", "", true, base.Add(2*time.Hour))))

	mc := mocks.NewMockClient(t)
	mc.On("Query", ctx, mock.MatchedBy(func(soql string) bool {
		return soql == "SELECT Id, Email FROM Lead WHERE Email IN ('a@acme.com')"
	}), mock.Anything).Return(nil).Once()
	mc.On("InsertCollection", ctx, salesforce.LeadObject, mock.MatchedBy(func(rows []map[string]any) bool {
		return len(rows) == 1 && rows[0]["Email"] == "a@acme.com"
	})).Return([]salesforce.CollectionResult{{ID: "00Q1", Success: true}}, nil).Once()

	sum, err := NewPublisher(mc, st).Publish(ctx, "", 0)
	require.NoError(t, err)
	assert.Equal(t, &Summary{Considered: 2, Skipped: 1, Created: 1}, sum)
}

func TestPublish_Limit(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := range 3 {
		id := fmt.Sprintf("r%d", i)
		require.NoError(t, st.UpsertRecord(ctx, record(id, id+"@acme.com", true, base.Add(time.Duration(i)*time.Minute))))
	}

	mc := mocks.NewMockClient(t)
	mc.On("Query", ctx, mock.Anything, mock.Anything).Return(nil).Once()
	mc.On("InsertCollection", ctx, salesforce.LeadObject, mock.MatchedBy(func(rows []map[string]any) bool {
		return len(rows) == 2
	})).Return([]salesforce.CollectionResult{{Success: true}, {Success: true}}, nil).Once()

	sum, err := NewPublisher(mc, st).Publish(ctx, "", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Considered)
	assert.Equal(t, 2, sum.Created)
}

func TestPublish_UpsertError(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	require.NoError(t, st.UpsertRecord(ctx, record("a", "a@acme.com", true, time.Now())))

	mc := mocks.NewMockClient(t)
	mc.On("Query", ctx, mock.Anything, mock.Anything).Return(assert.AnError).Once()

	_, err := NewPublisher(mc, st).Publish(ctx, "", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crm: upsert leads")
}
