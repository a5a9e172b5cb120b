package assemble

import (
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-refinery/internal/model"
	"github.com/sells-group/lead-refinery/internal/resolve"
	"github.com/sells-group/lead-refinery/internal/taxonomy"
)

var fixed = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

func testAssembler() *Assembler {
	return &Assembler{
		Now:       func() time.Time { return fixed },
		Token:     func() string { return "AB12C" },
		TenantID:  "INSTITUTIONAL-DEFAULT",
		ProjectID: "REFINERY-MAIN",
		JobPrefix: "INFY-REQ",
	}
}

func identity() model.LeadIdentity {
	return model.LeadIdentity{
		Email:         "jane.doe@acme.com",
		FirstName:     "Jane",
		LastName:      "Doe",
		FirmName:      "Acme Corp",
		DeclaredTitle: "VP Marketing",
	}
}

func resolution(t *testing.T) *resolve.Resolution {
	t.Helper()
	reg, err := taxonomy.Default()
	require.NoError(t, err)
	level, _ := reg.JobLevel("L2")
	fn, _ := reg.Function("FT004")
	ind, _ := reg.Industry("IND002")
	return &resolve.Resolution{
		Raw:      json.RawMessage(`{"standard_title":"Vice President, Marketing"}`),
		Attempts: 1,
		Validated: model.ResolutionIntel{
			StandardTitle:      "Vice President, Marketing",
			JobLevelID:         "L2",
			FunctionTaxonomyID: "FT004",
			IndustryID:         "IND002",
			Level:              level,
			Function:           &fn,
			Industry:           &ind,
			Confidence:         90,
			IntentSignal:       model.IntentHigh,
		},
	}
}

func TestAssemble(t *testing.T) {
	res := resolution(t)
	fields := model.SanitizedFields{
		StandardTitle: "Vice President, Marketing",
		City:          "Austin",
		State:         "TX",
		Country:       "United States",
		Region:        "Americas",
		IntentScore:   90,
		IntentSignal:  model.IntentHigh,
		IsVerified:    true,
	}
	ev := &model.EvidenceBundle{
		Query:     "q",
		Source:    "jina",
		Fragments: []model.EvidenceFragment{{URL: "https://acme.com", Snippet: "Jane Doe"}},
		RawText:   "Acme HQ: 1 Main St, Austin TX 78701",
	}

	rec := testAssembler().Assemble(identity(), res, fields, ev, "lead-1")

	assert.Equal(t, "INFY-REQ-AB12C", rec.JobID)
	assert.Equal(t, "lead-1", rec.RawLeadID)
	assert.Equal(t, "jane.doe@acme.com", rec.Email)
	assert.Equal(t, 2, rec.JobLevel)
	assert.Equal(t, "Senior Leadership", rec.JobLevelLabel)
	require.NotNil(t, rec.F0)
	assert.Equal(t, "Marketing", *rec.F0)
	assert.Equal(t, "Digital Marketing", *rec.F1)
	assert.Equal(t, "SEO", *rec.F2)
	assert.Equal(t, "Business", *rec.JobRole)
	require.NotNil(t, rec.Industry)
	assert.Equal(t, "Hi Tech", *rec.Industry)
	assert.Equal(t, "CMT", *rec.Vertical)
	assert.Equal(t, "", rec.Zip)
	assert.Nil(t, rec.Revenue)
	assert.Nil(t, rec.ResolutionError)
	assert.Equal(t, model.ResolutionCompleted, rec.ResolutionStatus)
	assert.Equal(t, fixed, rec.CreatedAt)
	assert.Equal(t, rec.CreatedAt, rec.LastSyncedAt)
	assert.Equal(t, "INSTITUTIONAL-DEFAULT", rec.TenantID)
	assert.Equal(t, "REFINERY-MAIN", rec.ProjectID)

	assert.Equal(t, "q", rec.RawEvidence.SerpQuery)
	assert.Len(t, rec.RawEvidence.SerpResults, 1)
	assert.Equal(t, "Acme HQ: 1 Main St, Austin TX 78701", rec.RawEvidence.RawText)
	assert.JSONEq(t, `{"standard_title":"Vice President, Marketing"}`, string(rec.RawEvidence.AIOutput))
	assert.Equal(t, "jina: 1 fragments", rec.RawEvidence.DiscoveryLogic)
	assert.Greater(t, rec.Completeness, 0.0)
}

func TestAssemble_NoEvidence(t *testing.T) {
	res := resolution(t)
	res.Validated.Function = nil
	res.Validated.Industry = nil
	res.Validated.LocationFromHQ = true

	rec := testAssembler().Assemble(identity(), res, model.SanitizedFields{Region: "Global"}, model.EmptyEvidence("q"), "lead-2")

	assert.Equal(t, model.ResolutionDegraded, rec.ResolutionStatus)
	assert.Nil(t, rec.F0)
	assert.Nil(t, rec.F1)
	assert.Nil(t, rec.F2)
	assert.Nil(t, rec.FunctionTaxonomyID)
	assert.Nil(t, rec.IndustryID)
	assert.NotNil(t, rec.RawEvidence.SerpResults)
	assert.Empty(t, rec.RawEvidence.SerpResults)
	assert.Contains(t, rec.RawEvidence.DiscoveryLogic, "no evidence")
	assert.Contains(t, rec.RawEvidence.DiscoveryLogic, "headquarters")
}

func TestProvenance_Warnings(t *testing.T) {
	res := &resolve.Resolution{
		Attempts: 2,
		Warnings: []resolve.Warning{{Kind: taxonomy.KindIndustry, Value: "IND999"}},
	}
	p := Provenance(nil, res, false)
	assert.Contains(t, p.DiscoveryLogic, "reparsed")
	assert.Contains(t, p.DiscoveryLogic, "IND999")
	assert.Equal(t, "", p.SerpQuery)
}

func TestCompleteness(t *testing.T) {
	assert.Equal(t, 0.0, Completeness(&model.EnrichedRecord{}))

	s := "x"
	full := &model.EnrichedRecord{
		Email: s, FirstName: s, LastName: s, FirmName: s, DeclaredTitle: s, Website: s,
		StandardTitle: s, JobLevelID: s, FunctionTaxonomyID: &s, IndustryID: &s,
		City: s, State: s, Zip: s, Country: s, Phone: s, LinkedInURL: &s,
		Salutation: &s, AlternateProfileURL: s,
	}
	assert.Equal(t, 1.0, Completeness(full))

	full.Phone = ""
	full.Salutation = nil
	assert.InDelta(t, 0.89, Completeness(full), 0.001)
}

func TestNewJobID(t *testing.T) {
	a := New("t", "p", "")
	pattern := regexp.MustCompile(`^INFY-REQ-[0-9A-Z]{5}$`)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id := a.NewJobID()
		assert.Regexp(t, pattern, id)
		seen[id] = true
	}
	assert.Greater(t, len(seen), 40)
}
