// Package assemble builds the persisted record from a validated resolution.
package assemble

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/lead-refinery/internal/model"
	"github.com/sells-group/lead-refinery/internal/resolve"
)

const (
	// DefaultJobPrefix prefixes every job id.
	DefaultJobPrefix = "INFY-REQ"

	tokenLen = 5
)

// Assembler turns a resolution into an EnrichedRecord. Now and Token are
// injectable so records are reproducible in tests.
type Assembler struct {
	Now       func() time.Time
	Token     func() string
	TenantID  string
	ProjectID string
	JobPrefix string
}

// New returns an Assembler using the wall clock and random job tokens.
func New(tenantID, projectID, jobPrefix string) *Assembler {
	return &Assembler{
		Now:       time.Now,
		Token:     RandomToken,
		TenantID:  tenantID,
		ProjectID: projectID,
		JobPrefix: jobPrefix,
	}
}

// NewJobID returns "<prefix>-<token>".
func (a *Assembler) NewJobID() string {
	prefix := a.JobPrefix
	if prefix == "" {
		prefix = DefaultJobPrefix
	}
	tok := RandomToken
	if a.Token != nil {
		tok = a.Token
	}
	return prefix + "-" + tok()
}

// RandomToken returns five uppercase base36 characters.
func RandomToken() string {
	id := uuid.New()
	n := binary.BigEndian.Uint64(id[:8])
	s := strings.ToUpper(strconv.FormatUint(n, 36))
	if len(s) < tokenLen {
		s = strings.Repeat("0", tokenLen-len(s)) + s
	}
	return s[len(s)-tokenLen:]
}

// Assemble merges identity, validated intel, sanitized fields and
// provenance into one record. Taxonomy display fields are copied from the
// registry rows carried by the intel, so they always agree with the ids.
func (a *Assembler) Assemble(identity model.LeadIdentity, res *resolve.Resolution, fields model.SanitizedFields, evidence *model.EvidenceBundle, rawLeadID string) *model.EnrichedRecord {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	at := now().UTC()
	intel := res.Validated

	rec := &model.EnrichedRecord{
		JobID:     a.NewJobID(),
		RawLeadID: rawLeadID,

		Email:         identity.Email,
		FirstName:     identity.FirstName,
		LastName:      identity.LastName,
		FirmName:      identity.FirmName,
		DeclaredTitle: identity.DeclaredTitle,
		Website:       identity.Website,

		StandardTitle: fields.StandardTitle,
		JobLevel:      intel.Level.Rank,
		JobLevelID:    intel.Level.ID,
		JobLevelLabel: intel.Level.Label,
		Salutation:    fields.Salutation,

		City:    fields.City,
		State:   fields.State,
		Zip:     fields.Zip,
		Country: fields.Country,
		Region:  fields.Region,

		Phone:               fields.Phone,
		LinkedInURL:         fields.LinkedInURL,
		AlternateProfileURL: fields.AlternateProfile,

		IntentScore:  fields.IntentScore,
		IntentSignal: fields.IntentSignal,
		IsVerified:   fields.IsVerified,

		TenantID:         a.TenantID,
		ProjectID:        a.ProjectID,
		ResolutionStatus: model.ResolutionCompleted,

		CreatedAt:    at,
		LastSyncedAt: at,
	}

	if fn := intel.Function; fn != nil {
		rec.FunctionTaxonomyID = ptr(fn.ID)
		rec.JobRole = ptr(fn.JobRole)
		rec.JobRoleID = ptr(fn.JobRoleID)
		rec.F0 = ptr(fn.F0)
		rec.F1 = ptr(fn.F1)
		rec.F2 = ptr(fn.F2)
	}
	if ind := intel.Industry; ind != nil {
		rec.IndustryID = ptr(ind.ID)
		rec.Industry = ptr(ind.Name)
		rec.Vertical = ptr(ind.VerticalCode)
		rec.VerticalID = ptr(ind.VerticalID)
	}

	if evidence.Empty() {
		rec.ResolutionStatus = model.ResolutionDegraded
	}

	rec.RawEvidence = Provenance(evidence, res, intel.LocationFromHQ)
	rec.Completeness = Completeness(rec)
	return rec
}

// Provenance captures what the resolution was based on.
func Provenance(evidence *model.EvidenceBundle, res *resolve.Resolution, fromHQ bool) model.RawEvidence {
	p := model.RawEvidence{SerpResults: []model.EvidenceFragment{}}
	if evidence != nil {
		p.SerpQuery = evidence.Query
		p.RawText = evidence.RawText
		if len(evidence.Fragments) > 0 {
			p.SerpResults = append(p.SerpResults, evidence.Fragments...)
		}
	}
	if res != nil {
		p.AIOutput = res.Raw
	}

	var logic []string
	switch {
	case evidence.Empty():
		logic = append(logic, "no evidence; resolved from declared title")
	default:
		src := evidence.Source
		if src == "" {
			src = "search"
		}
		logic = append(logic, fmt.Sprintf("%s: %d fragments", src, len(evidence.Fragments)))
	}
	if fromHQ {
		logic = append(logic, "location from firm headquarters")
	}
	if res != nil {
		if res.Attempts > 1 {
			logic = append(logic, "classifier output reparsed")
		}
		for _, w := range res.Warnings {
			logic = append(logic, w.Error())
		}
	}
	p.DiscoveryLogic = strings.Join(logic, "; ")
	return p
}

// Completeness is the share of profile fields that carry a value, rounded
// to two decimals. Revenue and provenance are not counted.
func Completeness(r *model.EnrichedRecord) float64 {
	fields := []bool{
		r.Email != "",
		r.FirstName != "",
		r.LastName != "",
		r.FirmName != "",
		r.DeclaredTitle != "",
		r.Website != "",
		r.StandardTitle != "",
		r.JobLevelID != "",
		r.FunctionTaxonomyID != nil,
		r.IndustryID != nil,
		r.City != "",
		r.State != "",
		r.Zip != "",
		r.Country != "",
		r.Phone != "",
		r.LinkedInURL != nil,
		r.Salutation != nil,
		r.AlternateProfileURL != "",
	}
	filled := 0
	for _, ok := range fields {
		if ok {
			filled++
		}
	}
	return math.Round(float64(filled)/float64(len(fields))*100) / 100
}

func ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
