package model

import (
	"encoding/json"
	"time"
)

// IntentSignal is the coarse label derived from confidence.
type IntentSignal string

const (
	IntentLow    IntentSignal = "Low"
	IntentMedium IntentSignal = "Medium"
	IntentHigh   IntentSignal = "High"
)

// Location is a postal location as resolved from evidence.
type Location struct {
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
	Zip     string `json:"zip"`
}

// IsZero reports whether no location component is set.
func (l Location) IsZero() bool {
	return l.City == "" && l.State == "" && l.Country == "" && l.Zip == ""
}

// ResolutionIntel is the validated resolver output before sanitization.
// Taxonomy references are ids; the matching registry rows ride along so
// downstream steps never look anything up by free text.
type ResolutionIntel struct {
	StandardTitle      string       `json:"standard_title"`
	JobLevelID         string       `json:"job_level_id"`
	FunctionTaxonomyID string       `json:"function_taxonomy_id,omitempty"`
	IndustryID         string       `json:"industry_id,omitempty"`
	Location           Location     `json:"location"`
	LocationFromHQ     bool         `json:"location_from_hq"`
	LinkedInURL        *string      `json:"linkedin_url"`
	Salutation         *string      `json:"salutation"`
	Phone              string       `json:"phone"`
	AlternateProfile   string       `json:"alternate_profile_url"`
	Confidence         float64      `json:"confidence"`
	IntentSignal       IntentSignal `json:"intent_signal"`

	Level    JobLevel       `json:"-"`
	Function *FunctionTaxon `json:"-"`
	Industry *Industry      `json:"-"`
}

// SanitizedFields are the field values after per-field sanitization rules.
type SanitizedFields struct {
	StandardTitle    string
	City             string
	State            string
	Country          string
	Zip              string
	Region           string
	Phone            string
	Salutation       *string
	LinkedInURL      *string
	AlternateProfile string
	IntentScore      float64
	IntentSignal     IntentSignal
	IsVerified       bool
}

// RawEvidence is the audit trail embedded in every record.
type RawEvidence struct {
	SerpQuery      string             `json:"serp_query"`
	SerpResults    []EvidenceFragment `json:"serp_results"`
	RawText        string             `json:"raw_text,omitempty"`
	AIOutput       json.RawMessage    `json:"ai_output"`
	DiscoveryLogic string             `json:"discovery_logic,omitempty"`
}

// Resolution statuses recorded on a record.
const (
	ResolutionCompleted = "completed"
	ResolutionDegraded  = "completed_without_evidence"
)

// EnrichedRecord is the persisted outcome of one successful resolution.
// A re-run replaces the whole record for the same RawLeadID.
type EnrichedRecord struct {
	JobID     string `json:"job_id"`
	RawLeadID string `json:"raw_lead_id"`

	Email         string `json:"email"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	FirmName      string `json:"firm_name"`
	DeclaredTitle string `json:"declared_title"`
	Website       string `json:"website"`

	StandardTitle      string  `json:"standard_title"`
	JobLevel           int     `json:"job_level"`
	JobLevelID         string  `json:"job_level_id"`
	JobLevelLabel      string  `json:"job_level_label"`
	JobRole            *string `json:"job_role"`
	JobRoleID          *string `json:"job_role_id"`
	FunctionTaxonomyID *string `json:"function_taxonomy_id"`
	F0                 *string `json:"f0"`
	F1                 *string `json:"f1"`
	F2                 *string `json:"f2"`
	Vertical           *string `json:"vertical"`
	VerticalID         *string `json:"vertical_id"`
	Industry           *string `json:"industry"`
	IndustryID         *string `json:"industry_id"`
	Salutation         *string `json:"salutation"`

	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
	Region  string `json:"region"`

	Phone               string  `json:"phone"`
	LinkedInURL         *string `json:"linkedin_url"`
	AlternateProfileURL string  `json:"alternate_profile_url"`
	Revenue             *string `json:"revenue"`

	IntentScore  float64      `json:"intent_score"`
	IntentSignal IntentSignal `json:"intent_signal"`
	IsVerified   bool         `json:"is_verified"`
	Completeness float64      `json:"completeness"`

	TenantID         string  `json:"tenant_id"`
	ProjectID        string  `json:"project_id"`
	ResolutionStatus string  `json:"resolution_status"`
	ResolutionError  *string `json:"resolution_error"`

	LastSyncedAt time.Time `json:"last_synced_at"`
	CreatedAt    time.Time `json:"created_at"`

	RawEvidence RawEvidence `json:"raw_evidence_json"`
}

// Identity returns the lead identity the record was produced from.
func (r *EnrichedRecord) Identity() LeadIdentity {
	return LeadIdentity{
		Email:         r.Email,
		FirstName:     r.FirstName,
		LastName:      r.LastName,
		FirmName:      r.FirmName,
		DeclaredTitle: r.DeclaredTitle,
		Website:       r.Website,
	}
}
