// Package model defines the shared types that flow through the refinery:
// lead identities, discovery evidence, taxonomy entries, and enriched records.
package model

import (
	"strings"
	"time"
)

// LeadIdentity is the minimal identity a lead is submitted with.
type LeadIdentity struct {
	Email         string `json:"email"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	FirmName      string `json:"firm_name"`
	DeclaredTitle string `json:"declared_title"`
	Website       string `json:"website,omitempty"`
}

// FullName joins first and last name, skipping empty parts.
func (l LeadIdentity) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(l.FirstName) + " " + strings.TrimSpace(l.LastName))
}

// Trimmed returns a copy with surrounding whitespace removed from every field.
func (l LeadIdentity) Trimmed() LeadIdentity {
	return LeadIdentity{
		Email:         strings.TrimSpace(l.Email),
		FirstName:     strings.TrimSpace(l.FirstName),
		LastName:      strings.TrimSpace(l.LastName),
		FirmName:      strings.TrimSpace(l.FirmName),
		DeclaredTitle: strings.TrimSpace(l.DeclaredTitle),
		Website:       strings.TrimSpace(l.Website),
	}
}

// LeadStatus is the processing state of a lead.
type LeadStatus string

const (
	LeadStatusQueued    LeadStatus = "queued"
	LeadStatusRunning   LeadStatus = "running"
	LeadStatusCompleted LeadStatus = "completed"
	LeadStatusError     LeadStatus = "error"
)

// Valid reports whether s is one of the known statuses.
func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusQueued, LeadStatusRunning, LeadStatusCompleted, LeadStatusError:
		return true
	}
	return false
}

// LeadState tracks where a lead is in the refinery. Errored leads keep the
// identity so they can be re-run under the same raw lead id.
type LeadState struct {
	RawLeadID string       `json:"raw_lead_id"`
	Identity  LeadIdentity `json:"identity"`
	Status    LeadStatus   `json:"status"`
	Error     string       `json:"error,omitempty"`
	Attempts  int          `json:"attempts"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// TokenUsage tracks classifier token consumption and its estimated cost.
type TokenUsage struct {
	InputTokens         int     `json:"input_tokens"`
	OutputTokens        int     `json:"output_tokens"`
	CacheCreationTokens int     `json:"cache_creation_tokens"`
	CacheReadTokens     int     `json:"cache_read_tokens"`
	Cost                float64 `json:"cost"`
}

// Add merges token usage from another instance.
func (t *TokenUsage) Add(other TokenUsage) {
	t.InputTokens += other.InputTokens
	t.OutputTokens += other.OutputTokens
	t.CacheCreationTokens += other.CacheCreationTokens
	t.CacheReadTokens += other.CacheReadTokens
	t.Cost += other.Cost
}
