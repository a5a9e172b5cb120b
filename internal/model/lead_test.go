package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLeadIdentity_FullName(t *testing.T) {
	tests := []struct {
		name string
		lead LeadIdentity
		want string
	}{
		{"both", LeadIdentity{FirstName: "Jane", LastName: "Doe"}, "Jane Doe"},
		{"first only", LeadIdentity{FirstName: "Jane"}, "Jane"},
		{"padded", LeadIdentity{FirstName: " Jane ", LastName: " Doe "}, "Jane Doe"},
		{"empty", LeadIdentity{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.lead.FullName())
		})
	}
}

func TestLeadIdentity_Trimmed(t *testing.T) {
	l := LeadIdentity{Email: " a@b.com ", FirmName: "Acme\t", DeclaredTitle: " VP "}.Trimmed()
	assert.Equal(t, "a@b.com", l.Email)
	assert.Equal(t, "Acme", l.FirmName)
	assert.Equal(t, "VP", l.DeclaredTitle)
}

func TestLeadStatusValid(t *testing.T) {
	for _, s := range []LeadStatus{LeadStatusQueued, LeadStatusRunning, LeadStatusCompleted, LeadStatusError} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, LeadStatus("paused").Valid())
}

func TestTokenUsageAdd(t *testing.T) {
	u := TokenUsage{InputTokens: 10, OutputTokens: 5, Cost: 0.01}
	u.Add(TokenUsage{InputTokens: 1, OutputTokens: 2, CacheReadTokens: 3, Cost: 0.02})
	assert.Equal(t, 11, u.InputTokens)
	assert.Equal(t, 7, u.OutputTokens)
	assert.Equal(t, 3, u.CacheReadTokens)
	assert.InDelta(t, 0.03, u.Cost, 1e-9)
}

func TestEvidenceBundle_Empty(t *testing.T) {
	var nilBundle *EvidenceBundle
	assert.True(t, nilBundle.Empty())
	assert.True(t, EmptyEvidence("q").Empty())
	assert.Equal(t, "q", EmptyEvidence("q").Query)
	assert.False(t, (&EvidenceBundle{RawText: "x"}).Empty())
	assert.False(t, (&EvidenceBundle{Fragments: []EvidenceFragment{{URL: "u"}}}).Empty())
}

func TestLocation_IsZero(t *testing.T) {
	assert.True(t, Location{}.IsZero())
	assert.False(t, Location{Zip: "10001"}.IsZero())
}
