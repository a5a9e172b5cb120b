package model

import "unicode/utf8"

// EvidenceFragment is a single ranked search hit.
type EvidenceFragment struct {
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Title   string `json:"title,omitempty"`
}

// EvidenceBundle is what discovery produced for one resolution attempt.
// It is never stored on its own; it travels inside the record provenance.
type EvidenceBundle struct {
	Query     string             `json:"query"`
	Fragments []EvidenceFragment `json:"fragments"`
	RawText   string             `json:"raw_text,omitempty"`
	Source    string             `json:"source,omitempty"`

	// Tokens is provider-reported usage, kept for cost attribution only.
	Tokens int `json:"-"`
}

// Empty reports whether the bundle carries no usable evidence.
func (e *EvidenceBundle) Empty() bool {
	return e == nil || (len(e.Fragments) == 0 && e.RawText == "")
}

// EmptyEvidence returns a bundle with the query recorded and no evidence,
// used when discovery is unavailable.
func EmptyEvidence(query string) *EvidenceBundle {
	return &EvidenceBundle{Query: query, Fragments: []EvidenceFragment{}}
}

// ClipText cuts s to at most n bytes without splitting a UTF-8 sequence.
func ClipText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 0 {
		return ""
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
