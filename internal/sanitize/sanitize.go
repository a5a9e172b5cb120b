// Package sanitize applies the per-field cleanup rules to validated intel
// before it is assembled into a record.
package sanitize

import (
	"strings"

	"github.com/sells-group/lead-refinery/internal/geo"
	"github.com/sells-group/lead-refinery/internal/model"
)

// VerifiedAbove is the confidence a resolution must exceed to be marked
// verified.
const VerifiedAbove = 85

// Sanitize normalizes validated intel into storable field values. Optional
// strings come back as "" and optional links as nil, never both.
func Sanitize(intel model.ResolutionIntel) model.SanitizedFields {
	state := strings.TrimSpace(intel.Location.State)
	country := strings.TrimSpace(intel.Location.Country)
	if country == "" && state != "" {
		if c, ok := geo.CountryForState(state); ok {
			country = c
		}
	}
	if country != "" {
		country = geo.NormalizeCountry(country)
	}

	region := geo.RegionGlobal
	if country != "" {
		region = geo.RegionForCountry(country)
	}

	return model.SanitizedFields{
		StandardTitle:    strings.TrimSpace(intel.StandardTitle),
		City:             strings.TrimSpace(intel.Location.City),
		State:            state,
		Country:          country,
		Zip:              Zip(intel.Location.Zip),
		Region:           region,
		Phone:            strings.TrimSpace(intel.Phone),
		Salutation:       optional(intel.Salutation),
		LinkedInURL:      optional(intel.LinkedInURL),
		AlternateProfile: strings.TrimSpace(intel.AlternateProfile),
		IntentScore:      intel.Confidence,
		IntentSignal:     intel.IntentSignal,
		IsVerified:       intel.Confidence > VerifiedAbove,
	}
}

// Zip returns a cleaned postal code, or "" for placeholders and values that
// cannot be a postal code.
func Zip(z string) string {
	z = strings.TrimSpace(z)
	if len(z) < 3 || len(z) > 10 {
		return ""
	}
	if isRepeatedDigit(z) {
		return ""
	}
	for _, r := range z {
		if !isPostalRune(r) {
			return ""
		}
	}
	return z
}

// isRepeatedDigit catches "00000", "99999", "11111" and the like.
func isRepeatedDigit(z string) bool {
	if len(z) != 5 {
		return false
	}
	for i := 1; i < len(z); i++ {
		if z[i] != z[0] {
			return false
		}
	}
	return z[0] >= '0' && z[0] <= '9'
}

func isPostalRune(r rune) bool {
	return r >= '0' && r <= '9' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r == ' ' || r == '-'
}

func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
