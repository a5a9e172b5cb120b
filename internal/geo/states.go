package geo

import "strings"

var usStates = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas", "CA": "California",
	"CO": "Colorado", "CT": "Connecticut", "DE": "Delaware", "DC": "District of Columbia",
	"FL": "Florida", "GA": "Georgia", "HI": "Hawaii", "ID": "Idaho", "IL": "Illinois",
	"IN": "Indiana", "IA": "Iowa", "KS": "Kansas", "KY": "Kentucky", "LA": "Louisiana",
	"ME": "Maine", "MD": "Maryland", "MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota",
	"MS": "Mississippi", "MO": "Missouri", "MT": "Montana", "NE": "Nebraska", "NV": "Nevada",
	"NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico", "NY": "New York",
	"NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio", "OK": "Oklahoma", "OR": "Oregon",
	"PA": "Pennsylvania", "RI": "Rhode Island", "SC": "South Carolina", "SD": "South Dakota",
	"TN": "Tennessee", "TX": "Texas", "UT": "Utah", "VT": "Vermont", "VA": "Virginia",
	"WA": "Washington", "WV": "West Virginia", "WI": "Wisconsin", "WY": "Wyoming",
}

var caProvinces = map[string]string{
	"AB": "Alberta", "BC": "British Columbia", "MB": "Manitoba", "NB": "New Brunswick",
	"NL": "Newfoundland and Labrador", "NS": "Nova Scotia", "ON": "Ontario",
	"PE": "Prince Edward Island", "QC": "Quebec", "SK": "Saskatchewan",
}

var auStates = map[string]string{
	"NSW": "New South Wales", "QLD": "Queensland", "VIC": "Victoria", "TAS": "Tasmania",
	"ACT": "Australian Capital Territory",
}

var inStates = []string{
	"Maharashtra", "Karnataka", "Tamil Nadu", "Telangana", "Kerala", "Gujarat",
	"Uttar Pradesh", "West Bengal", "Haryana", "Punjab", "Rajasthan", "Andhra Pradesh",
	"Madhya Pradesh", "Odisha", "Bihar",
}

type stateEntry struct {
	country string
	name    string
}

var stateIndex = func() map[string]stateEntry {
	idx := make(map[string]stateEntry, 128)
	add := func(code, name, country string) {
		e := stateEntry{country: country, name: name}
		if code != "" {
			idx[strings.ToLower(code)] = e
		}
		idx[strings.ToLower(name)] = e
	}
	// Later tables never overwrite earlier keys; two-letter US codes win
	// over the few Canadian and Australian collisions.
	for code, name := range usStates {
		add(code, name, "United States")
	}
	for code, name := range caProvinces {
		if _, taken := idx[strings.ToLower(code)]; taken {
			code = ""
		}
		add(code, name, "Canada")
	}
	for code, name := range auStates {
		add(code, name, "Australia")
	}
	idx["western australia"] = stateEntry{country: "Australia", name: "Western Australia"}
	idx["south australia"] = stateEntry{country: "Australia", name: "South Australia"}
	idx["northern territory"] = stateEntry{country: "Australia", name: "Northern Territory"}
	for _, name := range inStates {
		add("", name, "India")
	}
	return idx
}()

// CountryForState resolves the country for a state or province name or
// postal abbreviation. Ambiguous codes resolve to the United States.
func CountryForState(state string) (string, bool) {
	e, ok := stateIndex[strings.ToLower(strings.TrimSpace(state))]
	if !ok {
		return "", false
	}
	return e.country, true
}

// StateName expands a state abbreviation to its full name. Unknown input
// is returned trimmed.
func StateName(state string) string {
	e, ok := stateIndex[strings.ToLower(strings.TrimSpace(state))]
	if !ok {
		return strings.TrimSpace(state)
	}
	return e.name
}
