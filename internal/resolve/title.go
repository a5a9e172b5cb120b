package resolve

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/lead-refinery/internal/geo"
)

// abbreviations expands seniority and department short forms. Keys are
// lowercase with periods removed.
var abbreviations = map[string]string{
	"vp":        "Vice President",
	"svp":       "Senior Vice President",
	"evp":       "Executive Vice President",
	"avp":       "Assistant Vice President",
	"rvp":       "Regional Vice President",
	"ceo":       "Chief Executive Officer",
	"cfo":       "Chief Financial Officer",
	"coo":       "Chief Operating Officer",
	"cto":       "Chief Technology Officer",
	"cio":       "Chief Information Officer",
	"cmo":       "Chief Marketing Officer",
	"cro":       "Chief Revenue Officer",
	"cso":       "Chief Strategy Officer",
	"cpo":       "Chief Product Officer",
	"cdo":       "Chief Data Officer",
	"cco":       "Chief Commercial Officer",
	"ciso":      "Chief Information Security Officer",
	"chro":      "Chief Human Resources Officer",
	"md":        "Managing Director",
	"gm":        "General Manager",
	"pres":      "President",
	"dir":       "Director",
	"mgr":       "Manager",
	"mngr":      "Manager",
	"sr":        "Senior",
	"snr":       "Senior",
	"jr":        "Junior",
	"exec":      "Executive",
	"asst":      "Assistant",
	"assoc":     "Associate",
	"mktg":      "Marketing",
	"mkt":       "Marketing",
	"ops":       "Operations",
	"hr":        "Human Resources",
	"it":        "Information Technology",
	"bd":        "Business Development",
	"bizdev":    "Business Development",
	"pr":        "Public Relations",
	"eng":       "Engineering",
	"engg":      "Engineering",
	"fin":       "Finance",
	"acct":      "Accounting",
	"admin":     "Administration",
	"tech":      "Technology",
	"intl":      "International",
	"natl":      "National",
	"govt":      "Government",
	"mfg":       "Manufacturing",
	"cofounder": "Co Founder",
}

// seniorityWords may open a title as part of its seniority phrase.
var seniorityWords = map[string]bool{
	"senior": true, "junior": true, "executive": true, "assistant": true,
	"associate": true, "deputy": true, "principal": true, "managing": true,
	"general": true, "regional": true, "group": true, "interim": true,
	"acting": true, "vice": true, "chief": true, "co": true, "owner": true,
	"board": true, "member": true, "director": true, "manager": true,
	"president": true, "head": true, "officer": true, "founder": true,
	"chairman": true, "chairwoman": true, "chair": true, "partner": true,
}

// roleNouns may close a title as the seniority phrase, as in
// "Marketing Director".
var roleNouns = map[string]bool{
	"director": true, "manager": true, "president": true, "head": true,
	"officer": true, "founder": true, "chairman": true, "chairwoman": true,
	"chair": true, "partner": true,
}

var connectors = map[string]bool{
	"and": true, "of": true, "for": true, "the": true, "to": true,
	"in": true, "at": true, "with": true,
}

var locationTerms = map[string]bool{
	"emea": true, "apac": true, "latam": true, "amer": true, "americas": true,
	"anz": true, "global": true, "north america": true, "south america": true,
	"latin america": true, "europe": true, "asia": true, "asia pacific": true,
	"middle east": true, "africa": true, "international": true,
	"worldwide": true, "east": true, "west": true, "north": true, "south": true,
	"central": true, "northeast": true, "northwest": true, "southeast": true,
	"southwest": true, "midwest": true, "east coast": true, "west coast": true,
	"dach": true, "nordics": true, "benelux": true,
}

// segmentSep splits a raw title into parts. Hyphens only split when spaced;
// a hyphen inside a word becomes a space later.
var segmentSep = regexp.MustCompile(`\s+[-–—]\s+|[,/|;:()\[\]]+`)

// ofSplit splits "Director of Marketing" style phrases.
var ofSplit = regexp.MustCompile(`(?i)\s+(?:of|for)\s+`)

// NormalizeTitle rewrites a free-form job title into canonical form:
// abbreviations expanded, each word capitalized, commas as the only
// punctuation, parts ordered Seniority, Department, Location.
func NormalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}
	title = strings.ReplaceAll(title, "&", " and ")
	title = strings.ReplaceAll(title, "+", " and ")

	var seniority, department, location []string
	for _, seg := range splitSegments(title) {
		for _, words := range splitAnd(expandWords(seg)) {
			s, d, l := classifySegment(words)
			seniority = appendPhrases(seniority, s...)
			department = appendPhrases(department, d...)
			location = appendPhrases(location, l...)
		}
	}

	parts := make([]string, 0, len(seniority)+len(department)+len(location))
	parts = append(parts, seniority...)
	parts = append(parts, department...)
	parts = append(parts, location...)
	return strings.Join(parts, ", ")
}

func splitSegments(title string) []string {
	var out []string
	for _, seg := range segmentSep.Split(title, -1) {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		out = append(out, splitOf(seg)...)
	}
	return out
}

// splitOf breaks a segment at "of"/"for" when the left side ends in a role
// noun, so "Chief of Staff" stays whole.
func splitOf(seg string) []string {
	loc := ofSplit.FindStringIndex(seg)
	if loc == nil {
		return []string{seg}
	}
	left := strings.Fields(seg[:loc[0]])
	if len(left) == 0 {
		return []string{seg}
	}
	last := strings.ToLower(strings.Trim(left[len(left)-1], "."))
	if !roleNouns[last] && abbreviations[last] == "" {
		return []string{seg}
	}
	return append([]string{seg[:loc[0]]}, splitOf(seg[loc[1]:])...)
}

// expandWords tokenizes a segment, expands abbreviations, and applies
// capitalization. Stray punctuation is dropped.
func expandWords(seg string) []string {
	seg = strings.Map(func(r rune) rune {
		switch {
		case r == '-' || r == '_':
			return ' '
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '.' || r == '\'':
			return r
		}
		return ' '
	}, seg)

	title := cases.Title(language.English)
	var out []string
	for _, tok := range strings.Fields(seg) {
		key := strings.ToLower(strings.Trim(tok, ".'"))
		if key == "" {
			continue
		}
		if exp, ok := abbreviations[key]; ok {
			out = append(out, strings.Fields(exp)...)
			continue
		}
		clean := strings.ReplaceAll(tok, ".", "")
		switch {
		case isAcronym(clean):
			out = append(out, clean)
		case connectors[key] && len(out) > 0:
			out = append(out, key)
		default:
			out = append(out, title.String(key))
		}
	}
	return out
}

// splitAnd separates joined titles such as "Founder and Chief Executive
// Officer" while leaving "Sales and Marketing" alone: it only splits when
// both sides carry a seniority word.
func splitAnd(words []string) [][]string {
	if len(words) == 0 {
		return nil
	}
	for i, w := range words {
		if w != "and" || i == 0 || i == len(words)-1 {
			continue
		}
		if hasSeniority(words[:i]) && hasSeniority(words[i+1:]) {
			return append([][]string{words[:i]}, splitAnd(words[i+1:])...)
		}
	}
	return [][]string{words}
}

func hasSeniority(words []string) bool {
	for _, w := range words {
		lw := strings.ToLower(w)
		if roleNouns[lw] || lw == "chief" || lw == "owner" || lw == "board" {
			return true
		}
	}
	return false
}

// isAcronym treats short all-caps tokens like "EMEA" or "AWS" as acronyms.
func isAcronym(tok string) bool {
	if len(tok) < 2 || len(tok) > 5 {
		return false
	}
	hasLetter := false
	for _, r := range tok {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

// classifySegment splits one segment's words into seniority, department,
// and location phrases.
func classifySegment(words []string) (seniority, department, location []string) {
	lower := make([]string, len(words))
	for i, w := range words {
		lower[i] = strings.ToLower(w)
	}

	// Chief titles are kept whole: "Chief Marketing Officer", "Chief of Staff".
	if lower[0] == "chief" {
		return []string{strings.Join(words, " ")}, nil, nil
	}

	lead := 0
	for lead < len(words) && seniorityWords[lower[lead]] {
		lead++
	}
	rest := words[lead:]

	// Location comes last: "EMEA", "Sales EMEA", "Sales Manager North America".
	if len(rest) > 0 && isLocation(strings.Join(rest, " ")) {
		location = []string{strings.Join(rest, " ")}
		rest = nil
	}
	for n := 2; n >= 1 && location == nil; n-- {
		if len(rest) > n && isLocation(strings.Join(rest[len(rest)-n:], " ")) {
			location = []string{strings.Join(rest[len(rest)-n:], " ")}
			rest = rest[:len(rest)-n]
		}
	}

	trail := len(rest)
	for trail > 0 && roleNouns[strings.ToLower(rest[trail-1])] {
		trail--
	}

	if lead > 0 {
		seniority = append(seniority, strings.Join(words[:lead], " "))
	}
	if trail < len(rest) {
		seniority = append(seniority, strings.Join(rest[trail:], " "))
	}
	// "Senior Marketing Manager" reads as "Senior Manager, Marketing".
	if len(seniority) == 2 && isModifierRun(lower[:lead]) {
		seniority = []string{seniority[0] + " " + seniority[1]}
	}

	if mid := trimConnectors(rest[:trail]); len(mid) > 0 {
		department = []string{strings.Join(mid, " ")}
	}
	return seniority, department, location
}

// isModifierRun reports whether every word only qualifies a role noun.
func isModifierRun(words []string) bool {
	for _, w := range words {
		if roleNouns[w] || w == "owner" || w == "board" || w == "member" {
			return false
		}
	}
	return len(words) > 0
}

func trimConnectors(words []string) []string {
	for len(words) > 0 && connectors[strings.ToLower(words[0])] {
		words = words[1:]
	}
	for len(words) > 0 && connectors[strings.ToLower(words[len(words)-1])] {
		words = words[:len(words)-1]
	}
	return words
}

func isLocation(phrase string) bool {
	p := strings.ToLower(strings.TrimSpace(phrase))
	if p == "" {
		return false
	}
	if locationTerms[p] {
		return true
	}
	// Short codes are too ambiguous inside titles ("IT", "PR", "ART").
	if len(p) <= 3 {
		return p == "us" || p == "uk" || p == "usa"
	}
	if geo.CountryCode(p) != "" {
		return true
	}
	_, ok := geo.CountryForState(p)
	return ok
}

func appendPhrases(dst []string, phrases ...string) []string {
	for _, p := range phrases {
		if p == "" || contains(dst, p) {
			continue
		}
		dst = append(dst, p)
	}
	return dst
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// titleWords returns the lowercase words of the normalized title padded
// with spaces for whole-phrase matching.
func titleWords(title string) string {
	n := strings.ToLower(NormalizeTitle(title))
	n = strings.ReplaceAll(n, ",", " ")
	return " " + strings.Join(strings.Fields(n), " ") + " "
}

func hasPhrase(words, phrase string) bool {
	return strings.Contains(words, " "+phrase+" ")
}

// LevelRankForTitle maps a title to a job level rank by keyword class,
// matching the registry's title patterns. Founder, Owner, Board, C-level,
// Managing Director and Partner titles are 1; President, Vice President and
// Head of titles are 2; Director, General Manager, Product Owner and Chief
// of Staff titles are 3; anything else is 4.
func LevelRankForTitle(title string) int {
	w := titleWords(title)
	switch {
	case hasPhrase(w, "founder"),
		hasPhrase(w, "owner") && !hasPhrase(w, "product owner") && !hasPhrase(w, "process owner"),
		hasPhrase(w, "board"),
		hasPhrase(w, "chairman"), hasPhrase(w, "chairwoman"), hasPhrase(w, "chair"),
		hasPhrase(w, "cxo"),
		hasPhrase(w, "chief") && hasPhrase(w, "officer"),
		hasPhrase(w, "managing director"),
		isPartnerTitle(w):
		return 1
	case hasPhrase(w, "president"),
		hasPhrase(w, "head"):
		return 2
	case hasPhrase(w, "director"),
		hasPhrase(w, "general manager"),
		hasPhrase(w, "product owner"),
		hasPhrase(w, "chief of staff"):
		return 3
	}
	return 4
}

// isPartnerTitle matches firm partners, not partnership or channel roles
// such as "Partner Manager".
func isPartnerTitle(w string) bool {
	if !hasPhrase(w, "partner") {
		return false
	}
	for _, q := range []string{"manager", "specialist", "associate", "engineer", "consultant", "account"} {
		if hasPhrase(w, q) {
			return false
		}
	}
	return true
}

// IsMarketingTitle reports whether a title names a marketing role.
func IsMarketingTitle(title string) bool {
	w := titleWords(title)
	return hasPhrase(w, "marketing") || hasPhrase(w, "brand")
}
