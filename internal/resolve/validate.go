package resolve

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-refinery/internal/model"
	"github.com/sells-group/lead-refinery/internal/taxonomy"
)

// ErrTaxonomyIDUnresolved marks a classifier id that is not in the
// registry. It is recovered locally and reported as a warning.
var ErrTaxonomyIDUnresolved = eris.New("resolve: taxonomy id unresolved")

// Confidence bands for the derived intent signal.
const (
	highIntentAbove   = 70
	mediumIntentFrom  = 40
	noEvidenceMaxConf = 39
)

// Warning is a data-quality problem recovered during validation.
type Warning struct {
	Kind  taxonomy.Kind
	Value string
}

func (w Warning) Error() string {
	return fmt.Sprintf("%s id %q not in taxonomy", w.Kind, w.Value)
}

// Unwrap lets errors.Is match ErrTaxonomyIDUnresolved.
func (w Warning) Unwrap() error { return ErrTaxonomyIDUnresolved }

// IntentForConfidence derives the intent label from a 0-100 confidence.
func IntentForConfidence(confidence float64) model.IntentSignal {
	switch {
	case confidence > highIntentAbove:
		return model.IntentHigh
	case confidence >= mediumIntentFrom:
		return model.IntentMedium
	}
	return model.IntentLow
}

var linkedInProfile = regexp.MustCompile(`(?i)^https?://(?:[a-z]{2,3}\.)?linkedin\.com/in/[a-z0-9_%-]+/?`)

var allowedSalutations = map[string]string{
	"mr": "Mr.", "ms": "Ms.", "mrs": "Mrs.", "dr": "Dr.", "prof": "Prof.", "mx": "Mx.",
}

// Validate turns raw classifier output into trusted intel. It is pure: the
// registry is the only source of taxonomy rows, and deterministic rules
// override the classifier wherever they apply.
func Validate(identity model.LeadIdentity, evidence *model.EvidenceBundle, raw RawClassification, reg *taxonomy.Registry) (model.ResolutionIntel, []Warning) {
	var warnings []Warning

	title := strings.TrimSpace(raw.StandardTitle)
	if title == "" {
		title = identity.DeclaredTitle
	}
	title = NormalizeTitle(title)
	if title == "" {
		title = NormalizeTitle(identity.DeclaredTitle)
	}

	intel := model.ResolutionIntel{StandardTitle: title}

	// Job level: unknown ids are reported, then the title rule decides
	// using the more senior of the resolved and declared titles.
	if _, ok := reg.JobLevel(raw.JobLevelID); !ok {
		warnings = append(warnings, Warning{Kind: taxonomy.KindJobLevel, Value: raw.JobLevelID})
	}
	rank := LevelRankForTitle(title)
	if identity.DeclaredTitle != "" {
		rank = min(rank, LevelRankForTitle(identity.DeclaredTitle))
	}
	level, ok := reg.LevelByRank(rank)
	if !ok {
		level = reg.LowestLevel()
	}
	intel.Level = level
	intel.JobLevelID = level.ID

	// Function: read back one row by id.
	var fn *model.FunctionTaxon
	if id := strings.TrimSpace(raw.FunctionTaxonomyID); id != "" {
		if row, ok := reg.Function(id); ok {
			fn = &row
		} else {
			warnings = append(warnings, Warning{Kind: taxonomy.KindFunction, Value: id})
		}
	}
	if IsMarketingTitle(title) || IsMarketingTitle(identity.DeclaredTitle) {
		if fn == nil || strings.EqualFold(fn.F0, "Sales") {
			fn = nil
			if rows := reg.FunctionsByF0("Marketing"); len(rows) > 0 {
				fn = &rows[0]
			}
		}
	}
	if fn != nil {
		intel.Function = fn
		intel.FunctionTaxonomyID = fn.ID
	}

	// Industry.
	if id := strings.TrimSpace(raw.IndustryID); id != "" {
		if row, ok := reg.Industry(id); ok {
			intel.Industry = &row
			intel.IndustryID = row.ID
		} else {
			warnings = append(warnings, Warning{Kind: taxonomy.KindIndustry, Value: id})
		}
	}

	intel.Location, intel.LocationFromHQ = resolveLocation(raw.Location, raw.HQ)

	conf := raw.Confidence
	if math.IsNaN(conf) {
		conf = 0
	}
	conf = math.Max(0, math.Min(100, conf))
	if evidence.Empty() {
		conf = math.Min(conf, noEvidenceMaxConf)
	}
	intel.Confidence = conf
	intel.IntentSignal = IntentForConfidence(conf)

	intel.LinkedInURL = resolveLinkedIn(identity.FirmName, raw, evidence)
	intel.Salutation = resolveSalutation(raw.Salutation)
	intel.Phone = strings.TrimSpace(raw.Phone)
	intel.AlternateProfile = cleanURL(raw.AlternateProfileURL)

	return intel, warnings
}

func toLocation(r RawLocation) model.Location {
	return model.Location{
		City:    strings.TrimSpace(r.City),
		State:   strings.TrimSpace(r.State),
		Country: strings.TrimSpace(r.Country),
		Zip:     strings.TrimSpace(r.Zip),
	}
}

// resolveLocation prefers the individual's location and falls back to the
// firm headquarters. A missing ZIP is taken from HQ only when HQ is in the
// same city and state.
func resolveLocation(individual, hq RawLocation) (model.Location, bool) {
	ind := toLocation(individual)
	head := toLocation(hq)

	if ind.City == "" && ind.State == "" && ind.Country == "" {
		if head.IsZero() {
			return model.Location{}, false
		}
		return head, true
	}
	if (ind.Zip == "" || isPlaceholderZip(ind.Zip)) && head.Zip != "" &&
		strings.EqualFold(ind.City, head.City) && strings.EqualFold(ind.State, head.State) {
		ind.Zip = head.Zip
		if ind.Country == "" {
			ind.Country = head.Country
		}
	}
	return ind, false
}

func isPlaceholderZip(z string) bool {
	return z == "00000" || z == "99999"
}

// resolveLinkedIn keeps a profile URL only when it can be tied to the
// current employer: the classifier read the firm off the profile, or the
// URL shows up in evidence that names the firm.
func resolveLinkedIn(firm string, raw RawClassification, evidence *model.EvidenceBundle) *string {
	if u := canonicalLinkedIn(raw.LinkedInURL); u != "" {
		if raw.LinkedInEmployer != "" {
			if FirmMatches(raw.LinkedInEmployer, firm) {
				return &u
			}
			return nil
		}
		if evidenceLinksFirm(u, firm, evidence) {
			return &u
		}
		return nil
	}

	if evidence.Empty() {
		return nil
	}
	for _, f := range evidence.Fragments {
		if u := canonicalLinkedIn(f.URL); u != "" && mentionsFirm(f.Title+" "+f.Snippet, firm) {
			return &u
		}
	}
	return nil
}

func canonicalLinkedIn(u string) string {
	m := linkedInProfile.FindString(strings.TrimSpace(u))
	return strings.TrimSuffix(m, "/")
}

func evidenceLinksFirm(u, firm string, evidence *model.EvidenceBundle) bool {
	if evidence.Empty() {
		return false
	}
	key := strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(u, "https://"), "http://"))
	for _, f := range evidence.Fragments {
		if strings.Contains(strings.ToLower(f.URL), key) && mentionsFirm(f.Title+" "+f.Snippet, firm) {
			return true
		}
	}
	return false
}

var corporateSuffixes = map[string]bool{
	"inc": true, "incorporated": true, "llc": true, "llp": true, "lp": true,
	"ltd": true, "limited": true, "corp": true, "corporation": true,
	"co": true, "company": true, "plc": true, "gmbh": true, "ag": true,
	"sa": true, "bv": true, "nv": true, "group": true, "holdings": true,
	"the": true,
}

func firmKey(name string) string {
	name = strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == ' ' {
			return r
		}
		return ' '
	}, strings.ToLower(name))
	var kept []string
	for _, w := range strings.Fields(name) {
		if !corporateSuffixes[w] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// FirmMatches reports whether two employer names refer to the same firm,
// ignoring case, punctuation, and corporate suffixes.
func FirmMatches(a, b string) bool {
	ka, kb := firmKey(a), firmKey(b)
	if ka == "" || kb == "" {
		return false
	}
	if ka == kb {
		return true
	}
	if len(ka) < 3 || len(kb) < 3 {
		return false
	}
	return strings.Contains(" "+ka+" ", " "+kb+" ") || strings.Contains(" "+kb+" ", " "+ka+" ")
}

func mentionsFirm(text, firm string) bool {
	k := firmKey(firm)
	if k == "" {
		return false
	}
	return strings.Contains(" "+firmKey(text)+" ", " "+k+" ")
}

func resolveSalutation(s string) *string {
	key := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(s), "."))
	if v, ok := allowedSalutations[key]; ok {
		return &v
	}
	return nil
}

func cleanURL(u string) string {
	u = strings.TrimSpace(u)
	if strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "http://") {
		return u
	}
	return ""
}
