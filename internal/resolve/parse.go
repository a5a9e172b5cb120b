package resolve

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// RawLocation is a location as the classifier reported it.
type RawLocation struct {
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
	Zip     string `json:"zip"`
}

// RawClassification is the fixed output shape requested from the
// classifier. Nothing in it is trusted until Validate has run.
type RawClassification struct {
	StandardTitle       string      `json:"standard_title"`
	JobLevelID          string      `json:"job_level_id"`
	FunctionTaxonomyID  string      `json:"function_taxonomy_id"`
	IndustryID          string      `json:"industry_id"`
	Location            RawLocation `json:"location"`
	HQ                  RawLocation `json:"hq"`
	Confidence          float64     `json:"confidence"`
	LinkedInURL         string      `json:"linkedin_url"`
	LinkedInEmployer    string      `json:"linkedin_employer"`
	IntentSignal        string      `json:"intent_signal"`
	Salutation          string      `json:"salutation"`
	Phone               string      `json:"phone"`
	AlternateProfileURL string      `json:"alternate_profile_url"`
}

var errSchema = eris.New("resolve: classifier output does not match schema")

// ParseClassification extracts the JSON object from classifier text and
// checks the required fields. It returns the cleaned JSON for provenance.
func ParseClassification(text string) (RawClassification, json.RawMessage, error) {
	cleaned := cleanJSON(text)
	if cleaned == "" || !strings.HasPrefix(cleaned, "{") {
		return RawClassification{}, nil, eris.Wrap(errSchema, "no JSON object found")
	}

	// Presence check first: a missing key and a zero value look the same
	// after decoding into the struct.
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &keys); err != nil {
		return RawClassification{}, nil, eris.Wrap(err, "resolve: unmarshal classification")
	}
	for _, k := range []string{"standard_title", "job_level_id", "confidence"} {
		v, ok := keys[k]
		if !ok || string(v) == "null" {
			return RawClassification{}, nil, eris.Wrapf(errSchema, "missing %q", k)
		}
	}

	var raw RawClassification
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return RawClassification{}, nil, eris.Wrap(err, "resolve: unmarshal classification")
	}
	return raw, json.RawMessage(cleaned), nil
}

// cleanJSON strips markdown fences and extracts the JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
