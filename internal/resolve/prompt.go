package resolve

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sells-group/lead-refinery/internal/model"
	"github.com/sells-group/lead-refinery/internal/taxonomy"
)

// maxRawTextLen bounds the unstructured evidence text sent to the classifier.
const maxRawTextLen = 6000

const governanceRules = `You are an institutional identity resolution engine. You map one professional to the closest matching entries of the closed taxonomies below. You MUST NOT invent values: every id you return must be copied verbatim from the taxonomies, or left empty when nothing fits.

Governance rules:
1. Title normalization. Expand every seniority and department abbreviation (VP -> Vice President, SVP -> Senior Vice President, CEO -> Chief Executive Officer, Mktg -> Marketing, Sr -> Senior). Capitalize each word. Use commas as the only punctuation; never hyphens, slashes or ampersands. Order the parts as Seniority, Department, Location. Example: "Vice President, Marketing, EMEA".
2. Job level. Founder, Owner, Board and C-level titles are level rank 1. President, EVP, SVP and VP titles are rank 2. Director and Executive Director titles are rank 3. Everything else is rank 4.
3. Function. Choose exactly one function row by its id. Never combine f0, f1 and f2 from different rows. A marketing title must never be mapped to a Sales row.
4. Industry. Choose exactly one industry row by its id for the person's current employer.
5. Location. Report the person's own work location when evidence states it. Always report the employer's headquarters address separately in "hq" when evidence states it. Never use "00000" or "99999" as a ZIP; leave it empty instead.
6. LinkedIn. Only return a linkedin.com/in/ profile URL whose current employer is the firm given. Put that employer's name in "linkedin_employer". If the profile shows a different or former employer, return an empty URL.
7. Confidence is an integer 0-100 reflecting how well the evidence supports the whole resolution. With no evidence beyond the declared title, confidence must be below 40.
8. Salutation is one of Mr., Ms., Mrs., Dr., Prof. or Mx. only when evidence states it; otherwise empty.`

const outputSchema = `Respond with ONLY valid JSON in this exact shape, no prose and no code fences:
{
  "standard_title": "<normalized title>",
  "job_level_id": "<id from JOB_LEVELS>",
  "function_taxonomy_id": "<id from FUNCTIONS or empty>",
  "industry_id": "<id from INDUSTRIES or empty>",
  "location": {"city": "", "state": "", "country": "", "zip": ""},
  "hq": {"city": "", "state": "", "country": "", "zip": ""},
  "confidence": <0-100>,
  "linkedin_url": "<url or empty>",
  "linkedin_employer": "<employer shown on the profile or empty>",
  "intent_signal": "<Low|Medium|High>",
  "salutation": "<salutation or empty>",
  "phone": "<business phone or empty>",
  "alternate_profile_url": "<other professional profile url or empty>"
}`

// reparseInstruction is sent once when the first answer cannot be parsed.
const reparseInstruction = `Your previous answer was not valid JSON for the required shape. Return ONLY the JSON object described in the instructions, with every field present, and nothing else.`

// SystemPrompt returns the static instructions: governance rules, output
// shape, and the complete taxonomies. It is identical for every lead.
func SystemPrompt(reg *taxonomy.Registry) string {
	var sb strings.Builder
	sb.WriteString(governanceRules)
	sb.WriteString("\n\n")
	sb.WriteString(outputSchema)
	sb.WriteString(fmt.Sprintf("\n\nTAXONOMIES (version %s):\n", reg.Version()))
	writeJSON(&sb, "JOB_LEVELS", reg.JobLevels())
	writeJSON(&sb, "FUNCTIONS", reg.Functions())
	writeJSON(&sb, "INDUSTRIES", reg.Industries())
	return sb.String()
}

func writeJSON(sb *strings.Builder, label string, v any) {
	b, _ := json.Marshal(v)
	sb.WriteString("- ")
	sb.WriteString(label)
	sb.WriteString(": ")
	sb.Write(b)
	sb.WriteString("\n")
}

// BuildUserMessage renders the lead and its evidence for classification.
func BuildUserMessage(identity model.LeadIdentity, evidence *model.EvidenceBundle) string {
	var sb strings.Builder
	sb.WriteString("LEAD:\n")
	sb.WriteString(fmt.Sprintf("Name: %s\n", identity.FullName()))
	sb.WriteString(fmt.Sprintf("Firm: %s\n", identity.FirmName))
	sb.WriteString(fmt.Sprintf("Declared Title: %s\n", identity.DeclaredTitle))
	if identity.Website != "" {
		sb.WriteString(fmt.Sprintf("Website: %s\n", identity.Website))
	}

	if evidence.Empty() {
		sb.WriteString("\nEVIDENCE: none found. Resolve from the declared title alone.\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("\nSEARCH QUERY: %s\n", evidence.Query))
	if len(evidence.Fragments) > 0 {
		frags, _ := json.Marshal(evidence.Fragments)
		sb.WriteString("EVIDENCE FRAGMENTS:\n")
		sb.Write(frags)
		sb.WriteString("\n")
	}
	if raw := strings.TrimSpace(evidence.RawText); raw != "" {
		raw = model.ClipText(raw, maxRawTextLen)
		sb.WriteString("RAW EVIDENCE TEXT:\n")
		sb.WriteString(raw)
		sb.WriteString("\n")
	}
	return sb.String()
}
