// Package export writes vault records to spreadsheets.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/lead-refinery/internal/model"
)

// SheetName is the worksheet name of an XLSX export.
const SheetName = "Refinery Export"

type column struct {
	name  string
	value func(*model.EnrichedRecord) string
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func ts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func float(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// columns is the fixed export order.
var columns = []column{
	{"job_id", func(r *model.EnrichedRecord) string { return r.JobID }},
	{"raw_lead_id", func(r *model.EnrichedRecord) string { return r.RawLeadID }},
	{"email", func(r *model.EnrichedRecord) string { return r.Email }},
	{"first_name", func(r *model.EnrichedRecord) string { return r.FirstName }},
	{"last_name", func(r *model.EnrichedRecord) string { return r.LastName }},
	{"firm_name", func(r *model.EnrichedRecord) string { return r.FirmName }},
	{"declared_title", func(r *model.EnrichedRecord) string { return r.DeclaredTitle }},
	{"website", func(r *model.EnrichedRecord) string { return r.Website }},
	{"standard_title", func(r *model.EnrichedRecord) string { return r.StandardTitle }},
	{"job_level", func(r *model.EnrichedRecord) string { return strconv.Itoa(r.JobLevel) }},
	{"job_level_id", func(r *model.EnrichedRecord) string { return r.JobLevelID }},
	{"job_level_label", func(r *model.EnrichedRecord) string { return r.JobLevelLabel }},
	{"job_role", func(r *model.EnrichedRecord) string { return str(r.JobRole) }},
	{"job_role_id", func(r *model.EnrichedRecord) string { return str(r.JobRoleID) }},
	{"function_taxonomy_id", func(r *model.EnrichedRecord) string { return str(r.FunctionTaxonomyID) }},
	{"f0", func(r *model.EnrichedRecord) string { return str(r.F0) }},
	{"f1", func(r *model.EnrichedRecord) string { return str(r.F1) }},
	{"f2", func(r *model.EnrichedRecord) string { return str(r.F2) }},
	{"vertical", func(r *model.EnrichedRecord) string { return str(r.Vertical) }},
	{"vertical_id", func(r *model.EnrichedRecord) string { return str(r.VerticalID) }},
	{"industry", func(r *model.EnrichedRecord) string { return str(r.Industry) }},
	{"industry_id", func(r *model.EnrichedRecord) string { return str(r.IndustryID) }},
	{"salutation", func(r *model.EnrichedRecord) string { return str(r.Salutation) }},
	{"city", func(r *model.EnrichedRecord) string { return r.City }},
	{"state", func(r *model.EnrichedRecord) string { return r.State }},
	{"zip", func(r *model.EnrichedRecord) string { return r.Zip }},
	{"country", func(r *model.EnrichedRecord) string { return r.Country }},
	{"region", func(r *model.EnrichedRecord) string { return r.Region }},
	{"phone", func(r *model.EnrichedRecord) string { return r.Phone }},
	{"linkedin_url", func(r *model.EnrichedRecord) string { return str(r.LinkedInURL) }},
	{"alternate_profile_url", func(r *model.EnrichedRecord) string { return r.AlternateProfileURL }},
	{"revenue", func(r *model.EnrichedRecord) string { return str(r.Revenue) }},
	{"intent_score", func(r *model.EnrichedRecord) string { return float(r.IntentScore) }},
	{"intent_signal", func(r *model.EnrichedRecord) string { return string(r.IntentSignal) }},
	{"is_verified", func(r *model.EnrichedRecord) string { return strconv.FormatBool(r.IsVerified) }},
	{"completeness", func(r *model.EnrichedRecord) string { return float(r.Completeness) }},
	{"tenant_id", func(r *model.EnrichedRecord) string { return r.TenantID }},
	{"project_id", func(r *model.EnrichedRecord) string { return r.ProjectID }},
	{"resolution_status", func(r *model.EnrichedRecord) string { return r.ResolutionStatus }},
	{"resolution_error", func(r *model.EnrichedRecord) string { return str(r.ResolutionError) }},
	{"last_synced_at", func(r *model.EnrichedRecord) string { return ts(r.LastSyncedAt) }},
	{"created_at", func(r *model.EnrichedRecord) string { return ts(r.CreatedAt) }},
	{"raw_evidence_json", func(r *model.EnrichedRecord) string {
		b, err := json.Marshal(r.RawEvidence)
		if err != nil {
			return ""
		}
		return string(b)
	}},
}

// Header returns the export column names in order.
func Header() []string {
	h := make([]string, len(columns))
	for i, c := range columns {
		h[i] = c.name
	}
	return h
}

// Row flattens one record in column order.
func Row(rec *model.EnrichedRecord) []string {
	row := make([]string, len(columns))
	for i, c := range columns {
		row[i] = c.value(rec)
	}
	return row
}

// WriteCSV writes a header line and one line per record.
func WriteCSV(w io.Writer, recs []model.EnrichedRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for i := range recs {
		if err := cw.Write(Row(&recs[i])); err != nil {
			return eris.Wrapf(err, "export: write csv row %s", recs[i].RawLeadID)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// BuildXLSX lays records out on a single SheetName worksheet.
func BuildXLSX(recs []model.EnrichedRecord) (*xlsx.File, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return nil, eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, name := range Header() {
		header.AddCell().SetString(name)
	}
	for i := range recs {
		row := sheet.AddRow()
		rec := &recs[i]
		for _, c := range columns {
			cell := row.AddCell()
			switch c.name {
			case "job_level":
				cell.SetInt(rec.JobLevel)
			case "intent_score":
				cell.SetFloat(rec.IntentScore)
			case "completeness":
				cell.SetFloat(rec.Completeness)
			case "is_verified":
				cell.SetBool(rec.IsVerified)
			default:
				cell.SetString(c.value(rec))
			}
		}
	}
	return f, nil
}

// WriteXLSX writes an XLSX workbook to w.
func WriteXLSX(w io.Writer, recs []model.EnrichedRecord) error {
	f, err := BuildXLSX(recs)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(w), "export: write xlsx")
}
