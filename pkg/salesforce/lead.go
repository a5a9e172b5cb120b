package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// LeadObject is the Salesforce object name for leads.
const LeadObject = "Lead"

// queryChunk bounds the number of emails per SOQL IN clause.
const queryChunk = 100

// Lead is the slice of a Salesforce Lead needed to match by email.
type Lead struct {
	ID    string `json:"Id" salesforce:"Id"`
	Email string `json:"Email" salesforce:"Email"`
}

// UpsertResult counts the outcome of UpsertLeadsByEmail.
type UpsertResult struct {
	Created int
	Updated int
	Failed  int
	Errors  []string
}

// FindLeadIDsByEmail maps lowercased email to Lead id for the emails that
// already exist.
func FindLeadIDsByEmail(ctx context.Context, c Client, emails []string) (map[string]string, error) {
	ids := make(map[string]string, len(emails))
	for start := 0; start < len(emails); start += queryChunk {
		end := min(start+queryChunk, len(emails))
		quoted := make([]string, 0, end-start)
		for _, e := range emails[start:end] {
			quoted = append(quoted, "'"+escapeSoql(e)+"'")
		}
		soql := fmt.Sprintf("SELECT Id, Email FROM Lead WHERE Email IN (%s)", strings.Join(quoted, ", "))

		var leads []Lead
		if err := c.Query(ctx, soql, &leads); err != nil {
			return nil, eris.Wrapf(err, "sf: find leads %d-%d", start, end)
		}
		for _, l := range leads {
			ids[strings.ToLower(l.Email)] = l.ID
		}
	}
	return ids, nil
}

// UpsertLeadsByEmail updates Leads whose Email already exists and inserts
// the rest. Every row must carry an "Email" field.
func UpsertLeadsByEmail(ctx context.Context, c Client, rows []map[string]any) (*UpsertResult, error) {
	res := &UpsertResult{}
	if len(rows) == 0 {
		return res, nil
	}

	emails := make([]string, 0, len(rows))
	for _, r := range rows {
		email, _ := r["Email"].(string)
		if email == "" {
			return nil, eris.New("sf: lead row without Email")
		}
		emails = append(emails, email)
	}
	existing, err := FindLeadIDsByEmail(ctx, c, emails)
	if err != nil {
		return nil, err
	}

	var updates []CollectionRecord
	var inserts []map[string]any
	for i, r := range rows {
		if id, ok := existing[strings.ToLower(emails[i])]; ok {
			updates = append(updates, CollectionRecord{ID: id, Fields: r})
		} else {
			inserts = append(inserts, r)
		}
	}

	for start := 0; start < len(updates); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(updates))
		results, err := c.UpdateCollection(ctx, LeadObject, updates[start:end])
		if err != nil {
			return res, eris.Wrapf(err, "sf: update leads %d-%d", start, end)
		}
		res.tally(results, &res.Updated)
	}
	for start := 0; start < len(inserts); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(inserts))
		results, err := c.InsertCollection(ctx, LeadObject, inserts[start:end])
		if err != nil {
			return res, eris.Wrapf(err, "sf: insert leads %d-%d", start, end)
		}
		res.tally(results, &res.Created)
	}
	return res, nil
}

func (r *UpsertResult) tally(results []CollectionResult, ok *int) {
	for _, cr := range results {
		if cr.Success {
			*ok++
			continue
		}
		r.Failed++
		r.Errors = append(r.Errors, cr.Errors...)
	}
}

// escapeSoql escapes a value for use inside a quoted SOQL literal.
func escapeSoql(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", `\'`)
}
