// Package crm publishes verified vault records to Salesforce as Leads.
package crm

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-refinery/internal/model"
	"github.com/sells-group/lead-refinery/internal/store"
	"github.com/sells-group/lead-refinery/pkg/salesforce"
)

// LeadSource tags every Lead written by the publisher.
const LeadSource = "Lead Refinery"

const pageSize = 500

// Summary totals one publish run.
type Summary struct {
	Considered int `json:"considered"`
	Skipped    int `json:"skipped"`
	Created    int `json:"created"`
	Updated    int `json:"updated"`
	Failed     int `json:"failed"`
}

// Publisher pushes verified records from the store into Salesforce.
type Publisher struct {
	client salesforce.Client
	store  store.Store
}

// NewPublisher returns a Publisher.
func NewPublisher(client salesforce.Client, st store.Store) *Publisher {
	return &Publisher{client: client, store: st}
}

// Publish upserts every verified record of tenant (all tenants when empty),
// matching existing Leads by email. limit <= 0 publishes everything.
func (p *Publisher) Publish(ctx context.Context, tenant string, limit int) (*Summary, error) {
	sum := &Summary{}
	for offset := 0; ; offset += pageSize {
		recs, err := p.store.FetchAll(ctx, store.RecordFilter{
			TenantID:     tenant,
			VerifiedOnly: true,
			Limit:        pageSize,
			Offset:       offset,
		})
		if err != nil {
			return sum, eris.Wrap(err, "crm: fetch records")
		}
		if limit > 0 && sum.Considered+len(recs) > limit {
			recs = recs[:limit-sum.Considered]
		}

		rows := make([]map[string]any, 0, len(recs))
		for i := range recs {
			sum.Considered++
			if recs[i].Email == "" {
				sum.Skipped++
				continue
			}
			rows = append(rows, LeadFields(&recs[i]))
		}

		if len(rows) > 0 {
			res, err := salesforce.UpsertLeadsByEmail(ctx, p.client, rows)
			if res != nil {
				sum.Created += res.Created
				sum.Updated += res.Updated
				sum.Failed += res.Failed
				for _, e := range res.Errors {
					zap.L().Warn("crm: lead rejected", zap.String("error", e))
				}
			}
			if err != nil {
				return sum, eris.Wrap(err, "crm: upsert leads")
			}
		}

		if len(recs) < pageSize || (limit > 0 && sum.Considered >= limit) {
			break
		}
	}

	zap.L().Info("crm: publish complete",
		zap.Int("considered", sum.Considered),
		zap.Int("created", sum.Created),
		zap.Int("updated", sum.Updated),
		zap.Int("failed", sum.Failed),
		zap.Int("skipped", sum.Skipped),
	)
	return sum, nil
}

// ratings maps intent signals onto the standard Lead Rating picklist.
var ratings = map[model.IntentSignal]string{
	model.IntentHigh:   "Hot",
	model.IntentMedium: "Warm",
	model.IntentLow:    "Cold",
}

// LeadFields maps a record onto standard Lead fields. LastName and Company
// are required by Salesforce and fall back to placeholders.
func LeadFields(rec *model.EnrichedRecord) map[string]any {
	f := map[string]any{
		"Email":      rec.Email,
		"FirstName":  rec.FirstName,
		"LastName":   orDefault(rec.LastName, "[not provided]"),
		"Company":    orDefault(rec.FirmName, "[not provided]"),
		"LeadSource": LeadSource,
	}
	set := func(key, val string) {
		if v := strings.TrimSpace(val); v != "" {
			f[key] = v
		}
	}
	set("Title", rec.StandardTitle)
	set("Website", rec.Website)
	set("City", rec.City)
	set("State", rec.State)
	set("PostalCode", rec.Zip)
	set("Country", rec.Country)
	set("Phone", rec.Phone)
	if rec.Salutation != nil {
		set("Salutation", *rec.Salutation)
	}
	if rec.Industry != nil {
		set("Industry", *rec.Industry)
	}
	if r, ok := ratings[rec.IntentSignal]; ok {
		f["Rating"] = r
	}
	return f
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}
