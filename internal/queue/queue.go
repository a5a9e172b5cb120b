// Package queue reads leads from a Notion database and writes enrichment
// outcomes back to the same pages.
package queue

import (
	"context"
	"strings"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-refinery/internal/model"
	"github.com/sells-group/lead-refinery/internal/pipeline"
	"github.com/sells-group/lead-refinery/pkg/notion"
)

// Page property names.
const (
	PropName          = "Name"
	PropEmail         = "Email"
	PropFirstName     = "First Name"
	PropLastName      = "Last Name"
	PropFirmName      = "Firm Name"
	PropDeclaredTitle = "Declared Title"
	PropWebsite       = "Website"
	PropStatus        = "Status"
	PropJobID         = "Job ID"
	PropStandardTitle = "Standard Title"
	PropIntent        = "Intent Signal"
	PropError         = "Error"
	PropLastEnriched  = "Last Enriched"
)

// Status values.
const (
	StatusQueued    = "Queued"
	StatusRunning   = "Running"
	StatusCompleted = "Completed"
	StatusFailed    = "Failed"
)

const maxErrorLen = 200

// Queue is a Notion database of leads. Page ids double as raw lead ids so
// a page re-queued after a failure replaces its earlier record.
type Queue struct {
	client notion.Client
	dbID   string
	now    func() time.Time
}

// New returns a Queue over the database dbID.
func New(client notion.Client, dbID string) *Queue {
	return &Queue{client: client, dbID: dbID, now: time.Now}
}

// Pull returns up to limit queued leads. Pages missing an email, first
// name or firm are marked Failed and skipped. limit <= 0 means all.
func (q *Queue) Pull(ctx context.Context, limit int) ([]pipeline.Lead, error) {
	pages, err := notion.QueryByStatus(ctx, q.client, q.dbID, PropStatus, StatusQueued)
	if err != nil {
		return nil, eris.Wrap(err, "queue: pull")
	}

	leads := make([]pipeline.Lead, 0, len(pages))
	for _, page := range pages {
		if limit > 0 && len(leads) >= limit {
			break
		}
		lead := LeadFromPage(page)
		id := lead.Identity
		if id.Email == "" || id.FirstName == "" || id.FirmName == "" {
			zap.L().Warn("queue: skipping incomplete lead page", zap.String("page_id", lead.RawLeadID))
			if err := q.MarkFailed(ctx, lead.RawLeadID, eris.New("missing email, first name or firm name")); err != nil {
				zap.L().Warn("queue: mark incomplete page failed", zap.Error(err))
			}
			continue
		}
		leads = append(leads, lead)
	}
	return leads, nil
}

// Push creates one queued page per lead and returns how many were created.
func (q *Queue) Push(ctx context.Context, leads []pipeline.Lead) (int, error) {
	created := 0
	for _, l := range leads {
		id := l.Identity
		props := notionapi.Properties{
			PropName:          titleProp(strings.TrimSpace(id.FullName())),
			PropEmail:         notionapi.EmailProperty{Email: id.Email},
			PropFirstName:     richText(id.FirstName),
			PropLastName:      richText(id.LastName),
			PropFirmName:      richText(id.FirmName),
			PropDeclaredTitle: richText(id.DeclaredTitle),
			PropStatus:        statusProp(StatusQueued),
		}
		if id.Website != "" {
			props[PropWebsite] = notionapi.URLProperty{URL: id.Website}
		}
		_, err := q.client.CreatePage(ctx, &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: notionapi.DatabaseID(q.dbID),
			},
			Properties: props,
		})
		if err != nil {
			return created, eris.Wrapf(err, "queue: push %s", id.Email)
		}
		created++
	}
	return created, nil
}

// MarkRunning flags a page as in progress.
func (q *Queue) MarkRunning(ctx context.Context, pageID string) error {
	return q.update(ctx, pageID, notionapi.Properties{
		PropStatus: statusProp(StatusRunning),
	})
}

// MarkCompleted writes the record's headline fields back to its page.
func (q *Queue) MarkCompleted(ctx context.Context, pageID string, rec *model.EnrichedRecord) error {
	return q.update(ctx, pageID, notionapi.Properties{
		PropStatus:        statusProp(StatusCompleted),
		PropJobID:         richText(rec.JobID),
		PropStandardTitle: richText(rec.StandardTitle),
		PropIntent:        notionapi.SelectProperty{Select: notionapi.Option{Name: string(rec.IntentSignal)}},
		PropError:         richText(""),
		PropLastEnriched:  q.dateProp(),
	})
}

// MarkFailed records the error on the page.
func (q *Queue) MarkFailed(ctx context.Context, pageID string, cause error) error {
	msg := cause.Error()
	if len(msg) > maxErrorLen {
		msg = msg[:maxErrorLen]
	}
	return q.update(ctx, pageID, notionapi.Properties{
		PropStatus:       statusProp(StatusFailed),
		PropError:        richText(msg),
		PropLastEnriched: q.dateProp(),
	})
}

// Report is a pipeline result callback that writes each outcome back.
func (q *Queue) Report(ctx context.Context) func(pipeline.Result) {
	return func(r pipeline.Result) {
		var err error
		if r.Err != nil {
			err = q.MarkFailed(ctx, r.RawLeadID, r.Err)
		} else {
			err = q.MarkCompleted(ctx, r.RawLeadID, r.Record)
		}
		if err != nil {
			zap.L().Warn("queue: write back failed", zap.String("page_id", r.RawLeadID), zap.Error(err))
		}
	}
}

func (q *Queue) update(ctx context.Context, pageID string, props notionapi.Properties) error {
	_, err := q.client.UpdatePage(ctx, pageID, &notionapi.PageUpdateRequest{Properties: props})
	if err != nil {
		return eris.Wrapf(err, "queue: update page %s", pageID)
	}
	return nil
}

func (q *Queue) dateProp() notionapi.DateProperty {
	d := notionapi.Date(q.now())
	return notionapi.DateProperty{Date: &notionapi.DateObject{Start: &d}}
}

// LeadFromPage reads a lead from a queue page.
func LeadFromPage(page notionapi.Page) pipeline.Lead {
	id := model.LeadIdentity{
		Email:         textOf(page.Properties[PropEmail]),
		FirstName:     textOf(page.Properties[PropFirstName]),
		LastName:      textOf(page.Properties[PropLastName]),
		FirmName:      textOf(page.Properties[PropFirmName]),
		DeclaredTitle: textOf(page.Properties[PropDeclaredTitle]),
		Website:       textOf(page.Properties[PropWebsite]),
	}
	return pipeline.Lead{RawLeadID: string(page.ID), Identity: id.Trimmed()}
}

// textOf flattens the property kinds a lead page uses into plain text.
func textOf(p notionapi.Property) string {
	switch v := p.(type) {
	case *notionapi.TitleProperty:
		return joinRich(v.Title)
	case *notionapi.RichTextProperty:
		return joinRich(v.RichText)
	case *notionapi.EmailProperty:
		return v.Email
	case *notionapi.URLProperty:
		return v.URL
	case *notionapi.PhoneNumberProperty:
		return v.PhoneNumber
	default:
		return ""
	}
}

func joinRich(rts []notionapi.RichText) string {
	var sb strings.Builder
	for _, rt := range rts {
		sb.WriteString(rt.PlainText)
	}
	return sb.String()
}

func richText(s string) notionapi.RichTextProperty {
	if s == "" {
		return notionapi.RichTextProperty{RichText: []notionapi.RichText{}}
	}
	return notionapi.RichTextProperty{RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: s}}}}
}

func titleProp(s string) notionapi.TitleProperty {
	return notionapi.TitleProperty{Title: []notionapi.RichText{{Text: &notionapi.Text{Content: s}}}}
}

func statusProp(name string) notionapi.StatusProperty {
	return notionapi.StatusProperty{Status: notionapi.Status{Name: name}}
}
