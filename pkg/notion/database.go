package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// QueryAll pages through a database query and returns every result.
// The next page is requested while the current one is appended.
func QueryAll(ctx context.Context, c Client, dbID string, query *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	type page struct {
		resp *notionapi.DatabaseQueryResponse
		err  error
	}
	next := func(cursor notionapi.Cursor) *notionapi.DatabaseQueryRequest {
		req := &notionapi.DatabaseQueryRequest{StartCursor: cursor}
		if query != nil {
			req.Filter = query.Filter
			req.Sorts = query.Sorts
			req.PageSize = query.PageSize
		}
		return req
	}

	var all []notionapi.Page
	resp, err := c.QueryDatabase(ctx, dbID, next(""))
	for {
		if err != nil {
			return nil, eris.Wrap(err, "notion: query all")
		}
		if !resp.HasMore {
			return append(all, resp.Results...), nil
		}

		ch := make(chan page, 1)
		go func(cursor notionapi.Cursor) {
			r, e := c.QueryDatabase(ctx, dbID, next(cursor))
			ch <- page{resp: r, err: e}
		}(resp.NextCursor)

		all = append(all, resp.Results...)
		p := <-ch
		resp, err = p.resp, p.err
	}
}

// QueryByStatus returns every page whose status property equals status.
func QueryByStatus(ctx context.Context, c Client, dbID, property, status string) ([]notionapi.Page, error) {
	pages, err := QueryAll(ctx, c, dbID, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: property,
			Status:   &notionapi.StatusFilterCondition{Equals: status},
		},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "notion: query %s=%s", property, status)
	}
	return pages, nil
}
