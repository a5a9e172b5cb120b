package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-refinery/internal/model"
	"github.com/sells-group/lead-refinery/internal/store"
)

// DefaultConcurrency is used when a batch is started without a limit.
const DefaultConcurrency = 5

// Lead is one unit of batch work.
type Lead struct {
	RawLeadID string             `json:"raw_lead_id"`
	Identity  model.LeadIdentity `json:"identity"`
}

// Result is the outcome of one lead in a batch.
type Result struct {
	RawLeadID string                `json:"raw_lead_id"`
	Record    *model.EnrichedRecord `json:"record,omitempty"`
	Err       error                 `json:"-"`
}

// Summary totals a batch run. Results are in input order.
type Summary struct {
	Total     int      `json:"total"`
	Completed int      `json:"completed"`
	Failed    int      `json:"failed"`
	Results   []Result `json:"results"`
}

// EnrichBatch enriches leads concurrently, at most concurrency at a time.
// One lead failing never stops the others. onResult, if set, is called
// once per lead as it finishes; calls are serialized.
func (p *Pipeline) EnrichBatch(ctx context.Context, leads []Lead, concurrency int, onResult func(Result)) Summary {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	sum := Summary{Total: len(leads), Results: make([]Result, len(leads))}
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, lead := range leads {
		g.Go(func() error {
			res := Result{RawLeadID: lead.RawLeadID}
			if gCtx.Err() != nil {
				res.Err = gCtx.Err()
			} else {
				res.Record, res.Err = p.EnrichLead(gCtx, lead.Identity, lead.RawLeadID)
			}
			if res.Record != nil {
				res.RawLeadID = res.Record.RawLeadID
			}

			mu.Lock()
			defer mu.Unlock()
			sum.Results[i] = res
			if res.Err != nil {
				sum.Failed++
			} else {
				sum.Completed++
			}
			if onResult != nil {
				onResult(res)
			}
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("pipeline: batch complete",
		zap.Int("total", sum.Total),
		zap.Int("completed", sum.Completed),
		zap.Int("failed", sum.Failed),
	)
	return sum
}

// Retry re-runs every lead currently in the error state.
func (p *Pipeline) Retry(ctx context.Context, concurrency int, onResult func(Result)) (Summary, error) {
	states, err := p.store.ListLeadStates(ctx, store.LeadFilter{Status: model.LeadStatusError, Limit: 10000})
	if err != nil {
		return Summary{}, err
	}
	leads := make([]Lead, 0, len(states))
	for _, st := range states {
		leads = append(leads, Lead{RawLeadID: st.RawLeadID, Identity: st.Identity})
	}
	return p.EnrichBatch(ctx, leads, concurrency, onResult), nil
}
