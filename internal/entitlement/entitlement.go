// Package entitlement gates enrichment on available credits. The ledger
// itself lives elsewhere; this package only asks and settles.
package entitlement

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
)

// ErrInsufficient means the caller has no credit left for a lead.
var ErrInsufficient = eris.New("entitlement: insufficient credits")

// Gate is consulted before a lead starts (Authorize) and after the
// classifier has run (Settle). A Settle error means the record must not be
// persisted.
type Gate interface {
	Authorize(ctx context.Context, rawLeadID string) error
	Settle(ctx context.Context, rawLeadID string) error
}

// Unlimited allows everything.
type Unlimited struct{}

// Authorize always succeeds.
func (Unlimited) Authorize(context.Context, string) error { return nil }

// Settle always succeeds.
func (Unlimited) Settle(context.Context, string) error { return nil }

// Quota is an in-process credit counter. One credit is spent per settled
// lead.
type Quota struct {
	mu      sync.Mutex
	credits int64
}

// NewQuota returns a Quota holding n credits.
func NewQuota(n int64) *Quota {
	return &Quota{credits: n}
}

// Authorize fails when no credit is left.
func (q *Quota) Authorize(_ context.Context, rawLeadID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.credits <= 0 {
		return eris.Wrapf(ErrInsufficient, "authorize %s", rawLeadID)
	}
	return nil
}

// Settle spends one credit, failing if another lead spent the last one
// in the meantime.
func (q *Quota) Settle(_ context.Context, rawLeadID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.credits <= 0 {
		return eris.Wrapf(ErrInsufficient, "settle %s", rawLeadID)
	}
	q.credits--
	return nil
}

// Remaining returns the credits left.
func (q *Quota) Remaining() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.credits
}
