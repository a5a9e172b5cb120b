// Package store persists enriched records and lead queue state.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-refinery/internal/model"
)

// ErrNotFound is returned when a record or lead state does not exist.
var ErrNotFound = eris.New("store: not found")

// RecordFilter narrows FetchAll. Zero values mean no filter.
type RecordFilter struct {
	TenantID     string `json:"tenant_id,omitempty"`
	VerifiedOnly bool   `json:"verified_only,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	Offset       int    `json:"offset,omitempty"`
}

// LeadFilter narrows ListLeadStates.
type LeadFilter struct {
	Status model.LeadStatus `json:"status,omitempty"`
	Limit  int              `json:"limit,omitempty"`
	Offset int              `json:"offset,omitempty"`
}

// Store defines the persistence interface for the refinery.
type Store interface {
	// Records. UpsertRecord replaces any record with the same raw lead id.
	UpsertRecord(ctx context.Context, rec *model.EnrichedRecord) error
	GetRecord(ctx context.Context, rawLeadID string) (*model.EnrichedRecord, error)
	FetchAll(ctx context.Context, filter RecordFilter) ([]model.EnrichedRecord, error)

	// Lead queue state.
	EnqueueLeads(ctx context.Context, leads []model.LeadState) (int64, error)
	SetLeadState(ctx context.Context, state model.LeadState) error
	GetLeadState(ctx context.Context, rawLeadID string) (*model.LeadState, error)
	ListLeadStates(ctx context.Context, filter LeadFilter) ([]model.LeadState, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultLimit = 1000

func limitOf(n int) int {
	if n <= 0 {
		return defaultLimit
	}
	return n
}
