package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/lead-refinery/internal/entitlement"
	"github.com/sells-group/lead-refinery/internal/export"
	"github.com/sells-group/lead-refinery/internal/leadlock"
	"github.com/sells-group/lead-refinery/internal/model"
	"github.com/sells-group/lead-refinery/internal/pipeline"
	"github.com/sells-group/lead-refinery/internal/resolve"
	"github.com/sells-group/lead-refinery/internal/store"
)

const (
	maxBodyBytes = 1 << 20
	maxBatchSize = 1000
	maxPageSize  = 1000
)

// EnrichRequest is the body of POST /v1/leads/enrich.
type EnrichRequest struct {
	RawLeadID string `json:"raw_lead_id,omitempty"`
	model.LeadIdentity
}

// BatchRequest is the body of POST /v1/leads/batch.
type BatchRequest struct {
	Leads []EnrichRequest `json:"leads"`
}

// BatchResponse acknowledges an accepted batch.
type BatchResponse struct {
	Accepted   int      `json:"accepted"`
	RawLeadIDs []string `json:"raw_lead_ids"`
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps pipeline errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrInvalidLead):
		return http.StatusBadRequest
	case errors.Is(err, entitlement.ErrInsufficient):
		return http.StatusPaymentRequired
	case errors.Is(err, leadlock.ErrLocked):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, resolve.ErrResolutionFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	var req EnrichRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := s.enricher.EnrichLead(r.Context(), req.LeadIdentity, req.RawLeadID)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			zap.L().Error("server: enrich failed", zap.String("raw_lead_id", req.RawLeadID), zap.Error(err))
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleBatch records the leads as queued and enriches them in the
// background. Progress is visible through /v1/leads/{id}/state.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16*maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Leads) == 0 {
		writeError(w, http.StatusBadRequest, "leads is required")
		return
	}
	if len(req.Leads) > maxBatchSize {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("at most %d leads per batch", maxBatchSize))
		return
	}

	leads := make([]pipeline.Lead, len(req.Leads))
	states := make([]model.LeadState, len(req.Leads))
	ids := make([]string, len(req.Leads))
	for i, l := range req.Leads {
		id := strings.TrimSpace(l.RawLeadID)
		if id == "" {
			id = uuid.NewString()
		}
		leads[i] = pipeline.Lead{RawLeadID: id, Identity: l.LeadIdentity.Trimmed()}
		states[i] = model.LeadState{RawLeadID: id, Identity: leads[i].Identity, Status: model.LeadStatusQueued}
		ids[i] = id
	}
	if _, err := s.store.EnqueueLeads(r.Context(), states); err != nil {
		zap.L().Error("server: enqueue batch", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not queue leads")
		return
	}

	go s.enricher.EnrichBatch(s.background, leads, s.concurrency, nil)

	writeJSON(w, http.StatusAccepted, BatchResponse{Accepted: len(leads), RawLeadIDs: ids})
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetRecord(r.Context(), chi.URLParam(r, "rawLeadID"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.GetLeadState(r.Context(), chi.URLParam(r, "rawLeadID"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	filter, ok := recordFilter(w, r)
	if !ok {
		return
	}
	recs, err := s.store.FetchAll(r.Context(), filter)
	if err != nil {
		zap.L().Error("server: list records", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list records")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": recs, "count": len(recs)})
}

func (s *Server) handleListStates(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := paging(w, r)
	if !ok {
		return
	}
	states, err := s.store.ListLeadStates(r.Context(), store.LeadFilter{
		Status: model.LeadStatus(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		zap.L().Error("server: list states", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list lead states")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"states": states, "count": len(states)})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	filter, ok := recordFilter(w, r)
	if !ok {
		return
	}
	recs, err := s.store.FetchAll(r.Context(), filter)
	if err != nil {
		zap.L().Error("server: export records", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not export records")
		return
	}

	stamp := time.Now().UTC().Format("2006-01-02")
	switch format := r.URL.Query().Get("format"); format {
	case "", "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="refinery-export-%s.xlsx"`, stamp))
		err = export.WriteXLSX(w, recs)
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="refinery-export-%s.csv"`, stamp))
		err = export.WriteCSV(w, recs)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", format))
		return
	}
	if err != nil {
		zap.L().Error("server: write export", zap.Error(err))
	}
}

func recordFilter(w http.ResponseWriter, r *http.Request) (store.RecordFilter, bool) {
	limit, offset, ok := paging(w, r)
	if !ok {
		return store.RecordFilter{}, false
	}
	q := r.URL.Query()
	verified := false
	if v := q.Get("verified"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "verified must be a boolean")
			return store.RecordFilter{}, false
		}
		verified = b
	}
	return store.RecordFilter{
		TenantID:     q.Get("tenant_id"),
		VerifiedOnly: verified,
		Limit:        limit,
		Offset:       offset,
	}, true
}

func paging(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	q := r.URL.Query()
	parse := func(key string, def int) (int, bool) {
		v := q.Get(key)
		if v == "" {
			return def, true
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, key+" must be a non-negative integer")
			return 0, false
		}
		return n, true
	}
	if limit, ok = parse("limit", 100); !ok {
		return 0, 0, false
	}
	if offset, ok = parse("offset", 0); !ok {
		return 0, 0, false
	}
	return min(limit, maxPageSize), offset, true
}
