package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/veritas-legal/factgate/internal/facts"
	"github.com/veritas-legal/factgate/internal/model"
)

// HealthChecker reports reachability of the backing store.
// Satisfied by *storage.DB. Nil disables the store-level check.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	svc                 *facts.Service
	health              HealthChecker
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Optional (nil-safe): Health.
type HandlersDeps struct {
	Service             *facts.Service
	Health              HealthChecker
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		svc:                 d.Service,
		health:              d.Health,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
	}
}

// HandleCreateFact handles POST /v1/cases/{case_id}/facts.
func (h *Handlers) HandleCreateFact(w http.ResponseWriter, r *http.Request) {
	caseID, ok := pathUUID(w, r, "case_id")
	if !ok {
		return
	}

	var req model.FactCreateRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	fact, err := h.svc.SaveFact(r.Context(), facts.SaveFactInput{
		CaseID:           caseID,
		FactText:         req.FactText,
		FactType:         req.FactType,
		SourceDocumentID: req.SourceDocumentID,
		SourcePage:       req.SourcePage,
		SourceText:       req.SourceText,
		Citations:        req.Citations,
		ExtractedByAI:    req.ExtractedByAI,
		Importance:       req.Importance,
		Category:         req.Category,
		Tags:             req.Tags,
		UserID:           ActingUserFromContext(r.Context()),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, fact)
}

// HandleListFacts handles GET /v1/cases/{case_id}/facts.
// Supports fact_type, verification_status, importance and include_rejected
// query filters.
func (h *Handlers) HandleListFacts(w http.ResponseWriter, r *http.Request) {
	caseID, ok := pathUUID(w, r, "case_id")
	if !ok {
		return
	}

	filters, err := listFiltersFromQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	list, err := h.svc.GetCaseFacts(r.Context(), caseID, filters)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"facts": list,
		"count": len(list),
	})
}

// HandleCriticalDates handles GET /v1/cases/{case_id}/facts/critical-dates.
func (h *Handlers) HandleCriticalDates(w http.ResponseWriter, r *http.Request) {
	caseID, ok := pathUUID(w, r, "case_id")
	if !ok {
		return
	}

	list, err := h.svc.GetCriticalDates(r.Context(), caseID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"facts": list,
		"count": len(list),
	})
}

// HandleListConflicts handles GET /v1/cases/{case_id}/facts/conflicts.
// Read-only pairwise scan; nothing is persisted.
func (h *Handlers) HandleListConflicts(w http.ResponseWriter, r *http.Request) {
	caseID, ok := pathUUID(w, r, "case_id")
	if !ok {
		return
	}

	pairs, err := h.svc.FindConflictingFacts(r.Context(), caseID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	out := make([]model.ConflictPair, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, model.ConflictPair{Fact: p.A, RelatedFact: p.B})
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"conflicts": out,
		"count":     len(out),
	})
}

// HandleGetFact handles GET /v1/facts/{fact_id}.
func (h *Handlers) HandleGetFact(w http.ResponseWriter, r *http.Request) {
	factID, ok := pathUUID(w, r, "fact_id")
	if !ok {
		return
	}

	fact, err := h.svc.GetFact(r.Context(), factID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, fact)
}

// HandleVerifyFact handles POST /v1/facts/{fact_id}/verify.
func (h *Handlers) HandleVerifyFact(w http.ResponseWriter, r *http.Request) {
	factID, ok := pathUUID(w, r, "fact_id")
	if !ok {
		return
	}

	var req model.FactVerificationRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	fact, err := h.svc.VerifyFact(r.Context(), factID, req.Status, ActingUserFromContext(r.Context()), req.Reason)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, fact)
}

// HandleSignOffFact handles POST /v1/facts/{fact_id}/sign-off.
func (h *Handlers) HandleSignOffFact(w http.ResponseWriter, r *http.Request) {
	factID, ok := pathUUID(w, r, "fact_id")
	if !ok {
		return
	}

	var req model.FactSignOffRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	fact, err := h.svc.SignOffFact(r.Context(), factID, req.Status, ActingUserFromContext(r.Context()), req.Reason)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, fact)
}

// HandleBulkExtract handles POST /v1/cases/{case_id}/facts/bulk-extract.
// Small batches return the saved facts; large batches are acknowledged with
// 202 and processed in the background.
func (h *Handlers) HandleBulkExtract(w http.ResponseWriter, r *http.Request) {
	caseID, ok := pathUUID(w, r, "case_id")
	if !ok {
		return
	}

	var req model.BulkExtractRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	result, err := h.svc.BulkExtract(r.Context(), caseID, req.DocumentID, req.Facts)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if result.Scheduled {
		writeJSON(w, r, http.StatusAccepted, map[string]any{
			"status":      "processing",
			"facts_count": result.ScheduledCount,
		})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status": "completed",
		"saved":  result.Saved,
		"failed": result.Failed,
	})
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	pgStatus := ""
	httpStatus := http.StatusOK

	if h.health != nil {
		pgStatus = "connected"
		if err := h.health.Ping(r.Context()); err != nil {
			pgStatus = "disconnected"
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	resp := model.HealthResponse{
		Status:        status,
		Version:       h.version,
		Postgres:      pgStatus,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
	}
	writeJSON(w, r, httpStatus, resp)
}

// writeServiceError maps governance errors onto HTTP status codes.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var policyErr *facts.CitationPolicyError
	switch {
	case errors.Is(err, facts.ErrCaseNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "case not found")
	case errors.Is(err, facts.ErrFactNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "fact not found")
	case errors.As(err, &policyErr):
		writeError(w, r, http.StatusUnprocessableEntity, model.ErrCodeCitationPolicy, policyErr.Error())
	case errors.Is(err, facts.ErrInvalidStatus), errors.Is(err, facts.ErrReasonRequired):
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
	default:
		h.logger.Error("request failed", "path", r.URL.Path, "error", err,
			"request_id", RequestIDFromContext(r.Context()))
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error")
	}
}

// pathUUID parses a UUID path parameter, writing a 400 on failure.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid "+name)
		return uuid.UUID{}, false
	}
	return id, true
}

// listFiltersFromQuery builds list filters from the request query string.
func listFiltersFromQuery(r *http.Request) (facts.ListFilters, error) {
	var filters facts.ListFilters
	q := r.URL.Query()

	if v := q.Get("fact_type"); v != "" {
		ft := model.FactType(v)
		if !model.ValidFactType(ft) {
			return filters, errors.New("invalid fact_type filter")
		}
		filters.FactType = &ft
	}
	if v := q.Get("verification_status"); v != "" {
		vs := model.VerificationStatus(v)
		if vs != model.VerificationUnverified && vs != model.VerificationVerified && vs != model.VerificationDisputed {
			return filters, errors.New("invalid verification_status filter")
		}
		filters.VerificationStatus = &vs
	}
	if v := q.Get("importance"); v != "" {
		imp := model.Importance(v)
		if !model.ValidImportance(imp) {
			return filters, errors.New("invalid importance filter")
		}
		filters.Importance = &imp
	}
	filters.IncludeRejected = q.Get("include_rejected") == "true"

	return filters, nil
}
