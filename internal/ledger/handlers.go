package ledger

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/fdg312/diet-hub/internal/userctx"
	"go.uber.org/zap"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleGetDay handles GET /v1/ledger/day?date=&tz=
func (h *Handler) HandleGetDay(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetDay(r.Context(), userctx.OwnerOrDefault(r.Context()), dayQuery(r))
	if err != nil {
		h.handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// HandleAddEntry handles POST /v1/ledger/entries
func (h *Handler) HandleAddEntry(w http.ResponseWriter, r *http.Request) {
	var req EntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	view, err := h.service.AddEntry(r.Context(), userctx.OwnerOrDefault(r.Context()), req)
	if err != nil {
		h.handleError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, view)
}

// HandleReplaceEntry handles PUT /v1/ledger/entries/{id}
func (h *Handler) HandleReplaceEntry(w http.ResponseWriter, r *http.Request) {
	var req EntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.Date == "" && req.TZ == "" {
		req.DayQuery = dayQuery(r)
	}

	view, err := h.service.ReplaceEntry(r.Context(), userctx.OwnerOrDefault(r.Context()), r.PathValue("id"), req)
	if err != nil {
		h.handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// HandleRemoveEntry handles DELETE /v1/ledger/entries/{id}?date=&tz=
func (h *Handler) HandleRemoveEntry(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.RemoveEntry(r.Context(), userctx.OwnerOrDefault(r.Context()), r.PathValue("id"), dayQuery(r))
	if err != nil {
		h.handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// HandleHistory handles GET /v1/ledger/history?from=&to=
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp, err := h.service.History(r.Context(), userctx.OwnerOrDefault(r.Context()), q.Get("from"), q.Get("to"))
	if err != nil {
		h.handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleAnalyze handles POST /v1/ledger/analyze
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	resp, err := h.service.AnalyzeMeal(r.Context(), req.Description)
	if err != nil {
		h.handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func dayQuery(r *http.Request) DayQuery {
	q := r.URL.Query()
	return DayQuery{
		Date: strings.TrimSpace(q.Get("date")),
		TZ:   strings.TrimSpace(q.Get("tz")),
	}
}

func (h *Handler) handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		msg := strings.TrimPrefix(err.Error(), ErrInvalidRequest.Error()+": ")
		writeError(w, http.StatusBadRequest, "invalid_request", msg)
	case errors.Is(err, ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Entry not found")
	case errors.Is(err, ErrDuplicateEntry):
		writeError(w, http.StatusConflict, "duplicate_entry", "Entry with this id already exists")
	case errors.Is(err, ErrConflict):
		writeError(w, http.StatusConflict, "conflict", "Day was modified concurrently, retry later")
	case errors.Is(err, ErrAIFailed):
		writeError(w, http.StatusBadGateway, "ai_failed", "AI provider failed")
	default:
		h.service.logger.Error("ledger request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
