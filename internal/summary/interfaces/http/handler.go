// Package http exposes the monthly currency summaries.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"cashdesk/internal/summary/application"
	summary "cashdesk/internal/summary/domain"
)

// Handler provides the summary APIs.
type Handler struct {
	service *application.Service
}

// NewHandler constructs a handler.
func NewHandler(service *application.Service) (*Handler, error) {
	if service == nil {
		return nil, errors.New("summary handler: nil service")
	}
	return &Handler{service: service}, nil
}

// ServeHTTP routes summary endpoints.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/summary" && r.Method == http.MethodGet:
		h.handleList(w, r)
	case r.URL.Path == "/api/v1/summary/rebuild" && r.Method == http.MethodPost:
		h.handleRebuild(w, r)
	case r.URL.Path == "/api/v1/summary/carryover" && r.Method == http.MethodPut:
		h.handleCarryover(w, r)
	case r.URL.Path == "/api/v1/summary/lock" && r.Method == http.MethodPost:
		h.handleLock(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	month, err := summary.ParseMonthKey(r.URL.Query().Get("month"))
	if err != nil {
		http.Error(w, "month must be YYYY-MM", http.StatusBadRequest)
		return
	}
	snaps, err := h.service.ListMonth(r.Context(), month)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, snaps)
}

func (h *Handler) handleRebuild(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Month string  `json:"month"`
		Rate  float64 `json:"rate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	month, err := summary.ParseMonthKey(req.Month)
	if err != nil {
		http.Error(w, "month must be YYYY-MM", http.StatusBadRequest)
		return
	}
	snaps, err := h.service.Rebuild(r.Context(), month, req.Rate)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, snaps)
}

func (h *Handler) handleCarryover(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Month    string  `json:"month"`
		Currency string  `json:"currency"`
		Amount   float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	month, err := summary.ParseMonthKey(req.Month)
	if err != nil {
		http.Error(w, "month must be YYYY-MM", http.StatusBadRequest)
		return
	}
	snap, err := h.service.SetCarryover(r.Context(), month, req.Currency, req.Amount)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, snap)
}

func (h *Handler) handleLock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Month string `json:"month"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	month, err := summary.ParseMonthKey(req.Month)
	if err != nil {
		http.Error(w, "month must be YYYY-MM", http.StatusBadRequest)
		return
	}
	if err := h.service.LockMonth(r.Context(), month); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, map[string]any{"locked": month.String()})
}

func respondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, summary.ErrMonthLocked):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, summary.ErrInvalidMonth),
		errors.Is(err, summary.ErrInvalidRate),
		errors.Is(err, summary.ErrNegativeAmount),
		errors.Is(err, summary.ErrUnknownCurrency):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
