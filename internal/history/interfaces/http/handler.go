// Package http exposes the history browser.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"cashdesk/internal/history/application"
	history "cashdesk/internal/history/domain"
	reconcile "cashdesk/internal/reconcile/domain"
)

// Handler provides the history APIs.
type Handler struct {
	service *application.Service
}

// NewHandler constructs a handler.
func NewHandler(service *application.Service) (*Handler, error) {
	if service == nil {
		return nil, errors.New("history handler: nil service")
	}
	return &Handler{service: service}, nil
}

// ServeHTTP routes history endpoints.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/reconciliation/history" && r.Method == http.MethodGet:
		h.handleBrowse(w, r)
	case r.URL.Path == "/api/v1/reconciliation/history/compare" && r.Method == http.MethodGet:
		h.handleCompare(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/reconciliation/history/") && r.Method == http.MethodDelete:
		h.handleDelete(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleBrowse(w http.ResponseWriter, r *http.Request) {
	q := history.Query{
		Search: r.URL.Query().Get("search"),
		SortBy: history.Column(r.URL.Query().Get("sort")),
	}

	if raw := r.URL.Query().Get("from"); raw != "" {
		day, err := reconcile.ParseDayKey(raw)
		if err != nil {
			http.Error(w, "from must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		q.From = day
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		day, err := reconcile.ParseDayKey(raw)
		if err != nil {
			http.Error(w, "to must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		q.To = day
	}
	q.BalancedOnly = r.URL.Query().Get("balanced") == "true"
	q.Desc = r.URL.Query().Get("desc") == "true"
	if raw := r.URL.Query().Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			http.Error(w, "page must be a positive integer", http.StatusBadRequest)
			return
		}
		q.Page = page
	}
	if raw := r.URL.Query().Get("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 {
			http.Error(w, "page_size must be a positive integer", http.StatusBadRequest)
			return
		}
		q.PageSize = size
	}

	res, err := h.service.Browse(r.Context(), q)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, res)
}

func (h *Handler) handleCompare(w http.ResponseWriter, r *http.Request) {
	baseline, err := reconcile.ParseDayKey(r.URL.Query().Get("baseline"))
	if err != nil {
		http.Error(w, "baseline must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	current, err := reconcile.ParseDayKey(r.URL.Query().Get("current"))
	if err != nil {
		http.Error(w, "current must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	cmp, err := h.service.Compare(r.Context(), baseline, current)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, cmp)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.URL.Path, "/api/v1/reconciliation/history/")
	day, err := reconcile.ParseDayKey(raw)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	var req struct {
		Code string `json:"confirmation_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if err := h.service.Delete(r.Context(), day, req.Code); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, map[string]any{"deleted": day.String()})
}

func respondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, application.ErrCodeRejected),
		errors.Is(err, application.ErrMalformedCode):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, application.ErrRecordNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, history.ErrUnknownColumn):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}
