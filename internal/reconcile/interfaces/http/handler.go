// Package http exposes the reconciliation draft operations.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"cashdesk/internal/rates"
	"cashdesk/internal/reconcile/application"
	reconcile "cashdesk/internal/reconcile/domain"
)

// Handler provides the draft APIs.
type Handler struct {
	service *application.DraftService
	rates   *rates.Provider
}

// NewHandler constructs a handler.
func NewHandler(service *application.DraftService, rateProvider *rates.Provider) (*Handler, error) {
	if service == nil {
		return nil, errors.New("reconcile handler: nil service")
	}
	return &Handler{service: service, rates: rateProvider}, nil
}

// ServeHTTP routes draft endpoints.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/reconciliation/select" && r.Method == http.MethodPost:
		h.handleSelect(w, r)
	case r.URL.Path == "/api/v1/reconciliation/draft" && r.Method == http.MethodGet:
		h.handleDraft(w, r)
	case r.URL.Path == "/api/v1/reconciliation/field" && r.Method == http.MethodPut:
		h.handleField(w, r)
	case r.URL.Path == "/api/v1/reconciliation/recompute" && r.Method == http.MethodPost:
		h.handleRecompute(w, r)
	case r.URL.Path == "/api/v1/reconciliation/refresh" && r.Method == http.MethodPost:
		h.handleRefresh(w, r)
	case r.URL.Path == "/api/v1/reconciliation/fetch/expenses" && r.Method == http.MethodPost:
		h.handleFetch(w, r, h.service.FetchExpenses)
	case r.URL.Path == "/api/v1/reconciliation/fetch/net-cash" && r.Method == http.MethodPost:
		h.handleFetch(w, r, h.service.FetchNetCash)
	case r.URL.Path == "/api/v1/reconciliation/fetch/commission" && r.Method == http.MethodPost:
		h.handleFetch(w, r, h.service.FetchCommission)
	case r.URL.Path == "/api/v1/reconciliation/fetch/crypto-balance" && r.Method == http.MethodPost:
		h.handleFetch(w, r, h.service.FetchCryptoBalance)
	case r.URL.Path == "/api/v1/reconciliation/override/request" && r.Method == http.MethodPost:
		h.handleOverrideRequest(w, r)
	case r.URL.Path == "/api/v1/reconciliation/override/confirm" && r.Method == http.MethodPost:
		h.handleOverrideConfirm(w, r)
	case r.URL.Path == "/api/v1/reconciliation/override/cancel" && r.Method == http.MethodPost:
		h.handleOverrideCancel(w, r)
	case r.URL.Path == "/api/v1/reconciliation/override/disable" && r.Method == http.MethodPost:
		h.handleOverrideDisable(w, r)
	case r.URL.Path == "/api/v1/reconciliation/save" && r.Method == http.MethodPost:
		h.handleSave(w, r)
	case r.URL.Path == "/api/v1/reconciliation/clear" && r.Method == http.MethodPost:
		h.handleClear(w, r)
	case r.URL.Path == "/api/v1/reconciliation/gross-balance" && r.Method == http.MethodGet:
		h.handleGrossBalance(w, r)
	case r.URL.Path == "/api/v1/convert" && r.Method == http.MethodGet:
		h.handleConvert(w, r)
	case r.URL.Path == "/api/v1/rate" && r.Method == http.MethodGet:
		h.handleRateGet(w, r)
	case r.URL.Path == "/api/v1/rate" && r.Method == http.MethodPut:
		h.handleRatePut(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type dayRequest struct {
	Date string `json:"date"`
}

type codeRequest struct {
	Date string `json:"date"`
	Code string `json:"confirmation_code"`
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	day, ok := decodeDay(w, r)
	if !ok {
		return
	}
	rec, err := h.service.SelectDay(r.Context(), day)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, rec)
}

func (h *Handler) handleDraft(w http.ResponseWriter, r *http.Request) {
	day, err := reconcile.ParseDayKey(r.URL.Query().Get("date"))
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	rec, err := h.service.Snapshot(r.Context(), day)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, rec)
}

func (h *Handler) handleField(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date  string  `json:"date"`
		Field string  `json:"field"`
		Value float64 `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	day, err := reconcile.ParseDayKey(req.Date)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	rec, coerced, err := h.service.SetField(r.Context(), day, reconcile.InputField(req.Field), req.Value)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, map[string]any{"record": rec, "coerced": coerced})
}

func (h *Handler) handleRecompute(w http.ResponseWriter, r *http.Request) {
	day, ok := decodeDay(w, r)
	if !ok {
		return
	}
	rec, err := h.service.Recompute(r.Context(), day)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, rec)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	day, ok := decodeDay(w, r)
	if !ok {
		return
	}
	rec, err := h.service.RefreshFromUpstream(r.Context(), day)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, rec)
}

func (h *Handler) handleFetch(w http.ResponseWriter, r *http.Request, fetch func(ctx context.Context, day reconcile.DayKey) (application.FetchResult, error)) {
	day, ok := decodeDay(w, r)
	if !ok {
		return
	}
	res, err := fetch(r.Context(), day)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, res)
}

func (h *Handler) handleOverrideRequest(w http.ResponseWriter, r *http.Request) {
	day, ok := decodeDay(w, r)
	if !ok {
		return
	}
	state, err := h.service.RequestOverride(day)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, map[string]any{"state": state})
}

func (h *Handler) handleOverrideConfirm(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	day, err := reconcile.ParseDayKey(req.Date)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	rec, err := h.service.ConfirmOverride(r.Context(), day, req.Code)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, rec)
}

func (h *Handler) handleOverrideCancel(w http.ResponseWriter, r *http.Request) {
	day, ok := decodeDay(w, r)
	if !ok {
		return
	}
	if err := h.service.CancelOverride(day); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, map[string]any{"state": h.service.OverrideState(day)})
}

func (h *Handler) handleOverrideDisable(w http.ResponseWriter, r *http.Request) {
	day, ok := decodeDay(w, r)
	if !ok {
		return
	}
	rec, err := h.service.DisableOverride(r.Context(), day)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, rec)
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	day, err := reconcile.ParseDayKey(req.Date)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	rec, err := h.service.Save(r.Context(), day, req.Code)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, rec)
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	day, err := reconcile.ParseDayKey(req.Date)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	rec, err := h.service.Clear(r.Context(), day, req.Code)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, rec)
}

func (h *Handler) handleGrossBalance(w http.ResponseWriter, r *http.Request) {
	day, err := reconcile.ParseDayKey(r.URL.Query().Get("date"))
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	gross, err := h.service.GrossBalance(r.Context(), day)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, map[string]any{
		"date":      day.String(),
		"try_net":   gross.TRYNet,
		"usd_net":   gross.USDNet,
		"usd_gross": gross.USDGross,
		"try_gross": gross.TRYGross,
		"invalid":   gross.Invalid,
	})
}

func (h *Handler) handleConvert(w http.ResponseWriter, r *http.Request) {
	if h.rates == nil {
		http.Error(w, "rates unavailable", http.StatusServiceUnavailable)
		return
	}
	day, err := reconcile.ParseDayKey(r.URL.Query().Get("date"))
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	amount, err := strconv.ParseFloat(r.URL.Query().Get("amount"), 64)
	if err != nil {
		http.Error(w, "amount must be numeric", http.StatusBadRequest)
		return
	}
	enabled := r.URL.Query().Get("enabled") != "false"
	currency := reconcile.NormalizeCurrency(r.URL.Query().Get("currency"))
	rate := h.rates.RateFor(r.Context(), day.String())
	conv, err := reconcile.Convert(amount, currency, rate, enabled)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, conv)
}

func (h *Handler) handleRateGet(w http.ResponseWriter, r *http.Request) {
	if h.rates == nil {
		http.Error(w, "rates unavailable", http.StatusServiceUnavailable)
		return
	}
	day, err := reconcile.ParseDayKey(r.URL.Query().Get("date"))
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	rate := h.rates.RateFor(r.Context(), day.String())
	respondJSON(w, map[string]any{"date": day.String(), "rate": rate})
}

func (h *Handler) handleRatePut(w http.ResponseWriter, r *http.Request) {
	if h.rates == nil {
		http.Error(w, "rates unavailable", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		Date string  `json:"date"`
		Rate float64 `json:"rate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	day, err := reconcile.ParseDayKey(req.Date)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	if err := h.rates.ApplyEdit(r.Context(), day.String(), req.Rate); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, map[string]any{"date": day.String(), "rate": req.Rate})
}

func decodeDay(w http.ResponseWriter, r *http.Request) (reconcile.DayKey, bool) {
	var req dayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return "", false
	}
	day, err := reconcile.ParseDayKey(req.Date)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return "", false
	}
	return day, true
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
	case errors.Is(err, reconcile.ErrDraftLocked),
		errors.Is(err, reconcile.ErrOverrideDisabled),
		errors.Is(err, reconcile.ErrOverrideState):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, reconcile.ErrInvalidDay),
		errors.Is(err, reconcile.ErrUnknownField),
		errors.Is(err, reconcile.ErrInvalidRate):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}
