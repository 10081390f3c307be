package http

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cashdesk/internal/rates"
	"cashdesk/internal/reconcile/application"
	reconcile "cashdesk/internal/reconcile/domain"
	"cashdesk/internal/reconcile/infrastructure/memory"
)

type stubCache struct{}

func (stubCache) PutDraft(context.Context, string, reconcile.Inputs, bool) error { return nil }
func (stubCache) GetDraft(context.Context, string) (reconcile.Inputs, bool, bool, error) {
	return reconcile.Inputs{}, false, false, nil
}
func (stubCache) DeleteDraft(context.Context, string) error        { return nil }
func (stubCache) SetLastSelectedDay(context.Context, string) error { return nil }
func (stubCache) LastSelectedDay(context.Context) (string, error)  { return "", nil }

type stubCore struct{ pinOK bool }

func (s stubCore) Compute(_ context.Context, _ string, in reconcile.Inputs, _ bool) (application.ComputeOutcome, error) {
	return application.ComputeOutcome{Inputs: in}, nil
}
func (stubCore) Save(context.Context, reconcile.Record, string) error { return nil }
func (stubCore) CryptoBalance(context.Context) (application.WalletTotal, error) {
	return application.WalletTotal{}, nil
}
func (s stubCore) ValidatePin(context.Context, string) (bool, error) { return s.pinOK, nil }

type stubLedger struct{}

func (stubLedger) ListTransactions(context.Context, reconcile.DayKey) ([]reconcile.LedgerLine, error) {
	return []reconcile.LedgerLine{
		{Day: "2024-03-15", Amount: 4100, Currency: reconcile.CurrencyTRY, Category: reconcile.TxnDeposit},
	}, nil
}

type stubRateSource struct{}

func (stubRateSource) Rate(context.Context, string, string) (float64, error) { return 41, nil }
func (stubRateSource) UpdateRate(context.Context, string, string, float64) error {
	return nil
}

type stubRateProvider struct{}

func (stubRateProvider) RateFor(context.Context, string) float64 { return 41 }

func newTestHandler(t *testing.T, pinOK bool) *Handler {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	service, err := application.NewDraftService(
		memory.NewDraftRepository(), stubCache{}, stubCore{pinOK: pinOK},
		nil, stubLedger{}, stubRateProvider{}, nil, nil, nil, logger)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	provider, err := rates.NewProvider(stubRateSource{}, logger)
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	handler, err := NewHandler(service, provider)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	return handler
}

func TestHandlerSelectReturnsZeroedDraft(t *testing.T) {
	handler := newTestHandler(t, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reconciliation/select",
		strings.NewReader(`{"date":"2024-03-15"}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var rec reconcile.Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Day != "2024-03-15" {
		t.Fatalf("expected day 2024-03-15, got %s", rec.Day)
	}
	if rec.HasResult || rec.IsSaved {
		t.Fatalf("fresh draft must be unsaved without a result")
	}
}

func TestHandlerFieldRejectsBadDate(t *testing.T) {
	handler := newTestHandler(t, true)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/reconciliation/field",
		strings.NewReader(`{"date":"15-03-2024","field":"expenses_usd","value":10}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestHandlerFieldUpdatesDraft(t *testing.T) {
	handler := newTestHandler(t, true)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/reconciliation/field",
		strings.NewReader(`{"date":"2024-03-15","field":"expenses_usd","value":120.5}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var payload struct {
		Record  reconcile.Record `json:"record"`
		Coerced bool             `json:"coerced"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Record.Inputs.ExpensesUSD != 120.5 {
		t.Fatalf("expected expenses 120.5, got %v", payload.Record.Inputs.ExpensesUSD)
	}
	if payload.Coerced {
		t.Fatalf("value was valid, must not be coerced")
	}
}

func TestHandlerOverrideConfirmMalformedCode(t *testing.T) {
	handler := newTestHandler(t, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reconciliation/override/request",
		strings.NewReader(`{"date":"2024-03-15"}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("override request: expected 200, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/reconciliation/override/confirm",
		strings.NewReader(`{"date":"2024-03-15","confirmation_code":"12"}`))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestHandlerRateGet(t *testing.T) {
	handler := newTestHandler(t, true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rate?date=2024-03-15", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var payload struct {
		Rate float64 `json:"rate"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Rate != 41 {
		t.Fatalf("expected rate 41, got %v", payload.Rate)
	}
}

func TestHandlerGrossBalance(t *testing.T) {
	handler := newTestHandler(t, true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reconciliation/gross-balance?date=2024-03-15", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var payload struct {
		USDGross float64 `json:"usd_gross"`
		TRYGross float64 `json:"try_gross"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.USDGross != 100 {
		t.Fatalf("expected usd_gross 100, got %v", payload.USDGross)
	}
	if payload.TRYGross != 4100 {
		t.Fatalf("expected try_gross 4100, got %v", payload.TRYGross)
	}
}

func TestHandlerConvert(t *testing.T) {
	handler := newTestHandler(t, true)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/convert?date=2024-03-15&amount=82&currency=TRY", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var conv reconcile.Conversion
	if err := json.NewDecoder(resp.Body).Decode(&conv); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if conv.USD != 2 {
		t.Fatalf("expected usd 2, got %v", conv.USD)
	}
	if conv.Stablecoin != conv.USD {
		t.Fatalf("stablecoin must equal usd")
	}

	req = httptest.NewRequest(http.MethodGet,
		"/api/v1/convert?date=2024-03-15&amount=82&currency=TRY&enabled=false", nil)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if err := json.NewDecoder(resp.Body).Decode(&conv); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if conv.TRY != 82 || conv.USD != 0 || conv.Stablecoin != 0 {
		t.Fatalf("disabled converter must only fill the source slot, got %+v", conv)
	}
}

func TestHandlerUnknownRoute(t *testing.T) {
	handler := newTestHandler(t, true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reconciliation/nope", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
