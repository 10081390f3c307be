package coreapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	reconcile "cashdesk/internal/reconcile/domain"
)

func TestComputeSendsAllFields(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for key := range r.URL.Query() {
			gotQuery[key] = r.URL.Query().Get(key)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":  true,
			"is_saved": true,
			"data": map[string]any{
				"net_result_usd":         1234.5,
				"discrepancy_usd":        3.25,
				"discrepancy_bottom_usd": 0,
			},
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	in := reconcile.Inputs{ExpensesUSD: 120, NetCashUSD: 4200, CurrentCashUSD: 999}
	result, err := client.Compute(context.Background(), "2024-03-01", in, true)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	if gotQuery["date"] != "2024-03-01" {
		t.Fatalf("expected date param, got %q", gotQuery["date"])
	}
	if gotQuery["expenses_usd"] != "120" || gotQuery["net_cash_usd"] != "4200" {
		t.Fatalf("missing amount params: %v", gotQuery)
	}
	if gotQuery["manual_override"] != "true" {
		t.Fatalf("expected manual_override=true, got %q", gotQuery["manual_override"])
	}
	if result.Outputs.NetResultUSD != 1234.5 || !result.IsSaved {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestComputeRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false})
	}))
	defer server.Close()

	client, _ := NewClient(server.URL, "")
	if _, err := client.Compute(context.Background(), "2024-03-01", reconcile.Inputs{}, false); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestSaveFlattensRecord(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer server.Close()

	client, _ := NewClient(server.URL, "")
	rec := reconcile.Record{
		Day:     "2024-03-01",
		Inputs:  reconcile.Inputs{ExpensesUSD: 120},
		Outputs: reconcile.Outputs{NetResultUSD: 75},
	}
	if err := client.Save(context.Background(), rec, "4561"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got["date"] != "2024-03-01" || got["expenses_usd"] != 120.0 || got["net_result_usd"] != 75.0 {
		t.Fatalf("flattened payload missing fields: %v", got)
	}
	if got["confirmation_code"] != "4561" {
		t.Fatalf("expected confirmation code, got %v", got["confirmation_code"])
	}
}

func TestHistoryMarksRecordsLocked(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"date": "2024-03-01", "net_result_usd": 1000.0},
				{"date": "2024-03-02", "net_result_usd": 1100.0},
			},
		})
	}))
	defer server.Close()

	client, _ := NewClient(server.URL, "")
	records, err := client.History(context.Background())
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	for _, rec := range records {
		if !rec.IsLocked || !rec.IsSaved {
			t.Fatalf("history records must be locked+saved: %+v", rec)
		}
	}
	if records[1].Outputs.NetResultUSD != 1100 {
		t.Fatalf("unexpected record: %+v", records[1])
	}
}

func TestValidatePinWrongCodeIsCleanFalse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(map[string]any{"valid": body["pin"] == "4561"})
	}))
	defer server.Close()

	client, _ := NewClient(server.URL, "")
	ok, err := client.ValidatePin(context.Background(), "0000")
	if err != nil || ok {
		t.Fatalf("wrong pin: ok=%v err=%v", ok, err)
	}
	ok, err = client.ValidatePin(context.Background(), "4561")
	if err != nil || !ok {
		t.Fatalf("right pin: ok=%v err=%v", ok, err)
	}
}

func TestRateRejectsNonPositive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"rate": 0})
	}))
	defer server.Close()

	client, _ := NewClient(server.URL, "")
	if _, err := client.Rate(context.Background(), "2024-03-01", "USDTRY"); !errors.Is(err, reconcile.ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate, got %v", err)
	}
}

func TestHTTPErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, _ := NewClient(server.URL, "")
	if _, err := client.CryptoBalance(context.Background()); err == nil {
		t.Fatal("expected error on http 502")
	}
}
