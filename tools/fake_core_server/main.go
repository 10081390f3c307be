// A standalone fake of the dashboard core for local development: the
// reconciliation compute endpoint, save/history/delete, the exchange rate
// pair, the crypto balance and the pin validator. State lives in memory and
// resets on restart.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type inputs struct {
	ExpensesUSD          float64 `json:"expenses_usd"`
	RolloverUSD          float64 `json:"rollover_usd"`
	NetCashUSD           float64 `json:"net_cash_usd"`
	CommissionsUSD       float64 `json:"commissions_usd"`
	PreviousClosingUSD   float64 `json:"previous_closing_usd"`
	CompanyCashUSD       float64 `json:"company_cash_usd"`
	CryptoBalanceUSD     float64 `json:"crypto_balance_usd"`
	PendingCollectionUSD float64 `json:"pending_collection_usd"`
	CurrentCashUSD       float64 `json:"current_cash_usd"`
}

type outputs struct {
	NetResultUSD         float64 `json:"net_result_usd"`
	DiscrepancyUSD       float64 `json:"discrepancy_usd"`
	DiscrepancyBottomUSD float64 `json:"discrepancy_bottom_usd"`
}

type savedRecord struct {
	Date           string
	In             inputs
	Out            outputs
	ManualOverride bool
}

type fakeCoreServer struct {
	start   time.Time
	latency time.Duration
	pin     string
	rate    float64

	mu         sync.Mutex
	records    map[string]savedRecord
	rates      map[string]float64
	byEndpoint map[string]int64
	totalCalls int64
}

func main() {
	addr := getenvDefault("FAKE_CORE_ADDR", ":19090")
	latencyMs := getenvIntDefault("FAKE_CORE_LATENCY_MS", 0)
	pin := getenvDefault("FAKE_CORE_PIN", "1234")
	rate := getenvFloatDefault("FAKE_CORE_RATE", 41.5)

	srv := &fakeCoreServer{
		start:      time.Now().UTC(),
		latency:    time.Duration(latencyMs) * time.Millisecond,
		pin:        pin,
		rate:       rate,
		records:    make(map[string]savedRecord),
		rates:      make(map[string]float64),
		byEndpoint: make(map[string]int64),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/metrics", srv.handleMetrics)
	mux.HandleFunc("/api/reconciliation", srv.handleReconciliation)
	mux.HandleFunc("/api/reconciliation/history", srv.handleHistory)
	mux.HandleFunc("/api/reconciliation/", srv.handleDelete)
	mux.HandleFunc("/api/rate", srv.handleRate)
	mux.HandleFunc("/api/crypto-balance", srv.handleCryptoBalance)
	mux.HandleFunc("/api/validate-pin", srv.handleValidatePin)

	log.Printf("fake core server listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}

func (s *fakeCoreServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *fakeCoreServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload := map[string]any{
		"started_at":  s.start.Format(time.RFC3339),
		"total":       atomic.LoadInt64(&s.totalCalls),
		"by_endpoint": s.byEndpoint,
	}
	writeJSON(w, payload)
}

func (s *fakeCoreServer) handleReconciliation(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleCompute(w, r)
	case http.MethodPost:
		s.handleSave(w, r)
	default:
		http.NotFound(w, r)
	}
}

// handleCompute echoes the request inputs back with derived outputs. When a
// saved record exists for the date, the stored inputs win over the request
// ones unless manual_override is set; this reproduces the stale-input
// behavior of the real core that clients must guard against.
func (s *fakeCoreServer) handleCompute(w http.ResponseWriter, r *http.Request) {
	s.recordCall("compute")
	if s.latency > 0 {
		time.Sleep(s.latency)
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		http.Error(w, "date required", http.StatusBadRequest)
		return
	}
	in := inputs{
		ExpensesUSD:          queryFloat(r, "expenses_usd"),
		RolloverUSD:          queryFloat(r, "rollover_usd"),
		NetCashUSD:           queryFloat(r, "net_cash_usd"),
		CommissionsUSD:       queryFloat(r, "commissions_usd"),
		PreviousClosingUSD:   queryFloat(r, "previous_closing_usd"),
		CompanyCashUSD:       queryFloat(r, "company_cash_usd"),
		CryptoBalanceUSD:     queryFloat(r, "crypto_balance_usd"),
		PendingCollectionUSD: queryFloat(r, "pending_collection_usd"),
		CurrentCashUSD:       queryFloat(r, "current_cash_usd"),
	}
	override := r.URL.Query().Get("manual_override") == "true"

	s.mu.Lock()
	stored, isSaved := s.records[date]
	s.mu.Unlock()
	if isSaved && !override {
		in = stored.In
	}

	out := derive(in)
	payload := map[string]any{
		"success":  true,
		"is_saved": isSaved,
		"data":     flatten(in, out),
	}
	writeJSON(w, payload)
}

func (s *fakeCoreServer) handleSave(w http.ResponseWriter, r *http.Request) {
	s.recordCall("save")
	var req struct {
		Date string `json:"date"`
		inputs
		outputs
		ManualOverride   bool   `json:"manual_override"`
		ConfirmationCode string `json:"confirmation_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Date == "" {
		http.Error(w, "date required", http.StatusBadRequest)
		return
	}
	if req.ConfirmationCode != "" && req.ConfirmationCode != s.pin {
		writeJSON(w, map[string]any{"success": false})
		return
	}
	s.mu.Lock()
	s.records[req.Date] = savedRecord{
		Date:           req.Date,
		In:             req.inputs,
		Out:            req.outputs,
		ManualOverride: req.ManualOverride,
	}
	s.mu.Unlock()
	writeJSON(w, map[string]any{"success": true})
}

func (s *fakeCoreServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	s.recordCall("history")

	s.mu.Lock()
	items := make([]savedRecord, 0, len(s.records))
	for _, rec := range s.records {
		items = append(items, rec)
	}
	s.mu.Unlock()
	sort.Slice(items, func(i, j int) bool { return items[i].Date < items[j].Date })

	data := make([]map[string]any, 0, len(items))
	for _, rec := range items {
		item := flatten(rec.In, rec.Out)
		item["date"] = rec.Date
		item["manual_override"] = rec.ManualOverride
		data = append(data, item)
	}
	writeJSON(w, map[string]any{"data": data})
}

func (s *fakeCoreServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.NotFound(w, r)
		return
	}
	s.recordCall("delete")

	date := strings.TrimPrefix(r.URL.Path, "/api/reconciliation/")
	if date == "" || strings.Contains(date, "/") {
		http.NotFound(w, r)
		return
	}
	var req struct {
		ConfirmationCode string `json:"confirmation_code"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.ConfirmationCode != s.pin {
		writeJSON(w, map[string]any{"success": false})
		return
	}
	s.mu.Lock()
	delete(s.records, date)
	s.mu.Unlock()
	writeJSON(w, map[string]any{"success": true})
}

func (s *fakeCoreServer) handleRate(w http.ResponseWriter, r *http.Request) {
	s.recordCall("rate")
	switch r.Method {
	case http.MethodGet:
		date := r.URL.Query().Get("date")
		s.mu.Lock()
		rate, ok := s.rates[date]
		s.mu.Unlock()
		if !ok {
			rate = s.rate
		}
		writeJSON(w, map[string]any{"rate": rate})
	case http.MethodPut:
		var req struct {
			Date string  `json:"date"`
			Pair string  `json:"pair"`
			Rate float64 `json:"rate"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Date == "" || req.Rate <= 0 {
			writeJSON(w, map[string]any{"success": false})
			return
		}
		s.mu.Lock()
		s.rates[req.Date] = req.Rate
		s.mu.Unlock()
		writeJSON(w, map[string]any{"success": true})
	default:
		http.NotFound(w, r)
	}
}

func (s *fakeCoreServer) handleCryptoBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	s.recordCall("crypto-balance")
	total := getenvFloatDefault("FAKE_CORE_CRYPTO_USD", 1250.5)
	writeJSON(w, map[string]any{"total_usd": total, "wallet_count": 3})
}

func (s *fakeCoreServer) handleValidatePin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	s.recordCall("validate-pin")
	var req struct {
		Pin string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{"valid": req.Pin == s.pin})
}

func derive(in inputs) outputs {
	netResult := in.NetCashUSD - in.ExpensesUSD - in.CommissionsUSD
	discrepancy := in.CurrentCashUSD - (in.PreviousClosingUSD + in.RolloverUSD + netResult)
	return outputs{
		NetResultUSD:         netResult,
		DiscrepancyUSD:       discrepancy,
		DiscrepancyBottomUSD: discrepancy - in.PendingCollectionUSD,
	}
}

func flatten(in inputs, out outputs) map[string]any {
	return map[string]any{
		"expenses_usd":           in.ExpensesUSD,
		"rollover_usd":           in.RolloverUSD,
		"net_cash_usd":           in.NetCashUSD,
		"commissions_usd":        in.CommissionsUSD,
		"previous_closing_usd":   in.PreviousClosingUSD,
		"company_cash_usd":       in.CompanyCashUSD,
		"crypto_balance_usd":     in.CryptoBalanceUSD,
		"pending_collection_usd": in.PendingCollectionUSD,
		"current_cash_usd":       in.CurrentCashUSD,
		"net_result_usd":         out.NetResultUSD,
		"discrepancy_usd":        out.DiscrepancyUSD,
		"discrepancy_bottom_usd": out.DiscrepancyBottomUSD,
	}
}

func (s *fakeCoreServer) recordCall(endpoint string) {
	atomic.AddInt64(&s.totalCalls, 1)
	s.mu.Lock()
	s.byEndpoint[endpoint]++
	s.mu.Unlock()
}

func queryFloat(r *http.Request, key string) float64 {
	value := r.URL.Query().Get(key)
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
