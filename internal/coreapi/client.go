// Package coreapi is the REST client for the upstream dashboard core: the
// opaque reconciliation compute endpoint and its sibling collaborator
// endpoints (save, history, delete, exchange rate, crypto balance, pin
// validation). The engine treats the compute formula as a black box of its
// inputs plus persisted state.
package coreapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	reconcile "cashdesk/internal/reconcile/domain"
)

// Client is a minimal core REST client.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient constructs a core client.
func NewClient(baseURL, token string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("coreapi: empty base url")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// ComputeResult is the upstream response to a recompute call.
type ComputeResult struct {
	IsSaved bool
	Inputs  reconcile.Inputs
	Outputs reconcile.Outputs
}

// CryptoBalance is the live wallet total.
type CryptoBalance struct {
	TotalUSD    float64 `json:"total_usd"`
	WalletCount int     `json:"wallet_count"`
}

// ErrRejected is returned when the upstream answers success=false.
var ErrRejected = errors.New("coreapi: request rejected")

// Compute asks the upstream to recompute the day from explicit inputs. The
// response echoes all fields; the caller decides which of them to trust.
func (c *Client) Compute(ctx context.Context, day string, in reconcile.Inputs, manualOverride bool) (ComputeResult, error) {
	if day == "" {
		return ComputeResult{}, errors.New("coreapi: empty day")
	}
	q := url.Values{}
	q.Set("date", day)
	q.Set("expenses_usd", formatAmount(in.ExpensesUSD))
	q.Set("rollover_usd", formatAmount(in.RolloverUSD))
	q.Set("net_cash_usd", formatAmount(in.NetCashUSD))
	q.Set("commissions_usd", formatAmount(in.CommissionsUSD))
	q.Set("previous_closing_usd", formatAmount(in.PreviousClosingUSD))
	q.Set("company_cash_usd", formatAmount(in.CompanyCashUSD))
	q.Set("crypto_balance_usd", formatAmount(in.CryptoBalanceUSD))
	q.Set("pending_collection_usd", formatAmount(in.PendingCollectionUSD))
	q.Set("current_cash_usd", formatAmount(in.CurrentCashUSD))
	q.Set("manual_override", strconv.FormatBool(manualOverride))

	var resp computeResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/reconciliation?"+q.Encode(), nil, &resp); err != nil {
		return ComputeResult{}, err
	}
	if !resp.Success {
		return ComputeResult{}, ErrRejected
	}
	return ComputeResult{
		IsSaved: resp.IsSaved,
		Inputs:  resp.Data.Inputs,
		Outputs: resp.Data.Outputs,
	}, nil
}

// Save persists all fields of a draft for its date.
func (c *Client) Save(ctx context.Context, rec reconcile.Record, confirmationCode string) error {
	if rec.Day == "" {
		return errors.New("coreapi: empty day")
	}
	body := saveRequest{
		Date:             rec.Day,
		Inputs:           rec.Inputs,
		Outputs:          rec.Outputs,
		ManualOverride:   rec.ManualOverride,
		ConfirmationCode: confirmationCode,
	}
	var resp statusResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/reconciliation", body, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return ErrRejected
	}
	return nil
}

// History lists all saved reconciliation records.
func (c *Client) History(ctx context.Context) ([]reconcile.Record, error) {
	var resp historyResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/reconciliation/history", nil, &resp); err != nil {
		return nil, err
	}
	records := make([]reconcile.Record, 0, len(resp.Data))
	for _, item := range resp.Data {
		rec := reconcile.Record{
			Day:            item.Date,
			Inputs:         item.Inputs,
			Outputs:        item.Outputs,
			ManualOverride: item.ManualOverride,
			HasResult:      true,
			IsSaved:        true,
			IsLocked:       true,
		}
		records = append(records, rec)
	}
	return records, nil
}

// Delete removes one saved historical record. Gated by a confirmation code.
func (c *Client) Delete(ctx context.Context, day, confirmationCode string) error {
	if day == "" {
		return errors.New("coreapi: empty day")
	}
	body := map[string]string{"confirmation_code": confirmationCode}
	var resp statusResponse
	if err := c.doJSON(ctx, http.MethodDelete, "/api/reconciliation/"+url.PathEscape(day), body, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return ErrRejected
	}
	return nil
}

// Rate fetches the USD/local rate for a date and pair.
func (c *Client) Rate(ctx context.Context, day, pair string) (float64, error) {
	q := url.Values{}
	q.Set("date", day)
	q.Set("pair", pair)
	var resp rateResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/rate?"+q.Encode(), nil, &resp); err != nil {
		return 0, err
	}
	if resp.Rate <= 0 {
		return 0, reconcile.ErrInvalidRate
	}
	return resp.Rate, nil
}

// UpdateRate pushes an edited rate for a date.
func (c *Client) UpdateRate(ctx context.Context, day, pair string, rate float64) error {
	if rate <= 0 {
		return reconcile.ErrInvalidRate
	}
	body := map[string]any{"date": day, "pair": pair, "rate": rate}
	var resp statusResponse
	if err := c.doJSON(ctx, http.MethodPut, "/api/rate", body, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return ErrRejected
	}
	return nil
}

// CryptoBalance fetches the live wallet total in USD.
func (c *Client) CryptoBalance(ctx context.Context) (CryptoBalance, error) {
	var resp CryptoBalance
	if err := c.doJSON(ctx, http.MethodGet, "/api/crypto-balance", nil, &resp); err != nil {
		return CryptoBalance{}, err
	}
	return resp, nil
}

// ValidatePin checks a confirmation code. A wrong code is a clean false,
// not an error; errors mean the validator was unreachable.
func (c *Client) ValidatePin(ctx context.Context, pin string) (bool, error) {
	body := map[string]string{"pin": pin}
	var resp pinResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/validate-pin", body, &resp); err != nil {
		return false, err
	}
	return resp.Valid, nil
}

type computeResponse struct {
	Success bool `json:"success"`
	IsSaved bool `json:"is_saved"`
	Data    struct {
		reconcile.Inputs
		reconcile.Outputs
	} `json:"data"`
}

type saveRequest struct {
	Date string `json:"date"`
	reconcile.Inputs
	reconcile.Outputs
	ManualOverride   bool   `json:"manual_override"`
	ConfirmationCode string `json:"confirmation_code,omitempty"`
}

type historyResponse struct {
	Data []historyItem `json:"data"`
}

type historyItem struct {
	Date string `json:"date"`
	reconcile.Inputs
	reconcile.Outputs
	ManualOverride bool `json:"manual_override"`
}

type statusResponse struct {
	Success bool `json:"success"`
}

type rateResponse struct {
	Rate float64 `json:"rate"`
}

type pinResponse struct {
	Valid bool `json:"valid"`
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(payload)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("coreapi: http %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
