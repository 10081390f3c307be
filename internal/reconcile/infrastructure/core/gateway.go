// Package core adapts the upstream dashboard client to the draft service's
// gateway port.
package core

import (
	"context"
	"errors"

	"cashdesk/internal/coreapi"
	"cashdesk/internal/reconcile/application"
	reconcile "cashdesk/internal/reconcile/domain"
)

// Gateway wraps the coreapi client.
type Gateway struct {
	client *coreapi.Client
}

// NewGateway constructs the adapter.
func NewGateway(client *coreapi.Client) (*Gateway, error) {
	if client == nil {
		return nil, errors.New("core gateway: nil client")
	}
	return &Gateway{client: client}, nil
}

// Compute dispatches the day's figures upstream.
func (g *Gateway) Compute(ctx context.Context, day string, in reconcile.Inputs, manualOverride bool) (application.ComputeOutcome, error) {
	res, err := g.client.Compute(ctx, day, in, manualOverride)
	if err != nil {
		return application.ComputeOutcome{}, err
	}
	return application.ComputeOutcome{
		Inputs:  res.Inputs,
		Outputs: res.Outputs,
		Saved:   res.IsSaved,
	}, nil
}

// Save persists a record upstream.
func (g *Gateway) Save(ctx context.Context, rec reconcile.Record, confirmationCode string) error {
	return g.client.Save(ctx, rec, confirmationCode)
}

// CryptoBalance pulls the live wallet total.
func (g *Gateway) CryptoBalance(ctx context.Context) (application.WalletTotal, error) {
	bal, err := g.client.CryptoBalance(ctx)
	if err != nil {
		return application.WalletTotal{}, err
	}
	return application.WalletTotal{TotalUSD: bal.TotalUSD, WalletCount: bal.WalletCount}, nil
}

// ValidatePin checks a confirmation code upstream.
func (g *Gateway) ValidatePin(ctx context.Context, pin string) (bool, error) {
	return g.client.ValidatePin(ctx, pin)
}
