// Package rates resolves the per-date USD/local exchange rate. A rate is
// immutable once fetched for a date; when the upstream endpoint fails, a
// fixed fallback constant is substituted so the engine keeps working with
// stale-but-sane numbers.
package rates

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"cashdesk/internal/eventing"
	"cashdesk/internal/observability/metrics"
)

// DefaultFallbackRate is substituted when no rate can be fetched.
const DefaultFallbackRate = 42.0

// DefaultPair is the only pair the dashboard trades in.
const DefaultPair = "USDTRY"

// Source fetches and pushes rates upstream.
type Source interface {
	Rate(ctx context.Context, day, pair string) (float64, error)
	UpdateRate(ctx context.Context, day, pair string, rate float64) error
}

// Publisher emits domain events.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// Provider caches one rate per date with a fallback constant.
type Provider struct {
	source   Source
	fallback float64
	pair     string
	bus      Publisher
	logger   *log.Logger

	mu    sync.RWMutex
	rates map[string]float64
}

// Option configures the provider.
type Option func(*Provider)

// WithFallback overrides the fallback constant.
func WithFallback(rate float64) Option {
	return func(p *Provider) {
		if rate > 0 {
			p.fallback = rate
		}
	}
}

// WithPair overrides the currency pair.
func WithPair(pair string) Option {
	return func(p *Provider) {
		if pair != "" {
			p.pair = pair
		}
	}
}

// WithPublisher emits a RateUpdated event after each accepted edit.
func WithPublisher(bus Publisher) Option {
	return func(p *Provider) {
		p.bus = bus
	}
}

// NewProvider constructs a provider.
func NewProvider(source Source, logger *log.Logger, opts ...Option) (*Provider, error) {
	if source == nil {
		return nil, errors.New("rates: nil source")
	}
	p := &Provider{
		source:   source,
		fallback: DefaultFallbackRate,
		pair:     DefaultPair,
		logger:   logger,
		rates:    make(map[string]float64),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// RateFor returns the rate for a date: cached value first, then a fetch,
// then the fallback constant. Fetch failures are logged, never surfaced.
func (p *Provider) RateFor(ctx context.Context, day string) float64 {
	p.mu.RLock()
	cached, ok := p.rates[day]
	p.mu.RUnlock()
	if ok {
		return cached
	}

	rate, err := p.source.Rate(ctx, day, p.pair)
	if err != nil || rate <= 0 {
		if p.logger != nil {
			p.logger.Printf("rates: fetch failed day=%s pair=%s err=%v, using fallback %v", day, p.pair, err, p.fallback)
		}
		metrics.IncRateFallback()
		return p.fallback
	}

	p.mu.Lock()
	p.rates[day] = rate
	p.mu.Unlock()
	return rate
}

// ApplyEdit applies an operator rate edit optimistically: the local cache is
// updated first so dependent figures refresh immediately, then the edit is
// pushed upstream. On failure the cache entry is rolled back by re-fetching
// the authoritative value rather than restoring the remembered one.
func (p *Provider) ApplyEdit(ctx context.Context, day string, rate float64) error {
	if rate <= 0 {
		return errors.New("rates: non-positive rate")
	}

	p.mu.Lock()
	p.rates[day] = rate
	p.mu.Unlock()

	if err := p.source.UpdateRate(ctx, day, p.pair, rate); err != nil {
		p.mu.Lock()
		delete(p.rates, day)
		p.mu.Unlock()
		if refreshed, ferr := p.source.Rate(ctx, day, p.pair); ferr == nil && refreshed > 0 {
			p.mu.Lock()
			p.rates[day] = refreshed
			p.mu.Unlock()
		}
		return err
	}
	if p.bus != nil {
		if perr := p.bus.Publish(ctx, eventing.RateUpdated{Pair: p.pair, Rate: rate, OccurredAt: time.Now()}); perr != nil && p.logger != nil {
			p.logger.Printf("rates: publish failed: %v", perr)
		}
	}
	return nil
}
