package application

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"cashdesk/internal/eventing"
	"cashdesk/internal/observability/metrics"
	reconcile "cashdesk/internal/reconcile/domain"
)

// ErrCodeRejected is returned when the upstream rejects a confirmation code.
// The operator may retry with a fresh code; no state changed.
var ErrCodeRejected = errors.New("reconcile: confirmation code rejected")

// ErrMalformedCode is returned before any network call when the code is not
// four digits.
var ErrMalformedCode = errors.New("reconcile: confirmation code must be four digits")

// ComputeOutcome is the upstream compute endpoint's answer: the outputs it
// derived plus the input figures it holds for the day.
type ComputeOutcome struct {
	Inputs  reconcile.Inputs
	Outputs reconcile.Outputs
	Saved   bool
}

// WalletTotal is the live crypto balance across wallets.
type WalletTotal struct {
	TotalUSD    float64
	WalletCount int
}

// CoreGateway is the upstream dashboard core, the only authority on the
// reconciliation formula.
type CoreGateway interface {
	Compute(ctx context.Context, day string, in reconcile.Inputs, manualOverride bool) (ComputeOutcome, error)
	Save(ctx context.Context, rec reconcile.Record, confirmationCode string) error
	CryptoBalance(ctx context.Context) (WalletTotal, error)
	ValidatePin(ctx context.Context, pin string) (bool, error)
}

// DraftRepository stores per-day drafts.
type DraftRepository interface {
	FindByDay(ctx context.Context, day reconcile.DayKey) (*reconcile.Draft, error)
	Save(ctx context.Context, d *reconcile.Draft) error
	Delete(ctx context.Context, day reconcile.DayKey) error
}

// DraftCache is the local fallback cache surviving restarts.
type DraftCache interface {
	PutDraft(ctx context.Context, day string, in reconcile.Inputs, manualOverride bool) error
	GetDraft(ctx context.Context, day string) (reconcile.Inputs, bool, bool, error)
	DeleteDraft(ctx context.Context, day string) error
	SetLastSelectedDay(ctx context.Context, day string) error
	LastSelectedDay(ctx context.Context) (string, error)
}

// ExpenseSource lists expense-ledger lines for a day.
type ExpenseSource interface {
	ListExpenses(ctx context.Context, day reconcile.DayKey) ([]reconcile.ExpenseLine, error)
}

// LedgerSource lists imported ledger transactions for a day.
type LedgerSource interface {
	ListTransactions(ctx context.Context, day reconcile.DayKey) ([]reconcile.LedgerLine, error)
}

// RateProvider resolves the day's USD/TRY rate, falling back when the
// upstream is unreachable.
type RateProvider interface {
	RateFor(ctx context.Context, day string) float64
}

// Publisher emits domain events.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FetchResult reports one auto-fetch action: the figure written and how many
// source lines were dropped on the way.
type FetchResult struct {
	TotalUSD float64
	Skipped  int
	Invalid  int
	Record   reconcile.Record
}

// DraftService orchestrates the per-day reconciliation drafts: selection,
// edits, fetch actions, recompute dispatch, the override gate and
// persistence. All blocking work takes a context; responses that lost the
// generation race are dropped whole.
type DraftService struct {
	repo     DraftRepository
	cache    DraftCache
	core     CoreGateway
	expenses ExpenseSource
	ledger   LedgerSource
	rates    RateProvider
	bus      Publisher
	clock    Clock
	logger   *log.Logger

	guard  *generationGuard
	gates  *gateSet
	mirror *Mirror

	active *activeDay
}

// NewDraftService constructs the service.
func NewDraftService(
	repo DraftRepository,
	cache DraftCache,
	core CoreGateway,
	expenses ExpenseSource,
	ledger LedgerSource,
	rates RateProvider,
	bus Publisher,
	clock Clock,
	mirror *Mirror,
	logger *log.Logger,
) (*DraftService, error) {
	if repo == nil {
		return nil, errors.New("draft service: nil repository")
	}
	if cache == nil {
		return nil, errors.New("draft service: nil cache")
	}
	if core == nil {
		return nil, errors.New("draft service: nil core gateway")
	}
	if rates == nil {
		return nil, errors.New("draft service: nil rate provider")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}

	return &DraftService{
		repo:     repo,
		cache:    cache,
		core:     core,
		expenses: expenses,
		ledger:   ledger,
		rates:    rates,
		bus:      bus,
		clock:    clock,
		logger:   logger,
		guard:    newGenerationGuard(),
		gates:    newGateSet(),
		mirror:   mirror,
		active:   &activeDay{},
	}, nil
}

// SelectDay makes a day active. An existing draft is reused; a locally
// cached one is restored; otherwise a zeroed draft is created. The override
// gate resets with the day change.
func (s *DraftService) SelectDay(ctx context.Context, day reconcile.DayKey) (reconcile.Record, error) {
	if day == "" {
		return reconcile.Record{}, reconcile.ErrInvalidDay
	}

	previous := s.active.swap(day)
	if previous != "" && previous != day {
		s.gates.reset(previous)
		if s.mirror != nil {
			s.mirror.CancelDay(previous)
		}
	}
	s.guard.bump(day)

	if err := s.cache.SetLastSelectedDay(ctx, day.String()); err != nil {
		s.logger.Printf("draft service: recording selected day failed: %v", err)
	}

	draft, err := s.loadOrCreate(ctx, day)
	if err != nil {
		return reconcile.Record{}, err
	}
	if err := s.repo.Save(ctx, draft); err != nil {
		return reconcile.Record{}, err
	}
	return draft.Snapshot(), nil
}

// ActiveDay returns the currently selected day, empty when none.
func (s *DraftService) ActiveDay() reconcile.DayKey {
	return s.active.get()
}

// LastSelectedDay returns the day recorded before the previous shutdown.
func (s *DraftService) LastSelectedDay(ctx context.Context) (reconcile.DayKey, error) {
	day, err := s.cache.LastSelectedDay(ctx)
	if err != nil {
		return "", err
	}
	return reconcile.DayKey(day), nil
}

// SetField writes one input figure on the day's draft. The edit supersedes
// every in-flight compute response for the day and schedules a debounced
// cache mirror.
func (s *DraftService) SetField(ctx context.Context, day reconcile.DayKey, field reconcile.InputField, value float64) (reconcile.Record, bool, error) {
	draft, err := s.loadOrCreate(ctx, day)
	if err != nil {
		return reconcile.Record{}, false, err
	}

	coerced, err := draft.SetInput(field, value)
	if err != nil {
		return reconcile.Record{}, coerced, err
	}
	if coerced {
		s.logger.Printf("draft service: day=%s field=%s value coerced to zero", day, field)
	}

	s.guard.bump(day)
	if err := s.repo.Save(ctx, draft); err != nil {
		return reconcile.Record{}, coerced, err
	}
	s.scheduleMirror(day, draft)
	return draft.Snapshot(), coerced, nil
}

// Recompute dispatches the day's current figures to the compute endpoint
// and applies the returned outputs, unless a newer local mutation raced in
// while the call was outstanding. Inputs are never overwritten here.
func (s *DraftService) Recompute(ctx context.Context, day reconcile.DayKey) (reconcile.Record, error) {
	draft, err := s.loadOrCreate(ctx, day)
	if err != nil {
		return reconcile.Record{}, err
	}

	gen := s.guard.current(day)
	start := s.clock.Now()
	outcome, err := s.core.Compute(ctx, day.String(), draft.Inputs(), draft.ManualOverride())
	if err != nil {
		metrics.ObserveCompute(metrics.ResultError, s.clock.Now().Sub(start))
		return reconcile.Record{}, err
	}
	metrics.ObserveCompute(metrics.ResultSuccess, s.clock.Now().Sub(start))

	if !s.guard.stillCurrent(day, gen) {
		metrics.IncComputeStale()
		s.logger.Printf("draft service: day=%s stale compute response dropped", day)
		return s.snapshot(ctx, day)
	}

	// Reload: the repo copy may carry edits applied after dispatch within
	// the same generation window.
	draft, err = s.loadOrCreate(ctx, day)
	if err != nil {
		return reconcile.Record{}, err
	}
	if err := draft.ApplyResult(outcome.Outputs, outcome.Saved); err != nil {
		return reconcile.Record{}, err
	}
	if err := s.repo.Save(ctx, draft); err != nil {
		return reconcile.Record{}, err
	}
	s.publish(ctx, eventing.DraftComputed{
		Day:          day.String(),
		Generation:   gen,
		NetResultUSD: outcome.Outputs.NetResultUSD,
		OccurredAt:   s.clock.Now(),
	})
	return draft.Snapshot(), nil
}

// RefreshFromUpstream pulls the server's stored state for a freshly selected
// day, inputs included. A local edit made while the call was outstanding
// wins: the response is then dropped whole.
func (s *DraftService) RefreshFromUpstream(ctx context.Context, day reconcile.DayKey) (reconcile.Record, error) {
	draft, err := s.loadOrCreate(ctx, day)
	if err != nil {
		return reconcile.Record{}, err
	}

	gen := s.guard.current(day)
	start := s.clock.Now()
	outcome, err := s.core.Compute(ctx, day.String(), draft.Inputs(), false)
	if err != nil {
		metrics.ObserveCompute(metrics.ResultError, s.clock.Now().Sub(start))
		return reconcile.Record{}, err
	}
	metrics.ObserveCompute(metrics.ResultSuccess, s.clock.Now().Sub(start))

	if !s.guard.stillCurrent(day, gen) {
		metrics.IncComputeStale()
		s.logger.Printf("draft service: day=%s stale upstream state dropped", day)
		return s.snapshot(ctx, day)
	}

	draft, err = s.loadOrCreate(ctx, day)
	if err != nil {
		return reconcile.Record{}, err
	}
	if err := draft.AdoptUpstream(outcome.Inputs, outcome.Outputs, outcome.Saved); err != nil {
		return reconcile.Record{}, err
	}
	if err := s.repo.Save(ctx, draft); err != nil {
		return reconcile.Record{}, err
	}
	s.scheduleMirror(day, draft)
	return draft.Snapshot(), nil
}

// FetchExpenses aggregates the day's paid expenses from the ledger and
// writes the total into the draft.
func (s *DraftService) FetchExpenses(ctx context.Context, day reconcile.DayKey) (FetchResult, error) {
	if s.expenses == nil {
		return FetchResult{}, errors.New("draft service: no expense source configured")
	}
	start := s.clock.Now()
	lines, err := s.expenses.ListExpenses(ctx, day)
	if err != nil {
		metrics.ObserveFetch("expenses", metrics.ResultError, s.clock.Now().Sub(start))
		return FetchResult{}, err
	}
	total := reconcile.AggregateExpenses(day, lines)
	metrics.ObserveFetch("expenses", metrics.ResultSuccess, s.clock.Now().Sub(start))
	return s.applyFetch(ctx, day, reconcile.FieldExpenses, total)
}

// FetchNetCash aggregates the day's transacted USD volume from the ledger
// and writes it into the draft.
func (s *DraftService) FetchNetCash(ctx context.Context, day reconcile.DayKey) (FetchResult, error) {
	if s.ledger == nil {
		return FetchResult{}, errors.New("draft service: no ledger source configured")
	}
	start := s.clock.Now()
	lines, err := s.ledger.ListTransactions(ctx, day)
	if err != nil {
		metrics.ObserveFetch("net_cash", metrics.ResultError, s.clock.Now().Sub(start))
		return FetchResult{}, err
	}
	rate := s.rates.RateFor(ctx, day.String())
	total, err := reconcile.AggregateNetCash(day, lines, rate)
	if err != nil {
		metrics.ObserveFetch("net_cash", metrics.ResultError, s.clock.Now().Sub(start))
		return FetchResult{}, err
	}
	metrics.ObserveFetch("net_cash", metrics.ResultSuccess, s.clock.Now().Sub(start))
	return s.applyFetch(ctx, day, reconcile.FieldNetCash, total)
}

// FetchCommission aggregates the day's commissions from the ledger and
// writes the total into the draft.
func (s *DraftService) FetchCommission(ctx context.Context, day reconcile.DayKey) (FetchResult, error) {
	if s.ledger == nil {
		return FetchResult{}, errors.New("draft service: no ledger source configured")
	}
	start := s.clock.Now()
	lines, err := s.ledger.ListTransactions(ctx, day)
	if err != nil {
		metrics.ObserveFetch("commission", metrics.ResultError, s.clock.Now().Sub(start))
		return FetchResult{}, err
	}
	rate := s.rates.RateFor(ctx, day.String())
	total, err := reconcile.AggregateCommission(day, lines, rate)
	if err != nil {
		metrics.ObserveFetch("commission", metrics.ResultError, s.clock.Now().Sub(start))
		return FetchResult{}, err
	}
	metrics.ObserveFetch("commission", metrics.ResultSuccess, s.clock.Now().Sub(start))
	return s.applyFetch(ctx, day, reconcile.FieldCommissions, total)
}

// FetchCryptoBalance pulls the live wallet total and writes it into the
// draft; while the override is off this re-derives current cash.
func (s *DraftService) FetchCryptoBalance(ctx context.Context, day reconcile.DayKey) (FetchResult, error) {
	start := s.clock.Now()
	wallet, err := s.core.CryptoBalance(ctx)
	if err != nil {
		metrics.ObserveFetch("crypto_balance", metrics.ResultError, s.clock.Now().Sub(start))
		return FetchResult{}, err
	}
	metrics.ObserveFetch("crypto_balance", metrics.ResultSuccess, s.clock.Now().Sub(start))
	return s.applyFetch(ctx, day, reconcile.FieldCryptoBalance, reconcile.DailyTotal{TotalUSD: wallet.TotalUSD})
}

// GrossBalance derives the fallback per-currency gross figures for the day
// from the raw ledger; used when no authoritative figure exists upstream.
func (s *DraftService) GrossBalance(ctx context.Context, day reconcile.DayKey) (reconcile.GrossBalance, error) {
	if s.ledger == nil {
		return reconcile.GrossBalance{}, errors.New("draft service: no ledger source configured")
	}
	lines, err := s.ledger.ListTransactions(ctx, day)
	if err != nil {
		return reconcile.GrossBalance{}, err
	}
	rate := s.rates.RateFor(ctx, day.String())
	return reconcile.ComputeGrossBalance(day, lines, rate)
}

// RequestOverride moves the day's gate to pending confirmation. The draft's
// override flag is untouched until a code is confirmed.
func (s *DraftService) RequestOverride(day reconcile.DayKey) (reconcile.OverrideState, error) {
	gate := s.gates.forDay(day)
	if err := gate.Request(); err != nil {
		return gate.State(), err
	}
	return gate.State(), nil
}

// ConfirmOverride validates the code upstream and, when accepted, flips the
// draft to manual current cash. A rejected code cancels the gate; the
// operator may retry.
func (s *DraftService) ConfirmOverride(ctx context.Context, day reconcile.DayKey, code string) (reconcile.Record, error) {
	gate := s.gates.forDay(day)
	if gate.State() != reconcile.OverridePending {
		return reconcile.Record{}, reconcile.ErrOverrideState
	}

	ok, err := s.validateCode(ctx, code)
	if err != nil {
		return reconcile.Record{}, err
	}
	if !ok {
		_ = gate.Cancel()
		return reconcile.Record{}, ErrCodeRejected
	}

	if err := gate.Confirm(); err != nil {
		return reconcile.Record{}, err
	}
	draft, err := s.loadOrCreate(ctx, day)
	if err != nil {
		return reconcile.Record{}, err
	}
	if err := draft.EnableOverride(); err != nil {
		return reconcile.Record{}, err
	}
	s.guard.bump(day)
	if err := s.repo.Save(ctx, draft); err != nil {
		return reconcile.Record{}, err
	}
	s.scheduleMirror(day, draft)
	return draft.Snapshot(), nil
}

// CancelOverride backs out of a pending confirmation.
func (s *DraftService) CancelOverride(day reconcile.DayKey) error {
	return s.gates.forDay(day).Cancel()
}

// DisableOverride turns manual current cash off and re-derives the sum. No
// confirmation is required in this direction.
func (s *DraftService) DisableOverride(ctx context.Context, day reconcile.DayKey) (reconcile.Record, error) {
	gate := s.gates.forDay(day)
	if err := gate.Disable(); err != nil {
		return reconcile.Record{}, err
	}
	draft, err := s.loadOrCreate(ctx, day)
	if err != nil {
		return reconcile.Record{}, err
	}
	if err := draft.DisableOverride(); err != nil {
		return reconcile.Record{}, err
	}
	s.guard.bump(day)
	if err := s.repo.Save(ctx, draft); err != nil {
		return reconcile.Record{}, err
	}
	s.scheduleMirror(day, draft)
	return draft.Snapshot(), nil
}

// OverrideState returns the day's gate position.
func (s *DraftService) OverrideState(day reconcile.DayKey) reconcile.OverrideState {
	return s.gates.forDay(day).State()
}

// Save persists the day's draft upstream. The confirmation code travels
// along when the operator supplied one; autosave passes none.
func (s *DraftService) Save(ctx context.Context, day reconcile.DayKey, code string) (reconcile.Record, error) {
	return s.save(ctx, day, code, false)
}

// AutosaveTick saves the active day if a computed result exists and the
// draft is unsaved. Failures are logged only; the next tick retries.
func (s *DraftService) AutosaveTick(ctx context.Context) {
	day := s.active.get()
	if day == "" {
		return
	}
	draft, err := s.repo.FindByDay(ctx, day)
	if err != nil {
		s.logger.Printf("autosave: day=%s load failed: %v", day, err)
		return
	}
	if draft == nil || !draft.HasResult() || draft.IsSaved() {
		return
	}
	if _, err := s.save(ctx, day, "", true); err != nil {
		s.logger.Printf("autosave: day=%s save failed: %v", day, err)
	}
}

// Clear resets every field of the day's draft to zero after a confirmed
// code. The local cache entry goes with it.
func (s *DraftService) Clear(ctx context.Context, day reconcile.DayKey, code string) (reconcile.Record, error) {
	ok, err := s.validateCode(ctx, code)
	if err != nil {
		return reconcile.Record{}, err
	}
	if !ok {
		return reconcile.Record{}, ErrCodeRejected
	}

	draft, err := s.loadOrCreate(ctx, day)
	if err != nil {
		return reconcile.Record{}, err
	}
	if err := draft.Clear(); err != nil {
		return reconcile.Record{}, err
	}
	s.guard.bump(day)
	s.gates.reset(day)
	if err := s.repo.Save(ctx, draft); err != nil {
		return reconcile.Record{}, err
	}
	if err := s.cache.DeleteDraft(ctx, day.String()); err != nil {
		s.logger.Printf("draft service: day=%s cache delete failed: %v", day, err)
	}
	s.publish(ctx, eventing.DraftCleared{Day: day.String(), OccurredAt: s.clock.Now()})
	return draft.Snapshot(), nil
}

// Snapshot returns the day's current record without mutating anything.
func (s *DraftService) Snapshot(ctx context.Context, day reconcile.DayKey) (reconcile.Record, error) {
	return s.snapshot(ctx, day)
}

func (s *DraftService) save(ctx context.Context, day reconcile.DayKey, code string, autosave bool) (reconcile.Record, error) {
	trigger := metrics.SaveTriggerManual
	if autosave {
		trigger = metrics.SaveTriggerAutosave
	}

	draft, err := s.loadOrCreate(ctx, day)
	if err != nil {
		return reconcile.Record{}, err
	}

	start := s.clock.Now()
	if err := s.core.Save(ctx, draft.Snapshot(), code); err != nil {
		metrics.ObserveSave(trigger, metrics.ResultError, s.clock.Now().Sub(start))
		return reconcile.Record{}, err
	}
	metrics.ObserveSave(trigger, metrics.ResultSuccess, s.clock.Now().Sub(start))

	draft.MarkSaved()
	if err := s.repo.Save(ctx, draft); err != nil {
		return reconcile.Record{}, err
	}
	s.publish(ctx, eventing.DraftSaved{Day: day.String(), Autosave: autosave, OccurredAt: s.clock.Now()})
	return draft.Snapshot(), nil
}

func (s *DraftService) applyFetch(ctx context.Context, day reconcile.DayKey, field reconcile.InputField, total reconcile.DailyTotal) (FetchResult, error) {
	rec, _, err := s.SetField(ctx, day, field, total.TotalUSD)
	if err != nil {
		return FetchResult{}, err
	}
	if total.Invalid > 0 {
		s.logger.Printf("draft service: day=%s field=%s invalid_lines=%d", day, field, total.Invalid)
	}
	return FetchResult{
		TotalUSD: total.TotalUSD,
		Skipped:  total.Skipped,
		Invalid:  total.Invalid,
		Record:   rec,
	}, nil
}

func (s *DraftService) validateCode(ctx context.Context, code string) (bool, error) {
	if !reconcile.WellFormedPin(code) {
		metrics.IncPinCheck(metrics.PinRejected)
		return false, ErrMalformedCode
	}
	ok, err := s.core.ValidatePin(ctx, code)
	if err != nil {
		metrics.IncPinCheck(metrics.PinError)
		return false, err
	}
	if ok {
		metrics.IncPinCheck(metrics.PinOK)
	} else {
		metrics.IncPinCheck(metrics.PinRejected)
	}
	return ok, nil
}

func (s *DraftService) loadOrCreate(ctx context.Context, day reconcile.DayKey) (*reconcile.Draft, error) {
	if day == "" {
		return nil, reconcile.ErrInvalidDay
	}
	draft, err := s.repo.FindByDay(ctx, day)
	if err != nil {
		return nil, err
	}
	if draft != nil {
		return draft, nil
	}

	inputs, override, found, err := s.cache.GetDraft(ctx, day.String())
	if err != nil {
		s.logger.Printf("draft service: day=%s cache read failed: %v", day, err)
	}
	if found {
		return reconcile.RestoreDraft(day, inputs, override)
	}
	return reconcile.NewDraft(day)
}

func (s *DraftService) snapshot(ctx context.Context, day reconcile.DayKey) (reconcile.Record, error) {
	draft, err := s.loadOrCreate(ctx, day)
	if err != nil {
		return reconcile.Record{}, err
	}
	return draft.Snapshot(), nil
}

func (s *DraftService) scheduleMirror(day reconcile.DayKey, draft *reconcile.Draft) {
	if s.mirror == nil {
		return
	}
	s.mirror.Schedule(day, draft.Inputs(), draft.ManualOverride())
}

func (s *DraftService) publish(ctx context.Context, event any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Printf("draft service: publish failed: %v", err)
	}
}

// activeDay is the currently selected date, shared between the HTTP surface
// and the autosave loop.
type activeDay struct {
	mu  sync.Mutex
	day reconcile.DayKey
}

func (a *activeDay) get() reconcile.DayKey {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.day
}

func (a *activeDay) swap(day reconcile.DayKey) reconcile.DayKey {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev := a.day
	a.day = day
	return prev
}

// gateSet holds one override gate per day.
type gateSet struct {
	mu    sync.Mutex
	gates map[reconcile.DayKey]*reconcile.OverrideGate
}

func newGateSet() *gateSet {
	return &gateSet{gates: make(map[reconcile.DayKey]*reconcile.OverrideGate)}
}

func (g *gateSet) forDay(day reconcile.DayKey) *reconcile.OverrideGate {
	g.mu.Lock()
	defer g.mu.Unlock()
	gate := g.gates[day]
	if gate == nil {
		gate = reconcile.NewOverrideGate()
		g.gates[day] = gate
	}
	return gate
}

func (g *gateSet) reset(day reconcile.DayKey) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gate := g.gates[day]; gate != nil {
		gate.Reset()
	}
}
