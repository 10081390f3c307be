package application

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"

	reconcile "cashdesk/internal/reconcile/domain"
	"cashdesk/internal/reconcile/infrastructure/memory"
)

type stubCache struct {
	mu        sync.Mutex
	drafts    map[string]cachedDraft
	lastDay   string
	putCalls  int
	failReads bool
}

type cachedDraft struct {
	inputs   reconcile.Inputs
	override bool
}

func newStubCache() *stubCache {
	return &stubCache{drafts: make(map[string]cachedDraft)}
}

func (c *stubCache) PutDraft(ctx context.Context, day string, in reconcile.Inputs, manualOverride bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putCalls++
	c.drafts[day] = cachedDraft{inputs: in, override: manualOverride}
	return nil
}

func (c *stubCache) GetDraft(ctx context.Context, day string) (reconcile.Inputs, bool, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failReads {
		return reconcile.Inputs{}, false, false, errors.New("cache down")
	}
	d, ok := c.drafts[day]
	return d.inputs, d.override, ok, nil
}

func (c *stubCache) DeleteDraft(ctx context.Context, day string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.drafts, day)
	return nil
}

func (c *stubCache) SetLastSelectedDay(ctx context.Context, day string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastDay = day
	return nil
}

func (c *stubCache) LastSelectedDay(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastDay, nil
}

func (c *stubCache) writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.putCalls
}

func (c *stubCache) cached(day string) (cachedDraft, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.drafts[day]
	return d, ok
}

func (c *stubCache) seed(day string, d cachedDraft) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drafts[day] = d
}

type stubCore struct {
	computeFn func(ctx context.Context, day string, in reconcile.Inputs, manualOverride bool) (ComputeOutcome, error)
	saveErr   error
	saveCalls int
	pinOK     string
	balance   WalletTotal
}

func (c *stubCore) Compute(ctx context.Context, day string, in reconcile.Inputs, manualOverride bool) (ComputeOutcome, error) {
	if c.computeFn != nil {
		return c.computeFn(ctx, day, in, manualOverride)
	}
	return ComputeOutcome{Outputs: reconcile.Outputs{NetResultUSD: 1}}, nil
}

func (c *stubCore) Save(ctx context.Context, rec reconcile.Record, confirmationCode string) error {
	c.saveCalls++
	return c.saveErr
}

func (c *stubCore) CryptoBalance(ctx context.Context) (WalletTotal, error) {
	return c.balance, nil
}

func (c *stubCore) ValidatePin(ctx context.Context, pin string) (bool, error) {
	return pin == c.pinOK, nil
}

type stubExpenses struct {
	lines []reconcile.ExpenseLine
}

func (s *stubExpenses) ListExpenses(ctx context.Context, day reconcile.DayKey) ([]reconcile.ExpenseLine, error) {
	return s.lines, nil
}

type stubLedger struct {
	lines []reconcile.LedgerLine
}

func (s *stubLedger) ListTransactions(ctx context.Context, day reconcile.DayKey) ([]reconcile.LedgerLine, error) {
	return s.lines, nil
}

type stubRates struct {
	rate float64
}

func (s *stubRates) RateFor(ctx context.Context, day string) float64 { return s.rate }

func newTestService(t *testing.T, core *stubCore) (*DraftService, *stubCache) {
	t.Helper()
	cache := newStubCache()
	svc, err := NewDraftService(
		memory.NewDraftRepository(),
		cache,
		core,
		&stubExpenses{},
		&stubLedger{},
		&stubRates{rate: 42},
		nil,
		SystemClock{},
		nil,
		log.New(io.Discard, "", 0),
	)
	if err != nil {
		t.Fatalf("NewDraftService() error = %v", err)
	}
	return svc, cache
}

const testDay = reconcile.DayKey("2024-03-15")

func TestSelectDayCreatesZeroedDraft(t *testing.T) {
	svc, cache := newTestService(t, &stubCore{})

	rec, err := svc.SelectDay(context.Background(), testDay)
	if err != nil {
		t.Fatalf("SelectDay() error = %v", err)
	}
	if rec.Inputs != (reconcile.Inputs{}) {
		t.Errorf("new draft inputs = %+v, want zeroed", rec.Inputs)
	}
	if cache.lastDay != testDay.String() {
		t.Errorf("last selected day = %q, want %q", cache.lastDay, testDay)
	}
	if svc.ActiveDay() != testDay {
		t.Errorf("ActiveDay() = %q, want %q", svc.ActiveDay(), testDay)
	}
}

func TestSelectDayRestoresCachedDraft(t *testing.T) {
	svc, cache := newTestService(t, &stubCore{})
	cache.seed(testDay.String(), cachedDraft{
		inputs: reconcile.Inputs{CompanyCashUSD: 1500, CryptoBalanceUSD: 250},
	})

	rec, err := svc.SelectDay(context.Background(), testDay)
	if err != nil {
		t.Fatalf("SelectDay() error = %v", err)
	}
	if rec.Inputs.CompanyCashUSD != 1500 {
		t.Errorf("restored company cash = %v, want 1500", rec.Inputs.CompanyCashUSD)
	}
	if rec.Inputs.CurrentCashUSD != 1750 {
		t.Errorf("restored current cash = %v, want re-derived 1750", rec.Inputs.CurrentCashUSD)
	}
}

func TestStaleComputeResponseDropped(t *testing.T) {
	// A recompute is outstanding while a fetch-style edit lands. The
	// response was computed from pre-edit figures; it must be dropped
	// whole, whatever order the calls resolved in.
	core := &stubCore{}
	svc, _ := newTestService(t, core)
	ctx := context.Background()

	if _, err := svc.SelectDay(ctx, testDay); err != nil {
		t.Fatalf("SelectDay() error = %v", err)
	}

	core.computeFn = func(ctx context.Context, day string, in reconcile.Inputs, manualOverride bool) (ComputeOutcome, error) {
		// Edit races in while the call is outstanding.
		if _, _, err := svc.SetField(ctx, testDay, reconcile.FieldExpenses, 777); err != nil {
			t.Fatalf("racing SetField() error = %v", err)
		}
		return ComputeOutcome{Outputs: reconcile.Outputs{NetResultUSD: -5}}, nil
	}

	rec, err := svc.Recompute(ctx, testDay)
	if err != nil {
		t.Fatalf("Recompute() error = %v", err)
	}
	if rec.HasResult {
		t.Error("stale response applied: HasResult = true")
	}
	if rec.Inputs.ExpensesUSD != 777 {
		t.Errorf("expenses = %v, want the racing edit's 777", rec.Inputs.ExpensesUSD)
	}
}

func TestCurrentComputeResponseApplied(t *testing.T) {
	core := &stubCore{
		computeFn: func(ctx context.Context, day string, in reconcile.Inputs, manualOverride bool) (ComputeOutcome, error) {
			return ComputeOutcome{Outputs: reconcile.Outputs{NetResultUSD: 250, DiscrepancyUSD: -3}}, nil
		},
	}
	svc, _ := newTestService(t, core)
	ctx := context.Background()

	if _, err := svc.SelectDay(ctx, testDay); err != nil {
		t.Fatalf("SelectDay() error = %v", err)
	}
	if _, _, err := svc.SetField(ctx, testDay, reconcile.FieldExpenses, 120); err != nil {
		t.Fatalf("SetField() error = %v", err)
	}

	rec, err := svc.Recompute(ctx, testDay)
	if err != nil {
		t.Fatalf("Recompute() error = %v", err)
	}
	if !rec.HasResult {
		t.Fatal("HasResult = false after applied compute")
	}
	if rec.Outputs.NetResultUSD != 250 {
		t.Errorf("net result = %v, want 250", rec.Outputs.NetResultUSD)
	}
	if rec.Inputs.ExpensesUSD != 120 {
		t.Errorf("expenses = %v, compute must not touch inputs", rec.Inputs.ExpensesUSD)
	}
}

func TestRefreshFromUpstreamAdoptsServerState(t *testing.T) {
	core := &stubCore{
		computeFn: func(ctx context.Context, day string, in reconcile.Inputs, manualOverride bool) (ComputeOutcome, error) {
			return ComputeOutcome{
				Inputs:  reconcile.Inputs{CompanyCashUSD: 900, CryptoBalanceUSD: 100},
				Outputs: reconcile.Outputs{NetResultUSD: 10},
				Saved:   true,
			}, nil
		},
	}
	svc, _ := newTestService(t, core)
	ctx := context.Background()

	if _, err := svc.SelectDay(ctx, testDay); err != nil {
		t.Fatalf("SelectDay() error = %v", err)
	}
	rec, err := svc.RefreshFromUpstream(ctx, testDay)
	if err != nil {
		t.Fatalf("RefreshFromUpstream() error = %v", err)
	}
	if rec.Inputs.CompanyCashUSD != 900 || rec.Inputs.CurrentCashUSD != 1000 {
		t.Errorf("adopted inputs = %+v, want server values with derived current cash", rec.Inputs)
	}
	if !rec.IsSaved {
		t.Error("IsSaved = false, want upstream saved flag adopted")
	}
}

func TestRefreshFromUpstreamLosesToLocalEdit(t *testing.T) {
	core := &stubCore{}
	svc, _ := newTestService(t, core)
	ctx := context.Background()

	if _, err := svc.SelectDay(ctx, testDay); err != nil {
		t.Fatalf("SelectDay() error = %v", err)
	}

	core.computeFn = func(ctx context.Context, day string, in reconcile.Inputs, manualOverride bool) (ComputeOutcome, error) {
		if _, _, err := svc.SetField(ctx, testDay, reconcile.FieldCompanyCash, 5000); err != nil {
			t.Fatalf("racing SetField() error = %v", err)
		}
		return ComputeOutcome{
			Inputs: reconcile.Inputs{CompanyCashUSD: 900},
			Saved:  true,
		}, nil
	}

	rec, err := svc.RefreshFromUpstream(ctx, testDay)
	if err != nil {
		t.Fatalf("RefreshFromUpstream() error = %v", err)
	}
	if rec.Inputs.CompanyCashUSD != 5000 {
		t.Errorf("company cash = %v, want the local edit's 5000", rec.Inputs.CompanyCashUSD)
	}
	if rec.IsSaved {
		t.Error("IsSaved = true, stale upstream state must not apply")
	}
}

func TestFetchExpensesWritesAggregate(t *testing.T) {
	svc, _ := newTestService(t, &stubCore{})
	svc.expenses = &stubExpenses{lines: []reconcile.ExpenseLine{
		{PaymentDay: testDay, Status: reconcile.ExpensePaid, AmountUSD: 100},
		{PaymentDay: testDay, Status: reconcile.ExpensePaid, AmountUSD: 20},
		{PaymentDay: testDay, Status: reconcile.ExpensePending, AmountUSD: 55},
	}}

	res, err := svc.FetchExpenses(context.Background(), testDay)
	if err != nil {
		t.Fatalf("FetchExpenses() error = %v", err)
	}
	if res.TotalUSD != 120 {
		t.Errorf("total = %v, want 120 (paid only)", res.TotalUSD)
	}
	if res.Record.Inputs.ExpensesUSD != 120 {
		t.Errorf("draft expenses = %v, want 120", res.Record.Inputs.ExpensesUSD)
	}
}

func TestFetchNetCashUsesRate(t *testing.T) {
	svc, _ := newTestService(t, &stubCore{})
	svc.ledger = &stubLedger{lines: []reconcile.LedgerLine{
		{Day: testDay, Amount: 4200, Currency: reconcile.CurrencyTRY, Category: reconcile.TxnDeposit},
		{Day: testDay, Amount: -50, Currency: reconcile.CurrencyUSD, Category: reconcile.TxnWithdraw},
	}}

	res, err := svc.FetchNetCash(context.Background(), testDay)
	if err != nil {
		t.Fatalf("FetchNetCash() error = %v", err)
	}
	if res.TotalUSD != 150 {
		t.Errorf("total = %v, want 150 (|4200/42| + |-50|)", res.TotalUSD)
	}
}

func TestGrossBalanceUSDFirst(t *testing.T) {
	svc, _ := newTestService(t, &stubCore{})
	svc.ledger = &stubLedger{lines: []reconcile.LedgerLine{
		{Day: testDay, Amount: 4200, Currency: reconcile.CurrencyTRY, Category: reconcile.TxnDeposit},
	}}

	gross, err := svc.GrossBalance(context.Background(), testDay)
	if err != nil {
		t.Fatalf("GrossBalance() error = %v", err)
	}
	if gross.USDGross != 100 {
		t.Errorf("usd gross = %v, want 100", gross.USDGross)
	}
	if gross.TRYGross != gross.USDGross*42 {
		t.Errorf("try gross = %v, must be derived from usd gross", gross.TRYGross)
	}
}

func TestFetchCryptoBalanceDerivesCurrentCash(t *testing.T) {
	svc, _ := newTestService(t, &stubCore{balance: WalletTotal{TotalUSD: 250}})
	ctx := context.Background()

	if _, _, err := svc.SetField(ctx, testDay, reconcile.FieldCompanyCash, 1500); err != nil {
		t.Fatalf("SetField() error = %v", err)
	}
	res, err := svc.FetchCryptoBalance(ctx, testDay)
	if err != nil {
		t.Fatalf("FetchCryptoBalance() error = %v", err)
	}
	if res.Record.Inputs.CurrentCashUSD != 1750 {
		t.Errorf("current cash = %v, want 1750", res.Record.Inputs.CurrentCashUSD)
	}
}

func TestConfirmOverrideHappyPath(t *testing.T) {
	svc, _ := newTestService(t, &stubCore{pinOK: "1234"})
	ctx := context.Background()

	if _, err := svc.RequestOverride(testDay); err != nil {
		t.Fatalf("RequestOverride() error = %v", err)
	}
	rec, err := svc.ConfirmOverride(ctx, testDay, "1234")
	if err != nil {
		t.Fatalf("ConfirmOverride() error = %v", err)
	}
	if !rec.ManualOverride {
		t.Error("ManualOverride = false after confirmed code")
	}
	if svc.OverrideState(testDay) != reconcile.OverrideManual {
		t.Errorf("gate = %v, want manual", svc.OverrideState(testDay))
	}

	// Now the current-cash field is writable directly.
	rec, _, err = svc.SetField(ctx, testDay, reconcile.FieldCurrentCash, 9999)
	if err != nil {
		t.Fatalf("SetField(current cash) error = %v", err)
	}
	if rec.Inputs.CurrentCashUSD != 9999 {
		t.Errorf("current cash = %v, want 9999", rec.Inputs.CurrentCashUSD)
	}
}

func TestConfirmOverrideRejectedCode(t *testing.T) {
	svc, _ := newTestService(t, &stubCore{pinOK: "1234"})
	ctx := context.Background()

	if _, err := svc.RequestOverride(testDay); err != nil {
		t.Fatalf("RequestOverride() error = %v", err)
	}
	if _, err := svc.ConfirmOverride(ctx, testDay, "9999"); !errors.Is(err, ErrCodeRejected) {
		t.Fatalf("ConfirmOverride() error = %v, want ErrCodeRejected", err)
	}
	if svc.OverrideState(testDay) != reconcile.OverrideAuto {
		t.Errorf("gate = %v, want auto after rejection", svc.OverrideState(testDay))
	}

	// Retry with the right code works.
	if _, err := svc.RequestOverride(testDay); err != nil {
		t.Fatalf("RequestOverride() retry error = %v", err)
	}
	if _, err := svc.ConfirmOverride(ctx, testDay, "1234"); err != nil {
		t.Fatalf("ConfirmOverride() retry error = %v", err)
	}
}

func TestConfirmOverrideMalformedCode(t *testing.T) {
	svc, _ := newTestService(t, &stubCore{pinOK: "1234"})

	if _, err := svc.RequestOverride(testDay); err != nil {
		t.Fatalf("RequestOverride() error = %v", err)
	}
	if _, err := svc.ConfirmOverride(context.Background(), testDay, "12a4"); !errors.Is(err, ErrMalformedCode) {
		t.Fatalf("ConfirmOverride() error = %v, want ErrMalformedCode", err)
	}
}

func TestDisableOverrideRederives(t *testing.T) {
	svc, _ := newTestService(t, &stubCore{pinOK: "1234"})
	ctx := context.Background()

	if _, _, err := svc.SetField(ctx, testDay, reconcile.FieldCompanyCash, 100); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RequestOverride(testDay); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ConfirmOverride(ctx, testDay, "1234"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.SetField(ctx, testDay, reconcile.FieldCurrentCash, 9999); err != nil {
		t.Fatal(err)
	}

	rec, err := svc.DisableOverride(ctx, testDay)
	if err != nil {
		t.Fatalf("DisableOverride() error = %v", err)
	}
	if rec.Inputs.CurrentCashUSD != 100 {
		t.Errorf("current cash = %v, want re-derived 100", rec.Inputs.CurrentCashUSD)
	}
}

func TestAutosaveTickOnlySavesUnsavedResults(t *testing.T) {
	core := &stubCore{}
	svc, _ := newTestService(t, core)
	ctx := context.Background()

	// No active day: nothing happens.
	svc.AutosaveTick(ctx)
	if core.saveCalls != 0 {
		t.Fatalf("saveCalls = %d before any day selected", core.saveCalls)
	}

	if _, err := svc.SelectDay(ctx, testDay); err != nil {
		t.Fatal(err)
	}

	// No computed result yet: still nothing.
	svc.AutosaveTick(ctx)
	if core.saveCalls != 0 {
		t.Fatalf("saveCalls = %d without a computed result", core.saveCalls)
	}

	if _, err := svc.Recompute(ctx, testDay); err != nil {
		t.Fatal(err)
	}
	svc.AutosaveTick(ctx)
	if core.saveCalls != 1 {
		t.Fatalf("saveCalls = %d, want 1 after unsaved result", core.saveCalls)
	}

	// Saved now: the next tick is a no-op.
	svc.AutosaveTick(ctx)
	if core.saveCalls != 1 {
		t.Fatalf("saveCalls = %d, want still 1 once saved", core.saveCalls)
	}
}

func TestAutosaveFailureKeepsDraftUnsaved(t *testing.T) {
	core := &stubCore{saveErr: errors.New("upstream down")}
	svc, _ := newTestService(t, core)
	ctx := context.Background()

	if _, err := svc.SelectDay(ctx, testDay); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Recompute(ctx, testDay); err != nil {
		t.Fatal(err)
	}

	svc.AutosaveTick(ctx)
	rec, err := svc.Snapshot(ctx, testDay)
	if err != nil {
		t.Fatal(err)
	}
	if rec.IsSaved {
		t.Error("IsSaved = true after failed autosave")
	}

	// The next tick retries.
	core.saveErr = nil
	svc.AutosaveTick(ctx)
	rec, _ = svc.Snapshot(ctx, testDay)
	if !rec.IsSaved {
		t.Error("IsSaved = false after retried autosave")
	}
}

func TestClearRequiresValidCode(t *testing.T) {
	svc, cache := newTestService(t, &stubCore{pinOK: "1234"})
	ctx := context.Background()

	if _, _, err := svc.SetField(ctx, testDay, reconcile.FieldExpenses, 120); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Clear(ctx, testDay, "0000"); !errors.Is(err, ErrCodeRejected) {
		t.Fatalf("Clear() error = %v, want ErrCodeRejected", err)
	}
	rec, _ := svc.Snapshot(ctx, testDay)
	if rec.Inputs.ExpensesUSD != 120 {
		t.Error("rejected clear must not mutate the draft")
	}

	cache.seed(testDay.String(), cachedDraft{inputs: rec.Inputs})
	rec, err := svc.Clear(ctx, testDay, "1234")
	if err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if rec.Inputs != (reconcile.Inputs{}) {
		t.Errorf("cleared inputs = %+v, want zeroed", rec.Inputs)
	}
	if _, ok := cache.cached(testDay.String()); ok {
		t.Error("cache entry survived a confirmed clear")
	}
}

func TestSaveMarksDraftSaved(t *testing.T) {
	core := &stubCore{}
	svc, _ := newTestService(t, core)
	ctx := context.Background()

	if _, _, err := svc.SetField(ctx, testDay, reconcile.FieldExpenses, 120); err != nil {
		t.Fatal(err)
	}
	rec, err := svc.Save(ctx, testDay, "")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !rec.IsSaved {
		t.Error("IsSaved = false after successful save")
	}
	if core.saveCalls != 1 {
		t.Errorf("saveCalls = %d, want 1", core.saveCalls)
	}
}

func TestSaveFailureLeavesLastKnownGood(t *testing.T) {
	core := &stubCore{saveErr: errors.New("502")}
	svc, _ := newTestService(t, core)
	ctx := context.Background()

	if _, _, err := svc.SetField(ctx, testDay, reconcile.FieldExpenses, 120); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Save(ctx, testDay, ""); err == nil {
		t.Fatal("Save() error = nil, want upstream failure")
	}
	rec, _ := svc.Snapshot(ctx, testDay)
	if rec.IsSaved {
		t.Error("IsSaved = true after failed save")
	}
	if rec.Inputs.ExpensesUSD != 120 {
		t.Error("failed save must leave the draft unchanged")
	}
}

func TestSelectDayResetsPreviousGate(t *testing.T) {
	svc, _ := newTestService(t, &stubCore{pinOK: "1234"})
	ctx := context.Background()

	if _, err := svc.SelectDay(ctx, testDay); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RequestOverride(testDay); err != nil {
		t.Fatal(err)
	}

	other := reconcile.DayKey("2024-03-16")
	if _, err := svc.SelectDay(ctx, other); err != nil {
		t.Fatal(err)
	}
	if svc.OverrideState(testDay) != reconcile.OverrideAuto {
		t.Errorf("previous day's gate = %v, want auto after date change", svc.OverrideState(testDay))
	}
}
