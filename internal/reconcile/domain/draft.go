package reconcile

import "math"

// InputField names one of the draft's mutable input slots.
type InputField string

const (
	FieldExpenses          InputField = "expenses_usd"
	FieldRollover          InputField = "rollover_usd"
	FieldNetCash           InputField = "net_cash_usd"
	FieldCommissions       InputField = "commissions_usd"
	FieldPreviousClosing   InputField = "previous_closing_usd"
	FieldCompanyCash       InputField = "company_cash_usd"
	FieldCryptoBalance     InputField = "crypto_balance_usd"
	FieldPendingCollection InputField = "pending_collection_usd"
	FieldCurrentCash       InputField = "current_cash_usd"
)

// Inputs holds the nine manually or automatically entered figures.
type Inputs struct {
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

// Outputs holds the figures only the upstream compute endpoint may produce.
type Outputs struct {
	NetResultUSD         float64 `json:"net_result_usd"`
	DiscrepancyUSD       float64 `json:"discrepancy_usd"`
	DiscrepancyBottomUSD float64 `json:"discrepancy_bottom_usd"`
}

// Record is a detached, transport-friendly snapshot of one draft.
type Record struct {
	Day            string  `json:"date"`
	Inputs         Inputs  `json:"inputs"`
	ManualOverride bool    `json:"manual_override"`
	Outputs        Outputs `json:"outputs"`
	HasResult      bool    `json:"has_result"`
	IsSaved        bool    `json:"is_saved"`
	IsLocked       bool    `json:"is_locked"`
}

// Draft is the per-date reconciliation aggregate. One exists per calendar
// day, created implicitly the first time the day is selected.
//
// Invariant: while manualOverride is false,
// CurrentCashUSD == CompanyCashUSD + CryptoBalanceUSD after every mutation
// of either operand.
type Draft struct {
	day            DayKey
	inputs         Inputs
	manualOverride bool
	outputs        Outputs
	hasResult      bool
	saved          bool
	locked         bool
}

// NewDraft creates a zeroed draft for the day.
func NewDraft(day DayKey) (*Draft, error) {
	if day == "" {
		return nil, ErrInvalidDay
	}
	return &Draft{day: day}, nil
}

// RestoreDraft rebuilds a draft from cached inputs, re-deriving the current
// cash sum when the override is off.
func RestoreDraft(day DayKey, inputs Inputs, manualOverride bool) (*Draft, error) {
	d, err := NewDraft(day)
	if err != nil {
		return nil, err
	}
	d.inputs = sanitizeInputs(inputs)
	d.manualOverride = manualOverride
	if !manualOverride {
		d.deriveCurrentCash()
	}
	return d, nil
}

// Day returns the draft's day key.
func (d *Draft) Day() DayKey { return d.day }

// Inputs returns the current input figures.
func (d *Draft) Inputs() Inputs { return d.inputs }

// Outputs returns the last applied compute result.
func (d *Draft) Outputs() Outputs { return d.outputs }

// ManualOverride reports whether current cash is manually entered.
func (d *Draft) ManualOverride() bool { return d.manualOverride }

// HasResult reports whether a compute result has been applied.
func (d *Draft) HasResult() bool { return d.hasResult }

// IsSaved reports whether the last persistence call succeeded.
func (d *Draft) IsSaved() bool { return d.saved }

// IsLocked reports whether the draft is history-only.
func (d *Draft) IsLocked() bool { return d.locked }

// SetInput writes one input figure. Bad values (NaN, negative) are coerced
// to zero; the caller is told via coerced so it can log a warning. Mutating
// either current-cash operand re-derives the sum while the override is off.
// Writing FieldCurrentCash directly requires the override to be on.
func (d *Draft) SetInput(field InputField, value float64) (coerced bool, err error) {
	if d.locked {
		return false, ErrDraftLocked
	}
	if math.IsNaN(value) || value < 0 {
		value = 0
		coerced = true
	}
	switch field {
	case FieldExpenses:
		d.inputs.ExpensesUSD = value
	case FieldRollover:
		d.inputs.RolloverUSD = value
	case FieldNetCash:
		d.inputs.NetCashUSD = value
	case FieldCommissions:
		d.inputs.CommissionsUSD = value
	case FieldPreviousClosing:
		d.inputs.PreviousClosingUSD = value
	case FieldCompanyCash:
		d.inputs.CompanyCashUSD = value
		if !d.manualOverride {
			d.deriveCurrentCash()
		}
	case FieldCryptoBalance:
		d.inputs.CryptoBalanceUSD = value
		if !d.manualOverride {
			d.deriveCurrentCash()
		}
	case FieldCurrentCash:
		if !d.manualOverride {
			return coerced, ErrOverrideDisabled
		}
		d.inputs.CurrentCashUSD = value
	case FieldPendingCollection:
		d.inputs.PendingCollectionUSD = value
	default:
		return coerced, ErrUnknownField
	}
	d.saved = false
	return coerced, nil
}

// EnableOverride frees the current-cash field. Confirmation is the
// application layer's job; the draft only records the outcome.
func (d *Draft) EnableOverride() error {
	if d.locked {
		return ErrDraftLocked
	}
	d.manualOverride = true
	d.saved = false
	return nil
}

// DisableOverride turns the override off and re-derives current cash from
// its operands. No confirmation is needed to turn overriding off.
func (d *Draft) DisableOverride() error {
	if d.locked {
		return ErrDraftLocked
	}
	d.manualOverride = false
	d.deriveCurrentCash()
	d.saved = false
	return nil
}

// ApplyResult installs an upstream compute result. Inputs are never touched
// here; a response must not clobber locally owned figures.
func (d *Draft) ApplyResult(out Outputs, savedUpstream bool) error {
	if d.locked {
		return ErrDraftLocked
	}
	d.outputs = out
	d.hasResult = true
	d.saved = savedUpstream
	return nil
}

// AdoptUpstream replaces the whole draft with server state, inputs included.
// Only the initial load of a day may call this, and only when no local edit
// raced in since the request was dispatched; an edit-triggered recompute goes
// through ApplyResult instead.
func (d *Draft) AdoptUpstream(in Inputs, out Outputs, savedUpstream bool) error {
	if d.locked {
		return ErrDraftLocked
	}
	d.inputs = sanitizeInputs(in)
	if !d.manualOverride {
		d.deriveCurrentCash()
	}
	d.outputs = out
	d.hasResult = true
	d.saved = savedUpstream
	return nil
}

// MarkSaved records a successful persistence call.
func (d *Draft) MarkSaved() { d.saved = true }

// Lock makes the draft history-only. Further mutation is rejected.
func (d *Draft) Lock() { d.locked = true }

// Clear resets every field of the draft to zero. The confirmation gate sits
// in the application layer; locked drafts still refuse.
func (d *Draft) Clear() error {
	if d.locked {
		return ErrDraftLocked
	}
	d.inputs = Inputs{}
	d.outputs = Outputs{}
	d.manualOverride = false
	d.hasResult = false
	d.saved = false
	return nil
}

// Clone returns an independent copy of the draft.
func (d *Draft) Clone() *Draft {
	cp := *d
	return &cp
}

// Snapshot returns a detached record of the draft.
func (d *Draft) Snapshot() Record {
	return Record{
		Day:            d.day.String(),
		Inputs:         d.inputs,
		ManualOverride: d.manualOverride,
		Outputs:        d.outputs,
		HasResult:      d.hasResult,
		IsSaved:        d.saved,
		IsLocked:       d.locked,
	}
}

func (d *Draft) deriveCurrentCash() {
	d.inputs.CurrentCashUSD = d.inputs.CompanyCashUSD + d.inputs.CryptoBalanceUSD
}

func sanitizeInputs(in Inputs) Inputs {
	for _, v := range []*float64{
		&in.ExpensesUSD, &in.RolloverUSD, &in.NetCashUSD, &in.CommissionsUSD,
		&in.PreviousClosingUSD, &in.CompanyCashUSD, &in.CryptoBalanceUSD,
		&in.PendingCollectionUSD, &in.CurrentCashUSD,
	} {
		if math.IsNaN(*v) || *v < 0 {
			*v = 0
		}
	}
	return in
}
