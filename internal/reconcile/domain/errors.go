package reconcile

import "errors"

var (
	// ErrInvalidRate is returned when a USD/TRY rate is zero or negative.
	ErrInvalidRate = errors.New("reconcile: invalid exchange rate")

	// ErrUnknownCurrency is returned when a ledger line carries a currency
	// the engine has no conversion rule for.
	ErrUnknownCurrency = errors.New("reconcile: unknown currency")

	// ErrInvalidDay is returned when a day key cannot be built.
	ErrInvalidDay = errors.New("reconcile: invalid day")

	// ErrDraftLocked is returned when a mutation targets a locked draft.
	ErrDraftLocked = errors.New("reconcile: draft is locked")

	// ErrNilDraft is returned when a nil draft reaches a store or service.
	ErrNilDraft = errors.New("reconcile: nil draft")

	// ErrOverrideDisabled is returned when the current-cash field is written
	// directly while the manual override is off.
	ErrOverrideDisabled = errors.New("reconcile: manual override is off")

	// ErrOverrideState is returned on an override transition that is not
	// allowed from the current state.
	ErrOverrideState = errors.New("reconcile: invalid override transition")

	// ErrUnknownField is returned when an input field name is not one of the
	// nine draft inputs.
	ErrUnknownField = errors.New("reconcile: unknown input field")
)
