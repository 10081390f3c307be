package reconcile

// OverrideState is one position of the manual-override gate.
type OverrideState string

const (
	OverrideAuto    OverrideState = "auto"
	OverridePending OverrideState = "pending_confirmation"
	OverrideManual  OverrideState = "manual"
)

// OverrideGate governs whether the current-cash field is computed or
// manually entered. Turning the override on demands a confirmed pin;
// turning it off never does.
//
//	auto -> pending_confirmation  (operator toggles on; draft untouched)
//	pending_confirmation -> manual (pin confirmed)
//	pending_confirmation -> auto   (cancel or pin rejected; code cleared)
//	manual -> auto                 (single immediate transition)
type OverrideGate struct {
	state OverrideState
}

// NewOverrideGate starts in the auto state.
func NewOverrideGate() *OverrideGate {
	return &OverrideGate{state: OverrideAuto}
}

// State returns the current position.
func (g *OverrideGate) State() OverrideState { return g.state }

// Request moves auto -> pending_confirmation. The draft's override flag is
// not changed yet.
func (g *OverrideGate) Request() error {
	if g.state != OverrideAuto {
		return ErrOverrideState
	}
	g.state = OverridePending
	return nil
}

// Confirm moves pending_confirmation -> manual after a validated pin.
func (g *OverrideGate) Confirm() error {
	if g.state != OverridePending {
		return ErrOverrideState
	}
	g.state = OverrideManual
	return nil
}

// Cancel moves pending_confirmation -> auto on cancel or pin rejection.
// The operator may retry with a fresh code.
func (g *OverrideGate) Cancel() error {
	if g.state != OverridePending {
		return ErrOverrideState
	}
	g.state = OverrideAuto
	return nil
}

// Disable moves manual -> auto. Immediate; no re-confirmation.
func (g *OverrideGate) Disable() error {
	if g.state != OverrideManual {
		return ErrOverrideState
	}
	g.state = OverrideAuto
	return nil
}

// Reset forces the gate back to auto, used when the active day changes or a
// draft is cleared.
func (g *OverrideGate) Reset() { g.state = OverrideAuto }

// WellFormedPin reports whether a confirmation code is exactly four digits.
// Validity is decided upstream; this only rejects obviously malformed input
// before a network round trip.
func WellFormedPin(code string) bool {
	if len(code) != 4 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
