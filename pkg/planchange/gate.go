package planchange

import "fmt"

// Phase is the step of the plan change flow
type Phase string

const (
	PhaseBrowsing       Phase = "browsing"
	PhaseSelecting      Phase = "selecting"
	PhaseConfirmPending Phase = "confirm_pending"
	PhaseCommitting     Phase = "committing"
	PhaseSettling       Phase = "settling"
	PhaseDone           Phase = "done"
)

// Pending is the change awaiting explicit confirmation
type Pending struct {
	From   string `json:"from"`
	To     string `json:"to"`
	PlanID string `json:"plan_id"`
}

// Gate is the confirmation state machine:
//
//	browsing -> selecting -> confirm_pending -> committing -> settling -> done
//
// committing is only reachable from confirm_pending, so no plan is changed
// without an explicit confirmation of the from/to summary.
type Gate struct {
	phase   Phase
	pending *Pending
}

// NewGate returns a gate in the browsing phase
func NewGate() *Gate {
	return &Gate{phase: PhaseBrowsing}
}

// Phase returns the current phase
func (g *Gate) Phase() Phase {
	return g.phase
}

// Pending returns the change awaiting confirmation, or nil
func (g *Gate) Pending() *Pending {
	if g.pending == nil {
		return nil
	}
	p := *g.pending
	return &p
}

// Open starts plan selection ("Change plan")
func (g *Gate) Open() error {
	if g.phase != PhaseBrowsing {
		return transitionError(g.phase, "open plan selection")
	}
	g.phase = PhaseSelecting
	return nil
}

// Dashboard leaves plan selection and returns to the subscription summary
func (g *Gate) Dashboard() error {
	if g.phase != PhaseSelecting {
		return transitionError(g.phase, "return to dashboard")
	}
	g.phase = PhaseBrowsing
	return nil
}

// RequestConfirm moves a selected change into confirmation
func (g *Gate) RequestConfirm(p Pending) error {
	if g.phase != PhaseSelecting {
		return transitionError(g.phase, "request confirmation")
	}
	if p.PlanID == "" {
		return fmt.Errorf("%w: pending change has no plan", ErrNoSelection)
	}
	g.pending = &p
	g.phase = PhaseConfirmPending
	return nil
}

// Back discards the pending change and returns to plan selection ("Back to plans")
func (g *Gate) Back() error {
	if g.phase != PhaseConfirmPending {
		return transitionError(g.phase, "go back to plans")
	}
	g.pending = nil
	g.phase = PhaseSelecting
	return nil
}

// CanConfirm reports whether "Confirm change" is enabled
func (g *Gate) CanConfirm() bool {
	return g.phase == PhaseConfirmPending && g.pending != nil
}

// Confirm commits to the pending change ("Confirm change")
func (g *Gate) Confirm() (Pending, error) {
	if !g.CanConfirm() {
		return Pending{}, transitionError(g.phase, "confirm change")
	}
	g.phase = PhaseCommitting
	return *g.pending, nil
}

// Reject returns a failed commit to confirmation so the user can retry or go back
func (g *Gate) Reject() error {
	if g.phase != PhaseCommitting {
		return transitionError(g.phase, "reject commit")
	}
	g.phase = PhaseConfirmPending
	return nil
}

// BeginSettle enters the settle wait after a commit
func (g *Gate) BeginSettle() error {
	if g.phase != PhaseCommitting {
		return transitionError(g.phase, "settle")
	}
	g.phase = PhaseSettling
	return nil
}

// Finish ends the flow after the settle wait
func (g *Gate) Finish() error {
	if g.phase != PhaseSettling {
		return transitionError(g.phase, "finish")
	}
	g.phase = PhaseDone
	return nil
}
