package planchange

import (
	"github.com/saazpayhq/saazpay/pkg/billing"
)

// PreviewStatus is the observable phase of a proration preview
type PreviewStatus string

const (
	PreviewIdle    PreviewStatus = "idle"
	PreviewLoading PreviewStatus = "loading"
	PreviewError   PreviewStatus = "error"
	PreviewSuccess PreviewStatus = "success"
)

// PreviewState is a snapshot of the preview pane
type PreviewState struct {
	Status     PreviewStatus          `json:"status"`
	PlanID     string                 `json:"plan_id,omitempty"`
	Generation uint64                 `json:"generation"`
	Data       *billing.Proration     `json:"data,omitempty"`
	Rows       []billing.ProrationRow `json:"rows,omitempty"`
	Error      string                 `json:"error,omitempty"`

	err error
}

// Err returns the error of a failed preview
func (s PreviewState) Err() error {
	return s.err
}

// Preview holds the state of the latest proration request. Every request gets
// a strictly increasing generation; only the latest generation may settle the
// state, so a slow response for an earlier selection can never overwrite a
// newer one. Not safe for concurrent use; Flow guards it.
type Preview struct {
	generation uint64
	state      PreviewState
}

// NewPreview returns an idle preview
func NewPreview() *Preview {
	return &Preview{state: PreviewState{Status: PreviewIdle}}
}

// Begin starts a request for planID and returns its generation. Previous data
// and errors are cleared immediately.
func (p *Preview) Begin(planID string) uint64 {
	p.generation++
	p.state = PreviewState{
		Status:     PreviewLoading,
		PlanID:     planID,
		Generation: p.generation,
	}
	return p.generation
}

// Resolve applies a successful response. A nil proration is a failure with
// ErrEmptyPreview. It reports false for stale generations.
func (p *Preview) Resolve(generation uint64, data *billing.Proration) bool {
	if data == nil {
		return p.Fail(generation, ErrEmptyPreview)
	}
	if generation != p.generation || p.state.Status != PreviewLoading {
		return false
	}
	p.state.Status = PreviewSuccess
	p.state.Data = data
	p.state.Rows = billing.ProrationRows(*data)
	return true
}

// Fail applies a failed response. No partial data is kept. It reports false
// for stale generations.
func (p *Preview) Fail(generation uint64, err error) bool {
	if generation != p.generation || p.state.Status != PreviewLoading {
		return false
	}
	p.state.Status = PreviewError
	p.state.Data = nil
	p.state.Rows = nil
	p.state.Error = PreviewErrorText
	p.state.err = err
	return true
}

// Reset returns to idle and invalidates any request still in flight
func (p *Preview) Reset() {
	p.generation++
	p.state = PreviewState{Status: PreviewIdle, Generation: p.generation}
}

// Generation returns the latest issued generation
func (p *Preview) Generation() uint64 {
	return p.generation
}

// State returns a snapshot of the preview
func (p *Preview) State() PreviewState {
	return p.state
}

// Ready reports whether a successful preview for planID is on display
func (p *Preview) Ready(planID string) bool {
	return p.state.Status == PreviewSuccess && p.state.PlanID == planID && p.state.Data != nil
}
