package planchange

import (
	"errors"
	"fmt"
)

var (
	// ErrPlanNotFound is returned when selecting a plan outside the selectable catalog
	ErrPlanNotFound = errors.New("plan not found")
	// ErrInvalidTab is returned for billing interval tabs other than month and year
	ErrInvalidTab = errors.New("invalid billing interval tab")
	// ErrInvalidTransition is returned when an action is not allowed in the current phase
	ErrInvalidTransition = errors.New("invalid flow transition")
	// ErrCatalogNotLoaded is returned when plans are selected before the catalog arrived
	ErrCatalogNotLoaded = errors.New("plan catalog not loaded")
	// ErrNoSelection is returned when confirming without a selected plan
	ErrNoSelection = errors.New("no plan selected")
	// ErrPreviewNotReady is returned when confirming before the selected plan's preview succeeded
	ErrPreviewNotReady = errors.New("proration preview not ready")
	// ErrEmptyPreview is the failure of a preview request that returned no proration
	ErrEmptyPreview = errors.New("proration preview returned no data")
	// ErrNoSubscription is returned when confirming a change without an active subscription
	ErrNoSubscription = errors.New("no active subscription to change")
	// ErrNothingToCancel is returned by Cancel outside of the committing phase
	ErrNothingToCancel = errors.New("no plan change in progress")
	// ErrCommitTimeout is the failure reason of a commit that exceeded its timeout
	ErrCommitTimeout = errors.New("plan change timed out")
	// ErrCommitCanceled is the failure reason of a commit canceled by the user
	ErrCommitCanceled = errors.New("plan change canceled")
	// ErrFlowClosed is returned by operations on a closed flow
	ErrFlowClosed = errors.New("flow closed")
)

func transitionError(from Phase, action string) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, action, from)
}
