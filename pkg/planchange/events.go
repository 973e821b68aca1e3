package planchange

import "time"

// User facing texts of the flow
const (
	CatalogErrorText = "Error loading plans"
	PreviewErrorText = "Unable to fetch proration details. Please try again later."
	EmptyTabText     = "No plans available for this billing interval."
	ProcessingText   = "Subscription details are being updated"
)

// EventType names a flow event
type EventType string

const (
	EventFlowOpened       EventType = "flow.opened"
	EventCatalogLoaded    EventType = "catalog.loaded"
	EventCatalogFailed    EventType = "catalog.failed"
	EventPlanSelected     EventType = "plan.selected"
	EventPreviewSucceeded EventType = "preview.succeeded"
	EventPreviewFailed    EventType = "preview.failed"
	EventPreviewStale     EventType = "preview.stale"
	EventConfirmRequested EventType = "confirm.requested"
	EventConfirmDiscarded EventType = "confirm.discarded"
	EventCommitStarted    EventType = "commit.started"
	EventCommitSucceeded  EventType = "commit.succeeded"
	EventCommitFailed     EventType = "commit.failed"
	EventCommitCanceled   EventType = "commit.cancel_requested"
	EventSettleStarted    EventType = "settle.started"
	EventFlowCompleted    EventType = "flow.completed"
	EventFlowClosed       EventType = "flow.closed"
)

// Event describes something that happened in a flow
type Event struct {
	FlowID         string        `json:"flow_id"`
	SubscriptionID string        `json:"subscription_id,omitempty"`
	Type           EventType     `json:"type"`
	Phase          Phase         `json:"phase"`
	PlanID         string        `json:"plan_id,omitempty"`
	Generation     uint64        `json:"generation,omitempty"`
	Duration       time.Duration `json:"duration,omitempty"`
	Error          string        `json:"error,omitempty"`
	At             time.Time     `json:"at"`
}

// Observer receives flow events. Observers run synchronously outside the flow
// lock and must not block.
type Observer interface {
	ObserveFlowEvent(Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(Event)

// ObserveFlowEvent calls f
func (f ObserverFunc) ObserveFlowEvent(e Event) {
	f(e)
}

// Completion is emitted once when a flow finishes settling. It replaces a
// full page reload: hosts re-read the subscription when they receive it.
type Completion struct {
	FlowID  string       `json:"flow_id"`
	Result  CommitResult `json:"result"`
	Settled bool         `json:"settled"`
}
