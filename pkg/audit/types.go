package audit

import (
	"time"

	"github.com/saazpayhq/saazpay/pkg/planchange"
)

// Source says where an entry came from
type Source string

const (
	SourceFlow    Source = "flow"
	SourceWebhook Source = "webhook"
)

// Entry is one line of the plan change journal
type Entry struct {
	ID             int64                  `json:"id"`
	Timestamp      time.Time              `json:"timestamp"`
	Source         Source                 `json:"source"`
	EventType      string                 `json:"event_type"`
	FlowID         string                 `json:"flow_id,omitempty"`
	SubscriptionID string                 `json:"subscription_id,omitempty"`
	CustomerID     string                 `json:"customer_id,omitempty"`
	Phase          string                 `json:"phase,omitempty"`
	PlanID         string                 `json:"plan_id,omitempty"`
	Generation     uint64                 `json:"generation,omitempty"`
	DurationMs     int64                  `json:"duration_ms,omitempty"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// FromFlowEvent journals a flow event
func FromFlowEvent(e planchange.Event) *Entry {
	ts := e.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return &Entry{
		Timestamp:      ts.UTC(),
		Source:         SourceFlow,
		EventType:      string(e.Type),
		FlowID:         e.FlowID,
		SubscriptionID: e.SubscriptionID,
		Phase:          string(e.Phase),
		PlanID:         e.PlanID,
		Generation:     e.Generation,
		DurationMs:     e.Duration.Milliseconds(),
		ErrorMessage:   e.Error,
	}
}

// NewWebhookEntry journals a verified provider webhook
func NewWebhookEntry(eventID, eventType, subscriptionID, customerID string) *Entry {
	return &Entry{
		Timestamp:      time.Now().UTC(),
		Source:         SourceWebhook,
		EventType:      eventType,
		SubscriptionID: subscriptionID,
		CustomerID:     customerID,
		Metadata:       map[string]interface{}{"event_id": eventID},
	}
}

// SearchFilter selects journal entries. Zero fields match everything.
type SearchFilter struct {
	StartTime      *time.Time
	EndTime        *time.Time
	FlowID         string
	SubscriptionID string
	Source         Source
	EventTypes     []string

	Limit  int
	Offset int
}

// Matches reports whether e passes the filter, ignoring pagination
func (f SearchFilter) Matches(e *Entry) bool {
	if f.StartTime != nil && e.Timestamp.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && e.Timestamp.After(*f.EndTime) {
		return false
	}
	if f.FlowID != "" && e.FlowID != f.FlowID {
		return false
	}
	if f.SubscriptionID != "" && e.SubscriptionID != f.SubscriptionID {
		return false
	}
	if f.Source != "" && e.Source != f.Source {
		return false
	}
	if len(f.EventTypes) > 0 {
		found := false
		for _, t := range f.EventTypes {
			if t == e.EventType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ExportFormat represents the format for exporting journal entries
type ExportFormat string

const (
	ExportFormatJSON   ExportFormat = "json"
	ExportFormatCSV    ExportFormat = "csv"
	ExportFormatNDJSON ExportFormat = "ndjson" // Newline-delimited JSON
)

// Stats summarises the journal
type Stats struct {
	TotalEntries        int64            `json:"total_entries"`
	EntriesByType       map[string]int64 `json:"entries_by_type"`
	UniqueFlows         int64            `json:"unique_flows"`
	UniqueSubscriptions int64            `json:"unique_subscriptions"`
	FailedCommits       int64            `json:"failed_commits"`
	TimeRange           *TimeRange       `json:"time_range,omitempty"`
}

// TimeRange represents a time range for statistics
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// RetentionPolicy defines how long journal entries are kept
type RetentionPolicy struct {
	RetentionDays int
}

// DefaultRetentionPolicy keeps entries for 90 days
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{RetentionDays: 90}
}
