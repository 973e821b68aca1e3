// Package contextkeys provides centralized context key definitions
//
// All context keys used across saazpay are defined here so that producers and
// consumers agree on a single typed key.
//
// USAGE PATTERN:
//
//	import "github.com/saazpayhq/saazpay/pkg/contextkeys"
//	ctx = contextkeys.WithFlowID(ctx, flow.ID())
//	id := contextkeys.GetFlowID(ctx)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// RequestIDKey contains the request ID string
	// Set by: api request ID middleware
	// Used by: Logger, journal entries
	// Type: string
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger
	// Set by: api request ID middleware
	// Used by: Handlers and flow tasks that log with request context
	// Type: *observability.Logger
	LoggerKey Key = "logger"

	// FlowIDKey contains the plan change flow ID
	// Set by: api flow handlers
	// Used by: Logger, journal entries
	// Type: string
	FlowIDKey Key = "flow_id"

	// SubscriptionIDKey contains the provider subscription ID the request acts on
	// Set by: api flow handlers, provider webhooks
	// Used by: provider clients, rate limiter keys
	// Type: string
	SubscriptionIDKey Key = "subscription_id"
)

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// WithFlowID adds a flow ID to the context
func WithFlowID(ctx context.Context, flowID string) context.Context {
	return context.WithValue(ctx, FlowIDKey, flowID)
}

// WithSubscriptionID adds a subscription ID to the context
func WithSubscriptionID(ctx context.Context, subscriptionID string) context.Context {
	return context.WithValue(ctx, SubscriptionIDKey, subscriptionID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetFlowID retrieves the flow ID from context
func GetFlowID(ctx context.Context) string {
	if flowID, ok := ctx.Value(FlowIDKey).(string); ok {
		return flowID
	}
	return ""
}

// GetSubscriptionID retrieves the subscription ID from context
func GetSubscriptionID(ctx context.Context) string {
	if id, ok := ctx.Value(SubscriptionIDKey).(string); ok {
		return id
	}
	return ""
}
