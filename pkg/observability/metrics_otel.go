package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName names the meter and tracer of this module
const InstrumentationName = "github.com/saazpayhq/saazpay"

// OTelMetrics mirrors the flow and provider metrics as OpenTelemetry
// instruments for deployments that export over OTLP
type OTelMetrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Provider metrics
	providerRequests metric.Int64Counter
	providerDuration metric.Float64Histogram

	// Flow metrics
	previews     metric.Int64Counter
	stalePreview metric.Int64Counter
	commits      metric.Int64Counter
	commitTime   metric.Float64Histogram
	activeFlows  metric.Int64UpDownCounter

	// Journal metrics
	journalWrites metric.Int64Counter
}

// NewOTelMetrics creates the instruments on the global meter provider
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter(InstrumentationName)

	m := &OTelMetrics{}
	var err error

	if m.httpRequestsTotal, err = meter.Int64Counter(
		"http.server.requests",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create http requests counter: %w", err)
	}

	if m.httpRequestDuration, err = meter.Float64Histogram(
		"http.server.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}

	if m.providerRequests, err = meter.Int64Counter(
		"saazpay.provider.requests",
		metric.WithDescription("Billing provider requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create provider requests counter: %w", err)
	}

	if m.providerDuration, err = meter.Float64Histogram(
		"saazpay.provider.duration",
		metric.WithDescription("Billing provider request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create provider duration histogram: %w", err)
	}

	if m.previews, err = meter.Int64Counter(
		"saazpay.previews",
		metric.WithDescription("Proration previews applied"),
		metric.WithUnit("{preview}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create previews counter: %w", err)
	}

	if m.stalePreview, err = meter.Int64Counter(
		"saazpay.previews.stale",
		metric.WithDescription("Proration previews dropped for a newer selection"),
		metric.WithUnit("{preview}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create stale previews counter: %w", err)
	}

	if m.commits, err = meter.Int64Counter(
		"saazpay.commits",
		metric.WithDescription("Plan change commits"),
		metric.WithUnit("{commit}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create commits counter: %w", err)
	}

	if m.commitTime, err = meter.Float64Histogram(
		"saazpay.commit.duration",
		metric.WithDescription("Plan change commit duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create commit duration histogram: %w", err)
	}

	if m.activeFlows, err = meter.Int64UpDownCounter(
		"saazpay.flows.active",
		metric.WithDescription("Plan change flows held by the server"),
		metric.WithUnit("{flow}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create active flows counter: %w", err)
	}

	if m.journalWrites, err = meter.Int64Counter(
		"saazpay.journal.writes",
		metric.WithDescription("Plan change journal writes"),
		metric.WithUnit("{write}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create journal writes counter: %w", err)
	}

	return m, nil
}

func errorAttr(err error) attribute.KeyValue {
	return attribute.Bool("error", err != nil)
}

// RecordHTTPRequest records an HTTP request
func (m *OTelMetrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", statusCode),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordProviderRequest records one billing provider call
func (m *OTelMetrics) RecordProviderRequest(ctx context.Context, operation string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("provider.operation", operation), errorAttr(err))
	m.providerRequests.Add(ctx, 1, attrs)
	m.providerDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordPreview records an applied preview, or a dropped one when stale
func (m *OTelMetrics) RecordPreview(ctx context.Context, outcome string, stale bool) {
	if stale {
		m.stalePreview.Add(ctx, 1)
		return
	}
	m.previews.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordCommit records a finished commit
func (m *OTelMetrics) RecordCommit(ctx context.Context, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.commits.Add(ctx, 1, attrs)
	m.commitTime.Record(ctx, duration.Seconds(), attrs)
}

// AddActiveFlows moves the active flow count by delta
func (m *OTelMetrics) AddActiveFlows(ctx context.Context, delta int64) {
	m.activeFlows.Add(ctx, delta)
}

// RecordJournalWrite records a journal write
func (m *OTelMetrics) RecordJournalWrite(ctx context.Context, err error) {
	m.journalWrites.Add(ctx, 1, metric.WithAttributes(errorAttr(err)))
}

// OTelHTTPMiddleware records every request on m
func OTelHTTPMiddleware(m *OTelMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)
			m.RecordHTTPRequest(r.Context(), r.Method, routeLabel(r), rw.statusCode, time.Since(start))
		})
	}
}
