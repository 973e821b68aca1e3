package provider

import (
	"context"
	"time"

	"github.com/saazpayhq/saazpay/pkg/observability"
)

// requestMetrics reports provider calls to Prometheus and OpenTelemetry.
// Either side may be nil.
type requestMetrics struct {
	prom *observability.Metrics
	otel *observability.OTelMetrics
}

func (m requestMetrics) observe(ctx context.Context, operation string, err error, d time.Duration) {
	m.prom.ObserveProviderRequest(operation, err, d)
	if m.otel != nil {
		m.otel.RecordProviderRequest(ctx, operation, d, err)
	}
}
