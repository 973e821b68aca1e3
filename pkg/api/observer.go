package api

import (
	"context"

	"github.com/saazpayhq/saazpay/pkg/observability"
	"github.com/saazpayhq/saazpay/pkg/planchange"
)

// flowMetrics turns flow events into preview and commit metrics
type flowMetrics struct {
	metrics *observability.Metrics
	otel    *observability.OTelMetrics
}

func (m flowMetrics) ObserveFlowEvent(e planchange.Event) {
	ctx := context.Background()

	switch e.Type {
	case planchange.EventPreviewSucceeded, planchange.EventPreviewFailed:
		outcome := "success"
		if e.Type == planchange.EventPreviewFailed {
			outcome = "error"
		}
		if m.metrics != nil {
			m.metrics.PreviewsTotal.WithLabelValues(outcome).Inc()
		}
		if m.otel != nil {
			m.otel.RecordPreview(ctx, outcome, false)
		}

	case planchange.EventPreviewStale:
		if m.metrics != nil {
			m.metrics.PreviewsStaleTotal.Inc()
		}
		if m.otel != nil {
			m.otel.RecordPreview(ctx, "stale", true)
		}

	case planchange.EventCommitSucceeded, planchange.EventCommitFailed:
		outcome := string(planchange.CommitSucceeded)
		if e.Type == planchange.EventCommitFailed {
			outcome = string(planchange.CommitFailed)
		}
		if m.metrics != nil {
			m.metrics.CommitsTotal.WithLabelValues(outcome).Inc()
		}
		if m.otel != nil {
			m.otel.RecordCommit(ctx, outcome, e.Duration)
		}
	}
}
