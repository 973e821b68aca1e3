package api

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/saazpayhq/saazpay/pkg/audit"
	"github.com/saazpayhq/saazpay/pkg/contextkeys"
	"github.com/saazpayhq/saazpay/pkg/httputil"
	"github.com/saazpayhq/saazpay/pkg/observability"
)

// StripeSignatureHeader carries the webhook signature
const StripeSignatureHeader = "Stripe-Signature"

const webhookJournalTimeout = 5 * time.Second

// webhookAction says what a provider event does to local state
type webhookAction struct {
	journal    bool
	invalidate bool
}

// webhookActions lists the provider events saazpay acts on. Subscription and
// checkout events are journaled; catalog events drop the cached plans.
var webhookActions = map[string]webhookAction{
	"checkout.session.completed":    {journal: true, invalidate: true},
	"customer.subscription.created": {journal: true},
	"customer.subscription.updated": {journal: true, invalidate: true},
	"customer.subscription.deleted": {journal: true},
	"price.created":                 {invalidate: true},
	"price.updated":                 {invalidate: true},
	"price.deleted":                 {invalidate: true},
	"product.updated":               {invalidate: true},
}

// WebhookResponse acknowledges a provider event
type WebhookResponse struct {
	Received bool   `json:"received"`
	Handled  bool   `json:"handled"`
	Type     string `json:"type,omitempty"`
}

// stripeWebhook handles POST /webhooks/stripe
func (s *Server) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	logger := observability.FromContext(r.Context())

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteBadRequest(w, "failed to read request body")
		return
	}

	event, err := s.opts.Webhooks.ParseWebhook(payload, r.Header.Get(StripeSignatureHeader))
	if err != nil {
		s.countWebhook("unknown", "invalid")
		logger.WithError(err).Warn("rejected provider webhook")
		httputil.WriteBadRequest(w, "invalid webhook signature")
		return
	}

	action, ok := webhookActions[event.Type]
	if !ok {
		s.countWebhook(event.Type, "ignored")
		httputil.WriteSuccess(w, WebhookResponse{Received: true, Type: event.Type})
		return
	}

	ctx := r.Context()
	if event.SubscriptionID != "" {
		ctx = contextkeys.WithSubscriptionID(ctx, event.SubscriptionID)
	}
	logger = observability.FromContext(ctx).WithFields(map[string]interface{}{
		"event_id":   event.ID,
		"event_type": event.Type,
	})

	if action.invalidate && s.opts.Catalog != nil {
		if err := s.opts.Catalog.Invalidate(ctx); err != nil {
			logger.WithError(err).Warn("failed to invalidate catalog cache")
		}
	}
	if action.journal && s.opts.Recorder != nil {
		entry := audit.NewWebhookEntry(event.ID, event.Type, event.SubscriptionID, event.CustomerID)
		// the provider retries on failure, so journal synchronously
		recordCtx, cancel := context.WithTimeout(ctx, webhookJournalTimeout)
		defer cancel()
		if err := s.opts.Recorder.Record(recordCtx, entry); err != nil {
			s.countWebhook(event.Type, "error")
			logger.WithError(err).Error("failed to journal provider webhook")
			httputil.WriteInternalError(w, err)
			return
		}
	}

	s.countWebhook(event.Type, "handled")
	logger.Info("provider webhook handled")
	httputil.WriteSuccess(w, WebhookResponse{Received: true, Handled: true, Type: event.Type})
}

func (s *Server) countWebhook(eventType, status string) {
	if s.opts.Metrics == nil {
		return
	}
	// keep unknown event families out of the label space
	if _, ok := webhookActions[eventType]; !ok && status != "invalid" {
		eventType = strings.SplitN(eventType, ".", 2)[0] + ".other"
	}
	s.opts.Metrics.WebhookEventsTotal.WithLabelValues(eventType, status).Inc()
}
