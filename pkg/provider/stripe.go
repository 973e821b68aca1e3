package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/saazpayhq/saazpay/pkg/billing"
	"github.com/saazpayhq/saazpay/pkg/observability"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/invoice"
	"github.com/stripe/stripe-go/v82/price"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
)

// DefaultProrationBehavior prorates immediately on plan changes
const DefaultProrationBehavior = "create_prorations"

// StripeConfig configures a StripeClient
type StripeConfig struct {
	SecretKey         string
	WebhookSecret     string
	SubscriptionID    string
	ProrationBehavior string
	Metrics           *observability.Metrics
	OTel              *observability.OTelMetrics
}

// StripeClient implements billing.Client on the Stripe API. Recurring prices
// are the catalog plans; previews are upcoming invoice previews.
type StripeClient struct {
	webhookSecret     string
	subscriptionID    string
	prorationBehavior string
	metrics           requestMetrics
}

// NewStripeClient creates a client and sets the process-wide Stripe key
func NewStripeClient(cfg StripeConfig) *StripeClient {
	stripe.Key = cfg.SecretKey
	behavior := cfg.ProrationBehavior
	if behavior == "" {
		behavior = DefaultProrationBehavior
	}
	return &StripeClient{
		webhookSecret:     cfg.WebhookSecret,
		subscriptionID:    cfg.SubscriptionID,
		prorationBehavior: behavior,
		metrics:           requestMetrics{prom: cfg.Metrics, otel: cfg.OTel},
	}
}

// ForSubscription returns a copy bound to subscriptionID
func (c *StripeClient) ForSubscription(subscriptionID string) *StripeClient {
	clone := *c
	clone.subscriptionID = subscriptionID
	return &clone
}

// GetPlans lists the active recurring prices with their products
func (c *StripeClient) GetPlans(ctx context.Context) (plans []billing.Plan, err error) {
	start := time.Now()
	defer func() { c.metrics.observe(ctx, "get_plans", err, time.Since(start)) }()

	params := &stripe.PriceListParams{
		Active: stripe.Bool(true),
		Type:   stripe.String(string(stripe.PriceTypeRecurring)),
	}
	params.Context = ctx
	params.AddExpand("data.product")

	iter := price.List(params)
	for iter.Next() {
		plans = append(plans, planFromPrice(iter.Price()))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list stripe prices: %w", err)
	}
	return plans, nil
}

// PreviewPlan previews the invoice that switching the bound subscription to
// planID would produce
func (c *StripeClient) PreviewPlan(ctx context.Context, planID string) (p *billing.Proration, err error) {
	start := time.Now()
	defer func() { c.metrics.observe(ctx, "preview_plan", err, time.Since(start)) }()

	sub, item, err := c.currentItem(ctx)
	if err != nil {
		return nil, err
	}

	params := &stripe.InvoiceCreatePreviewParams{
		Subscription: stripe.String(sub.ID),
		SubscriptionDetails: &stripe.InvoiceCreatePreviewSubscriptionDetailsParams{
			Items: []*stripe.InvoiceCreatePreviewSubscriptionDetailsItemParams{
				{ID: stripe.String(item.ID), Price: stripe.String(planID)},
			},
			ProrationBehavior: stripe.String(c.prorationBehavior),
		},
	}
	if sub.Customer != nil {
		params.Customer = stripe.String(sub.Customer.ID)
	}
	params.Context = ctx

	inv, err := invoice.CreatePreview(params)
	if err != nil {
		return nil, fmt.Errorf("failed to preview stripe invoice: %w", err)
	}
	return prorationFromInvoice(inv), nil
}

// ChangePlan swaps the price of the bound subscription's item
func (c *StripeClient) ChangePlan(ctx context.Context, planID string) (change *billing.PlanChange, err error) {
	start := time.Now()
	defer func() { c.metrics.observe(ctx, "change_plan", err, time.Since(start)) }()

	sub, item, err := c.currentItem(ctx)
	if err != nil {
		return nil, err
	}

	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{ID: stripe.String(item.ID), Price: stripe.String(planID)},
		},
		ProrationBehavior: stripe.String(c.prorationBehavior),
	}
	params.Context = ctx

	updated, err := subscription.Update(sub.ID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to update stripe subscription: %w", err)
	}
	return &billing.PlanChange{ID: updated.ID, Status: string(updated.Status)}, nil
}

// GetSubscription returns the bound subscription as a billing snapshot
func (c *StripeClient) GetSubscription(ctx context.Context) (*billing.Subscription, error) {
	sub, _, err := c.currentItem(ctx)
	if err != nil {
		return nil, err
	}
	s := subscriptionFromStripe(sub)
	return &s, nil
}

func (c *StripeClient) currentItem(ctx context.Context) (*stripe.Subscription, *stripe.SubscriptionItem, error) {
	if c.subscriptionID == "" {
		return nil, nil, ErrNoSubscription
	}
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	params.AddExpand("items.data.price.product")

	sub, err := subscription.Get(c.subscriptionID, params)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get stripe subscription: %w", err)
	}
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrSubscriptionItemMissing, sub.ID)
	}
	return sub, sub.Items.Data[0], nil
}

// WebhookEvent is the part of a verified provider event saazpay acts on
type WebhookEvent struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	CustomerID     string `json:"customer_id,omitempty"`
}

// ParseWebhook verifies the Stripe-Signature header and extracts the event
func (c *StripeClient) ParseWebhook(payload []byte, signature string) (WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("webhook signature verification failed: %w", err)
	}

	out := WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return out, nil
	}

	var object struct {
		ID           string          `json:"id"`
		Object       string          `json:"object"`
		Subscription json.RawMessage `json:"subscription"`
		Customer     json.RawMessage `json:"customer"`
	}
	if err := json.Unmarshal(event.Data.Raw, &object); err != nil {
		return WebhookEvent{}, fmt.Errorf("failed to parse webhook object: %w", err)
	}
	if object.Object == "subscription" {
		out.SubscriptionID = object.ID
	} else {
		out.SubscriptionID = expandableID(object.Subscription)
	}
	out.CustomerID = expandableID(object.Customer)
	return out, nil
}

// expandableID reads an id that is either a string or an expanded object
func expandableID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}

func planFromPrice(p *stripe.Price) billing.Plan {
	plan := billing.Plan{
		ID:       p.ID,
		Price:    float64(p.UnitAmount) / 100,
		Currency: strings.ToUpper(string(p.Currency)),
		TaxMode:  string(p.TaxBehavior),
		Name:     p.Nickname,
	}
	if p.Created > 0 {
		plan.CreatedAt = time.Unix(p.Created, 0).UTC().Format(time.RFC3339)
	}
	if p.Recurring != nil {
		plan.BillingFrequency = int(p.Recurring.IntervalCount)
		plan.BillingInterval = billing.Interval(p.Recurring.Interval)
		if p.Recurring.TrialPeriodDays > 0 {
			plan.TrialFrequency = int(p.Recurring.TrialPeriodDays)
			plan.TrialInterval = string(billing.IntervalDay)
		}
	}
	if p.Product != nil {
		plan.ProductID = p.Product.ID
		plan.Product = productFromStripe(p.Product)
		if plan.Name == "" {
			plan.Name = p.Product.Name
		}
		if plan.Description == "" {
			plan.Description = p.Product.Description
		}
	}
	return plan
}

func productFromStripe(p *stripe.Product) billing.Product {
	product := billing.Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
	}
	if len(p.Images) > 0 {
		product.ImageURL = p.Images[0]
	}
	if p.Created > 0 {
		product.CreatedAt = time.Unix(p.Created, 0).UTC().Format(time.RFC3339)
	}
	return product
}

// prorationFromInvoice folds an invoice preview into the proration breakdown:
// positive lines are charges for the new plan, negative lines are credit for
// unused time on the current plan
func prorationFromInvoice(inv *stripe.Invoice) *billing.Proration {
	p := &billing.Proration{
		CurrencyCode: strings.ToUpper(string(inv.Currency)),
		SubTotal:     inv.Subtotal,
		Tax:          inv.Total - inv.TotalExcludingTax,
		GrandTotal:   inv.AmountDue,
	}
	if inv.Lines != nil {
		for _, line := range inv.Lines.Data {
			if line.Amount >= 0 {
				p.ProratedCharge += line.Amount
			} else {
				p.CreditAmount += line.Amount
			}
		}
	}
	for _, d := range inv.TotalDiscountAmounts {
		p.Discount += d.Amount
	}
	if applied := inv.Total - inv.AmountDue; applied > 0 {
		p.CreditApplied = applied
	}
	return p
}

func subscriptionFromStripe(sub *stripe.Subscription) billing.Subscription {
	out := billing.Subscription{
		ID:     sub.ID,
		Status: billing.SubscriptionStatus(sub.Status),
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Created > 0 {
		out.CreatedAt = unixRFC3339(sub.Created)
	}
	if sub.StartDate > 0 {
		out.StartsAt = unixRFC3339(sub.StartDate)
	}
	if sub.CanceledAt > 0 {
		out.CanceledAt = unixRFC3339(sub.CanceledAt)
	}
	if sub.EndedAt > 0 {
		out.EndsAt = unixRFC3339(sub.EndedAt)
	}
	if sub.CancelAt > 0 {
		out.ScheduledChange = unixRFC3339(sub.CancelAt)
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.CurrentPeriodEnd > 0 && !sub.CancelAtPeriodEnd {
			out.NextBilledAt = unixRFC3339(item.CurrentPeriodEnd)
		}
		if item.Price != nil {
			plan := planFromPrice(item.Price)
			out.Price = billing.SubscriptionPrice{
				ID:               plan.ID,
				Name:             plan.Name,
				Description:      plan.Description,
				ProductID:        plan.ProductID,
				BillingFrequency: plan.BillingFrequency,
				BillingInterval:  plan.BillingInterval,
				TrialFrequency:   plan.TrialFrequency,
				TrialInterval:    plan.TrialInterval,
				Currency:         plan.Currency,
				Price:            plan.Price,
			}
			out.Product = plan.Product
		}
	}
	return out
}

func unixRFC3339(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}
