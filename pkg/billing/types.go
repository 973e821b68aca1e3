package billing

import (
	"context"
)

// Interval is the unit of a billing or trial period
type Interval string

const (
	IntervalDay   Interval = "day"
	IntervalWeek  Interval = "week"
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

// Valid reports whether the interval is one the provider emits
func (i Interval) Valid() bool {
	switch i {
	case IntervalDay, IntervalWeek, IntervalMonth, IntervalYear:
		return true
	}
	return false
}

// SubscriptionStatus represents the provider-defined status of a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusPaused   SubscriptionStatus = "paused"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// Product is the catalog product a plan belongs to
type Product struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	ImageURL      string `json:"image_url"`
	ApplicationID string `json:"application_id,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
}

// Plan is a purchasable price in the provider catalog.
// Price is expressed in major currency units.
type Plan struct {
	ID               string   `json:"id"`
	Price            float64  `json:"price"`
	Currency         string   `json:"currency"`
	TaxMode          string   `json:"tax_mode,omitempty"`
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	BillingFrequency int      `json:"billing_frequency"`
	BillingInterval  Interval `json:"billing_interval"`
	TrialFrequency   int      `json:"trial_frequency"`
	TrialInterval    string   `json:"trial_interval"`
	QuantityMinimum  int      `json:"quantity_minimum,omitempty"`
	QuantityMaximum  int      `json:"quantity_maximum,omitempty"`
	ProductID        string   `json:"product_id"`
	CreatedAt        string   `json:"createdAt,omitempty"`
	UpdatedAt        string   `json:"updatedAt,omitempty"`
	Product          Product  `json:"product"`
}

// SubscriptionPrice is the price snapshot embedded in a subscription
type SubscriptionPrice struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	ProductID        string   `json:"product_id"`
	BillingFrequency int      `json:"billing_frequency"`
	BillingInterval  Interval `json:"billing_interval"`
	TrialFrequency   int      `json:"trial_frequency"`
	TrialInterval    string   `json:"trial_interval"`
	Currency         string   `json:"currency"`
	Price            float64  `json:"price"`
}

// Subscription is a read-only snapshot of the caller's subscription.
// Timestamps are kept as the provider's ISO-8601 strings.
type Subscription struct {
	ID               string             `json:"id"`
	CustomerID       string             `json:"customer_id"`
	UniqueIdentifier string             `json:"unique_identifier"`
	Status           SubscriptionStatus `json:"status"`
	PausedAt         string             `json:"paused_at,omitempty"`
	CanceledAt       string             `json:"canceled_at,omitempty"`
	ScheduledChange  string             `json:"scheduled_change,omitempty"`
	NextBilledAt     string             `json:"next_billed_at,omitempty"`
	StartsAt         string             `json:"starts_at,omitempty"`
	EndsAt           string             `json:"ends_at,omitempty"`
	CreatedAt        string             `json:"created_at,omitempty"`
	ApplicationID    string             `json:"applicationId,omitempty"`
	Product          Product            `json:"product"`
	Price            SubscriptionPrice  `json:"price"`
}

// ManagementURLs are provider-hosted pages for self-service actions
type ManagementURLs struct {
	CustomerPortal      string `json:"customerPortal"`
	CancelSubscription  string `json:"cancelSubscription"`
	UpdatePaymentMethod string `json:"updatePaymentMethod"`
}

// Proration is the provider's cost breakdown for switching plans.
// All amounts are signed minor units.
type Proration struct {
	CurrencyCode   string `json:"currencyCode"`
	ProratedCharge int64  `json:"proratedCharge"`
	CreditAmount   int64  `json:"creditAmount"`
	SubTotal       int64  `json:"subTotal"`
	Tax            int64  `json:"tax"`
	Discount       int64  `json:"discount"`
	CreditApplied  int64  `json:"creditApplied"`
	GrandTotal     int64  `json:"grandTotal"`
}

// PlanChange is the provider's acknowledgement of a committed plan change
type PlanChange struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Client is the billing collaborator consumed by the plan change workflow.
// Implementations must not retry: a retried ChangePlan can bill twice.
type Client interface {
	// GetPlans returns the full catalog
	GetPlans(ctx context.Context) ([]Plan, error)
	// PreviewPlan returns the proration for switching to planID
	PreviewPlan(ctx context.Context, planID string) (*Proration, error)
	// ChangePlan switches the subscription to planID
	ChangePlan(ctx context.Context, planID string) (*PlanChange, error)
}
