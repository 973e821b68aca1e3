package embed

import (
	"fmt"
	"time"

	"github.com/saazpayhq/saazpay/pkg/billing"
)

// Theme is the checkout colour theme
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ThemeFor maps dark mode to a theme
func ThemeFor(dark bool) Theme {
	if dark {
		return ThemeDark
	}
	return ThemeLight
}

// CheckoutCompleted is the provider event fired when a checkout succeeds
const CheckoutCompleted = "checkout.completed"

// PricingReloadDelay is how long the pricing page waits before reloading
// after a completed checkout
const PricingReloadDelay = 4000 * time.Millisecond

// Action is what the host page does in response to a checkout event
type Action string

const (
	ActionNone     Action = "none"
	ActionRedirect Action = "redirect"
	ActionReload   Action = "reload"
)

// Outcome is the host's reaction to a checkout event
type Outcome struct {
	Action Action        `json:"action"`
	URL    string        `json:"url,omitempty"`
	Delay  time.Duration `json:"delay,omitempty"`
}

// CheckoutOutcome reacts to a provider event for embedded checkouts: a
// completed checkout redirects to the success URL when one is configured and
// reloads otherwise
func (c ProviderConfig) CheckoutOutcome(event string) Outcome {
	if event != CheckoutCompleted {
		return Outcome{Action: ActionNone}
	}
	if c.SuccessURL != "" {
		return Outcome{Action: ActionRedirect, URL: c.SuccessURL}
	}
	return Outcome{Action: ActionReload}
}

// PricingCheckoutOutcome reacts to a provider event on the pricing page
func PricingCheckoutOutcome(event string) Outcome {
	if event != CheckoutCompleted {
		return Outcome{Action: ActionNone}
	}
	return Outcome{Action: ActionReload, Delay: PricingReloadDelay}
}

// DefaultPrimaryColor is the accent colour of the pricing page
const DefaultPrimaryColor = "#f36a68"

// PricingSettings style the pricing page
type PricingSettings struct {
	PrimaryColor string `json:"primaryColor,omitempty" yaml:"primary_color"`
	Alignment    Align  `json:"alignment,omitempty" yaml:"alignment"`
}

// WithDefaults fills unset fields
func (s PricingSettings) WithDefaults() PricingSettings {
	if s.PrimaryColor == "" {
		s.PrimaryColor = DefaultPrimaryColor
	}
	if s.Alignment == "" {
		s.Alignment = AlignLeft
	}
	return s
}

// Validate checks the alignment
func (s PricingSettings) Validate() error {
	if _, err := ParseAlign(string(s.Alignment)); err != nil {
		return err
	}
	return nil
}

// CheckoutItem is one line of a checkout
type CheckoutItem struct {
	PriceID  string `json:"priceId"`
	Quantity int    `json:"quantity"`
}

// CheckoutSettings are provider checkout display settings
type CheckoutSettings struct {
	Theme Theme `json:"theme"`
}

// CheckoutRequest opens a provider checkout for one plan
type CheckoutRequest struct {
	Items      []CheckoutItem    `json:"items"`
	CustomData map[string]string `json:"customData"`
	Settings   CheckoutSettings  `json:"settings"`
}

// NewCheckoutRequest builds a single-seat checkout for plan. userID and appID
// travel as custom data so that webhooks can attribute the purchase.
func NewCheckoutRequest(plan billing.Plan, userID, appID string) (CheckoutRequest, error) {
	if plan.ID == "" {
		return CheckoutRequest{}, fmt.Errorf("plan ID is required")
	}
	return CheckoutRequest{
		Items:      []CheckoutItem{{PriceID: plan.ID, Quantity: 1}},
		CustomData: map[string]string{"userId": userID, "appId": appID},
		Settings:   CheckoutSettings{Theme: ThemeLight},
	}, nil
}
