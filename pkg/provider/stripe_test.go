package provider

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/saazpayhq/saazpay/pkg/billing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

func TestPlanFromPrice(t *testing.T) {
	p := &stripe.Price{
		ID:          "price_pro_month",
		UnitAmount:  1999,
		Currency:    stripe.CurrencyUSD,
		TaxBehavior: stripe.PriceTaxBehaviorExclusive,
		Created:     1700000000,
		Recurring: &stripe.PriceRecurring{
			Interval:        stripe.PriceRecurringIntervalMonth,
			IntervalCount:   1,
			TrialPeriodDays: 14,
		},
		Product: &stripe.Product{
			ID:          "prod_pro",
			Name:        "Pro",
			Description: "For growing teams",
			Images:      []string{"https://cdn.example.com/pro.png"},
		},
	}

	plan := planFromPrice(p)

	assert.Equal(t, "price_pro_month", plan.ID)
	assert.InDelta(t, 19.99, plan.Price, 0.0001)
	assert.Equal(t, "USD", plan.Currency)
	assert.Equal(t, "exclusive", plan.TaxMode)
	assert.Equal(t, billing.IntervalMonth, plan.BillingInterval)
	assert.Equal(t, 1, plan.BillingFrequency)
	assert.Equal(t, 14, plan.TrialFrequency)
	assert.Equal(t, "day", plan.TrialInterval)
	assert.Equal(t, "prod_pro", plan.ProductID)
	assert.Equal(t, "Pro", plan.Name)
	assert.Equal(t, "https://cdn.example.com/pro.png", plan.Product.ImageURL)
	assert.Equal(t, "2023-11-14T22:13:20Z", plan.CreatedAt)
}

func TestProrationFromInvoice(t *testing.T) {
	inv := &stripe.Invoice{
		Currency:          stripe.CurrencyEUR,
		Subtotal:          1500,
		Total:             1800,
		TotalExcludingTax: 1500,
		AmountDue:         1300,
		Lines: &stripe.InvoiceLineItemList{
			Data: []*stripe.InvoiceLineItem{
				{Amount: 2500},
				{Amount: -1000},
			},
		},
		TotalDiscountAmounts: []*stripe.InvoiceTotalDiscountAmount{{Amount: 200}},
	}

	p := prorationFromInvoice(inv)

	assert.Equal(t, "EUR", p.CurrencyCode)
	assert.Equal(t, int64(2500), p.ProratedCharge)
	assert.Equal(t, int64(-1000), p.CreditAmount)
	assert.Equal(t, int64(1500), p.SubTotal)
	assert.Equal(t, int64(300), p.Tax)
	assert.Equal(t, int64(200), p.Discount)
	assert.Equal(t, int64(500), p.CreditApplied)
	assert.Equal(t, int64(1300), p.GrandTotal)
}

func TestSubscriptionFromStripe(t *testing.T) {
	sub := &stripe.Subscription{
		ID:       "sub_1",
		Status:   stripe.SubscriptionStatusActive,
		Customer: &stripe.Customer{ID: "cus_1"},
		CancelAt: 1700000000,
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{
				ID:               "si_1",
				CurrentPeriodEnd: 1700000000,
				Price: &stripe.Price{
					ID:         "price_basic",
					UnitAmount: 1000,
					Currency:   stripe.CurrencyUSD,
					Recurring:  &stripe.PriceRecurring{Interval: stripe.PriceRecurringIntervalYear, IntervalCount: 1},
					Product:    &stripe.Product{ID: "prod_basic", Name: "Basic"},
				},
			}},
		},
	}

	out := subscriptionFromStripe(sub)

	assert.Equal(t, "sub_1", out.ID)
	assert.Equal(t, billing.SubscriptionStatusActive, out.Status)
	assert.Equal(t, "cus_1", out.CustomerID)
	assert.Equal(t, "2023-11-14T22:13:20Z", out.ScheduledChange)
	assert.Equal(t, "2023-11-14T22:13:20Z", out.NextBilledAt)
	assert.Equal(t, "price_basic", out.Price.ID)
	assert.Equal(t, billing.IntervalYear, out.Price.BillingInterval)
	assert.Equal(t, "Basic", out.Product.Name)
}

func TestStripeClient_RequiresSubscription(t *testing.T) {
	client := NewStripeClient(StripeConfig{SecretKey: "sk_test_123"})

	_, err := client.PreviewPlan(context.Background(), "price_pro")
	assert.ErrorIs(t, err, ErrNoSubscription)
	_, err = client.ChangePlan(context.Background(), "price_pro")
	assert.ErrorIs(t, err, ErrNoSubscription)
	assert.Equal(t, DefaultProrationBehavior, client.prorationBehavior)
	assert.Equal(t, "sub_1", client.ForSubscription("sub_1").subscriptionID)
}

func TestStripeClient_ParseWebhook(t *testing.T) {
	const secret = "whsec_test"
	client := NewStripeClient(StripeConfig{SecretKey: "sk_test_123", WebhookSecret: secret})

	payload, err := json.Marshal(map[string]interface{}{
		"id":     "evt_1",
		"object": "event",
		"type":   "invoice.paid",
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":           "in_1",
				"object":       "invoice",
				"subscription": "sub_1",
				"customer":     map[string]interface{}{"id": "cus_1"},
			},
		},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})

	event, err := client.ParseWebhook(payload, signed.Header)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, "invoice.paid", event.Type)
	assert.Equal(t, "sub_1", event.SubscriptionID)
	assert.Equal(t, "cus_1", event.CustomerID)

	_, err = client.ParseWebhook(payload, "t=1,v1=bad")
	assert.Error(t, err)
}

func TestExpandableID(t *testing.T) {
	assert.Equal(t, "sub_1", expandableID(json.RawMessage(`"sub_1"`)))
	assert.Equal(t, "sub_2", expandableID(json.RawMessage(`{"id":"sub_2"}`)))
	assert.Equal(t, "", expandableID(nil))
	assert.Equal(t, "", expandableID(json.RawMessage(`null`)))
}
