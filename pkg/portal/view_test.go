package portal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/saazpayhq/saazpay/pkg/billing"
	"github.com/saazpayhq/saazpay/pkg/embed"
	"github.com/saazpayhq/saazpay/pkg/planchange"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPlanCard(t *testing.T) {
	p := plan("pri_pro_month", "Pro", 20, billing.IntervalMonth)
	p.TrialFrequency = 14
	p.TrialInterval = "day"

	card := NewPlanCard(p)
	assert.Equal(t, "Pro", card.ProductName)
	assert.Equal(t, "USD 20", card.Price)
	assert.Equal(t, "/ Monthly", card.Cadence)
	assert.Equal(t, "14 day(s) trial period", card.Trial)
	assert.Empty(t, card.Action)
}

func TestNewSubscriptionSummary(t *testing.T) {
	sub := subscription()
	summary := NewSubscriptionSummary(*sub, urls, time.UTC)

	assert.Equal(t, "USD 10", summary.Price)
	assert.Equal(t, "January 1, 2026 at 12:00 AM", summary.NextBilled)
	assert.Equal(t, "active", summary.Status)
	assert.Empty(t, summary.ScheduledText)
	require.Len(t, summary.Links, 3)
	assert.Equal(t, ManageSubscriptionLabel, summary.Links[0].Label)

	sub.NextBilledAt = ""
	sub.ScheduledChange = "2026-02-01T09:30:00Z"
	summary = NewSubscriptionSummary(*sub, urls, time.UTC)
	assert.Equal(t, billing.NotAvailable, summary.NextBilled)
	assert.Equal(t, ScheduledTitle, summary.ScheduledTitle)
	assert.Equal(t, "This subscription is scheduled to be canceled on February 1, 2026 at 09:30 AM", summary.ScheduledText)
}

func TestNewManagementPage_Browsing(t *testing.T) {
	page := NewManagementPage(planchange.Snapshot{ID: "flow_1", Phase: planchange.PhaseBrowsing}, urls, time.UTC)
	assert.Nil(t, page.Subscription)
	assert.Equal(t, NoSubscriptionText, page.EmptyText)
	assert.False(t, page.Selecting())
	assert.False(t, page.Confirming())

	page = NewManagementPage(planchange.Snapshot{ID: "flow_1", Phase: planchange.PhaseBrowsing, Subscription: subscription()}, urls, time.UTC)
	require.NotNil(t, page.Subscription)
	assert.Empty(t, page.EmptyText)
}

func TestNewManagementPage_Selecting(t *testing.T) {
	plans := catalog()
	current := plans[0]
	selected := plans[1]
	proration := &billing.Proration{CurrencyCode: "USD", ProratedCharge: 1000, CreditAmount: -500, SubTotal: 500, GrandTotal: 500}

	snap := planchange.Snapshot{
		ID:           "flow_1",
		Phase:        planchange.PhaseSelecting,
		Subscription: subscription(),
		Catalog: planchange.CatalogState{
			Status:  planchange.CatalogLoaded,
			Tab:     billing.IntervalMonth,
			Plans:   plans[1:2],
			Current: &current,
		},
		Selected: &selected,
		Preview: planchange.PreviewState{
			Status: planchange.PreviewSuccess,
			PlanID: selected.ID,
			Data:   proration,
			Rows:   billing.ProrationRows(*proration),
		},
	}

	page := NewManagementPage(snap, urls, time.UTC)
	assert.True(t, page.Selecting())
	require.Len(t, page.Tabs, 2)
	assert.True(t, page.Tabs[0].Active)
	assert.False(t, page.Tabs[1].Active)
	require.Len(t, page.Plans, 1)
	assert.True(t, page.Plans[0].Selected)

	require.NotNil(t, page.Preview)
	assert.True(t, page.Preview.CanAsk)
	assert.Equal(t, "You're changing from Basic ($10.00/month) to Pro ($20.00/month).", page.Preview.Changing)
	assert.Len(t, page.Preview.Rows, 4)

	snap.Preview = planchange.PreviewState{Status: planchange.PreviewError, Error: planchange.PreviewErrorText}
	page = NewManagementPage(snap, urls, time.UTC)
	assert.Equal(t, planchange.PreviewErrorText, page.Preview.Error)
	assert.False(t, page.Preview.CanAsk)

	snap.Catalog = planchange.CatalogState{Status: planchange.CatalogError, Error: planchange.CatalogErrorText}
	page = NewManagementPage(snap, urls, time.UTC)
	assert.Equal(t, planchange.CatalogErrorText, page.CatalogError)
	assert.Nil(t, page.Preview)
}

func TestNewManagementPage_Confirm(t *testing.T) {
	pending := &planchange.Pending{From: "Basic $10.00/month", To: "Pro $20.00/month", PlanID: "pri_pro_month"}

	page := NewManagementPage(planchange.Snapshot{Phase: planchange.PhaseConfirmPending, Pending: pending, CanConfirm: true}, urls, time.UTC)
	require.True(t, page.Confirming())
	assert.Equal(t, ConfirmChangeLabel, page.Confirm.ConfirmLabel)
	assert.False(t, page.Confirm.BackDisabled)
	assert.False(t, page.Confirm.ConfirmDisabled)
	assert.Equal(t, "Basic $10.00/month", page.Confirm.From)

	page = NewManagementPage(planchange.Snapshot{Phase: planchange.PhaseCommitting, Pending: pending}, urls, time.UTC)
	assert.Equal(t, ProcessingLabel, page.Confirm.ConfirmLabel)
	assert.True(t, page.Confirm.BackDisabled)
	assert.True(t, page.Confirm.ConfirmDisabled)

	page = NewManagementPage(planchange.Snapshot{Phase: planchange.PhaseSettling, Pending: pending, Processing: true}, urls, time.UTC)
	assert.Equal(t, planchange.ProcessingText, page.Confirm.ProcessingText)
	assert.True(t, page.Confirm.BackDisabled)
}

func TestNewPricingPage(t *testing.T) {
	page := NewPricingPage(catalog(), PricingOptions{UserID: "user_1", AppID: "app_1"})
	assert.True(t, page.Purchasable)
	assert.Equal(t, embed.DefaultPrimaryColor, page.PrimaryColor)
	assert.Equal(t, embed.AlignLeft, page.Alignment)
	require.Len(t, page.Plans, 2)
	assert.Equal(t, SelectPlanLabel, page.Plans[0].Action)

	var req embed.CheckoutRequest
	require.NoError(t, json.Unmarshal([]byte(page.Plans[0].Checkout), &req))
	require.Len(t, req.Items, 1)
	assert.Equal(t, "pri_basic_month", req.Items[0].PriceID)

	yearly := NewPricingPage(catalog(), PricingOptions{Tab: billing.IntervalYear, ActivePlanID: "pri_basic_month"})
	assert.False(t, yearly.Purchasable)
	require.Len(t, yearly.Plans, 1)
	assert.Empty(t, yearly.Plans[0].Action)
	assert.Empty(t, yearly.Plans[0].Checkout)

	empty := NewPricingPage(nil, PricingOptions{})
	assert.Equal(t, planchange.EmptyTabText, empty.EmptyText)
}
