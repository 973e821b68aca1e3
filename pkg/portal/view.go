package portal

import (
	"encoding/json"
	"math"
	"time"

	"github.com/saazpayhq/saazpay/pkg/billing"
	"github.com/saazpayhq/saazpay/pkg/embed"
	"github.com/saazpayhq/saazpay/pkg/planchange"
)

// Page texts
const (
	NoSubscriptionText      = "You don't have any active subscriptions."
	SelectPlanLabel         = "Select plan"
	ChangePlanLabel         = "Change plan"
	DashboardLabel          = "Dashboard"
	BackToPlansLabel        = "Back to plans"
	ConfirmChangeLabel      = "Confirm change"
	ProcessingLabel         = "Processing..."
	ConfirmTitle            = "Confirm plan change"
	ConfirmQuestion         = "Are you sure you want to change your plan. You can always upgrade/downgrade later."
	ScheduledTitle          = "Subscription scheduled"
	ScheduledCancelPrefix   = "This subscription is scheduled to be canceled on "
	ManageSubscriptionLabel = "Manage subscription"
	UpdatePaymentLabel      = "Update payment method"
	CancelSubscriptionLabel = "Cancel subscription"
	NextBilledLabel         = "Next billed at"
	StatusLabel             = "Status"
	PreviewTitle            = "Preview Plan Changes"
	PreviewIntro            = "We've calculated the costs based on your current usage and the time remaining in your billing cycle."
	MonthlyLabel            = "Monthly"
	YearlyLabel             = "Yearly"
)

// Tab is an interval tab of a plan grid
type Tab struct {
	Label    string
	Interval billing.Interval
	Active   bool
}

func intervalTabs(active billing.Interval) []Tab {
	return []Tab{
		{Label: MonthlyLabel, Interval: billing.IntervalMonth, Active: active == billing.IntervalMonth},
		{Label: YearlyLabel, Interval: billing.IntervalYear, Active: active == billing.IntervalYear},
	}
}

// PlanCard is one plan of a grid
type PlanCard struct {
	ID                 string
	ImageURL           string
	ProductName        string
	ProductDescription string
	Description        string
	Price              string
	Cadence            string
	Trial              string
	Selected           bool
	// Action is the card button label, empty for cards without a button
	Action string
	Color  string
	// Checkout is the JSON checkout request, empty when the card is not purchasable
	Checkout string
}

// NewPlanCard renders plan's catalog fields
func NewPlanCard(plan billing.Plan) PlanCard {
	return PlanCard{
		ID:                 plan.ID,
		ImageURL:           plan.Product.ImageURL,
		ProductName:        plan.Product.Name,
		ProductDescription: plan.Product.Description,
		Description:        plan.Description,
		Price:              billing.FormatCatalogPrice(plan.Currency, plan.Price),
		Cadence:            billing.FormatBillingCadence(plan.BillingFrequency, plan.BillingInterval),
		Trial:              billing.TrialText(plan.TrialFrequency, plan.TrialInterval),
	}
}

// Link is an external management link
type Link struct {
	Label string
	URL   string
}

// SubscriptionSummary is the dashboard card of the active subscription
type SubscriptionSummary struct {
	ImageURL           string
	ProductName        string
	ProductDescription string
	PriceName          string
	PriceDescription   string
	Price              string
	Cadence            string
	Trial              string
	NextBilled         string
	Status             string
	ScheduledTitle     string
	ScheduledText      string
	Links              []Link
}

// NewSubscriptionSummary renders sub for display in loc
func NewSubscriptionSummary(sub billing.Subscription, urls billing.ManagementURLs, loc *time.Location) SubscriptionSummary {
	s := SubscriptionSummary{
		ImageURL:           sub.Product.ImageURL,
		ProductName:        sub.Product.Name,
		ProductDescription: sub.Product.Description,
		PriceName:          sub.Price.Name,
		PriceDescription:   sub.Price.Description,
		Price:              billing.FormatCatalogPrice(sub.Price.Currency, sub.Price.Price),
		Cadence:            billing.FormatBillingCadence(sub.Price.BillingFrequency, sub.Price.BillingInterval),
		Trial:              billing.TrialText(sub.Price.TrialFrequency, sub.Price.TrialInterval),
		NextBilled:         billing.FormatNextBilled(sub.NextBilledAt, loc),
		Status:             string(sub.Status),
		Links: []Link{
			{Label: ManageSubscriptionLabel, URL: urls.CustomerPortal},
			{Label: UpdatePaymentLabel, URL: urls.UpdatePaymentMethod},
			{Label: CancelSubscriptionLabel, URL: urls.CancelSubscription},
		},
	}
	if sub.ScheduledChange != "" {
		s.ScheduledTitle = ScheduledTitle
		s.ScheduledText = ScheduledCancelPrefix + billing.FormatTimestamp(sub.ScheduledChange, loc)
	}
	return s
}

// PreviewView is the proration pane next to the plan grid
type PreviewView struct {
	Title    string
	Intro    string
	Changing string
	Rows     []billing.ProrationRow
	Loading  bool
	Error    string
	CanAsk   bool
	AskLabel string
}

// ConfirmView is the explicit confirmation step
type ConfirmView struct {
	Title           string
	Question        string
	From            string
	To              string
	BackLabel       string
	ConfirmLabel    string
	BackDisabled    bool
	ConfirmDisabled bool
	Processing      bool
	ProcessingText  string
	Error           string
}

// ManagementPage is the subscription management panel for one flow
type ManagementPage struct {
	FlowID string
	Phase  planchange.Phase

	// browsing
	Subscription    *SubscriptionSummary
	EmptyText       string
	SelectPlanLabel string
	ChangePlanLabel string

	// selecting
	DashboardLabel string
	CatalogLoading bool
	CatalogError   string
	Tabs           []Tab
	Plans          []PlanCard
	EmptyTabText   string
	Preview        *PreviewView

	// confirm_pending and later
	Confirm *ConfirmView
}

// Selecting reports whether the plan grid is shown
func (p ManagementPage) Selecting() bool {
	return p.Phase == planchange.PhaseSelecting
}

// Confirming reports whether the confirmation step is shown
func (p ManagementPage) Confirming() bool {
	return p.Confirm != nil
}

// NewManagementPage renders a flow snapshot
func NewManagementPage(snap planchange.Snapshot, urls billing.ManagementURLs, loc *time.Location) ManagementPage {
	page := ManagementPage{
		FlowID:          snap.ID,
		Phase:           snap.Phase,
		SelectPlanLabel: SelectPlanLabel,
		ChangePlanLabel: ChangePlanLabel,
		DashboardLabel:  DashboardLabel,
	}

	if snap.Subscription != nil {
		summary := NewSubscriptionSummary(*snap.Subscription, urls, loc)
		page.Subscription = &summary
	} else {
		page.EmptyText = NoSubscriptionText
	}

	switch snap.Phase {
	case planchange.PhaseSelecting:
		page.fillSelecting(snap)
	case planchange.PhaseConfirmPending, planchange.PhaseCommitting, planchange.PhaseSettling, planchange.PhaseDone:
		page.Confirm = newConfirmView(snap)
	}
	return page
}

func (p *ManagementPage) fillSelecting(snap planchange.Snapshot) {
	p.Tabs = intervalTabs(snap.Catalog.Tab)
	switch snap.Catalog.Status {
	case planchange.CatalogLoading, planchange.CatalogIdle:
		p.CatalogLoading = true
		return
	case planchange.CatalogError:
		p.CatalogError = snap.Catalog.Error
		return
	}

	for _, plan := range snap.Catalog.Plans {
		card := NewPlanCard(plan)
		card.Selected = snap.Selected != nil && snap.Selected.ID == plan.ID
		p.Plans = append(p.Plans, card)
	}
	p.EmptyTabText = snap.Catalog.EmptyText

	if snap.Selected == nil {
		return
	}
	preview := &PreviewView{Title: PreviewTitle, Intro: PreviewIntro, AskLabel: ConfirmChangeLabel}
	switch snap.Preview.Status {
	case planchange.PreviewLoading, planchange.PreviewIdle:
		preview.Loading = true
	case planchange.PreviewError:
		preview.Error = snap.Preview.Error
	case planchange.PreviewSuccess:
		preview.Rows = snap.Preview.Rows
		preview.CanAsk = true
		if snap.Catalog.Current != nil && snap.Preview.Data != nil {
			preview.Changing = changingText(*snap.Catalog.Current, *snap.Selected, snap.Preview.Data.CurrencyCode)
		}
	}
	p.Preview = preview
}

func changingText(from, to billing.Plan, code string) string {
	return "You're changing from " + planWithPrice(from, code) + " to " + planWithPrice(to, code) + "."
}

// planWithPrice renders "Pro ($20.00/month)"
func planWithPrice(plan billing.Plan, code string) string {
	cents := int64(math.Round(plan.Price * 100))
	return plan.Product.Name + " (" + billing.FormatCents(cents, code) + "/" + string(plan.BillingInterval) + ")"
}

func newConfirmView(snap planchange.Snapshot) *ConfirmView {
	v := &ConfirmView{
		Title:           ConfirmTitle,
		Question:        ConfirmQuestion,
		BackLabel:       BackToPlansLabel,
		ConfirmLabel:    ConfirmChangeLabel,
		BackDisabled:    snap.Phase != planchange.PhaseConfirmPending,
		ConfirmDisabled: !snap.CanConfirm,
		Processing:      snap.Processing,
		Error:           snap.CommitError,
	}
	if snap.Pending != nil {
		v.From = snap.Pending.From
		v.To = snap.Pending.To
	}
	if snap.Phase == planchange.PhaseCommitting {
		v.ConfirmLabel = ProcessingLabel
	}
	if snap.Processing {
		v.ProcessingText = planchange.ProcessingText
	}
	return v
}

// PricingPage is the public pricing grid
type PricingPage struct {
	Tabs         []Tab
	Plans        []PlanCard
	EmptyText    string
	PrimaryColor string
	Alignment    embed.Align
	Purchasable  bool
	ReloadAfter  time.Duration
}

// PricingOptions configure a PricingPage
type PricingOptions struct {
	Tab      billing.Interval
	Settings embed.PricingSettings
	// ActivePlanID disables checkout for callers that already subscribe
	ActivePlanID string
	UserID       string
	AppID        string
}

// NewPricingPage renders the plans on the selected tab
func NewPricingPage(plans []billing.Plan, opts PricingOptions) PricingPage {
	tab := opts.Tab
	if tab != billing.IntervalYear {
		tab = billing.IntervalMonth
	}
	settings := opts.Settings.WithDefaults()

	page := PricingPage{
		Tabs:         intervalTabs(tab),
		PrimaryColor: settings.PrimaryColor,
		Alignment:    settings.Alignment,
		Purchasable:  opts.ActivePlanID == "",
		ReloadAfter:  embed.PricingReloadDelay,
	}

	for _, plan := range billing.FilterByInterval(plans, tab) {
		card := NewPlanCard(plan)
		if page.Purchasable {
			card.Action = SelectPlanLabel
			card.Color = settings.PrimaryColor
			if req, err := embed.NewCheckoutRequest(plan, opts.UserID, opts.AppID); err == nil {
				if data, err := json.Marshal(req); err == nil {
					card.Checkout = string(data)
				}
			}
		}
		page.Plans = append(page.Plans, card)
	}
	if len(page.Plans) == 0 {
		page.EmptyText = planchange.EmptyTabText
	}
	return page
}
