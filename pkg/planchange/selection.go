package planchange

import (
	"fmt"

	"github.com/saazpayhq/saazpay/pkg/billing"
)

// DefaultTab is the billing interval shown when plan selection starts
const DefaultTab = billing.IntervalMonth

// Selection tracks the interval tab and the tentatively selected plan over a
// fixed catalog snapshot. It is not safe for concurrent use; Flow guards it.
type Selection struct {
	catalog  []billing.Plan
	tab      billing.Interval
	selected *billing.Plan
}

// NewSelection starts a selection over the selectable plans
func NewSelection(catalog []billing.Plan) *Selection {
	plans := make([]billing.Plan, len(catalog))
	copy(plans, catalog)
	return &Selection{
		catalog: plans,
		tab:     DefaultTab,
	}
}

// Tab returns the active billing interval tab
func (s *Selection) Tab() billing.Interval {
	return s.tab
}

// SetTab switches between the month and year tabs. The current selection is
// kept even when the selected plan is not on the new tab.
func (s *Selection) SetTab(tab billing.Interval) error {
	if tab != billing.IntervalMonth && tab != billing.IntervalYear {
		return fmt.Errorf("%w: %q", ErrInvalidTab, tab)
	}
	s.tab = tab
	return nil
}

// Visible returns the plans on the active tab
func (s *Selection) Visible() []billing.Plan {
	return billing.FilterByInterval(s.catalog, s.tab)
}

// Catalog returns every selectable plan
func (s *Selection) Catalog() []billing.Plan {
	plans := make([]billing.Plan, len(s.catalog))
	copy(plans, s.catalog)
	return plans
}

// Select records planID as the selected plan. Selecting the already selected
// plan is allowed; callers preview on every call.
func (s *Selection) Select(planID string) (billing.Plan, error) {
	plan, ok := billing.FindPlan(s.catalog, planID)
	if !ok {
		return billing.Plan{}, fmt.Errorf("%w: %s", ErrPlanNotFound, planID)
	}
	s.selected = plan
	return *plan, nil
}

// Selected returns a copy of the selected plan, or nil
func (s *Selection) Selected() *billing.Plan {
	if s.selected == nil {
		return nil
	}
	p := *s.selected
	return &p
}
