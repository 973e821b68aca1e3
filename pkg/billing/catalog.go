package billing

// FilterByInterval returns the plans billed on the given interval, in catalog order
func FilterByInterval(plans []Plan, interval Interval) []Plan {
	filtered := make([]Plan, 0, len(plans))
	for _, plan := range plans {
		if plan.BillingInterval == interval {
			filtered = append(filtered, plan)
		}
	}
	return filtered
}

// SplitCatalog separates the plan the subscription is currently on from the
// plans it could move to. current is nil when sub is nil or its price is not
// in the catalog.
func SplitCatalog(plans []Plan, sub *Subscription) (current *Plan, others []Plan) {
	others = make([]Plan, 0, len(plans))
	for i := range plans {
		if sub != nil && plans[i].ID == sub.Price.ID {
			if current == nil {
				p := plans[i]
				current = &p
			}
			continue
		}
		others = append(others, plans[i])
	}
	return current, others
}

// FindPlan returns the catalog plan with the given id
func FindPlan(plans []Plan, id string) (*Plan, bool) {
	for i := range plans {
		if plans[i].ID == id {
			p := plans[i]
			return &p, true
		}
	}
	return nil, false
}
