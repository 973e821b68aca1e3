package portal

import (
	"github.com/saazpayhq/saazpay/pkg/billing"
)

func plan(id, product string, price float64, interval billing.Interval) billing.Plan {
	return billing.Plan{
		ID:               id,
		Name:             product + " " + string(interval),
		Price:            price,
		Currency:         "USD",
		BillingFrequency: 1,
		BillingInterval:  interval,
		Product:          billing.Product{ID: "pro_" + id, Name: product, Description: product + " tier"},
	}
}

func catalog() []billing.Plan {
	return []billing.Plan{
		plan("pri_basic_month", "Basic", 10, billing.IntervalMonth),
		plan("pri_pro_month", "Pro", 20, billing.IntervalMonth),
		plan("pri_pro_year", "Pro", 200, billing.IntervalYear),
	}
}

func subscription() *billing.Subscription {
	return &billing.Subscription{
		ID:           "sub_1",
		Status:       billing.SubscriptionStatusActive,
		NextBilledAt: "2026-01-01T00:00:00Z",
		Product:      billing.Product{Name: "Basic", Description: "Basic tier"},
		Price: billing.SubscriptionPrice{
			ID:               "pri_basic_month",
			Name:             "Basic monthly",
			Currency:         "USD",
			Price:            10,
			BillingFrequency: 1,
			BillingInterval:  billing.IntervalMonth,
		},
	}
}

var urls = billing.ManagementURLs{
	CustomerPortal:      "https://billing.example.com/portal",
	UpdatePaymentMethod: "https://billing.example.com/payment",
	CancelSubscription:  "https://billing.example.com/cancel",
}
