package planchange

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/saazpayhq/saazpay/pkg/billing"
)

type mockClient struct {
	getPlansFunc    func(ctx context.Context) ([]billing.Plan, error)
	previewPlanFunc func(ctx context.Context, planID string) (*billing.Proration, error)
	changePlanFunc  func(ctx context.Context, planID string) (*billing.PlanChange, error)

	mu          sync.Mutex
	changeCalls []string
}

func (m *mockClient) GetPlans(ctx context.Context) ([]billing.Plan, error) {
	if m.getPlansFunc != nil {
		return m.getPlansFunc(ctx)
	}
	return testPlans(), nil
}

func (m *mockClient) PreviewPlan(ctx context.Context, planID string) (*billing.Proration, error) {
	if m.previewPlanFunc != nil {
		return m.previewPlanFunc(ctx, planID)
	}
	return testProration(), nil
}

func (m *mockClient) ChangePlan(ctx context.Context, planID string) (*billing.PlanChange, error) {
	m.mu.Lock()
	m.changeCalls = append(m.changeCalls, planID)
	m.mu.Unlock()
	if m.changePlanFunc != nil {
		return m.changePlanFunc(ctx, planID)
	}
	return &billing.PlanChange{ID: "sub_1", Status: "active"}, nil
}

func (m *mockClient) changes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.changeCalls...)
}

// fakeClock hands out settle timers that only fire on Fire
type fakeClock struct {
	requested chan time.Duration

	mu      sync.Mutex
	waiters []chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{requested: make(chan time.Duration, 8)}
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	c.mu.Lock()
	c.waiters = append(c.waiters, ch)
	c.mu.Unlock()
	c.requested <- d
	return ch
}

func (c *fakeClock) Fire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range c.waiters {
		w <- time.Now()
	}
	c.waiters = nil
}

func (c *fakeClock) awaitRequest(t *testing.T) time.Duration {
	t.Helper()
	select {
	case d := <-c.requested:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("settle wait was never scheduled")
		return 0
	}
}

func testPlan(id, product string, price float64, interval billing.Interval) billing.Plan {
	return billing.Plan{
		ID:               id,
		Price:            price,
		Currency:         "USD",
		Name:             product + " " + string(interval),
		BillingFrequency: 1,
		BillingInterval:  interval,
		ProductID:        "pro_" + product,
		Product:          billing.Product{ID: "pro_" + product, Name: product},
	}
}

func testPlans() []billing.Plan {
	return []billing.Plan{
		testPlan("pri_basic_month", "Basic", 10, billing.IntervalMonth),
		testPlan("pri_pro_month", "Pro", 20, billing.IntervalMonth),
		testPlan("pri_team_month", "Team", 50, billing.IntervalMonth),
		testPlan("pri_pro_year", "Pro", 200, billing.IntervalYear),
	}
}

func testSubscription() *billing.Subscription {
	return &billing.Subscription{
		ID:     "sub_1",
		Status: billing.SubscriptionStatusActive,
		Price:  billing.SubscriptionPrice{ID: "pri_basic_month", Currency: "USD", Price: 10},
	}
}

func testProration() *billing.Proration {
	return &billing.Proration{
		CurrencyCode:   "USD",
		ProratedCharge: 1000,
		CreditAmount:   -500,
		SubTotal:       500,
		GrandTotal:     500,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
