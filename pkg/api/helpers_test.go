package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/saazpayhq/saazpay/pkg/billing"
	"github.com/saazpayhq/saazpay/pkg/planchange"
	"github.com/stretchr/testify/require"
)

// fakeBackend is an in-memory billing provider
type fakeBackend struct {
	mu          sync.Mutex
	plans       []billing.Plan
	plansErr    error
	previewErr  error
	changeErr   error
	planCalls   int32
	changeCalls int32
	changedTo   map[string]string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{plans: testPlans(), changedTo: make(map[string]string)}
}

func (b *fakeBackend) GetPlans(ctx context.Context) ([]billing.Plan, error) {
	atomic.AddInt32(&b.planCalls, 1)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.plansErr != nil {
		return nil, b.plansErr
	}
	return append([]billing.Plan(nil), b.plans...), nil
}

func (b *fakeBackend) Bind(subscriptionID string) billing.Client {
	return &fakeClient{backend: b, subscriptionID: subscriptionID}
}

type fakeClient struct {
	backend        *fakeBackend
	subscriptionID string
}

func (c *fakeClient) GetPlans(ctx context.Context) ([]billing.Plan, error) {
	return c.backend.GetPlans(ctx)
}

func (c *fakeClient) PreviewPlan(ctx context.Context, planID string) (*billing.Proration, error) {
	if c.backend.previewErr != nil {
		return nil, c.backend.previewErr
	}
	return &billing.Proration{CurrencyCode: "USD", ProratedCharge: 1000, SubTotal: 1000, GrandTotal: 1000}, nil
}

func (c *fakeClient) ChangePlan(ctx context.Context, planID string) (*billing.PlanChange, error) {
	atomic.AddInt32(&c.backend.changeCalls, 1)
	if c.subscriptionID == "" {
		return nil, errors.New("no subscription")
	}
	if c.backend.changeErr != nil {
		return nil, c.backend.changeErr
	}
	c.backend.mu.Lock()
	c.backend.changedTo[c.subscriptionID] = planID
	c.backend.mu.Unlock()
	return &billing.PlanChange{ID: c.subscriptionID, Status: "active"}, nil
}

// instantClock settles immediately
type instantClock struct{}

func (instantClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func testPlan(id, product string, price float64, interval billing.Interval) billing.Plan {
	return billing.Plan{
		ID:               id,
		Name:             product + " " + string(interval),
		Price:            price,
		Currency:         "USD",
		BillingFrequency: 1,
		BillingInterval:  interval,
		Product:          billing.Product{ID: "pro_" + id, Name: product},
	}
}

func testPlans() []billing.Plan {
	return []billing.Plan{
		testPlan("pri_basic_month", "Basic", 10, billing.IntervalMonth),
		testPlan("pri_pro_month", "Pro", 20, billing.IntervalMonth),
		testPlan("pri_pro_year", "Pro", 200, billing.IntervalYear),
	}
}

func testSubscription() *billing.Subscription {
	return &billing.Subscription{
		ID:           "sub_1",
		CustomerID:   "ctm_1",
		Status:       billing.SubscriptionStatusActive,
		NextBilledAt: "2026-01-01T00:00:00Z",
		Product:      billing.Product{Name: "Basic"},
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

func testFlowConfig() planchange.Config {
	cfg := planchange.DefaultConfig()
	cfg.Clock = instantClock{}
	return cfg
}

func newTestServer(t *testing.T, backend *fakeBackend, mutate func(*Options)) *Server {
	t.Helper()
	opts := Options{Backend: backend, FlowConfig: testFlowConfig()}
	if mutate != nil {
		mutate(&opts)
	}
	s := NewServer(opts)
	t.Cleanup(func() { require.NoError(t, s.Flows().Purge(context.Background())) })
	return s
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) planchange.Snapshot {
	t.Helper()
	var snap planchange.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap), rec.Body.String())
	return snap
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

// createFlow creates a flow for the test subscription and returns its ID
func createFlow(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/v1/flows", CreateFlowRequest{
		Subscription:   testSubscription(),
		ManagementURLs: billing.ManagementURLs{CustomerPortal: "https://portal.example.com/ctm_1"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeSnapshot(t, rec).ID
}

// previewedFlow creates a flow, opens it and waits for the preview of planID
func previewedFlow(t *testing.T, h http.Handler, planID string) string {
	t.Helper()
	id := createFlow(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/flows/"+id+"/open", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodPost, "/api/v1/flows/"+id+"/select", SelectPlanRequest{PlanID: planID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Eventually(t, func() bool {
		rec := doJSON(t, h, http.MethodGet, "/api/v1/flows/"+id, nil)
		return decodeSnapshot(t, rec).Preview.Status == planchange.PreviewSuccess
	}, 2*time.Second, 10*time.Millisecond)
	return id
}
