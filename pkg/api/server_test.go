package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/saazpayhq/saazpay/pkg/audit"
	"github.com/saazpayhq/saazpay/pkg/billing"
	"github.com/saazpayhq/saazpay/pkg/observability"
	"github.com/saazpayhq/saazpay/pkg/portal"
	"github.com/saazpayhq/saazpay/pkg/templates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withRenderer(t *testing.T) func(*Options) {
	t.Helper()
	folder, err := templates.Folder("saazpay")
	require.NoError(t, err)
	renderer, err := portal.NewRenderer(folder)
	require.NoError(t, err)
	return func(o *Options) { o.Renderer = renderer }
}

func TestListPlans(t *testing.T) {
	s := newTestServer(t, newFakeBackend(), nil)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/plans", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all PlansResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Equal(t, 3, all.Count)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/plans?interval=year", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var yearly PlansResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &yearly))
	require.Equal(t, 1, yearly.Count)
	assert.Equal(t, "pri_pro_year", yearly.Plans[0].ID)
	assert.Equal(t, billing.IntervalYear, yearly.Interval)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/plans?interval=week", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"plans":[],"interval":"week","count":0}`, rec.Body.String())

	rec = doJSON(t, s, http.MethodGet, "/api/v1/plans?interval=fortnight", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_interval", decodeError(t, rec)["code"])
}

func TestListPlans_BackendError(t *testing.T) {
	backend := newFakeBackend()
	backend.plansErr = errors.New("backend down")
	s := newTestServer(t, backend, nil)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/plans", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestManagementPage(t *testing.T) {
	s := newTestServer(t, newFakeBackend(), withRenderer(t))
	id := createFlow(t, s)

	rec := doJSON(t, s, http.MethodGet, "/portal/manage/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), portal.ChangePlanLabel)
	assert.Contains(t, rec.Body.String(), "https://portal.example.com/ctm_1")

	rec = doJSON(t, s, http.MethodGet, "/portal/manage/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPricingPage(t *testing.T) {
	s := newTestServer(t, newFakeBackend(), withRenderer(t))

	rec := doJSON(t, s, http.MethodGet, "/portal/pricing?interval=year&user_id=user_1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Contains(t, body, "USD 200")
	assert.NotContains(t, body, "USD 10")
}

func TestPortalRoutes_DisabledWithoutRenderer(t *testing.T) {
	s := newTestServer(t, newFakeBackend(), nil)

	rec := doJSON(t, s, http.MethodGet, "/portal/pricing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	s := newTestServer(t, newFakeBackend(), func(o *Options) {
		o.Registry = registry
		o.Metrics = metrics
		o.Health = observability.NewHealthChecker(nil, nil)
	})

	rec := doJSON(t, s, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, s, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	createFlow(t, s)

	rec = doJSON(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "saazpay_flows_active 1")
	assert.Contains(t, body, `path="/api/v1/flows"`)
}

func TestJournalRoutes(t *testing.T) {
	journal := audit.NewMemoryJournal()
	s := newTestServer(t, newFakeBackend(), func(o *Options) { o.Journal = journal })

	entry := audit.NewWebhookEntry("evt_1", "customer.subscription.updated", "sub_1", "cus_1")
	require.NoError(t, journal.Record(httptest.NewRequest(http.MethodGet, "/", nil).Context(), entry))

	rec := doJSON(t, s, http.MethodGet, "/api/v1/journal/entries?subscription_id=sub_1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "customer.subscription.updated")
}

func TestHandler_CORSAndRequestID(t *testing.T) {
	s := newTestServer(t, newFakeBackend(), func(o *Options) {
		o.AllowedOrigins = []string{"https://app.example.com"}
	})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/plans", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestCheckOrigin(t *testing.T) {
	s := newTestServer(t, newFakeBackend(), func(o *Options) {
		o.AllowedOrigins = []string{"https://app.example.com"}
	})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://app.example.com", true},
		{"https://evil.example.com", false},
	}
	for _, tt := range tests {
		t.Run(strings.TrimPrefix(tt.origin, "https://"), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/embed/bridge", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, s.checkOrigin(req))
		})
	}
}
