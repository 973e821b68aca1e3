package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/saazpayhq/saazpay/pkg/billing"
	"github.com/saazpayhq/saazpay/pkg/observability"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultRequestTimeout = 15 * time.Second

// RESTConfig configures a RESTClient
type RESTConfig struct {
	// BaseURL is the saazpay-compatible backend, e.g. https://billing.example.com/api
	BaseURL string
	// Token is sent as a bearer token when set
	Token string
	// SubscriptionID binds preview and change calls to one subscription
	SubscriptionID string
	// Timeout bounds a single request. Defaults to 15s.
	Timeout   time.Duration
	Transport http.RoundTripper
	Metrics   *observability.Metrics
	OTel      *observability.OTelMetrics
}

// RESTClient implements billing.Client against a JSON backend:
//
//	GET  {base}/plans
//	POST {base}/subscriptions/{id}/preview  {"price_id": "..."}
//	POST {base}/subscriptions/{id}/change   {"price_id": "..."}
//
// Requests are never retried.
type RESTClient struct {
	baseURL        string
	token          string
	subscriptionID string
	httpClient     *http.Client
	metrics        requestMetrics
}

// NewRESTClient creates a client. The transport is wrapped for tracing.
func NewRESTClient(cfg RESTConfig) (*RESTClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("billing backend base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid billing backend base URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &RESTClient{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		token:          cfg.Token,
		subscriptionID: cfg.SubscriptionID,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		metrics: requestMetrics{prom: cfg.Metrics, otel: cfg.OTel},
	}, nil
}

// ForSubscription returns a copy bound to subscriptionID
func (c *RESTClient) ForSubscription(subscriptionID string) *RESTClient {
	clone := *c
	clone.subscriptionID = subscriptionID
	return &clone
}

type priceRequest struct {
	PriceID string `json:"price_id"`
}

// GetPlans returns the full catalog
func (c *RESTClient) GetPlans(ctx context.Context) ([]billing.Plan, error) {
	var plans []billing.Plan
	if err := c.do(ctx, "get_plans", http.MethodGet, "/plans", nil, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// PreviewPlan returns the proration for switching to planID
func (c *RESTClient) PreviewPlan(ctx context.Context, planID string) (*billing.Proration, error) {
	if c.subscriptionID == "" {
		return nil, ErrNoSubscription
	}
	var proration billing.Proration
	path := "/subscriptions/" + url.PathEscape(c.subscriptionID) + "/preview"
	if err := c.do(ctx, "preview_plan", http.MethodPost, path, priceRequest{PriceID: planID}, &proration); err != nil {
		return nil, err
	}
	return &proration, nil
}

// ChangePlan switches the bound subscription to planID
func (c *RESTClient) ChangePlan(ctx context.Context, planID string) (*billing.PlanChange, error) {
	if c.subscriptionID == "" {
		return nil, ErrNoSubscription
	}
	var change billing.PlanChange
	path := "/subscriptions/" + url.PathEscape(c.subscriptionID) + "/change"
	if err := c.do(ctx, "change_plan", http.MethodPost, path, priceRequest{PriceID: planID}, &change); err != nil {
		return nil, err
	}
	return &change, nil
}

func (c *RESTClient) do(ctx context.Context, operation, method, path string, in, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.observe(ctx, operation, err, time.Since(start))
	}()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", operation, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", operation, err)
	}
	return nil
}

// errorMessage extracts {"error": "..."} or {"message": "..."} and falls back
// to the raw body
func errorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return strings.TrimSpace(string(body))
}
