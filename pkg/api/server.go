package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/saazpayhq/saazpay/pkg/audit"
	"github.com/saazpayhq/saazpay/pkg/billing"
	"github.com/saazpayhq/saazpay/pkg/embed"
	"github.com/saazpayhq/saazpay/pkg/httputil"
	"github.com/saazpayhq/saazpay/pkg/middleware"
	"github.com/saazpayhq/saazpay/pkg/observability"
	"github.com/saazpayhq/saazpay/pkg/planchange"
	"github.com/saazpayhq/saazpay/pkg/portal"
	"github.com/saazpayhq/saazpay/pkg/provider"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// MaxRequestBytes bounds request bodies. Webhook payloads are the largest.
const MaxRequestBytes = 1 << 20

// SubscriptionLoader fetches a subscription from the billing provider
type SubscriptionLoader func(ctx context.Context, subscriptionID string) (*billing.Subscription, error)

// WebhookVerifier authenticates provider webhooks
type WebhookVerifier interface {
	ParseWebhook(payload []byte, signature string) (provider.WebhookEvent, error)
}

// Options wires the server's collaborators. Backend is required; every other
// collaborator is optional and disables its routes when nil.
type Options struct {
	Backend provider.Backend
	// Catalog is invalidated by provider webhooks
	Catalog       *provider.CachedCatalog
	Flows         *FlowStore
	FlowConfig    planchange.Config
	Subscriptions SubscriptionLoader

	Journal  audit.Store
	Recorder *audit.Recorder
	Webhooks WebhookVerifier

	Renderer *portal.Renderer
	Embed    embed.ProviderConfig
	Pricing  embed.PricingSettings
	Location *time.Location

	CommitLimiter middleware.Limiter

	Metrics  *observability.Metrics
	Registry *prometheus.Registry
	OTel     *observability.OTelMetrics
	Health   *observability.HealthChecker

	AllowedOrigins []string
	// AccessLog receives combined-format access logs when set
	AccessLog io.Writer
	Logger    *observability.Logger
}

// Server represents our API server
type Server struct {
	opts     Options
	router   *mux.Router
	flows    *FlowStore
	logger   *observability.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Flows == nil {
		opts.Flows = NewFlowStore(DefaultMaxFlows, DefaultFlowTTL, opts.Metrics, opts.OTel)
	}

	s := &Server{
		opts:   opts,
		router: mux.NewRouter(),
		flows:  opts.Flows,
		logger: opts.Logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.Use(httputil.RequestIDMiddleware(s.logger))
	s.router.Use(httputil.RecoveryMiddleware)
	if s.opts.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.opts.Metrics))
	}
	if s.opts.OTel != nil {
		s.router.Use(observability.OTelHTTPMiddleware(s.opts.OTel))
	}

	// Health and metrics
	if s.opts.Health != nil {
		observability.RegisterHealthRoutes(s.router, s.opts.Health)
	}
	if s.opts.Registry != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.opts.Registry)).Methods("GET")
	}

	// Websockets are not body limited
	s.router.HandleFunc("/api/v1/flows/{id}/events", s.streamFlow).Methods("GET")
	s.router.HandleFunc("/embed/bridge", s.embedBridge).Methods("GET")

	api := s.router.NewRoute().Subrouter()
	api.Use(httputil.MaxBytesMiddleware(MaxRequestBytes))

	// Catalog
	api.HandleFunc("/api/v1/plans", s.listPlans).Methods("GET")

	// Flows
	api.HandleFunc("/api/v1/flows", s.createFlow).Methods("POST")
	api.HandleFunc("/api/v1/flows/{id}", s.getFlow).Methods("GET")
	api.HandleFunc("/api/v1/flows/{id}", s.closeFlow).Methods("DELETE")
	api.HandleFunc("/api/v1/flows/{id}/open", s.openFlow).Methods("POST")
	api.HandleFunc("/api/v1/flows/{id}/tab", s.setTab).Methods("POST")
	api.HandleFunc("/api/v1/flows/{id}/select", s.selectPlan).Methods("POST")
	api.HandleFunc("/api/v1/flows/{id}/confirm-request", s.requestConfirm).Methods("POST")
	api.HandleFunc("/api/v1/flows/{id}/back", s.back).Methods("POST")
	api.HandleFunc("/api/v1/flows/{id}/dashboard", s.dashboard).Methods("POST")
	api.HandleFunc("/api/v1/flows/{id}/cancel", s.cancelCommit).Methods("POST")

	confirm := http.Handler(http.HandlerFunc(s.confirm))
	if s.opts.CommitLimiter != nil {
		limit := middleware.NewRateLimitMiddleware(s.opts.CommitLimiter, middleware.FlowKey, s.logger)
		confirm = limit.Handler(confirm)
	}
	api.Handle("/api/v1/flows/{id}/confirm", confirm).Methods("POST")

	// Embedding
	api.HandleFunc("/embed/urls", s.embedURLs).Methods("GET")
	api.HandleFunc("/embed/checkout-outcome", s.checkoutOutcome).Methods("GET")

	// Pages
	if s.opts.Renderer != nil {
		api.HandleFunc("/portal/manage/{id}", s.managementPage).Methods("GET")
		api.HandleFunc("/portal/pricing", s.pricingPage).Methods("GET")
	}

	// Provider webhooks
	if s.opts.Webhooks != nil {
		api.HandleFunc("/webhooks/stripe", s.stripeWebhook).Methods("POST")
	}

	// Plan change journal
	if s.opts.Journal != nil {
		audit.NewHandlers(s.opts.Journal).RegisterRoutes(api.PathPrefix("/api/v1").Subrouter())
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the router for extra routes
func (s *Server) Router() *mux.Router {
	return s.router
}

// Flows returns the flow store
func (s *Server) Flows() *FlowStore {
	return s.flows
}

// Handler wraps the server with tracing and CORS, plus the access log when
// one is configured
func (s *Server) Handler() http.Handler {
	var h http.Handler = s
	h = otelhttp.NewHandler(h, "saazpay")

	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	h = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", httputil.RequestIDHeader}),
		handlers.ExposedHeaders([]string{httputil.RequestIDHeader, "X-RateLimit-Remaining", "Retry-After"}),
	)(h)

	if s.opts.AccessLog != nil {
		h = handlers.CombinedLoggingHandler(s.opts.AccessLog, h)
	}
	return h
}

// checkOrigin accepts websocket upgrades from the configured origins, or from
// any origin when none are configured
func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// newFlow creates a flow observed by the server's metrics and journal
func (s *Server) newFlow(client billing.Client, sub *billing.Subscription) *planchange.Flow {
	opts := []planchange.Option{
		planchange.WithLogger(s.logger),
		planchange.WithObserver(flowMetrics{metrics: s.opts.Metrics, otel: s.opts.OTel}),
	}
	if s.opts.Recorder != nil {
		opts = append(opts, planchange.WithObserver(s.opts.Recorder))
	}
	return planchange.NewFlow(client, sub, s.opts.FlowConfig, opts...)
}
