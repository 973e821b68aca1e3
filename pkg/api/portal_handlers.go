package api

import (
	"net/http"

	"github.com/saazpayhq/saazpay/pkg/billing"
	"github.com/saazpayhq/saazpay/pkg/httputil"
	"github.com/saazpayhq/saazpay/pkg/observability"
	"github.com/saazpayhq/saazpay/pkg/portal"
)

// managementPage handles GET /portal/manage/{id}
func (s *Server) managementPage(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	page := portal.NewManagementPage(session.Flow.Snapshot(), session.URLs, s.opts.Location)
	s.renderPage(w, r, func(w http.ResponseWriter) error {
		return s.opts.Renderer.RenderManagement(w, page)
	})
}

// pricingPage handles GET /portal/pricing?interval=&user_id=&app_id=&active_plan=
func (s *Server) pricingPage(w http.ResponseWriter, r *http.Request) {
	plans, err := s.opts.Backend.GetPlans(r.Context())
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to load plans")
		httputil.WriteErrorMessage(w, http.StatusBadGateway, "failed to load plans")
		return
	}

	page := portal.NewPricingPage(plans, portal.PricingOptions{
		Tab:          billing.Interval(httputil.ParseQueryString(r, "interval", string(billing.IntervalMonth))),
		Settings:     s.opts.Pricing,
		ActivePlanID: httputil.ParseQueryString(r, "active_plan", ""),
		UserID:       httputil.ParseQueryString(r, "user_id", ""),
		AppID:        httputil.ParseQueryString(r, "app_id", ""),
	})
	s.renderPage(w, r, func(w http.ResponseWriter) error {
		return s.opts.Renderer.RenderPricing(w, page)
	})
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, render func(http.ResponseWriter) error) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := render(w); err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to render page")
		httputil.WriteInternalError(w, err)
	}
}
