package api

import (
	"net/http"

	"github.com/saazpayhq/saazpay/pkg/billing"
	"github.com/saazpayhq/saazpay/pkg/httputil"
	"github.com/saazpayhq/saazpay/pkg/observability"
)

// PlansResponse lists catalog plans
type PlansResponse struct {
	Plans    []billing.Plan   `json:"plans"`
	Interval billing.Interval `json:"interval,omitempty"`
	Count    int              `json:"count"`
}

// listPlans handles GET /api/v1/plans?interval=
func (s *Server) listPlans(w http.ResponseWriter, r *http.Request) {
	interval := billing.Interval(httputil.ParseQueryString(r, "interval", ""))
	if interval != "" && !interval.Valid() {
		httputil.WriteErrorCode(w, http.StatusBadRequest, "invalid_interval", "interval must be day, week, month or year")
		return
	}

	plans, err := s.opts.Backend.GetPlans(r.Context())
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to load plans")
		httputil.WriteErrorMessage(w, http.StatusBadGateway, "failed to load plans")
		return
	}
	if interval != "" {
		plans = billing.FilterByInterval(plans, interval)
	}
	if plans == nil {
		plans = []billing.Plan{}
	}

	httputil.WriteSuccess(w, PlansResponse{Plans: plans, Interval: interval, Count: len(plans)})
}
