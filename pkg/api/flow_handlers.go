package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/saazpayhq/saazpay/pkg/billing"
	"github.com/saazpayhq/saazpay/pkg/contextkeys"
	"github.com/saazpayhq/saazpay/pkg/httputil"
	"github.com/saazpayhq/saazpay/pkg/observability"
	"github.com/saazpayhq/saazpay/pkg/planchange"
	"github.com/saazpayhq/saazpay/pkg/provider"
)

// CreateFlowRequest starts a plan change flow. Subscription is used as given;
// SubscriptionID is resolved through the provider when no subscription is
// sent. A request with neither starts a flow without an active subscription.
type CreateFlowRequest struct {
	Subscription   *billing.Subscription  `json:"subscription,omitempty"`
	SubscriptionID string                 `json:"subscription_id,omitempty"`
	ManagementURLs billing.ManagementURLs `json:"management_urls"`
}

// SetTabRequest switches the billing interval tab
type SetTabRequest struct {
	Interval billing.Interval `json:"interval"`
}

// SelectPlanRequest selects a candidate plan
type SelectPlanRequest struct {
	PlanID string `json:"plan_id"`
}

// createFlow handles POST /api/v1/flows
func (s *Server) createFlow(w http.ResponseWriter, r *http.Request) {
	var req CreateFlowRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	sub := req.Subscription
	if sub == nil && req.SubscriptionID != "" {
		if s.opts.Subscriptions == nil {
			httputil.WriteBadRequest(w, "subscription is required")
			return
		}
		loaded, err := s.opts.Subscriptions(r.Context(), req.SubscriptionID)
		if err != nil {
			if provider.IsNotFound(err) {
				httputil.WriteNotFoundError(w, "subscription not found")
				return
			}
			observability.FromContext(r.Context()).WithError(err).Error("failed to load subscription")
			httputil.WriteErrorMessage(w, http.StatusBadGateway, "failed to load subscription")
			return
		}
		sub = loaded
	}

	subID := ""
	if sub != nil {
		subID = sub.ID
	}
	flow := s.newFlow(s.opts.Backend.Bind(subID), sub)
	s.flows.Add(flow, req.ManagementURLs)

	observability.FromContext(contextkeys.WithFlowID(r.Context(), flow.ID())).
		WithField("subscription_id", subID).
		Info("plan change flow created")

	httputil.WriteCreated(w, flow.Snapshot())
}

// session looks up the flow named in the path, writing a 404 when missing
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id := mux.Vars(r)["id"]
	session, ok := s.flows.Get(id)
	if !ok {
		httputil.WriteErrorCode(w, http.StatusNotFound, "flow_not_found", "flow not found")
		return nil, false
	}
	return session, true
}

// getFlow handles GET /api/v1/flows/{id}
func (s *Server) getFlow(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, session.Flow.Snapshot())
}

// closeFlow handles DELETE /api/v1/flows/{id}
func (s *Server) closeFlow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.flows.Remove(id) {
		httputil.WriteErrorCode(w, http.StatusNotFound, "flow_not_found", "flow not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// openFlow handles POST /api/v1/flows/{id}/open. A catalog failure is part
// of the returned snapshot.
func (s *Server) openFlow(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	err := session.Flow.Open(r.Context())
	if err != nil && !isFlowError(err) {
		observability.FromContext(r.Context()).WithFlow(session.Flow.ID()).WithError(err).Warn("catalog load failed")
		err = nil
	}
	s.respond(w, session, err)
}

// setTab handles POST /api/v1/flows/{id}/tab
func (s *Server) setTab(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	var req SetTabRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	s.respond(w, session, session.Flow.SetTab(req.Interval))
}

// selectPlan handles POST /api/v1/flows/{id}/select
func (s *Server) selectPlan(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	var req SelectPlanRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.PlanID == "" {
		httputil.WriteBadRequest(w, "plan_id is required")
		return
	}
	s.respond(w, session, session.Flow.Select(req.PlanID))
}

// requestConfirm handles POST /api/v1/flows/{id}/confirm-request
func (s *Server) requestConfirm(w http.ResponseWriter, r *http.Request) {
	s.action(w, r, (*planchange.Flow).RequestConfirm)
}

// back handles POST /api/v1/flows/{id}/back
func (s *Server) back(w http.ResponseWriter, r *http.Request) {
	s.action(w, r, (*planchange.Flow).Back)
}

// dashboard handles POST /api/v1/flows/{id}/dashboard
func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	s.action(w, r, (*planchange.Flow).Dashboard)
}

// cancelCommit handles POST /api/v1/flows/{id}/cancel
func (s *Server) cancelCommit(w http.ResponseWriter, r *http.Request) {
	s.action(w, r, (*planchange.Flow).Cancel)
}

// confirm handles POST /api/v1/flows/{id}/confirm. The commit runs in the
// background; progress is reported on the flow's event stream.
func (s *Server) confirm(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := session.Flow.Confirm(); err != nil {
		writeFlowError(w, err)
		return
	}
	httputil.WriteAccepted(w, session.Flow.Snapshot())
}

func (s *Server) action(w http.ResponseWriter, r *http.Request, fn func(*planchange.Flow) error) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	s.respond(w, session, fn(session.Flow))
}

func (s *Server) respond(w http.ResponseWriter, session *Session, err error) {
	if err != nil {
		writeFlowError(w, err)
		return
	}
	httputil.WriteSuccess(w, session.Flow.Snapshot())
}

type flowErrorMapping struct {
	err    error
	status int
	code   string
}

var flowErrors = []flowErrorMapping{
	{planchange.ErrPlanNotFound, http.StatusNotFound, "plan_not_found"},
	{planchange.ErrInvalidTab, http.StatusBadRequest, "invalid_tab"},
	{planchange.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{planchange.ErrCatalogNotLoaded, http.StatusConflict, "catalog_not_loaded"},
	{planchange.ErrNoSelection, http.StatusConflict, "no_selection"},
	{planchange.ErrPreviewNotReady, http.StatusConflict, "preview_not_ready"},
	{planchange.ErrNoSubscription, http.StatusConflict, "no_subscription"},
	{planchange.ErrNothingToCancel, http.StatusConflict, "nothing_to_cancel"},
	{planchange.ErrFlowClosed, http.StatusGone, "flow_closed"},
}

func isFlowError(err error) bool {
	for _, m := range flowErrors {
		if errors.Is(err, m.err) {
			return true
		}
	}
	return false
}

// writeFlowError maps workflow errors to HTTP errors with a stable code
func writeFlowError(w http.ResponseWriter, err error) {
	for _, m := range flowErrors {
		if !errors.Is(err, m.err) {
			continue
		}
		if m.status == http.StatusConflict {
			httputil.WriteConflict(w, m.code, err.Error())
		} else {
			httputil.WriteErrorCode(w, m.status, m.code, err.Error())
		}
		return
	}
	if errors.Is(err, context.Canceled) {
		httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, "request canceled")
		return
	}
	httputil.WriteInternalError(w, err)
}
