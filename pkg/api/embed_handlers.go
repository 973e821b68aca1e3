package api

import (
	"net/http"

	"github.com/saazpayhq/saazpay/pkg/embed"
	"github.com/saazpayhq/saazpay/pkg/httputil"
	"github.com/saazpayhq/saazpay/pkg/observability"
)

// EmbedURLsResponse holds the iframe URLs for one access token
type EmbedURLsResponse struct {
	Client string `json:"client"`
	Manage string `json:"manage"`
}

// embedURLs handles GET /embed/urls?token=&dark=&align=
func (s *Server) embedURLs(w http.ResponseWriter, r *http.Request) {
	if s.opts.Embed.BaseURL == "" {
		httputil.WriteServiceUnavailable(w, "embedding is not configured")
		return
	}

	token := httputil.ParseQueryString(r, "token", "")
	if token == "" {
		httputil.WriteBadRequest(w, "token is required")
		return
	}
	dark, err := httputil.ParseQueryBool(r, "dark", false)
	if err != nil {
		httputil.WriteBadRequest(w, "dark must be a boolean")
		return
	}
	align, err := embed.ParseAlign(httputil.ParseQueryString(r, "align", ""))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}

	httputil.WriteSuccess(w, EmbedURLsResponse{
		Client: embed.ClientURL(s.opts.Embed.BaseURL, token, dark, align),
		Manage: embed.ManageURL(s.opts.Embed.BaseURL, token, dark),
	})
}

// checkoutOutcome handles GET /embed/checkout-outcome?event=&variant=. The
// pricing variant reloads after a delay; the default variant follows the
// provider configuration.
func (s *Server) checkoutOutcome(w http.ResponseWriter, r *http.Request) {
	event := httputil.ParseQueryString(r, "event", "")
	if event == "" {
		httputil.WriteBadRequest(w, "event is required")
		return
	}

	var outcome embed.Outcome
	switch variant := httputil.ParseQueryString(r, "variant", "client"); variant {
	case "client":
		outcome = s.opts.Embed.CheckoutOutcome(event)
	case "pricing":
		outcome = embed.PricingCheckoutOutcome(event)
	default:
		httputil.WriteBadRequest(w, "variant must be client or pricing")
		return
	}
	httputil.WriteSuccess(w, outcome)
}

// embedBridge handles GET /embed/bridge?dark=. Each connection carries the
// messages of one embedded frame.
func (s *Server) embedBridge(w http.ResponseWriter, r *http.Request) {
	dark, err := httputil.ParseQueryBool(r, "dark", false)
	if err != nil {
		httputil.WriteBadRequest(w, "dark must be a boolean")
		return
	}
	logger := observability.FromContext(r.Context())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithError(err).Warn("embed bridge upgrade failed")
		return
	}
	defer conn.Close()

	session := embed.NewSession(conn, embed.NewFrame(dark), logger)
	if err := session.Run(r.Context()); err != nil {
		logger.WithError(err).Debug("embed bridge closed")
	}
}
