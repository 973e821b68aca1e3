// Package api provides the HTTP server that drives saazpay plan change flows.
//
// # Overview
//
// Each plan change flow lives in memory on the server. Clients create a flow
// for a subscription, drive it through its actions over REST and follow its
// snapshots over a websocket. The server also serves the pricing and
// subscription management pages, the embedded checkout bridge, provider
// webhooks and the plan change journal.
//
// # Architecture
//
// The API is built on gorilla/mux. Routes are grouped by concern:
//
//   - Catalog: the provider's plans, optionally filtered by interval
//   - Flows: create, drive and close plan change flows
//   - Events: websocket stream of flow snapshots and the completion
//   - Embedding: iframe URLs, checkout outcomes and the frame bridge
//   - Pages: server-rendered pricing and subscription management pages
//   - Webhooks: signed provider events that update the journal and catalog
//   - Journal: search, export and statistics over recorded events
//
// Flows are kept in a FlowStore, an expiring LRU. Flows idle for longer than
// the TTL, evicted for space, or finished for longer than FinishedFlowGrace
// are closed.
//
// # API Endpoints
//
// Catalog and flows:
//
//	GET    /api/v1/plans?interval=                  - List plans
//	POST   /api/v1/flows                            - Create a flow
//	GET    /api/v1/flows/{id}                       - Get the flow snapshot
//	DELETE /api/v1/flows/{id}                       - Close the flow
//	POST   /api/v1/flows/{id}/open                  - Load the catalog
//	POST   /api/v1/flows/{id}/tab                   - Switch interval tab
//	POST   /api/v1/flows/{id}/select                - Select a plan and preview it
//	POST   /api/v1/flows/{id}/confirm-request       - Ask for confirmation
//	POST   /api/v1/flows/{id}/back                  - Back to plan selection
//	POST   /api/v1/flows/{id}/dashboard             - Back to the dashboard
//	POST   /api/v1/flows/{id}/confirm               - Commit the change (rate limited)
//	POST   /api/v1/flows/{id}/cancel                - Cancel the in-flight commit
//	GET    /api/v1/flows/{id}/events                - Websocket snapshot stream
//
// Embedding and pages:
//
//	GET    /embed/urls?token=&dark=&align=          - Iframe URLs
//	GET    /embed/checkout-outcome?event=&variant=  - Host reaction to a checkout event
//	GET    /embed/bridge?dark=                      - Websocket frame bridge
//	GET    /portal/manage/{id}                      - Subscription management page
//	GET    /portal/pricing                          - Pricing page
//
// Operations:
//
//	POST   /webhooks/stripe                         - Provider webhooks
//	GET    /api/v1/journal/entries                  - Search the journal
//	GET    /api/v1/journal/export                   - Export the journal
//	GET    /api/v1/journal/stats                    - Journal statistics
//	GET    /health, /health/live, /health/ready     - Health checks
//	GET    /metrics                                 - Prometheus metrics
//
// # Errors
//
// Errors are JSON objects with an "error" message and, for flow actions, a
// stable "code":
//
//	{"error": "no plan selected", "code": "no_selection"}
//
// Catalog failures while opening a flow are not errors: the snapshot reports
// them in its catalog state and the client retries with another open.
//
// # Usage Example
//
//	server := api.NewServer(api.Options{
//		Backend:    backend,
//		FlowConfig: planchange.DefaultConfig(),
//		Metrics:    metrics,
//		Logger:     logger,
//	})
//	http.ListenAndServe(":8080", server.Handler())
package api
