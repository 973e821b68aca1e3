// Package embed holds the host-side pieces of embedding saazpay: iframe URLs,
// the frame message protocol, checkout options and the host's reaction to
// checkout events.
//
// Frames post three messages:
//
//	{"type": "iframe-resize", "height": 640}
//	{"type": "is-dark-mode", "value": true}
//	{"type": "checkout_data", "payload": {"items": [...]}}
//
// Frame applies them and turns checkout_data into a checkout_open command
// whose settings.theme follows the last reported dark mode. Session runs the
// same protocol over a websocket.
package embed
