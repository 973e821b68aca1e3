package embed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType is the type field of a frame message
type MessageType string

const (
	// MessageResize reports the content height of the frame
	MessageResize MessageType = "iframe-resize"
	// MessageDarkMode reports the frame's colour scheme
	MessageDarkMode MessageType = "is-dark-mode"
	// MessageCheckoutData asks the host to open the provider checkout
	MessageCheckoutData MessageType = "checkout_data"
	// MessageCheckoutOpen is sent back to the host with the final checkout options
	MessageCheckoutOpen MessageType = "checkout_open"
)

// ErrInvalidPayload is returned for checkout payloads that are not JSON objects
var ErrInvalidPayload = errors.New("checkout payload must be an object")

// Message is a frame message. Unknown types are ignored by Frame.
type Message struct {
	Type    MessageType     `json:"type"`
	Height  float64         `json:"height,omitempty"`
	Value   bool            `json:"value,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DecodeMessage parses a message
func DecodeMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("failed to decode frame message: %w", err)
	}
	return msg, nil
}

// CheckoutOpen is the checkout the host should open
type CheckoutOpen struct {
	Type    MessageType            `json:"type"`
	Options map[string]interface{} `json:"options"`
}

// hasPayload reports whether the payload carries a value the host would act
// on: absent, null, false, zero and empty strings do not
func hasPayload(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	switch string(trimmed) {
	case "", "null", "false", "0", `""`:
		return false
	}
	return true
}

// checkoutOptions merges the payload with settings.theme. Settings sent by the
// frame are replaced.
func checkoutOptions(payload json.RawMessage, theme Theme) (map[string]interface{}, error) {
	var options map[string]interface{}
	if err := json.Unmarshal(payload, &options); err != nil || options == nil {
		return nil, ErrInvalidPayload
	}
	options["settings"] = map[string]interface{}{"theme": string(theme)}
	return options, nil
}
