package embed

import (
	"strconv"
	"sync"
)

// DefaultFrameHeight is the frame height before the first resize message
const DefaultFrameHeight = "20vh"

// Frame tracks the state of one embedded saazpay frame as driven by its
// messages. Safe for concurrent use.
type Frame struct {
	mu     sync.Mutex
	height string
	dark   bool
}

// NewFrame creates a frame with the host's initial dark mode
func NewFrame(dark bool) *Frame {
	return &Frame{height: DefaultFrameHeight, dark: dark}
}

// Height returns the CSS height of the frame
func (f *Frame) Height() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.height
}

// Dark reports the last known dark mode
func (f *Frame) Dark() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dark
}

// Handle applies msg. It returns a checkout to open for checkout_data
// messages with a payload, and nil otherwise.
func (f *Frame) Handle(msg Message) (*CheckoutOpen, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch msg.Type {
	case MessageResize:
		f.height = strconv.FormatFloat(msg.Height, 'f', -1, 64) + "px"
	case MessageDarkMode:
		f.dark = msg.Value
	case MessageCheckoutData:
		if !hasPayload(msg.Payload) {
			return nil, nil
		}
		options, err := checkoutOptions(msg.Payload, ThemeFor(f.dark))
		if err != nil {
			return nil, err
		}
		return &CheckoutOpen{Type: MessageCheckoutOpen, Options: options}, nil
	}
	return nil, nil
}
