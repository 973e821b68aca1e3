package embed

import (
	"context"
	"errors"

	"github.com/gorilla/websocket"
	"github.com/saazpayhq/saazpay/pkg/observability"
)

// MessageError is sent back when a frame message cannot be applied
const MessageError MessageType = "error"

// Conn is the part of a websocket connection a Session uses
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
}

type errorReply struct {
	Type  MessageType `json:"type"`
	Error string      `json:"error"`
}

// Session bridges one frame's messages over a websocket: frame messages come
// in, checkout_open commands and errors go out
type Session struct {
	conn   Conn
	frame  *Frame
	logger *observability.Logger
}

// NewSession creates a session over conn for frame
func NewSession(conn Conn, frame *Frame, logger *observability.Logger) *Session {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Session{conn: conn, frame: frame, logger: logger}
}

// Frame returns the session's frame state
func (s *Session) Frame() *Frame {
	return s.frame
}

// Run processes messages until the connection closes or ctx ends. A normal
// close returns nil.
func (s *Session) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		msg, err := DecodeMessage(data)
		if err != nil {
			if werr := s.conn.WriteJSON(errorReply{Type: MessageError, Error: err.Error()}); werr != nil {
				return werr
			}
			continue
		}

		open, err := s.frame.Handle(msg)
		switch {
		case errors.Is(err, ErrInvalidPayload):
			s.logger.WithField("type", string(msg.Type)).Warn("rejected checkout payload")
			if werr := s.conn.WriteJSON(errorReply{Type: MessageError, Error: err.Error()}); werr != nil {
				return werr
			}
		case err != nil:
			return err
		case open != nil:
			if err := s.conn.WriteJSON(open); err != nil {
				return err
			}
		}
	}
}
