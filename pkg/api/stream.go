package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/saazpayhq/saazpay/pkg/observability"
	"github.com/saazpayhq/saazpay/pkg/planchange"
)

// Event stream timings
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Stream message types
const (
	StreamSnapshot   = "snapshot"
	StreamCompletion = "completion"
)

// StreamMessage is one frame of a flow event stream
type StreamMessage struct {
	Type       string                 `json:"type"`
	Snapshot   *planchange.Snapshot   `json:"snapshot,omitempty"`
	Completion *planchange.Completion `json:"completion,omitempty"`
}

// streamFlow handles GET /api/v1/flows/{id}/events. It sends the current
// snapshot, every later snapshot and the completion, then closes. Slow
// readers skip intermediate snapshots; versions tell clients what they got.
func (s *Server) streamFlow(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	flow := session.Flow
	logger := observability.FromContext(r.Context()).WithFlow(flow.ID())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithError(err).Warn("event stream upgrade failed")
		return
	}
	defer conn.Close()

	snapshots := make(chan planchange.Snapshot, 1)
	completions := make(chan planchange.Completion, 1)

	unsubscribe := flow.Subscribe(func(snap planchange.Snapshot) {
		offerLatest(snapshots, snap)
	})
	defer unsubscribe()
	unregister := flow.OnComplete(func(c planchange.Completion) {
		select {
		case completions <- c:
		default:
		}
	})
	defer unregister()

	closed := readPump(conn)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	initial := flow.Snapshot()
	if err := writeStream(conn, StreamMessage{Type: StreamSnapshot, Snapshot: &initial}); err != nil {
		return
	}

	for {
		select {
		case snap := <-snapshots:
			if err := writeStream(conn, StreamMessage{Type: StreamSnapshot, Snapshot: &snap}); err != nil {
				logger.WithError(err).Debug("event stream write failed")
				return
			}

		case c := <-completions:
			final := flow.Snapshot()
			if err := writeStream(conn, StreamMessage{Type: StreamSnapshot, Snapshot: &final}); err != nil {
				return
			}
			if err := writeStream(conn, StreamMessage{Type: StreamCompletion, Completion: &c}); err != nil {
				return
			}
			closeStream(conn, "flow completed")
			return

		case <-flow.Done():
			// closed without completing; a completion may still be queued
			select {
			case c := <-completions:
				if err := writeStream(conn, StreamMessage{Type: StreamCompletion, Completion: &c}); err != nil {
					return
				}
				closeStream(conn, "flow completed")
			default:
				closeStream(conn, "flow closed")
			}
			return

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-closed:
			return

		case <-r.Context().Done():
			return
		}
	}
}

// offerLatest replaces whatever is buffered in ch with v
func offerLatest(ch chan planchange.Snapshot, v planchange.Snapshot) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// readPump discards client frames and handles pongs. The returned channel is
// closed when the client goes away.
func readPump(conn *websocket.Conn) <-chan struct{} {
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return closed
}

func writeStream(conn *websocket.Conn, msg StreamMessage) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

func closeStream(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
