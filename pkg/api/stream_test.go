package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/saazpayhq/saazpay/pkg/planchange"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWS(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readStream(t *testing.T, conn *websocket.Conn) StreamMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestStreamFlow_DeliversSnapshotsAndCompletion(t *testing.T) {
	s := newTestServer(t, newFakeBackend(), nil)
	ts := httptest.NewServer(s)
	defer ts.Close()

	id := previewedFlow(t, s, "pri_pro_month")
	require.Equal(t, http.StatusOK, doJSON(t, s, http.MethodPost, "/api/v1/flows/"+id+"/confirm-request", nil).Code)

	conn := dialWS(t, ts, "/api/v1/flows/"+id+"/events")

	first := readStream(t, conn)
	require.Equal(t, StreamSnapshot, first.Type)
	require.NotNil(t, first.Snapshot)
	assert.Equal(t, planchange.PhaseConfirmPending, first.Snapshot.Phase)

	require.Equal(t, http.StatusAccepted, doJSON(t, s, http.MethodPost, "/api/v1/flows/"+id+"/confirm", nil).Code)

	var (
		completion *planchange.Completion
		lastPhase  planchange.Phase
		lastVer    = first.Snapshot.Version
	)
	for completion == nil {
		msg := readStream(t, conn)
		switch msg.Type {
		case StreamSnapshot:
			require.NotNil(t, msg.Snapshot)
			assert.GreaterOrEqual(t, msg.Snapshot.Version, lastVer)
			lastVer = msg.Snapshot.Version
			lastPhase = msg.Snapshot.Phase
		case StreamCompletion:
			completion = msg.Completion
		default:
			t.Fatalf("unexpected message type %q", msg.Type)
		}
	}

	assert.Equal(t, id, completion.FlowID)
	assert.Equal(t, planchange.CommitSucceeded, completion.Result.Outcome)
	assert.True(t, completion.Settled)
	assert.Equal(t, planchange.PhaseDone, lastPhase)

	// the server closes the stream after the completion
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestStreamFlow_ClosedFlow(t *testing.T) {
	s := newTestServer(t, newFakeBackend(), nil)
	ts := httptest.NewServer(s)
	defer ts.Close()

	id := createFlow(t, s)
	conn := dialWS(t, ts, "/api/v1/flows/"+id+"/events")

	first := readStream(t, conn)
	assert.Equal(t, planchange.PhaseBrowsing, first.Snapshot.Phase)

	require.True(t, s.Flows().Remove(id))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestStreamFlow_UnknownFlow(t *testing.T) {
	s := newTestServer(t, newFakeBackend(), nil)
	ts := httptest.NewServer(s)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/flows/missing/events"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOfferLatest(t *testing.T) {
	ch := make(chan planchange.Snapshot, 1)
	offerLatest(ch, planchange.Snapshot{Version: 1})
	offerLatest(ch, planchange.Snapshot{Version: 2})
	offerLatest(ch, planchange.Snapshot{Version: 3})

	assert.Equal(t, uint64(3), (<-ch).Version)
	assert.Len(t, ch, 0)
}
