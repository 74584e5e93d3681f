package websocket

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabboard/pkg/types"
)

// dialPair spins up an in-process WebSocket endpoint and returns the
// server-side wrapper plus the raw client connection.
func dialPair(t *testing.T) (*Connection, *websocket.Conn) {
	t.Helper()

	serverSide := make(chan *Connection, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverSide <- NewConnection(conn, "test-session", 10, time.Second)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	conn := <-serverSide
	t.Cleanup(func() { _ = conn.Close() })
	return conn, client
}

func TestConnection_WriteJSONDelivers(t *testing.T) {
	conn, client := dialPair(t)

	require.NoError(t, conn.WriteJSON(types.Message{
		Type: types.MessageTypeConnectionEstablished,
		Data: map[string]interface{}{"sessionId": "test-session"},
	}))

	var msg types.Message
	require.NoError(t, client.ReadJSON(&msg))
	assert.Equal(t, types.MessageTypeConnectionEstablished, msg.Type)
	assert.Equal(t, "test-session", msg.Data["sessionId"])
}

func TestConnection_WriteAfterClose(t *testing.T) {
	conn, _ := dialPair(t)

	require.NoError(t, conn.Close())
	// Close is idempotent.
	assert.NoError(t, conn.Close())

	err := conn.WriteJSON(types.Message{Type: types.MessageTypeUserJoined})
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestConnection_WriteAfterWriterExitReturnsClosed(t *testing.T) {
	conn, client := dialPair(t)

	// Sever the transport underneath the wrapper; the read pump (and its
	// Close call) never runs in this test, so only the writer notices.
	require.NoError(t, conn.conn.Close())
	_ = client

	// Drive one write so the writer goroutine hits the dead socket and
	// exits.
	_ = conn.WriteJSON(types.Message{Type: types.MessageTypeForceRefresh})

	// Subsequent writes must fail cleanly, not panic the caller.
	require.Eventually(t, func() bool {
		return errors.Is(
			conn.WriteJSON(types.Message{Type: types.MessageTypeForceRefresh}),
			ErrConnectionClosed,
		)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConnection_RejectsUnmarshalableValue(t *testing.T) {
	conn, _ := dialPair(t)

	err := conn.WriteJSON(make(chan int))
	assert.ErrorIs(t, err, ErrInvalidJSON)
}

func TestConnection_SessionID(t *testing.T) {
	conn, _ := dialPair(t)
	assert.Equal(t, "test-session", conn.SessionID())
}
