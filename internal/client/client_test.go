package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabboard/pkg/types"
)

func newTestClient(callbacks Callbacks) *Client {
	return New(Config{
		URL:      "ws://unused",
		UserID:   "u-test",
		UserName: "Tester",
	}, callbacks, zerolog.Nop())
}

func TestClient_ActiveUsersUpdateReplacesListAndIdentifiesSelf(t *testing.T) {
	c := newTestClient(Callbacks{})
	c.users["stale"] = types.Session{SessionID: "stale"}

	c.applyMessage(types.Message{
		Type: types.MessageTypeActiveUsersUpdate,
		Data: map[string]interface{}{
			"sessionId": "s-self",
			"users": []interface{}{
				map[string]interface{}{"sessionId": "s-self", "userId": "u-test"},
				map[string]interface{}{"sessionId": "s-other", "userId": "u-other"},
			},
		},
	})

	assert.Equal(t, "s-self", c.SessionID())
	users := c.Users()
	assert.Len(t, users, 2)
	sessionIDs := []string{users[0].SessionID, users[1].SessionID}
	assert.NotContains(t, sessionIDs, "stale")
}

func TestClient_UserJoinedAndLeftAreIdempotent(t *testing.T) {
	c := newTestClient(Callbacks{})

	joined := types.Message{
		Type: types.MessageTypeUserJoined,
		Data: map[string]interface{}{
			"user": map[string]interface{}{"sessionId": "s1", "userId": "u1"},
		},
	}
	c.applyMessage(joined)
	c.applyMessage(joined)
	assert.Len(t, c.Users(), 1)

	left := types.Message{
		Type: types.MessageTypeUserLeft,
		Data: map[string]interface{}{"sessionId": "s1"},
	}
	c.applyMessage(left)
	c.applyMessage(left)
	assert.Empty(t, c.Users())
}

func TestClient_ActivityAndCursorPatchSingleUsers(t *testing.T) {
	c := newTestClient(Callbacks{})
	c.users["s1"] = types.Session{SessionID: "s1", CurrentActivity: types.ActivityViewing}
	c.users["s2"] = types.Session{SessionID: "s2", CurrentActivity: types.ActivityViewing}

	c.applyMessage(types.Message{
		Type: types.MessageTypeUserActivity,
		Data: map[string]interface{}{"sessionId": "s1", "activity": types.ActivityEditing},
	})
	c.applyMessage(types.Message{
		Type: types.MessageTypeCursorUpdate,
		Data: map[string]interface{}{
			"sessionId": "s2",
			"cursor":    map[string]interface{}{"x": 10.0, "y": 20.0},
		},
	})

	assert.Equal(t, types.ActivityEditing, c.users["s1"].CurrentActivity)
	assert.Nil(t, c.users["s1"].Cursor)
	require.NotNil(t, c.users["s2"].Cursor)
	assert.Equal(t, 20.0, c.users["s2"].Cursor.Y)
	assert.Equal(t, types.ActivityViewing, c.users["s2"].CurrentActivity)
}

func TestClient_StateBroadcastsReachCallbacksOnly(t *testing.T) {
	var syncs, updates, refreshes int
	c := newTestClient(Callbacks{
		OnStateSync:    func(map[string]interface{}) { syncs++ },
		OnStateUpdate:  func(map[string]interface{}) { updates++ },
		OnForceRefresh: func() { refreshes++ },
	})

	c.applyMessage(types.Message{Type: types.MessageTypeDashboardStateSync, Data: map[string]interface{}{}})
	c.applyMessage(types.Message{Type: types.MessageTypeDashboardStateUpdate, Data: map[string]interface{}{}})
	c.applyMessage(types.Message{Type: types.MessageTypeForceRefresh})

	assert.Equal(t, 1, syncs)
	assert.Equal(t, 1, updates)
	assert.Equal(t, 1, refreshes)
}

func TestClient_InteractionTimelineAppendsWithoutDeduplication(t *testing.T) {
	c := newTestClient(Callbacks{})

	entry := types.Message{
		Type: types.MessageTypeAIInteraction,
		Data: map[string]interface{}{
			"interaction": map[string]interface{}{"id": "i1", "action": "prompt_submitted"},
		},
	}
	c.applyMessage(entry)
	c.applyMessage(entry)

	interactions := c.Interactions()
	require.Len(t, interactions, 2)
	assert.Equal(t, "prompt_submitted", interactions[0].Action)
}

func TestClient_CursorSamplingGatesSends(t *testing.T) {
	c := newTestClient(Callbacks{})

	// Sampled out: dropped before any connection is needed.
	c.sample = func() float64 { return 0.99 }
	assert.NoError(t, c.SendCursor(1, 2))

	// Sampled in: reaches the wire and fails without a connection.
	c.sample = func() float64 { return 0.01 }
	assert.ErrorIs(t, c.SendCursor(1, 2), ErrNotConnected)
}

// scriptedServer upgrades connections and runs script per connection.
func scriptedServer(t *testing.T, dials *atomic.Int32, script func(conn *gorillaws.Conn, dial int32)) *httptest.Server {
	t.Helper()
	upgrader := gorillaws.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		script(conn, dials.Add(1))
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func waitForStatus(t *testing.T, c *Client, want Status) {
	t.Helper()
	require.Eventually(t, func() bool { return c.Status() == want },
		3*time.Second, 10*time.Millisecond, "status never reached %s", want)
}

func TestClient_ConnectSendsJoinAndMirrorsPresence(t *testing.T) {
	var dials atomic.Int32
	joinCh := make(chan types.Message, 1)

	server := scriptedServer(t, &dials, func(conn *gorillaws.Conn, _ int32) {
		defer conn.Close()
		_ = conn.WriteJSON(types.Message{
			Type: types.MessageTypeConnectionEstablished,
			Data: map[string]interface{}{"sessionId": "s-live"},
		})
		var join types.Message
		if err := conn.ReadJSON(&join); err != nil {
			return
		}
		joinCh <- join
		_ = conn.WriteJSON(types.Message{
			Type: types.MessageTypeActiveUsersUpdate,
			Data: map[string]interface{}{
				"sessionId": "s-live",
				"users": []interface{}{
					map[string]interface{}{"sessionId": "s-live", "userId": "u-test"},
				},
			},
		})
		time.Sleep(time.Second)
	})

	c := New(Config{URL: wsURL(server), UserID: "u-test", UserName: "Tester"}, Callbacks{}, zerolog.Nop())
	require.NoError(t, c.Connect(context.Background()))
	defer func() { _ = c.Close() }()

	join := <-joinCh
	assert.Equal(t, types.MessageTypeUserJoin, join.Type)
	assert.Equal(t, "u-test", join.Data["userId"])

	require.Eventually(t, func() bool { return len(c.Users()) == 1 },
		2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "s-live", c.SessionID())
	assert.Equal(t, StatusConnected, c.Status())
}

func TestClient_ReconnectsAfterServerDrop(t *testing.T) {
	var dials atomic.Int32
	server := scriptedServer(t, &dials, func(conn *gorillaws.Conn, dial int32) {
		defer conn.Close()
		if dial == 1 {
			return // drop immediately to trigger reconnection
		}
		var join types.Message
		_ = conn.ReadJSON(&join)
		time.Sleep(time.Second)
	})

	c := New(Config{
		URL:            wsURL(server),
		UserID:         "u-test",
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
	}, Callbacks{}, zerolog.Nop())
	require.NoError(t, c.Connect(context.Background()))
	defer func() { _ = c.Close() }()

	waitForStatus(t, c, StatusConnected)
	require.Eventually(t, func() bool { return dials.Load() >= 2 },
		3*time.Second, 10*time.Millisecond)
}

func TestClient_GivesUpAfterBoundedRetries(t *testing.T) {
	var dials atomic.Int32
	server := scriptedServer(t, &dials, func(conn *gorillaws.Conn, _ int32) {
		conn.Close()
	})
	url := wsURL(server)

	c := New(Config{
		URL:            url,
		UserID:         "u-test",
		MaxReconnects:  2,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
	}, Callbacks{}, zerolog.Nop())
	require.NoError(t, c.Connect(context.Background()))

	server.Close() // every further dial fails
	waitForStatus(t, c, StatusFailed)
}

func TestClient_KickedTearsDownWithoutReconnect(t *testing.T) {
	var dials atomic.Int32
	server := scriptedServer(t, &dials, func(conn *gorillaws.Conn, _ int32) {
		defer conn.Close()
		var join types.Message
		_ = conn.ReadJSON(&join)
		_ = conn.WriteJSON(types.Message{
			Type: types.MessageTypeKicked,
			Data: map[string]interface{}{"reason": "removed by moderator"},
		})
		time.Sleep(200 * time.Millisecond)
	})

	var kickedReason string
	c := New(Config{
		URL:            wsURL(server),
		UserID:         "u-test",
		InitialBackoff: 10 * time.Millisecond,
	}, Callbacks{
		OnKicked: func(reason string) { kickedReason = reason },
	}, zerolog.Nop())
	require.NoError(t, c.Connect(context.Background()))

	waitForStatus(t, c, StatusDisconnected)
	assert.Equal(t, "removed by moderator", kickedReason)

	// No further dial attempts happen after a kick.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), dials.Load())
}
