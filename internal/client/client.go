// Package client is the Go counterpart of the browser collaboration
// context: one logical connection with automatic reconnection, local
// presence bookkeeping and throttled cursor reporting.
package client

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"collabboard/pkg/types"
)

// Status is the connection lifecycle state. StatusFailed is terminal: the
// client gave up reconnecting.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// cursorSampleRate thins outgoing cursor traffic to roughly one in ten
// movements.
const cursorSampleRate = 0.1

// Config parameterizes one client.
type Config struct {
	URL              string
	UserID           string
	UserName         string
	MaxReconnects    uint64
	HandshakeTimeout time.Duration
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
}

// Callbacks deliver broadcasts the client does not auto-apply. All run on
// the read goroutine; keep them short.
type Callbacks struct {
	OnStateSync    func(payload map[string]interface{})
	OnStateUpdate  func(payload map[string]interface{})
	OnForceRefresh func()
	OnKicked       func(reason string)
	OnStatusChange func(status Status)
}

// Client mirrors the server-side presence state for one user.
type Client struct {
	cfg       Config
	callbacks Callbacks
	logger    zerolog.Logger
	sample    func() float64

	mu           sync.RWMutex
	conn         *websocket.Conn
	writeMu      sync.Mutex
	status       Status
	sessionID    string
	users        map[string]types.Session
	interactions []types.AIInteraction
	kicked       bool
	closed       bool
}

// New creates a client. Connect must be called to go live.
func New(cfg Config, callbacks Callbacks, logger zerolog.Logger) *Client {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = 8
	}
	return &Client{
		cfg:       cfg,
		callbacks: callbacks,
		logger:    logger,
		sample:    rand.Float64,
		users:     make(map[string]types.Session),
	}
}

// Connect dials the server, joins, and starts the read loop. Reconnection
// after a dropped connection happens automatically until the backoff gives
// up or the client is kicked or closed.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.dial(ctx); err != nil {
		c.setStatus(StatusFailed)
		return err
	}
	go c.readLoop(ctx)
	return nil
}

// Close tears the connection down permanently.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	c.setStatus(StatusDisconnected)
	return nil
}

// Status returns the current lifecycle state.
func (c *Client) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// SessionID returns the server-assigned session id, empty before the
// connection is confirmed.
func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// Users returns the locally mirrored presence list.
func (c *Client) Users() []types.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()

	users := make([]types.Session, 0, len(c.users))
	for _, u := range c.users {
		users = append(users, u)
	}
	return users
}

// Interactions returns the append-only AI timeline seen so far.
func (c *Client) Interactions() []types.AIInteraction {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]types.AIInteraction, len(c.interactions))
	copy(out, c.interactions)
	return out
}

// SendStateUpdate shares a partial dashboard state change.
func (c *Client) SendStateUpdate(partial map[string]interface{}) error {
	return c.send(types.MessageTypeDashboardStateUpdate, partial)
}

// SendActivity reports what the user is doing.
func (c *Client) SendActivity(activity string) error {
	return c.send(types.MessageTypeUserActivity, map[string]interface{}{"activity": activity})
}

// SendCursor reports a cursor movement. Most calls are dropped by
// probabilistic sampling; a nil return does not mean the position was sent.
func (c *Client) SendCursor(x, y float64) error {
	if c.sample() >= cursorSampleRate {
		return nil
	}
	return c.send(types.MessageTypeCursorMovement, map[string]interface{}{"x": x, "y": y})
}

// SendAIInteraction shares an AI timeline entry with everyone.
func (c *Client) SendAIInteraction(action string, detail map[string]interface{}) error {
	data := map[string]interface{}{"action": action}
	if detail != nil {
		data["detail"] = detail
	}
	return c.send(types.MessageTypeAIInteraction, data)
}

// RequestCurrentState asks for a fresh snapshot unicast.
func (c *Client) RequestCurrentState() error {
	return c.send(types.MessageTypeRequestCurrentState, nil)
}

func (c *Client) send(messageType string, data map[string]interface{}) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(types.Message{Type: messageType, Data: data})
}

func (c *Client) dial(ctx context.Context) error {
	c.setStatus(StatusConnecting)

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.setStatus(StatusConnected)

	return c.send(types.MessageTypeUserJoin, map[string]interface{}{
		"userId":   c.cfg.UserID,
		"userName": c.cfg.UserName,
	})
}

// readLoop consumes broadcasts until the connection drops, then clears
// local presence and reconnects unless the teardown was deliberate.
func (c *Client) readLoop(ctx context.Context) {
	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		var msg types.Message
		if err := conn.ReadJSON(&msg); err != nil {
			c.handleDisconnect(ctx, err)
			return
		}
		c.applyMessage(msg)

		c.mu.RLock()
		done := c.kicked || c.closed
		c.mu.RUnlock()
		if done {
			c.setStatus(StatusDisconnected)
			return
		}
	}
}

func (c *Client) handleDisconnect(ctx context.Context, cause error) {
	c.mu.Lock()
	c.conn = nil
	c.users = make(map[string]types.Session)
	c.sessionID = ""
	stop := c.kicked || c.closed
	c.mu.Unlock()

	c.setStatus(StatusDisconnected)
	if stop {
		return
	}

	c.logger.Warn().Err(cause).Msg("connection lost, reconnecting")

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.InitialBackoff
	policy.MaxInterval = c.cfg.MaxBackoff
	policy.MaxElapsedTime = 0

	err := backoff.Retry(func() error {
		c.mu.RLock()
		stop := c.kicked || c.closed
		c.mu.RUnlock()
		if stop {
			return backoff.Permanent(ErrClientClosed)
		}
		return c.dial(ctx)
	}, backoff.WithContext(backoff.WithMaxRetries(policy, c.cfg.MaxReconnects), ctx))

	if err != nil {
		c.logger.Error().Err(err).Msg("reconnection gave up")
		c.setStatus(StatusFailed)
		return
	}

	go c.readLoop(ctx)
}

// applyMessage folds one broadcast into local state.
func (c *Client) applyMessage(msg types.Message) {
	switch msg.Type {
	case types.MessageTypeConnectionEstablished:
		c.mu.Lock()
		c.sessionID, _ = msg.Data["sessionId"].(string)
		c.mu.Unlock()

	case types.MessageTypeActiveUsersUpdate:
		users := decodeUsers(msg.Data["users"])
		c.mu.Lock()
		if own, ok := msg.Data["sessionId"].(string); ok && own != "" {
			c.sessionID = own
		}
		c.users = make(map[string]types.Session, len(users))
		for _, u := range users {
			c.users[u.SessionID] = u
		}
		c.mu.Unlock()

	case types.MessageTypeUserJoined:
		if u, ok := decodeUser(msg.Data["user"]); ok {
			c.mu.Lock()
			c.users[u.SessionID] = u
			c.mu.Unlock()
		}

	case types.MessageTypeUserLeft:
		if sessionID, ok := msg.Data["sessionId"].(string); ok {
			c.mu.Lock()
			delete(c.users, sessionID)
			c.mu.Unlock()
		}

	case types.MessageTypeUserActivity:
		sessionID, _ := msg.Data["sessionId"].(string)
		activity, _ := msg.Data["activity"].(string)
		c.mu.Lock()
		if u, ok := c.users[sessionID]; ok {
			u.CurrentActivity = activity
			c.users[sessionID] = u
		}
		c.mu.Unlock()

	case types.MessageTypeCursorUpdate:
		sessionID, _ := msg.Data["sessionId"].(string)
		cursor, _ := msg.Data["cursor"].(map[string]interface{})
		c.mu.Lock()
		if u, ok := c.users[sessionID]; ok && cursor != nil {
			x, _ := cursor["x"].(float64)
			y, _ := cursor["y"].(float64)
			u.Cursor = &types.CursorPosition{X: x, Y: y}
			c.users[sessionID] = u
		}
		c.mu.Unlock()

	case types.MessageTypeDashboardStateSync:
		if c.callbacks.OnStateSync != nil {
			c.callbacks.OnStateSync(msg.Data)
		}

	case types.MessageTypeDashboardStateUpdate:
		if c.callbacks.OnStateUpdate != nil {
			c.callbacks.OnStateUpdate(msg.Data)
		}

	case types.MessageTypeAIInteraction:
		if interaction, ok := decodeInteraction(msg.Data["interaction"]); ok {
			c.mu.Lock()
			c.interactions = append(c.interactions, interaction)
			c.mu.Unlock()
		}

	case types.MessageTypeForceRefresh:
		if c.callbacks.OnForceRefresh != nil {
			c.callbacks.OnForceRefresh()
		}

	case types.MessageTypeKicked:
		reason, _ := msg.Data["reason"].(string)
		c.mu.Lock()
		c.kicked = true
		conn := c.conn
		c.mu.Unlock()
		if c.callbacks.OnKicked != nil {
			c.callbacks.OnKicked(reason)
		}
		if conn != nil {
			_ = conn.Close()
		}

	case types.MessageTypeError:
		c.logger.Warn().Interface("data", msg.Data).Msg("server reported error")
	}
}

func (c *Client) setStatus(status Status) {
	c.mu.Lock()
	changed := c.status != status
	c.status = status
	c.mu.Unlock()

	if changed && c.callbacks.OnStatusChange != nil {
		c.callbacks.OnStatusChange(status)
	}
}

func decodeUsers(v interface{}) []types.Session {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var users []types.Session
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil
	}
	return users
}

func decodeUser(v interface{}) (types.Session, bool) {
	raw, err := json.Marshal(v)
	if err != nil {
		return types.Session{}, false
	}
	var u types.Session
	if err := json.Unmarshal(raw, &u); err != nil || u.SessionID == "" {
		return types.Session{}, false
	}
	return u, true
}

func decodeInteraction(v interface{}) (types.AIInteraction, bool) {
	raw, err := json.Marshal(v)
	if err != nil {
		return types.AIInteraction{}, false
	}
	var interaction types.AIInteraction
	if err := json.Unmarshal(raw, &interaction); err != nil {
		return types.AIInteraction{}, false
	}
	return interaction, true
}
