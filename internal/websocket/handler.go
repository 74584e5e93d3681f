package websocket

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"collabboard/internal/config"
	"collabboard/internal/metrics"
	"collabboard/pkg/interfaces"
	"collabboard/pkg/types"
)

// MessageSink receives inbound frames and disconnect notifications. The
// hub implements it; the indirection keeps this package free of hub
// internals.
type MessageSink interface {
	Enqueue(conn interfaces.ClientConnection, data []byte) error
	Disconnect(conn interfaces.ClientConnection)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Permissive by configuration: the collaboration endpoint mirrors
		// the control plane's open CORS policy.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Handler upgrades HTTP requests to collaboration sessions and runs the
// per-connection read pump.
type Handler struct {
	sink    MessageSink
	cfg     config.WebSocketConfig
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewHandler creates a WebSocket handler.
func NewHandler(sink MessageSink, cfg config.WebSocketConfig, logger zerolog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		sink:    sink,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
	}
}

// HandleWebSocket upgrades the request, assigns a session id, confirms the
// connection to the client, and starts the read pump. Session registry
// entries are created later, on user_join.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sessionID := uuid.New().String()
	c := NewConnection(conn, sessionID, h.cfg.SendBuffer, h.cfg.WriteTimeout)

	if err := c.WriteJSON(types.Message{
		Type: types.MessageTypeConnectionEstablished,
		Data: map[string]interface{}{
			"sessionId":  sessionID,
			"serverTime": time.Now().UTC(),
		},
	}); err != nil {
		h.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to confirm connection")
		_ = c.Close()
		return
	}

	h.metrics.ActiveConnections.Inc()
	h.logger.Info().Str("session_id", sessionID).Msg("connection established")

	go h.handleConnection(c)
}

// handleConnection owns the read side of one connection: heartbeat
// monitoring and frame forwarding to the sink.
func (h *Handler) handleConnection(c *Connection) {
	defer func() {
		h.sink.Disconnect(c)
		_ = c.Close()
		h.metrics.ActiveConnections.Dec()
		h.logger.Info().Str("session_id", c.SessionID()).Msg("connection closed")
	}()

	c.conn.SetReadLimit(types.MaxMessageBytes)
	if err := c.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(h.cfg.WriteTimeout)); err != nil {
					return
				}
			case <-c.ctx.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Str("session_id", c.SessionID()).Msg("read error")
			}
			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		if err := h.sink.Enqueue(c, data); err != nil {
			// Backpressure: tell the sender, keep the connection open.
			_ = c.WriteJSON(types.Message{
				Type: types.MessageTypeError,
				Data: map[string]interface{}{"message": "server busy, message dropped"},
			})
		}
	}
}
