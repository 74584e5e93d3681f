// Package hub runs the coordination goroutine that owns all session and
// snapshot mutations.
package hub

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"collabboard/internal/router"
	"collabboard/internal/websocket"
	"collabboard/pkg/interfaces"
	"collabboard/pkg/types"
)

// Channel capacities. The message buffer absorbs bursts from many cursors
// moving at once; control traffic is rare.
const (
	messageBuffer    = 1000
	disconnectBuffer = 100
)

type inbound struct {
	conn interfaces.ClientConnection
	raw  []byte
}

// Hub serializes all registry mutations through a single goroutine fed by
// channels. It implements websocket.MessageSink.
type Hub struct {
	messageCh    chan inbound
	disconnectCh chan interfaces.ClientConnection
	commandCh    chan func(ctx context.Context)
	shutdownCh   chan struct{}

	registry *websocket.Registry
	router   *router.Router
	logger   zerolog.Logger

	mu      sync.RWMutex
	running bool
}

// NewHub creates a hub wired to the registry and router.
func NewHub(registry *websocket.Registry, r *router.Router, logger zerolog.Logger) *Hub {
	return &Hub{
		messageCh:    make(chan inbound, messageBuffer),
		disconnectCh: make(chan interfaces.ClientConnection, disconnectBuffer),
		commandCh:    make(chan func(ctx context.Context)),
		shutdownCh:   make(chan struct{}),
		registry:     registry,
		router:       r,
		logger:       logger,
	}
}

// Start launches the hub goroutine.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return ErrHubAlreadyRunning
	}
	h.running = true

	h.logger.Info().Msg("hub started")
	go h.run(ctx)
	return nil
}

// Stop shuts the hub goroutine down. Safe to call once.
func (h *Hub) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return ErrHubNotRunning
	}
	h.running = false

	select {
	case <-h.shutdownCh:
	default:
		close(h.shutdownCh)
	}
	return nil
}

// Enqueue hands an inbound frame to the hub goroutine. A full buffer is
// reported to the caller instead of blocking the read pump.
func (h *Hub) Enqueue(conn interfaces.ClientConnection, data []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.running {
		return ErrHubNotRunning
	}

	raw := make([]byte, len(data))
	copy(raw, data)

	select {
	case h.messageCh <- inbound{conn: conn, raw: raw}:
		return nil
	default:
		return ErrMessageChannelFull
	}
}

// Disconnect notifies the hub that conn's read pump has exited.
func (h *Hub) Disconnect(conn interfaces.ClientConnection) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.running {
		return
	}

	select {
	case h.disconnectCh <- conn:
	case <-h.shutdownCh:
	}
}

// Kick terminates a session: the target gets a kicked message, then its
// connection is closed and everyone else sees user_left. Lookup is by
// session id first, then by user id.
func (h *Hub) Kick(sessionID, userID, reason string) error {
	return h.do(func(ctx context.Context) error {
		target, exists := h.resolveSession(sessionID, userID)
		if !exists {
			return ErrSessionNotFound
		}

		conn, ok := h.registry.ConnectionOf(target.SessionID)
		if !ok {
			return ErrSessionNotFound
		}

		if reason == "" {
			reason = "removed by moderator"
		}
		_ = conn.WriteJSON(types.Message{
			Type: types.MessageTypeKicked,
			Data: map[string]interface{}{"reason": reason},
		})

		// Remove eagerly so user_left goes out now; the read pump's later
		// disconnect finds nothing to remove.
		h.router.HandleDisconnect(conn)
		_ = conn.Close()

		h.logger.Info().
			Str("session_id", target.SessionID).
			Str("user_id", target.UserID).
			Str("reason", reason).
			Msg("session kicked")
		return nil
	})
}

// BroadcastState merges a server-authored partial update into the shared
// snapshot and broadcasts it to every session.
func (h *Hub) BroadcastState(state map[string]interface{}) error {
	return h.do(func(ctx context.Context) error {
		h.router.ApplyServerState(ctx, state)
		return nil
	})
}

// ForceSync pushes the full snapshot to every session. With reload set,
// clients are told to refresh instead.
func (h *Hub) ForceSync(reload bool) error {
	return h.do(func(ctx context.Context) error {
		h.router.ForceSync(reload)
		return nil
	})
}

// do runs fn on the hub goroutine and waits for its result, keeping
// control-plane mutations inside the single-writer loop.
func (h *Hub) do(fn func(ctx context.Context) error) error {
	h.mu.RLock()
	if !h.running {
		h.mu.RUnlock()
		return ErrHubNotRunning
	}
	h.mu.RUnlock()

	errCh := make(chan error, 1)
	select {
	case h.commandCh <- func(ctx context.Context) { errCh <- fn(ctx) }:
	case <-h.shutdownCh:
		return ErrHubNotRunning
	}

	select {
	case err := <-errCh:
		return err
	case <-h.shutdownCh:
		return ErrHubNotRunning
	}
}

func (h *Hub) resolveSession(sessionID, userID string) (types.Session, bool) {
	if sessionID != "" {
		if info, exists := h.registry.GetSession(sessionID); exists {
			return info, true
		}
	}
	if userID != "" {
		for _, info := range h.registry.ListUsers() {
			if info.UserID == userID {
				return info, true
			}
		}
	}
	return types.Session{}, false
}

func (h *Hub) run(ctx context.Context) {
	defer h.logger.Info().Msg("hub stopped")

	for {
		select {
		case msg := <-h.messageCh:
			h.router.Dispatch(ctx, msg.conn, msg.raw)

		case conn := <-h.disconnectCh:
			h.router.HandleDisconnect(conn)

		case cmd := <-h.commandCh:
			cmd(ctx)

		case <-h.shutdownCh:
			return

		case <-ctx.Done():
			h.logger.Info().Msg("hub context cancelled")
			return
		}
	}
}
