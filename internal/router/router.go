// Package router dispatches inbound collaboration messages to handlers
// that mutate the session registry and fan out broadcasts.
package router

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"collabboard/internal/metrics"
	"collabboard/internal/websocket"
	"collabboard/pkg/interfaces"
	"collabboard/pkg/types"
)

// serverAuthor marks snapshot updates originated by the control plane
// rather than a connected user.
const serverAuthor = "server"

// Router routes one inbound message at a time. It is driven exclusively by
// the hub goroutine, which makes the single-writer invariant on registry
// state structural.
type Router struct {
	registry *websocket.Registry
	store    interfaces.InteractionStore
	limiter  *RateLimiter
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

// NewRouter creates a message router. store may be nil, in which case the
// audit trail is skipped.
func NewRouter(registry *websocket.Registry, store interfaces.InteractionStore, logger zerolog.Logger, m *metrics.Metrics) *Router {
	return &Router{
		registry: registry,
		store:    store,
		limiter:  NewRateLimiter(),
		logger:   logger,
		metrics:  m,
	}
}

// Dispatch parses raw and routes it by type. Malformed JSON and unknown
// types are reported back to the sender only; the connection stays open.
func (r *Router) Dispatch(ctx context.Context, conn interfaces.ClientConnection, raw []byte) {
	var msg types.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		r.sendError(conn, "invalid JSON")
		return
	}

	if err := msg.Validate(); err != nil {
		r.sendError(conn, err.Error())
		return
	}

	r.metrics.MessagesRouted.WithLabelValues(msg.Type).Inc()

	switch msg.Type {
	case types.MessageTypeUserJoin:
		r.handleUserJoin(conn, msg.Data)
	case types.MessageTypeDashboardStateUpdate:
		r.handleStateUpdate(ctx, conn, msg.Data)
	case types.MessageTypeUserActivity:
		r.handleUserActivity(conn, msg.Data)
	case types.MessageTypeCursorMovement:
		r.handleCursorMovement(conn, msg.Data)
	case types.MessageTypeAIInteraction:
		r.handleAIInteraction(ctx, conn, msg.Data)
	case types.MessageTypeRequestCurrentState:
		r.handleRequestCurrentState(conn)
	}
}

// HandleDisconnect removes the session owning conn and tells everyone
// else. Connections that never joined leave no trace.
func (r *Router) HandleDisconnect(conn interfaces.ClientConnection) {
	info, removed := r.registry.RemoveSession(conn)
	if !removed {
		return
	}

	result := r.registry.Broadcast(types.Message{
		Type: types.MessageTypeUserLeft,
		Data: map[string]interface{}{
			"sessionId": info.SessionID,
			"userId":    info.UserID,
			"userName":  info.UserName,
		},
	}, info.SessionID)
	r.observeBroadcast(types.MessageTypeUserLeft, result)

	r.logger.Info().
		Str("session_id", info.SessionID).
		Str("user_id", info.UserID).
		Msg("user left")
}

func (r *Router) handleUserJoin(conn interfaces.ClientConnection, data map[string]interface{}) {
	userID := stringField(data, "userId")
	if userID == "" {
		userID = uuid.New().String()
	}
	userName := stringField(data, "userName")
	if userName == "" {
		userName = "Anonymous"
	}

	now := time.Now()
	info := types.Session{
		UserID:          userID,
		UserName:        userName,
		UserColor:       types.RandomUserColor(),
		CurrentActivity: types.ActivityViewing,
		JoinedAt:        now,
		LastActivity:    now,
	}

	if err := r.registry.AddSession(conn, info); err != nil {
		r.sendError(conn, err.Error())
		return
	}
	info.SessionID = conn.SessionID()

	// The join reply goes out before anything this user could trigger.
	// Other users' user_joined broadcasts are independent, unordered sends.
	_ = conn.WriteJSON(types.Message{
		Type: types.MessageTypeActiveUsersUpdate,
		Data: map[string]interface{}{
			"sessionId": info.SessionID,
			"users":     r.registry.ListUsers(),
		},
	})

	if payload, hasState := r.registry.SnapshotPayload(); hasState {
		_ = conn.WriteJSON(types.Message{
			Type: types.MessageTypeDashboardStateSync,
			Data: payload,
		})
	}

	result := r.registry.Broadcast(types.Message{
		Type: types.MessageTypeUserJoined,
		Data: map[string]interface{}{"user": info},
	}, info.SessionID)
	r.observeBroadcast(types.MessageTypeUserJoined, result)

	r.logger.Info().
		Str("session_id", info.SessionID).
		Str("user_id", userID).
		Str("user_name", userName).
		Msg("user joined")
}

func (r *Router) handleStateUpdate(ctx context.Context, conn interfaces.ClientConnection, data map[string]interface{}) {
	info, exists := r.registry.GetSession(conn.SessionID())
	if !exists {
		return
	}

	now := time.Now()
	r.registry.MergeSnapshot(data, info.UserID, now)
	r.registry.Touch(info.SessionID, "", now)

	result := r.registry.Broadcast(types.Message{
		Type: types.MessageTypeDashboardStateUpdate,
		Data: map[string]interface{}{
			"state":         data,
			"lastUpdatedBy": info.UserID,
			"lastUpdatedAt": now,
		},
	}, info.SessionID)
	r.observeBroadcast(types.MessageTypeDashboardStateUpdate, result)

	if r.store != nil {
		if err := r.store.StoreStateUpdate(ctx, info.SessionID, info.UserID, data); err != nil {
			r.logger.Warn().Err(err).Msg("failed to audit state update")
		}
	}
}

func (r *Router) handleUserActivity(conn interfaces.ClientConnection, data map[string]interface{}) {
	activity := stringField(data, "activity")
	if !types.IsValidActivity(activity) {
		r.sendError(conn, "unknown activity")
		return
	}

	info, exists := r.registry.GetSession(conn.SessionID())
	if !exists {
		return
	}

	r.registry.Touch(info.SessionID, activity, time.Now())

	result := r.registry.Broadcast(types.Message{
		Type: types.MessageTypeUserActivity,
		Data: map[string]interface{}{
			"sessionId": info.SessionID,
			"userId":    info.UserID,
			"activity":  activity,
		},
	}, info.SessionID)
	r.observeBroadcast(types.MessageTypeUserActivity, result)
}

func (r *Router) handleCursorMovement(conn interfaces.ClientConnection, data map[string]interface{}) {
	info, exists := r.registry.GetSession(conn.SessionID())
	if !exists {
		return
	}

	// Flood guard on top of client-side sampling.
	if !r.limiter.Allow(info.SessionID) {
		return
	}

	cursor := types.CursorPosition{
		X: floatField(data, "x"),
		Y: floatField(data, "y"),
	}
	r.registry.SetCursor(info.SessionID, cursor, time.Now())

	result := r.registry.Broadcast(types.Message{
		Type: types.MessageTypeCursorUpdate,
		Data: map[string]interface{}{
			"sessionId": info.SessionID,
			"userId":    info.UserID,
			"cursor":    cursor,
		},
	}, info.SessionID)
	r.observeBroadcast(types.MessageTypeCursorUpdate, result)
}

func (r *Router) handleAIInteraction(ctx context.Context, conn interfaces.ClientConnection, data map[string]interface{}) {
	info, exists := r.registry.GetSession(conn.SessionID())
	if !exists {
		return
	}

	now := time.Now()
	r.registry.Touch(info.SessionID, types.ActivityAIChat, now)

	interaction := types.AIInteraction{
		ID:        uuid.New().String(),
		SessionID: info.SessionID,
		UserID:    info.UserID,
		UserName:  info.UserName,
		Action:    stringField(data, "action"),
		Timestamp: now,
	}
	if detail, ok := data["detail"].(map[string]interface{}); ok {
		interaction.Detail = detail
	}

	if r.store != nil {
		if err := r.store.StoreInteraction(ctx, &interaction); err != nil {
			r.logger.Warn().Err(err).Msg("failed to audit AI interaction")
		}
	}

	// Everyone, sender included, sees the same shared timeline entry.
	result := r.registry.Broadcast(types.Message{
		Type: types.MessageTypeAIInteraction,
		Data: map[string]interface{}{"interaction": interaction},
	}, "")
	r.observeBroadcast(types.MessageTypeAIInteraction, result)
}

func (r *Router) handleRequestCurrentState(conn interfaces.ClientConnection) {
	// Works for sessions that never joined; absent snapshot is a no-op.
	payload, hasState := r.registry.SnapshotPayload()
	if !hasState {
		return
	}
	_ = conn.WriteJSON(types.Message{
		Type: types.MessageTypeDashboardStateSync,
		Data: payload,
	})
}

// ApplyServerState merges a control-plane authored partial update into the
// shared snapshot and broadcasts it to every session.
func (r *Router) ApplyServerState(ctx context.Context, state map[string]interface{}) {
	now := time.Now()
	r.registry.MergeSnapshot(state, serverAuthor, now)

	result := r.registry.Broadcast(types.Message{
		Type: types.MessageTypeDashboardStateUpdate,
		Data: map[string]interface{}{
			"state":         state,
			"lastUpdatedBy": serverAuthor,
			"lastUpdatedAt": now,
		},
	}, "")
	r.observeBroadcast(types.MessageTypeDashboardStateUpdate, result)

	if r.store != nil {
		if err := r.store.StoreStateUpdate(ctx, serverAuthor, serverAuthor, state); err != nil {
			r.logger.Warn().Err(err).Msg("failed to audit server state update")
		}
	}
}

// ForceSync pushes the full snapshot to every session, or tells clients to
// refresh when reload is set.
func (r *Router) ForceSync(reload bool) {
	if reload {
		result := r.registry.Broadcast(types.Message{
			Type: types.MessageTypeForceRefresh,
			Data: map[string]interface{}{},
		}, "")
		r.observeBroadcast(types.MessageTypeForceRefresh, result)
		return
	}

	payload, _ := r.registry.SnapshotPayload()
	result := r.registry.Broadcast(types.Message{
		Type: types.MessageTypeDashboardStateSync,
		Data: payload,
	}, "")
	r.observeBroadcast(types.MessageTypeDashboardStateSync, result)
}

func (r *Router) sendError(conn interfaces.ClientConnection, message string) {
	if err := conn.WriteJSON(types.Message{
		Type: types.MessageTypeError,
		Data: map[string]interface{}{"message": message},
	}); err != nil {
		r.logger.Warn().Err(err).Str("session_id", conn.SessionID()).Msg("failed to send error reply")
	}
}

func (r *Router) observeBroadcast(messageType string, result websocket.BroadcastResult) {
	if len(result.Failed) == 0 {
		return
	}
	r.metrics.BroadcastFailures.Add(float64(len(result.Failed)))
	r.logger.Warn().
		Str("type", messageType).
		Strs("failed_sessions", result.Failed).
		Int("delivered", result.Delivered).
		Msg("broadcast delivery partially failed")
}

func stringField(data map[string]interface{}, key string) string {
	if data == nil {
		return ""
	}
	s, _ := data[key].(string)
	return s
}

func floatField(data map[string]interface{}, key string) float64 {
	if data == nil {
		return 0
	}
	f, _ := data[key].(float64)
	return f
}
