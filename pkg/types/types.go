package types

import (
	"math/rand"
	"time"
)

// Inbound collaboration message types, one per client-initiated operation.
const (
	MessageTypeUserJoin             = "user_join"
	MessageTypeDashboardStateUpdate = "dashboard_state_update"
	MessageTypeUserActivity         = "user_activity"
	MessageTypeAIInteraction        = "ai_interaction"
	MessageTypeCursorMovement       = "cursor_movement"
	MessageTypeRequestCurrentState  = "request_current_state"
)

// Outbound collaboration message types broadcast or unicast by the server.
const (
	MessageTypeConnectionEstablished = "connection_established"
	MessageTypeActiveUsersUpdate     = "active_users_update"
	MessageTypeUserJoined            = "user_joined"
	MessageTypeUserLeft              = "user_left"
	MessageTypeDashboardStateSync    = "dashboard_state_sync"
	MessageTypeCursorUpdate          = "cursor_update"
	MessageTypeForceRefresh          = "force_refresh"
	MessageTypeKicked                = "kicked"
	MessageTypeError                 = "error"
)

// Activity tags a session can report about its user.
const (
	ActivityEditing = "editing"
	ActivityViewing = "viewing"
	ActivityAIChat  = "ai_chat"
	ActivityIdle    = "idle"
)

// Message is the single wire envelope for the WebSocket protocol.
// Data as map[string]interface{} keeps payloads flexible while staying
// JSON-compatible for transport.
type Message struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data,omitempty"`
}

// CursorPosition is a transient pointer location within the dashboard.
type CursorPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Session is the server-side bookkeeping record for one live WebSocket
// connection. SessionID is server-generated and never reused; UserID is
// client-asserted and not authenticated.
type Session struct {
	SessionID       string          `json:"sessionId"`
	UserID          string          `json:"userId"`
	UserName        string          `json:"userName"`
	UserColor       string          `json:"userColor"`
	CurrentActivity string          `json:"currentActivity"`
	Cursor          *CursorPosition `json:"cursor,omitempty"`
	JoinedAt        time.Time       `json:"joinedAt"`
	LastActivity    time.Time       `json:"lastActivity"`
}

// AIInteraction is one entry in the shared AI timeline. Append-only, no
// deduplication.
type AIInteraction struct {
	ID        string                 `json:"id"`
	SessionID string                 `json:"sessionId"`
	UserID    string                 `json:"userId"`
	UserName  string                 `json:"userName"`
	Action    string                 `json:"action"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Snapshot is the single shared representation of the current dashboard
// configuration. Merges are shallow and last-writer-wins.
type Snapshot struct {
	State         map[string]interface{} `json:"state"`
	LastUpdatedBy string                 `json:"lastUpdatedBy"`
	LastUpdatedAt time.Time              `json:"lastUpdatedAt"`
}

// NewSnapshot returns an empty snapshot ready for merging.
func NewSnapshot() *Snapshot {
	return &Snapshot{State: make(map[string]interface{})}
}

// Merge applies a shallow spread of partial onto the snapshot state and
// stamps the update metadata. Overlapping keys are overwritten wholesale.
func (s *Snapshot) Merge(partial map[string]interface{}, updatedBy string, at time.Time) {
	if s.State == nil {
		s.State = make(map[string]interface{})
	}
	for k, v := range partial {
		s.State[k] = v
	}
	s.LastUpdatedBy = updatedBy
	s.LastUpdatedAt = at
}

// IsEmpty reports whether the snapshot has never been written.
func (s *Snapshot) IsEmpty() bool {
	return len(s.State) == 0 && s.LastUpdatedBy == ""
}

// Payload returns the snapshot as a broadcastable message payload. The
// state map is copied so callers cannot mutate registry-owned state.
func (s *Snapshot) Payload() map[string]interface{} {
	state := make(map[string]interface{}, len(s.State))
	for k, v := range s.State {
		state[k] = v
	}
	return map[string]interface{}{
		"state":         state,
		"lastUpdatedBy": s.LastUpdatedBy,
		"lastUpdatedAt": s.LastUpdatedAt,
	}
}

// UserColorPalette is the fixed palette sessions are colored from at join
// time.
var UserColorPalette = []string{
	"#f44336", "#e91e63", "#9c27b0", "#3f51b5",
	"#2196f3", "#00bcd4", "#009688", "#4caf50",
	"#ff9800", "#795548",
}

// RandomUserColor picks a display color for a joining session.
func RandomUserColor() string {
	return UserColorPalette[rand.Intn(len(UserColorPalette))]
}
