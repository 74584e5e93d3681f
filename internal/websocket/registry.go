package websocket

import (
	"sort"
	"sync"
	"time"

	"collabboard/pkg/interfaces"
	"collabboard/pkg/types"
)

// Registry is the process-wide authority for who is connected and what the
// shared dashboard currently looks like. All mutations arrive via the hub
// goroutine; the RWMutex keeps control-plane reads safe alongside it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	snapshot *types.Snapshot
	started  time.Time
}

type entry struct {
	info types.Session
	conn interfaces.ClientConnection
}

// BroadcastResult reports fan-out delivery, including which recipients
// failed, so callers and tests can assert on partial-failure behavior.
type BroadcastResult struct {
	Delivered int
	Failed    []string
}

// NewRegistry creates an empty registry with an empty shared snapshot.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*entry),
		snapshot: types.NewSnapshot(),
		started:  time.Now(),
	}
}

// AddSession records a joined session. The session id comes from the
// connection; two sessions never share one socket.
func (r *Registry) AddSession(conn interfaces.ClientConnection, info types.Session) error {
	if conn == nil {
		return ErrNilConnection
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[conn.SessionID()]; exists {
		return ErrDuplicateJoin
	}

	info.SessionID = conn.SessionID()
	r.sessions[conn.SessionID()] = &entry{info: info, conn: conn}
	return nil
}

// RemoveSession deletes the session owning conn and returns its record.
// Idempotent; only removes when the registered connection is the same
// instance, so a stale connection cannot evict its replacement.
func (r *Registry) RemoveSession(conn interfaces.ClientConnection) (types.Session, bool) {
	if conn == nil {
		return types.Session{}, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.sessions[conn.SessionID()]
	if !exists || e.conn != conn {
		return types.Session{}, false
	}

	delete(r.sessions, conn.SessionID())
	return e.info, true
}

// GetSession returns a copy of the session record.
func (r *Registry) GetSession(sessionID string) (types.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.sessions[sessionID]
	if !exists {
		return types.Session{}, false
	}
	return e.info, true
}

// ConnectionOf returns the live transport handle for a session.
func (r *Registry) ConnectionOf(sessionID string) (interfaces.ClientConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.sessions[sessionID]
	if !exists {
		return nil, false
	}
	return e.conn, true
}

// ListUsers returns all session records ordered by join time.
func (r *Registry) ListUsers() []types.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]types.Session, 0, len(r.sessions))
	for _, e := range r.sessions {
		users = append(users, e.info)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].JoinedAt.Before(users[j].JoinedAt)
	})
	return users
}

// Touch updates lastActivity and, when non-empty, the activity tag.
func (r *Registry) Touch(sessionID, activity string, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.sessions[sessionID]
	if !exists {
		return false
	}
	e.info.LastActivity = at
	if activity != "" {
		e.info.CurrentActivity = activity
	}
	return true
}

// SetCursor updates a session's cursor position and lastActivity.
func (r *Registry) SetCursor(sessionID string, cursor types.CursorPosition, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.sessions[sessionID]
	if !exists {
		return false
	}
	e.info.Cursor = &cursor
	e.info.LastActivity = at
	return true
}

// MergeSnapshot applies a shallow last-writer-wins merge onto the shared
// snapshot.
func (r *Registry) MergeSnapshot(partial map[string]interface{}, updatedBy string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot.Merge(partial, updatedBy, at)
}

// SnapshotPayload returns the broadcastable snapshot and whether it has
// ever been written.
func (r *Registry) SnapshotPayload() (map[string]interface{}, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot.Payload(), !r.snapshot.IsEmpty()
}

// Broadcast fans msg out to every session except excludeSessionID (empty
// string excludes nobody). Per-recipient failures are collected, never
// aborting delivery to the rest.
func (r *Registry) Broadcast(msg types.Message, excludeSessionID string) BroadcastResult {
	r.mu.RLock()
	targets := make([]*entry, 0, len(r.sessions))
	for _, e := range r.sessions {
		if e.info.SessionID == excludeSessionID {
			continue
		}
		targets = append(targets, e)
	}
	r.mu.RUnlock()

	var result BroadcastResult
	for _, e := range targets {
		if err := e.conn.WriteJSON(msg); err != nil {
			result.Failed = append(result.Failed, e.info.SessionID)
			continue
		}
		result.Delivered++
	}
	return result
}

// Unicast sends msg to a single session. Missing sessions are a no-op.
func (r *Registry) Unicast(sessionID string, msg types.Message) error {
	conn, exists := r.ConnectionOf(sessionID)
	if !exists {
		return ErrMissingSession
	}
	return conn.WriteJSON(msg)
}

// Stats returns registry counters for the status endpoint.
func (r *Registry) Stats() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string]interface{}{
		"activeUsers":   len(r.sessions),
		"hasSnapshot":   !r.snapshot.IsEmpty(),
		"uptimeSeconds": int(time.Since(r.started).Seconds()),
	}
}
