package router

import (
	"sync"
	"time"
)

// cursorLimit bounds cursor messages per session per window. Client-side
// sampling already thins the stream; this guards against misbehaving
// clients.
const (
	cursorLimit  = 100
	cursorWindow = time.Minute
	staleAfter   = 5 * time.Minute
)

// RateLimiter implements per-session sliding-window rate limiting.
type RateLimiter struct {
	mu       sync.Mutex
	sessions map[string]*sessionLimit
}

type sessionLimit struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter creates a rate limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		sessions: make(map[string]*sessionLimit),
	}
}

// Allow reports whether the session may send another cursor message.
func (rl *RateLimiter) Allow(sessionID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	limit, exists := rl.sessions[sessionID]
	if !exists {
		rl.sessions[sessionID] = &sessionLimit{count: 1, windowStart: now}
		return true
	}

	if now.Sub(limit.windowStart) >= cursorWindow {
		limit.count = 1
		limit.windowStart = now
		return true
	}

	if limit.count >= cursorLimit {
		return false
	}

	limit.count++
	return true
}

// Cleanup removes sessions idle for longer than staleAfter. Call
// periodically to keep the map from growing with departed sessions.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for sessionID, limit := range rl.sessions {
		if now.Sub(limit.windowStart) > staleAfter {
			delete(rl.sessions, sessionID)
		}
	}
}
