package hub

import "errors"

// Hub lifecycle and capacity errors.
var (
	ErrHubAlreadyRunning  = errors.New("hub is already running")
	ErrHubNotRunning      = errors.New("hub is not running")
	ErrMessageChannelFull = errors.New("message channel is full")
	ErrSessionNotFound    = errors.New("session not found")
)
