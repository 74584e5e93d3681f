package client

import "errors"

// Client lifecycle errors.
var (
	ErrNotConnected = errors.New("client is not connected")
	ErrClientClosed = errors.New("client is closed")
)
