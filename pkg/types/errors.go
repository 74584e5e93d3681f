package types

import "errors"

// Envelope validation errors.
var (
	ErrMissingType = errors.New("message type is required")
	ErrUnknownType = errors.New("unknown message type")
)
