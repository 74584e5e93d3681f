package interfaces

import "errors"

// Store-level errors shared across implementations.
var (
	ErrStoreClosed = errors.New("interaction store is closed")
)
