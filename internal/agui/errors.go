package agui

import "errors"

// Accumulator errors.
var (
	ErrNoActiveToolCall   = errors.New("no active tool call")
	ErrMalformedArguments = errors.New("malformed tool call arguments")
)
