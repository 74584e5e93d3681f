package llm

import "errors"

// Streaming errors.
var (
	ErrStreamAborted = errors.New("stream aborted by handler")
)
