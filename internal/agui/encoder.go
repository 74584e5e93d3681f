package agui

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
)

// snakeSeq matches the only sequences the key conversion rewrites, which
// keeps the transform idempotent on already-camelCase keys.
var snakeSeq = regexp.MustCompile(`_[a-z]`)

// Encoder writes protocol events as SSE frames: one `data: <json>` frame
// per event, flushed immediately, never coalesced.
type Encoder struct {
	w       io.Writer
	flusher http.Flusher
}

// NewEncoder wraps w. When w implements http.Flusher every frame is
// flushed as it is written.
func NewEncoder(w io.Writer) *Encoder {
	enc := &Encoder{w: w}
	if f, ok := w.(http.Flusher); ok {
		enc.flusher = f
	}
	return enc
}

// PrepareSSE sets the response headers a streaming client expects. Call
// before the first Write.
func PrepareSSE(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// Write serializes one event as a frame. All object keys are normalized to
// lower camelCase before serialization.
func (e *Encoder) Write(event Event) error {
	payload, err := json.Marshal(camelizeValue(map[string]interface{}(event)))
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

// camelizeValue recursively rewrites map keys from lower_snake_case to
// lowerCamelCase. Leaf values pass through untouched.
func camelizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			out[camelizeKey(k)] = camelizeValue(inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = camelizeValue(inner)
		}
		return out
	default:
		return v
	}
}

func camelizeKey(k string) string {
	return snakeSeq.ReplaceAllStringFunc(k, func(m string) string {
		return strings.ToUpper(m[1:])
	})
}
