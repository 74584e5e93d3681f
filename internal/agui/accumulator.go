package agui

import (
	"encoding/json"
	"fmt"
	"strings"

	"collabboard/internal/llm"
)

// Phase is the accumulator lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAccumulating
	PhaseFinalizing
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAccumulating:
		return "accumulating"
	case PhaseFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// ToolCall is a fully assembled tool invocation. Arguments is nil when the
// accumulated buffer failed to parse; RawArguments always holds the buffer.
type ToolCall struct {
	ID           string
	Name         string
	Arguments    map[string]interface{}
	RawArguments string
}

// Accumulator reassembles fragmented tool-call deltas into one complete
// invocation. At most one call is tracked at a time: a delta carrying a new
// function name discards any unfinalized previous call. Not safe for
// concurrent use; one accumulator belongs to one run.
type Accumulator struct {
	phase Phase
	id    string
	name  string
	args  strings.Builder
}

// NewAccumulator returns an idle accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Phase reports the current lifecycle phase.
func (a *Accumulator) Phase() Phase {
	return a.phase
}

// Active reports whether an unfinalized tool call is being assembled.
func (a *Accumulator) Active() bool {
	return a.phase == PhaseAccumulating
}

// Observe feeds one tool-call fragment. A fragment with a function name
// starts a fresh call; id and argument fragments attach to the live one.
// Argument fragments arriving while idle are dropped.
func (a *Accumulator) Observe(delta llm.ToolCallDelta) {
	if delta.Name != "" {
		a.reset()
		a.phase = PhaseAccumulating
		a.name = delta.Name
	}

	if a.phase != PhaseAccumulating {
		return
	}

	if delta.ID != "" {
		a.id = delta.ID
	}
	if delta.Arguments != "" {
		a.args.WriteString(delta.Arguments)
	}
}

// Finalize parses the accumulated buffer and returns the materialized
// call. The accumulator is idle again afterwards, whatever the outcome.
// On a parse failure the returned call still carries id, name and the raw
// buffer so callers can close the invocation on the wire.
func (a *Accumulator) Finalize() (ToolCall, error) {
	if a.phase != PhaseAccumulating {
		return ToolCall{}, ErrNoActiveToolCall
	}
	a.phase = PhaseFinalizing

	call := ToolCall{
		ID:           a.id,
		Name:         a.name,
		RawArguments: a.args.String(),
	}
	defer a.reset()

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(call.RawArguments), &parsed); err != nil {
		return call, fmt.Errorf("%w: %v", ErrMalformedArguments, err)
	}

	call.Arguments = parsed
	return call, nil
}

func (a *Accumulator) reset() {
	a.phase = PhaseIdle
	a.id = ""
	a.name = ""
	a.args.Reset()
}
