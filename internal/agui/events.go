// Package agui turns LLM completion streams into the typed AG-UI event
// protocol delivered over SSE.
package agui

// EventType identifies an outbound protocol event.
type EventType string

const (
	EventRunStarted         EventType = "RUN_STARTED"
	EventRunFinished        EventType = "RUN_FINISHED"
	EventRunError           EventType = "RUN_ERROR"
	EventTextMessageStart   EventType = "TEXT_MESSAGE_START"
	EventTextMessageContent EventType = "TEXT_MESSAGE_CONTENT"
	EventTextMessageEnd     EventType = "TEXT_MESSAGE_END"
	EventToolCallStart      EventType = "TOOL_CALL_START"
	EventToolCallArgs       EventType = "TOOL_CALL_ARGS"
	EventToolCallEnd        EventType = "TOOL_CALL_END"
	EventStateDelta         EventType = "STATE_DELTA"
)

// Event is one frame of the outbound stream. Builders use snake_case keys;
// the encoder normalizes everything to camelCase on the wire.
type Event map[string]interface{}

// Type returns the event's type tag.
func (e Event) Type() EventType {
	t, _ := e["type"].(EventType)
	return t
}

// NewRunStarted announces a run. threadId/runId stay stable until the
// matching RUN_FINISHED or RUN_ERROR.
func NewRunStarted(threadID, runID string) Event {
	return Event{
		"type":      EventRunStarted,
		"thread_id": threadID,
		"run_id":    runID,
	}
}

// NewRunFinished closes a successful run.
func NewRunFinished(threadID, runID string) Event {
	return Event{
		"type":      EventRunFinished,
		"thread_id": threadID,
		"run_id":    runID,
	}
}

// NewRunError reports a failed run. code may be empty.
func NewRunError(message, code string) Event {
	e := Event{
		"type":    EventRunError,
		"message": message,
	}
	if code != "" {
		e["code"] = code
	}
	return e
}

// NewTextMessageStart opens the assistant message for a run.
func NewTextMessageStart(messageID, role string) Event {
	return Event{
		"type":       EventTextMessageStart,
		"message_id": messageID,
		"role":       role,
	}
}

// NewTextMessageContent carries one text fragment.
func NewTextMessageContent(messageID, delta string) Event {
	return Event{
		"type":       EventTextMessageContent,
		"message_id": messageID,
		"delta":      delta,
	}
}

// NewTextMessageEnd closes the assistant message.
func NewTextMessageEnd(messageID string) Event {
	return Event{
		"type":       EventTextMessageEnd,
		"message_id": messageID,
	}
}

// NewToolCallStart announces a completed tool invocation being replayed to
// the client.
func NewToolCallStart(toolCallID, toolCallName, parentMessageID string) Event {
	return Event{
		"type":              EventToolCallStart,
		"tool_call_id":      toolCallID,
		"tool_call_name":    toolCallName,
		"parent_message_id": parentMessageID,
	}
}

// NewToolCallArgs carries the raw accumulated argument text for audit and
// replay.
func NewToolCallArgs(toolCallID, delta string) Event {
	return Event{
		"type":         EventToolCallArgs,
		"tool_call_id": toolCallID,
		"delta":        delta,
	}
}

// NewToolCallEnd closes a tool invocation.
func NewToolCallEnd(toolCallID string) Event {
	return Event{
		"type":         EventToolCallEnd,
		"tool_call_id": toolCallID,
	}
}

// NewStateDelta appends one generated component to the client-visible
// dashboard state as a JSON-Patch add operation.
func NewStateDelta(component map[string]interface{}) Event {
	return Event{
		"type": EventStateDelta,
		"delta": []interface{}{
			map[string]interface{}{
				"op":   "add",
				"path": "/components/-",
				"value": map[string]interface{}{
					"component": component,
				},
			},
		},
	}
}
