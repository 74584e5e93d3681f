package agui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabboard/internal/llm"
	"collabboard/internal/metrics"
)

// scriptedStreamer replays a fixed chunk sequence.
type scriptedStreamer struct {
	chunks []llm.StreamChunk
	err    error
}

func (s *scriptedStreamer) StreamChat(_ context.Context, _ llm.ChatRequest, fn llm.ChunkHandler) error {
	for _, chunk := range s.chunks {
		if err := fn(chunk); err != nil {
			return err
		}
	}
	return s.err
}

func newTestBridge(streamer llm.Streamer) *Bridge {
	return NewBridge(streamer, zerolog.Nop(), metrics.MustNew(prometheus.NewRegistry()))
}

func eventTypes(frames []map[string]interface{}) []string {
	out := make([]string, len(frames))
	for i, frame := range frames {
		out[i], _ = frame["type"].(string)
	}
	return out
}

func TestBridge_TextOnlyRun(t *testing.T) {
	bridge := newTestBridge(&scriptedStreamer{chunks: []llm.StreamChunk{
		{Role: "assistant", ContentDelta: "Here "},
		{ContentDelta: "you go."},
		{FinishReason: "stop"},
	}})

	var buf bytes.Buffer
	require.NoError(t, bridge.Run(context.Background(), NewEncoder(&buf), []llm.ChatMessage{
		{Role: "user", Content: "hello"},
	}))

	frames := decodeFrames(t, buf.String())
	assert.Equal(t, []string{
		"RUN_STARTED",
		"TEXT_MESSAGE_START",
		"TEXT_MESSAGE_CONTENT",
		"TEXT_MESSAGE_CONTENT",
		"TEXT_MESSAGE_END",
		"RUN_FINISHED",
	}, eventTypes(frames))

	// Identifiers stay stable across the run.
	assert.Equal(t, frames[0]["threadId"], frames[5]["threadId"])
	assert.Equal(t, frames[0]["runId"], frames[5]["runId"])
	assert.Equal(t, frames[1]["messageId"], frames[4]["messageId"])
}

func TestBridge_BarChartToolCallScenario(t *testing.T) {
	args := `{"type":"bar","title":"Sales","data":[{"label":"Q1","value":10}]}`
	bridge := newTestBridge(&scriptedStreamer{chunks: []llm.StreamChunk{
		{Role: "assistant"},
		{ToolCalls: []llm.ToolCallDelta{{Index: 0, ID: "call_1", Name: "generateVisualization"}}},
		{ToolCalls: []llm.ToolCallDelta{{Index: 0, Arguments: args[:20]}}},
		{ToolCalls: []llm.ToolCallDelta{{Index: 0, Arguments: args[20:]}}},
		{FinishReason: "tool_calls"},
	}})

	var buf bytes.Buffer
	require.NoError(t, bridge.Run(context.Background(), NewEncoder(&buf), []llm.ChatMessage{
		{Role: "user", Content: "show me a bar chart of sales"},
	}))

	frames := decodeFrames(t, buf.String())
	assert.Equal(t, []string{
		"RUN_STARTED",
		"TEXT_MESSAGE_START",
		"TOOL_CALL_START",
		"TOOL_CALL_ARGS",
		"STATE_DELTA",
		"TEXT_MESSAGE_CONTENT",
		"TOOL_CALL_END",
		"TEXT_MESSAGE_END",
		"RUN_FINISHED",
	}, eventTypes(frames))

	start := frames[2]
	assert.Equal(t, "call_1", start["toolCallId"])
	assert.Equal(t, "generateVisualization", start["toolCallName"])
	assert.Equal(t, frames[1]["messageId"], start["parentMessageId"])

	assert.Equal(t, args, frames[3]["delta"])

	patch := frames[4]["delta"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "add", patch["op"])
	assert.Equal(t, "/components/-", patch["path"])
	component := patch["value"].(map[string]interface{})["component"].(map[string]interface{})
	assert.Equal(t, "generateVisualization", component["type"])
	props := component["props"].(map[string]interface{})
	assert.Equal(t, "bar", props["type"])
	assert.NotEmpty(t, component["id"])
	assert.NotZero(t, component["timestamp"])

	description, _ := frames[5]["delta"].(string)
	assert.Contains(t, description, "bar chart")

	assert.Equal(t, "call_1", frames[6]["toolCallId"])
}

func TestBridge_MalformedArgumentsEmitOnlyToolCallEnd(t *testing.T) {
	bridge := newTestBridge(&scriptedStreamer{chunks: []llm.StreamChunk{
		{ToolCalls: []llm.ToolCallDelta{{ID: "call_9", Name: "generateDataTable", Arguments: `{"rows": [`}}},
		{FinishReason: "tool_calls"},
	}})

	var buf bytes.Buffer
	require.NoError(t, bridge.Run(context.Background(), NewEncoder(&buf), nil))

	types := eventTypes(decodeFrames(t, buf.String()))
	assert.Equal(t, []string{
		"RUN_STARTED",
		"TEXT_MESSAGE_START",
		"TOOL_CALL_END",
		"TEXT_MESSAGE_END",
		"RUN_FINISHED",
	}, types)
	assert.NotContains(t, types, "STATE_DELTA")
}

func TestBridge_StreamErrorEmitsSingleRunError(t *testing.T) {
	upstream := errors.New("upstream unavailable")
	bridge := newTestBridge(&scriptedStreamer{
		chunks: []llm.StreamChunk{{ContentDelta: "partial"}},
		err:    upstream,
	})

	var buf bytes.Buffer
	err := bridge.Run(context.Background(), NewEncoder(&buf), nil)
	require.ErrorIs(t, err, upstream)

	types := eventTypes(decodeFrames(t, buf.String()))
	assert.Equal(t, "RUN_ERROR", types[len(types)-1])
	assert.Equal(t, 1, strings.Count(strings.Join(types, " "), "RUN_ERROR"))
	assert.NotContains(t, types, "RUN_FINISHED")
}

func TestBridge_SequentialToolCallsReuseAccumulator(t *testing.T) {
	bridge := newTestBridge(&scriptedStreamer{chunks: []llm.StreamChunk{
		{ToolCalls: []llm.ToolCallDelta{{ID: "c1", Name: "generateTextBlock", Arguments: `{"content":"a"}`}}},
		{FinishReason: "tool_calls"},
		{ToolCalls: []llm.ToolCallDelta{{ID: "c2", Name: "generateTextBlock", Arguments: `{"content":"b"}`}}},
		{FinishReason: "tool_calls"},
	}})

	var buf bytes.Buffer
	require.NoError(t, bridge.Run(context.Background(), NewEncoder(&buf), nil))

	frames := decodeFrames(t, buf.String())
	var deltas int
	for _, frame := range frames {
		if frame["type"] == "STATE_DELTA" {
			deltas++
		}
	}
	assert.Equal(t, 2, deltas)
}
