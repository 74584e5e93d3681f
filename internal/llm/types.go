// Package llm provides a streaming client for OpenAI-compatible chat
// completion APIs, reduced to the deltas the event bridge consumes.
package llm

import "context"

// ChatMessage is one entry in a completion request conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// FunctionDefinition is the JSON-schema description of one callable tool.
type FunctionDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// ToolDefinition wraps a function definition in the wire envelope the
// completion API expects.
type ToolDefinition struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// ChatRequest describes one streaming completion run.
type ChatRequest struct {
	Model       string           `json:"model,omitempty"`
	Messages    []ChatMessage    `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	Temperature float64          `json:"temperature,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
}

// ToolCallDelta is one fragment of a streamed tool call. Name arrives on
// the first fragment; Arguments accumulate across fragments and are only
// parseable once the stream finishes.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// StreamChunk is one decoded increment of a completion stream.
type StreamChunk struct {
	ContentDelta string
	Role         string
	ToolCalls    []ToolCallDelta
	FinishReason string
}

// ChunkHandler consumes one stream chunk. Returning an error aborts the
// stream.
type ChunkHandler func(chunk StreamChunk) error

// Streamer streams chat completions chunk by chunk.
type Streamer interface {
	StreamChat(ctx context.Context, req ChatRequest, fn ChunkHandler) error
}
