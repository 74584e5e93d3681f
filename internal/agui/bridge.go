package agui

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"collabboard/internal/llm"
	"collabboard/internal/metrics"
)

// Bridge drives one completion run and emits the resulting protocol
// events.
type Bridge struct {
	streamer  llm.Streamer
	describer *Describer
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

// NewBridge creates a bridge over the given completion streamer.
func NewBridge(streamer llm.Streamer, logger zerolog.Logger, m *metrics.Metrics) *Bridge {
	return &Bridge{
		streamer:  streamer,
		describer: NewDescriber(),
		logger:    logger,
		metrics:   m,
	}
}

// Describer exposes the description table for runtime registration.
func (b *Bridge) Describer() *Describer {
	return b.describer
}

// Run executes one completion run against enc. Identifiers are generated
// once and stay stable for the run. Upstream failures surface as a single
// RUN_ERROR frame and a non-nil return; tool calls whose arguments fail to
// parse are logged, closed with TOOL_CALL_END and otherwise dropped.
func (b *Bridge) Run(ctx context.Context, enc *Encoder, messages []llm.ChatMessage) error {
	threadID := uuid.New().String()
	runID := uuid.New().String()
	messageID := uuid.New().String()

	b.metrics.RunsActive.Inc()
	defer b.metrics.RunsActive.Dec()

	logger := b.logger.With().Str("run_id", runID).Logger()
	logger.Info().Int("messages", len(messages)).Msg("run started")

	if err := b.emit(enc, NewRunStarted(threadID, runID)); err != nil {
		return err
	}
	if err := b.emit(enc, NewTextMessageStart(messageID, "assistant")); err != nil {
		return err
	}

	acc := NewAccumulator()
	req := llm.ChatRequest{
		Messages: append([]llm.ChatMessage{{Role: "system", Content: SystemPrompt}}, messages...),
		Tools:    DashboardTools(),
	}

	streamErr := b.streamer.StreamChat(ctx, req, func(chunk llm.StreamChunk) error {
		if chunk.ContentDelta != "" {
			if err := b.emit(enc, NewTextMessageContent(messageID, chunk.ContentDelta)); err != nil {
				return err
			}
		}

		for _, tc := range chunk.ToolCalls {
			acc.Observe(tc)
		}

		if chunk.FinishReason != "" && acc.Active() {
			return b.finalizeToolCall(enc, acc, messageID, logger)
		}
		return nil
	})

	if streamErr != nil {
		logger.Error().Err(streamErr).Msg("run failed")
		if err := b.emit(enc, NewRunError(streamErr.Error(), "")); err != nil {
			logger.Warn().Err(err).Msg("failed to deliver RUN_ERROR")
		}
		return streamErr
	}

	if err := b.emit(enc, NewTextMessageEnd(messageID)); err != nil {
		return err
	}
	if err := b.emit(enc, NewRunFinished(threadID, runID)); err != nil {
		return err
	}

	logger.Info().Msg("run finished")
	return nil
}

// finalizeToolCall replays one assembled invocation. Parse failures keep
// the run alive: the invocation is closed on the wire and nothing else is
// emitted for it.
func (b *Bridge) finalizeToolCall(enc *Encoder, acc *Accumulator, messageID string, logger zerolog.Logger) error {
	call, parseErr := acc.Finalize()

	toolCallID := call.ID
	if toolCallID == "" {
		toolCallID = uuid.New().String()
	}

	if parseErr != nil {
		logger.Warn().Err(parseErr).Str("tool", call.Name).Msg("dropping tool call with unparseable arguments")
		return b.emit(enc, NewToolCallEnd(toolCallID))
	}

	if err := b.emit(enc, NewToolCallStart(toolCallID, call.Name, messageID)); err != nil {
		return err
	}
	if err := b.emit(enc, NewToolCallArgs(toolCallID, call.RawArguments)); err != nil {
		return err
	}

	component := map[string]interface{}{
		"id":        uuid.New().String(),
		"type":      call.Name,
		"props":     call.Arguments,
		"timestamp": time.Now().UnixMilli(),
	}
	if err := b.emit(enc, NewStateDelta(component)); err != nil {
		return err
	}

	description := b.describer.Describe(call.Name, call.Arguments)
	if err := b.emit(enc, NewTextMessageContent(messageID, description)); err != nil {
		return err
	}

	return b.emit(enc, NewToolCallEnd(toolCallID))
}

func (b *Bridge) emit(enc *Encoder, event Event) error {
	if err := enc.Write(event); err != nil {
		return err
	}
	b.metrics.EventsEmitted.WithLabelValues(string(event.Type())).Inc()
	return nil
}
