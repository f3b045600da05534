package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"agentchat/internal/domain"
	"agentchat/internal/tokens"
)

// ChatStream handles one streamed chat turn. The returned channel carries
// content events followed by exactly one done event, or a single error
// event. It is closed when the turn ends; whatever content was delivered
// before an error or cancellation is still persisted.
func (s *ChatService) ChatStream(ctx context.Context, req domain.ChatRequest) <-chan domain.StreamEvent {
	events := make(chan domain.StreamEvent, 16)

	go func() {
		defer close(events)
		s.streamTurn(ctx, req, events)
	}()

	return events
}

func (s *ChatService) streamTurn(ctx context.Context, req domain.ChatRequest, events chan<- domain.StreamEvent) {
	t, err := s.begin(req)
	if err != nil {
		events <- domain.StreamEvent{Type: domain.StreamError, Error: err.Error()}
		return
	}

	var accumulated strings.Builder
	emit := func(fragment string) bool {
		accumulated.WriteString(fragment)
		select {
		case events <- domain.StreamEvent{Type: domain.StreamContent, Content: fragment}:
			return true
		case <-ctx.Done():
			return false
		}
	}

	var (
		toolsUsed []string
		toolCalls []domain.ToolCall
		usage     *domain.TokenUsage
		generated bool
		turnErr   error
	)

	switch t.mode {
	case domain.ModeRAG:
		result, err := s.engine.QueryStream(ctx, req.Message, t.history, func(chunk string) {
			emit(chunk)
		})
		if err != nil {
			turnErr = err
		} else {
			usage = result.Usage
			generated = result.Generated
			// The callback already delivered the answer; only fill in
			// anything the accumulator missed.
			if accumulated.Len() == 0 && result.Answer != "" {
				emit(result.Answer)
			}
		}

	default:
		result := s.dispatchAgent(ctx, req, t.history)
		toolsUsed = result.ToolsUsed
		usage = result.Usage
		generated = result.Success
		for _, name := range result.ToolsUsed {
			toolCalls = append(toolCalls, domain.ToolCall{Name: name})
		}
		if !result.Success {
			s.logger.Warn("agent stream turn failed",
				zap.String("session_id", req.SessionID),
				zap.String("error", result.Error))
		}
		// The agent produces its response in one piece; replay it as a
		// paced character stream.
		s.replay(ctx, result.Response, emit)
	}

	if err := ctx.Err(); err != nil && turnErr == nil {
		turnErr = err
	}

	usage = s.ensureUsage(usage, generated, t.history, req.Message, accumulated.String())
	cost := tokens.UsageCost(usage, s.provider.Model(), s.provider.Name())

	msg := &domain.Message{Content: accumulated.String(), ToolCalls: toolCalls, CostUSD: cost}
	if usage != nil {
		msg.PromptTokens = &usage.PromptTokens
		msg.CompletionTokens = &usage.CompletionTokens
		msg.TotalTokens = &usage.TotalTokens
	}
	s.finish(t, req, msg)

	if turnErr != nil {
		select {
		case events <- domain.StreamEvent{Type: domain.StreamError, Error: turnErr.Error()}:
		case <-ctx.Done():
		}
		return
	}

	select {
	case events <- domain.StreamEvent{Type: domain.StreamDone, ToolsUsed: toolsUsed}:
	case <-ctx.Done():
	}
}

// replay delivers text as per-character fragments with a fixed delay, so
// non-streaming results still read as a live stream.
func (s *ChatService) replay(ctx context.Context, text string, emit func(string) bool) {
	ticker := time.NewTicker(s.chunkDelay)
	defer ticker.Stop()

	for _, r := range text {
		if !emit(string(r)) {
			return
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
