// Package service implements the chat turn flow: history assembly, mode
// dispatch, usage accounting, persistence, and streaming delivery.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"

	"agentchat/internal/agent"
	"agentchat/internal/cache"
	"agentchat/internal/domain"
	"agentchat/internal/llm"
	"agentchat/internal/rag"
	"agentchat/internal/repository"
	"agentchat/internal/tokens"
)

// titleMaxLen bounds first messages used as conversation titles.
const titleMaxLen = 100

// ChatService coordinates one chat turn end to end.
type ChatService struct {
	repo         *repository.ConversationRepository
	orchestrator *agent.Orchestrator
	engine       *rag.Engine
	provider     llm.Provider
	cache        *cache.Cache

	estimator     *tokens.Estimator
	agentsEnabled bool
	chunkDelay    time.Duration
	logger        *zap.Logger
}

// NewChatService wires the chat flow.
func NewChatService(
	repo *repository.ConversationRepository,
	orchestrator *agent.Orchestrator,
	engine *rag.Engine,
	provider llm.Provider,
	responseCache *cache.Cache,
	agentsEnabled bool,
	chunkDelay time.Duration,
	logger *zap.Logger,
) *ChatService {
	if chunkDelay <= 0 {
		chunkDelay = 10 * time.Millisecond
	}
	estimator, err := tokens.NewEstimator(provider.Model())
	if err != nil {
		logger.Warn("token estimator unavailable, usage fallback disabled", zap.Error(err))
	}
	return &ChatService{
		repo:          repo,
		orchestrator:  orchestrator,
		engine:        engine,
		provider:      provider,
		cache:         responseCache,
		estimator:     estimator,
		agentsEnabled: agentsEnabled,
		chunkDelay:    chunkDelay,
		logger:        logger,
	}
}

// turn is the per-request state shared between the blocking and streaming
// paths.
type turn struct {
	conv    *domain.Conversation
	history []domain.Message
	mode    string
}

// begin loads the conversation and its prior history, then persists the
// user message. History is captured before the save so the current message
// never appears in its own context.
func (s *ChatService) begin(req domain.ChatRequest) (*turn, error) {
	mode := req.Mode
	if mode == "" {
		mode = domain.ModeAgent
	}
	if mode != domain.ModeAgent && mode != domain.ModeRAG {
		return nil, fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidRequest, mode)
	}
	if req.AgentType != "" && !domain.AgentType(req.AgentType).Valid() {
		return nil, fmt.Errorf("%w: unknown agent type %q", domain.ErrInvalidRequest, req.AgentType)
	}

	conv, err := s.repo.GetOrCreate(req.SessionID, mode)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}

	history, err := s.repo.LoadHistory(conv.ID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	if err := s.repo.AppendMessage(&domain.Message{
		ConversationID: conv.ID,
		Role:           domain.RoleUser,
		Content:        req.Message,
	}); err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}

	return &turn{conv: conv, history: history, mode: mode}, nil
}

// finish persists the assistant message, sets the title from a short first
// message, and bumps the conversation timestamp.
func (s *ChatService) finish(t *turn, req domain.ChatRequest, msg *domain.Message) {
	msg.ConversationID = t.conv.ID
	msg.Role = domain.RoleAssistant
	if err := s.repo.AppendMessage(msg); err != nil {
		s.logger.Error("save assistant message failed",
			zap.String("session_id", req.SessionID),
			zap.Error(err))
	}

	if t.conv.Title == "" && len(req.Message) < titleMaxLen {
		if err := s.repo.SetTitleIfEmpty(t.conv.ID, req.Message); err != nil {
			s.logger.Warn("set conversation title failed", zap.Error(err))
		}
	}
	if err := s.repo.Touch(t.conv.ID); err != nil {
		s.logger.Warn("touch conversation failed", zap.Error(err))
	}
}

// Chat handles one blocking chat turn.
func (s *ChatService) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	start := time.Now()

	t, err := s.begin(req)
	if err != nil {
		return nil, err
	}

	// Cached answers apply only to context-free turns; any history could
	// change the response.
	cacheKey := responseCacheKey(t.mode, req.AgentType, req.Message)
	if len(t.history) == 0 {
		var cached domain.ChatResponse
		if s.cache.Get(ctx, cacheKey, &cached) {
			s.finish(t, req, &domain.Message{Content: cached.Response})
			cached.SessionID = req.SessionID
			cached.Cached = true
			cached.LatencyMS = time.Since(start).Milliseconds()
			return &cached, nil
		}
	}

	var (
		content   string
		agentName string
		toolsUsed []string
		toolCalls []domain.ToolCall
		usage     *domain.TokenUsage
		generated bool
	)

	switch t.mode {
	case domain.ModeRAG:
		result, err := s.engine.Query(ctx, req.Message, t.history)
		if err != nil {
			return nil, fmt.Errorf("rag query: %w", err)
		}
		content = result.Answer
		agentName = "rag"
		usage = result.Usage
		generated = result.Generated

	default:
		result := s.dispatchAgent(ctx, req, t.history)
		content = result.Response
		agentName = result.Agent
		toolsUsed = result.ToolsUsed
		usage = result.Usage
		generated = result.Success
		for _, name := range result.ToolsUsed {
			toolCalls = append(toolCalls, domain.ToolCall{Name: name})
		}
		if !result.Success && result.Error != "" {
			s.logger.Warn("agent turn failed",
				zap.String("session_id", req.SessionID),
				zap.String("error", result.Error))
		}
	}

	usage = s.ensureUsage(usage, generated, t.history, req.Message, content)
	cost := tokens.UsageCost(usage, s.provider.Model(), s.provider.Name())

	msg := &domain.Message{Content: content, ToolCalls: toolCalls, CostUSD: cost}
	if usage != nil {
		msg.PromptTokens = &usage.PromptTokens
		msg.CompletionTokens = &usage.CompletionTokens
		msg.TotalTokens = &usage.TotalTokens
	}
	s.finish(t, req, msg)

	resp := &domain.ChatResponse{
		Response:  content,
		SessionID: req.SessionID,
		Mode:      t.mode,
		Agent:     agentName,
		ToolsUsed: toolsUsed,
		CostUSD:   cost,
		LatencyMS: time.Since(start).Milliseconds(),
	}
	if usage != nil {
		total := usage.TotalTokens
		resp.TokensUsed = &total
	}

	if len(t.history) == 0 {
		s.cache.Set(ctx, cacheKey, resp)
	}

	return resp, nil
}

// dispatchAgent routes through the orchestrator when agents are enabled,
// falling back to the bare provider otherwise.
func (s *ChatService) dispatchAgent(ctx context.Context, req domain.ChatRequest, history []domain.Message) domain.RouteResult {
	if s.agentsEnabled && s.orchestrator != nil {
		return s.orchestrator.Route(ctx, req.Message, domain.AgentType(req.AgentType), history)
	}

	messages := make([]domain.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, domain.Message{Role: domain.RoleUser, Content: req.Message})

	resp, err := s.provider.Generate(ctx, messages, llm.GenerateOptions{})
	if err != nil {
		return domain.RouteResult{
			Response:  fmt.Sprintf("Agent error: %v", err),
			ToolsUsed: []string{},
			Success:   false,
			Error:     err.Error(),
		}
	}
	return domain.RouteResult{
		Response:  resp.Content,
		Agent:     s.provider.Name(),
		ToolsUsed: []string{},
		Usage:     resp.Usage,
		Success:   true,
	}
}

// ensureUsage falls back to a local token estimate when a model call ran
// but reported nothing. Turns answered by canned notices made no model
// call, so their ledger entry stays empty rather than fabricated.
func (s *ChatService) ensureUsage(usage *domain.TokenUsage, generated bool, history []domain.Message, question, answer string) *domain.TokenUsage {
	if usage != nil {
		return usage
	}
	if !generated || s.estimator == nil {
		return nil
	}
	prompt := append(append([]domain.Message{}, history...), domain.Message{Role: domain.RoleUser, Content: question})
	return s.estimator.EstimateUsage(prompt, answer)
}

func responseCacheKey(mode, agentType, message string) string {
	sum := sha256.Sum256([]byte(mode + "|" + agentType + "|" + message))
	return "chat:" + hex.EncodeToString(sum[:])
}
