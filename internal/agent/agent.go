// Package agent implements specialized tool-using agents and the keyword
// router that dispatches queries between them.
package agent

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"agentchat/internal/domain"
	"agentchat/internal/llm"
	"agentchat/internal/mcptools"
	"agentchat/internal/tokens"
)

const defaultMaxIterations = 10

// Agent is one specialized assistant: a system prompt, a model provider,
// and access to the shared tool registry.
type Agent struct {
	Type        domain.AgentType
	Name        string
	Description string

	systemPrompt  string
	provider      llm.Provider
	registry      *mcptools.Registry
	maxIterations int
	logger        *zap.Logger
}

// New creates an agent. An empty systemPrompt selects the default prompt
// for the type; maxIterations <= 0 selects the default tool-loop bound.
func New(agentType domain.AgentType, name, description, systemPrompt string, provider llm.Provider, registry *mcptools.Registry, maxIterations int, logger *zap.Logger) *Agent {
	if systemPrompt == "" {
		systemPrompt = defaultPrompt(agentType)
	}
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	a := &Agent{
		Type:          agentType,
		Name:          name,
		Description:   description,
		systemPrompt:  systemPrompt,
		provider:      provider,
		registry:      registry,
		maxIterations: maxIterations,
		logger:        logger,
	}
	logger.Info("agent initialized",
		zap.String("agent", name),
		zap.String("type", string(agentType)),
		zap.Int("tools", a.ToolCount()))
	return a
}

// ToolCount returns the number of tools visible to this agent.
func (a *Agent) ToolCount() int {
	if a.registry == nil {
		return 0
	}
	return len(a.registry.Tools())
}

// Invoke runs the agent on a query. The model may request tool calls; each
// round executes the requested tools and feeds the results back, bounded
// by maxIterations. Failures are soft: the result carries Success=false
// and an error description instead of an error return.
func (a *Agent) Invoke(ctx context.Context, query string, history []domain.Message) domain.RouteResult {
	messages := make([]domain.Message, 0, len(history)+2)
	messages = append(messages, domain.Message{Role: domain.RoleSystem, Content: a.systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, domain.Message{Role: domain.RoleUser, Content: query})

	var opts llm.GenerateOptions
	if a.registry != nil {
		opts.Tools = a.registry.Tools()
	}

	toolsUsed := make(map[string]struct{})
	var lastResp *llm.Response
	var turnMeta []map[string]any

	for i := 0; i < a.maxIterations; i++ {
		resp, err := a.provider.Generate(ctx, messages, opts)
		if err != nil {
			a.logger.Error("agent execution error",
				zap.String("agent", a.Name),
				zap.Error(err))
			return domain.RouteResult{
				Response:  fmt.Sprintf("Agent error: %v", err),
				Agent:     a.Name,
				AgentType: a.Type,
				ToolsUsed: []string{},
				Success:   false,
				Error:     err.Error(),
			}
		}
		lastResp = resp
		if resp.Metadata != nil {
			turnMeta = append(turnMeta, resp.Metadata)
		}

		if len(resp.ToolCalls) == 0 {
			break
		}

		if resp.Content != "" {
			messages = append(messages, domain.Message{Role: domain.RoleAssistant, Content: resp.Content})
		}
		for _, call := range resp.ToolCalls {
			toolsUsed[call.Name] = struct{}{}
			output, err := a.registry.CallTool(ctx, call.Name, call.Arguments)
			if err != nil {
				output = fmt.Sprintf("Tool error: %v", err)
			}
			messages = append(messages, domain.Message{
				Role:    domain.RoleTool,
				Content: fmt.Sprintf("Result of %s: %s", call.Name, output),
			})
		}
	}

	if lastResp == nil {
		return domain.RouteResult{
			Response:  "Agent error: no response generated",
			Agent:     a.Name,
			AgentType: a.Type,
			ToolsUsed: []string{},
			Success:   false,
			Error:     "no response generated",
		}
	}

	return domain.RouteResult{
		Response:  lastResp.Content,
		Agent:     a.Name,
		AgentType: a.Type,
		ToolsUsed: sortedKeys(toolsUsed),
		Usage:     a.extractUsage(lastResp, turnMeta),
		Success:   true,
	}
}

// extractUsage resolves token usage for the turn: the final response's
// normalized usage first, then metadata extraction from the final response, then
// a reverse scan of earlier rounds.
func (a *Agent) extractUsage(final *llm.Response, turnMeta []map[string]any) *domain.TokenUsage {
	if final.Usage != nil {
		return final.Usage
	}
	if usage := tokens.ExtractUsage(final.Metadata); usage != nil {
		return usage
	}
	for i := len(turnMeta) - 1; i >= 0; i-- {
		if usage := tokens.ExtractUsage(turnMeta[i]); usage != nil {
			return usage
		}
	}
	return nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
