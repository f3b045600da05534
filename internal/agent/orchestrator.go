package agent

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"agentchat/internal/domain"
)

// routeRule maps trigger keywords to an agent type. Rules are checked in
// order; the first rule with any matching keyword wins.
type routeRule struct {
	agentType domain.AgentType
	keywords  []string
}

var routeRules = []routeRule{
	{domain.AgentResearch, []string{"search", "research", "find", "lookup", "what is"}},
	{domain.AgentCoding, []string{"code", "programming", "function", "debug", "implement"}},
	{domain.AgentDataAnalysis, []string{"data", "analyze", "statistics", "chart", "graph"}},
}

// AgentInfo describes one registered agent for listing.
type AgentInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	ToolCount   int    `json:"tool_count"`
}

// Orchestrator routes queries to specialized agents by explicit type or by
// keyword classification.
type Orchestrator struct {
	mu     sync.RWMutex
	agents map[domain.AgentType]*Agent
	logger *zap.Logger
}

// NewOrchestrator creates an empty orchestrator.
func NewOrchestrator(logger *zap.Logger) *Orchestrator {
	logger.Info("multi-agent orchestrator initialized")
	return &Orchestrator{
		agents: make(map[domain.AgentType]*Agent),
		logger: logger,
	}
}

// Register adds an agent, replacing any previous agent of the same type.
func (o *Orchestrator) Register(a *Agent) {
	o.mu.Lock()
	o.agents[a.Type] = a
	o.mu.Unlock()
	o.logger.Info("registered agent",
		zap.String("agent", a.Name),
		zap.String("type", string(a.Type)))
}

// Get returns the agent registered for a type, or nil.
func (o *Orchestrator) Get(t domain.AgentType) *Agent {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.agents[t]
}

// Route dispatches a query. An explicitly requested registered type is used
// directly and keyword classification is skipped; otherwise the query is
// classified and falls back to the general agent. No registered agent at
// all yields a soft failure.
func (o *Orchestrator) Route(ctx context.Context, query string, agentType domain.AgentType, history []domain.Message) domain.RouteResult {
	if agentType != "" && agentType.Valid() {
		if a := o.Get(agentType); a != nil {
			return a.Invoke(ctx, query, history)
		}
	}

	selected := classify(query)
	a := o.Get(selected)
	if a == nil {
		a = o.Get(domain.AgentGeneral)
	}
	if a == nil {
		return domain.RouteResult{
			Response: "No agent available",
			Success:  false,
			Error:    "No agent configured",
		}
	}

	return a.Invoke(ctx, query, history)
}

// classify selects an agent type for a query by keyword matching.
func classify(query string) domain.AgentType {
	lower := strings.ToLower(query)
	for _, rule := range routeRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lower, keyword) {
				return rule.agentType
			}
		}
	}
	return domain.AgentGeneral
}

// List describes all registered agents.
func (o *Orchestrator) List() []AgentInfo {
	o.mu.RLock()
	defer o.mu.RUnlock()

	infos := make([]AgentInfo, 0, len(o.agents))
	for _, t := range []domain.AgentType{domain.AgentResearch, domain.AgentCoding, domain.AgentDataAnalysis, domain.AgentGeneral} {
		if a, ok := o.agents[t]; ok {
			infos = append(infos, AgentInfo{
				Name:        a.Name,
				Type:        string(a.Type),
				Description: a.Description,
				ToolCount:   a.ToolCount(),
			})
		}
	}
	return infos
}
