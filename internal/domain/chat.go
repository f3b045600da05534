package domain

import "time"

// Conversation modes
const (
	ModeAgent = "agent"
	ModeRAG   = "rag"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// AgentType identifies a specialized agent.
type AgentType string

const (
	AgentResearch     AgentType = "research"
	AgentCoding       AgentType = "coding"
	AgentDataAnalysis AgentType = "data_analysis"
	AgentGeneral      AgentType = "general"
)

// Valid reports whether t is a known agent type.
func (t AgentType) Valid() bool {
	switch t {
	case AgentResearch, AgentCoding, AgentDataAnalysis, AgentGeneral:
		return true
	}
	return false
}

// Conversation represents a chat session. SessionID is globally unique;
// Title is set once from the first short user message and never overwritten.
type Conversation struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Mode      string    `json:"mode"` // agent, rag
	Title     string    `json:"title,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a single turn entry within a conversation. Immutable once
// persisted; ordered by CreatedAt within its conversation.
type Message struct {
	ID               string         `json:"id"`
	ConversationID   string         `json:"conversation_id"`
	Role             string         `json:"role"` // user, assistant, system, tool
	Content          string         `json:"content"`
	ToolCalls        []ToolCall     `json:"tool_calls,omitempty"`
	PromptTokens     *int           `json:"prompt_tokens,omitempty"`
	CompletionTokens *int           `json:"completion_tokens,omitempty"`
	TotalTokens      *int           `json:"total_tokens,omitempty"`
	CostUSD          *float64       `json:"cost_usd,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// ToolCall records one tool invocation requested by a model.
type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// TokenUsage is a normalized token count record extracted from a provider
// response. TotalTokens is computed as prompt+completion when the provider
// does not report it directly.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// RouteResult is the outcome of routing a query to an agent. Failures are
// soft: Success is false and Error carries the cause, but no panic or error
// escapes the orchestrator boundary.
type RouteResult struct {
	Response  string      `json:"response"`
	Agent     string      `json:"agent,omitempty"`
	AgentType AgentType   `json:"agent_type,omitempty"`
	ToolsUsed []string    `json:"tools_used"`
	Usage     *TokenUsage `json:"token_usage,omitempty"`
	Success   bool        `json:"success"`
	Error     string      `json:"error,omitempty"`
}

// ChatRequest is the request to send a chat message.
type ChatRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Message   string `json:"message" binding:"required"`
	Mode      string `json:"mode,omitempty"`       // agent (default), rag
	AgentType string `json:"agent_type,omitempty"` // research, coding, data_analysis, general
}

// ChatResponse is the response to a chat message.
type ChatResponse struct {
	Response   string   `json:"response"`
	SessionID  string   `json:"session_id"`
	Mode       string   `json:"mode"`
	Agent      string   `json:"agent,omitempty"`
	ToolsUsed  []string `json:"tools_used,omitempty"`
	TokensUsed *int     `json:"tokens_used,omitempty"`
	CostUSD    *float64 `json:"cost_usd,omitempty"`
	LatencyMS  int64    `json:"latency_ms"`
	Cached     bool     `json:"cached,omitempty"`
}

// Stream event types
const (
	StreamContent = "content"
	StreamDone    = "done"
	StreamError   = "error"
)

// StreamEvent is one element of a streamed chat turn. A turn is a sequence
// of content events followed by exactly one done event, or a single error
// event with no done after it.
type StreamEvent struct {
	Type      string   `json:"type"`
	Content   string   `json:"content,omitempty"`
	ToolsUsed []string `json:"tools_used,omitempty"`
	Error     string   `json:"error,omitempty"`
}
