// Package llm hides provider differences behind one generation interface.
// Each backend (OpenAI, Anthropic, Ollama, Groq) has its own auth and wire
// format; callers see role-tagged messages in and a uniform Response out.
package llm

import (
	"context"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"agentchat/internal/domain"
)

// StreamFunc receives incremental content fragments during generation.
type StreamFunc func(chunk string)

// Sampling carries the generation knobs applied to every call a provider
// makes. Zero values leave the backend defaults untouched.
type Sampling struct {
	Temperature float64
	MaxTokens   int
}

// GenerateOptions carries per-call generation parameters.
type GenerateOptions struct {
	// Tools available for the model to call during the turn.
	Tools []mcptypes.Tool
}

// Response is the normalized result of one generation.
type Response struct {
	Content   string
	ToolCalls []domain.ToolCall

	// Usage is the normalized token usage when the backend reports it
	// directly; nil otherwise.
	Usage *domain.TokenUsage

	// Metadata carries the raw provider usage shapes for the ledger's
	// extraction chain.
	Metadata map[string]any

	Model string
}

// Provider is a uniform generation capability over one model backend.
type Provider interface {
	// Name returns the provider identifier (openai, anthropic, ...).
	Name() string

	// Model returns the bound model name.
	Model() string

	// Generate performs a single non-incremental generation.
	Generate(ctx context.Context, messages []domain.Message, opts GenerateOptions) (*Response, error)

	// GenerateStream performs a generation, invoking fn for each content
	// fragment as it arrives, and returns the assembled response.
	GenerateStream(ctx context.Context, messages []domain.Message, opts GenerateOptions, fn StreamFunc) (*Response, error)
}
