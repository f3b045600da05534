package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"agentchat/internal/domain"
)

const defaultOllamaURL = "http://localhost:11434"

// OllamaProvider generates completions through a local Ollama server.
type OllamaProvider struct {
	client   *api.Client
	model    string
	sampling Sampling
}

// NewOllama creates an Ollama-backed provider. baseURL defaults to the
// standard local endpoint when empty.
func NewOllama(model, baseURL string, sampling Sampling) (*OllamaProvider, error) {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url %q: %w", baseURL, err)
	}
	return &OllamaProvider{
		client:   api.NewClient(parsed, http.DefaultClient),
		model:    model,
		sampling: sampling,
	}, nil
}

func (p *OllamaProvider) Name() string  { return "ollama" }
func (p *OllamaProvider) Model() string { return p.model }

// Generate performs a single completion without incremental delivery.
func (p *OllamaProvider) Generate(ctx context.Context, messages []domain.Message, opts GenerateOptions) (*Response, error) {
	return p.GenerateStream(ctx, messages, opts, nil)
}

// GenerateStream streams a completion, invoking fn per content fragment.
func (p *OllamaProvider) GenerateStream(ctx context.Context, messages []domain.Message, opts GenerateOptions, fn StreamFunc) (*Response, error) {
	stream := true
	req := &api.ChatRequest{
		Model:    p.model,
		Messages: convertMessagesToOllama(messages),
		Stream:   &stream,
	}
	if tools := convertToolsToOllama(opts.Tools); tools != nil {
		req.Tools = tools
	}
	options := map[string]any{}
	if p.sampling.Temperature > 0 {
		options["temperature"] = p.sampling.Temperature
	}
	if p.sampling.MaxTokens > 0 {
		options["num_predict"] = p.sampling.MaxTokens
	}
	if len(options) > 0 {
		req.Options = options
	}

	var content strings.Builder
	var toolCalls []domain.ToolCall
	var promptTokens, completionTokens int

	err := p.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		if resp.Message.Content != "" {
			content.WriteString(resp.Message.Content)
			if fn != nil {
				fn(resp.Message.Content)
			}
		}
		for _, call := range resp.Message.ToolCalls {
			toolCalls = append(toolCalls, domain.ToolCall{
				Name:      call.Function.Name,
				Arguments: map[string]any(call.Function.Arguments),
			})
		}
		if resp.Done {
			promptTokens = resp.Metrics.PromptEvalCount
			completionTokens = resp.Metrics.EvalCount
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat failed: %w", err)
	}

	resp := &Response{
		Content:   content.String(),
		ToolCalls: toolCalls,
		Model:     p.model,
	}
	if promptTokens > 0 || completionTokens > 0 {
		resp.Usage = &domain.TokenUsage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		}
		resp.Metadata = map[string]any{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"total_tokens":      promptTokens + completionTokens,
		}
	}

	return resp, nil
}

func convertMessagesToOllama(messages []domain.Message) []api.Message {
	result := make([]api.Message, 0, len(messages))
	for _, msg := range messages {
		role := msg.Role
		if role != domain.RoleSystem && role != domain.RoleAssistant && role != domain.RoleTool {
			role = domain.RoleUser
		}
		result = append(result, api.Message{
			Role:    role,
			Content: msg.Content,
		})
	}
	return result
}
