package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"agentchat/internal/domain"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// OpenAIProvider generates completions through the OpenAI chat API. It also
// backs Groq, which exposes an OpenAI-compatible endpoint.
type OpenAIProvider struct {
	client   openai.Client
	name     string
	model    string
	sampling Sampling
}

// NewOpenAI creates an OpenAI-backed provider. baseURL overrides the default
// endpoint for compatible gateways; empty means api.openai.com.
func NewOpenAI(apiKey, model, baseURL string, sampling Sampling) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIProvider{
		client:   openai.NewClient(opts...),
		name:     "openai",
		model:    model,
		sampling: sampling,
	}
}

// NewGroq creates a Groq-backed provider over the OpenAI-compatible API.
func NewGroq(apiKey, model string, sampling Sampling) *OpenAIProvider {
	p := NewOpenAI(apiKey, model, groqBaseURL, sampling)
	p.name = "groq"
	return p
}

func (p *OpenAIProvider) Name() string  { return p.name }
func (p *OpenAIProvider) Model() string { return p.model }

// Generate performs a single completion without incremental delivery.
func (p *OpenAIProvider) Generate(ctx context.Context, messages []domain.Message, opts GenerateOptions) (*Response, error) {
	return p.GenerateStream(ctx, messages, opts, nil)
}

// GenerateStream streams a completion, invoking fn per content fragment.
func (p *OpenAIProvider) GenerateStream(ctx context.Context, messages []domain.Message, opts GenerateOptions, fn StreamFunc) (*Response, error) {
	params := openai.ChatCompletionNewParams{
		Messages: convertMessagesToOpenAI(messages),
		Model:    openai.ChatModel(p.model),
	}
	if tools := convertToolsToOpenAI(opts.Tools); tools != nil {
		params.Tools = tools
	}
	if p.sampling.Temperature > 0 {
		params.Temperature = openai.Float(p.sampling.Temperature)
	}
	if p.sampling.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.sampling.MaxTokens))
	}
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	var content strings.Builder
	var toolCalls []domain.ToolCall

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if tool, ok := acc.JustFinishedToolCall(); ok {
			toolCalls = append(toolCalls, domain.ToolCall{
				Name:      tool.Name,
				Arguments: parseToolArguments(tool.Arguments),
			})
		}

		if len(chunk.Choices) > 0 {
			delta := chunk.Choices[0].Delta.Content
			if delta != "" {
				content.WriteString(delta)
				if fn != nil {
					fn(delta)
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("%s stream failed: %w", p.name, err)
	}

	resp := &Response{
		Content:   content.String(),
		ToolCalls: toolCalls,
		Model:     p.model,
	}
	if acc.Usage.TotalTokens > 0 || acc.Usage.PromptTokens > 0 || acc.Usage.CompletionTokens > 0 {
		resp.Usage = &domain.TokenUsage{
			PromptTokens:     int(acc.Usage.PromptTokens),
			CompletionTokens: int(acc.Usage.CompletionTokens),
			TotalTokens:      int(acc.Usage.TotalTokens),
		}
		resp.Metadata = map[string]any{
			"token_usage": map[string]any{
				"prompt_tokens":     int(acc.Usage.PromptTokens),
				"completion_tokens": int(acc.Usage.CompletionTokens),
				"total_tokens":      int(acc.Usage.TotalTokens),
			},
		}
	}

	return resp, nil
}

func convertMessagesToOpenAI(messages []domain.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case domain.RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))
		case domain.RoleAssistant:
			result = append(result, openai.AssistantMessage(msg.Content))
		default:
			// Tool results ride as user messages; the tool role requires
			// call IDs that are not tracked across turns.
			result = append(result, openai.UserMessage(msg.Content))
		}
	}
	return result
}
