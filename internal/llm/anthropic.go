package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"agentchat/internal/domain"
)

// defaultAnthropicMaxTokens applies when no limit is configured; the
// messages API requires one.
const defaultAnthropicMaxTokens = 4096

// AnthropicProvider generates completions through the Anthropic messages API.
type AnthropicProvider struct {
	client   *anthropic.Client
	model    string
	sampling Sampling
}

// NewAnthropic creates an Anthropic-backed provider. baseURL overrides the
// default endpoint; empty means api.anthropic.com.
func NewAnthropic(apiKey, model, baseURL string, sampling Sampling) *AnthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if sampling.MaxTokens <= 0 {
		sampling.MaxTokens = defaultAnthropicMaxTokens
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicProvider{
		client:   &client,
		model:    model,
		sampling: sampling,
	}
}

func (p *AnthropicProvider) Name() string  { return "anthropic" }
func (p *AnthropicProvider) Model() string { return p.model }

// Generate performs a single completion without incremental delivery.
func (p *AnthropicProvider) Generate(ctx context.Context, messages []domain.Message, opts GenerateOptions) (*Response, error) {
	return p.GenerateStream(ctx, messages, opts, nil)
}

// GenerateStream streams a completion, invoking fn per content fragment.
func (p *AnthropicProvider) GenerateStream(ctx context.Context, messages []domain.Message, opts GenerateOptions, fn StreamFunc) (*Response, error) {
	system, turns := convertMessagesToAnthropic(messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		Messages:  turns,
		MaxTokens: int64(p.sampling.MaxTokens),
	}
	if p.sampling.Temperature > 0 {
		params.Temperature = anthropic.Float(p.sampling.Temperature)
	}
	if len(system) > 0 {
		params.System = system
	}
	if tools := convertToolsToAnthropic(opts.Tools); tools != nil {
		params.Tools = tools
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	msg := anthropic.Message{}
	var content strings.Builder

	for stream.Next() {
		event := stream.Current()
		if err := msg.Accumulate(event); err != nil {
			return nil, fmt.Errorf("anthropic accumulate failed: %w", err)
		}

		if deltaEvent, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if textDelta, ok := deltaEvent.Delta.AsAny().(anthropic.TextDelta); ok && textDelta.Text != "" {
				content.WriteString(textDelta.Text)
				if fn != nil {
					fn(textDelta.Text)
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("anthropic stream failed: %w", err)
	}

	var toolCalls []domain.ToolCall
	for _, block := range msg.Content {
		if toolUse, ok := block.AsAny().(anthropic.ToolUseBlock); ok {
			toolCalls = append(toolCalls, domain.ToolCall{
				Name:      toolUse.Name,
				Arguments: parseToolInput(toolUse.Input),
			})
		}
	}

	resp := &Response{
		Content:   content.String(),
		ToolCalls: toolCalls,
		Model:     p.model,
	}
	if msg.Usage.InputTokens > 0 || msg.Usage.OutputTokens > 0 {
		prompt := int(msg.Usage.InputTokens)
		completion := int(msg.Usage.OutputTokens)
		resp.Usage = &domain.TokenUsage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		}
		resp.Metadata = map[string]any{
			"usage": map[string]any{
				"prompt_tokens":     prompt,
				"completion_tokens": completion,
				"total_tokens":      prompt + completion,
			},
		}
	}

	return resp, nil
}

func convertMessagesToAnthropic(messages []domain.Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var system []anthropic.TextBlockParam
	turns := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case domain.RoleSystem:
			// System prompts are a request-level field, not turns.
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case domain.RoleAssistant:
			turns = append(turns, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			turns = append(turns, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	return system, turns
}

func parseToolInput(input json.RawMessage) map[string]any {
	if len(input) == 0 {
		return make(map[string]any)
	}
	var args map[string]any
	if err := json.Unmarshal(input, &args); err != nil {
		return make(map[string]any)
	}
	return args
}
