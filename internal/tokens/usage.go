// Package tokens normalizes token usage reported by heterogeneous model
// providers and converts it to USD cost using per-provider pricing tables.
package tokens

import "agentchat/internal/domain"

// extractor attempts to read a normalized usage record out of raw provider
// metadata. Returns nil when the expected shape is absent.
type extractor func(meta map[string]any) *domain.TokenUsage

// extractors is the ordered fallback chain. First structurally valid match wins.
var extractors = []extractor{
	fromTokenUsage,
	fromUsageMetadata,
	fromDirectCounts,
	fromGenericUsage,
}

// ExtractUsage searches provider metadata for token usage in any of the known
// shapes. Returns nil when no shape matches; absence of usage data is not an
// error.
func ExtractUsage(meta map[string]any) *domain.TokenUsage {
	if len(meta) == 0 {
		return nil
	}
	for _, extract := range extractors {
		if usage := extract(meta); usage != nil {
			return usage
		}
	}
	return nil
}

// fromTokenUsage reads the standard token_usage block:
// {"token_usage": {"prompt_tokens": N, "completion_tokens": N, "total_tokens": N}}
func fromTokenUsage(meta map[string]any) *domain.TokenUsage {
	block, ok := asMap(meta["token_usage"])
	if !ok {
		return nil
	}
	return usageFromBlock(block)
}

// fromUsageMetadata reads the alternate usage_metadata shape, which carries
// prompt and completion counts but may omit the total.
func fromUsageMetadata(meta map[string]any) *domain.TokenUsage {
	block, ok := asMap(meta["usage_metadata"])
	if !ok {
		return nil
	}
	prompt, pok := asInt(block["prompt_tokens"])
	completion, cok := asInt(block["completion_tokens"])
	if !pok && !cok {
		return nil
	}
	total, tok := asInt(block["total_token_count"])
	if !tok {
		total = prompt + completion
	}
	return &domain.TokenUsage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      total,
	}
}

// fromDirectCounts reads counts attached directly to the metadata.
func fromDirectCounts(meta map[string]any) *domain.TokenUsage {
	prompt, pok := asInt(meta["prompt_tokens"])
	completion, cok := asInt(meta["completion_tokens"])
	if !pok || !cok {
		return nil
	}
	total, tok := asInt(meta["total_tokens"])
	if !tok {
		total = prompt + completion
	}
	return &domain.TokenUsage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      total,
	}
}

// fromGenericUsage reads a generic usage attribute:
// {"usage": {"prompt_tokens": N, ...}}
func fromGenericUsage(meta map[string]any) *domain.TokenUsage {
	block, ok := asMap(meta["usage"])
	if !ok {
		return nil
	}
	return usageFromBlock(block)
}

func usageFromBlock(block map[string]any) *domain.TokenUsage {
	prompt, pok := asInt(block["prompt_tokens"])
	completion, cok := asInt(block["completion_tokens"])
	if !pok && !cok {
		return nil
	}
	total, tok := asInt(block["total_tokens"])
	if !tok {
		total = prompt + completion
	}
	return &domain.TokenUsage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      total,
	}
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok && m != nil
}

// asInt coerces the numeric types that survive JSON round-trips.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	}
	return 0, false
}
