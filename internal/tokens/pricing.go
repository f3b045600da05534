package tokens

import (
	"math"

	"agentchat/internal/domain"
)

// ModelPricing holds prompt and completion prices in USD per 1M tokens.
type ModelPricing struct {
	Prompt     float64
	Completion float64
}

// defaultKey is the per-provider fallback entry used when a model has no
// dedicated pricing row.
const defaultKey = "default"

// Pricing per 1M tokens, keyed by provider then model. Each provider carries
// a "default" row; unknown providers fall back to genericPricing.
var providerPricing = map[string]map[string]ModelPricing{
	"openai": {
		"gpt-4o":              {Prompt: 2.50, Completion: 10.00},
		"gpt-4o-mini":         {Prompt: 0.15, Completion: 0.60},
		"gpt-4-turbo":         {Prompt: 10.00, Completion: 30.00},
		"gpt-4-turbo-preview": {Prompt: 10.00, Completion: 30.00},
		"gpt-4":               {Prompt: 30.00, Completion: 60.00},
		"gpt-3.5-turbo":       {Prompt: 0.50, Completion: 1.50},
		"gpt-3.5-turbo-16k":   {Prompt: 3.00, Completion: 4.00},
		defaultKey:            {Prompt: 1.00, Completion: 2.00},
	},
	"anthropic": {
		"claude-3-5-sonnet-20241022": {Prompt: 3.00, Completion: 15.00},
		"claude-3-5-sonnet":          {Prompt: 3.00, Completion: 15.00},
		"claude-3-opus-20240229":     {Prompt: 15.00, Completion: 75.00},
		"claude-3-sonnet-20240229":   {Prompt: 3.00, Completion: 15.00},
		"claude-3-haiku-20240307":    {Prompt: 0.25, Completion: 1.25},
		defaultKey:                   {Prompt: 3.00, Completion: 15.00},
	},
	"groq": {
		defaultKey: {Prompt: 0.00, Completion: 0.00},
	},
	"ollama": {
		defaultKey: {Prompt: 0.00, Completion: 0.00},
	},
}

// genericPricing applies when the provider itself is unrecognized.
var genericPricing = ModelPricing{Prompt: 1.00, Completion: 2.00}

// PricingFor resolves the pricing row for a provider/model pair.
func PricingFor(provider, model string) ModelPricing {
	table, ok := providerPricing[provider]
	if !ok {
		return genericPricing
	}
	if pricing, ok := table[model]; ok {
		return pricing
	}
	return table[defaultKey]
}

// Cost converts token counts to USD, rounded to 6 decimal places. Returns
// nil when both counts are zero: "no usage data" is distinguishable from
// "zero-cost usage".
func Cost(promptTokens, completionTokens int, model, provider string) *float64 {
	if promptTokens == 0 && completionTokens == 0 {
		return nil
	}

	pricing := PricingFor(provider, model)
	cost := float64(promptTokens)/1e6*pricing.Prompt +
		float64(completionTokens)/1e6*pricing.Completion
	cost = math.Round(cost*1e6) / 1e6

	return &cost
}

// UsageCost computes the cost of a normalized usage record; nil usage or a
// record with no counted tokens yields nil.
func UsageCost(usage *domain.TokenUsage, model, provider string) *float64 {
	if usage == nil {
		return nil
	}
	return Cost(usage.PromptTokens, usage.CompletionTokens, model, provider)
}
