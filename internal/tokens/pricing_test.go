package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCost(t *testing.T) {
	tests := []struct {
		name             string
		promptTokens     int
		completionTokens int
		model            string
		provider         string
		want             *float64
	}{
		{
			name:         "gpt-4o one million prompt tokens",
			promptTokens: 1_000_000,
			model:        "gpt-4o",
			provider:     "openai",
			want:         ptr(2.50),
		},
		{
			name:             "gpt-4o mixed usage",
			promptTokens:     1000,
			completionTokens: 500,
			model:            "gpt-4o",
			provider:         "openai",
			want:             ptr(0.0075),
		},
		{
			name:     "zero usage yields nil",
			model:    "gpt-4o",
			provider: "openai",
			want:     nil,
		},
		{
			name:             "unknown model uses provider default",
			promptTokens:     1_000_000,
			completionTokens: 1_000_000,
			model:            "gpt-99",
			provider:         "openai",
			want:             ptr(3.00),
		},
		{
			name:             "unknown provider uses generic pricing",
			promptTokens:     1_000_000,
			completionTokens: 1_000_000,
			model:            "mystery",
			provider:         "mystery",
			want:             ptr(3.00),
		},
		{
			name:             "ollama is free",
			promptTokens:     500_000,
			completionTokens: 500_000,
			model:            "llama3",
			provider:         "ollama",
			want:             ptr(0.0),
		},
		{
			name:             "anthropic sonnet",
			promptTokens:     1_000_000,
			completionTokens: 0,
			model:            "claude-3-5-sonnet-20241022",
			provider:         "anthropic",
			want:             ptr(3.00),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cost(tt.promptTokens, tt.completionTokens, tt.model, tt.provider)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestCostRounding(t *testing.T) {
	// 1 prompt token of gpt-4o-mini is 0.00000015 USD, rounding to 6
	// decimals collapses it to zero but the pointer stays non-nil.
	got := Cost(1, 0, "gpt-4o-mini", "openai")
	require.NotNil(t, got)
	assert.Equal(t, 0.0, *got)
}

func ptr(f float64) *float64 {
	return &f
}
