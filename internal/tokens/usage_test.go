package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentchat/internal/domain"
)

func TestExtractUsage(t *testing.T) {
	tests := []struct {
		name string
		meta map[string]any
		want *domain.TokenUsage
	}{
		{
			name: "nil metadata",
			meta: nil,
			want: nil,
		},
		{
			name: "token_usage block",
			meta: map[string]any{
				"token_usage": map[string]any{
					"prompt_tokens":     10,
					"completion_tokens": 5,
					"total_tokens":      15,
				},
			},
			want: &domain.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		},
		{
			name: "usage_metadata without total computes it",
			meta: map[string]any{
				"usage_metadata": map[string]any{
					"prompt_tokens":     7,
					"completion_tokens": 3,
				},
			},
			want: &domain.TokenUsage{PromptTokens: 7, CompletionTokens: 3, TotalTokens: 10},
		},
		{
			name: "usage_metadata honors total_token_count",
			meta: map[string]any{
				"usage_metadata": map[string]any{
					"prompt_tokens":     7,
					"completion_tokens": 3,
					"total_token_count": 12,
				},
			},
			want: &domain.TokenUsage{PromptTokens: 7, CompletionTokens: 3, TotalTokens: 12},
		},
		{
			name: "direct counts",
			meta: map[string]any{
				"prompt_tokens":     4,
				"completion_tokens": 6,
			},
			want: &domain.TokenUsage{PromptTokens: 4, CompletionTokens: 6, TotalTokens: 10},
		},
		{
			name: "generic usage block",
			meta: map[string]any{
				"usage": map[string]any{
					"prompt_tokens":     100,
					"completion_tokens": 50,
					"total_tokens":      150,
				},
			},
			want: &domain.TokenUsage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
		},
		{
			name: "float counts from json round-trip",
			meta: map[string]any{
				"token_usage": map[string]any{
					"prompt_tokens":     float64(10),
					"completion_tokens": float64(5),
					"total_tokens":      float64(15),
				},
			},
			want: &domain.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		},
		{
			name: "unrecognized shape",
			meta: map[string]any{"latency_ms": 120},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractUsage(tt.meta)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractUsageFallbackOrder(t *testing.T) {
	// token_usage wins over the generic usage block when both are present.
	meta := map[string]any{
		"token_usage": map[string]any{
			"prompt_tokens":     1,
			"completion_tokens": 1,
		},
		"usage": map[string]any{
			"prompt_tokens":     99,
			"completion_tokens": 99,
		},
	}
	got := ExtractUsage(meta)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.PromptTokens)
}
