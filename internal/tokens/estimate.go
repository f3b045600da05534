package tokens

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"agentchat/internal/domain"
)

// Estimator counts tokens locally with tiktoken. Used as a fallback when a
// provider reports no usage, so the ledger still records an approximate
// figure instead of nothing.
type Estimator struct {
	encoding *tiktoken.Tiktoken
	model    string
}

var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

// NewEstimator creates a token estimator for the given model, falling back
// to the cl100k_base encoding for models tiktoken does not know.
func NewEstimator(model string) (*Estimator, error) {
	cacheMu.RLock()
	cached, exists := encodingCache[model]
	cacheMu.RUnlock()

	if exists {
		return &Estimator{encoding: cached, model: model}, nil
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
	}

	cacheMu.Lock()
	encodingCache[model] = encoding
	cacheMu.Unlock()

	return &Estimator{encoding: encoding, model: model}, nil
}

// Count returns the token count for text.
func (e *Estimator) Count(text string) int {
	return len(e.encoding.Encode(text, nil, nil))
}

// EstimateUsage approximates a usage record for a prompt/completion pair.
// Per-message role overhead is ignored; this is a floor, not an exact count.
func (e *Estimator) EstimateUsage(messages []domain.Message, completion string) *domain.TokenUsage {
	prompt := 0
	for _, msg := range messages {
		prompt += e.Count(msg.Content)
	}
	completionTokens := e.Count(completion)
	return &domain.TokenUsage{
		PromptTokens:     prompt,
		CompletionTokens: completionTokens,
		TotalTokens:      prompt + completionTokens,
	}
}
