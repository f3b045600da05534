package llm

import (
	"fmt"

	"agentchat/internal/config"
)

// New builds the provider named by cfg. An unknown provider name is a
// configuration error, not a runtime fallback.
func New(cfg config.LLMConfig) (Provider, error) {
	sampling := Sampling{
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg.APIKey, cfg.Model, cfg.BaseURL, sampling), nil
	case "groq":
		return NewGroq(cfg.APIKey, cfg.Model, sampling), nil
	case "anthropic":
		return NewAnthropic(cfg.APIKey, cfg.Model, cfg.BaseURL, sampling), nil
	case "ollama":
		return NewOllama(cfg.Model, cfg.BaseURL, sampling)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %q", cfg.Provider)
	}
}
