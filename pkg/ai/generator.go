package ai

import (
	"context"
	"fmt"
	"strings"
)

// TextGenerator generates text from a system prompt and user prompt.
// All LLM providers (Ollama, OpenAI-compatible) implement this interface.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Config selects and configures an LLM provider.
type Config struct {
	Provider    string  // "ollama" or "openai"
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
}

// NewGenerator builds a TextGenerator for the configured provider.
func NewGenerator(cfg Config) (TextGenerator, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("generation model required")
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "", "ollama":
		return NewOllamaGenerator(cfg.BaseURL, cfg.Model, cfg.Temperature), nil
	case "openai":
		return NewOpenAICompatGenerator(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Temperature), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", provider)
	}
}
