package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/josephgoksu/TodoBuilder/internal/llm"
)

// ChatModel resolves the chat-model configuration. Explicit config wins over
// provider environment variables, which win over defaults. A missing key is
// not an error here; the model factory reports it when the model is built.
func (c *Config) ChatModel() (llm.Config, error) {
	provider := c.LLM.Provider
	if provider == "" {
		provider = string(llm.DefaultProvider)
	}
	p, err := llm.ValidateProvider(provider)
	if err != nil {
		return llm.Config{}, fmt.Errorf("invalid provider: %w", err)
	}

	apiKey := strings.TrimSpace(c.LLM.APIKey)
	if apiKey == "" {
		apiKey = providerEnvKey(p)
	}
	return llm.Config{
		Provider: p,
		Model:    c.LLM.Model,
		APIKey:   apiKey,
		BaseURL:  c.LLM.BaseURL,
	}.WithDefaults(), nil
}

func providerEnvKey(provider llm.Provider) string {
	switch provider {
	case llm.ProviderOpenAI:
		return strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	case llm.ProviderAnthropic:
		return strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	case llm.ProviderGemini:
		key := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
		if key == "" {
			key = strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
		}
		return key
	default:
		return ""
	}
}
