package llm

import (
	"fmt"
	"os"

	"github.com/masskarem1/PHYS.101-Ebook/internal/config"
)

// NewProvider creates the provider named by providerType with model as its
// default. API keys and hosts come from the environment.
func NewProvider(providerType config.ProviderType, model string) (Provider, error) {
	switch providerType {
	case config.ProviderAnthropic:
		env := config.APIKeyEnvVar(providerType)
		apiKey := os.Getenv(env)
		if apiKey == "" {
			return nil, fmt.Errorf("%s environment variable is not set", env)
		}
		return NewAnthropicProvider(apiKey, os.Getenv("ANTHROPIC_BASE_URL"), model), nil

	case config.ProviderOpenAI:
		env := config.APIKeyEnvVar(providerType)
		apiKey := os.Getenv(env)
		if apiKey == "" {
			return nil, fmt.Errorf("%s environment variable is not set", env)
		}
		return NewOpenAIProvider(apiKey, os.Getenv("OPENAI_BASE_URL"), model), nil

	case config.ProviderOllama:
		return NewOllamaProvider(os.Getenv("OLLAMA_HOST"), model), nil

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}

// FromConfig builds the configured provider, rate limited when
// requests_per_minute is positive.
func FromConfig(ai config.AIConfig) (Provider, error) {
	p, err := NewProvider(ai.Provider, ai.Model)
	if err != nil {
		return nil, err
	}
	if ai.RequestsPerMinute > 0 {
		p = NewRateLimitedProvider(p, ai.RequestsPerMinute)
	}
	return p, nil
}
