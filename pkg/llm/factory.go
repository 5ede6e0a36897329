package llm

import (
	"fmt"

	"github.com/l3aro/pyrefine/internal/config"
)

// NewProvider creates a chat provider for the given provider type. Returns an
// error for unknown provider types.
func NewProvider(providerType config.ProviderType, cfg *Config) (Provider, error) {
	switch providerType {
	case config.ProviderOpenAI:
		return NewOpenAIProvider(cfg)
	case config.ProviderOllama:
		return NewOllamaProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", providerType)
	}
}

// FromConfig builds the provider described by the application config.
func FromConfig(cfg *config.Config) (Provider, error) {
	return NewProvider(cfg.Provider, &Config{
		Endpoint:    cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Timeout:     cfg.RequestTimeout,
	})
}
