package llm

import (
	"fmt"

	"github.com/vinayprograms/agentkit/llm"
)

// NewProvider creates an agentkit provider from the configuration.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()

	p, err := llm.NewProvider(llm.ProviderConfig{
		Provider:     cfg.Provider,
		Model:        cfg.Model,
		APIKey:       cfg.APIKey,
		IsOAuthToken: cfg.IsOAuthToken,
		MaxTokens:    cfg.MaxTokens,
		BaseURL:      cfg.BaseURL,
		RetryConfig:  cfg.Retry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", cfg.Provider, err)
	}
	return p, nil
}
