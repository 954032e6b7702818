package llm

import (
	"fmt"
	"strings"
)

// ProviderConfig configures NewProvider.
type ProviderConfig struct {
	Provider     string // inferred from Model when empty
	Model        string // "gpt-4o-mini" or "openai/gpt-4o-mini"
	APIKey       string
	IsOAuthToken bool
	BaseURL      string
	MaxTokens    int
	Retry        RetryConfig
}

const defaultMaxTokens = 4096

var knownProviders = map[string]bool{
	"openai": true, "anthropic": true, "google": true, "groq": true, "mistral": true, "xai": true,
	"openai-compat": true, "openrouter": true, "litellm": true, "ollama-cloud": true,
	"ollama": true, "ollama-local": true, "lmstudio": true,
}

// SplitModel splits "provider/model" on the first slash. A prefix that is
// not a known provider is left as part of the model name.
func SplitModel(s string) (provider, model string) {
	if i := strings.Index(s, "/"); i > 0 {
		if p := strings.ToLower(s[:i]); knownProviders[p] {
			return p, s[i+1:]
		}
	}
	return "", s
}

// Normalize resolves the provider from a prefixed or bare model name.
func (c *ProviderConfig) Normalize() {
	if p, m := SplitModel(c.Model); p != "" {
		if c.Provider == "" {
			c.Provider = p
		}
		c.Model = m
	}
	if c.Provider == "" {
		c.Provider = InferProviderFromModel(c.Model)
	}
}

// Validate checks required fields.
func (c ProviderConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Provider == "" {
		return fmt.Errorf("cannot determine provider for model %q; set provider explicitly", c.Model)
	}
	if !knownProviders[c.Provider] {
		return fmt.Errorf("unsupported provider: %s", c.Provider)
	}
	if c.APIKey == "" && NeedsAPIKey(c.Provider) {
		return fmt.Errorf("api key is required for provider %s", c.Provider)
	}
	if c.BaseURL == "" && (c.Provider == "openai-compat" || c.Provider == "litellm") {
		return fmt.Errorf("base_url is required for provider %s", c.Provider)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}
	return nil
}

// ApplyDefaults fills unset limits.
func (c *ProviderConfig) ApplyDefaults() {
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultMaxTokens
	}
}

// NeedsAPIKey reports whether a provider requires an API key. Local
// servers do not.
func NeedsAPIKey(provider string) bool {
	switch provider {
	case "ollama", "ollama-local", "lmstudio":
		return false
	}
	return true
}

// APIKeyName returns the credentials key for a provider. Generic
// OpenAI-compatible endpoints reuse the openai key.
func APIKeyName(provider string) string {
	switch provider {
	case "openai-compat", "litellm":
		return "openai"
	}
	return provider
}

// InferProviderFromModel returns the provider name based on model name patterns.
func InferProviderFromModel(model string) string {
	model = strings.ToLower(model)
	switch {
	case strings.HasPrefix(model, "claude"):
		return "anthropic"
	case strings.HasPrefix(model, "gpt-"),
		strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"),
		strings.HasPrefix(model, "o4"),
		strings.HasPrefix(model, "chatgpt"):
		return "openai"
	case strings.HasPrefix(model, "gemini"), strings.HasPrefix(model, "gemma"):
		return "google"
	case strings.HasPrefix(model, "llama"):
		return "groq"
	case strings.HasPrefix(model, "mistral"),
		strings.HasPrefix(model, "mixtral"),
		strings.HasPrefix(model, "codestral"),
		strings.HasPrefix(model, "pixtral"):
		return "mistral"
	case strings.HasPrefix(model, "grok"):
		return "xai"
	}
	return ""
}
