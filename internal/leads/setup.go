package leads

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vinayprograms/leadsynapse/internal/config"
	"github.com/vinayprograms/leadsynapse/internal/credentials"
	"github.com/vinayprograms/leadsynapse/internal/crew"
	"github.com/vinayprograms/leadsynapse/internal/llm"
	"github.com/vinayprograms/leadsynapse/internal/tools"
)

// OptionalKeys are reported when missing but do not block a run.
var OptionalKeys = []string{credentials.Groq}

// ProviderConfig maps the [llm] section and credentials onto an LLM config.
func ProviderConfig(cfg *config.Config, creds *credentials.Credentials) llm.ProviderConfig {
	pc := llm.ProviderConfig{
		Provider:  cfg.LLM.Provider,
		Model:     cfg.LLM.Model,
		BaseURL:   cfg.LLM.BaseURL,
		MaxTokens: cfg.LLM.MaxTokens,
		Retry: llm.RetryConfig{
			MaxRetries: cfg.LLM.MaxRetries,
			MaxBackoff: config.Duration(cfg.LLM.RetryBackoff),
		},
	}
	pc.Normalize()
	cred := creds.Get(llm.APIKeyName(pc.Provider))
	pc.APIKey, pc.IsOAuthToken = cred.Key, cred.IsOAuthToken
	return pc
}

// RequiredKeys returns the credential names a run needs: the Serper and Exa
// keys plus the LLM provider key unless the provider is a local server.
func RequiredKeys(cfg *config.Config) []string {
	keys := []string{credentials.Serper, credentials.Exa}
	pc := llm.ProviderConfig{Provider: cfg.LLM.Provider, Model: cfg.LLM.Model}
	pc.Normalize()
	if llm.NeedsAPIKey(pc.Provider) {
		keys = append(keys, llm.APIKeyName(pc.Provider))
	}
	return keys
}

// KeyStatus is the result of CheckKeys.
type KeyStatus struct {
	Missing  []string // environment variable names of absent required keys
	Warnings []string
}

// OK reports whether every required key is present.
func (k KeyStatus) OK() bool {
	return len(k.Missing) == 0
}

// Error describes the missing keys.
func (k KeyStatus) Error() string {
	if k.OK() {
		return ""
	}
	return fmt.Sprintf("missing required API keys: %v", k.Missing)
}

// CheckKeys resolves required and optional keys.
func CheckKeys(cfg *config.Config, creds *credentials.Credentials) KeyStatus {
	status := KeyStatus{Missing: creds.Missing(RequiredKeys(cfg)...)}
	for _, env := range creds.Missing(OptionalKeys...) {
		status.Warnings = append(status.Warnings, fmt.Sprintf("Optional API key '%s' not found.", env))
	}
	return status
}

// NewRegistry builds the search tools from config and credentials.
func NewRegistry(cfg *config.Config, creds *credentials.Credentials) *tools.Registry {
	client := &http.Client{Timeout: cfg.WebSearchTimeout()}

	serper := tools.NewSerperTool(creds.GetAPIKey(credentials.Serper))
	serper.URL = cfg.Search.SerperURL
	serper.Results = cfg.Search.SerperResults
	serper.Client = client

	exa := tools.NewExaTool(creds.GetAPIKey(credentials.Exa))
	exa.URL = cfg.Search.ExaURL
	exa.Results = cfg.Search.ExaResults
	exa.SearchType = cfg.Search.ExaType
	exa.Highlights = cfg.Search.ExaHighlights
	exa.Client = client

	return tools.NewRegistry(serper, exa)
}

// CrewConfig maps the config file onto crew execution settings. OutputDir is
// set per run by the service.
func CrewConfig(cfg *config.Config) crew.Config {
	return crew.Config{
		OutputDir:     cfg.OutputDir(),
		MaxIterations: cfg.Crew.MaxIterations,
		ToolTimeout:   cfg.WebSearchTimeout(),
		MaxTokens:     cfg.LLM.MaxTokens,
	}
}

// NewProvider creates the LLM provider, bounding each call by the
// configured LLM timeout.
func NewProvider(cfg *config.Config, creds *credentials.Credentials) (llm.Provider, error) {
	p, err := llm.NewProvider(ProviderConfig(cfg, creds))
	if err != nil {
		return nil, err
	}
	return WithTimeout(p, cfg.LLMTimeout()), nil
}

// WithTimeout wraps p so every Chat call is bounded by d. d <= 0 returns p.
func WithTimeout(p llm.Provider, d time.Duration) llm.Provider {
	if d <= 0 {
		return p
	}
	return &timeoutProvider{Provider: p, timeout: d}
}

type timeoutProvider struct {
	llm.Provider
	timeout time.Duration
}

func (t *timeoutProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Provider.Chat(ctx, req)
}

// Unavailable returns a provider that fails every call with err.
func Unavailable(err error) llm.Provider {
	return unavailableProvider{err: err}
}

type unavailableProvider struct {
	err error
}

func (u unavailableProvider) Chat(context.Context, llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, u.err
}
