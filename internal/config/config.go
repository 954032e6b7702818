// Package config provides configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "leadsynapse.toml"

// Config represents the service configuration.
type Config struct {
	LLM       LLMConfig       `toml:"llm"`
	Search    SearchConfig    `toml:"search"`
	Crew      CrewConfig      `toml:"crew"`
	Server    ServerConfig    `toml:"server"`
	Storage   StorageConfig   `toml:"storage"`
	Events    EventsConfig    `toml:"events"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Timeouts  TimeoutsConfig  `toml:"timeouts"`
}

// LLMConfig contains LLM provider settings.
type LLMConfig struct {
	Provider     string `toml:"provider"` // inferred from model when empty
	Model        string `toml:"model"`
	MaxTokens    int    `toml:"max_tokens"`
	BaseURL      string `toml:"base_url"`      // OpenRouter, LiteLLM, Ollama, ...
	MaxRetries   int    `toml:"max_retries"`   // attempts on rate limits and 5xx, default 5
	RetryBackoff string `toml:"retry_backoff"` // max backoff, default "60s"
}

// SearchConfig contains settings for the hosted search tools.
type SearchConfig struct {
	SerperURL     string `toml:"serper_url"`
	SerperResults int    `toml:"serper_results"`
	ExaURL        string `toml:"exa_url"`
	ExaResults    int    `toml:"exa_results"`
	ExaType       string `toml:"exa_type"`
	ExaHighlights bool   `toml:"exa_highlights"`
}

// CrewConfig contains crew execution settings.
type CrewConfig struct {
	Definition    string `toml:"definition"` // optional YAML overriding the built-in crew
	MaxIterations int    `toml:"max_iterations"`
	OutputDir     string `toml:"output_dir"`
}

// ServerConfig contains web server settings.
type ServerConfig struct {
	Addr              string `toml:"addr"`
	ReadTimeout       string `toml:"read_timeout"`
	WriteTimeout      string `toml:"write_timeout"`
	IdleTimeout       string `toml:"idle_timeout"`
	MaxConnections    int    `toml:"max_connections"` // 0 = unlimited
	MaxConcurrentRuns int    `toml:"max_concurrent_runs"`
	Tailscale         string `toml:"tailscale"` // tailnet hostname; empty = plain TCP
}

// StorageConfig contains persistent storage settings.
type StorageConfig struct {
	Path    string `toml:"path"`
	Backend string `toml:"backend"` // sqlite | file
}

// EventsConfig contains progress event settings.
type EventsConfig struct {
	NATSURL string `toml:"nats_url"` // empty disables the NATS sink
	Subject string `toml:"subject"`
}

// TelemetryConfig contains telemetry settings.
type TelemetryConfig struct {
	Enabled  bool              `toml:"enabled"`
	Endpoint string            `toml:"endpoint"` // OTLP/HTTP endpoint, e.g. localhost:4318
	Insecure bool              `toml:"insecure"`
	Headers  map[string]string `toml:"headers"`
	Debug    bool              `toml:"debug"` // record tool results on spans
}

// TimeoutsConfig contains timeout settings for network operations.
type TimeoutsConfig struct {
	WebSearch int `toml:"web_search"` // seconds, default 30
	LLM       int `toml:"llm"`        // seconds per LLM call, 0 = none
}

// New creates a new config with defaults.
func New() *Config {
	return &Config{
		LLM: LLMConfig{
			Model:        "openai/gpt-4o-mini",
			MaxTokens:    4096,
			MaxRetries:   5,
			RetryBackoff: "60s",
		},
		Search: SearchConfig{
			SerperURL:     "https://google.serper.dev/search",
			SerperResults: 10,
			ExaURL:        "https://api.exa.ai/search",
			ExaResults:    30,
			ExaType:       "neural",
			ExaHighlights: true,
		},
		Crew: CrewConfig{
			MaxIterations: 20,
			OutputDir:     "output",
		},
		Server: ServerConfig{
			Addr:              ":8501",
			ReadTimeout:       "15s",
			WriteTimeout:      "0s", // SSE streams stay open
			IdleTimeout:       "120s",
			MaxConcurrentRuns: 2,
		},
		Storage: StorageConfig{
			Path:    "~/.local/leadsynapse",
			Backend: "sqlite",
		},
		Events: EventsConfig{
			Subject: "leadsynapse.runs",
		},
		Timeouts: TimeoutsConfig{
			WebSearch: 30,
		},
	}
}

// Default returns a default configuration.
func Default() *Config {
	return New()
}

// LoadFile loads configuration from a TOML file on top of the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Load loads path when given. Otherwise it tries leadsynapse.toml in the
// working directory and falls back to defaults when that file is absent.
func Load(path string) (*Config, error) {
	if path != "" {
		return LoadFile(path)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	candidate := filepath.Join(cwd, DefaultFile)
	if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	return LoadFile(candidate)
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.LLM.Model) == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if c.LLM.MaxTokens < 0 {
		errs = append(errs, errors.New("llm.max_tokens must not be negative"))
	}
	if c.LLM.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("llm.max_retries %d: must be at least 1, retries cannot be disabled", c.LLM.MaxRetries))
	}
	if _, err := parseDuration(c.LLM.RetryBackoff); err != nil {
		errs = append(errs, fmt.Errorf("llm.retry_backoff: %w", err))
	}
	if c.Search.SerperResults < 1 || c.Search.ExaResults < 1 {
		errs = append(errs, errors.New("search result counts must be positive"))
	}
	if c.Crew.MaxIterations < 1 {
		errs = append(errs, errors.New("crew.max_iterations must be positive"))
	}
	if c.Server.MaxConnections < 0 || c.Server.MaxConcurrentRuns < 1 {
		errs = append(errs, errors.New("server.max_connections must be >= 0 and server.max_concurrent_runs >= 1"))
	}
	for name, v := range map[string]string{
		"server.read_timeout":  c.Server.ReadTimeout,
		"server.write_timeout": c.Server.WriteTimeout,
		"server.idle_timeout":  c.Server.IdleTimeout,
	} {
		if _, err := parseDuration(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	switch c.Storage.Backend {
	case "sqlite", "file":
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q not supported (sqlite, file)", c.Storage.Backend))
	}
	if c.Timeouts.WebSearch < 0 || c.Timeouts.LLM < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	return errors.Join(errs...)
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// Duration parses a duration field that has already passed Validate.
func Duration(s string) time.Duration {
	d, _ := parseDuration(s)
	return d
}

// StoragePath returns the storage directory with ~ expanded.
func (c *Config) StoragePath() string {
	return expandHome(c.Storage.Path)
}

// OutputDir returns the crew output directory with ~ expanded.
func (c *Config) OutputDir() string {
	return expandHome(c.Crew.OutputDir)
}

// WebSearchTimeout returns the per-call search timeout.
func (c *Config) WebSearchTimeout() time.Duration {
	return time.Duration(c.Timeouts.WebSearch) * time.Second
}

// LLMTimeout returns the per-call LLM timeout, zero when unset.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.Timeouts.LLM) * time.Second
}

func expandHome(p string) string {
	if p == "" || p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[1:])
}
