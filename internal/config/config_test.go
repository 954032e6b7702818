package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestConfig_Defaults(t *testing.T) {
	cfg := New()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "openai/gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 5, cfg.LLM.MaxRetries)
	assert.Equal(t, 30, cfg.Search.ExaResults)
	assert.Equal(t, "neural", cfg.Search.ExaType)
	assert.True(t, cfg.Search.ExaHighlights)
	assert.Equal(t, 20, cfg.Crew.MaxIterations)
	assert.Equal(t, "output", cfg.Crew.OutputDir)
	assert.Equal(t, ":8501", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, 30*time.Second, cfg.WebSearchTimeout())
	assert.Zero(t, cfg.LLMTimeout())
}

func TestConfig_LoadFromFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[llm]
model = "anthropic/claude-3-5-haiku"
max_tokens = 2048

[search]
exa_results = 10

[crew]
output_dir = "/tmp/leads"

[server]
addr = "127.0.0.1:9000"
max_connections = 64

[storage]
backend = "file"

[events]
nats_url = "nats://localhost:4222"

[telemetry]
enabled = true
endpoint = "localhost:4318"
headers = { "x-team" = "growth" }
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "anthropic/claude-3-5-haiku", cfg.LLM.Model)
	assert.Equal(t, 2048, cfg.LLM.MaxTokens)
	assert.Equal(t, 5, cfg.LLM.MaxRetries, "unset keys keep defaults")
	assert.Equal(t, 10, cfg.Search.ExaResults)
	assert.Equal(t, 10, cfg.Search.SerperResults)
	assert.Equal(t, "/tmp/leads", cfg.OutputDir())
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 64, cfg.Server.MaxConnections)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, "nats://localhost:4222", cfg.Events.NATSURL)
	assert.Equal(t, "leadsynapse.runs", cfg.Events.Subject)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "growth", cfg.Telemetry.Headers["x-team"])
}

func TestConfig_LoadDefault(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, New(), cfg, "no file means defaults")

	writeConfig(t, dir, `
[crew]
max_iterations = 5
`)
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Crew.MaxIterations)
}

func TestConfig_LoadFile_Invalid(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(writeConfig(t, dir, "[llm\nmodel ="))
	assert.ErrorContains(t, err, "failed to parse config")

	_, err = LoadFile(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty model", func(c *Config) { c.LLM.Model = " " }, "llm.model"},
		{"max tokens", func(c *Config) { c.LLM.MaxTokens = -1 }, "llm.max_tokens"},
		{"retries disabled", func(c *Config) { c.LLM.MaxRetries = 0 }, "llm.max_retries 0: must be at least 1"},
		{"backoff", func(c *Config) { c.LLM.RetryBackoff = "soon" }, "llm.retry_backoff"},
		{"results", func(c *Config) { c.Search.ExaResults = 0 }, "search result counts"},
		{"iterations", func(c *Config) { c.Crew.MaxIterations = 0 }, "crew.max_iterations"},
		{"runs", func(c *Config) { c.Server.MaxConcurrentRuns = 0 }, "max_concurrent_runs"},
		{"timeout", func(c *Config) { c.Server.IdleTimeout = "2 minutes" }, "server.idle_timeout"},
		{"backend", func(c *Config) { c.Storage.Backend = "postgres" }, "storage.backend"},
		{"negative timeout", func(c *Config) { c.Timeouts.WebSearch = -1 }, "timeouts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg := New()
	assert.Equal(t, filepath.Join(home, ".local", "leadsynapse"), cfg.StoragePath())
	assert.Equal(t, "relative/dir", expandHome("relative/dir"))
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 15*time.Second, Duration("15s"))
	assert.Zero(t, Duration(""))
}
