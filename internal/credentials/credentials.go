// Package credentials loads API keys from standard locations.
package credentials

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vinayprograms/agentkit/credentials"
)

// Key names understood by GetAPIKey.
const (
	OpenAI    = "openai"
	Anthropic = "anthropic"
	Google    = "google"
	Groq      = "groq"
	Mistral   = "mistral"
	Serper    = "serper"
	Exa       = "exa"
)

// ErrInsecurePermissions is returned for credential files readable by
// anyone but the owner.
var ErrInsecurePermissions = credentials.ErrInsecurePermissions

// envVars maps key names to the environment variables they fall back to.
var envVars = map[string]string{
	OpenAI:    "OPENAI_API_KEY",
	Anthropic: "ANTHROPIC_API_KEY",
	Google:    "GOOGLE_API_KEY",
	Groq:      "GROQ_API_KEY",
	Mistral:   "MISTRAL_API_KEY",
	Serper:    "SERPER_API_KEY",
	Exa:       "EXA_API_KEY",
}

// searchKeys never fall back to the generic [llm] key.
var searchKeys = map[string]bool{Serper: true, Exa: true}

// EnvVar returns the environment variable backing a key name.
func EnvVar(name string) string {
	if env, ok := envVars[name]; ok {
		return env
	}
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "_API_KEY"
}

// Credentials holds API keys loaded from credentials.toml. The zero value
// resolves every key from the environment.
type Credentials struct {
	file   *credentials.Credentials
	llmKey string // [llm] api_key, used for model providers only
}

// New returns empty credentials.
func New() *Credentials {
	return &Credentials{file: &credentials.Credentials{}}
}

// StandardPaths returns the standard credential file locations in order of priority
func StandardPaths() []string {
	paths := []string{"credentials.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "leadsynapse", "credentials.toml"),
			filepath.Join(home, ".leadsynapse", "credentials.toml"),
		)
	}
	return paths
}

// Load loads credentials from the first available standard location.
// A missing file is not an error; empty Credentials are returned.
func Load() (*Credentials, string, error) {
	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err == nil {
			creds, err := LoadFile(path)
			if err != nil {
				return nil, path, err
			}
			return creds, path, nil
		}
	}
	return New(), "", nil
}

// LoadFile loads credentials from a specific file. The file must be mode
// 0600 or 0400.
func LoadFile(path string) (*Credentials, error) {
	file, err := credentials.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load credentials %s: %w", path, err)
	}
	c := &Credentials{file: file}
	if file.LLM != nil {
		c.llmKey = file.LLM.APIKey
		file.LLM = nil
	}
	return c, nil
}

// Set stores a key in memory.
func (c *Credentials) Set(name, key string) {
	if c.file == nil {
		c.file = &credentials.Credentials{}
	}
	c.file.SetAPIKey(name, key)
}

// Get resolves a key. Order: OAuth token, the [name] section, the
// environment variable, then [llm] for model providers.
func (c *Credentials) Get(name string) credentials.Credential {
	var file *credentials.Credentials
	if c != nil {
		file = c.file
	}
	cred := file.GetCredential(name)
	if cred.Key == "" && c != nil && !searchKeys[name] {
		cred.Key = c.llmKey
	}
	return cred
}

// GetAPIKey returns the resolved key for name, or "".
func (c *Credentials) GetAPIKey(name string) string {
	return c.Get(name).Key
}

// Apply sets environment variables from loaded credentials (if not already set)
func (c *Credentials) Apply() {
	if c == nil {
		return
	}
	for name, env := range envVars {
		if os.Getenv(env) != "" {
			continue
		}
		if key := c.GetAPIKey(name); key != "" {
			os.Setenv(env, key)
		}
	}
}

// Missing returns the environment variable names of the given keys that
// resolve to an empty value, sorted.
func (c *Credentials) Missing(names ...string) []string {
	var missing []string
	for _, name := range names {
		if c.GetAPIKey(name) == "" {
			missing = append(missing, EnvVar(name))
		}
	}
	sort.Strings(missing)
	return missing
}
