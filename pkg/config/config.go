// Package config loads the server's YAML configuration file and applies
// environment overrides. Every section carries working defaults so the
// server starts with an empty file, an API key being the only thing it
// truly needs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/altamira-dev/webpilot/pkg/llm"
)

// Provider selection values for LLM.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Duration wraps time.Duration so YAML values like "10m" parse directly.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full server configuration.
type Config struct {
	Server    Server    `yaml:"server"`
	LLM       LLM       `yaml:"llm"`
	Browser   Browser   `yaml:"browser"`
	Memory    Memory    `yaml:"memory"`
	Loop      Loop      `yaml:"loop"`
	Progress  Progress  `yaml:"progress"`
	Artifacts Artifacts `yaml:"artifacts"`
	Session   Session   `yaml:"session"`
}

// Server configures the HTTP listener and auth.
type Server struct {
	Addr string `yaml:"addr"`
	// AuthTokens maps static bearer tokens to user ids. Requests carrying
	// a token not in this map are rejected.
	AuthTokens map[string]string `yaml:"auth_tokens"`
}

// LLM selects and configures the model provider.
type LLM struct {
	Provider   string               `yaml:"provider"`
	APIKey     string               `yaml:"api_key"`
	BaseURL    string               `yaml:"base_url"`
	Generation llm.GenerationConfig `yaml:"generation"`
}

// Browser configures the context pool.
type Browser struct {
	Headless    bool     `yaml:"headless"`
	AllowedURLs []string `yaml:"allowed_urls"`
	IdleTimeout Duration `yaml:"idle_timeout"`
}

// Memory configures conversation summarization.
type Memory struct {
	SummarizationThreshold int `yaml:"summarization_threshold"`
}

// Loop bounds task execution.
type Loop struct {
	MaxSteps int `yaml:"max_steps"`
}

// Progress configures event delivery.
type Progress struct {
	QueueCapacity int `yaml:"queue_capacity"`
}

// Artifacts configures where session files are stored.
type Artifacts struct {
	Root string `yaml:"root"`
}

// Session configures session lifecycle.
type Session struct {
	IdleTimeout Duration `yaml:"idle_timeout"`
}

// Default returns the configuration the server runs with when no file is
// given.
func Default() *Config {
	return &Config{
		Server: Server{
			Addr:       ":8080",
			AuthTokens: map[string]string{},
		},
		LLM: LLM{
			Provider: ProviderGemini,
			Generation: llm.GenerationConfig{
				Temperature: 0.7,
			},
		},
		Browser: Browser{
			Headless:    true,
			IdleTimeout: Duration(10 * time.Minute),
		},
		Memory: Memory{
			SummarizationThreshold: 50000,
		},
		Loop: Loop{
			MaxSteps: 40,
		},
		Progress: Progress{
			QueueCapacity: 256,
		},
		Artifacts: Artifacts{
			Root: defaultArtifactRoot(),
		},
		Session: Session{
			IdleTimeout: Duration(30 * time.Minute),
		},
	}
}

func defaultArtifactRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "artifacts"
	}
	return filepath.Join(home, ".webpilot", "artifacts")
}

// Load reads path, merges it over the defaults, applies environment
// overrides, and validates the result. An empty path loads defaults
// plus environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv layers environment variables over the file values.
func (c *Config) applyEnv() {
	if addr := os.Getenv("WEBPILOT_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if token := os.Getenv("WEBPILOT_AUTH_TOKEN"); token != "" {
		if c.Server.AuthTokens == nil {
			c.Server.AuthTokens = map[string]string{}
		}
		c.Server.AuthTokens[token] = "default"
	}
	if provider := os.Getenv("WEBPILOT_LLM_PROVIDER"); provider != "" {
		c.LLM.Provider = provider
	}
	if key := os.Getenv("WEBPILOT_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if model := os.Getenv("WEBPILOT_MODEL"); model != "" {
		c.LLM.Generation.Model = model
	}
	if root := os.Getenv("WEBPILOT_ARTIFACTS_ROOT"); root != "" {
		c.Artifacts.Root = root
	}
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	switch c.LLM.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("llm.provider must be %q or %q, got %q",
			ProviderGemini, ProviderOpenAI, c.LLM.Provider)
	}

	if c.Loop.MaxSteps <= 0 {
		return fmt.Errorf("loop.max_steps must be positive")
	}
	if c.Memory.SummarizationThreshold <= 0 {
		return fmt.Errorf("memory.summarization_threshold must be positive")
	}
	if c.Progress.QueueCapacity <= 0 {
		return fmt.Errorf("progress.queue_capacity must be positive")
	}
	if c.Browser.IdleTimeout <= 0 {
		return fmt.Errorf("browser.idle_timeout must be positive")
	}
	if c.Session.IdleTimeout <= 0 {
		return fmt.Errorf("session.idle_timeout must be positive")
	}
	if c.Artifacts.Root == "" {
		return fmt.Errorf("artifacts.root is required")
	}
	return nil
}
