package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Logger  LoggerConfig  `yaml:"logger"`
	Tracer  TracerConfig  `yaml:"tracer"`
	Storage StorageConfig `yaml:"storage"`
	LLM     LLMConfig     `yaml:"llm"`
	Agents  AgentsConfig  `yaml:"agents"`
	Gateway GatewayConfig `yaml:"gateway"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
	Output string `yaml:"output"` // stdout, stderr, or file path
}

// TracerConfig holds OpenTelemetry tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // "stdout" or "noop"
}

// StorageConfig holds database settings.
type StorageConfig struct {
	Path string `yaml:"path"` // SQLite database path
	Seed bool   `yaml:"seed"` // seed demo accounts and offers on startup
}

// LLMConfig holds chat provider settings.
type LLMConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKeyEnv   string        `yaml:"api_key_env"` // env var holding the key
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	Breaker     bool          `yaml:"breaker"` // wrap provider with a circuit breaker
}

// AgentsConfig holds per-handler settings.
type AgentsConfig struct {
	MaxIterations int                    `yaml:"max_iterations"`
	PromptDir     string                 `yaml:"prompt_dir"` // .prompty files, optional
	Overrides     map[string]AgentConfig `yaml:"overrides,omitempty"`
}

// AgentConfig overrides settings for a single handler.
type AgentConfig struct {
	Model         string `yaml:"model,omitempty"`
	MaxIterations int    `yaml:"max_iterations,omitempty"`
	SystemPrompt  string `yaml:"system_prompt,omitempty"`
}

// GatewayConfig holds the HTTP boundary settings.
type GatewayConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Addr      string        `yaml:"addr"`
	RateLimit float64       `yaml:"rate_limit"` // requests/second, 0 = unlimited
	RateBurst int           `yaml:"rate_burst"`
	Tokens    []TokenConfig `yaml:"tokens"`
}

// TokenConfig maps a static bearer token to a resolved caller identity.
type TokenConfig struct {
	Token    string   `yaml:"token"`
	TenantID string   `yaml:"tenant_id"`
	UserID   string   `yaml:"user_id"`
	Roles    []string `yaml:"roles"`
}

// Default returns a configuration with sane defaults for local use.
func Default() *Config {
	return &Config{
		Logger: LoggerConfig{Level: "info", Format: "text", Output: "stderr"},
		Tracer: TracerConfig{Enabled: false, Exporter: "noop"},
		Storage: StorageConfig{
			Path: "teller.db",
			Seed: false,
		},
		LLM: LLMConfig{
			BaseURL:   "https://api.openai.com/v1",
			APIKeyEnv: "OPENAI_API_KEY",
			Model:     "gpt-4o-mini",
			MaxTokens: 1024,
			Timeout:   60 * time.Second,
			Breaker:   true,
		},
		Agents:  AgentsConfig{MaxIterations: 8},
		Gateway: GatewayConfig{Enabled: true, Addr: ":8080", RateLimit: 20, RateBurst: 40},
	}
}

// Load reads a YAML config file, applying defaults for unset fields.
// A missing file returns defaults without error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Logger.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logger.format: unsupported %q", c.Logger.Format)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path must not be empty")
	}
	if c.Agents.MaxIterations <= 0 {
		return fmt.Errorf("agents.max_iterations must be > 0")
	}
	if c.Gateway.Enabled && c.Gateway.Addr == "" {
		return fmt.Errorf("gateway.addr must be set when gateway is enabled")
	}
	for i, t := range c.Gateway.Tokens {
		if t.Token == "" {
			return fmt.Errorf("gateway.tokens[%d]: empty token", i)
		}
		if t.TenantID == "" || t.UserID == "" {
			return fmt.Errorf("gateway.tokens[%d]: tenant_id and user_id are required", i)
		}
	}
	return nil
}
