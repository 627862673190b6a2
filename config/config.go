// Package config loads tripgraph configuration from a YAML file with
// environment-variable overrides.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("TRIPGRAPH").
//	    Load()
//
// Precedence: defaults → YAML file → environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete tripgraph configuration.
type Config struct {
	LLM        LLMConfig        `yaml:"llm"`
	Amadeus    AmadeusConfig    `yaml:"amadeus"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Log        LogConfig        `yaml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// LLMConfig configures the chat-completion provider.
type LLMConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	// TokenBudget caps the history sent per request; 0 disables trimming.
	TokenBudget int `yaml:"token_budget"`
}

// AmadeusConfig configures the Amadeus self-service API client.
type AmadeusConfig struct {
	BaseURL      string        `yaml:"base_url"`
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	// RequestsPerSecond drives the client-side rate limiter.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// CheckpointConfig selects and configures the checkpoint backend.
type CheckpointConfig struct {
	// Backend: memory, redis, sqlite
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
	// SQLitePath is the database file; ":memory:" for ephemeral runs.
	SQLitePath string `yaml:"sqlite_path"`
}

// RedisConfig configures the Redis checkpoint store.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	PoolSize  int    `yaml:"pool_size"`
	KeyPrefix string `yaml:"key_prefix"`
}

// LogConfig configures zap.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `yaml:"level"`
	// Format: json, console
	Format string `yaml:"format"`
}

// MetricsConfig configures the optional Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// TelemetryConfig configures tracing.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			Temperature: 0.2,
			MaxTokens:   2048,
			Timeout:     60 * time.Second,
			MaxRetries:  3,
			TokenBudget: 24000,
		},
		Amadeus: AmadeusConfig{
			BaseURL:           "https://test.api.amadeus.com",
			Timeout:           30 * time.Second,
			MaxRetries:        3,
			RequestsPerSecond: 5,
		},
		Checkpoint: CheckpointConfig{
			Backend:    "memory",
			SQLitePath: "tripgraph.db",
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				PoolSize:  10,
				KeyPrefix: "tripgraph:",
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Addr: ":9091",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "tripgraph",
		},
	}
}

// Loader loads configuration with the documented precedence.
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader creates a loader with default settings.
func NewLoader() *Loader {
	return &Loader{envPrefix: "TRIPGRAPH"}
}

// WithConfigPath sets the YAML file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Load resolves the configuration.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.configPath != "" {
		data, err := os.ReadFile(l.configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	l.applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides selected fields from the environment. Secrets are the
// primary use case: keys rarely belong in the YAML file.
func (l *Loader) applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(l.envPrefix + "_" + key); ok {
			*dst = v
		}
	}
	setFloat := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(l.envPrefix + "_" + key); ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}

	setString("LLM_API_KEY", &cfg.LLM.APIKey)
	setString("LLM_BASE_URL", &cfg.LLM.BaseURL)
	setString("LLM_MODEL", &cfg.LLM.Model)
	setString("AMADEUS_CLIENT_ID", &cfg.Amadeus.ClientID)
	setString("AMADEUS_CLIENT_SECRET", &cfg.Amadeus.ClientSecret)
	setString("AMADEUS_BASE_URL", &cfg.Amadeus.BaseURL)
	setFloat("AMADEUS_RPS", &cfg.Amadeus.RequestsPerSecond)
	setString("CHECKPOINT_BACKEND", &cfg.Checkpoint.Backend)
	setString("REDIS_ADDR", &cfg.Checkpoint.Redis.Addr)
	setString("REDIS_PASSWORD", &cfg.Checkpoint.Redis.Password)
	setString("SQLITE_PATH", &cfg.Checkpoint.SQLitePath)
	setString("LOG_LEVEL", &cfg.Log.Level)
	setString("LOG_FORMAT", &cfg.Log.Format)
}

// Validate checks structural configuration. Credentials are deliberately
// not required here: the Amadeus client reports ErrAuth on first use so a
// tourism-only conversation can run without them.
func (c *Config) Validate() error {
	switch c.Checkpoint.Backend {
	case "memory", "redis", "sqlite":
	default:
		return fmt.Errorf("unknown checkpoint backend: %q", c.Checkpoint.Backend)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format: %q", c.Log.Format)
	}
	if c.Amadeus.RequestsPerSecond <= 0 {
		return fmt.Errorf("amadeus requests_per_second must be positive")
	}
	return nil
}
