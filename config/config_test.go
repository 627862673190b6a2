package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Checkpoint.Backend)
	assert.Equal(t, "https://test.api.amadeus.com", cfg.Amadeus.BaseURL)
	assert.Equal(t, 3, cfg.Amadeus.MaxRetries)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
llm:
  model: gpt-4o
checkpoint:
  backend: sqlite
  sqlite_path: ":memory:"
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, "sqlite", cfg.Checkpoint.Backend)
	assert.Equal(t, ":memory:", cfg.Checkpoint.SQLitePath)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched sections keep defaults.
	assert.Equal(t, "https://api.openai.com/v1", cfg.LLM.BaseURL)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	t.Setenv("TRIPGRAPH_AMADEUS_CLIENT_ID", "env-key")
	t.Setenv("TRIPGRAPH_AMADEUS_CLIENT_SECRET", "env-secret")
	t.Setenv("TRIPGRAPH_CHECKPOINT_BACKEND", "redis")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Amadeus.ClientID)
	assert.Equal(t, "env-secret", cfg.Amadeus.ClientSecret)
	assert.Equal(t, "redis", cfg.Checkpoint.Backend)
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad backend", func(c *Config) { c.Checkpoint.Backend = "mongo" }},
		{"bad level", func(c *Config) { c.Log.Level = "verbose" }},
		{"bad format", func(c *Config) { c.Log.Format = "logfmt" }},
		{"zero rps", func(c *Config) { c.Amadeus.RequestsPerSecond = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	assert.Error(t, err)
}
