package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parley.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "mock", cfg.Backend.Provider)
	assert.Equal(t, 3, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 60*time.Second, cfg.Breaker.CoolDown.Std())
	assert.Equal(t, 8, cfg.ToolLoopCap)
	assert.Equal(t, 30*time.Second, cfg.CallTimeout.Std())
	assert.Equal(t, 512, cfg.ChunkSize)
	require.NoError(t, cfg.Validate())
}

func TestLoadLayersOverDefaults(t *testing.T) {
	path := writeConfig(t, `
backend:
  provider: openai
  model: gpt-4o
  api_key_env: PARLEY_API_KEY
tool_loop_cap: 4
call_timeout: 10s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Backend.Provider)
	assert.Equal(t, "gpt-4o", cfg.Backend.Model)
	assert.Equal(t, 4, cfg.ToolLoopCap)
	assert.Equal(t, 10*time.Second, cfg.CallTimeout.Std())

	// Omitted fields keep their baseline values.
	assert.Equal(t, 3, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 512, cfg.ChunkSize)
}

func TestLoadDurations(t *testing.T) {
	path := writeConfig(t, `
breaker:
  failure_threshold: 5
  cool_down: 2m
orchestration_timeout: 90s
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.Breaker.CoolDown.Std())
	assert.Equal(t, 90*time.Second, cfg.OrchestrationTimeout.Std())
}

func TestLoadInvalidDuration(t *testing.T) {
	path := writeConfig(t, "call_timeout: soon\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Backend.Provider = "cohere" },
			wantErr: "unknown backend provider",
		},
		{
			name:    "non-positive tool loop cap",
			mutate:  func(c *Config) { c.ToolLoopCap = 0 },
			wantErr: "tool_loop_cap",
		},
		{
			name:    "non-positive call timeout",
			mutate:  func(c *Config) { c.CallTimeout = 0 },
			wantErr: "call_timeout",
		},
		{
			name:    "non-positive breaker threshold",
			mutate:  func(c *Config) { c.Breaker.FailureThreshold = -1 },
			wantErr: "failure_threshold",
		},
		{
			name:    "non-positive cool down",
			mutate:  func(c *Config) { c.Breaker.CoolDown = 0 },
			wantErr: "cool_down",
		},
		{
			name:    "non-positive chunk size",
			mutate:  func(c *Config) { c.ChunkSize = 0 },
			wantErr: "chunk_size",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAPIKey(t *testing.T) {
	t.Setenv("PARLEY_TEST_KEY", "sk-test")

	cfg := Default()
	assert.Empty(t, cfg.APIKey())

	cfg.Backend.APIKeyEnv = "PARLEY_TEST_KEY"
	assert.Equal(t, "sk-test", cfg.APIKey())
}
