// Package config loads the process-start configuration surface: selected
// model backend, credentials, circuit-breaker thresholds, tool-loop cap
// and timeouts. Configuration is read once at startup and never re-read.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration with YAML unmarshalling from strings like
// "30s" or "1m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// BackendConfig selects and parameterizes the text-generation backend.
type BackendConfig struct {
	// Provider is one of "openai", "anthropic", "mock".
	Provider string `yaml:"provider"`
	// Model is the provider-specific model identifier.
	Model string `yaml:"model"`
	// APIKeyEnv names the environment variable holding the credential.
	// Empty means the provider SDK's own default lookup.
	APIKeyEnv string `yaml:"api_key_env"`
	// Temperature passed through to the provider.
	Temperature float64 `yaml:"temperature"`
}

// BreakerConfig parameterizes the per-endpoint circuit breakers.
type BreakerConfig struct {
	// FailureThreshold trips the circuit after this many consecutive failures.
	FailureThreshold int `yaml:"failure_threshold"`
	// CoolDown is the open-state window before a half-open trial.
	CoolDown Duration `yaml:"cool_down"`
}

// LogConfig parameterizes the structured logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// Config is the full startup configuration.
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Breaker BreakerConfig `yaml:"breaker"`
	Log     LogConfig     `yaml:"log"`

	// ToolLoopCap bounds tool-dispatch iterations per orchestration.
	ToolLoopCap int `yaml:"tool_loop_cap"`
	// CallTimeout bounds each protocol call.
	CallTimeout Duration `yaml:"call_timeout"`
	// OrchestrationTimeout bounds a whole orchestration in wall-clock
	// time. Zero disables the loop-level deadline.
	OrchestrationTimeout Duration `yaml:"orchestration_timeout"`
	// ChunkSize bounds the payload size of streamed answer chunks, in runes.
	ChunkSize int `yaml:"chunk_size"`
	// Instructions is the standing system prompt prepended to every
	// orchestration.
	Instructions string `yaml:"instructions"`
}

// Default returns the baseline configuration used when no file is given.
func Default() Config {
	return Config{
		Backend: BackendConfig{Provider: "mock", Temperature: 0.7},
		Breaker: BreakerConfig{
			FailureThreshold: 3,
			CoolDown:         Duration(60 * time.Second),
		},
		Log:         LogConfig{Level: "info", Format: "json"},
		ToolLoopCap: 8,
		CallTimeout: Duration(30 * time.Second),
		ChunkSize:   512,
	}
}

// Load reads and validates a YAML configuration file, layered over
// Default so omitted fields keep their baseline values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects unusable configurations at load time.
func (c Config) Validate() error {
	switch c.Backend.Provider {
	case "openai", "anthropic", "mock":
	default:
		return fmt.Errorf("unknown backend provider %q", c.Backend.Provider)
	}
	if c.ToolLoopCap <= 0 {
		return fmt.Errorf("tool_loop_cap must be positive, got %d", c.ToolLoopCap)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("call_timeout must be positive")
	}
	if c.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("breaker failure_threshold must be positive")
	}
	if c.Breaker.CoolDown <= 0 {
		return fmt.Errorf("breaker cool_down must be positive")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive")
	}
	return nil
}

// APIKey resolves the configured credential, if any.
func (c Config) APIKey() string {
	if c.Backend.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Backend.APIKeyEnv)
}
