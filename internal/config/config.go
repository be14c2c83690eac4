package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the broker's YAML configuration shape, loaded once at startup by
// cmd/brokerd.
type Config struct {
	Debug      bool     `yaml:"debug"`
	Transports []string `yaml:"transports"`
	Defaults   Defaults `yaml:"defaults"`
}

// Defaults carries broker-wide server_exec_ctx fallback values for
// invocation_timeout, execution_timeout, and oneway. Load parses and
// defaults them, but nothing passes them on to request decoding: a request
// that omits these fields always gets internal/frame's
// DecodeServerExecContext fallback of 5s/5s/false, whatever this section says.
type Defaults struct {
	InvocationTimeoutSeconds float64 `yaml:"invocation_timeout_seconds"`
	ExecutionTimeoutSeconds  float64 `yaml:"execution_timeout_seconds"`
	Oneway                   bool    `yaml:"oneway"`
}

// InvocationTimeout returns Defaults.InvocationTimeoutSeconds as a Duration.
func (d Defaults) InvocationTimeout() time.Duration {
	return time.Duration(d.InvocationTimeoutSeconds * float64(time.Second))
}

// ExecutionTimeout returns Defaults.ExecutionTimeoutSeconds as a Duration.
func (d Defaults) ExecutionTimeout() time.Duration {
	return time.Duration(d.ExecutionTimeoutSeconds * float64(time.Second))
}

// defaultTransport is used when a config file declares no transports at all.
const defaultTransport = "tcp://:9010"

// Load reads and parses filename, filling in the documented defaults for any
// field the file leaves zero-valued.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if len(cfg.Transports) == 0 {
		cfg.Transports = []string{defaultTransport}
	}
	if cfg.Defaults.InvocationTimeoutSeconds == 0 {
		cfg.Defaults.InvocationTimeoutSeconds = 5
	}
	if cfg.Defaults.ExecutionTimeoutSeconds == 0 {
		cfg.Defaults.ExecutionTimeoutSeconds = 5
	}

	if cfg.Defaults.InvocationTimeoutSeconds < 0 {
		return nil, fmt.Errorf("invocation_timeout_seconds cannot be negative: %v", cfg.Defaults.InvocationTimeoutSeconds)
	}
	if cfg.Defaults.ExecutionTimeoutSeconds < 0 {
		return nil, fmt.Errorf("execution_timeout_seconds cannot be negative: %v", cfg.Defaults.ExecutionTimeoutSeconds)
	}

	return &cfg, nil
}

// Default returns the hardcoded configuration used when no config file is
// found at all, matching the teacher's cmd/orchestrator fallback-to-defaults
// behavior.
func Default() *Config {
	return &Config{
		Transports: []string{defaultTransport},
		Defaults:   Defaults{InvocationTimeoutSeconds: 5, ExecutionTimeoutSeconds: 5, Oneway: false},
	}
}
