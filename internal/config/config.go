package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dyluth/pisim/internal/instance"
	"github.com/dyluth/pisim/internal/pipeline"
	"github.com/dyluth/pisim/pkg/sample"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when none is given explicitly.
const DefaultPath = "pisim.yml"

// Environment variables overriding the file.
const (
	EnvRedisURL = "PISIM_REDIS_URL"
	EnvInstance = "PISIM_INSTANCE"
)

// Defaults applied by Validate to unset fields.
const (
	DefaultInstance     = "default"
	DefaultEmitInterval = 100 * time.Millisecond
	DefaultPollInterval = time.Second
)

// PisimConfig represents the top-level pisim.yml configuration
type PisimConfig struct {
	Version       string             `yaml:"version"`
	Instance      string             `yaml:"instance,omitempty"`
	RedisURL      string             `yaml:"redis_url,omitempty"`
	PrecisionBits int                `yaml:"precision_bits,omitempty"` // B; default 32
	EmitInterval  *time.Duration     `yaml:"emit_interval,omitempty"`  // Delay between samples; default 100ms
	Seed          uint64             `yaml:"seed,omitempty"`           // 0 = seed from the clock
	PeerTimeout   time.Duration      `yaml:"peer_timeout,omitempty"`   // 0 = block forever
	PollInterval  time.Duration      `yaml:"poll_interval,omitempty"`
	HealthPort    int                `yaml:"health_port,omitempty"` // 0 = no health server
	Endpoints     pipeline.Endpoints `yaml:"endpoints,omitempty"`
}

// Default returns a configuration with every default applied.
func Default() *PisimConfig {
	c := &PisimConfig{Version: "1.0"}
	// Defaults only; cannot fail
	_ = c.Validate()
	return c
}

// Validate applies defaults and performs strict validation on the configuration
func (c *PisimConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Instance == "" {
		c.Instance = DefaultInstance
	}
	if err := instance.ValidateName(c.Instance); err != nil {
		return err
	}

	if c.RedisURL == "" {
		c.RedisURL = instance.DefaultRedisURL()
	}

	if c.PrecisionBits == 0 {
		c.PrecisionBits = sample.DefaultBits
	}
	if err := sample.ValidateBits(c.PrecisionBits); err != nil {
		return fmt.Errorf("precision_bits: %w", err)
	}

	if c.EmitInterval == nil {
		d := DefaultEmitInterval
		c.EmitInterval = &d
	}
	if *c.EmitInterval < 0 {
		return fmt.Errorf("emit_interval must be >= 0, got %v", *c.EmitInterval)
	}

	if c.PeerTimeout < 0 {
		return fmt.Errorf("peer_timeout must be >= 0 (0 = block forever), got %v", c.PeerTimeout)
	}

	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	// Redis BLPOP timeouts have whole-second resolution
	if c.PollInterval < time.Second {
		return fmt.Errorf("poll_interval must be at least 1s, got %v", c.PollInterval)
	}

	if c.HealthPort < 0 || c.HealthPort > 65535 {
		return fmt.Errorf("health_port out of range: %d", c.HealthPort)
	}

	return c.validateEndpoints()
}

func (c *PisimConfig) validateEndpoints() error {
	defaults := pipeline.DefaultEndpoints()
	fields := []struct {
		key   string
		value *string
		def   string
	}{
		{"control", &c.Endpoints.Control, defaults.Control},
		{"samples", &c.Endpoints.Samples, defaults.Samples},
		{"oracle", &c.Endpoints.Oracle, defaults.Oracle},
		{"decisions", &c.Endpoints.Decisions, defaults.Decisions},
		{"estimates", &c.Endpoints.Estimates, defaults.Estimates},
	}

	seen := make(map[string]string) // endpoint name → key
	for _, f := range fields {
		if *f.value == "" {
			*f.value = f.def
		}
		if err := instance.ValidateName(*f.value); err != nil {
			return fmt.Errorf("endpoints.%s: %w", f.key, err)
		}
	}

	// Queues and services share one namespace per kind; the broadcast has its own
	for _, f := range []struct{ key, value string }{
		{"control", c.Endpoints.Control},
		{"decisions", c.Endpoints.Decisions},
		{"estimates", c.Endpoints.Estimates},
	} {
		if other, exists := seen[f.value]; exists {
			return fmt.Errorf("endpoints.%s and endpoints.%s both use queue '%s'", other, f.key, f.value)
		}
		seen[f.value] = f.key
	}

	return nil
}

// ApplyEnv overrides fields from PISIM_* environment variables.
func (c *PisimConfig) ApplyEnv() {
	if v := os.Getenv(EnvRedisURL); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv(EnvInstance); v != "" {
		c.Instance = v
	}
}

// Load reads and validates pisim.yml from the specified path
func Load(path string) (*PisimConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config PisimConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.ApplyEnv()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadOrDefault loads path when it exists. A missing file is only an error
// when the path was given explicitly.
func LoadOrDefault(path string, explicit bool) (*PisimConfig, error) {
	if path == "" {
		path = DefaultPath
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !explicit {
		config := Default()
		config.ApplyEnv()
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return config, nil
	}

	return Load(path)
}

// Settings converts the configuration into role settings.
func (c *PisimConfig) Settings() pipeline.Settings {
	return pipeline.Settings{
		Instance:     c.Instance,
		Bits:         c.PrecisionBits,
		EmitInterval: *c.EmitInterval,
		Seed:         c.Seed,
	}
}
