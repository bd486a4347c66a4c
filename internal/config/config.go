// Package config loads liveness configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pulselink-protocol/pulselink-go/pkg/heartbeat"
	"github.com/pulselink-protocol/pulselink-go/pkg/session"
)

// Duration wraps time.Duration so YAML values like "30s" or "1m" parse
// directly.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// BackoffConfig holds the reconnection backoff settings.
type BackoffConfig struct {
	Base       Duration `yaml:"base"`
	Max        Duration `yaml:"max"`
	Multiplier float64  `yaml:"multiplier"`
	Jitter     *float64 `yaml:"jitter"`
}

// Config is the YAML configuration surface.
//
// All fields are optional; omitted ones take their defaults:
//
//	ping_interval: 30s
//	pong_timeout: 5s
//	max_missed_beats: 1
//	backoff:
//	  base: 1s
//	  max: 30s
//	  multiplier: 2
//	  jitter: 0.2
type Config struct {
	PingInterval   Duration      `yaml:"ping_interval"`
	PongTimeout    Duration      `yaml:"pong_timeout"`
	MaxMissedBeats int           `yaml:"max_missed_beats"`
	Backoff        BackoffConfig `yaml:"backoff"`
}

// Default returns a configuration with all defaults applied.
func Default() Config {
	var c Config
	c.applyDefaults()
	return c
}

// applyDefaults fills in zero-valued fields.
func (c *Config) applyDefaults() {
	if c.PingInterval == 0 {
		c.PingInterval = Duration(heartbeat.DefaultPingInterval)
	}
	if c.PongTimeout == 0 {
		c.PongTimeout = Duration(heartbeat.DefaultPongTimeout)
	}
	if c.MaxMissedBeats == 0 {
		c.MaxMissedBeats = heartbeat.DefaultMaxMissedBeats
	}
	if c.Backoff.Base == 0 {
		c.Backoff.Base = Duration(session.DefaultBaseDelay)
	}
	if c.Backoff.Max == 0 {
		c.Backoff.Max = Duration(session.DefaultMaxDelay)
	}
	if c.Backoff.Multiplier == 0 {
		c.Backoff.Multiplier = session.DefaultMultiplier
	}
	if c.Backoff.Jitter == nil {
		jitter := session.DefaultJitter
		c.Backoff.Jitter = &jitter
	}
}

// Heartbeat converts to a heartbeat configuration.
func (c Config) Heartbeat() heartbeat.Config {
	return heartbeat.Config{
		PingInterval:   time.Duration(c.PingInterval),
		PongTimeout:    time.Duration(c.PongTimeout),
		MaxMissedBeats: c.MaxMissedBeats,
	}
}

// Policy converts to a backoff policy.
func (c Config) Policy() session.Policy {
	return session.Policy{
		Base:       time.Duration(c.Backoff.Base),
		Max:        time.Duration(c.Backoff.Max),
		Multiplier: c.Backoff.Multiplier,
		Jitter:     *c.Backoff.Jitter,
	}
}

// Validate checks the resulting heartbeat and backoff settings.
func (c Config) Validate() error {
	if err := c.Heartbeat().Validate(); err != nil {
		return err
	}
	return c.Policy().Validate()
}

// Parse parses a configuration from YAML bytes, applies defaults, and
// validates the result.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}
