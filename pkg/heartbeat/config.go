package heartbeat

import (
	"errors"
	"time"
)

// Heartbeat defaults.
const (
	// DefaultPingInterval is the default interval between pings.
	DefaultPingInterval = 30 * time.Second

	// DefaultPongTimeout is the default deadline for a pong reply.
	DefaultPongTimeout = 5 * time.Second

	// DefaultMaxMissedBeats is the default number of unanswered pings
	// before the connection is declared dead.
	DefaultMaxMissedBeats = 1
)

// Configuration errors.
var (
	ErrInvalidPingInterval   = errors.New("ping interval must be positive")
	ErrInvalidPongTimeout    = errors.New("pong timeout must be positive")
	ErrInvalidMaxMissedBeats = errors.New("max missed beats must be at least 1")
)

// Config configures heartbeat behavior. Config is immutable once a
// monitor is constructed from it.
type Config struct {
	// PingInterval is the interval between pings.
	PingInterval time.Duration

	// PongTimeout is the deadline for a pong reply to a sent ping.
	// Keeping it at or below PingInterval gives early detection; larger
	// values are accepted but delay detection accordingly.
	PongTimeout time.Duration

	// MaxMissedBeats is the number of consecutive unanswered pings
	// tolerated before the connection is declared dead.
	MaxMissedBeats int
}

// DefaultConfig returns the default heartbeat configuration.
func DefaultConfig() Config {
	return Config{
		PingInterval:   DefaultPingInterval,
		PongTimeout:    DefaultPongTimeout,
		MaxMissedBeats: DefaultMaxMissedBeats,
	}
}

// Validate checks the configuration. Invalid values are rejected at
// construction time, never clamped.
func (c Config) Validate() error {
	if c.PingInterval <= 0 {
		return ErrInvalidPingInterval
	}
	if c.PongTimeout <= 0 {
		return ErrInvalidPongTimeout
	}
	if c.MaxMissedBeats < 1 {
		return ErrInvalidMaxMissedBeats
	}
	return nil
}

// DetectionDelay returns the worst-case time from an unanswered ping to
// the DEAD declaration: PongTimeout * MaxMissedBeats.
func (c Config) DetectionDelay() time.Duration {
	return c.PongTimeout * time.Duration(c.MaxMissedBeats)
}
