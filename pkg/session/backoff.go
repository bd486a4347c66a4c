package session

import (
	"errors"
	"math/rand"
	"sync"
	"time"
)

// Default backoff parameters.
const (
	// DefaultBaseDelay is the initial reconnection delay.
	DefaultBaseDelay = 1 * time.Second

	// DefaultMaxDelay is the maximum reconnection delay.
	DefaultMaxDelay = 30 * time.Second

	// DefaultMultiplier is the factor by which the delay grows.
	DefaultMultiplier = 2.0

	// DefaultJitter is the default jitter fraction.
	DefaultJitter = 0.2
)

// Policy validation errors.
var (
	ErrInvalidBaseDelay  = errors.New("base delay must be positive")
	ErrInvalidMaxDelay   = errors.New("max delay must be >= base delay")
	ErrInvalidMultiplier = errors.New("multiplier must be >= 1")
	ErrInvalidJitter     = errors.New("jitter must be in [0, 1]")
)

// Policy defines the reconnection backoff parameters.
//
// The pre-jitter delay for attempt n is min(Max, Base * Multiplier^n).
// Jitter then spreads each delay randomly within +/- Jitter of that
// value so that many clients recovering from the same outage do not
// retry in lockstep.
type Policy struct {
	Base       time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

// DefaultPolicy returns a policy with the default parameters.
func DefaultPolicy() Policy {
	return Policy{
		Base:       DefaultBaseDelay,
		Max:        DefaultMaxDelay,
		Multiplier: DefaultMultiplier,
		Jitter:     DefaultJitter,
	}
}

// Validate checks the policy parameters. Invalid values are rejected,
// never clamped.
func (p Policy) Validate() error {
	if p.Base <= 0 {
		return ErrInvalidBaseDelay
	}
	if p.Max < p.Base {
		return ErrInvalidMaxDelay
	}
	if p.Multiplier < 1 {
		return ErrInvalidMultiplier
	}
	if p.Jitter < 0 || p.Jitter > 1 {
		return ErrInvalidJitter
	}
	return nil
}

// Backoff calculates exponential backoff delays with jitter.
type Backoff struct {
	mu sync.Mutex

	// Current backoff delay (before jitter)
	current time.Duration

	policy Policy

	// Attempt counter
	attempts int

	// Random source for jitter
	rng *rand.Rand
}

// NewBackoff creates a backoff calculator for the given policy.
func NewBackoff(policy Policy) (*Backoff, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	return &Backoff{
		current: policy.Base,
		policy:  policy,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Next returns the next backoff delay (with jitter) and advances the backoff.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.addJitter(b.current)

	// Advance to next backoff value
	b.attempts++
	next := time.Duration(float64(b.current) * b.policy.Multiplier)
	if next > b.policy.Max {
		next = b.policy.Max
	}
	b.current = next

	return delay
}

// Peek returns the current backoff delay without advancing.
func (b *Backoff) Peek() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addJitter(b.current)
}

// Reset resets the backoff to initial values.
// Call this after a successful connection.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.policy.Base
	b.attempts = 0
}

// Attempts returns the number of backoff attempts since last reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Current returns the current base backoff (without jitter).
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// addJitter spreads a delay randomly within +/- the jitter fraction.
func (b *Backoff) addJitter(d time.Duration) time.Duration {
	if b.policy.Jitter <= 0 {
		return d
	}
	offset := b.policy.Jitter * (2*b.rng.Float64() - 1)
	return time.Duration(float64(d) * (1 + offset))
}
