package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pulselink-protocol/pulselink-go/pkg/heartbeat"
	"github.com/pulselink-protocol/pulselink-go/pkg/transport"
)

// Status represents the supervisor state.
type Status uint8

const (
	// StatusStopped indicates the supervisor is not running.
	StatusStopped Status = iota

	// StatusConnecting indicates the first connection attempt is in progress.
	StatusConnecting

	// StatusConnected indicates an active, monitored connection.
	StatusConnected

	// StatusReconnecting indicates a reconnection attempt is pending or
	// in progress.
	StatusReconnecting
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "STOPPED"
	case StatusConnecting:
		return "CONNECTING"
	case StatusConnected:
		return "CONNECTED"
	case StatusReconnecting:
		return "RECONNECTING"
	default:
		return "UNKNOWN"
	}
}

// StatusInfo is a snapshot of the supervisor state.
type StatusInfo struct {
	// State is the current supervisor status.
	State Status

	// ConnectionID identifies the current connection, if any.
	ConnectionID string

	// Attempt is the current reconnection attempt number.
	// Only meaningful while reconnecting.
	Attempt int

	// NextRetryAt is when the next connection attempt fires.
	// Only meaningful while reconnecting.
	NextRetryAt time.Time
}

// Hooks receive supervisor lifecycle notifications. All fields are
// optional. Hooks are invoked from the supervisor's run goroutine and
// must not block.
type Hooks struct {
	// OnStateChange is called on every status transition.
	OnStateChange func(oldStatus, newStatus Status)

	// OnReconnectAttempt is called when a reconnection delay starts.
	OnReconnectAttempt func(attempt int, delay time.Duration)

	// OnConnected is called after a connection is established and its
	// monitor started.
	OnConnected func(connectionID string)

	// OnDead is called when a monitored connection is declared dead.
	OnDead func(connectionID string, reason error)
}

// Supervisor owns one logical session: it opens transports, binds a
// heartbeat monitor to each, and drives reconnection with backoff when
// a connection dies. At most one connection is active at a time.
type Supervisor struct {
	mu sync.Mutex

	opener   transport.Opener
	hbConfig heartbeat.Config
	backoff  *Backoff

	// Current state
	status Status
	connID string

	// Reconnect progress, valid while status == StatusReconnecting
	attempt     int
	nextRetryAt time.Time

	hooks   Hooks
	hbHooks heartbeat.Hooks

	// Run loop lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSupervisor creates a supervisor for the given transport opener.
// Configuration errors are fatal at construction.
func NewSupervisor(opener transport.Opener, hbConfig heartbeat.Config, policy Policy) (*Supervisor, error) {
	if err := hbConfig.Validate(); err != nil {
		return nil, err
	}
	backoff, err := NewBackoff(policy)
	if err != nil {
		return nil, err
	}

	return &Supervisor{
		opener:   opener,
		hbConfig: hbConfig,
		backoff:  backoff,
		status:   StatusStopped,
	}, nil
}

// SetHooks sets the supervisor lifecycle hooks.
// Must be called before Start.
func (s *Supervisor) SetHooks(hooks Hooks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = hooks
}

// SetHeartbeatHooks sets the hooks applied to every heartbeat monitor
// the supervisor creates. Must be called before Start.
func (s *Supervisor) SetHeartbeatHooks(hooks heartbeat.Hooks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hbHooks = hooks
}

// Status returns a snapshot of the supervisor state.
func (s *Supervisor) Status() StatusInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := StatusInfo{
		State:        s.status,
		ConnectionID: s.connID,
	}
	if s.status == StatusReconnecting {
		info.Attempt = s.attempt
		info.NextRetryAt = s.nextRetryAt
	}
	return info
}

// Start activates the session. Idempotent; calling Start on a running
// supervisor is a no-op.
func (s *Supervisor) Start() {
	s.mu.Lock()
	if s.status != StatusStopped {
		s.mu.Unlock()
		return
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.backoff.Reset()

	// The transition off StatusStopped must happen under the same lock
	// as the check above, or a concurrent Start could spawn a second
	// run loop.
	old := s.status
	s.status = StatusConnecting
	hook := s.hooks.OnStateChange
	s.wg.Add(1)
	s.mu.Unlock()

	if hook != nil {
		hook(old, StatusConnecting)
	}

	go s.run()
}

// Stop deactivates the session: the current connection is shut down
// gracefully and any pending reconnection delay is cancelled.
// Idempotent; blocks until the run loop has exited.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if s.status == StatusStopped {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	s.setStatus(StatusStopped)
}

// run is the session loop: open, monitor, back off, repeat.
// It exits when the supervisor context is cancelled.
func (s *Supervisor) run() {
	defer s.wg.Done()

	for {
		tr, err := s.opener.Open(s.ctx)
		if s.ctx.Err() != nil {
			if tr != nil {
				tr.Close()
			}
			return
		}
		if err != nil {
			// Open failure feeds the same backoff loop as a dead
			// connection
			if !s.waitBackoff() {
				return
			}
			continue
		}

		if !s.monitor(tr) {
			return
		}
		if !s.waitBackoff() {
			return
		}
	}
}

// monitor binds a heartbeat monitor to the transport and blocks until
// the connection dies or the supervisor is stopped. Returns false when
// the run loop should exit.
func (s *Supervisor) monitor(tr transport.Transport) bool {
	connID := uuid.New().String()

	down := make(chan error, 1)
	m, err := heartbeat.NewMonitor(s.hbConfig, tr, func(reason error) {
		select {
		case down <- reason:
		default:
		}
	})
	if err != nil {
		// Config was validated at construction; treat like an open
		// failure
		tr.Close()
		return true
	}

	s.mu.Lock()
	s.connID = connID
	s.attempt = 0
	hbHooks := s.hbHooks
	hooks := s.hooks
	s.mu.Unlock()

	m.SetHooks(hbHooks)
	m.Start()

	s.backoff.Reset()
	s.setStatus(StatusConnected)
	if hooks.OnConnected != nil {
		hooks.OnConnected(connID)
	}

	select {
	case <-s.ctx.Done():
		// Graceful shutdown, no death notification
		m.Stop()
		return false

	case reason := <-down:
		if hooks.OnDead != nil {
			hooks.OnDead(connID, reason)
		}
		return true
	}
}

// waitBackoff sleeps for the next backoff delay. Returns false if the
// supervisor was stopped during the wait.
func (s *Supervisor) waitBackoff() bool {
	delay := s.backoff.Next()
	attempt := s.backoff.Attempts()

	s.mu.Lock()
	s.attempt = attempt
	s.nextRetryAt = time.Now().Add(delay)
	s.connID = ""
	hooks := s.hooks
	s.mu.Unlock()

	s.setStatus(StatusReconnecting)
	if hooks.OnReconnectAttempt != nil {
		hooks.OnReconnectAttempt(attempt, delay)
	}

	select {
	case <-s.ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}

// setStatus updates the status and fires the state change hook.
// No-op transitions are skipped.
func (s *Supervisor) setStatus(status Status) {
	s.mu.Lock()
	if s.status == status {
		s.mu.Unlock()
		return
	}
	old := s.status
	s.status = status
	hook := s.hooks.OnStateChange
	s.mu.Unlock()

	if hook != nil {
		hook(old, status)
	}
}
