package heartbeat

import (
	"errors"
	"sync"
	"time"

	"github.com/pulselink-protocol/pulselink-go/pkg/frame"
	"github.com/pulselink-protocol/pulselink-go/pkg/transport"
)

// Death reasons passed to the down callback.
var (
	// ErrPongTimeout indicates the remote peer stopped answering pings.
	ErrPongTimeout = errors.New("pong timeout: remote peer not responding")

	// ErrTransportClosed indicates the transport closed underneath the
	// monitor.
	ErrTransportClosed = errors.New("transport closed")
)

// State represents the heartbeat state of one connection.
type State uint8

const (
	// StateConnected indicates a healthy connection between probes.
	StateConnected State = iota

	// StateAwaitingPong indicates a ping is in flight and the pong
	// deadline is counting down.
	StateAwaitingPong

	// StateDead indicates the connection has been declared dead.
	// Terminal for this monitor instance.
	StateDead
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateConnected:
		return "CONNECTED"
	case StateAwaitingPong:
		return "AWAITING_PONG"
	case StateDead:
		return "DEAD"
	default:
		return "UNKNOWN"
	}
}

// Hooks are optional observability callbacks. They run on the monitor's
// event loop and must not block; queue or drop work instead.
type Hooks struct {
	// OnStateChange is called for every state transition.
	OnStateChange func(oldState, newState State)

	// OnPingSent is called after each locally initiated ping.
	OnPingSent func(nonce uint32)

	// OnPongReceived is called when a pong answers the pending ping.
	OnPongReceived func(nonce uint32, rtt time.Duration)

	// OnRemotePing is called when the peer probes us.
	OnRemotePing func(nonce uint32)

	// OnMalformedFrame is called for frames that fail to decode.
	// The frame is otherwise ignored.
	OnMalformedFrame func(err error)
}

// Stats is a snapshot of a monitor's counters.
type Stats struct {
	State               State
	LastPingSentAt      time.Time
	LastPongReceivedAt  time.Time
	ConsecutiveFailures int
	PingsSent           uint64
	PongsReceived       uint64
	LastRTT             time.Duration
}

// timerKind distinguishes the two countdowns.
type timerKind uint8

const (
	timerPing timerKind = iota
	timerPongDeadline
)

// timerEvent is a timer expiry tagged with the epoch at arming time.
type timerEvent struct {
	kind  timerKind
	epoch uint64
}

// frameBufferSize bounds queued incoming frames. Control traffic is tiny;
// a dropped frame is recovered by the next heartbeat cycle.
const frameBufferSize = 32

// Monitor drives the heartbeat state machine for exactly one transport
// instance. When the connection dies the monitor is discarded; it is never
// reused for a new transport.
type Monitor struct {
	config Config
	tr     transport.Transport
	down   func(reason error)

	sched Scheduler
	hooks Hooks

	frames   chan []byte
	timers   chan timerEvent
	closedCh chan error
	stopCh   chan struct{}
	done     chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once

	// Snapshot fields, guarded by mu. Written only by the event loop.
	mu                  sync.Mutex
	state               State
	lastPingSentAt      time.Time
	lastPongReceivedAt  time.Time
	consecutiveFailures int
	pingsSent           uint64
	pongsReceived       uint64
	lastRTT             time.Duration

	// Event-loop-only fields; no locking needed.
	epoch        uint64
	nonce        uint32
	pendingNonce uint32
	hasPending   bool
	timer        Timer
}

// NewMonitor creates a monitor bound to the given transport. The down
// callback is invoked exactly once if the connection is declared dead or
// the transport closes underneath the monitor; it is not invoked on Stop.
func NewMonitor(config Config, tr transport.Transport, down func(reason error)) (*Monitor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if down == nil {
		down = func(error) {}
	}

	return &Monitor{
		config:   config,
		tr:       tr,
		down:     down,
		sched:    NewSystemScheduler(),
		frames:   make(chan []byte, frameBufferSize),
		timers:   make(chan timerEvent, 4),
		closedCh: make(chan error, 1),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		state:    StateConnected,
	}, nil
}

// SetScheduler replaces the wall-clock scheduler. Must be called before
// Start.
func (m *Monitor) SetScheduler(s Scheduler) {
	m.sched = s
}

// SetHooks installs observability hooks. Must be called before Start.
func (m *Monitor) SetHooks(h Hooks) {
	m.hooks = h
}

// Start registers the transport callbacks, arms the ping timer and starts
// the event loop. Idempotent.
func (m *Monitor) Start() {
	m.startOnce.Do(func() {
		m.tr.OnFrame(func(data []byte) {
			// Drop on overflow; the next cycle recovers
			select {
			case m.frames <- data:
			default:
			}
		})
		m.tr.OnClose(func(err error) {
			select {
			case m.closedCh <- err:
			default:
			}
		})

		m.armTimer(timerPing, m.config.PingInterval)

		go m.loop()
	})
}

// Stop gracefully shuts the monitor down: timers are canceled, the
// transport is closed and no death notification is delivered. Idempotent;
// safe to call whether or not the monitor already died, and on a monitor
// that was never started (a later Start is then a no-op).
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	// Consuming the start once here means there is no loop to wait for
	// when Start was never called.
	m.startOnce.Do(func() {
		m.tr.Close()
		close(m.done)
	})
	<-m.done
}

// State returns the current heartbeat state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stats returns a snapshot of the monitor's counters.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		State:               m.state,
		LastPingSentAt:      m.lastPingSentAt,
		LastPongReceivedAt:  m.lastPongReceivedAt,
		ConsecutiveFailures: m.consecutiveFailures,
		PingsSent:           m.pingsSent,
		PongsReceived:       m.pongsReceived,
		LastRTT:             m.lastRTT,
	}
}

// loop is the single-consumer event loop. All mutations to connection
// state happen here, which serializes them without per-field locking.
func (m *Monitor) loop() {
	defer close(m.done)

	for {
		select {
		case <-m.stopCh:
			m.cancelTimer()
			m.tr.Close()
			return

		case err := <-m.closedCh:
			// Not self-initiated: the transport closed underneath us.
			// No further sends are attempted.
			m.cancelTimer()
			if m.State() == StateDead {
				return
			}
			reason := err
			if reason == nil {
				reason = ErrTransportClosed
			}
			m.setState(StateDead)
			m.down(reason)
			return

		case data := <-m.frames:
			m.handleFrame(data)

		case tev := <-m.timers:
			if tev.epoch != m.epoch {
				// Stale timer from before a cancel; ignore
				continue
			}
			switch tev.kind {
			case timerPing:
				m.handlePingTimer()
			case timerPongDeadline:
				if m.handlePongDeadline() {
					return
				}
			}
		}
	}
}

// handleFrame decodes and dispatches one incoming frame.
func (m *Monitor) handleFrame(data []byte) {
	f, err := frame.Decode(data)
	if err != nil {
		// Defensive: a noisy peer must not affect liveness state
		if m.hooks.OnMalformedFrame != nil {
			m.hooks.OnMalformedFrame(err)
		}
		return
	}

	switch f.Type {
	case frame.TypePing:
		m.handleRemotePing(f.Nonce)
	case frame.TypePong:
		m.handlePong(f.Nonce)
	}
}

// handleRemotePing answers the peer's probe immediately. This is
// independent of the local probing cycle: it neither changes state nor
// resets the local ping timer.
func (m *Monitor) handleRemotePing(nonce uint32) {
	data, err := frame.Encode(frame.NewPong(nonce))
	if err != nil {
		return
	}
	// Send failure surfaces through transport closure
	_ = m.tr.Send(data)

	if m.hooks.OnRemotePing != nil {
		m.hooks.OnRemotePing(nonce)
	}
}

// handlePong resolves the pending ping if the pong matches it.
func (m *Monitor) handlePong(nonce uint32) {
	if !m.hasPending {
		return
	}
	// A nonce-less pong (0) answers any pending ping; otherwise it must
	// match. Delayed pongs from earlier pings are ignored.
	if nonce != 0 && nonce != m.pendingNonce {
		return
	}

	m.cancelTimer()
	m.hasPending = false

	now := time.Now()
	m.mu.Lock()
	rtt := now.Sub(m.lastPingSentAt)
	m.lastPongReceivedAt = now
	m.lastRTT = rtt
	m.consecutiveFailures = 0
	m.pongsReceived++
	m.mu.Unlock()

	if m.hooks.OnPongReceived != nil {
		m.hooks.OnPongReceived(nonce, rtt)
	}

	m.setState(StateConnected)
	m.armTimer(timerPing, m.config.PingInterval)
}

// handlePingTimer fires the next probe.
func (m *Monitor) handlePingTimer() {
	if m.State() != StateConnected {
		return
	}
	m.sendPing()
	m.setState(StateAwaitingPong)
	m.armTimer(timerPongDeadline, m.config.PongTimeout)
}

// handlePongDeadline records a missed beat. Returns true when the
// connection has been declared dead and the loop should exit.
func (m *Monitor) handlePongDeadline() bool {
	if m.State() != StateAwaitingPong {
		return false
	}

	m.mu.Lock()
	m.consecutiveFailures++
	failures := m.consecutiveFailures
	m.mu.Unlock()

	if failures < m.config.MaxMissedBeats {
		// Beats left: re-probe within the same AWAITING_PONG state
		m.sendPing()
		m.armTimer(timerPongDeadline, m.config.PongTimeout)
		return false
	}

	m.cancelTimer()
	m.setState(StateDead)
	m.tr.Close()
	m.down(ErrPongTimeout)
	return true
}

// sendPing sends a probe with a fresh nonce and records it as pending.
func (m *Monitor) sendPing() {
	m.nonce++
	nonce := m.nonce

	data, err := frame.Encode(frame.NewPing(nonce))
	if err != nil {
		return
	}

	m.pendingNonce = nonce
	m.hasPending = true

	m.mu.Lock()
	m.lastPingSentAt = time.Now()
	m.pingsSent++
	m.mu.Unlock()

	// Send failure is left to the pong deadline: either the transport
	// reports closure first or the deadline declares the link dead.
	_ = m.tr.Send(data)

	if m.hooks.OnPingSent != nil {
		m.hooks.OnPingSent(nonce)
	}
}

// armTimer replaces the active countdown. The epoch bump invalidates any
// callback from a previously armed timer that is already in flight.
func (m *Monitor) armTimer(kind timerKind, d time.Duration) {
	m.cancelTimer()
	epoch := m.epoch
	m.timer = m.sched.After(d, func() {
		select {
		case m.timers <- timerEvent{kind: kind, epoch: epoch}:
		default:
		}
	})
}

// cancelTimer stops the active countdown and invalidates stale callbacks.
func (m *Monitor) cancelTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.epoch++
}

// setState applies a state transition and fires the state-change hook.
func (m *Monitor) setState(newState State) {
	m.mu.Lock()
	oldState := m.state
	if oldState == newState {
		m.mu.Unlock()
		return
	}
	m.state = newState
	m.mu.Unlock()

	if m.hooks.OnStateChange != nil {
		m.hooks.OnStateChange(oldState, newState)
	}
}
