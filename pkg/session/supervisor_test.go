package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pulselink-protocol/pulselink-go/pkg/heartbeat"
	"github.com/pulselink-protocol/pulselink-go/pkg/transport"
)

// stubTransport is an in-memory Transport for supervisor tests. It
// accepts sends and lets the test simulate remote closure.
type stubTransport struct {
	mu      sync.Mutex
	onClose func(error)
	closed  bool
}

func (s *stubTransport) Send(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return transport.ErrConnClosed
	}
	return nil
}

func (s *stubTransport) OnFrame(fn func([]byte)) {}

func (s *stubTransport) OnClose(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClose = fn
}

func (s *stubTransport) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubTransport) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *stubTransport) remoteClose(err error) {
	s.mu.Lock()
	s.closed = true
	fn := s.onClose
	s.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// stubOpener hands out stub transports and records every open attempt.
type stubOpener struct {
	mu         sync.Mutex
	transports []*stubTransport
	failures   int
	opens      atomic.Int32
}

func (o *stubOpener) Open(ctx context.Context) (transport.Transport, error) {
	o.opens.Add(1)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failures > 0 {
		o.failures--
		return nil, errors.New("connection refused")
	}
	tr := &stubTransport{}
	o.transports = append(o.transports, tr)
	return tr, nil
}

func (o *stubOpener) latest() *stubTransport {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.transports) == 0 {
		return nil
	}
	return o.transports[len(o.transports)-1]
}

// quietConfig keeps the monitor from probing during supervisor tests.
func quietConfig() heartbeat.Config {
	return heartbeat.Config{
		PingInterval:   time.Hour,
		PongTimeout:    time.Minute,
		MaxMissedBeats: 1,
	}
}

// fastPolicy keeps reconnection delays short for tests.
func fastPolicy() Policy {
	return Policy{
		Base:       10 * time.Millisecond,
		Max:        50 * time.Millisecond,
		Multiplier: 2,
		Jitter:     0,
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestNewSupervisor(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		s, err := NewSupervisor(&stubOpener{}, quietConfig(), fastPolicy())
		if err != nil {
			t.Fatalf("NewSupervisor() error = %v", err)
		}
		if got := s.Status().State; got != StatusStopped {
			t.Errorf("initial status = %v, want STOPPED", got)
		}
	})

	t.Run("InvalidHeartbeatConfig", func(t *testing.T) {
		_, err := NewSupervisor(&stubOpener{}, heartbeat.Config{}, fastPolicy())
		if !errors.Is(err, heartbeat.ErrInvalidPingInterval) {
			t.Errorf("NewSupervisor() error = %v, want ErrInvalidPingInterval", err)
		}
	})

	t.Run("InvalidPolicy", func(t *testing.T) {
		_, err := NewSupervisor(&stubOpener{}, quietConfig(), Policy{})
		if !errors.Is(err, ErrInvalidBaseDelay) {
			t.Errorf("NewSupervisor() error = %v, want ErrInvalidBaseDelay", err)
		}
	})
}

func TestSupervisorConnects(t *testing.T) {
	opener := &stubOpener{}
	s, err := NewSupervisor(opener, quietConfig(), fastPolicy())
	if err != nil {
		t.Fatalf("NewSupervisor() error = %v", err)
	}

	connected := make(chan string, 1)
	s.SetHooks(Hooks{
		OnConnected: func(id string) { connected <- id },
	})

	s.Start()
	defer s.Stop()

	select {
	case id := <-connected:
		if id == "" {
			t.Error("OnConnected with empty connection id")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnConnected not invoked")
	}

	info := s.Status()
	if info.State != StatusConnected {
		t.Errorf("status = %v, want CONNECTED", info.State)
	}
	if info.ConnectionID == "" {
		t.Error("ConnectionID empty while connected")
	}
	if got := opener.opens.Load(); got != 1 {
		t.Errorf("opens = %d, want 1", got)
	}
}

func TestSupervisorReconnectsOnDeath(t *testing.T) {
	opener := &stubOpener{}
	s, err := NewSupervisor(opener, quietConfig(), fastPolicy())
	if err != nil {
		t.Fatalf("NewSupervisor() error = %v", err)
	}

	type death struct {
		id     string
		reason error
	}
	deaths := make(chan death, 1)
	var reconnects atomic.Int32
	s.SetHooks(Hooks{
		OnDead: func(id string, reason error) {
			deaths <- death{id, reason}
		},
		OnReconnectAttempt: func(attempt int, delay time.Duration) {
			reconnects.Add(1)
		},
	})

	s.Start()
	defer s.Stop()

	waitFor(t, func() bool { return s.Status().State == StatusConnected },
		"initial connection not established")
	firstID := s.Status().ConnectionID

	cause := errors.New("connection reset by peer")
	opener.latest().remoteClose(cause)

	select {
	case d := <-deaths:
		if d.id != firstID {
			t.Errorf("OnDead connection id = %q, want %q", d.id, firstID)
		}
		if !errors.Is(d.reason, cause) {
			t.Errorf("OnDead reason = %v, want %v", d.reason, cause)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnDead not invoked")
	}

	waitFor(t, func() bool {
		info := s.Status()
		return info.State == StatusConnected && info.ConnectionID != firstID
	}, "did not reconnect after death")

	if got := opener.opens.Load(); got != 2 {
		t.Errorf("opens = %d, want 2", got)
	}
	if reconnects.Load() == 0 {
		t.Error("OnReconnectAttempt not invoked")
	}
}

func TestSupervisorBacksOffOnOpenFailure(t *testing.T) {
	opener := &stubOpener{failures: 2}
	s, err := NewSupervisor(opener, quietConfig(), fastPolicy())
	if err != nil {
		t.Fatalf("NewSupervisor() error = %v", err)
	}

	var mu sync.Mutex
	var delays []time.Duration
	s.SetHooks(Hooks{
		OnReconnectAttempt: func(attempt int, delay time.Duration) {
			mu.Lock()
			delays = append(delays, delay)
			mu.Unlock()
		},
	})

	s.Start()
	defer s.Stop()

	waitFor(t, func() bool { return s.Status().State == StatusConnected },
		"never connected through failures")

	if got := opener.opens.Load(); got != 3 {
		t.Errorf("opens = %d, want 3", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(delays) != 2 {
		t.Fatalf("got %d reconnect attempts, want 2", len(delays))
	}
	if delays[1] <= delays[0] {
		t.Errorf("delays not increasing: %v then %v", delays[0], delays[1])
	}
}

func TestSupervisorReportsReconnecting(t *testing.T) {
	// Every open fails, long delay: supervisor sits in RECONNECTING
	opener := &stubOpener{failures: 1000}
	policy := fastPolicy()
	policy.Base = time.Minute
	policy.Max = time.Minute

	s, err := NewSupervisor(opener, quietConfig(), policy)
	if err != nil {
		t.Fatalf("NewSupervisor() error = %v", err)
	}
	s.Start()
	defer s.Stop()

	waitFor(t, func() bool { return s.Status().State == StatusReconnecting },
		"status never reached RECONNECTING")

	info := s.Status()
	if info.Attempt < 1 {
		t.Errorf("Attempt = %d, want >= 1", info.Attempt)
	}
	if !info.NextRetryAt.After(time.Now()) {
		t.Errorf("NextRetryAt = %v, want in the future", info.NextRetryAt)
	}
}

func TestSupervisorStopCancelsBackoffWait(t *testing.T) {
	opener := &stubOpener{failures: 1000}
	policy := fastPolicy()
	policy.Base = time.Minute
	policy.Max = time.Minute

	s, err := NewSupervisor(opener, quietConfig(), policy)
	if err != nil {
		t.Fatalf("NewSupervisor() error = %v", err)
	}
	s.Start()

	waitFor(t, func() bool { return s.Status().State == StatusReconnecting },
		"status never reached RECONNECTING")

	start := time.Now()
	s.Stop()
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Stop() took %v, backoff wait not cancelled", elapsed)
	}
	if got := s.Status().State; got != StatusStopped {
		t.Errorf("status = %v after Stop, want STOPPED", got)
	}
}

func TestSupervisorStopClosesConnection(t *testing.T) {
	opener := &stubOpener{}
	s, err := NewSupervisor(opener, quietConfig(), fastPolicy())
	if err != nil {
		t.Fatalf("NewSupervisor() error = %v", err)
	}

	deadCalled := make(chan struct{}, 1)
	s.SetHooks(Hooks{
		OnDead: func(string, error) { deadCalled <- struct{}{} },
	})

	s.Start()
	waitFor(t, func() bool { return s.Status().State == StatusConnected },
		"connection not established")

	s.Stop()

	if tr := opener.latest(); !tr.isClosed() {
		t.Error("transport not closed on Stop")
	}
	select {
	case <-deadCalled:
		t.Error("OnDead invoked on graceful stop")
	default:
	}
	if got := opener.opens.Load(); got != 1 {
		t.Errorf("opens = %d after Stop, want 1 (no reconnect)", got)
	}
}

func TestSupervisorIdempotent(t *testing.T) {
	opener := &stubOpener{}
	s, err := NewSupervisor(opener, quietConfig(), fastPolicy())
	if err != nil {
		t.Fatalf("NewSupervisor() error = %v", err)
	}

	s.Start()
	s.Start() // No-op
	waitFor(t, func() bool { return s.Status().State == StatusConnected },
		"connection not established")

	if got := opener.opens.Load(); got != 1 {
		t.Errorf("opens = %d after double Start, want 1", got)
	}

	s.Stop()
	s.Stop() // No-op

	if got := s.Status().State; got != StatusStopped {
		t.Errorf("status = %v, want STOPPED", got)
	}
}

func TestSupervisorConcurrentStart(t *testing.T) {
	opener := &stubOpener{}
	s, err := NewSupervisor(opener, quietConfig(), fastPolicy())
	if err != nil {
		t.Fatalf("NewSupervisor() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Start()
		}()
	}
	wg.Wait()

	waitFor(t, func() bool { return s.Status().State == StatusConnected },
		"connection not established")

	// A second run loop would show up as a second open
	time.Sleep(50 * time.Millisecond)
	if got := opener.opens.Load(); got != 1 {
		t.Errorf("opens = %d after racing Starts, want 1", got)
	}

	s.Stop()
	if got := opener.opens.Load(); got != 1 {
		t.Errorf("opens = %d after Stop, want 1 (leaked run loop)", got)
	}
}

func TestSupervisorRestart(t *testing.T) {
	opener := &stubOpener{}
	s, err := NewSupervisor(opener, quietConfig(), fastPolicy())
	if err != nil {
		t.Fatalf("NewSupervisor() error = %v", err)
	}

	s.Start()
	waitFor(t, func() bool { return s.Status().State == StatusConnected },
		"first connection not established")
	s.Stop()

	s.Start()
	waitFor(t, func() bool { return s.Status().State == StatusConnected },
		"second connection not established")
	defer s.Stop()

	if got := opener.opens.Load(); got != 2 {
		t.Errorf("opens = %d after restart, want 2", got)
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusStopped, "STOPPED"},
		{StatusConnecting, "CONNECTING"},
		{StatusConnected, "CONNECTED"},
		{StatusReconnecting, "RECONNECTING"},
		{Status(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.status.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
