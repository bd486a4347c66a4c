package pulselink_test

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pulselink-protocol/pulselink-go/pkg/frame"
	"github.com/pulselink-protocol/pulselink-go/pkg/heartbeat"
	"github.com/pulselink-protocol/pulselink-go/pkg/session"
	"github.com/pulselink-protocol/pulselink-go/pkg/transport"
)

// pongServer is a minimal TCP peer for end-to-end tests. It answers
// every ping with a matching pong unless silenced.
type pongServer struct {
	listener net.Listener

	mu     sync.Mutex
	conns  []net.Conn
	silent bool
}

func newPongServer(t *testing.T) *pongServer {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	s := &pongServer{listener: listener}
	go s.acceptLoop()
	t.Cleanup(s.close)
	return s
}

func (s *pongServer) addr() string {
	return s.listener.Addr().String()
}

func (s *pongServer) setSilent(silent bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.silent = silent
}

// dropConnections closes every live connection without stopping the
// listener, simulating an abrupt network failure.
func (s *pongServer) dropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
	s.conns = nil
}

func (s *pongServer) close() {
	s.listener.Close()
	s.dropConnections()
}

func (s *pongServer) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		go s.serve(conn)
	}
}

func (s *pongServer) serve(conn net.Conn) {
	framer := transport.NewFramer(conn)
	for {
		data, err := framer.ReadFrame()
		if err != nil {
			return
		}

		cf, err := frame.Decode(data)
		if err != nil || cf.Type != frame.TypePing {
			continue
		}

		s.mu.Lock()
		silent := s.silent
		s.mu.Unlock()
		if silent {
			continue
		}

		pong, err := frame.Encode(frame.NewPong(cf.Nonce))
		if err != nil {
			return
		}
		if err := framer.WriteFrame(pong); err != nil {
			return
		}
	}
}

// fastConfig probes aggressively so tests finish quickly.
func fastConfig() heartbeat.Config {
	return heartbeat.Config{
		PingInterval:   50 * time.Millisecond,
		PongTimeout:    200 * time.Millisecond,
		MaxMissedBeats: 1,
	}
}

func fastPolicy() session.Policy {
	return session.Policy{
		Base:       20 * time.Millisecond,
		Max:        100 * time.Millisecond,
		Multiplier: 2,
		Jitter:     0,
	}
}

func newTestSupervisor(t *testing.T, addr string) *session.Supervisor {
	t.Helper()
	dialer, err := transport.NewDialer(transport.DialerConfig{
		Address:        addr,
		ConnectTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to create dialer: %v", err)
	}

	sup, err := session.NewSupervisor(dialer, fastConfig(), fastPolicy())
	if err != nil {
		t.Fatalf("Failed to create supervisor: %v", err)
	}
	return sup
}

func TestE2E_HeartbeatOverTCP(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	server := newPongServer(t)
	sup := newTestSupervisor(t, server.addr())

	connected := make(chan string, 1)
	pongs := make(chan time.Duration, 16)

	sup.SetHooks(session.Hooks{
		OnConnected: func(id string) {
			select {
			case connected <- id:
			default:
			}
		},
	})
	sup.SetHeartbeatHooks(heartbeat.Hooks{
		OnPongReceived: func(nonce uint32, rtt time.Duration) {
			select {
			case pongs <- rtt:
			default:
			}
		},
	})

	sup.Start()
	defer sup.Stop()

	select {
	case <-connected:
	case <-time.After(5 * time.Second):
		t.Fatal("never connected")
	}

	// Three full probe cycles complete without a false death
	for i := 0; i < 3; i++ {
		select {
		case rtt := <-pongs:
			if rtt <= 0 {
				t.Errorf("pong %d: RTT = %v, want > 0", i, rtt)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("pong %d not observed", i)
		}
	}

	if got := sup.Status().State; got != session.StatusConnected {
		t.Errorf("status = %v, want CONNECTED", got)
	}
}

func TestE2E_ReconnectAfterConnectionDrop(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	server := newPongServer(t)
	sup := newTestSupervisor(t, server.addr())

	connections := make(chan string, 4)
	deaths := make(chan error, 4)
	sup.SetHooks(session.Hooks{
		OnConnected: func(id string) { connections <- id },
		OnDead:      func(id string, reason error) { deaths <- reason },
	})

	sup.Start()
	defer sup.Stop()

	var firstID string
	select {
	case firstID = <-connections:
	case <-time.After(5 * time.Second):
		t.Fatal("never connected")
	}

	server.dropConnections()

	select {
	case reason := <-deaths:
		if reason == nil {
			t.Error("OnDead with nil reason for abrupt drop")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("death not detected after connection drop")
	}

	select {
	case secondID := <-connections:
		if secondID == firstID {
			t.Error("reconnected with the same connection id")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("did not reconnect")
	}
}

func TestE2E_DeadWhenPeerSilent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	server := newPongServer(t)
	server.setSilent(true)
	sup := newTestSupervisor(t, server.addr())

	deaths := make(chan error, 4)
	sup.SetHooks(session.Hooks{
		OnDead: func(id string, reason error) { deaths <- reason },
	})

	sup.Start()
	defer sup.Stop()

	// PingInterval + PongTimeout = 250ms, give generous slack
	select {
	case reason := <-deaths:
		if !errors.Is(reason, heartbeat.ErrPongTimeout) {
			t.Errorf("death reason = %v, want ErrPongTimeout", reason)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("silent peer not declared dead")
	}
}

func TestE2E_GracefulStop(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	server := newPongServer(t)
	sup := newTestSupervisor(t, server.addr())

	deaths := make(chan error, 1)
	sup.SetHooks(session.Hooks{
		OnDead: func(id string, reason error) { deaths <- reason },
	})

	sup.Start()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if sup.Status().State == session.StatusConnected {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := sup.Status().State; got != session.StatusConnected {
		t.Fatalf("status = %v, want CONNECTED", got)
	}

	sup.Stop()

	if got := sup.Status().State; got != session.StatusStopped {
		t.Errorf("status = %v after Stop, want STOPPED", got)
	}
	select {
	case reason := <-deaths:
		t.Errorf("OnDead invoked on graceful stop: %v", reason)
	case <-time.After(100 * time.Millisecond):
	}
}
