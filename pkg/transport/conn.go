package transport

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/pulselink-protocol/pulselink-go/pkg/log"
)

// Connection errors.
var (
	// ErrConnClosed indicates the connection has been closed.
	ErrConnClosed = errors.New("connection closed")
)

// ConnConfig configures a framed connection.
type ConnConfig struct {
	// ID identifies the connection in log events. Optional.
	ID string

	// MaxFrameSize is the maximum frame size (default: 64KB).
	MaxFrameSize uint32

	// Logger receives frame events. Optional.
	Logger log.Logger
}

// Conn is a length-prefix-framed connection over a net.Conn.
// It delivers incoming frames and closure through callbacks, satisfying
// the Transport interface.
type Conn struct {
	conn   net.Conn
	framer *Framer
	id     string

	mu      sync.RWMutex
	onFrame func(frame []byte)
	onClose func(err error)

	closeOnce sync.Once
	closeCh   chan struct{}
	localErr  error // set before closing the socket on local Close

	// Closure delivery state, guarded by mu. If the connection closes
	// before a handler is registered, the reason is held here and
	// delivered on registration.
	closeDone      bool
	closeDelivered bool
	closeReason    error
}

// NewConn wraps an established net.Conn in a framed connection and starts
// its read loop. Register OnFrame and OnClose handlers immediately: frames
// that arrive before a handler is set are dropped.
func NewConn(nc net.Conn, config ConnConfig) *Conn {
	if config.MaxFrameSize == 0 {
		config.MaxFrameSize = DefaultMaxFrameSize
	}

	c := &Conn{
		conn:    nc,
		framer:  NewFramerWithMaxSize(nc, config.MaxFrameSize),
		id:      config.ID,
		closeCh: make(chan struct{}),
	}
	if config.Logger != nil {
		c.framer.SetLogger(config.Logger, config.ID)
	}

	go c.readLoop()

	return c
}

// ID returns the connection identifier used in log events.
func (c *Conn) ID() string {
	return c.id
}

// LocalAddr returns the local network address.
func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Send sends a frame to the peer.
func (c *Conn) Send(frame []byte) error {
	select {
	case <-c.closeCh:
		return ErrConnClosed
	default:
	}

	return c.framer.WriteFrame(frame)
}

// OnFrame registers the handler invoked for each incoming frame.
// The handler runs on the connection's read goroutine; it must not block.
func (c *Conn) OnFrame(fn func(frame []byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFrame = fn
}

// OnClose registers the handler invoked exactly once when the connection
// closes. The error is nil for a locally initiated close. If the
// connection already closed, the handler fires immediately with the
// recorded reason.
func (c *Conn) OnClose(fn func(err error)) {
	c.mu.Lock()
	c.onClose = fn
	deliver := c.closeDone && !c.closeDelivered && fn != nil
	if deliver {
		c.closeDelivered = true
	}
	reason := c.closeReason
	c.mu.Unlock()

	if deliver {
		fn(reason)
	}
}

// Close closes the connection. The OnClose handler fires with a nil error
// once the read loop observes the closed socket.
func (c *Conn) Close() error {
	c.mu.Lock()
	c.localErr = ErrConnClosed
	c.mu.Unlock()

	select {
	case <-c.closeCh:
		return nil
	default:
	}

	return c.conn.Close()
}

// readLoop reads frames until the connection fails or is closed.
func (c *Conn) readLoop() {
	for {
		data, err := c.framer.ReadFrame()
		if err != nil {
			c.shutdown(err)
			return
		}

		c.mu.RLock()
		handler := c.onFrame
		c.mu.RUnlock()

		if handler != nil {
			handler(data)
		}
	}
}

// shutdown closes the socket and fires the OnClose handler exactly once.
func (c *Conn) shutdown(readErr error) {
	c.closeOnce.Do(func() {
		close(c.closeCh)
		c.conn.Close()

		c.mu.Lock()
		handler := c.onClose
		local := c.localErr != nil

		var reason error
		switch {
		case local:
			// Locally initiated close: not a failure
			reason = nil
		case readErr == io.EOF:
			reason = ErrConnClosed
		default:
			reason = readErr
		}

		c.closeDone = true
		c.closeReason = reason
		if handler != nil {
			c.closeDelivered = true
		}
		c.mu.Unlock()

		if handler != nil {
			handler(reason)
		}
	})
}
