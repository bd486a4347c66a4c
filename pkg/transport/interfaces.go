package transport

import (
	"context"
)

// Transport represents an established full-duplex, message-oriented link.
// Implemented by Conn.
//
// Handlers should be registered immediately after the transport is obtained;
// frames that arrive before OnFrame is registered are dropped.
type Transport interface {
	// Send sends an opaque frame to the peer.
	Send(frame []byte) error

	// OnFrame registers the handler invoked for each incoming frame.
	OnFrame(fn func(frame []byte))

	// OnClose registers the handler invoked exactly once when the link
	// closes. The error is nil for a locally initiated close.
	OnClose(fn func(err error))

	// Close closes the link. Closure is observed through OnClose;
	// Close itself is not guaranteed to be synchronous.
	Close() error
}

// Opener establishes new Transport instances.
// Implemented by Dialer.
type Opener interface {
	// Open establishes a new link, or returns an error if the attempt
	// fails. Open may block; it must honor ctx cancellation.
	Open(ctx context.Context) (Transport, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context) (Transport, error)

// Open calls f.
func (f OpenerFunc) Open(ctx context.Context) (Transport, error) {
	return f(ctx)
}

// Compile-time interface satisfaction checks.
var (
	_ Transport = (*Conn)(nil)
	_ Opener    = (*Dialer)(nil)
	_ Opener    = (OpenerFunc)(nil)
)
