// Package transport provides the transport port consumed by the PulseLink
// liveness subsystem, plus a concrete length-prefix-framed TCP/TLS transport.
//
// The liveness subsystem only requires the small Transport and Opener
// interfaces defined here: a full-duplex, message-oriented link that can
// send an opaque frame, deliver incoming frames and closure through
// callbacks, and be closed and reopened. Handshake details, framing and
// serialization of application traffic belong to the embedding application.
//
// # Protocol Stack (built-in transport)
//
//	┌────────────────────────────────┐
//	│       Opaque Frames            │
//	├────────────────────────────────┤
//	│   Length-Prefix Framing (4B)   │
//	├────────────────────────────────┤
//	│       TLS (optional)           │
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
//
// # Closure Semantics
//
// The OnClose callback is the sole authoritative closure signal. Close is
// not guaranteed to be synchronous: callers observe closure through
// OnClose, which fires exactly once per connection.
package transport
