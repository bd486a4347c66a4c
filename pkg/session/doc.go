// Package session supervises one long-lived connection: it opens
// transports, binds a heartbeat monitor to each, and reconnects with
// exponential backoff when the connection dies.
//
// This package handles:
//   - Exponential backoff for reconnection attempts
//   - Jitter to prevent thundering herd
//   - Session state tracking (STOPPED, CONNECTING, CONNECTED, RECONNECTING)
//   - Automatic reconnection on connection death or open failure
//
// # Reconnection Strategy
//
// When a connection dies, the supervisor uses exponential backoff:
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s
//  3. Maximum delay: 30 seconds
//  4. Continue at 30s until successful
//  5. Reset to 1s on successful reconnection
//
// An open failure (DNS, handshake, refused connection) feeds the same
// backoff loop as a dead connection; it never bypasses the delay.
//
// # Jitter
//
// To prevent thundering herd when multiple clients reconnect, each
// delay is spread symmetrically around its base value:
//
//	actual_delay = base_delay * (1 +/- jitter_fraction * random)
//
// # Ownership
//
// At most one connection and one heartbeat monitor exist per supervisor
// at any time. The old monitor is fully discarded before a new
// transport is opened, so per-connection state never needs coordination
// between connections.
package session
