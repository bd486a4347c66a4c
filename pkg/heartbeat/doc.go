// Package heartbeat implements per-connection liveness monitoring for
// PulseLink.
//
// A Monitor drives the probe-and-acknowledge cycle over one transport
// instance: it periodically sends a ping, waits for the matching pong
// within a deadline, and declares the connection dead when too many
// beats are missed. Remote pings are answered immediately and
// independently of the local probing cycle - both peers probe each other.
//
// # State Machine
//
//	CONNECTED --(ping timer)--> AWAITING_PONG
//	AWAITING_PONG --(pong in time)--> CONNECTED
//	AWAITING_PONG --(deadline, beats left)--> AWAITING_PONG (re-send)
//	AWAITING_PONG --(deadline, no beats left)--> DEAD
//	any --(transport closed)--> DEAD
//
// DEAD is terminal for a monitor instance; recovery happens one level up,
// where a session supervisor opens a fresh transport and binds a fresh
// monitor to it.
//
// # Timing
//
// The ping interval and the pong deadline are two independent countdowns.
// Detection latency is therefore bounded by the pong timeout (times the
// allowed missed beats), not by the full ping interval.
//
// # Concurrency
//
// All state lives on a single event-loop goroutine fed by timer expiry,
// incoming frames and transport closure. Timer callbacks carry an epoch
// tag so that a timer firing concurrently with a stop or a state change
// is ignored rather than corrupting the next cycle.
package heartbeat
