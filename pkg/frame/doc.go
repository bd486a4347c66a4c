// Package frame defines the CBOR wire format for PulseLink control frames.
//
// Control frames carry liveness probes (ping/pong) and are distinct from
// application payloads. PulseLink uses CBOR (RFC 8949) with integer keys
// for compact, deterministic encoding.
//
// # Wire Shape
//
// A control frame is a CBOR map:
//
//	{
//	  1: type,   // uint8: 1 = ping, 2 = pong
//	  2: nonce   // uint32, optional: matches a pong to a specific ping
//	}
//
// # Defensive Decoding
//
// Decode rejects frames that are not well-formed CBOR or that carry an
// unknown type tag. Callers are expected to ignore such frames rather
// than tear down the connection: a liveness layer must tolerate a noisy
// or partially conforming remote peer.
package frame
