package log

import (
	"time"
)

// Event represents a liveness event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the connection (UUID).
	// Empty for session-level events that occur between connections.
	ConnectionID string `cbor:"2,keyasint,omitempty"`

	// Direction indicates message flow for frame and control events.
	Direction Direction `cbor:"3,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"4,keyasint"`

	// RemoteAddr is the peer address (IP:port), when known.
	RemoteAddr string `cbor:"5,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"6,keyasint,omitempty"`  // Raw frame I/O
	Control     *ControlEvent     `cbor:"7,keyasint,omitempty"`  // Ping/pong
	StateChange *StateChangeEvent `cbor:"8,keyasint,omitempty"`  // Connection/session state
	Reconnect   *ReconnectEvent   `cbor:"9,keyasint,omitempty"`  // Backoff attempts
	Error       *ErrorEventData   `cbor:"10,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryFrame indicates raw frame I/O at the transport layer.
	CategoryFrame Category = 0
	// CategoryControl indicates a decoded control frame (ping/pong).
	CategoryControl Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryReconnect indicates a reconnection attempt.
	CategoryReconnect Category = 3
	// CategoryError indicates an error event.
	CategoryError Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryFrame:
		return "FRAME"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryReconnect:
		return "RECONNECT"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes (including length prefix).
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// ControlEvent captures a decoded control frame.
type ControlEvent struct {
	// Type of control frame.
	Type ControlType `cbor:"1,keyasint"`

	// Nonce matches pongs to pings (0 if the peer sent none).
	Nonce uint32 `cbor:"2,keyasint,omitempty"`

	// RTT is the ping round-trip time (pong events only). Stored as
	// nanoseconds.
	RTT *time.Duration `cbor:"3,keyasint,omitempty"`
}

// ControlType indicates the type of control frame.
type ControlType uint8

const (
	// ControlPing indicates a ping frame.
	ControlPing ControlType = 0
	// ControlPong indicates a pong frame.
	ControlPong ControlType = 1
)

// String returns the control type name.
func (c ControlType) String() string {
	switch c {
	case ControlPing:
		return "PING"
	case ControlPong:
		return "PONG"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures connection and session lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a heartbeat state change.
	StateEntityConnection StateEntity = 0
	// StateEntitySession indicates a session status change.
	StateEntitySession StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// ReconnectEvent captures a reconnection attempt and its backoff delay.
type ReconnectEvent struct {
	// Attempt is the session-level attempt number (1-based).
	Attempt int `cbor:"1,keyasint"`

	// Delay is the backoff delay before this attempt. Stored as nanoseconds.
	Delay time.Duration `cbor:"2,keyasint"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"2,keyasint,omitempty"`
}
