package frame

import "errors"

// Frame errors.
var (
	// ErrUnknownType indicates a control frame with an unrecognized type tag.
	ErrUnknownType = errors.New("unknown control frame type")

	// ErrEmptyFrame indicates an empty frame.
	ErrEmptyFrame = errors.New("control frame is empty")
)

// Type identifies the kind of control frame.
type Type uint8

const (
	// TypePing is sent to probe connection liveness.
	TypePing Type = 1

	// TypePong is the response to a ping.
	TypePong Type = 2
)

// String returns the control frame type name.
func (t Type) String() string {
	switch t {
	case TypePing:
		return "ping"
	case TypePong:
		return "pong"
	default:
		return "unknown"
	}
}

// ControlFrame represents a liveness control frame.
// It carries no payload beyond the type tag and an optional nonce.
type ControlFrame struct {
	Type  Type   `cbor:"1,keyasint"`
	Nonce uint32 `cbor:"2,keyasint,omitempty"`
}

// NewPing creates a ping frame carrying the given nonce.
func NewPing(nonce uint32) ControlFrame {
	return ControlFrame{Type: TypePing, Nonce: nonce}
}

// NewPong creates a pong frame answering the given nonce.
func NewPong(nonce uint32) ControlFrame {
	return ControlFrame{Type: TypePong, Nonce: nonce}
}

// Validate checks that the frame carries a known type tag.
func (f *ControlFrame) Validate() error {
	if f.Type != TypePing && f.Type != TypePong {
		return ErrUnknownType
	}
	return nil
}
