package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/pulselink-protocol/pulselink-go/pkg/log"
)

// DefaultConnectTimeout is the default timeout for establishing a connection.
const DefaultConnectTimeout = 30 * time.Second

// DialerConfig configures a Dialer.
type DialerConfig struct {
	// Address is the target address (host:port). Required.
	Address string

	// TLSConfig enables TLS when non-nil. The handshake runs as part
	// of Open; a handshake failure is an open failure.
	TLSConfig *tls.Config

	// ConnectTimeout bounds each Open attempt (default: 30s).
	ConnectTimeout time.Duration

	// MaxFrameSize is the maximum frame size (default: 64KB).
	MaxFrameSize uint32

	// Logger receives frame events for opened connections. Optional.
	Logger log.Logger
}

// Dialer opens framed TCP (optionally TLS) connections to a fixed address.
// It satisfies the Opener interface, so a session supervisor can reopen
// the link through it after a failure.
type Dialer struct {
	config DialerConfig
}

// NewDialer creates a new dialer.
func NewDialer(config DialerConfig) (*Dialer, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("address is required")
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	if config.MaxFrameSize == 0 {
		config.MaxFrameSize = DefaultMaxFrameSize
	}

	return &Dialer{config: config}, nil
}

// Open establishes a new connection to the configured address.
// Each opened connection gets a fresh UUID for log correlation.
func (d *Dialer) Open(ctx context.Context) (Transport, error) {
	// Apply timeout from config if context doesn't have one
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.ConnectTimeout)
		defer cancel()
	}

	dialer := &net.Dialer{}
	nc, err := dialer.DialContext(ctx, "tcp", d.config.Address)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	if d.config.TLSConfig != nil {
		tlsConn := tls.Client(nc, d.config.TLSConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			nc.Close()
			return nil, fmt.Errorf("TLS handshake failed: %w", err)
		}
		nc = tlsConn
	}

	return NewConn(nc, ConnConfig{
		ID:           uuid.New().String(),
		MaxFrameSize: d.config.MaxFrameSize,
		Logger:       d.config.Logger,
	}), nil
}
