// Command pulselink-watch monitors the liveness of a remote endpoint.
//
// It opens a TCP (optionally TLS) connection to the target, runs the
// heartbeat probe cycle over it, and reconnects with exponential
// backoff when the connection dies. Liveness events are printed to
// stderr and can additionally be recorded to a CBOR event log for
// later analysis.
//
// Usage:
//
//	pulselink-watch [flags]
//
// Flags:
//
//	-target string         Target address (host:port), required
//	-config string         YAML configuration file path
//	-ping-interval duration  Interval between pings (default 30s)
//	-pong-timeout duration   Deadline for a pong reply (default 5s)
//	-max-missed int        Unanswered pings before declaring dead (default 1)
//	-event-log string      Write CBOR events to this file (.plog)
//	-tls                   Connect with TLS
//	-insecure              Skip TLS certificate verification
//	-verbose               Log raw frame I/O as well
//
// Examples:
//
//	# Watch a local service with default timing
//	pulselink-watch -target localhost:9000
//
//	# Aggressive probing with an event log
//	pulselink-watch -target broker.example.com:9000 \
//	    -ping-interval 5s -pong-timeout 1s -event-log session.plog
//
//	# Timing and backoff from a config file, TLS without verification
//	pulselink-watch -target 10.0.0.5:9000 -config liveness.yaml -tls -insecure
package main

import (
	"crypto/tls"
	"flag"
	stdlog "log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pulselink-protocol/pulselink-go/internal/config"
	"github.com/pulselink-protocol/pulselink-go/pkg/heartbeat"
	"github.com/pulselink-protocol/pulselink-go/pkg/log"
	"github.com/pulselink-protocol/pulselink-go/pkg/session"
	"github.com/pulselink-protocol/pulselink-go/pkg/transport"
)

var (
	target       string
	configFile   string
	pingInterval time.Duration
	pongTimeout  time.Duration
	maxMissed    int
	eventLog     string
	useTLS       bool
	insecure     bool
	verbose      bool
)

func init() {
	flag.StringVar(&target, "target", "", "Target address (host:port)")
	flag.StringVar(&configFile, "config", "", "YAML configuration file path")
	flag.DurationVar(&pingInterval, "ping-interval", 0, "Interval between pings (default 30s)")
	flag.DurationVar(&pongTimeout, "pong-timeout", 0, "Deadline for a pong reply (default 5s)")
	flag.IntVar(&maxMissed, "max-missed", 0, "Unanswered pings before declaring dead (default 1)")
	flag.StringVar(&eventLog, "event-log", "", "Write CBOR events to this file")
	flag.BoolVar(&useTLS, "tls", false, "Connect with TLS")
	flag.BoolVar(&insecure, "insecure", false, "Skip TLS certificate verification")
	flag.BoolVar(&verbose, "verbose", false, "Log raw frame I/O as well")
}

func main() {
	flag.Parse()

	if target == "" {
		stdlog.Fatal("-target is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		stdlog.Fatalf("Invalid configuration: %v", err)
	}

	logger, cleanup, err := buildLogger()
	if err != nil {
		stdlog.Fatalf("Failed to set up event log: %v", err)
	}
	defer cleanup()

	dialerConfig := transport.DialerConfig{
		Address: target,
	}
	if useTLS {
		dialerConfig.TLSConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: insecure,
		}
	}
	if verbose {
		dialerConfig.Logger = logger
	}

	dialer, err := transport.NewDialer(dialerConfig)
	if err != nil {
		stdlog.Fatalf("Failed to create dialer: %v", err)
	}

	sup, err := session.NewSupervisor(dialer, cfg.Heartbeat(), cfg.Policy())
	if err != nil {
		stdlog.Fatalf("Failed to create supervisor: %v", err)
	}
	wireHooks(sup, logger)

	stdlog.SetFlags(stdlog.Ltime | stdlog.Lmicroseconds)
	stdlog.Printf("Watching %s (ping every %v, pong within %v, %d missed beat(s) allowed)",
		target, cfg.Heartbeat().PingInterval, cfg.Heartbeat().PongTimeout,
		cfg.Heartbeat().MaxMissedBeats)

	sup.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	stdlog.Printf("Received signal: %v", sig)
	stdlog.Println("Shutting down...")

	sup.Stop()
}

// loadConfig merges the config file (if any) with command line flags.
// Flags win over the file.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	if pingInterval != 0 {
		cfg.PingInterval = config.Duration(pingInterval)
	}
	if pongTimeout != 0 {
		cfg.PongTimeout = config.Duration(pongTimeout)
	}
	if maxMissed != 0 {
		cfg.MaxMissedBeats = maxMissed
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// buildLogger assembles the event logger: always slog to stderr, plus
// a CBOR file logger when -event-log is set.
func buildLogger() (log.Logger, func(), error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slogLogger := log.NewSlogAdapter(slog.New(handler))

	if eventLog == "" {
		return slogLogger, func() {}, nil
	}

	fileLogger, err := log.NewFileLogger(eventLog)
	if err != nil {
		return nil, nil, err
	}
	multi := log.NewMultiLogger(slogLogger, fileLogger)
	return multi, func() { fileLogger.Close() }, nil
}

// wireHooks translates supervisor and heartbeat callbacks into events.
// The connection id for heartbeat events is read from the supervisor
// status at event time.
func wireHooks(sup *session.Supervisor, logger log.Logger) {
	connID := func() string { return sup.Status().ConnectionID }

	sup.SetHooks(session.Hooks{
		OnStateChange: func(old, new session.Status) {
			logger.Log(log.Event{
				Timestamp: time.Now(),
				Category:  log.CategoryState,
				StateChange: &log.StateChangeEvent{
					Entity:   log.StateEntitySession,
					OldState: old.String(),
					NewState: new.String(),
				},
			})
		},
		OnReconnectAttempt: func(attempt int, delay time.Duration) {
			logger.Log(log.Event{
				Timestamp: time.Now(),
				Category:  log.CategoryReconnect,
				Reconnect: &log.ReconnectEvent{
					Attempt: attempt,
					Delay:   delay,
				},
			})
		},
		OnConnected: func(id string) {
			stdlog.Printf("Connected (connection %s)", id)
		},
		OnDead: func(id string, reason error) {
			stdlog.Printf("Connection %s dead: %v", id, reason)
		},
	})

	sup.SetHeartbeatHooks(heartbeat.Hooks{
		OnStateChange: func(old, new heartbeat.State) {
			logger.Log(log.Event{
				Timestamp:    time.Now(),
				ConnectionID: connID(),
				Category:     log.CategoryState,
				StateChange: &log.StateChangeEvent{
					Entity:   log.StateEntityConnection,
					OldState: old.String(),
					NewState: new.String(),
				},
			})
		},
		OnPingSent: func(nonce uint32) {
			logger.Log(log.Event{
				Timestamp:    time.Now(),
				ConnectionID: connID(),
				Direction:    log.DirectionOut,
				Category:     log.CategoryControl,
				Control: &log.ControlEvent{
					Type:  log.ControlPing,
					Nonce: nonce,
				},
			})
		},
		OnPongReceived: func(nonce uint32, rtt time.Duration) {
			logger.Log(log.Event{
				Timestamp:    time.Now(),
				ConnectionID: connID(),
				Direction:    log.DirectionIn,
				Category:     log.CategoryControl,
				Control: &log.ControlEvent{
					Type:  log.ControlPong,
					Nonce: nonce,
					RTT:   &rtt,
				},
			})
		},
		OnRemotePing: func(nonce uint32) {
			logger.Log(log.Event{
				Timestamp:    time.Now(),
				ConnectionID: connID(),
				Direction:    log.DirectionIn,
				Category:     log.CategoryControl,
				Control: &log.ControlEvent{
					Type:  log.ControlPing,
					Nonce: nonce,
				},
			})
		},
		OnMalformedFrame: func(err error) {
			logger.Log(log.Event{
				Timestamp:    time.Now(),
				ConnectionID: connID(),
				Direction:    log.DirectionIn,
				Category:     log.CategoryError,
				Error: &log.ErrorEventData{
					Message: err.Error(),
					Context: "decoding control frame",
				},
			})
		},
	})
}
