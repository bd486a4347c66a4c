// Package log provides structured liveness event logging for PulseLink.
//
// This package defines the Logger interface and Event types for capturing
// liveness-level events: control frames (ping/pong), connection and session
// state changes, reconnection attempts, and errors. It is separate from
// operational logging (slog) - event capture provides a complete
// machine-readable trace for debugging flaky links.
//
// The liveness subsystem itself performs no logging. It exposes observability
// hooks; this package is the collaborator those hooks feed.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	logger := log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	logger, _ := log.NewFileLogger("/var/log/pulselink/session.plog")
//
//	// Both: use MultiLogger
//	logger := log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # File Format
//
// Log files use CBOR encoding with integer keys and the .plog extension.
package log
