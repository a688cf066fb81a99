// Package log provides structured protocol capture for bistream sessions.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at several layers (transport, framing, client).
// It is separate from operational logging (slog): protocol capture provides
// a complete machine-readable trace of frames, state changes and errors for
// debugging and offline analysis.
//
// # Basic Usage
//
// Applications configure capture by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For long running clients: rotating binary capture
//	cfg.ProtocolLogger = log.NewRotatingFileLogger(log.RotationConfig{
//	    Filename: "/var/log/bistream/client.blog",
//	})
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(a, b)
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Transport: session handshake and stream lifecycle (StateChangeEvent)
//   - Framing: encoded frames written or decoded on a stream (FrameEvent)
//   - Client: stream arming and delivery bookkeeping
//
// Errors at any layer use ErrorEventData.
//
// # File Format
//
// Capture files are a concatenation of CBOR-encoded events with integer keys,
// conventionally named *.blog. The bistream-log tool views and summarises them.
package log
