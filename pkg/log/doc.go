// Package log provides structured protocol logging for the status client.
//
// This package defines the Logger interface and Event types for capturing
// what happens on the push connection at three layers (transport, wire,
// client). It is separate from operational logging (slog): protocol capture
// is a complete machine-readable trace for post-mortem analysis of
// reconnect storms and decode failures.
//
// # Basic Usage
//
//	// Development: protocol events on the console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// Production: append to a binary capture file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/camstatus/monitor.clog")
//
//	// Both
//	cfg.ProtocolLogger = log.NewMultiLogger(console, file)
//
// # Event Types
//
//   - Transport: raw frame bytes (FrameEvent) and open/close (ControlMsgEvent)
//   - Wire: decoded envelopes (MessageEvent)
//   - Client: state machine transitions and retry scheduling (StateChangeEvent)
//
// Errors at any layer use ErrorEventData.
//
// # File Format
//
// Capture files are a stream of CBOR-encoded events with integer keys
// (.clog). The camstatus-log tool views, filters and exports them.
package log
