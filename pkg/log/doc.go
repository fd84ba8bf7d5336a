// Package log provides protocol capture for flow connections.
//
// This package defines the Logger interface and Event types for capturing
// what happens on a connection: bytes sent and received, lifecycle state
// changes, transport errors and warnings. It is separate from operational
// logging (slog). A capture is a complete machine-readable trace that the
// flow-log tool can view, filter, export and summarize.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For later analysis: write to a capture file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/tmp/client.flog")
//
//	// Both
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
//   - Data: bytes written to or read from the socket (DataEvent)
//   - State: client lifecycle transitions (StateChangeEvent)
//   - Error: transport failures (ErrorEventData)
//   - Warning: benign caller mistakes (WarningEvent)
//
// # File Format
//
// Capture files are a stream of CBOR-encoded events with integer keys,
// conventionally using the .flog extension.
package log
