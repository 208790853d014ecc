// Package logging provides a minimal logging interface and adapters for
// Parley.
//
// The Logger interface defines the standard structured logging methods
// (Debug, Info, Warn, Error) that the engine components use for
// observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - ParleyLogger with contextual helpers (component, conversation,
//     invocation) and domain timing helpers for model and tool calls
//
// The design intentionally keeps the interface minimal so callers can
// plug any structured logger while the built-in slog adapters cover the
// common case.
package logging
