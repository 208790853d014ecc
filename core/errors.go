package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure so callers can branch on category
// without parsing messages. Every error crossing a package boundary in
// Parley is either a *Error or wraps one.
type ErrorKind string

const (
	// KindBackend marks a failed model call (network, auth, malformed response).
	KindBackend ErrorKind = "backend_error"
	// KindToolNotFound marks a tool request with no matching registered endpoint.
	KindToolNotFound ErrorKind = "tool_not_found"
	// KindCircuitOpen marks an invocation rejected because the target
	// endpoint's circuit breaker is open.
	KindCircuitOpen ErrorKind = "circuit_open"
	// KindTimeout marks a protocol call that did not resolve in time.
	KindTimeout ErrorKind = "timeout"
	// KindToolLoopExceeded marks an orchestration that hit its iteration cap.
	KindToolLoopExceeded ErrorKind = "tool_loop_exceeded"
	// KindPersistence marks a best-effort storage failure. It is logged
	// and swallowed; it never fails the user-visible answer.
	KindPersistence ErrorKind = "persistence_error"
	// KindProtocol marks a wire-level protocol violation or transport failure.
	KindProtocol ErrorKind = "protocol_error"
)

// Error is the kind-tagged error type surfaced to clients. The message is
// delivered verbatim (kind + message); there are no hidden retries, so a
// diagnosable failure reaches the subscriber instead of silence.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Err }

// E constructs a kind-tagged error with a formatted message.
func E(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapE wraps an underlying cause with a kind and message.
func WrapE(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, unwrapping as needed. Untagged errors
// report KindBackend if they came from nowhere classifiable; callers that
// need a different default should tag at the source instead.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether err (or anything it wraps) carries the kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
