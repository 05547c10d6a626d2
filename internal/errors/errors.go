// Package errors provides domain-specific error types for gosam.
//
// These types carry structured context (operation, address, raw bridge
// reply, retryability) that helps callers decide how to handle failures
// and provides better diagnostics than plain string wrapping.
package errors

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrClosed           = errors.New("connection is closed")
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("connection already started")
	ErrNotStreaming     = errors.New("stream is not established")
	ErrStreamRequested  = errors.New("stream connect already sent")
	ErrRawMode          = errors.New("connection is in raw mode")
	ErrTimeout          = errors.New("operation timed out")
	ErrAuthFailed       = errors.New("authentication failed")
	ErrHostKeyMismatch  = errors.New("host key mismatch")
)

// ── Structured error types ───────────────────────────────────────────

// TransportError represents a socket-level failure or an unexpected
// close of the bridge connection.
type TransportError struct {
	Op        string // operation: "dial", "read", "write", "close"
	Addr      string // bridge address involved
	Err       error  // underlying error
	Retryable bool   // whether the caller should retry
}

func (e *TransportError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError reports a line that does not have the
// "<TOKEN1> <TOKEN2> [args]" shape.  It is fatal to the connection.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed command %q: %s", e.Line, e.Reason)
}

// HandshakeError carries the bridge's HELLO REPLY arguments verbatim.
type HandshakeError struct {
	Args string
}

func (e *HandshakeError) Error() string {
	return "handshake rejected: " + e.Args
}

// Result returns the RESULT= value of the reply, if any.
func (e *HandshakeError) Result() string { return resultOf(e.Args) }

// SessionError carries the bridge's SESSION STATUS arguments verbatim.
type SessionError struct {
	ID   string
	Args string
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s not created: %s", e.ID, e.Args)
}

// Result returns the RESULT= value of the reply, if any.
func (e *SessionError) Result() string { return resultOf(e.Args) }

// StreamError carries the bridge's STREAM STATUS arguments verbatim.
type StreamError struct {
	ID          string
	Destination string
	Args        string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream via session %s failed: %s", e.ID, e.Args)
}

// Result returns the RESULT= value of the reply, if any.
func (e *StreamError) Result() string { return resultOf(e.Args) }

// SSHError represents an SSH-specific failure with host context.
type SSHError struct {
	Op   string // "handshake", "auth", "hostkey", "dial"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a TransportError, automatically detecting retryability
// from the underlying error.
func Wrap(op, addr string, err error) *TransportError {
	return &TransportError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// retryableResults are STREAM STATUS results that describe a transient
// condition inside the anonymizing network.
var retryableResults = map[string]bool{
	"CANT_REACH_PEER":    true,
	"TIMEOUT":            true,
	"PEER_NOT_FOUND":     true,
	"LEASESET_NOT_FOUND": true,
	"I2P_ERROR":          true,
}

// IsRetryable reports whether err is worth retrying with a fresh
// connection.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se *StreamError
	if errors.As(err, &se) {
		return retryableResults[se.Result()]
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}
	return classifyRetryable(err)
}

// classifyRetryable inspects standard library error types.
func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Temporary() //nolint:staticcheck // Temporary is deprecated but still useful
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() //nolint:staticcheck
	}
	return false
}

// resultOf extracts RESULT=<value> from a reply argument string without
// depending on the protocol package.
func resultOf(args string) string {
	for _, field := range strings.Fields(args) {
		if v, ok := strings.CutPrefix(field, "RESULT="); ok {
			return strings.Trim(v, `"`)
		}
	}
	return ""
}

// ── Re-exports for convenience ───────────────────────────────────────

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
