package sam

import (
	samerr "gosam/internal/errors"
	"gosam/internal/transport"
)

// Error types surfaced by a Conn.  Protocol failures keep the bridge's
// reply arguments verbatim in Args.
type (
	TransportError = samerr.TransportError
	ParseError     = samerr.ParseError
	HandshakeError = samerr.HandshakeError
	SessionError   = samerr.SessionError
	StreamError    = samerr.StreamError
	ConfigError    = samerr.ConfigError
)

var (
	ErrClosed           = samerr.ErrClosed
	ErrNotConnected     = samerr.ErrNotConnected
	ErrAlreadyConnected = samerr.ErrAlreadyConnected
	ErrNotStreaming     = samerr.ErrNotStreaming
	ErrStreamRequested  = samerr.ErrStreamRequested
	ErrRawMode          = samerr.ErrRawMode
	ErrTimeout          = samerr.ErrTimeout
)

// IsRetryable reports whether a fresh Conn might succeed where err
// failed, e.g. a STREAM STATUS of CANT_REACH_PEER.
func IsRetryable(err error) bool { return samerr.IsRetryable(err) }

// Dialer opens the socket to the bridge.
type Dialer = transport.Dialer

// Encoding selects how raw data is rendered into Event.Text.
type Encoding = transport.Encoding

const (
	EncodingNone   = transport.EncodingNone
	EncodingASCII  = transport.EncodingASCII
	EncodingLatin1 = transport.EncodingLatin1
	EncodingUTF8   = transport.EncodingUTF8
	EncodingHex    = transport.EncodingHex
	EncodingBase64 = transport.EncodingBase64
)

// ParseEncoding maps a user-supplied name to an Encoding.
func ParseEncoding(name string) (Encoding, error) { return transport.ParseEncoding(name) }
