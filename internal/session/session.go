// Package session binds one relayed SAM stream to the local I/O
// endpoints it is shuttled to.
//
// Capabilities operate on a Session rather than on a *sam.Stream
// directly, so they can be exercised with any io.ReadWriteCloser and
// in-memory buffers.
package session

import (
	"io"

	"gosam/util"
)

// Session is the runtime context of one stream.
type Session struct {
	// Stream carries the remote destination's bytes.  It is usually a
	// *sam.Stream, which also supports CloseWrite.
	Stream io.ReadWriteCloser
	Stdin  io.Reader
	Stdout io.Writer
	Logger *util.Logger

	// Peer names the remote destination, for logging only.
	Peer string
}

// New creates a Session bound to the given stream and I/O pair.
func New(stream io.ReadWriteCloser, stdin io.Reader, stdout io.Writer, logger *util.Logger) *Session {
	if logger == nil {
		logger = util.NopLogger()
	}
	return &Session{
		Stream: stream,
		Stdin:  stdin,
		Stdout: stdout,
		Logger: logger,
	}
}

// CloseWrite half-closes the stream when it supports that.
func (s *Session) CloseWrite() error {
	if hc, ok := s.Stream.(interface{ CloseWrite() error }); ok {
		return hc.CloseWrite()
	}
	return nil
}
