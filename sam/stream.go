package sam

import (
	"io"
	"net"
)

// Stream is an established virtual connection to a remote destination.
// Reads are served from the Conn's data events through a pipe, so a
// reader that falls behind stalls the socket read loop instead of
// buffering without bound.
type Stream struct {
	conn *Conn
	pr   *io.PipeReader
	pw   *io.PipeWriter
}

// newStream wires a Stream to c.  It must be called before c connects so
// that no data event is missed.
func newStream(c *Conn) *Stream {
	pr, pw := io.Pipe()
	s := &Stream{conn: c, pr: pr, pw: pw}

	c.Subscribe(EventData, func(ev Event) {
		// Fails only once the reader side is closed; the data is
		// unwanted then.
		pw.Write(ev.Data) //nolint:errcheck
	})
	c.Subscribe(EventClose, func(ev Event) {
		if ev.Err != nil {
			pw.CloseWithError(ev.Err) //nolint:errcheck
			return
		}
		pw.Close()
	})
	return s
}

// Read reads relayed bytes.  It returns io.EOF when the remote side
// finished the stream, or the error that closed the Conn.
func (s *Stream) Read(p []byte) (int, error) { return s.pr.Read(p) }

// Write sends bytes to the remote destination unmodified.
func (s *Stream) Write(p []byte) (int, error) { return s.conn.Write(p) }

// CloseWrite signals EOF to the remote side.
func (s *Stream) CloseWrite() error { return s.conn.CloseWrite() }

// Close tears the stream down.  Pending reads return io.ErrClosedPipe.
func (s *Stream) Close() error {
	// Reader first, so queued data events do not block the close.
	s.pr.Close()
	return s.conn.Close()
}

// Conn returns the underlying connection, e.g. to Subscribe.
func (s *Stream) Conn() *Conn { return s.conn }

// LocalAddr returns the local address of the bridge socket.
func (s *Stream) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// RemoteAddr returns the bridge address, not the remote destination.
func (s *Stream) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }
