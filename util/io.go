package util

import (
	"context"
	"errors"
	"io"
	"net"

	"golang.org/x/sync/errgroup"
)

// DefaultBufSize is the standard buffer size for network I/O (32 KiB).
const DefaultBufSize = 32 * 1024

// halfCloser is implemented by *net.TCPConn and by sam streams.
type halfCloser interface {
	CloseWrite() error
}

// BidirectionalCopy shuffles data between a relay stream and an
// arbitrary reader/writer pair (typically stdin/stdout) until the
// remote side reaches EOF, a copy fails, or the context is cancelled.
func BidirectionalCopy(ctx context.Context, conn io.ReadWriteCloser, r io.Reader, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g := new(errgroup.Group)

	// network → writer
	g.Go(func() error {
		defer cancel()
		buf := GetBuf()
		defer PutBuf(buf)
		_, err := io.CopyBuffer(w, conn, *buf)
		return err
	})

	// reader → network
	g.Go(func() error {
		buf := GetBuf()
		defer PutBuf(buf)
		_, err := io.CopyBuffer(conn, r, *buf)
		// Half-close so the remote sees EOF while we keep draining
		// its response on the other goroutine.
		if hc, ok := conn.(halfCloser); ok {
			hc.CloseWrite() //nolint:errcheck
		}
		// A normal EOF on the reader must not tear the stream down
		// before the remote finishes sending.
		if err != nil {
			cancel()
		}
		return err
	})

	<-ctx.Done()
	conn.Close() // unblock any pending reads/writes

	if err := g.Wait(); err != nil && !isHarmless(err) {
		return err
	}
	return nil
}

// isHarmless returns true for errors that are expected during shutdown.
func isHarmless(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}
