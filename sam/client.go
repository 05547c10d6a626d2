package sam

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// NewSessionID returns a fresh session id that is safe to put on a
// command line.
func NewSessionID() string {
	return "gosam-" + uuid.NewString()
}

// Probe connects, performs the handshake and returns the version the
// bridge accepted.  The connection is closed before returning.
func Probe(ctx context.Context, opts Options) (string, error) {
	opts.Session = nil
	opts.SessionID, opts.Destination = "", ""

	c := New(opts)
	defer c.Close()

	if err := await(ctx, c, EventHandshake); err != nil {
		return "", err
	}
	return c.Version(), nil
}

// CreateSession connects and creates the session described by
// opts.Session.  The returned Conn is the control connection: the
// bridge keeps the session alive exactly as long as it stays open.
func CreateSession(ctx context.Context, opts Options) (*Conn, error) {
	if opts.Session == nil {
		return nil, &ConfigError{Field: "session-id", Message: "no session parameters given"}
	}
	opts.SessionID, opts.Destination = "", ""

	c := New(opts)
	if err := await(ctx, c, EventSession); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// DialStream opens a new connection and connects it, under the existing
// session sessionID, to dest.  On success the returned Stream is in raw
// mode.  A failed attempt is never retried here; see IsRetryable.
func DialStream(ctx context.Context, opts Options, sessionID, dest string) (*Stream, error) {
	opts.Session = nil
	opts.SessionID, opts.Destination = sessionID, dest

	c := New(opts)
	s := newStream(c)
	if err := await(ctx, c, EventStream); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// await connects c and blocks until an event of kind reports success,
// the Conn closes or ctx ends.
func await(ctx context.Context, c *Conn, kind EventKind) error {
	result := make(chan error, 1)
	report := func(err error) {
		select {
		case result <- err:
		default:
		}
	}

	unsubOK := c.Subscribe(kind, func(ev Event) {
		if ev.OK {
			report(nil)
		}
	})
	defer unsubOK()
	unsubClose := c.Subscribe(EventClose, func(ev Event) {
		if ev.Err != nil {
			report(ev.Err)
			return
		}
		report(ErrClosed)
	})
	defer unsubClose()

	if err := c.Connect(ctx); err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		c.Close()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: waiting for %s from %s", ErrTimeout, kind, c.Addr())
		}
		return ctx.Err()
	}
}
