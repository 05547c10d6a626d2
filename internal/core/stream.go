package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"gosam/internal/capability"
	"gosam/internal/metrics"
	"gosam/internal/retry"
	"gosam/internal/session"
	"gosam/sam"
	"gosam/util"
)

// StreamMode creates a session on a control connection, opens a stream
// to Destination on a second connection and runs a capability over it.
// This is the default client mode.
type StreamMode struct {
	// Bridge carries host, port, dialer, logger, metrics and encoding.
	// Bridge.Session describes the session to create.
	Bridge      sam.Options
	Destination string
	// Retries is the number of extra stream attempts after a
	// retryable failure.  Each attempt uses a fresh connection.
	Retries int
	// Timeout bounds session creation and each stream attempt; 0
	// waits until ctx ends.
	Timeout    time.Duration
	Capability capability.Capability
	Logger     *util.Logger
	Metrics    *metrics.Collector
	Stats      bool

	// Backoff overrides the retry schedule; nil uses retry.ForAttempts.
	Backoff *retry.Backoff

	// Stdin/Stdout/Stderr default to the process streams when nil.
	// Override in tests for deterministic I/O.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func (m *StreamMode) stdin() io.Reader {
	if m.Stdin != nil {
		return m.Stdin
	}
	return os.Stdin
}

func (m *StreamMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

func (m *StreamMode) stderr() io.Writer {
	if m.Stderr != nil {
		return m.Stderr
	}
	return os.Stderr
}

// Run blocks until the relay ends, the session is lost or ctx is
// cancelled.  Every bridge connection is closed when Run returns.
func (m *StreamMode) Run(ctx context.Context) error {
	if m.Logger == nil {
		m.Logger = util.NopLogger()
	}
	if m.Bridge.Dialer != nil {
		defer m.Bridge.Dialer.Close()
	}
	if m.Stats {
		defer func() { fmt.Fprintln(m.stderr(), m.Metrics.JSON()) }()
	}
	if m.Bridge.Session == nil {
		return &sam.ConfigError{
			Field:   "session",
			Message: "stream mode needs session parameters",
			Hint:    "build the mode with core.Build or set Bridge.Session",
		}
	}

	ctrl, err := m.createSession(ctx)
	if err != nil {
		m.Metrics.RecordError(err.Error())
		return err
	}
	defer ctrl.Close()

	stream, err := m.dial(ctx, m.Bridge.Session.ID)
	if err != nil {
		m.Metrics.RecordError(err.Error())
		return fmt.Errorf("connect to %s: %w", m.Destination, err)
	}
	defer stream.Close()

	m.Logger.Verbose("stream to %s open", sam.ShortDest(m.Destination))

	relayDone := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(relayDone)
		sess := session.New(stream, m.stdin(), m.stdout(), m.Logger)
		sess.Peer = sam.ShortDest(m.Destination)
		return m.Capability.Handle(gctx, sess)
	})

	// The bridge tears down every stream of a session whose control
	// connection closes; surface that as the cause.
	g.Go(func() error {
		select {
		case <-relayDone:
			return nil
		case <-gctx.Done():
			return nil
		case <-ctrl.Done():
			stream.Close()
			err := ctrl.Err()
			if err == nil {
				err = sam.ErrClosed
			}
			return fmt.Errorf("session %s lost: %w", m.Bridge.Session.ID, err)
		}
	})

	if err := g.Wait(); err != nil {
		m.Metrics.RecordError(err.Error())
		return err
	}
	return nil
}

func (m *StreamMode) createSession(ctx context.Context) (*sam.Conn, error) {
	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}

	s := m.Bridge.Session
	m.Logger.Verbose("creating session %s on %s", s.ID, m.Bridge.Addr())
	ctrl, err := sam.CreateSession(ctx, m.Bridge)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", s.ID, err)
	}
	if dest := ctrl.SessionDestination(); dest != "" {
		m.Logger.Info("session %s ready as %s", s.ID, sam.ShortDest(dest))
	}
	return ctrl, nil
}

// dial opens the stream, retrying retryable failures on fresh
// connections.
func (m *StreamMode) dial(ctx context.Context, sessionID string) (*sam.Stream, error) {
	b := m.Backoff
	if b == nil {
		b = retry.ForAttempts(m.Retries + 1)
	}
	b.Retryable = sam.IsRetryable
	b.OnRetry = func(attempt int, err error, wait time.Duration) {
		m.Metrics.StreamRetry()
		m.Logger.Warn("stream attempt %d failed: %v (retrying in %s)",
			attempt, err, wait.Truncate(time.Millisecond))
	}

	opts := m.Bridge
	opts.Session = nil

	var stream *sam.Stream
	err := b.Do(ctx, func(attempt int) error {
		actx := ctx
		if m.Timeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, m.Timeout)
			defer cancel()
		}
		m.Logger.Verbose("connecting to %s (attempt %d)", sam.ShortDest(m.Destination), attempt)
		s, err := sam.DialStream(actx, opts, sessionID, m.Destination)
		if err != nil {
			return err
		}
		stream = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stream, nil
}

