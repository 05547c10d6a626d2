package transport

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	samerr "gosam/internal/errors"
	"gosam/internal/metrics"
	"gosam/util"
)

// Handler receives the lifecycle of a Conn.
//
// OnConnect runs on the goroutine that called Connect, before the read
// loop starts.  OnData and OnClose run on the read goroutine, one call
// at a time.  The slice passed to OnData is a pooled buffer that is
// reused after the call returns; handlers must copy what they keep.
// A handler that blocks in OnData stops the read loop, which in turn
// lets the kernel apply TCP flow control to the peer.
type Handler interface {
	OnConnect()
	OnData(p []byte)
	// OnClose is called exactly once when the read loop ends: with nil
	// after a clean EOF from the peer, with errors.ErrClosed after a
	// local Close, otherwise with a *errors.TransportError.
	OnClose(err error)
}

// Config controls a Conn.
type Config struct {
	Dialer       Dialer
	Logger       *util.Logger
	Metrics      *metrics.Collector
	WriteTimeout time.Duration // per-write deadline, 0 disables
}

// Conn owns exactly one socket to the bridge for its whole life.
type Conn struct {
	dialer       Dialer
	logger       *util.Logger
	metrics      *metrics.Collector
	writeTimeout time.Duration

	mu     sync.Mutex
	conn   net.Conn
	addr   string
	closed bool

	doneOnce sync.Once
	done     chan struct{}
}

// NewConn returns an unconnected Conn.  A nil Dialer means plain TCP.
func NewConn(cfg Config) *Conn {
	d := cfg.Dialer
	if d == nil {
		d = &TCPDialer{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = util.NopLogger()
	}
	return &Conn{
		dialer:       d,
		logger:       logger,
		metrics:      cfg.Metrics,
		writeTimeout: cfg.WriteTimeout,
		done:         make(chan struct{}),
	}
}

// Connect dials address, hands the connection to h and starts the read
// loop.  A Conn can be connected once.
func (c *Conn) Connect(ctx context.Context, network, address string, h Handler) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return samerr.ErrClosed
	case c.conn != nil:
		c.mu.Unlock()
		return samerr.ErrAlreadyConnected
	}
	c.addr = address
	c.mu.Unlock()

	c.logger.Debug("transport: dialing %s %s", network, address)
	conn, err := c.dialer.Dial(ctx, network, address)
	if err != nil {
		return samerr.Wrap("dial", address, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return samerr.ErrClosed
	}
	c.conn = conn
	c.mu.Unlock()

	c.metrics.ConnectionOpened()
	c.logger.Verbose("connected to bridge at %s", conn.RemoteAddr())

	h.OnConnect()
	go c.readLoop(conn, h)
	return nil
}

func (c *Conn) readLoop(conn net.Conn, h Handler) {
	defer c.doneOnce.Do(func() { close(c.done) })

	buf := util.GetBuf()
	defer util.PutBuf(buf)

	for {
		n, err := conn.Read(*buf)
		if n > 0 {
			c.metrics.BytesReceived(int64(n))
			h.OnData((*buf)[:n])
		}
		if err == nil {
			continue
		}

		c.mu.Lock()
		local := c.closed
		c.closed = true
		c.mu.Unlock()

		conn.Close()
		c.metrics.ConnectionClosed()

		switch {
		case local:
			h.OnClose(samerr.ErrClosed)
		case err == io.EOF:
			c.logger.Debug("transport: peer closed %s", c.addr)
			h.OnClose(nil)
		default:
			h.OnClose(samerr.Wrap("read", c.addr, err))
		}
		return
	}
}

// Write sends p unmodified.
func (c *Conn) Write(p []byte) (int, error) {
	conn, err := c.live()
	if err != nil {
		return 0, err
	}
	if c.writeTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)) //nolint:errcheck
	}
	n, err := conn.Write(p)
	c.metrics.BytesSent(int64(n))
	if err != nil {
		return n, samerr.Wrap("write", c.addr, err)
	}
	return n, nil
}

// WriteString sends s as raw bytes.
func (c *Conn) WriteString(s string) error {
	_, err := c.Write([]byte(s))
	return err
}

// CloseWrite half-closes the connection: the peer sees EOF while the
// read side stays open.
func (c *Conn) CloseWrite() error {
	conn, err := c.live()
	if err != nil {
		return err
	}
	hc, ok := conn.(interface{ CloseWrite() error })
	if !ok {
		return samerr.Wrap("close", c.addr, samerr.New("half-close not supported by this transport"))
	}
	return hc.CloseWrite()
}

// Close forcefully closes the socket.  It is idempotent; the read loop
// reports the local close through Handler.OnClose.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		c.doneOnce.Do(func() { close(c.done) })
		return nil
	}
	return conn.Close()
}

// Done is closed once the read loop has exited (or immediately after
// Close when the Conn never connected).
func (c *Conn) Done() <-chan struct{} { return c.done }

// LocalAddr returns the local socket address, or nil before Connect.
func (c *Conn) LocalAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.LocalAddr()
}

// RemoteAddr returns the bridge address, or nil before Connect.
func (c *Conn) RemoteAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.RemoteAddr()
}

func (c *Conn) live() (net.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		return nil, samerr.ErrClosed
	case c.conn == nil:
		return nil, samerr.ErrNotConnected
	}
	return c.conn, nil
}
