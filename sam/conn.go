package sam

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"sync"

	"gosam/internal/metrics"
	"gosam/internal/transport"
	"gosam/util"
)

// Conn is one connection to the bridge: a transport, a Framer and the
// handshake/session/stream state machine.  It is created unconnected by
// New, becomes live with Connect and ends with exactly one close event.
// A Conn is never reused.
//
// All methods are safe for concurrent use.  Events are delivered one at
// a time, outside the Conn's lock, in the order they were produced; a
// listener may call back into the Conn.  A listener must not block
// waiting for a later event of the same Conn.
type Conn struct {
	opts    Options
	addr    string
	logger  *util.Logger
	metrics *metrics.Collector
	tr      *transport.Conn
	framer  *Framer
	decoder *transport.Decoder

	// routes feeds parsed commands to the negotiators; events is what
	// callers subscribe to.
	routes Dispatcher[Command]
	events Dispatcher[Event]

	mu      sync.Mutex
	drained *sync.Cond
	state   State
	err     error

	version     string
	sessionDest string

	// stream intent
	handshakeOK   bool
	sessionActive bool
	destination   string
	sessionID     string
	connectSent   bool
	raw           bool

	queue    []Event
	emitting bool
	done     chan struct{}
}

// New returns an unconnected Conn.
func New(opts Options) *Conn {
	if opts.Logger == nil {
		opts.Logger = util.NopLogger()
	}
	c := &Conn{
		opts:        opts,
		addr:        opts.Addr(),
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		tr:          transport.NewConn(opts.transportConfig()),
		framer:      NewFramer(),
		decoder:     transport.NewDecoder(opts.Encoding),
		destination: opts.Destination,
		sessionID:   opts.SessionID,
		done:        make(chan struct{}),
	}
	c.drained = sync.NewCond(&c.mu)

	c.routes.Subscribe("HELLO REPLY", c.onHelloReply)
	c.routes.Subscribe("SESSION STATUS", c.onSessionStatus)
	c.routes.Subscribe("STREAM STATUS", c.onStreamStatus)
	return c
}

// Connect dials the bridge and sends HELLO.  It returns once the socket
// is open; negotiation continues in the background and is reported via
// events.  A dial failure is also reported as error and close events.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateDisconnected:
	case StateClosed:
		c.mu.Unlock()
		return ErrClosed
	default:
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	if err := c.opts.validate(); err != nil {
		c.failLocked(err)
		c.settle(false)
		return err
	}
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	if err := c.tr.Connect(ctx, "tcp", c.addr, wire{c}); err != nil {
		c.mu.Lock()
		c.failLocked(err)
		c.settle(false)
		return err
	}
	// The connect event was delivered from onConnect; everything after
	// it belongs to the read goroutine.
	return nil
}

// SetDestination supplies the remote destination of the stream intent.
func (c *Conn) SetDestination(dest string) error {
	if err := checkToken("destination", dest); err != nil {
		return err
	}
	return c.updateIntent(func() { c.destination = dest })
}

// SetSessionID supplies the session the stream is opened under.
func (c *Conn) SetSessionID(id string) error {
	if err := checkName("session-id", id); err != nil {
		return err
	}
	return c.updateIntent(func() { c.sessionID = id })
}

func (c *Conn) updateIntent(set func()) error {
	c.mu.Lock()
	switch {
	case c.state == StateClosed:
		c.mu.Unlock()
		return ErrClosed
	case c.connectSent:
		c.mu.Unlock()
		return ErrStreamRequested
	}
	set()
	c.maybeConnectLocked()
	c.settle(false)
	return nil
}

// SendCommand writes an arbitrary command line while the Conn is in
// command mode, for bridge verbs the engine does not model (NAMING
// LOOKUP, DEST GENERATE, PING).  Replies arrive as command events.
func (c *Conn) SendCommand(name, args string) error {
	line := name
	if args != "" {
		line += " " + args
	}
	if strings.ContainsAny(line, "\r\n") {
		return &ParseError{Line: line, Reason: "embedded line break"}
	}
	if _, err := ParseCommand(line); err != nil {
		return err
	}

	c.mu.Lock()
	switch {
	case c.state == StateClosed:
		c.mu.Unlock()
		return ErrClosed
	case c.raw:
		c.mu.Unlock()
		return ErrRawMode
	case c.state < StateAwaitingHandshake:
		c.mu.Unlock()
		return ErrNotConnected
	}
	err := c.sendLocked(line)
	c.settle(false)
	return err
}

// Write sends p to the remote destination.  It is only valid in raw
// mode; before that it returns ErrNotStreaming.
func (c *Conn) Write(p []byte) (int, error) {
	if err := c.rawOnly(); err != nil {
		return 0, err
	}
	n, err := c.tr.Write(p)
	if err != nil {
		c.mu.Lock()
		c.failLocked(err)
		c.release()
	}
	return n, err
}

// WriteString encodes s with the configured Encoding and writes it.
func (c *Conn) WriteString(s string) error {
	b, err := c.opts.Encoding.Encode(s)
	if err != nil {
		return err
	}
	_, err = c.Write(b)
	return err
}

// CloseWrite half-closes the stream: the remote side sees EOF while
// inbound data keeps flowing.
func (c *Conn) CloseWrite() error {
	if err := c.rawOnly(); err != nil {
		return err
	}
	return c.tr.CloseWrite()
}

func (c *Conn) rawOnly() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.state == StateClosed:
		return ErrClosed
	case !c.raw:
		return ErrNotStreaming
	}
	return nil
}

// Close ends the connection from any state.  Only the first call has an
// effect; the close event is emitted exactly once over the Conn's life.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.logger.Debug("sam: closing %s in state %s", c.addr, c.state)
	c.closeLocked()
	c.settle(false)
	return nil
}

// Subscribe registers fn for events of the given kind.
func (c *Conn) Subscribe(kind EventKind, fn func(Event)) (unsubscribe func()) {
	return c.events.Subscribe(string(kind), fn)
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error that closed the Conn, or nil while it is open
// or after a clean close.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Done is closed when the Conn reaches StateClosed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Version returns the protocol version the bridge accepted.
func (c *Conn) Version() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// SessionDestination returns the private key the bridge reported in
// SESSION STATUS, which identifies the session's local destination.
func (c *Conn) SessionDestination() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionDest
}

// Addr returns the bridge address the Conn dials.
func (c *Conn) Addr() string { return c.addr }

// LocalAddr returns the local socket address, or nil before Connect.
func (c *Conn) LocalAddr() net.Addr { return c.tr.LocalAddr() }

// RemoteAddr returns the bridge socket address, or nil before Connect.
func (c *Conn) RemoteAddr() net.Addr { return c.tr.RemoteAddr() }

// ── transport callbacks ──────────────────────────────────────────────

// wire adapts a Conn to transport.Handler without exporting the
// callbacks.
type wire struct{ c *Conn }

func (w wire) OnConnect()        { w.c.onConnect() }
func (w wire) OnData(p []byte)   { w.c.onData(p) }
func (w wire) OnClose(err error) { w.c.onClose(err) }

func (c *Conn) onConnect() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.setStateLocked(StateAwaitingHandshake)
	c.queueLocked(Event{Kind: EventConnect})
	c.sendLocked("HELLO VERSION MIN=" + MinVersion + " MAX=" + MaxVersion) //nolint:errcheck
	c.settle(false)
}

func (c *Conn) onData(p []byte) {
	c.mu.Lock()
	switch {
	case c.state == StateClosed:
	case c.raw:
		c.queueDataLocked(p)
	default:
		c.feedLocked(p)
	}
	c.settle(true)
}

func (c *Conn) feedLocked(p []byte) {
	for cmd, err := range c.framer.Feed(p) {
		if err != nil {
			c.failLocked(err)
			return
		}
		c.handleLocked(cmd)
		if c.state == StateClosed {
			return
		}
		if c.raw {
			// Whatever followed STREAM STATUS in this chunk is payload.
			if rest := c.framer.Drain(); len(rest) > 0 {
				c.queueDataLocked(rest)
			}
			return
		}
	}
}

func (c *Conn) onClose(err error) {
	c.mu.Lock()
	if c.state != StateClosed {
		switch {
		case err == nil && c.state == StateStreamActive:
			c.logger.Verbose("sam: stream ended by peer")
			c.closeLocked()
		case err == nil:
			c.failLocked(&TransportError{
				Op:        "read",
				Addr:      c.addr,
				Err:       io.ErrUnexpectedEOF,
				Retryable: c.state == StateStreamPending,
			})
		default:
			c.failLocked(err)
		}
	}
	c.settle(true)
}

// handleLocked publishes cmd to callers and routes it to the
// negotiators.
func (c *Conn) handleLocked(cmd Command) {
	c.metrics.CommandReceived()
	c.logger.Debug("sam: < %s", cmd)

	c.queueLocked(Event{Kind: CommandEvent(cmd.Name), Command: cmd, Args: cmd.Args})
	if !c.routes.Has(cmd.Name) {
		c.queueLocked(Event{Kind: EventUnhandled, Command: cmd, Args: cmd.Args})
		return
	}
	c.routes.Dispatch(cmd.Name, cmd)
}

func (c *Conn) sendLocked(line string) error {
	c.logger.Debug("sam: > %s", line)
	if err := c.tr.WriteString(line + "\n"); err != nil {
		c.failLocked(err)
		return err
	}
	c.metrics.CommandSent()
	return nil
}

// ── state and emission ───────────────────────────────────────────────

func (c *Conn) setStateLocked(s State) {
	if c.state == s {
		return
	}
	if s.Failed() {
		c.logger.Warn("sam: %s: %s -> %s", c.addr, c.state, s)
	} else {
		c.logger.Verbose("sam: %s: %s -> %s", c.addr, c.state, s)
	}
	c.state = s
}

func (c *Conn) queueLocked(ev Event) {
	if c.state == StateClosed {
		return
	}
	c.queue = append(c.queue, ev)
}

func (c *Conn) queueDataLocked(p []byte) {
	ev := Event{Kind: EventData, Data: bytes.Clone(p)}
	if c.opts.Encoding != EncodingNone {
		ev.Text = c.decoder.Decode(ev.Data)
		if c.logger.Enabled(util.LogDebug) {
			c.logger.Debug("sam: < %d bytes %q", len(p), ev.Text)
		}
	}
	c.queueLocked(ev)
}

// failLocked records err as the cause and runs the close sequence:
// error event, then close event.
func (c *Conn) failLocked(err error) {
	if c.state == StateClosed {
		return
	}
	c.err = err
	c.metrics.RecordError(err.Error())
	c.logger.Warn("sam: %v", err)
	c.queueLocked(Event{Kind: EventError, Err: err})
	c.closeLocked()
}

func (c *Conn) closeLocked() {
	c.queueLocked(Event{Kind: EventClose, Err: c.err})
	c.setStateLocked(StateClosed)
	close(c.done)
}

// settle unlocks mu, releases the socket if the Conn is closed and
// delivers queued events.  wait makes the caller block until the queue
// is empty even if another goroutine is delivering, which is how the
// read loop applies backpressure.
func (c *Conn) settle(wait bool) {
	c.release()
	c.flush(wait)
}

// release unlocks mu and closes the transport if the Conn is closed.
func (c *Conn) release() {
	closed := c.state == StateClosed
	c.mu.Unlock()
	if closed {
		c.tr.Close() //nolint:errcheck
	}
}

func (c *Conn) flush(wait bool) {
	c.mu.Lock()
	for c.emitting {
		if !wait {
			c.mu.Unlock()
			return
		}
		c.drained.Wait()
	}

	c.emitting = true
	for len(c.queue) > 0 {
		ev := c.queue[0]
		c.queue[0] = Event{}
		c.queue = c.queue[1:]
		c.mu.Unlock()
		c.events.Dispatch(string(ev.Kind), ev)
		c.mu.Lock()
	}
	c.queue = nil
	c.emitting = false
	c.drained.Broadcast()
	c.mu.Unlock()
}
