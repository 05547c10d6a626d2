package sam

import (
	"bufio"
	"bytes"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeBridge is a scripted SAM bridge on a loopback port.  Its methods
// must be called from the test goroutine.
type fakeBridge struct {
	t  *testing.T
	ln *net.TCPListener
}

func newFakeBridge(t *testing.T) *fakeBridge {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	return &fakeBridge{t: t, ln: ln.(*net.TCPListener)}
}

func (b *fakeBridge) options() Options {
	return Options{
		Host:        "127.0.0.1",
		Port:        b.ln.Addr().(*net.TCPAddr).Port,
		DialTimeout: time.Second,
	}
}

func (b *fakeBridge) accept() *peer {
	b.t.Helper()
	b.ln.SetDeadline(time.Now().Add(3 * time.Second)) //nolint:errcheck
	conn, err := b.ln.Accept()
	require.NoError(b.t, err)
	b.t.Cleanup(func() { conn.Close() })
	return &peer{t: b.t, conn: conn, r: bufio.NewReader(conn)}
}

// noConnection fails if a client dials within a short window.
func (b *fakeBridge) noConnection() {
	b.t.Helper()
	b.ln.SetDeadline(time.Now().Add(50 * time.Millisecond)) //nolint:errcheck
	if conn, err := b.ln.Accept(); err == nil {
		conn.Close()
		b.t.Fatal("unexpected connection to the bridge")
	}
}

// syncBuffer is a bytes.Buffer safe for a logger writing from the read
// goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// peer is the bridge side of one client connection.
type peer struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

// expect reads the next line and checks its prefix.
func (p *peer) expect(prefix string) string {
	p.t.Helper()
	p.conn.SetReadDeadline(time.Now().Add(3 * time.Second)) //nolint:errcheck
	line, err := p.r.ReadString('\n')
	require.NoError(p.t, err, "waiting for %q", prefix)
	line = strings.TrimSuffix(line, "\n")
	require.True(p.t, strings.HasPrefix(line, prefix), "got %q, want prefix %q", line, prefix)
	return line
}

// quiet asserts that the client sends nothing for d.
func (p *peer) quiet(d time.Duration) {
	p.t.Helper()
	p.conn.SetReadDeadline(time.Now().Add(d)) //nolint:errcheck
	line, err := p.r.ReadString('\n')
	require.Error(p.t, err, "unexpected line %q", line)
	var ne net.Error
	require.True(p.t, errors.As(err, &ne) && ne.Timeout(), "read: %v", err)
}

// expectEOF asserts that the client released the socket.
func (p *peer) expectEOF() {
	p.t.Helper()
	p.conn.SetReadDeadline(time.Now().Add(3 * time.Second)) //nolint:errcheck
	_, err := p.r.ReadString('\n')
	require.Error(p.t, err)
	var ne net.Error
	require.False(p.t, errors.As(err, &ne) && ne.Timeout(), "client kept the socket open")
}

func (p *peer) send(s string) {
	p.t.Helper()
	_, err := p.conn.Write([]byte(s))
	require.NoError(p.t, err)
}

// hello consumes the client's HELLO and accepts it.
func (p *peer) hello() {
	p.t.Helper()
	p.expect("HELLO VERSION MIN=3.0 MAX=3.0")
	p.send("HELLO REPLY RESULT=OK VERSION=3.0\n")
}

var allKinds = []EventKind{
	EventConnect, EventHandshake, EventSession, EventStream,
	EventData, EventError, EventClose, EventUnhandled,
}

// recorder captures events in delivery order.
type recorder struct {
	mu     sync.Mutex
	events []Event
	ch     chan Event
}

func record(c *Conn, kinds ...EventKind) *recorder {
	r := &recorder{ch: make(chan Event, 256)}
	for _, k := range kinds {
		c.Subscribe(k, func(ev Event) {
			r.mu.Lock()
			r.events = append(r.events, ev)
			r.mu.Unlock()
			r.ch <- ev
		})
	}
	return r
}

// next waits for the next event of kind, skipping others.
func (r *recorder) next(t *testing.T, kind EventKind) Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-r.ch:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event; saw %v", kind, r.kinds())
			return Event{}
		}
	}
}

// data collects data events until n bytes arrived.
func (r *recorder) data(t *testing.T, n int) string {
	t.Helper()
	var b strings.Builder
	for b.Len() < n {
		b.Write(r.next(t, EventData).Data)
	}
	return b.String()
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func (r *recorder) count(kind EventKind) int {
	n := 0
	for _, k := range r.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}
