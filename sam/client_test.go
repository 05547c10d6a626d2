package sam

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type callResult[T any] struct {
	v   T
	err error
}

func async[T any](fn func() (T, error)) <-chan callResult[T] {
	ch := make(chan callResult[T], 1)
	go func() {
		v, err := fn()
		ch <- callResult[T]{v, err}
	}()
	return ch
}

func wait[T any](t *testing.T, ch <-chan callResult[T]) (T, error) {
	t.Helper()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-time.After(5 * time.Second):
		t.Fatal("call did not return")
		var zero T
		return zero, nil
	}
}

func TestProbe(t *testing.T) {
	b := newFakeBridge(t)
	ch := async(func() (string, error) { return Probe(context.Background(), b.options()) })

	p := b.accept()
	p.hello()

	v, err := wait(t, ch)
	require.NoError(t, err)
	assert.Equal(t, "3.0", v)
	p.expectEOF()
}

func TestCreateSession(t *testing.T) {
	b := newFakeBridge(t)
	opts := b.options()
	opts.Session = &SessionParams{ID: "ctl", Destination: "mykey"}
	ch := async(func() (*Conn, error) { return CreateSession(context.Background(), opts) })

	p := b.accept()
	p.hello()
	assert.Equal(t, "SESSION CREATE STYLE=STREAM ID=ctl DESTINATION=mykey", p.expect("SESSION CREATE"))
	p.send("SESSION STATUS RESULT=OK DESTINATION=mykey\n")

	c, err := wait(t, ch)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, StateSessionActive, c.State())

	// The control connection must stay open.
	p.quiet(50 * time.Millisecond)
}

func TestCreateSession_Rejected(t *testing.T) {
	b := newFakeBridge(t)
	opts := b.options()
	opts.Session = &SessionParams{ID: "ctl"}
	ch := async(func() (*Conn, error) { return CreateSession(context.Background(), opts) })

	p := b.accept()
	p.hello()
	p.expect("SESSION CREATE")
	p.send("SESSION STATUS RESULT=INVALID_KEY\n")

	c, err := wait(t, ch)
	assert.Nil(t, c)
	var se *SessionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "INVALID_KEY", se.Result())
}

func TestCreateSession_RequiresParams(t *testing.T) {
	_, err := CreateSession(context.Background(), Options{})
	var ce *ConfigError
	assert.ErrorAs(t, err, &ce)
}

func TestDialStream_RelaysAndEnds(t *testing.T) {
	b := newFakeBridge(t)
	ch := async(func() (*Stream, error) {
		return DialStream(context.Background(), b.options(), "ctl", "remote")
	})

	p := b.accept()
	p.hello()
	p.expect("STREAM CONNECT ID=ctl DESTINATION=remote")
	p.send("STREAM STATUS RESULT=OK\nwelcome")

	s, err := wait(t, ch)
	require.NoError(t, err)
	defer s.Close()

	got := make([]byte, len("welcome"))
	_, err = io.ReadFull(s, got)
	require.NoError(t, err)
	assert.Equal(t, "welcome", string(got))

	_, err = s.Write([]byte("ping"))
	require.NoError(t, err)
	require.NoError(t, s.CloseWrite())

	sent, err := io.ReadAll(p.r)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(sent))

	p.send("bye")
	p.conn.Close()

	rest, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "bye", string(rest))
	assert.NoError(t, s.Conn().Err())
}

func TestDialStream_Rejected(t *testing.T) {
	b := newFakeBridge(t)
	ch := async(func() (*Stream, error) {
		return DialStream(context.Background(), b.options(), "ctl", "remote")
	})

	p := b.accept()
	p.hello()
	p.expect("STREAM CONNECT")
	p.send("STREAM STATUS RESULT=PEER_NOT_FOUND\n")

	s, err := wait(t, ch)
	assert.Nil(t, s)
	var se *StreamError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "ctl", se.ID)
	assert.True(t, IsRetryable(err))
}

func TestDialStream_Timeout(t *testing.T) {
	b := newFakeBridge(t)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	ch := async(func() (*Stream, error) { return DialStream(ctx, b.options(), "ctl", "remote") })

	p := b.accept()
	p.expect("HELLO VERSION")

	_, err := wait(t, ch)
	assert.ErrorIs(t, err, ErrTimeout)
	p.expectEOF()
}

func TestNewSessionID(t *testing.T) {
	a, b := NewSessionID(), NewSessionID()
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "gosam-"))
	assert.NoError(t, checkName("session-id", a))
}
