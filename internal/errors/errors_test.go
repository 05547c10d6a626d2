package errors

import (
	"fmt"
	"io"
	"net"
	"testing"
)

func TestTransportError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  TransportError
		want string
	}{
		{
			name: "retryable",
			err:  TransportError{Op: "dial", Addr: "localhost:7656", Err: io.EOF, Retryable: true},
			want: "dial localhost:7656: EOF (retryable)",
		},
		{
			name: "non-retryable",
			err:  TransportError{Op: "read", Addr: "127.0.0.1:7656", Err: fmt.Errorf("connection reset")},
			want: "read 127.0.0.1:7656: connection reset",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTransportError_Unwrap(t *testing.T) {
	err := &TransportError{Op: "read", Addr: "x", Err: io.EOF}
	if !Is(err, io.EOF) {
		t.Error("should unwrap to io.EOF")
	}
}

func TestReplyErrors_KeepArgsVerbatim(t *testing.T) {
	hs := &HandshakeError{Args: "RESULT=NOVERSION"}
	if hs.Args != "RESULT=NOVERSION" || hs.Result() != "NOVERSION" {
		t.Errorf("handshake: args=%q result=%q", hs.Args, hs.Result())
	}

	ss := &SessionError{ID: "web", Args: `RESULT=I2P_ERROR MESSAGE="no tunnels"`}
	if got := ss.Error(); got != `session web not created: RESULT=I2P_ERROR MESSAGE="no tunnels"` {
		t.Errorf("session error = %q", got)
	}
	if ss.Result() != "I2P_ERROR" {
		t.Errorf("session result = %q", ss.Result())
	}

	st := &StreamError{ID: "web", Destination: "abc", Args: "RESULT=CANT_REACH_PEER"}
	if st.Result() != "CANT_REACH_PEER" {
		t.Errorf("stream result = %q", st.Result())
	}
}

func TestParseError_Format(t *testing.T) {
	err := &ParseError{Line: "HELLO", Reason: "missing second token"}
	want := `malformed command "HELLO": missing second token`
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSSHError_Format(t *testing.T) {
	err := WrapSSH("handshake", "bastion.example.com", 22, fmt.Errorf("connection refused"))
	want := "ssh handshake bastion.example.com:22: connection refused"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSSHError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("auth fail")
	err := WrapSSH("auth", "host", 22, inner)
	if !Is(err, inner) {
		t.Error("should unwrap to inner error")
	}
}

func TestConfigError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  ConfigError
		want string
	}{
		{
			name: "with value and hint",
			err: ConfigError{
				Field:   "sam-port",
				Value:   99999,
				Message: "out of range 1-65535",
				Hint:    "the bridge listens on 7656 by default",
			},
			want: "config: --sam-port=99999: out of range 1-65535\n  hint: the bridge listens on 7656 by default",
		},
		{
			name: "missing value no hint",
			err: ConfigError{
				Field:   "destination",
				Message: "required",
			},
			want: "config: --destination: required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got:\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	inner := fmt.Errorf("connection refused")
	err := Wrap("dial", "127.0.0.1:7656", inner)

	if err.Op != "dial" || err.Addr != "127.0.0.1:7656" {
		t.Errorf("wrong fields: Op=%q Addr=%q", err.Op, err.Addr)
	}
	if !Is(err, inner) {
		t.Error("should unwrap to inner error")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"retryable transport", &TransportError{Op: "dial", Addr: "x", Err: io.EOF, Retryable: true}, true},
		{"non-retryable transport", &TransportError{Op: "dial", Addr: "x", Err: io.EOF}, false},
		{"stream cant reach peer", &StreamError{Args: "RESULT=CANT_REACH_PEER"}, true},
		{"stream timeout", &StreamError{Args: "RESULT=TIMEOUT MESSAGE=\"slow\""}, true},
		{"stream invalid key", &StreamError{Args: "RESULT=INVALID_KEY"}, false},
		{"wrapped stream", fmt.Errorf("attempt 1: %w", &StreamError{Args: "RESULT=PEER_NOT_FOUND"}), true},
		{"session", &SessionError{Args: "RESULT=DUPLICATED_ID"}, false},
		{"plain error", fmt.Errorf("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyRetryable_NetOpError(t *testing.T) {
	opErr := &net.OpError{
		Op:  "dial",
		Net: "tcp",
		Err: &net.DNSError{IsTemporary: true},
	}
	if !classifyRetryable(opErr) {
		t.Error("temporary OpError should be retryable")
	}
}

func TestSentinels(t *testing.T) {
	sentinels := []error{
		ErrClosed, ErrNotConnected, ErrAlreadyConnected, ErrNotStreaming,
		ErrStreamRequested, ErrTimeout, ErrAuthFailed, ErrHostKeyMismatch,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && Is(a, b) {
				t.Errorf("sentinel %d and %d should not match", i, j)
			}
		}
	}
}
