// Package transport owns the raw byte stream to the SAM bridge.
// Dialers handle the "how" of reaching the bridge (plain TCP or an
// SSH-tunnelled hop); Conn wraps the resulting socket with a read loop,
// writes, half-close and forceful close.  Nothing here knows about the
// protocol spoken over the stream.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound network connections.  Implementations include
// a plain TCP dialer and an SSH-tunnelled dialer that reaches a bridge
// bound to a remote host's loopback interface.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH session).  Stateless dialers return nil.
	Close() error
}
