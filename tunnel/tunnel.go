// Package tunnel reaches a SAM bridge that only listens on a remote
// host's loopback interface.  The SSH implementation is backed by
// golang.org/x/crypto/ssh; every bridge connection (control and
// stream) is a direct-tcpip channel over one SSH client.
package tunnel

import (
	"context"
	"net"
)

// Tunnel is an encrypted hop through which bridge connections are
// forwarded.
type Tunnel interface {
	// Connect establishes the tunnel to the gateway.
	Connect(ctx context.Context) error

	// Dial opens a connection to address as seen from the gateway.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close tears down the tunnel and every connection dialed through it.
	Close() error

	// IsAlive reports whether the underlying connection is still up.
	IsAlive() bool
}
