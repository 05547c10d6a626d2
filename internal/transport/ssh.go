package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"gosam/tunnel"
	"gosam/util"
)

// SSHDialer reaches the bridge through an SSH gateway.  A single SSH
// client is shared by every SAM connection dialed through it, so the
// control connection and each stream connection ride the same tunnel.
// The tunnel is connected lazily on the first Dial and torn down on
// Close.
type SSHDialer struct {
	tunnel tunnel.Tunnel
	config *tunnel.SSHConfig
	logger *util.Logger
	mu     sync.Mutex
	up     bool
}

// NewSSHDialer creates a dialer that forwards bridge connections
// through an SSH tunnel.  Nothing is dialed until the first Dial.
func NewSSHDialer(cfg *tunnel.SSHConfig, logger *util.Logger) *SSHDialer {
	return &SSHDialer{
		tunnel: tunnel.NewSSHTunnel(cfg, logger),
		config: cfg,
		logger: logger,
	}
}

// ensure establishes the SSH tunnel unless it is already alive.  A
// tunnel that died since the last Dial is re-established.
func (d *SSHDialer) ensure(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.up && d.tunnel.IsAlive() {
		return nil
	}
	if d.up {
		d.logger.Warn("SSH tunnel to %s lost, reconnecting", d.config.Host)
		d.tunnel.Close() //nolint:errcheck
		d.up = false
	}

	d.logger.Verbose("establishing SSH tunnel to %s@%s:%d",
		d.config.User, d.config.Host, d.config.Port)

	if err := d.tunnel.Connect(ctx); err != nil {
		return fmt.Errorf("tunnel: %w", err)
	}

	d.up = true
	d.logger.Verbose("SSH tunnel established")
	return nil
}

// Dial connects to the bridge address as seen from the SSH gateway.
func (d *SSHDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if err := d.ensure(ctx); err != nil {
		return nil, err
	}
	return d.tunnel.Dial(ctx, network, address)
}

// Close tears down the underlying SSH tunnel.
func (d *SSHDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.up {
		d.up = false
		return d.tunnel.Close()
	}
	return nil
}
