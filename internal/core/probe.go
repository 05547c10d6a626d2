package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"gosam/sam"
	"gosam/util"
)

// ProbeMode performs only the handshake and prints the negotiated
// version.  It checks that a bridge is reachable without creating a
// session.
type ProbeMode struct {
	Bridge  sam.Options
	Timeout time.Duration
	Logger  *util.Logger

	// Stdout defaults to os.Stdout when nil.
	Stdout io.Writer
}

// Run connects, handshakes and disconnects.
func (m *ProbeMode) Run(ctx context.Context) error {
	if m.Logger == nil {
		m.Logger = util.NopLogger()
	}
	if m.Bridge.Dialer != nil {
		defer m.Bridge.Dialer.Close()
	}
	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}

	addr := m.Bridge.Addr()
	m.Logger.Verbose("probing %s", addr)

	version, err := sam.Probe(ctx, m.Bridge)
	if err != nil {
		return fmt.Errorf("probe %s: %w", addr, err)
	}

	w := m.Stdout
	if w == nil {
		w = os.Stdout
	}
	fmt.Fprintf(w, "%s SAM %s\n", addr, version)
	return nil
}
