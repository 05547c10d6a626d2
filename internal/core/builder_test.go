package core

import (
	"strings"
	"testing"

	"gosam/config"
	"gosam/internal/capability"
	"gosam/internal/transport"
	"gosam/util"
)

func streamConfig() *config.Config {
	cfg := config.Default()
	cfg.Destination = "peer.b32.i2p"
	return cfg
}

// TestBuild_Stream verifies that Build produces a StreamMode with a
// Relay capability for a plain destination.
func TestBuild_Stream(t *testing.T) {
	cfg := streamConfig()
	cfg.SessionID = "nc"
	cfg.SessionOptions = map[string]string{"inbound.length": "1"}

	mode, err := Build(cfg, util.NewLogger(0))
	if err != nil {
		t.Fatal(err)
	}
	sm, ok := mode.(*StreamMode)
	if !ok {
		t.Fatalf("expected *StreamMode, got %T", mode)
	}
	if _, ok := sm.Capability.(*capability.Relay); !ok {
		t.Errorf("capability = %T, want *capability.Relay", sm.Capability)
	}
	s := sm.Bridge.Session
	if s == nil || s.ID != "nc" || s.Destination != "TRANSIENT" || s.Options["inbound.length"] != "1" {
		t.Errorf("session = %+v", s)
	}
	if sm.Bridge.Addr() != "localhost:7656" {
		t.Errorf("bridge addr = %q", sm.Bridge.Addr())
	}
	if sm.Metrics == nil || sm.Metrics != sm.Bridge.Metrics {
		t.Error("mode and bridge should share one metrics collector")
	}
	if _, ok := sm.Bridge.Dialer.(*transport.TCPDialer); !ok {
		t.Errorf("dialer = %T, want *transport.TCPDialer", sm.Bridge.Dialer)
	}
}

// TestBuild_GeneratesSessionID verifies a missing session id is filled.
func TestBuild_GeneratesSessionID(t *testing.T) {
	mode, err := Build(streamConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	id := mode.(*StreamMode).Bridge.Session.ID
	if !strings.HasPrefix(id, "gosam-") {
		t.Errorf("session id = %q", id)
	}
}

// TestBuild_Probe verifies --probe selects ProbeMode.
func TestBuild_Probe(t *testing.T) {
	cfg := config.Default()
	cfg.Probe = true

	mode, err := Build(cfg, util.NewLogger(0))
	if err != nil {
		t.Fatal(err)
	}
	pm, ok := mode.(*ProbeMode)
	if !ok {
		t.Fatalf("expected *ProbeMode, got %T", mode)
	}
	if pm.Bridge.Session != nil {
		t.Error("probe must not create a session")
	}
}

// TestBuild_Tunnel verifies a tunnel selects the SSH dialer.
func TestBuild_Tunnel(t *testing.T) {
	cfg := streamConfig()
	cfg.TunnelSpec = "admin@router"
	if err := cfg.ResolveTunnel(); err != nil {
		t.Fatal(err)
	}

	mode, err := Build(cfg, util.NewLogger(0))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := mode.(*StreamMode).Bridge.Dialer.(*transport.SSHDialer); !ok {
		t.Errorf("dialer = %T, want *transport.SSHDialer", mode.(*StreamMode).Bridge.Dialer)
	}
}

// TestBuild_ExecCapability verifies that -e/-c selects the Exec
// capability instead of Relay.
func TestBuild_ExecCapability(t *testing.T) {
	cfg := streamConfig()
	cfg.Command = "cat"

	mode, err := Build(cfg, util.NewLogger(0))
	if err != nil {
		t.Fatal(err)
	}
	ex, ok := mode.(*StreamMode).Capability.(*capability.Exec)
	if !ok || ex.Command != "cat" {
		t.Errorf("capability = %#v", mode.(*StreamMode).Capability)
	}
}

// TestBuild_BadEncoding verifies an unknown encoding is rejected.
func TestBuild_BadEncoding(t *testing.T) {
	cfg := streamConfig()
	cfg.Encoding = "ebcdic"
	if _, err := Build(cfg, nil); err == nil {
		t.Fatal("expected error for unknown encoding")
	}
}
