package config

import (
	"strings"
	"testing"
)

// TestValidate_ErrorMessages verifies that Validate returns actionable
// error messages with hints.
func TestValidate_ErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantSub string // substring expected in error
	}{
		{
			name:    "bad encoding has hint",
			cfg:     Config{SAMHost: "localhost", SAMPort: 7656, Destination: "x", Encoding: "rot13"},
			wantSub: "hint:",
		},
		{
			name:    "probe with destination has hint",
			cfg:     Config{SAMHost: "localhost", SAMPort: 7656, Destination: "x", Probe: true},
			wantSub: "hint:",
		},
		{
			name:    "ssh agent without tunnel has hint",
			cfg:     Config{SAMHost: "localhost", SAMPort: 7656, Destination: "x", UseSSHAgent: true},
			wantSub: "hint:",
		},
		{
			name:    "exec conflict",
			cfg:     Config{SAMHost: "localhost", SAMPort: 7656, Destination: "x", Execute: "a", Command: "b"},
			wantSub: "-e and -c are mutually exclusive",
		},
		{
			name:    "port names the flag",
			cfg:     Config{SAMHost: "localhost", SAMPort: -1, Destination: "x"},
			wantSub: "--sam-port=-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantSub)
			}
		})
	}
}

// TestParseOption_Hint verifies the option parser points at the syntax.
func TestParseOption_Hint(t *testing.T) {
	_, _, err := ParseOption("inbound.length")
	if err == nil || !strings.Contains(err.Error(), "key=value") {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "hint:") {
		t.Errorf("error %q should carry a hint", err)
	}
}
