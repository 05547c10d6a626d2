package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the GOSAM_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	// Bridge
	if v := os.Getenv("GOSAM_SAM_HOST"); v != "" {
		cfg.SAMHost = v
	}
	if v := envInt("GOSAM_SAM_PORT"); v > 0 {
		cfg.SAMPort = v
	}
	if v := envInt("GOSAM_TIMEOUT"); v > 0 {
		cfg.Timeout = secondsDuration(v)
	}
	if v := os.Getenv("GOSAM_ENCODING"); v != "" {
		cfg.Encoding = v
	}

	// Session
	if v := os.Getenv("GOSAM_SESSION_ID"); v != "" {
		cfg.SessionID = v
	}
	if v := os.Getenv("GOSAM_SESSION_DEST"); v != "" {
		cfg.SessionDest = v
	}
	if v, ok := os.LookupEnv("GOSAM_RETRIES"); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Retries = n
		}
	}

	// SSH tunnel
	if v := os.Getenv("GOSAM_TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := os.Getenv("GOSAM_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("GOSAM_SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("GOSAM_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("GOSAM_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("GOSAM_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output
	if v := envInt("GOSAM_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
