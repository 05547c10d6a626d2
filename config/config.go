// Package config defines the runtime configuration for gosam and provides
// helpers for parsing tunnel specifications and session options.
package config

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	samerr "gosam/internal/errors"
	"gosam/sam"
	"gosam/util"
)

// Config holds every tuneable for a single gosam run.
type Config struct {
	// ── Bridge ───────────────────────────────────────────────────────
	SAMHost  string
	SAMPort  int
	Timeout  time.Duration // dial and negotiation deadline
	Encoding string        // data rendering for verbose logs

	// ── Session / stream ─────────────────────────────────────────────
	SessionID      string            // empty → generated
	SessionDest    string            // TRANSIENT or a base64 private key
	SessionOptions map[string]string // extra SESSION CREATE pairs
	Destination    string            // remote peer (positional)
	Retries        int               // extra stream attempts on retryable errors

	// ── SSH tunnel ───────────────────────────────────────────────────
	TunnelSpec     string // raw user@host[:port] from -T
	TunnelEnabled  bool
	TunnelUser     string
	TunnelHost     string
	TunnelPort     int
	SSHKeyPath     string
	SSHPassword    bool // true → prompt interactively
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string

	// ── Execution ────────────────────────────────────────────────────
	Execute string // -e: program path
	Command string // -c: shell command

	// ── Mode / output ────────────────────────────────────────────────
	Probe   bool
	Stats   bool
	DryRun  bool
	Verbose int
}

// Default returns a Config with every default from defaults.go applied.
func Default() *Config {
	return &Config{
		SAMHost:     DefaultSAMHost,
		SAMPort:     DefaultSAMPort,
		Timeout:     DefaultConnTimeout,
		SessionDest: sam.Transient,
		Retries:     DefaultRetries,
	}
}

// ResolveBridge accepts a "host:port" SAMHost.  The port given there
// replaces SAMPort.
func (c *Config) ResolveBridge() error {
	if !strings.Contains(c.SAMHost, ":") || net.ParseIP(c.SAMHost) != nil {
		return nil
	}
	host, port, err := util.SplitAddr(c.SAMHost)
	if err != nil {
		return &samerr.ConfigError{
			Field:   "sam-host",
			Value:   c.SAMHost,
			Message: err.Error(),
			Hint:    "use host, host:port or [v6addr]:port",
		}
	}
	c.SAMHost, c.SAMPort = host, port
	return nil
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@router.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q, expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	return user, host, port, nil
}

// ResolveTunnel fills the Tunnel* fields from TunnelSpec.  An empty spec
// disables the tunnel.
func (c *Config) ResolveTunnel() error {
	if c.TunnelSpec == "" {
		c.TunnelEnabled = false
		return nil
	}
	user, host, port, err := ParseTunnelSpec(c.TunnelSpec)
	if err != nil {
		return &samerr.ConfigError{
			Field:   "tunnel",
			Value:   c.TunnelSpec,
			Message: err.Error(),
			Hint:    "e.g. -T admin@router.example.com:2222",
		}
	}
	c.TunnelEnabled = true
	c.TunnelUser = user
	c.TunnelHost = host
	c.TunnelPort = port
	return nil
}

// ── Session options ──────────────────────────────────────────────────

// ParseOption splits "key=value".  The value may be empty; the key may not.
func ParseOption(s string) (key, value string, err error) {
	key, value, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return "", "", &samerr.ConfigError{
			Field:   "session-opt",
			Value:   s,
			Message: "expected key=value",
			Hint:    "e.g. -o inbound.length=3",
		}
	}
	return key, value, nil
}

// AddOptions parses each key=value and merges it into SessionOptions.
// Later keys override earlier ones.
func (c *Config) AddOptions(specs []string) error {
	for _, s := range specs {
		k, v, err := ParseOption(s)
		if err != nil {
			return err
		}
		if c.SessionOptions == nil {
			c.SessionOptions = make(map[string]string)
		}
		c.SessionOptions[k] = v
	}
	return nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
// Every failure is a *errors.ConfigError.
func (c *Config) Validate() error {
	if c.SAMHost == "" {
		return &samerr.ConfigError{Field: "sam-host", Message: "must not be empty"}
	}
	if c.SAMPort < 1 || c.SAMPort > 65535 {
		return &samerr.ConfigError{Field: "sam-port", Value: c.SAMPort, Message: "must be 1-65535"}
	}
	if c.Timeout < 0 {
		return &samerr.ConfigError{Field: "timeout", Value: c.Timeout, Message: "must not be negative"}
	}
	if c.Retries < 0 {
		return &samerr.ConfigError{Field: "retries", Value: c.Retries, Message: "must not be negative"}
	}
	if _, err := sam.ParseEncoding(c.Encoding); err != nil {
		return &samerr.ConfigError{
			Field:   "encoding",
			Value:   c.Encoding,
			Message: "unknown encoding",
			Hint:    "one of ascii, latin1, utf8, hex, base64",
		}
	}

	if c.Probe {
		if c.Destination != "" {
			return &samerr.ConfigError{
				Field:   "probe",
				Message: "takes no destination",
				Hint:    "drop the destination or --probe",
			}
		}
	} else if c.Destination == "" {
		return &samerr.ConfigError{
			Field:   "destination",
			Message: "is required (use --help for usage)",
		}
	} else if err := checkToken("destination", c.Destination); err != nil {
		return err
	}

	if c.SessionID != "" {
		if err := checkName("session-id", c.SessionID); err != nil {
			return err
		}
	}
	if c.SessionDest != "" {
		if err := checkToken("session-dest", c.SessionDest); err != nil {
			return err
		}
	}
	for k, v := range c.SessionOptions {
		if err := checkName("session-opt", k); err != nil {
			return err
		}
		if strings.ContainsAny(v, "\r\n") {
			return &samerr.ConfigError{Field: "session-opt", Value: k, Message: "value must be a single line"}
		}
	}

	if c.Execute != "" && c.Command != "" {
		return &samerr.ConfigError{
			Field:   "exec",
			Message: "-e and -c are mutually exclusive",
		}
	}

	if c.TunnelEnabled && c.TunnelHost == "" {
		return &samerr.ConfigError{Field: "tunnel", Message: "tunnel host is required"}
	}
	if !c.TunnelEnabled && (c.SSHKeyPath != "" || c.SSHPassword || c.UseSSHAgent) {
		return &samerr.ConfigError{
			Field:   "ssh-key",
			Message: "SSH credentials given without a tunnel",
			Hint:    "add -T [user@]host[:port]",
		}
	}

	return nil
}

func checkToken(field, v string) error {
	if strings.ContainsAny(v, " \t\r\n\"") {
		return &samerr.ConfigError{
			Field:   field,
			Value:   v,
			Message: "must be a single token without whitespace or quotes",
		}
	}
	return nil
}

func checkName(field, v string) error {
	if err := checkToken(field, v); err != nil {
		return err
	}
	if strings.ContainsRune(v, '=') {
		return &samerr.ConfigError{Field: field, Value: v, Message: "must not contain '='"}
	}
	return nil
}
