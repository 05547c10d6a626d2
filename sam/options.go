package sam

import (
	"strings"
	"time"

	samerr "gosam/internal/errors"
	"gosam/internal/metrics"
	"gosam/internal/transport"
	"gosam/util"
)

// Defaults for reaching a local bridge.
const (
	DefaultHost = "localhost"
	DefaultPort = 7656
)

// Protocol constants.
const (
	MinVersion = "3.0"
	MaxVersion = "3.0"

	StyleStream = "STREAM"
	Transient   = "TRANSIENT"
)

// SessionParams describes the SESSION CREATE a Conn issues after the
// handshake.
type SessionParams struct {
	// ID names the session; stream connections refer to it.
	ID string
	// Style defaults to STREAM, the only supported style.
	Style string
	// Destination is TRANSIENT (the default) or a base64 private key.
	Destination string
	// Options are extra KEY=VALUE pairs such as inbound.length=3.
	Options map[string]string
}

// Options configures a Conn.  The zero value talks to localhost:7656
// over TCP, performs only the handshake, and logs nothing.
type Options struct {
	Host string
	Port int

	// Dialer reaches the bridge; nil means direct TCP with DialTimeout.
	Dialer      Dialer
	DialTimeout time.Duration
	// WriteTimeout bounds each socket write; 0 disables.
	WriteTimeout time.Duration

	Logger  *util.Logger
	Metrics *metrics.Collector

	// Encoding, when set, fills Event.Text for data events and is used
	// by Conn.WriteString.
	Encoding Encoding

	// Session, when set, makes the Conn create a session after the
	// handshake.
	Session *SessionParams

	// SessionID and Destination seed the stream intent.  Either may be
	// supplied later with SetSessionID and SetDestination.
	SessionID   string
	Destination string
}

// Addr returns host:port with defaults applied.
func (o Options) Addr() string {
	host, port := o.Host, o.Port
	if host == "" {
		host = DefaultHost
	}
	if port == 0 {
		port = DefaultPort
	}
	return util.FormatAddr(host, port)
}

func (o Options) validate() error {
	if o.Port < 0 || o.Port > 65535 {
		return &samerr.ConfigError{Field: "sam-port", Value: o.Port, Message: "must be 0-65535"}
	}
	if o.SessionID != "" {
		if err := checkName("session-id", o.SessionID); err != nil {
			return err
		}
	}
	if o.Destination != "" {
		if err := checkToken("destination", o.Destination); err != nil {
			return err
		}
	}
	if s := o.Session; s != nil {
		if err := checkName("session-id", s.ID); err != nil {
			return err
		}
		if s.Style != "" && !strings.EqualFold(s.Style, StyleStream) {
			return &samerr.ConfigError{
				Field:   "session-style",
				Value:   s.Style,
				Message: "only STREAM sessions are supported",
			}
		}
		if s.Destination != "" {
			if err := checkToken("session-dest", s.Destination); err != nil {
				return err
			}
		}
		for k, v := range s.Options {
			if err := checkName("session-opt", k); err != nil {
				return err
			}
			if strings.ContainsAny(v, "\r\n") {
				return &samerr.ConfigError{
					Field:   "session-opt",
					Value:   k,
					Message: "value must be a single line",
				}
			}
		}
	}
	return nil
}

// createLine renders the SESSION CREATE command.
func (s *SessionParams) createLine() string {
	dest := s.Destination
	if dest == "" {
		dest = Transient
	}
	line := "SESSION CREATE STYLE=" + StyleStream + " ID=" + s.ID + " DESTINATION=" + dest
	if len(s.Options) > 0 {
		line += " " + FormatArgs(s.Options)
	}
	return line
}

// checkToken rejects values that would corrupt a command line.
func checkToken(field, v string) error {
	switch {
	case v == "":
		return &samerr.ConfigError{Field: field, Message: "must not be empty"}
	case hasSpace(v) || strings.ContainsRune(v, '"'):
		return &samerr.ConfigError{
			Field:   field,
			Value:   v,
			Message: "must be a single token without whitespace or quotes",
		}
	}
	return nil
}

// checkName is checkToken for ids and keys, which also may not hold '='.
func checkName(field, v string) error {
	if err := checkToken(field, v); err != nil {
		return err
	}
	if strings.ContainsRune(v, '=') {
		return &samerr.ConfigError{Field: field, Value: v, Message: "must not contain '='"}
	}
	return nil
}

func (o Options) transportConfig() transport.Config {
	d := o.Dialer
	if d == nil {
		d = &transport.TCPDialer{Timeout: o.DialTimeout}
	}
	return transport.Config{
		Dialer:       d,
		Logger:       o.Logger,
		Metrics:      o.Metrics,
		WriteTimeout: o.WriteTimeout,
	}
}
