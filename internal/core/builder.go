package core

import (
	"fmt"

	"gosam/config"
	"gosam/internal/capability"
	"gosam/internal/metrics"
	"gosam/internal/transport"
	"gosam/sam"
	"gosam/tunnel"
	"gosam/util"
)

// Build constructs the appropriate Mode from a validated configuration.
func Build(cfg *config.Config, logger *util.Logger) (Mode, error) {
	if logger == nil {
		logger = util.NopLogger()
	}
	bridge, err := bridgeOptions(cfg, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Probe {
		return &ProbeMode{
			Bridge:  bridge,
			Timeout: cfg.Timeout,
			Logger:  logger,
		}, nil
	}
	return buildStream(cfg, bridge, logger), nil
}

// ── mode builders ────────────────────────────────────────────────────

func buildStream(cfg *config.Config, bridge sam.Options, logger *util.Logger) *StreamMode {
	id := cfg.SessionID
	if id == "" {
		id = sam.NewSessionID()
	}
	bridge.Session = &sam.SessionParams{
		ID:          id,
		Style:       sam.StyleStream,
		Destination: cfg.SessionDest,
		Options:     cfg.SessionOptions,
	}

	return &StreamMode{
		Bridge:      bridge,
		Destination: cfg.Destination,
		Retries:     cfg.Retries,
		Timeout:     cfg.Timeout,
		Capability:  buildCapability(cfg),
		Logger:      logger,
		Metrics:     bridge.Metrics,
		Stats:       cfg.Stats,
	}
}

// ── shared helpers ───────────────────────────────────────────────────

// bridgeOptions maps the bridge section of cfg onto sam.Options.
func bridgeOptions(cfg *config.Config, logger *util.Logger) (sam.Options, error) {
	enc, err := sam.ParseEncoding(cfg.Encoding)
	if err != nil {
		return sam.Options{}, fmt.Errorf("encoding: %w", err)
	}
	return sam.Options{
		Host:        cfg.SAMHost,
		Port:        cfg.SAMPort,
		Dialer:      buildDialer(cfg, logger),
		DialTimeout: cfg.Timeout,
		Logger:      logger,
		Metrics:     metrics.New(),
		Encoding:    enc,
	}, nil
}

// buildDialer creates the right transport.Dialer for the given config.
// Through a tunnel the bridge address is resolved on the SSH server.
func buildDialer(cfg *config.Config, logger *util.Logger) transport.Dialer {
	if cfg.TunnelEnabled {
		return transport.NewSSHDialer(&tunnel.SSHConfig{
			User:          cfg.TunnelUser,
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			ConnTimeout:   cfg.Timeout,
		}, logger)
	}
	return &transport.TCPDialer{Timeout: cfg.Timeout}
}

// buildCapability selects what runs over the stream.
func buildCapability(cfg *config.Config) capability.Capability {
	if cfg.Execute != "" || cfg.Command != "" {
		return &capability.Exec{
			Program: cfg.Execute,
			Command: cfg.Command,
		}
	}
	return &capability.Relay{}
}
