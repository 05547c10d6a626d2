// Package cmd wires up the CLI flags and dispatches to the core modes.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"gosam/config"
	"gosam/internal/core"
	"gosam/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X gosam/cmd.version=1.1.0"
var version = "1.0.0" //nolint:gochecknoglobals

// stderr receives usage, version and dry-run output.
var stderr io.Writer = os.Stderr //nolint:gochecknoglobals

// Execute parses args and runs the selected gosam mode.
func Execute(ctx context.Context, args []string) error {
	cfg := config.Default()
	config.LoadFromEnv(cfg)

	fs := flag.NewFlagSet("gosam", flag.ContinueOnError)
	fs.SetOutput(stderr)

	// ── bridge ───────────────────────────────────────────────────
	fs.StringVarP(&cfg.SAMHost, "sam-host", "H", cfg.SAMHost, "SAM bridge host (host or host:port)")
	fs.IntVarP(&cfg.SAMPort, "sam-port", "P", cfg.SAMPort, "SAM bridge port")
	fs.StringVar(&cfg.Encoding, "encoding", cfg.Encoding, "Render relayed data in debug logs (ascii, latin1, utf8, hex, base64)")

	timeoutSec := int(cfg.Timeout / time.Second)
	fs.IntVarP(&timeoutSec, "timeout", "w", timeoutSec, "Session and stream setup timeout in seconds (0 = none)")

	// ── session / stream ─────────────────────────────────────────
	fs.StringVarP(&cfg.SessionID, "session-id", "s", cfg.SessionID, "Session id (generated if empty)")
	fs.StringVar(&cfg.SessionDest, "session-dest", cfg.SessionDest, "Local destination: TRANSIENT or a base64 private key")
	var sessionOpts []string
	fs.StringArrayVarP(&sessionOpts, "session-opt", "o", nil, "Extra SESSION CREATE option key=value (repeatable)")
	fs.IntVarP(&cfg.Retries, "retries", "r", cfg.Retries, "Extra stream attempts on retryable failures")

	// ── execution ────────────────────────────────────────────────
	fs.StringVarP(&cfg.Execute, "exec", "e", "", "Execute program after connect")
	fs.StringVarP(&cfg.Command, "command", "c", "", "Execute shell command after connect")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "Reach the bridge via SSH [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── mode / output ────────────────────────────────────────────
	fs.BoolVar(&cfg.Probe, "probe", false, "Handshake with the bridge, print its version and exit")
	fs.BoolVar(&cfg.Stats, "stats", false, "Print a metrics snapshot to stderr on exit")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Validate the configuration and exit")
	verbose := cfg.Verbose
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp || len(args) == 0 {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(stderr, "gosam %s\n", version)
		return nil
	}

	// CountVar starts from zero; keep GOSAM_VERBOSE unless -v was given.
	if !fs.Changed("verbose") {
		cfg.Verbose = verbose
	}
	cfg.Timeout = time.Duration(timeoutSec) * time.Second

	// ── positional arguments ─────────────────────────────────────
	switch rest := fs.Args(); len(rest) {
	case 0:
	case 1:
		cfg.Destination = rest[0]
	default:
		return fmt.Errorf("too many arguments: expected one destination, got %d", len(rest))
	}

	if err := cfg.ResolveBridge(); err != nil {
		return err
	}
	if err := cfg.AddOptions(sessionOpts); err != nil {
		return err
	}
	if err := cfg.ResolveTunnel(); err != nil {
		return err
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.DryRun {
		printConfig(cfg)
		return nil
	}

	// ── build and run ────────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	mode, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}
	return mode.Run(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────

func printConfig(cfg *config.Config) {
	w := stderr
	fmt.Fprintf(w, "bridge:      %s\n", util.FormatAddr(cfg.SAMHost, cfg.SAMPort))
	if cfg.TunnelEnabled {
		fmt.Fprintf(w, "tunnel:      %s@%s\n", cfg.TunnelUser, util.FormatAddr(cfg.TunnelHost, cfg.TunnelPort))
	}
	if cfg.Probe {
		fmt.Fprintln(w, "mode:        probe")
		return
	}
	id := cfg.SessionID
	if id == "" {
		id = "(generated)"
	}
	fmt.Fprintf(w, "session:     %s (%s)\n", id, cfg.SessionDest)
	if len(cfg.SessionOptions) > 0 {
		keys := make([]string, 0, len(cfg.SessionOptions))
		for k := range cfg.SessionOptions {
			keys = append(keys, k+"="+cfg.SessionOptions[k])
		}
		sort.Strings(keys)
		fmt.Fprintf(w, "options:     %s\n", strings.Join(keys, " "))
	}
	fmt.Fprintf(w, "destination: %s\n", cfg.Destination)
	fmt.Fprintf(w, "retries:     %d\n", cfg.Retries)
	switch {
	case cfg.Execute != "":
		fmt.Fprintf(w, "exec:        %s\n", cfg.Execute)
	case cfg.Command != "":
		fmt.Fprintf(w, "command:     %s\n", cfg.Command)
	}
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(stderr, `gosam - SAM v3 stream client v%s

Opens a stream to an I2P destination through a SAM bridge and relays
stdin/stdout (or a child process) across it.

Usage:
  gosam [options] <destination>               Connect and relay
  gosam --probe [options]                     Check the bridge

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(stderr, `
Examples:
  gosam example.b32.i2p                       Relay stdin/stdout
  gosam -o inbound.length=1 peer.b32.i2p      Short tunnels
  gosam -c 'tar cf - dir' backup.b32.i2p      Pipe a command
  gosam -T admin@router --probe               Bridge on a remote host
  echo "GET /" | gosam site.b32.i2p           Pipe data
`)
}
