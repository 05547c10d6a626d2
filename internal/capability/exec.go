package capability

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"gosam/internal/session"
)

// waitDelay bounds how long Exec waits for the stream reader after the
// child has exited.
const waitDelay = 500 * time.Millisecond

// Exec wires a stream to a child process's stdio.
// Either Program (-e) or Command (-c) must be set.
type Exec struct {
	Program string // -e: execute a program directly
	Command string // -c: execute via the system shell
}

// Handle starts the child process with its stdin/stdout/stderr
// connected to the stream.  When the child exits the stream is
// half-closed so the remote side sees EOF.
func (e *Exec) Handle(ctx context.Context, sess *session.Session) error {
	var cmd *exec.Cmd

	switch {
	case e.Command != "":
		if runtime.GOOS == "windows" {
			cmd = exec.CommandContext(ctx, "cmd.exe", "/C", e.Command)
		} else {
			cmd = exec.CommandContext(ctx, "/bin/sh", "-c", e.Command)
		}
	case e.Program != "":
		cmd = exec.CommandContext(ctx, e.Program)
	default:
		return fmt.Errorf("no command specified for exec mode")
	}

	cmd.Stdin = sess.Stream
	cmd.Stdout = sess.Stream
	cmd.Stderr = sess.Stream
	// The stdin copier blocks in Stream.Read until the remote sends
	// more; do not let it hold Wait forever.
	cmd.WaitDelay = waitDelay

	sess.Logger.Debug("exec: %s for %s", cmd.String(), sess.Peer)

	err := cmd.Run()
	sess.CloseWrite() //nolint:errcheck
	// ErrWaitDelay only means the stdin copier was cut off, which is
	// the normal end of a session.
	if err != nil && !errors.Is(err, exec.ErrWaitDelay) {
		return fmt.Errorf("exec %q: %w", cmd.Path, err)
	}
	return nil
}
