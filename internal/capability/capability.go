// Package capability defines what happens over an established SAM
// stream.  Each Capability encapsulates a single behaviour (relay
// stdio, run a program) and operates on a Session, which keeps it
// independent of how the stream was negotiated.
package capability

import (
	"context"

	"gosam/internal/session"
)

// Capability handles one stream.  Implementations are Relay and Exec.
type Capability interface {
	// Handle blocks until the stream is done or ctx is cancelled.
	Handle(ctx context.Context, sess *session.Session) error
}
