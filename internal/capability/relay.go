package capability

import (
	"context"

	"gosam/internal/session"
	"gosam/util"
)

// Relay copies data bidirectionally between the stream and the
// session's stdin/stdout.  This is the default mode.
type Relay struct{}

// Handle shuttles bytes until the remote side ends the stream, a copy
// fails or the context is cancelled.
func (r *Relay) Handle(ctx context.Context, sess *session.Session) error {
	sess.Logger.Debug("relay: stdio <-> %s", sess.Peer)
	return util.BidirectionalCopy(ctx, sess.Stream, sess.Stdin, sess.Stdout)
}
