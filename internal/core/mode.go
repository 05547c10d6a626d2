// Package core is the orchestration layer.  It composes the SAM
// engine, transports and capabilities into complete operational modes
// and provides a builder that selects the right mode from a Config.
//
// Architecture layers (bottom → top):
//
//	transport  →  sam  →  capability  →  session  →  core  →  cmd (CLI)
package core

import "context"

// Mode represents a complete operational mode of gosam (stream or
// probe).  Each mode owns its full lifecycle from the first bridge
// connection to teardown.
type Mode interface {
	Run(ctx context.Context) error
}
