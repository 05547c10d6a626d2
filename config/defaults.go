package config

import (
	"time"

	"gosam/sam"
)

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags and environment variable loading.

const (
	// DefaultSAMHost is where a local I2P router listens for SAM.
	DefaultSAMHost = sam.DefaultHost

	// DefaultSAMPort is the standard SAM bridge port.
	DefaultSAMPort = sam.DefaultPort

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultConnTimeout bounds dialing plus negotiation.  Tunnel
	// building inside the router can take tens of seconds.
	DefaultConnTimeout = 60 * time.Second

	// DefaultRetries is how many extra stream attempts follow a
	// retryable STREAM STATUS failure.
	DefaultRetries = 2
)
