package sam

// State is the single authoritative lifecycle position of a Conn.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAwaitingHandshake
	StateHandshakeFailed
	// StateReady: handshake done, no session requested, stream intent
	// incomplete.
	StateReady
	StateSessionPending
	StateSessionFailed
	StateSessionActive
	StateStreamPending
	StateStreamFailed
	StateStreamActive
	StateClosed
)

var stateNames = [...]string{
	StateDisconnected:      "disconnected",
	StateConnecting:        "connecting",
	StateAwaitingHandshake: "awaiting-handshake",
	StateHandshakeFailed:   "handshake-failed",
	StateReady:             "ready",
	StateSessionPending:    "session-pending",
	StateSessionFailed:     "session-failed",
	StateSessionActive:     "session-active",
	StateStreamPending:     "stream-pending",
	StateStreamFailed:      "stream-failed",
	StateStreamActive:      "stream-active",
	StateClosed:            "closed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Failed reports whether s is one of the protocol failure states.
func (s State) Failed() bool {
	return s == StateHandshakeFailed || s == StateSessionFailed || s == StateStreamFailed
}
