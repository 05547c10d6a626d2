package sam

// EventKind names a caller-visible signal.
type EventKind string

const (
	EventConnect   EventKind = "connect"
	EventHandshake EventKind = "handshake"
	EventSession   EventKind = "session"
	EventStream    EventKind = "stream"
	EventData      EventKind = "data"
	EventError     EventKind = "error"
	EventClose     EventKind = "close"
	// EventUnhandled carries commands no negotiator consumed.
	EventUnhandled EventKind = "unhandled"
)

// CommandEvent is the kind under which every parsed command with the
// given two-token name is published, e.g. CommandEvent("NAMING REPLY").
func CommandEvent(name string) EventKind { return EventKind(name) }

// Event is delivered to listeners registered with Conn.Subscribe.
// Which fields are set depends on Kind:
//
//	handshake, session, stream  OK, Command; Args on failure
//	data                        Data, Text when an Encoding is set
//	error                       Err
//	close                       Err (nil for a clean close)
//	command kinds, unhandled    Command, Args
type Event struct {
	Kind    EventKind
	Command Command
	OK      bool
	Args    string
	Data    []byte
	Text    string
	Err     error
}
