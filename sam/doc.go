// Package sam implements the client side of the SAM v3 control protocol
// spoken by an anonymizing-network bridge (an I2P router) on a local TCP
// port.
//
// A Conn owns one bridge socket.  It performs the HELLO handshake,
// optionally creates a STREAM session, and optionally issues a single
// STREAM CONNECT once a destination and a session id are known.  When
// the bridge accepts the stream the Conn switches to raw mode: from then
// on every inbound byte is delivered as data and Write passes bytes
// through unmodified.
//
// Progress is reported as Events to listeners registered with
// Conn.Subscribe.  The blocking helpers Probe, CreateSession and
// DialStream wrap the event API for callers that just want a result:
//
//	ctl, err := sam.CreateSession(ctx, sam.Options{
//		Session: &sam.SessionParams{ID: sam.NewSessionID()},
//	})
//	...
//	st, err := sam.DialStream(ctx, sam.Options{}, id, dest)
//	io.Copy(os.Stdout, st)
//
// The engine never retries.  A failed Conn is closed and a new one must
// be built.
package sam
