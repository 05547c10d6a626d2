package sam

// The negotiators run as internal routes, synchronously on the read
// goroutine with c.mu held.  Each one only acts in the state where its
// reply is expected; a stray reply is still published as a command
// event.

func (c *Conn) onHelloReply(cmd Command) {
	if c.state != StateAwaitingHandshake {
		c.logger.Debug("sam: ignoring %s in state %s", cmd.Name, c.state)
		return
	}
	args := ParseArgs(cmd.Args)
	if args["RESULT"] != "OK" {
		c.setStateLocked(StateHandshakeFailed)
		c.queueLocked(Event{Kind: EventHandshake, Command: cmd, Args: cmd.Args})
		c.failLocked(&HandshakeError{Args: cmd.Args})
		return
	}

	c.handshakeOK = true
	c.version = args["VERSION"]
	c.queueLocked(Event{Kind: EventHandshake, Command: cmd, OK: true})

	if s := c.opts.Session; s != nil {
		c.setStateLocked(StateSessionPending)
		if c.sendLocked(s.createLine()) != nil {
			return
		}
	} else {
		c.setStateLocked(StateReady)
	}
	c.maybeConnectLocked()
}

func (c *Conn) onSessionStatus(cmd Command) {
	if c.state != StateSessionPending {
		c.logger.Debug("sam: ignoring %s in state %s", cmd.Name, c.state)
		return
	}
	s := c.opts.Session
	args := ParseArgs(cmd.Args)
	if args["RESULT"] != "OK" {
		c.setStateLocked(StateSessionFailed)
		c.queueLocked(Event{Kind: EventSession, Command: cmd, Args: cmd.Args})
		c.failLocked(&SessionError{ID: s.ID, Args: cmd.Args})
		return
	}

	c.sessionActive = true
	c.sessionDest = args["DESTINATION"]
	if c.sessionID == "" {
		c.sessionID = s.ID
	}
	c.setStateLocked(StateSessionActive)
	c.logger.Verbose("sam: session %s created", s.ID)
	c.queueLocked(Event{Kind: EventSession, Command: cmd, OK: true})
	c.maybeConnectLocked()
}

// streamReadyLocked reports whether every precondition of STREAM
// CONNECT holds and it has not been sent yet.
func (c *Conn) streamReadyLocked() bool {
	if c.connectSent || c.state == StateClosed || !c.handshakeOK {
		return false
	}
	if c.opts.Session != nil && !c.sessionActive {
		return false
	}
	return c.destination != "" && c.sessionID != ""
}

func (c *Conn) maybeConnectLocked() {
	if !c.streamReadyLocked() {
		return
	}
	c.connectSent = true
	c.setStateLocked(StateStreamPending)
	c.sendLocked("STREAM CONNECT ID=" + c.sessionID + " DESTINATION=" + c.destination) //nolint:errcheck
}

func (c *Conn) onStreamStatus(cmd Command) {
	if c.state != StateStreamPending {
		c.logger.Debug("sam: ignoring %s in state %s", cmd.Name, c.state)
		return
	}
	if !cmd.OK() {
		c.setStateLocked(StateStreamFailed)
		c.queueLocked(Event{Kind: EventStream, Command: cmd, Args: cmd.Args})
		c.failLocked(&StreamError{ID: c.sessionID, Destination: c.destination, Args: cmd.Args})
		return
	}
	c.switchToRawLocked()
	c.queueLocked(Event{Kind: EventStream, Command: cmd, OK: true})
}

// switchToRawLocked stops command framing for good.  From here on every
// inbound byte is data and Write is allowed.
func (c *Conn) switchToRawLocked() {
	if c.raw {
		return
	}
	c.raw = true
	c.setStateLocked(StateStreamActive)
	c.metrics.StreamOpened()
	c.logger.Verbose("sam: stream to %s open, relaying raw bytes", ShortDest(c.destination))
}

// ShortDest abbreviates a base64 destination for log lines.
func ShortDest(d string) string {
	if len(d) <= 16 {
		return d
	}
	return d[:8] + "..." + d[len(d)-4:]
}
