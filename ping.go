package erc

import (
	"strconv"
	"time"
)

const (
	defaultPingInterval = 30 * time.Second
	defaultPingTimeout  = 120 * time.Second

	// keepaliveArmDelay is the pause between registration and the first
	// keepalive tick, so a fresh connection isn't pinged mid-handshake.
	keepaliveArmDelay = 4 * time.Second
)

// keepaliveLoop periodically pings the server and watches for a hung
// connection. Each tick, if nothing has been received for longer than the
// timeout, the connection is marked timed out and force-closed, which lands
// in the connection manager's failure path (timed-out closures are eligible
// for reconnect). Otherwise a PING carrying the current time is sent past
// the flood queue, so lag is measured rather than queueing delay.
//
// The loop exits when stop is closed; a zero interval disables the monitor
// entirely (the loop is never started).
func (c *Conn) keepaliveLoop(interval, timeout time.Duration, stop <-chan struct{}) {
	arm := time.NewTimer(keepaliveArmDelay)
	defer arm.Stop()
	select {
	case <-arm.C:
	case <-stop:
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		c.keepaliveTick(timeout)
		select {
		case <-ticker.C:
		case <-stop:
			return
		}
	}
}

func (c *Conn) keepaliveTick(timeout time.Duration) {
	c.mu.Lock()
	idle := c.now().Sub(c.buf.lastReceived)
	if timeout > 0 && idle > timeout {
		c.timedOut = true
		sock := c.sock
		c.mu.Unlock()
		if sock != nil {
			sock.Close() // the reader unblocks and runs the failure path
		}
		return
	}
	c.lastPing = c.now()
	c.mu.Unlock()

	c.SendRaw(Ping(strconv.FormatInt(c.now().UnixMilli(), 10)), true)
}

// recordPong computes round-trip lag from a PONG that echoes one of our
// timestamped keepalive pings. Replies with payloads we did not send are
// ignored; lag measurement must not be confused by a chatty server.
func (c *Conn) recordPong(m *Message) {
	ms, err := strconv.ParseInt(echoPayload(m), 10, 64)
	if err != nil {
		return
	}
	sent := time.UnixMilli(ms)
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if sent.After(now) || now.Sub(sent) > 24*time.Hour {
		return
	}
	c.lag = now.Sub(sent)
}

// echoPayload returns the payload a PING or PONG carries: the trailing
// argument when present, otherwise the last middle argument.
func echoPayload(m *Message) string {
	if m.Contents != "" {
		return m.Contents
	}
	if len(m.Args) > 0 {
		return m.Args[len(m.Args)-1]
	}
	return ""
}
