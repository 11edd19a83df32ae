package erc

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// ConnState is the lifecycle state of a connection.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateDisconnecting
	StateReconnecting
	StateTerminated
)

// String implements fmt.Stringer.
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateReconnecting:
		return "reconnecting"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Conn is the per-session connection handle passed to handlers. It owns the
// socket exclusively and carries the session state: lifecycle flags, the
// reconnect attempt counter, activity timestamps, and what the server has
// announced about itself.
//
// All exported methods are safe for concurrent use; handlers themselves run
// serialized, one message at a time, in wire order.
type Conn struct {
	client *Client
	table  *DispatchTable

	mu         sync.Mutex
	sock       io.ReadWriteCloser
	state      ConnState
	quitting   bool // user asked to leave; closure is not a failure
	superseded bool // a newer Run call took over
	banned     bool
	timedOut   bool
	attempts   int

	lastSent  time.Time
	lastPing  time.Time
	linesSent int
	lag       time.Duration

	buf   frameBuffer
	dupes *dupeFilter
	flood *floodScheduler

	nick          string
	announced     string // server name used for prefixless messages
	serverName    string
	serverVersion string
	isupport      ServerParams

	now func() time.Time // test hook
}

func newConn(c *Client, table *DispatchTable) *Conn {
	conn := &Conn{
		client:    c,
		table:     table,
		state:     StateDisconnected,
		nick:      c.Nickname,
		announced: strings.Split(c.Addr, ":")[0],
		dupes:     newDupeFilter(c.duplicateCommands(), c.duplicateWindow()),
		now:       time.Now,
	}
	conn.buf.now = func() time.Time { return conn.now() }
	return conn
}

// runSession drives one live connection: registration, the read loop, and
// teardown. It returns the closure reason once the socket is dead.
func (conn *Conn) runSession(sock io.ReadWriteCloser) error {
	now := conn.now()
	conn.mu.Lock()
	conn.sock = sock
	conn.linesSent = 0
	conn.lastSent = now
	conn.lastPing = now
	conn.buf.pending = nil
	conn.buf.lastReceived = now
	conn.timedOut = false
	conn.lag = 0
	conn.flood = newFloodScheduler(sock, conn.client.FloodPenalty, conn.client.FloodMargin, conn.noteWrite, conn.client.log)
	conn.flood.now = func() time.Time { return conn.now() }
	conn.mu.Unlock()

	conn.setState(StateConnected)

	stop := make(chan struct{})
	defer close(stop)
	if interval := conn.client.pingInterval(); interval > 0 {
		go conn.keepaliveLoop(interval, conn.client.pingTimeout(), stop)
	}
	defer conn.flood.stop()

	conn.register()

	// The read loop is the only goroutine that parses and dispatches, so
	// messages from one connection are never processed concurrently; bytes
	// arriving mid-dispatch simply wait in the socket buffer.
	buf := make([]byte, 4096)
	for {
		n, err := sock.Read(buf)
		if n > 0 {
			conn.mu.Lock()
			lines := conn.buf.feed(buf[:n])
			conn.mu.Unlock()
			for _, line := range lines {
				conn.handleLine(line)
			}
		}
		if err != nil {
			_ = sock.Close()
			conn.mu.Lock()
			conn.sock = nil
			timedOut := conn.timedOut
			conn.mu.Unlock()
			if timedOut {
				return ErrTimedOut
			}
			if err == io.EOF {
				return ErrClosed
			}
			return err
		}
	}
}

// register performs the opening handshake: optional PASS, then NICK and
// USER. The lines take the normal flood queue; the margin covers them.
func (conn *Conn) register() {
	if conn.client.Pass != "" {
		conn.SendRaw(Pass(conn.client.Pass), false)
	}
	conn.SendRaw(Nick(conn.client.Nickname), false)
	conn.SendRaw(User(conn.client.User, conn.client.Realname), false)
}

// handleLine parses and dispatches one complete line. Failures are isolated:
// a bad line is logged and the next one proceeds.
func (conn *Conn) handleLine(line []byte) {
	m, err := parseMessage(string(line), conn.AnnouncedServer())
	if err != nil {
		conn.client.log(fmt.Errorf("parse %q: %w", line, err))
		return
	}
	decodeMessage(m, conn.client.Encoding)

	now := conn.now()
	conn.mu.Lock()
	deliver := conn.dupes.shouldDeliver(m, now)
	conn.mu.Unlock()

	if deliver {
		conn.table.dispatch(conn, m)
	}
	// periodic consumers hear about suppressed lines too
	conn.table.tick(now)
}

// dialFailed records a failed connection attempt and decides what happens
// next: a positive return is the delay before retrying, zero means the
// session is terminal.
func (conn *Conn) dialFailed(err error) time.Duration {
	return conn.evaluateClosure(err)
}

// closeFailed is dialFailed's counterpart for closures of an established
// connection.
func (conn *Conn) closeFailed(reason error) time.Duration {
	return conn.evaluateClosure(reason)
}

// evaluateClosure is the single reconnect-eligibility decision. Reconnect is
// attempted iff auto-reconnect is on, the session is not banned or being
// torn down on purpose, the attempt budget remains, and the closure was not
// a refused connection. Refused connections consume an attempt anyway, so a
// dead server does not dodge the cap by failing fast.
func (conn *Conn) evaluateClosure(reason error) time.Duration {
	conn.mu.Lock()
	defer conn.mu.Unlock()

	max := conn.client.maxAttempts()
	refused := isRefused(reason)
	if refused {
		conn.attempts++
	}

	// a superseded session is an intentional teardown unless the keepalive
	// monitor had already declared it hung
	intentional := conn.quitting || (conn.superseded && !conn.timedOut)

	eligible := conn.client.AutoReconnect &&
		!conn.banned &&
		!intentional &&
		(max < 0 || conn.attempts < max) &&
		!refused

	if !eligible {
		conn.state = StateTerminated
		return 0
	}

	conn.attempts++
	conn.state = StateReconnecting
	delay := conn.client.reconnectDelay()
	conn.client.log(fmt.Errorf("connection closed (%v); reconnecting in %s (attempt %d)", reason, delay, conn.attempts))
	return delay
}

// closureError decorates a terminal closure reason so callers can observe
// why the session will not come back: a ban forced ineligibility regardless
// of what the raw socket error was.
func (conn *Conn) closureError(reason error) error {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.banned {
		return fmt.Errorf("%w: %v", ErrBanned, reason)
	}
	return reason
}

// supersede tears the session down in favor of a newer Run call. The closure
// is intentional: no reconnect, no failure notice.
func (conn *Conn) supersede() {
	conn.mu.Lock()
	conn.superseded = true
	conn.quitting = true
	sock := conn.sock
	conn.mu.Unlock()
	if sock != nil {
		sock.Close()
	}
}

func (conn *Conn) closeSocket() {
	conn.mu.Lock()
	sock := conn.sock
	conn.mu.Unlock()
	if sock != nil {
		sock.Close()
	}
}

func (conn *Conn) setState(s ConnState) {
	conn.mu.Lock()
	conn.state = s
	conn.mu.Unlock()
}

// noteWrite is the flood scheduler's write observer.
func (conn *Conn) noteWrite(t time.Time) {
	conn.mu.Lock()
	conn.lastSent = t
	conn.linesSent++
	conn.mu.Unlock()
}

// notice delivers a human-readable line to the embedding client's sink, or
// to the error log when no sink is configured. Nothing is silently dropped.
func (conn *Conn) notice(text string) {
	if conn.client.Notice != nil {
		conn.client.Notice(text)
		return
	}
	conn.client.log(fmt.Errorf("notice: %s", text))
}

// SendRaw encodes one preformatted protocol line (no terminator) with the
// default encoding and hands it to the outbound scheduler. force bypasses
// the flood queue; forced lines may overtake queued ones.
func (conn *Conn) SendRaw(line string, force bool) {
	if isQuitLine(line) {
		conn.mu.Lock()
		conn.quitting = true
		conn.state = StateDisconnecting
		conn.mu.Unlock()
	}

	conn.mu.Lock()
	flood := conn.flood
	conn.mu.Unlock()
	if flood == nil {
		conn.client.log(fmt.Errorf("send %q: %w", line, ErrClosed))
		return
	}

	wire := append(encodeText(line, conn.client.encodingFor("")), '\r', '\n')
	flood.send(wire, force)
}

// Send folds free text into wire lines no longer than the configured limit
// (measured after encoding for target) and enqueues each one. target selects
// the character encoding; leave it empty for the default.
func (conn *Conn) Send(text string, force bool, target string) {
	enc := conn.client.encodingFor(target)
	max := conn.client.MaxLineLen
	if max <= 0 {
		max = defaultMaxLineLen
	}

	conn.mu.Lock()
	flood := conn.flood
	conn.mu.Unlock()
	if flood == nil {
		conn.client.log(fmt.Errorf("send %q: %w", text, ErrClosed))
		return
	}

	for _, chunk := range splitText(text, enc, max) {
		wire := append(encodeText(chunk, enc), '\r', '\n')
		flood.send(wire, force)
	}
}

// Quit sends a QUIT with the given reason, bypassing the flood queue, and
// marks the session as leaving so the resulting closure does not reconnect.
func (conn *Conn) Quit(reason string) {
	conn.SendRaw(Quit(reason), true)
}

// State returns the connection's lifecycle state.
func (conn *Conn) State() ConnState {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	return conn.state
}

// Nick returns the client's current nickname as confirmed by the server.
func (conn *Conn) Nick() string {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	return conn.nick
}

// Lag returns the most recent keepalive round-trip measurement, or zero
// when none has completed yet.
func (conn *Conn) Lag() time.Duration {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	return conn.lag
}

// AnnouncedServer returns the name the server announced for itself, used as
// the sender for prefixless messages. Before RPL_WELCOME it falls back to
// the configured address.
func (conn *Conn) AnnouncedServer() string {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	return conn.announced
}

// ServerVersion returns the version string from RPL_MYINFO, or "".
func (conn *Conn) ServerVersion() string {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	return conn.serverVersion
}

// ServerName returns the server name from RPL_MYINFO, or "".
func (conn *Conn) ServerName() string {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	return conn.serverName
}

// Params returns a copy of the parameters the server has advertised through
// RPL_ISUPPORT, in announcement order.
func (conn *Conn) Params() ServerParams {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	return conn.isupport.clone()
}
