package erc

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"sync"
	"time"
)

const (
	defaultReconnectAttempts = 2
	defaultReconnectDelay    = 1 * time.Second
)

// A Client manages the connection to one IRC server: dialing, reading and
// parsing lines, dispatching them, pacing outbound traffic, keepalive, and
// reconnecting after unexpected closures.
//
// Configure it by setting fields before calling Run; zero values select the
// documented defaults. A Client runs one session at a time; a second Run
// call supersedes the first.
type Client struct {

	// The address ("host:port") of the IRC server. Only used when DialFn is
	// nil, in which case the connection is made with tls.Dial.
	Addr string

	// The nickname requested when registering (required).
	Nickname string

	// The user name. Defaults to the nickname.
	User string

	// The realname (gecos) field. May contain spaces.
	Realname string

	// The connection password (optional: depends on the network).
	Pass string

	// TLSConfig is used by the default dialer. Set Certificates to present
	// a client certificate (CertFP). Ignored when DialFn is set.
	TLSConfig *tls.Config

	// DialFn overrides how the connection is established. The returned
	// stream must consist of CR/LF-delimited IRC lines; it can be a plain
	// TCP connection, a WebSocket adapter, or a test double.
	DialFn func() (io.ReadWriteCloser, error)

	// AutoReconnect enables reconnecting after unexpected closures.
	AutoReconnect bool

	// MaxReconnectAttempts caps consecutive reconnect attempts.
	// Zero selects the default (2); negative means unlimited.
	MaxReconnectAttempts int

	// ReconnectDelay is the pause before a reconnect attempt (default 1s).
	ReconnectDelay time.Duration

	// FloodPenalty and FloodMargin tune the outbound pacing algorithm:
	// every line costs penalty (default 3s) against a clock that may run at
	// most margin (default 10s) ahead of real time.
	FloodPenalty time.Duration
	FloodMargin  time.Duration

	// PingInterval is the keepalive period (default 30s); negative disables
	// the keepalive monitor. PingTimeout is how long the connection may be
	// silent before it is declared hung (default 120s); negative disables
	// the timeout check while keeping the pings.
	PingInterval time.Duration
	PingTimeout  time.Duration

	// DuplicateCommands lists commands whose textually identical lines are
	// suppressed within DuplicateWindow (defaults: ["301"], 60s).
	DuplicateCommands []string
	DuplicateWindow   time.Duration

	// MaxLineLen caps the encoded byte length of outbound free-text lines
	// (default 440). Send folds longer text on word boundaries.
	MaxLineLen int

	// Encoding resolves the character encoding for a target (channel name
	// or ""). nil, or a nil return, means UTF-8 passthrough.
	Encoding EncodingResolver

	// Notice receives human-readable connection notices: unknown-command
	// fallbacks and terminal failure descriptions. nil routes them to the
	// error log.
	Notice func(text string)

	// ErrorLog specifies an optional logger for parse errors, swallowed
	// write errors, and lifecycle events. If nil, logging is done via the
	// log package's standard logger.
	ErrorLog *log.Logger

	mu   sync.Mutex // guards conn and the defaulting done by Run
	conn *Conn
}

// Run connects to the server and processes the session until it terminates.
// The table's handlers are called synchronously, in wire order, for every
// parsed message.
//
// Run owns the reconnect state machine: unexpected closures are retried per
// the Auto/Max/Delay settings, and Run only returns once the session reaches
// its terminal state. The returned error is nil for a user-initiated quit
// (including ctx cancellation); otherwise it is the final closure reason.
func (c *Client) Run(ctx context.Context, table *DispatchTable) error {
	if c.Nickname == "" {
		panic("erc: client nickname cannot be empty")
	}

	// concurrent Run calls serialize here; the loser's session is
	// superseded below before the winner's conn becomes visible
	c.mu.Lock()
	if c.User == "" {
		c.User = c.Nickname
	}
	if c.Realname == "" {
		c.Realname = c.Nickname
	}
	if c.DialFn == nil {
		if c.Addr == "" {
			c.mu.Unlock()
			panic("erc: Addr cannot be empty when DialFn is nil")
		}
		c.DialFn = func() (io.ReadWriteCloser, error) {
			return tls.Dial("tcp", c.Addr, c.TLSConfig)
		}
	}
	if table == nil {
		table = NewDispatchTable()
	}

	prev := c.conn
	conn := newConn(c, table)
	c.conn = conn
	c.mu.Unlock()

	if prev != nil {
		prev.supersede()
	}

	// ctx cancellation is a graceful quit: send QUIT past the queue and
	// give the server a moment to close the link from its side.
	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-stopWatch:
		case <-ctx.Done():
			conn.Quit("closing link")
			t := time.NewTimer(3 * time.Second)
			defer t.Stop()
			select {
			case <-stopWatch:
			case <-t.C:
				conn.closeSocket()
			}
		}
	}()

	for {
		conn.setState(StateConnecting)
		sock, err := c.DialFn()
		if err != nil {
			if next := conn.dialFailed(err); next > 0 {
				if !sleepCtx(ctx, next) {
					return c.finish(conn, nil)
				}
				continue
			}
			return c.finish(conn, err)
		}

		reason := conn.runSession(sock)

		conn.mu.Lock()
		quitting := conn.quitting
		conn.mu.Unlock()
		if quitting {
			conn.setState(StateTerminated)
			return c.finish(conn, nil)
		}

		if next := conn.closeFailed(reason); next > 0 {
			if !sleepCtx(ctx, next) {
				return c.finish(conn, nil)
			}
			continue
		}
		return c.finish(conn, conn.closureError(reason))
	}
}

func (c *Client) finish(conn *Conn, err error) error {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	if err != nil {
		conn.notice(fmt.Sprintf("Connection to %s failed: %v", c.Addr, err))
	}
	return err
}

// sleepCtx waits for d or until ctx is done; it reports whether the full
// delay elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// log reports errors which are noteworthy but not a reason to drop the
// connection.
func (c *Client) log(err error) {
	if c.ErrorLog == nil {
		log.Println(err)
		return
	}
	c.ErrorLog.Println(err)
}

