package erc

import (
	"errors"
	"io"
	"strings"
	"syscall"
	"testing"
	"time"
)

func TestIsQuitLine(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"QUIT", true},
		{"QUIT :bye", true},
		{"quit :bye", true},
		{"QUITTER", false},
		{"PRIVMSG #c :QUIT", false},
	}
	for _, tt := range tests {
		if got := isQuitLine(tt.line); got != tt.want {
			t.Errorf("isQuitLine(%q) = %v; want %v", tt.line, got, tt.want)
		}
	}
}

func TestSendRawMarksQuitting(t *testing.T) {
	conn := newTestConn(nil)
	conn.flood = newFloodScheduler(&writeRecorder{}, 0, 0, nil, nil)

	conn.SendRaw(Privmsg("#c", "hi"), false)
	if conn.quitting {
		t.Fatal("PRIVMSG flipped the quit flag")
	}

	conn.Quit("done here")
	if !conn.quitting {
		t.Error("QUIT did not flip the quit flag")
	}
	if got := conn.State(); got != StateDisconnecting {
		t.Errorf("state = %v; want disconnecting", got)
	}
}

func TestSendSplitsLongText(t *testing.T) {
	w := &writeRecorder{}
	conn := newTestConn(nil)
	conn.client.MaxLineLen = 10
	conn.client.FloodMargin = time.Hour // let everything through
	conn.flood = newFloodScheduler(w, 0, time.Hour, nil, nil)

	conn.Send("aaa bbb ccc ddd", false, "")

	if len(w.lines) != 2 {
		t.Fatalf("wrote %d lines; want 2", len(w.lines))
	}
	for _, l := range w.lines {
		if len(l) > 10+2 { // limit plus CR-LF
			t.Errorf("line %q exceeds the limit", l)
		}
	}
}

func TestNoteWriteBookkeeping(t *testing.T) {
	base := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	w := &writeRecorder{}
	conn := newTestConn(nil)
	conn.now = func() time.Time { return base }
	conn.flood = newFloodScheduler(w, 0, 0, conn.noteWrite, nil)
	conn.flood.now = conn.now

	conn.SendRaw(Privmsg("#c", "one"), false)
	conn.SendRaw(Privmsg("#c", "two"), false)

	if conn.linesSent != 2 {
		t.Errorf("linesSent = %d; want 2", conn.linesSent)
	}
	if !conn.lastSent.Equal(base) {
		t.Errorf("lastSent = %v; want %v", conn.lastSent, base)
	}
}

func TestEvaluateClosure(t *testing.T) {
	unexpected := errors.New("read: connection reset")
	refused := syscall.ECONNREFUSED

	tests := []struct {
		name      string
		configure func(c *Client)
		prepare   func(conn *Conn)
		reason    error
		wantRetry bool
		wantState ConnState
	}{
		{
			name:      "reconnect disabled",
			reason:    unexpected,
			wantRetry: false,
			wantState: StateTerminated,
		},
		{
			name:      "unexpected closure retries",
			configure: func(c *Client) { c.AutoReconnect = true },
			reason:    unexpected,
			wantRetry: true,
			wantState: StateReconnecting,
		},
		{
			name:      "timed out closure retries",
			configure: func(c *Client) { c.AutoReconnect = true },
			prepare:   func(conn *Conn) { conn.timedOut = true },
			reason:    ErrTimedOut,
			wantRetry: true,
			wantState: StateReconnecting,
		},
		{
			name:      "user quit never retries",
			configure: func(c *Client) { c.AutoReconnect = true },
			prepare:   func(conn *Conn) { conn.quitting = true },
			reason:    ErrClosed,
			wantRetry: false,
			wantState: StateTerminated,
		},
		{
			name:      "banned session never retries",
			configure: func(c *Client) { c.AutoReconnect = true },
			prepare:   func(conn *Conn) { conn.banned = true },
			reason:    unexpected,
			wantRetry: false,
			wantState: StateTerminated,
		},
		{
			name:      "superseded session never retries",
			configure: func(c *Client) { c.AutoReconnect = true },
			prepare:   func(conn *Conn) { conn.superseded = true },
			reason:    ErrClosed,
			wantRetry: false,
			wantState: StateTerminated,
		},
		{
			name:      "refused connection never retries",
			configure: func(c *Client) { c.AutoReconnect = true },
			reason:    refused,
			wantRetry: false,
			wantState: StateTerminated,
		},
		{
			name:      "budget exhausted",
			configure: func(c *Client) { c.AutoReconnect = true; c.MaxReconnectAttempts = 2 },
			prepare:   func(conn *Conn) { conn.attempts = 2 },
			reason:    unexpected,
			wantRetry: false,
			wantState: StateTerminated,
		},
		{
			name:      "unlimited budget",
			configure: func(c *Client) { c.AutoReconnect = true; c.MaxReconnectAttempts = -1 },
			prepare:   func(conn *Conn) { conn.attempts = 1000 },
			reason:    unexpected,
			wantRetry: true,
			wantState: StateReconnecting,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{Addr: "irc.example.com:6697", Nickname: "tester"}
			if tt.configure != nil {
				tt.configure(c)
			}
			conn := newConn(c, NewDispatchTable())
			if tt.prepare != nil {
				tt.prepare(conn)
			}

			delay := conn.evaluateClosure(tt.reason)
			if (delay > 0) != tt.wantRetry {
				t.Errorf("delay = %v; want retry = %v", delay, tt.wantRetry)
			}
			if got := conn.State(); got != tt.wantState {
				t.Errorf("state = %v; want %v", got, tt.wantState)
			}
		})
	}
}

// Attempts accumulate across consecutive failures: with the default budget
// of two, the third unexpected closure is terminal.
func TestEvaluateClosureBudgetAccumulates(t *testing.T) {
	c := &Client{Addr: "irc.example.com:6697", Nickname: "tester", AutoReconnect: true}
	conn := newConn(c, NewDispatchTable())

	reason := errors.New("connection reset")
	if d := conn.evaluateClosure(reason); d == 0 {
		t.Fatal("first closure should retry")
	}
	if d := conn.evaluateClosure(reason); d == 0 {
		t.Fatal("second closure should retry")
	}
	if d := conn.evaluateClosure(reason); d != 0 {
		t.Fatal("third closure should be terminal")
	}
}

// A refused connection consumes an attempt even though it is never retried,
// so alternating failure modes cannot stretch the budget.
func TestEvaluateClosureRefusedConsumesAttempt(t *testing.T) {
	c := &Client{Addr: "irc.example.com:6697", Nickname: "tester", AutoReconnect: true}
	conn := newConn(c, NewDispatchTable())

	conn.evaluateClosure(syscall.ECONNREFUSED)
	if conn.attempts != 1 {
		t.Errorf("attempts = %d after a refused connection; want 1", conn.attempts)
	}
}

// A welcome resets the attempt counter, so each established session gets the
// full budget again.
func TestAttemptsResetOnWelcome(t *testing.T) {
	c := &Client{Addr: "irc.example.com:6697", Nickname: "tester", AutoReconnect: true}
	conn := newConn(c, NewDispatchTable())

	reason := errors.New("connection reset")
	conn.evaluateClosure(reason)
	conn.evaluateClosure(reason)

	m, _ := Parse(":srv 001 tester :Welcome back", "srv")
	conn.table.dispatch(conn, m)

	if d := conn.evaluateClosure(reason); d == 0 {
		t.Error("closure after a fresh welcome should retry")
	}
}

func TestClosureErrorMentionsBan(t *testing.T) {
	conn := newTestConn(nil)

	if err := conn.closureError(io.EOF); !errors.Is(err, io.EOF) || errors.Is(err, ErrBanned) {
		t.Errorf("unbanned closure = %v", err)
	}

	conn.banned = true
	err := conn.closureError(ErrClosed)
	if !errors.Is(err, ErrBanned) {
		t.Errorf("banned closure = %v; want it to wrap ErrBanned", err)
	}
	if !strings.Contains(err.Error(), ErrClosed.Error()) {
		t.Errorf("banned closure = %v; want the raw reason preserved", err)
	}
}

func TestIsRefused(t *testing.T) {
	if !isRefused(syscall.ECONNREFUSED) {
		t.Error("bare ECONNREFUSED not classified as refused")
	}
	wrapped := &netOpError{err: syscall.ECONNREFUSED}
	if !isRefused(wrapped) {
		t.Error("wrapped ECONNREFUSED not classified as refused")
	}
	if isRefused(io.EOF) {
		t.Error("EOF misclassified as refused")
	}
}

// netOpError stands in for *net.OpError, which wraps the syscall error.
type netOpError struct {
	err error
}

func (e *netOpError) Error() string { return "dial tcp: " + e.err.Error() }
func (e *netOpError) Unwrap() error { return e.err }

func TestConnStateString(t *testing.T) {
	tests := []struct {
		state ConnState
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{StateDisconnecting, "disconnecting"},
		{StateReconnecting, "reconnecting"},
		{StateTerminated, "terminated"},
		{ConnState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("ConnState(%d).String() = %q; want %q", int(tt.state), got, tt.want)
		}
	}
}
