package erc

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newTestConn(notices *[]string) *Conn {
	c := &Client{
		Addr:     "irc.example.com:6697",
		Nickname: "tester",
	}
	if notices != nil {
		c.Notice = func(text string) { *notices = append(*notices, text) }
	}
	table := &DispatchTable{index: make(map[string]int), fallback: fallbackNotice}
	return newConn(c, table)
}

func TestNormalizeCommand(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1", "001"},
		{"001", "001"},
		{"301", "301"},
		{"privmsg", "PRIVMSG"},
		{"PrivMsg", "PRIVMSG"},
		{"PING", "PING"},
	}
	for _, tt := range tests {
		if got := normalizeCommand(tt.in); got != tt.want {
			t.Errorf("normalizeCommand(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestDispatchOrderAndPropagation(t *testing.T) {
	table := &DispatchTable{index: make(map[string]int)}
	var calls []string

	table.HandleFunc(CmdPrivmsg, func(c *Conn, m *Message) bool {
		calls = append(calls, "first")
		return false
	})
	table.HandleFunc(CmdPrivmsg, func(c *Conn, m *Message) bool {
		calls = append(calls, "second")
		return true
	})
	table.HandleFunc(CmdPrivmsg, func(c *Conn, m *Message) bool {
		calls = append(calls, "third")
		return false
	})
	table.SetFallback(func(c *Conn, m *Message) bool {
		calls = append(calls, "fallback")
		return true
	})

	m, _ := Parse(":n!u@h PRIVMSG #c :hi", "s")
	table.dispatch(nil, m)

	want := []string{"first", "second"}
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Errorf("call sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatchFallback(t *testing.T) {
	table := &DispatchTable{index: make(map[string]int)}
	var fell *Message
	table.SetFallback(func(c *Conn, m *Message) bool {
		fell = m
		return true
	})

	m, _ := Parse(":n!u@h WALLOPS :look out", "s")
	table.dispatch(nil, m)
	if fell == nil {
		t.Fatal("fallback did not run for an unregistered command")
	}

	// the fallback also runs when handlers exist but none claims the message
	fell = nil
	table.HandleFunc("WALLOPS", func(c *Conn, m *Message) bool { return false })
	table.dispatch(nil, m)
	if fell == nil {
		t.Error("fallback did not run after handlers declined")
	}
}

func TestDispatchNumericNormalization(t *testing.T) {
	table := &DispatchTable{index: make(map[string]int)}
	var hits int
	table.HandleFunc("1", func(c *Conn, m *Message) bool {
		hits++
		return true
	})

	m, _ := Parse(":server 001 me :Welcome", "s")
	table.dispatch(nil, m)
	if hits != 1 {
		t.Errorf("handler registered as %q did not receive %q; hits = %d", "1", "001", hits)
	}
}

func TestAliasIndependence(t *testing.T) {
	table := &DispatchTable{index: make(map[string]int)}
	var calls []string

	table.HandleFunc(CmdPrivmsg, func(c *Conn, m *Message) bool {
		calls = append(calls, "shared")
		return false
	})
	table.Alias("MSG", CmdPrivmsg)

	// registrations after aliasing stay on their own side
	table.HandleFunc(CmdPrivmsg, func(c *Conn, m *Message) bool {
		calls = append(calls, "privmsg-only")
		return false
	})
	table.HandleFunc("MSG", func(c *Conn, m *Message) bool {
		calls = append(calls, "msg-only")
		return false
	})
	table.SetFallback(func(c *Conn, m *Message) bool { return true })

	m1, _ := Parse(":n!u@h PRIVMSG #c :hi", "s")
	table.dispatch(nil, m1)
	if diff := cmp.Diff([]string{"shared", "privmsg-only"}, calls); diff != "" {
		t.Errorf("PRIVMSG sequence mismatch (-want +got):\n%s", diff)
	}

	calls = nil
	m2, _ := Parse(":n!u@h MSG #c :hi", "s")
	table.dispatch(nil, m2)
	if diff := cmp.Diff([]string{"shared", "msg-only"}, calls); diff != "" {
		t.Errorf("MSG sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestFallbackNotice(t *testing.T) {
	var notices []string
	conn := newTestConn(&notices)

	m, _ := Parse(":someone!u@h INVITE me :#chan", "s")
	conn.table.dispatch(conn, m)

	want := []string{"someone INVITE me #chan"}
	if diff := cmp.Diff(want, notices); diff != "" {
		t.Errorf("notice mismatch (-want +got):\n%s", diff)
	}
}

func TestOnTick(t *testing.T) {
	table := &DispatchTable{index: make(map[string]int)}
	var ticks []time.Time
	table.OnTick(func(now time.Time) { ticks = append(ticks, now) })

	at := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	table.tick(at)
	table.tick(at.Add(time.Second))

	if len(ticks) != 2 || !ticks[0].Equal(at) {
		t.Errorf("tick consumers saw %v", ticks)
	}
}

// Suppressed duplicates still drive the tick, so periodic consumers keep
// their sense of time even when nothing is dispatched.
func TestTickFiresForSuppressedLines(t *testing.T) {
	conn := newTestConn(nil)
	conn.table.SetFallback(func(c *Conn, m *Message) bool { return true })

	var dispatched, ticked int
	conn.table.HandleFunc(RplAway, func(c *Conn, m *Message) bool {
		dispatched++
		return true
	})
	conn.table.OnTick(func(time.Time) { ticked++ })

	line := []byte(":server 301 me nick :away")
	conn.handleLine(line)
	conn.handleLine(line)

	if dispatched != 1 {
		t.Errorf("dispatched = %d; want 1 (second line is a duplicate)", dispatched)
	}
	if ticked != 2 {
		t.Errorf("ticked = %d; want 2 (suppressed lines tick too)", ticked)
	}
}

func TestCoreHandlerPong(t *testing.T) {
	conn := newTestConn(nil)
	registerCoreHandlers(conn.table)

	base := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	conn.now = func() time.Time { return base }

	sent := base.Add(-250 * time.Millisecond)
	m, _ := Parse("PONG :"+unixMilliString(sent), "s")
	conn.table.dispatch(conn, m)

	if got := conn.Lag(); got != 250*time.Millisecond {
		t.Errorf("lag = %v; want 250ms", got)
	}
}

func TestCoreHandlerWelcome(t *testing.T) {
	conn := newTestConn(nil)
	registerCoreHandlers(conn.table)
	conn.attempts = 2

	m, _ := Parse(":irc.srv.example 001 newnick :Welcome to the network", "s")
	conn.table.dispatch(conn, m)

	if got := conn.AnnouncedServer(); got != "irc.srv.example" {
		t.Errorf("announced server = %q", got)
	}
	if got := conn.Nick(); got != "newnick" {
		t.Errorf("nick = %q; want the server-confirmed form", got)
	}
	if conn.attempts != 0 {
		t.Errorf("attempts = %d; registration should reset the budget", conn.attempts)
	}
}

func TestCoreHandlerISupport(t *testing.T) {
	conn := newTestConn(nil)
	registerCoreHandlers(conn.table)

	m, _ := Parse(":srv 005 me NETWORK=Example EXCEPTS CHANLIMIT=#:50 :are supported by this server", "s")
	conn.table.dispatch(conn, m)
	m2, _ := Parse(":srv 005 me NETWORK=Renamed :are supported by this server", "s")
	conn.table.dispatch(conn, m2)

	params := conn.Params()
	if v, ok := params.Get("NETWORK"); !ok || v != "Renamed" {
		t.Errorf("NETWORK = %q, %v; re-announcement should update in place", v, ok)
	}
	if v, ok := params.Get("EXCEPTS"); !ok || v != "" {
		t.Errorf("EXCEPTS = %q, %v; want present with empty value", v, ok)
	}
	if v, ok := params.Get("CHANLIMIT"); !ok || v != "#:50" {
		t.Errorf("CHANLIMIT = %q, %v", v, ok)
	}
	want := []string{"NETWORK", "EXCEPTS", "CHANLIMIT"}
	if diff := cmp.Diff(want, params.Names()); diff != "" {
		t.Errorf("announcement order mismatch (-want +got):\n%s", diff)
	}

	// lookups work directly on the copy Params returns
	if v, ok := conn.Params().Get("NETWORK"); !ok || v != "Renamed" {
		t.Errorf("Params().Get(NETWORK) = %q, %v", v, ok)
	}
}

func TestCoreHandlerNick(t *testing.T) {
	conn := newTestConn(nil)
	registerCoreHandlers(conn.table)
	conn.nick = "tester"

	// someone else's nick change is not ours
	m, _ := Parse(":other!u@h NICK :somebody", "s")
	conn.table.dispatch(conn, m)
	if got := conn.Nick(); got != "tester" {
		t.Errorf("nick = %q after unrelated NICK", got)
	}

	m2, _ := Parse(":tester!u@h NICK :fresh", "s")
	conn.table.dispatch(conn, m2)
	if got := conn.Nick(); got != "fresh" {
		t.Errorf("nick = %q; want %q", got, "fresh")
	}
}

func TestCoreHandlerBanned(t *testing.T) {
	conn := newTestConn(nil)
	registerCoreHandlers(conn.table)

	m, _ := Parse(":srv 465 me :You are banned from this server", "s")
	conn.table.dispatch(conn, m)
	if !conn.banned {
		t.Error("465 did not mark the session banned")
	}
}
