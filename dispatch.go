package erc

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// A Handler responds to one parsed IRC message. It returns true to stop
// propagation: later handlers registered for the same command are skipped
// and the fallback does not run.
//
// Handlers should not modify the provided Message.
type Handler interface {
	Handle(c *Conn, m *Message) bool
}

// The HandlerFunc type is an adapter to allow the usage of ordinary
// functions as handlers, following the same pattern as http.HandlerFunc.
type HandlerFunc func(c *Conn, m *Message) bool

// Handle calls f(c, m).
func (f HandlerFunc) Handle(c *Conn, m *Message) bool {
	return f(c, m)
}

// handlerList is the ordered handler set for one command key. Lists live in
// DispatchTable.lists and keys reference them by index, so an alias can be
// seeded from another key without copying registrations eagerly.
type handlerList struct {
	handlers []Handler
}

// DispatchTable maps command names to ordered handler sets. One table is
// shared by every connection of a process; registration normally happens
// once at startup.
//
// dispatch runs the handlers registered for the message's command in
// registration order until one returns true. If none does — or none is
// registered — the fallback runs, which surfaces the raw message as a
// one-line notice on the connection.
//
// A DispatchTable must not be modified concurrently with dispatching.
type DispatchTable struct {
	lists    []*handlerList
	index    map[string]int
	fallback HandlerFunc
	ticks    []func(time.Time)
}

// NewDispatchTable returns a table with the protocol bookkeeping handlers
// installed: PING replies, PONG lag measurement, and tracking of the
// client's nickname and the server's announced name, version, and
// parameters. All bookkeeping handlers decline to stop propagation except
// PING and PONG, which are consumed.
func NewDispatchTable() *DispatchTable {
	t := &DispatchTable{
		index:    make(map[string]int),
		fallback: fallbackNotice,
	}
	registerCoreHandlers(t)
	return t
}

// normalizeCommand produces the lookup key for a command name: numerics are
// zero padded to three digits, verbs are folded to upper case.
func normalizeCommand(cmd string) string {
	if n, err := strconv.Atoi(cmd); err == nil && n >= 0 {
		return fmt.Sprintf("%03d", n)
	}
	return strings.ToUpper(cmd)
}

func (t *DispatchTable) list(cmd string) *handlerList {
	key := normalizeCommand(cmd)
	if i, ok := t.index[key]; ok {
		return t.lists[i]
	}
	l := &handlerList{}
	t.index[key] = len(t.lists)
	t.lists = append(t.lists, l)
	return l
}

// Handle appends h to the handler list for cmd. cmd may be a verb
// ("PRIVMSG") or a numeric ("001"; "1" is normalized to "001").
func (t *DispatchTable) Handle(cmd string, h Handler) {
	l := t.list(cmd)
	l.handlers = append(l.handlers, h)
}

// HandleFunc appends f to the handler list for cmd.
func (t *DispatchTable) HandleFunc(cmd string, f HandlerFunc) {
	t.Handle(cmd, f)
}

// Alias registers alias as an additional command name whose handler list
// starts out with target's current handlers. The two lists are independent
// afterwards: registrations against one never appear in the other. Both
// share the table's fallback.
func (t *DispatchTable) Alias(alias, target string) {
	from := t.list(target)
	l := &handlerList{handlers: append([]Handler(nil), from.handlers...)}
	t.index[normalizeCommand(alias)] = len(t.lists)
	t.lists = append(t.lists, l)
}

// SetFallback replaces the handler that runs when no registered handler
// claims a message. The default formats the raw message as a notice.
func (t *DispatchTable) SetFallback(f HandlerFunc) {
	t.fallback = f
}

// OnTick registers a consumer for the time-keyed tick that fires after
// every received line has been processed, whether or not the duplicate
// filter let it through. Periodic consumers (lag displays, away timers)
// hang off this rather than running their own clocks.
func (t *DispatchTable) OnTick(f func(now time.Time)) {
	t.ticks = append(t.ticks, f)
}

func (t *DispatchTable) tick(now time.Time) {
	for _, f := range t.ticks {
		f(now)
	}
}

// dispatch routes m to the handlers for its command.
func (t *DispatchTable) dispatch(c *Conn, m *Message) {
	if i, ok := t.index[normalizeCommand(m.Command)]; ok {
		for _, h := range t.lists[i].handlers {
			if h.Handle(c, m) {
				return
			}
		}
	}
	if t.fallback != nil {
		t.fallback(c, m)
	}
}

// fallbackNotice is the default fallback: a best-effort one-line rendering
// of a message nothing else claimed.
func fallbackNotice(c *Conn, m *Message) bool {
	var b strings.Builder
	b.WriteString(m.SenderNick())
	b.WriteString(" ")
	b.WriteString(m.Command)
	for _, a := range m.Args {
		b.WriteString(" ")
		b.WriteString(a)
	}
	c.notice(b.String())
	return true
}

// registerCoreHandlers installs the handlers every connection needs,
// independent of what the embedding client registers.
func registerCoreHandlers(t *DispatchTable) {

	// reply immediately; PONG latency is what keeps us on the server
	t.HandleFunc(CmdPing, func(c *Conn, m *Message) bool {
		c.SendRaw(Pong(echoPayload(m)), true)
		return true
	})

	// replies to our keepalive PINGs echo the send time
	t.HandleFunc(CmdPong, func(c *Conn, m *Message) bool {
		c.recordPong(m)
		return true
	})

	// RPL_WELCOME: the server names itself in the prefix, and confirms
	// (possibly rewriting) our nickname in the first parameter
	t.HandleFunc(RplWelcome, func(c *Conn, m *Message) bool {
		c.mu.Lock()
		c.announced = m.Sender
		if len(m.Args) > 0 && m.Args[0] != "" {
			c.nick = m.Args[0]
		}
		// a completed registration starts the reconnect budget over
		c.attempts = 0
		c.mu.Unlock()
		return false
	})

	// RPL_MYINFO: "<servername> <version> ..."
	t.HandleFunc(RplMyInfo, func(c *Conn, m *Message) bool {
		c.mu.Lock()
		if len(m.Args) > 1 {
			c.serverName = m.Args[1]
		}
		if len(m.Args) > 2 {
			c.serverVersion = m.Args[2]
		}
		c.mu.Unlock()
		return false
	})

	// RPL_ISUPPORT: "NAME=value" and bare "NAME" tokens, ending with
	// ":are supported by this server"
	t.HandleFunc(RplISupport, func(c *Conn, m *Message) bool {
		args := m.Args
		if len(args) > 0 {
			args = args[1:] // our nick
		}
		if m.Contents != "" && len(args) > 0 {
			args = args[:len(args)-1]
		}
		c.mu.Lock()
		for _, tok := range args {
			if name, value, ok := strings.Cut(tok, "="); ok {
				c.isupport.set(name, value, true)
			} else {
				c.isupport.set(tok, "", false)
			}
		}
		c.mu.Unlock()
		return false
	})

	// our own nick changes
	t.HandleFunc(CmdNick, func(c *Conn, m *Message) bool {
		c.mu.Lock()
		if strings.EqualFold(m.SenderNick(), c.nick) && len(m.Args) > 0 {
			c.nick = m.Args[0]
		}
		c.mu.Unlock()
		return false
	})

	// ERR_YOUREBANNEDCREEP: terminal; disables reconnect for the session
	t.HandleFunc(RplErrYoureBannedCreep, func(c *Conn, m *Message) bool {
		c.mu.Lock()
		c.banned = true
		c.mu.Unlock()
		return false
	})
}
