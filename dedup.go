package erc

import "time"

const (
	defaultDuplicateWindow = 60 * time.Second
)

// defaultDuplicateCommands lists the commands subject to duplicate
// suppression when the caller configures none. 301 (RPL_AWAY) is resent by
// servers on every message to an away user, so identical copies inside the
// window carry no information.
var defaultDuplicateCommands = []string{RplAway}

// dupeFilter suppresses redundant deliveries of allow-listed commands
// within a time window. Equality is textual, on the raw unparsed line: two
// lines differing by a single byte are distinct.
type dupeFilter struct {
	window   time.Duration
	commands map[string]bool
	seen     map[string]time.Time // raw line -> last delivery attempt
}

func newDupeFilter(commands []string, window time.Duration) *dupeFilter {
	f := &dupeFilter{
		window:   window,
		commands: make(map[string]bool, len(commands)),
		seen:     make(map[string]time.Time),
	}
	for _, c := range commands {
		f.commands[normalizeCommand(c)] = true
	}
	return f
}

// shouldDeliver reports whether m should be dispatched, and records the
// attempt. Commands outside the allow-list always deliver. For allow-listed
// commands the message delivers only when the identical line was last seen
// more than the window ago (or never); the timestamp refreshes either way,
// so a steady stream of duplicates stays suppressed.
func (f *dupeFilter) shouldDeliver(m *Message, now time.Time) bool {
	if !f.commands[normalizeCommand(m.Command)] {
		return true
	}

	f.prune(now)

	last, ok := f.seen[m.Unparsed]
	deliver := !ok || now.Sub(last) > f.window
	f.seen[m.Unparsed] = now
	return deliver
}

// prune drops records old enough that they could no longer suppress
// anything. The table would otherwise grow for the life of the connection.
func (f *dupeFilter) prune(now time.Time) {
	for line, last := range f.seen {
		if now.Sub(last) > 2*f.window {
			delete(f.seen, line)
		}
	}
}
