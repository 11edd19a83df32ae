package erc

import (
	"strings"

	"golang.org/x/text/encoding"
)

// Message represents one parsed line received from an IRC server.
//
// A Message is built in a single parse pass and must not be modified after
// the decode step has run; handlers receive it read-only.
type Message struct {

	// Unparsed is the original line exactly as it came off the wire,
	// without the trailing CR-LF. Duplicate suppression compares this field.
	Unparsed string

	// Sender is the message source: "nick!user@host" for user messages or a
	// bare server name for server messages. Lines without a prefix get the
	// connection's announced server name.
	Sender string

	// Command is the IRC verb or numeric, e.g. "PRIVMSG" or "001".
	// Case is preserved as received; dispatch lookup folds it.
	Command string

	// Args holds the command parameters in order. If the line carried a
	// trailing (colon-introduced) parameter it is the last element,
	// with the leading ':' stripped.
	Args []string

	// Contents is the trailing parameter, or "" when the line had none.
	Contents string

	// Tags holds the IRCv3 message tags in the order they appeared.
	Tags Tags
}

// Tag is a single IRCv3 message tag. HasValue distinguishes "key=" (an
// explicit empty value) from a bare "key" (no value at all).
type Tag struct {
	Key      string
	Value    string
	HasValue bool
}

// Tags is the ordered list of message tags. Duplicate keys are preserved
// in order; lookups return the last occurrence.
type Tags []Tag

// Get returns the value for key and whether the key was present.
// When a key appears more than once the last value wins.
func (t Tags) Get(key string) (string, bool) {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].Key == key {
			return t[i].Value, true
		}
	}
	return "", false
}

// Has reports whether key was listed in the message tags.
func (t Tags) Has(key string) bool {
	_, ok := t.Get(key)
	return ok
}

// unescaper decodes message tag values.
// https://ircv3.net/specs/extensions/message-tags.html
var unescaper = strings.NewReplacer(
	"\\:", ";",
	"\\r", "\r",
	"\\n", "\n",
	"\\s", " ",
	"\\\\", "\\",
	"\\", "",
)

// Parse parses one raw IRC line, without the trailing CRLF. defaultSender is
// used as the message source when the line carries no prefix, per RFC 1459
// ("assumed to have originated from the connection from which it was
// received").
func Parse(line string, defaultSender string) (*Message, error) {
	return parseMessage(line, defaultSender)
}

// The only rejected input is the empty line; callers are expected to filter
// those out before calling. Anything else parses on a best-effort basis.
func parseMessage(line string, defaultSender string) (*Message, error) {
	if line == "" {
		return nil, ErrMalformedMessage
	}

	m := &Message{
		Unparsed: line,
		Sender:   defaultSender,
	}

	l := lex(line)
	for {
		i := l.nextItem()
		switch i.typ {
		case itemEOF:
			return m, nil
		case itemTagKey:
			if i.val == "" {
				continue
			}
			m.Tags = append(m.Tags, Tag{Key: i.val})
		case itemTagValue:
			// always follows its key
			if n := len(m.Tags); n > 0 {
				m.Tags[n-1].Value = unescaper.Replace(i.val)
				m.Tags[n-1].HasValue = true
			}
		case itemSender:
			m.Sender = i.val
		case itemCommand:
			m.Command = i.val
		case itemParam:
			m.Args = append(m.Args, i.val)
		case itemTrailing:
			m.Args = append(m.Args, i.val)
			m.Contents = i.val
		}
	}
}

// EncodingResolver maps a message target (usually a channel name) to the
// character encoding used for that target. Returning nil selects UTF-8
// passthrough. The empty target selects the default encoding.
type EncodingResolver func(target string) encoding.Encoding

// decodeTarget finds the parameter used as the key for per-target decoding:
// the first argument that looks like a channel name. Servers may use a
// different character encoding per channel, so the channel name itself is
// decoded with the default decoder before it can key the lookup.
func decodeTarget(m *Message, resolve EncodingResolver) string {
	for _, a := range m.Args {
		if strings.HasPrefix(a, "#") || strings.HasPrefix(a, "&") {
			return decodeField(a, resolve(""))
		}
	}
	return ""
}

// decodeMessage maps the sender, args, and contents of m through the decoder
// selected by the resolver. A nil resolver, or a nil encoding for the chosen
// target, leaves the fields untouched.
func decodeMessage(m *Message, resolve EncodingResolver) {
	if resolve == nil {
		return
	}
	enc := resolve(decodeTarget(m, resolve))
	if enc == nil {
		return
	}
	m.Sender = decodeField(m.Sender, enc)
	for i, a := range m.Args {
		m.Args[i] = decodeField(a, enc)
	}
	m.Contents = decodeField(m.Contents, enc)
}

func decodeField(s string, enc encoding.Encoding) string {
	if enc == nil || s == "" {
		return s
	}
	out, err := enc.NewDecoder().String(s)
	if err != nil {
		// a bad byte sequence must not lose the line
		return s
	}
	return out
}

// SenderNick returns the nickname portion of the sender, or the whole sender
// when it is a bare server name.
func (m *Message) SenderNick() string {
	if i := strings.IndexByte(m.Sender, '!'); i >= 0 {
		return m.Sender[:i]
	}
	return m.Sender
}
