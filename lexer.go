// This lexer follows the method described in the video:
// Lexical Scanning in Go - Rob Pike
// https://www.youtube.com/watch?v=HxaD_trXwRE
//
// Unlike a general-purpose lexer it never fails: servers in the wild bend the
// grammar, and a line that reaches this point must parse on a best-effort
// basis. Truncated input simply emits whatever was lexed so far.

package erc

import (
	"strings"
	"unicode/utf8"
)

const (
	delimParam    = ' ' // the delimiter token for parameters
	delimTag      = ';' // the delimiter token for message tags
	delimTagValue = '=' // the delimiter token for message tag values
	startTags     = '@' // the delimiter for beginning tags
	startPrefix   = ':' // the delimiter for the sender prefix
	startTrailing = ':' // the delimiter for the trailing param
)

// item represents a token returned from the scanner.
type item struct {
	typ itemType
	val string
}

// itemType identifies the type of lex items.
type itemType int

const (
	itemTagKey   itemType = iota // IRCv3 message tag key
	itemTagValue                 // message tag value; only emitted when '=' was present
	itemSender                   // the prefix portion of a message, e.g. "nick!user@host"
	itemCommand                  // the command or numeric, e.g. "PRIVMSG" or "001"
	itemParam                    // a middle command parameter
	itemTrailing                 // the trailing parameter, ':' stripped, spaces kept
	itemEOF                      // end of message
)

const eof = -1

// stateFn represents the state of the scanner as a function that returns the next state.
type stateFn func(*lexer) stateFn

// lexer holds the state of the scanner.
type lexer struct {
	input string    // the string being scanned
	start int       // start position of this item
	pos   int       // current position in the input
	width int       // width of the last rune read
	items chan item // channel of scanned items
}

func lex(input string) *lexer {
	l := &lexer{
		input: input,
		items: make(chan item),
	}
	go l.run()
	return l
}

// nextItem returns the next item from the input.
// Called by the parser, not in the lexing goroutine.
func (l *lexer) nextItem() item {
	return <-l.items
}

// run lexes the input by executing state functions until the state is nil.
func (l *lexer) run() {
	for state := lexStart; state != nil; {
		state = state(l)
	}
	l.items <- item{itemEOF, ""}
	close(l.items)
}

func (l *lexer) emit(t itemType) {
	l.items <- item{t, l.input[l.start:l.pos]}
	l.start = l.pos
}

func (l *lexer) ignore() {
	l.start = l.pos
}

func (l *lexer) ignoreRun(valid string) {
	l.acceptRun(valid)
	l.ignore()
}

// next returns the next rune in the input.
func (l *lexer) next() (r rune) {
	if l.pos >= len(l.input) {
		l.width = 0
		return eof
	}
	r, l.width = utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += l.width
	return r
}

// peek returns but does not consume the next rune in the input.
func (l *lexer) peek() rune {
	r := l.next()
	l.backup()
	return r
}

// backup steps back one rune. Can only be called once per call of next.
func (l *lexer) backup() {
	l.pos -= l.width
}

// acceptRun consumes a run of runes from the valid set.
func (l *lexer) acceptRun(valid string) {
	for strings.ContainsRune(valid, l.next()) {
	}
	l.backup()
}

func lexStart(l *lexer) stateFn {
	if l.peek() == startTags {
		return lexTagsStart
	}
	return lexMaybeSender
}

func lexTagsStart(l *lexer) stateFn {
	l.pos++ // the delimiters are single-byte; the protocol is from the days of ascii
	l.ignore()
	return lexTagKey
}

// lexTagKey lexes one IRCv3 message tag key.
// The parser is responsible for removing empty keys.
func lexTagKey(l *lexer) stateFn {
	for {
		switch r := l.next(); r {
		case delimTagValue:
			l.backup()
			l.emit(itemTagKey)
			l.pos++ // skip '='
			l.ignore()
			return lexTagValue
		case delimTag:
			l.backup()
			l.emit(itemTagKey)
			l.pos++ // skip ';'
			l.ignore()
			return lexTagKey
		case delimParam:
			l.backup()
			l.emit(itemTagKey)
			return lexTagsEnd
		case eof:
			l.emit(itemTagKey)
			return nil
		}
	}
}

func lexTagValue(l *lexer) stateFn {
	for {
		switch r := l.next(); r {
		case delimTag:
			l.backup()
			l.emit(itemTagValue)
			l.pos++
			l.ignore()
			return lexTagKey
		case delimParam:
			l.backup()
			l.emit(itemTagValue)
			return lexTagsEnd
		case eof:
			l.emit(itemTagValue)
			return nil
		}
	}
}

// lexTagsEnd consumes the space run after the tag segment.
func lexTagsEnd(l *lexer) stateFn {
	l.ignoreRun(" ")
	if l.peek() == eof {
		return nil
	}
	return lexMaybeSender
}

func lexMaybeSender(l *lexer) stateFn {
	if l.peek() == startPrefix {
		l.pos++
		l.ignore()
		return lexSender
	}
	return lexCommand
}

// lexSender scans the sender prefix verbatim: everything between ':' and the
// next space. Splitting nick!user@host is left to readers that care.
func lexSender(l *lexer) stateFn {
	for {
		switch r := l.next(); r {
		case delimParam:
			l.backup()
			l.emit(itemSender)
			l.ignoreRun(" ")
			return lexCommand
		case eof:
			l.emit(itemSender)
			return nil
		}
	}
}

func lexCommand(l *lexer) stateFn {
	for {
		switch r := l.next(); r {
		case delimParam:
			l.backup()
			if l.pos > l.start {
				l.emit(itemCommand)
			}
			l.ignoreRun(" ")
			return lexParam
		case eof:
			if l.pos > l.start {
				l.emit(itemCommand)
			}
			return nil
		}
	}
}

func lexParam(l *lexer) stateFn {
	if l.peek() == eof {
		return nil
	}
	if l.peek() == startTrailing {
		l.pos++
		l.ignore()
		return lexTrailing
	}
	for {
		switch r := l.next(); r {
		case delimParam:
			l.backup()
			l.emit(itemParam)
			l.ignoreRun(" ")
			return lexParam
		case eof:
			if l.pos > l.start {
				l.emit(itemParam)
			}
			return nil
		}
	}
}

// lexTrailing consumes the rest of the input verbatim, embedded spaces and
// further colons included.
func lexTrailing(l *lexer) stateFn {
	l.pos = len(l.input)
	l.emit(itemTrailing)
	return nil
}
