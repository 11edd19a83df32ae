package erc

import (
	"bytes"
	"time"
)

// frameBuffer accumulates raw bytes from the socket and yields complete
// lines. IRC lines may be terminated by CR, LF, or CRLF; a run of terminator
// bytes counts as one break, and a partial line at the end of a read is kept
// for the next feed. The sequence of emitted lines is independent of how the
// underlying stream was chunked.
type frameBuffer struct {
	pending      []byte
	lastReceived time.Time

	now func() time.Time // test hook
}

const terminators = "\r\n"

// feed appends p to the pending bytes and returns the complete lines that
// are now available, in order. Bare terminator runs produce no lines.
// The time of the feed is recorded as the connection's last activity.
func (b *frameBuffer) feed(p []byte) [][]byte {
	if b.now != nil {
		b.lastReceived = b.now()
	} else {
		b.lastReceived = time.Now()
	}
	b.pending = append(b.pending, p...)

	var lines [][]byte
	for {
		// a terminator run at the head may be the tail of a CRLF split
		// across reads; consuming it here keeps chunking irrelevant
		i := 0
		for i < len(b.pending) && (b.pending[i] == '\r' || b.pending[i] == '\n') {
			i++
		}
		b.pending = b.pending[i:]

		j := bytes.IndexAny(b.pending, terminators)
		if j < 0 {
			return lines
		}
		line := make([]byte, j)
		copy(line, b.pending[:j])
		lines = append(lines, line)
		b.pending = b.pending[j:]
	}
}
