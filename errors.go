package erc

import (
	"errors"
	"syscall"
)

// ErrMalformedMessage is returned by the parser for an empty line. Empty
// lines never reach the parser during normal operation because the frame
// buffer drops bare terminator runs.
var ErrMalformedMessage = errors.New("malformed message: empty line")

// ErrTimedOut indicates the keepalive monitor declared the connection hung
// and forced it closed. Timed-out closures remain eligible for reconnect.
var ErrTimedOut = errors.New("ping timeout")

// ErrBanned indicates the server rejected the session as banned (numeric
// 465). A banned session never reconnects automatically.
var ErrBanned = errors.New("banned from server")

// ErrClosed indicates the connection closed without a more specific reason.
var ErrClosed = errors.New("connection closed")

// isRefused classifies "connection refused" closures structurally rather
// than by matching OS error text. Refused connections count toward the
// reconnect attempt limit but are never retried.
func isRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
