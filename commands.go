package erc

import "strings"

// Builders for the wire lines the backend itself needs to emit. They return
// a single protocol line without the trailing CR-LF; Conn.SendRaw appends
// the terminator. Higher-level command construction belongs to the client
// sitting on top of this package.

// Privmsg builds a message to a channel or nickname.
func Privmsg(target, text string) string {
	return "PRIVMSG " + target + " :" + text
}

// Notice builds a notice to a channel or nickname.
func Notice(target, text string) string {
	return "NOTICE " + target + " :" + text
}

// Ping builds a keepalive probe carrying payload, which the server echoes
// back in its PONG.
func Ping(payload string) string {
	return "PING " + payload
}

// Pong builds the reply to a server PING. reply must be the payload of the
// PING being answered.
func Pong(reply string) string {
	return "PONG :" + reply
}

// Nick builds a nickname change (or initial registration) command.
func Nick(name string) string {
	return "NICK " + name
}

// User builds the registration command naming the user and realname.
// realname may contain spaces.
func User(user, realname string) string {
	// mode and the unused parameter are conventionally "0 *"
	return "USER " + user + " 0 * :" + realname
}

// Pass builds the connection password command. It must be sent before NICK
// and USER.
func Pass(password string) string {
	return "PASS " + password
}

// Quit builds the session termination command. The server closes the link
// after processing it.
func Quit(reason string) string {
	if reason == "" {
		return "QUIT"
	}
	return "QUIT :" + reason
}

// Join builds a channel join command.
func Join(channel string) string {
	return "JOIN " + channel
}

// isQuitLine reports whether a raw outbound line is a QUIT, which flips the
// session into its user-initiated shutdown state.
func isQuitLine(line string) bool {
	rest, ok := strings.CutPrefix(strings.ToUpper(line), "QUIT")
	return ok && (rest == "" || rest[0] == ' ')
}
