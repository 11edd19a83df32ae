/*
Package erc implements the network backend of an IRC client.

It owns the TCP/TLS connection to an IRC server and everything between the
socket and the application: framing the byte stream into lines, parsing the
IRC message grammar (including IRCv3 message tags), dispatching parsed
messages to registered handlers, pacing outbound traffic under server flood
limits, keepalive pings with lag measurement, and reconnecting after
unexpected disconnections.

It deliberately does not render anything, interpret slash commands, or track
channel rosters. Those belong to the application on top, which receives
parsed messages through a DispatchTable and plain-text notices through a
sink function, and supplies at most a per-target character encoding.

Usage

Create a DispatchTable, register handlers, and run a Client:

	table := erc.NewDispatchTable()
	table.HandleFunc(erc.CmdPrivmsg, func(c *erc.Conn, m *erc.Message) bool {
		fmt.Printf("<%s> %s\n", m.SenderNick(), m.Contents)
		return true
	})

	client := &erc.Client{
		Addr:          "irc.libera.chat:6697",
		Nickname:      "somebot",
		AutoReconnect: true,
	}
	err := client.Run(ctx, table)

Handlers are called synchronously, one message at a time, in the order lines
arrived from the server. A handler returning true stops propagation for that
message; when no handler claims a message, a fallback surfaces it as a
one-line notice, so nothing is silently dropped.

Outbound traffic goes through Conn.Send and Conn.SendRaw. Lines are queued
and released under a penalty/margin flood-control algorithm; latency-critical
replies (PONG) pass force=true to skip the queue.

Run returns only when the session is over: either the user quit (nil error,
also triggered by cancelling the context) or the connection failed terminally
after exhausting its reconnect budget.
*/
package erc
