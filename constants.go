package erc

// Command verbs the backend itself sends or inspects.
const (
	CmdError   = "ERROR"   // sent by the server just before closing the link
	CmdJoin    = "JOIN"    // join a channel
	CmdNick    = "NICK"    // change or register a nickname
	CmdNotice  = "NOTICE"  // send a notice
	CmdPass    = "PASS"    // connection password
	CmdPing    = "PING"    // liveness probe
	CmdPong    = "PONG"    // reply to PING
	CmdPrivmsg = "PRIVMSG" // send a message
	CmdQuit    = "QUIT"    // terminate the session
	CmdUser    = "USER"    // registration: username and realname
)

// Connection registration numerics.
const (
	RplWelcome  = "001" // "Welcome to the network <nick>[!<user>@<host>]"
	RplYourHost = "002" // "Your host is <servername>, running version <ver>"
	RplCreated  = "003" // "This server was created <date>"
	RplMyInfo   = "004" // "<servername> <version> <usermodes> <chanmodes>"
	RplISupport = "005" // "NAME[=value] ... :are supported by this server"
)

// Numerics the backend gives special treatment.
const (
	RplAway                = "301" // "<nick> :<away message>"; resent constantly, duplicate-suppressed by default
	RplErrNicknameInUse    = "433" // "<client> <nick> :Nickname is already in use"
	RplErrYoureBannedCreep = "465" // ":You are banned from this server"; terminal
)
