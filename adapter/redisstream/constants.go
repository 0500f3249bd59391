package redisstream

// Special ids understood by XGROUP, XREADGROUP and XRANGE.
const (
	idNew      = ">"
	idFirst    = "-"
	idLast     = "+"
	idStart    = "0-0"
	replyPong  = "PONG"
	prefixBusy = "BUSYGROUP"
	prefixNoGr = "NOGROUP"
	// XGROUP on a missing key without MKSTREAM
	msgNoKey = "requires the key"
)
