package ws

// connState tracks one connection: Connected -> Joined -> Left. A joined
// connection may join again to change its name; nothing leaves Left.
type connState int

const (
	stateConnected connState = iota
	stateJoined
	stateLeft
)

func (s connState) String() string {
	switch s {
	case stateConnected:
		return "connected"
	case stateJoined:
		return "joined"
	case stateLeft:
		return "left"
	default:
		return "unknown"
	}
}

func (s connState) join() (connState, bool) {
	if s == stateLeft {
		return s, false
	}
	return stateJoined, true
}

func (s connState) leave() connState { return stateLeft }

// canDraw reports whether draw, undo and reset messages are accepted.
func (s connState) canDraw() bool { return s == stateJoined }
