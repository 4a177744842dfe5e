package orchestration

type ConnectionState string

const (
	StateDisconnected ConnectionState = "DISCONNECTED"
	StateConnecting   ConnectionState = "CONNECTING"
	StateConnected    ConnectionState = "CONNECTED"
	StateError        ConnectionState = "ERROR"
)

func (s ConnectionState) String() string { return string(s) }

// IsActive reports whether a session exists in this state.
func (s ConnectionState) IsActive() bool {
	return s == StateConnecting || s == StateConnected
}

// canTransition reports whether moving from one state to another is a valid
// step of the connection lifecycle. ERROR is only left by connecting again
// or by disconnecting.
func canTransition(from, to ConnectionState) bool {
	switch from {
	case StateDisconnected:
		return to == StateConnecting
	case StateConnecting:
		return to == StateConnected || to == StateDisconnected || to == StateError
	case StateConnected:
		return to == StateDisconnected || to == StateError
	case StateError:
		return to == StateConnecting || to == StateDisconnected
	default:
		return false
	}
}
