package realtime

import (
	"errors"
	"fmt"
)

// ErrSessionClosed is returned by Session.Receive after a clean remote
// close.
var ErrSessionClosed = errors.New("realtime session closed")

// ConnectError reports that the remote session could not be opened.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string { return fmt.Sprintf("failed to open realtime session: %v", e.Err) }
func (e *ConnectError) Unwrap() error { return e.Err }

// RemoteError reports a failure signalled by, or observed on, an open
// session.
type RemoteError struct {
	Code   int
	Reason string
	Err    error
}

func (e *RemoteError) Error() string {
	switch {
	case e.Err != nil && e.Reason != "":
		return fmt.Sprintf("realtime session failed (%d %s): %v", e.Code, e.Reason, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("realtime session failed: %v", e.Err)
	default:
		return fmt.Sprintf("realtime session failed (%d %s)", e.Code, e.Reason)
	}
}

func (e *RemoteError) Unwrap() error { return e.Err }

// ProtocolError reports an inbound message with an unexpected shape.
type ProtocolError struct {
	Payload []byte
	Err     error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unexpected realtime message: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
