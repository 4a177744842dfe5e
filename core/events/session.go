package events

const (
	KindSessionOpened Kind = "session.opened"
	KindSessionClosed Kind = "session.closed"
	KindSessionFailed Kind = "session.failed"
)

type SessionOpened struct{ Base }

func NewSessionOpened() SessionOpened {
	return SessionOpened{Base: NewBase(KindSessionOpened)}
}

type SessionClosed struct{ Base }

func NewSessionClosed() SessionClosed {
	return SessionClosed{Base: NewBase(KindSessionClosed)}
}

// SessionFailed carries the error that ended the session.
type SessionFailed struct {
	Base
	Err error
}

func NewSessionFailed(err error) SessionFailed {
	return SessionFailed{Base: NewBase(KindSessionFailed), Err: err}
}
