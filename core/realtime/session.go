// Package realtime defines the contract between the orchestrator and a
// remote realtime speech session.
package realtime

import (
	"context"

	"github.com/koscakluka/ema-live/core/audio"
)

// Client opens remote sessions.
type Client interface {
	// Connect dials the remote service and sends the session setup. It
	// returns once the transport is established; the session is considered
	// open when a ServerMessage with SetupComplete arrives.
	Connect(ctx context.Context, config ConnectConfig) (Session, error)
}

// Session is a live bidirectional connection.
type Session interface {
	// SendAudio submits one encoded capture frame.
	SendAudio(ctx context.Context, blob audio.Blob) error
	// Receive blocks for the next inbound message. It returns
	// ErrSessionClosed once the remote side closed the session cleanly and a
	// *RemoteError for any other failure.
	Receive(ctx context.Context) (*ServerMessage, error)
	// Close ends the session. It is safe to call more than once.
	Close() error
}
