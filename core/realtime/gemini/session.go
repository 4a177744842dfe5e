package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/realtime"
)

var _ realtime.Session = (*session)(nil)

type session struct {
	conn *websocket.Conn

	connMu sync.Mutex
	closed atomic.Bool
}

func newSession(conn *websocket.Conn) *session {
	return &session{conn: conn}
}

func (s *session) SendAudio(ctx context.Context, blob audio.Blob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return realtime.ErrSessionClosed
	}

	if err := s.writeJSON(newRealtimeInputMessage(blob)); err != nil {
		return fmt.Errorf("failed to write audio to gemini: %w", err)
	}
	return nil
}

func (s *session) writeJSON(v any) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn.WriteJSON(v)
}

// Receive reads the next message. Unparseable messages are reported as
// *realtime.ProtocolError and do not end the session.
func (s *session) Receive(ctx context.Context) (*realtime.ServerMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	msgType, payload, err := s.conn.ReadMessage()
	if err != nil {
		return nil, s.readError(err)
	}

	switch msgType {
	case websocket.TextMessage, websocket.BinaryMessage:
	default:
		return nil, &realtime.ProtocolError{Payload: payload, Err: fmt.Errorf("unsupported websocket message type %d", msgType)}
	}

	var msg realtime.ServerMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, &realtime.ProtocolError{Payload: payload, Err: err}
	}
	if msg.IsEmpty() {
		return nil, &realtime.ProtocolError{Payload: payload, Err: errors.New("message carries no recognised content")}
	}

	return &msg, nil
}

func (s *session) readError(err error) error {
	if s.closed.Load() {
		return realtime.ErrSessionClosed
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return realtime.ErrSessionClosed
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return &realtime.RemoteError{Code: closeErr.Code, Reason: closeErr.Text, Err: err}
	}
	return &realtime.RemoteError{Err: err}
}

func (s *session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.connMu.Lock()
	err := s.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	s.connMu.Unlock()
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		logger.Debug("failed to send close message", "error", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close gemini websocket: %w", err)
	}
	return nil
}
