package events

import "github.com/koscakluka/ema-live/core/conversations"

const (
	// KindTurnCompleted identifies the end of an exchange.
	KindTurnCompleted Kind = "turn_state.completed"
	// KindTranscriptAppended identifies messages added to the transcript log.
	KindTranscriptAppended Kind = "turn_state.transcript_appended"
)

// TurnCompleted marks the end of an exchange.
type TurnCompleted struct{ Base }

// NewTurnCompleted creates a turn completed event.
func NewTurnCompleted() TurnCompleted {
	return TurnCompleted{Base: NewBase(KindTurnCompleted)}
}

// TranscriptAppended carries the messages frozen from a completed turn, user
// first.
type TranscriptAppended struct {
	Base
	Messages []conversations.Message
}

// NewTranscriptAppended creates a transcript appended event.
func NewTranscriptAppended(messages ...conversations.Message) TranscriptAppended {
	return TranscriptAppended{Base: NewBase(KindTranscriptAppended), Messages: messages}
}
