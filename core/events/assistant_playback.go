package events

const (
	// KindAssistantPlaybackInterrupted identifies a barge-in by the user.
	KindAssistantPlaybackInterrupted Kind = "assistant_playback.interrupted"
)

// AssistantPlaybackInterrupted marks that scheduled playback must be
// cancelled. It never ends the session.
type AssistantPlaybackInterrupted struct{ Base }

// NewAssistantPlaybackInterrupted creates a playback interrupted event.
func NewAssistantPlaybackInterrupted() AssistantPlaybackInterrupted {
	return AssistantPlaybackInterrupted{Base: NewBase(KindAssistantPlaybackInterrupted)}
}
