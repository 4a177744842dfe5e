package events

import "github.com/koscakluka/ema-live/core/conversations"

const (
	// KindAssistantTranscriptDelta identifies transcribed model speech.
	KindAssistantTranscriptDelta Kind = "assistant_response.transcript_delta"
	// KindAssistantGroundingUpdated identifies citations for the current turn.
	KindAssistantGroundingUpdated Kind = "assistant_response.grounding_updated"
	// KindAssistantAudioPayload identifies an encoded speech fragment.
	KindAssistantAudioPayload Kind = "assistant_response.audio_payload"
)

// AssistantTranscriptDelta carries text to append to the model's side of
// the current turn.
type AssistantTranscriptDelta struct {
	Base
	Delta string
}

// NewAssistantTranscriptDelta creates an assistant transcript delta event.
func NewAssistantTranscriptDelta(delta string) AssistantTranscriptDelta {
	return AssistantTranscriptDelta{Base: NewBase(KindAssistantTranscriptDelta), Delta: delta}
}

// AssistantGroundingUpdated carries the latest citations for the current
// turn.
type AssistantGroundingUpdated struct {
	Base
	Metadata *conversations.GroundingMetadata
}

// NewAssistantGroundingUpdated creates an assistant grounding updated event.
func NewAssistantGroundingUpdated(metadata *conversations.GroundingMetadata) AssistantGroundingUpdated {
	return AssistantGroundingUpdated{Base: NewBase(KindAssistantGroundingUpdated), Metadata: metadata}
}

// AssistantAudioPayload carries one base64 encoded speech fragment.
type AssistantAudioPayload struct {
	Base
	MIMEType string
	Data     string
}

// NewAssistantAudioPayload creates an assistant audio payload event.
func NewAssistantAudioPayload(mimeType, data string) AssistantAudioPayload {
	return AssistantAudioPayload{Base: NewBase(KindAssistantAudioPayload), MIMEType: mimeType, Data: data}
}
