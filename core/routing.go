package orchestration

import (
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/realtime"
)

// routeServerMessage splits one inbound message into events in the order
// they must be applied: transcriptions before the turn boundary so the
// turn includes them, and audio before the interruption so fragments that
// arrive together with it are cancelled as well.
func routeServerMessage(msg *realtime.ServerMessage) []events.Event {
	if msg == nil {
		return nil
	}

	var routed []events.Event
	if msg.SetupComplete != nil {
		routed = append(routed, events.NewSessionOpened())
	}

	content := msg.ServerContent
	if content == nil {
		return routed
	}

	if content.OutputTranscription != nil && content.OutputTranscription.Text != "" {
		routed = append(routed, events.NewAssistantTranscriptDelta(content.OutputTranscription.Text))
	}
	if content.InputTranscription != nil && content.InputTranscription.Text != "" {
		routed = append(routed, events.NewUserTranscriptDelta(content.InputTranscription.Text))
	}
	if content.GroundingMetadata != nil {
		routed = append(routed, events.NewAssistantGroundingUpdated(content.GroundingMetadata))
	}
	if content.TurnComplete {
		routed = append(routed, events.NewTurnCompleted())
	}
	if content.ModelTurn != nil {
		for _, part := range content.ModelTurn.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			routed = append(routed, events.NewAssistantAudioPayload(part.InlineData.MIMEType, part.InlineData.Data))
		}
	}
	if content.Interrupted {
		routed = append(routed, events.NewAssistantPlaybackInterrupted())
	}

	return routed
}
