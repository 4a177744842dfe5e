package genai

import (
	"encoding/base64"

	"github.com/koscakluka/ema-live/core/conversations"
	"github.com/koscakluka/ema-live/core/realtime"
	"google.golang.org/genai"
)

// convertMessage maps an SDK message onto the wire shape used by the
// orchestrator. Inline audio is re-encoded as base64 because the SDK has
// already decoded it.
func convertMessage(msg *genai.LiveServerMessage) *realtime.ServerMessage {
	out := &realtime.ServerMessage{}
	if msg == nil {
		return out
	}

	if msg.SetupComplete != nil {
		out.SetupComplete = &realtime.SetupComplete{}
	}
	if msg.GoAway != nil {
		out.GoAway = &realtime.GoAway{}
	}

	content := msg.ServerContent
	if content == nil {
		return out
	}

	serverContent := &realtime.ServerContent{
		TurnComplete:      content.TurnComplete,
		Interrupted:       content.Interrupted,
		GroundingMetadata: convertGrounding(content.GroundingMetadata),
	}
	if content.InputTranscription != nil {
		serverContent.InputTranscription = &realtime.Transcription{Text: content.InputTranscription.Text}
	}
	if content.OutputTranscription != nil {
		serverContent.OutputTranscription = &realtime.Transcription{Text: content.OutputTranscription.Text}
	}
	if content.ModelTurn != nil {
		turn := &realtime.Content{}
		for _, part := range content.ModelTurn.Parts {
			if part == nil {
				continue
			}
			converted := realtime.Part{Text: part.Text}
			if part.InlineData != nil {
				converted.InlineData = &realtime.InlineData{
					MIMEType: part.InlineData.MIMEType,
					Data:     base64.StdEncoding.EncodeToString(part.InlineData.Data),
				}
			}
			turn.Parts = append(turn.Parts, converted)
		}
		serverContent.ModelTurn = turn
	}

	out.ServerContent = serverContent
	return out
}

func convertGrounding(metadata *genai.GroundingMetadata) *conversations.GroundingMetadata {
	if metadata == nil {
		return nil
	}

	grounding := &conversations.GroundingMetadata{}
	for _, chunk := range metadata.GroundingChunks {
		if chunk == nil {
			continue
		}
		converted := conversations.GroundingChunk{}
		if chunk.Web != nil {
			converted.Web = &conversations.WebSource{URI: chunk.Web.URI, Title: chunk.Web.Title}
		}
		grounding.GroundingChunks = append(grounding.GroundingChunks, converted)
	}
	return grounding
}
