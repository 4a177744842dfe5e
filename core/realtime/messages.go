package realtime

import "github.com/koscakluka/ema-live/core/conversations"

// ServerMessage mirrors the inbound message shape of the live protocol.
type ServerMessage struct {
	SetupComplete *SetupComplete `json:"setupComplete,omitempty"`
	ServerContent *ServerContent `json:"serverContent,omitempty"`
	GoAway        *GoAway        `json:"goAway,omitempty"`
}

type SetupComplete struct{}

type GoAway struct {
	TimeLeft string `json:"timeLeft,omitempty"`
}

type ServerContent struct {
	OutputTranscription *Transcription                   `json:"outputTranscription,omitempty"`
	InputTranscription  *Transcription                   `json:"inputTranscription,omitempty"`
	GroundingMetadata   *conversations.GroundingMetadata `json:"groundingMetadata,omitempty"`
	TurnComplete        bool                             `json:"turnComplete,omitempty"`
	ModelTurn           *Content                         `json:"modelTurn,omitempty"`
	Interrupted         bool                             `json:"interrupted,omitempty"`
}

type Transcription struct {
	Text string `json:"text,omitempty"`
}

type Content struct {
	Parts []Part `json:"parts,omitempty"`
}

type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// InlineData carries base64 encoded media, as transported on the wire.
type InlineData struct {
	MIMEType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

// IsEmpty reports whether the message carries nothing the client
// understands.
func (m *ServerMessage) IsEmpty() bool {
	return m == nil || (m.SetupComplete == nil && m.ServerContent == nil && m.GoAway == nil)
}
