package gemini

import (
	"strings"

	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/realtime"
)

type setupMessage struct {
	Setup setup `json:"setup"`
}

type setup struct {
	Model                    string           `json:"model"`
	GenerationConfig         generationConfig `json:"generationConfig"`
	SystemInstruction        *content         `json:"systemInstruction,omitempty"`
	Tools                    []tool           `json:"tools,omitempty"`
	InputAudioTranscription  *struct{}        `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}        `json:"outputAudioTranscription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type content struct {
	Parts []textPart `json:"parts"`
}

type textPart struct {
	Text string `json:"text"`
}

type tool struct {
	GoogleSearch *struct{} `json:"googleSearch,omitempty"`
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	Audio blob `json:"audio"`
}

// blob marshals Data as base64, which is what the protocol expects.
type blob struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

func newSetupMessage(config realtime.ConnectConfig) setupMessage {
	model := config.Model
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}

	modality := config.ResponseModality
	if modality == "" {
		modality = realtime.ModalityAudio
	}

	msg := setupMessage{Setup: setup{
		Model: model,
		GenerationConfig: generationConfig{
			ResponseModalities: []string{string(modality)},
		},
	}}

	if config.Voice != "" {
		msg.Setup.GenerationConfig.SpeechConfig = &speechConfig{
			VoiceConfig: voiceConfig{PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: config.Voice}},
		}
	}
	if config.SystemInstruction != "" {
		msg.Setup.SystemInstruction = &content{Parts: []textPart{{Text: config.SystemInstruction}}}
	}
	for _, t := range config.Tools {
		switch t {
		case realtime.ToolGoogleSearch:
			msg.Setup.Tools = append(msg.Setup.Tools, tool{GoogleSearch: &struct{}{}})
		default:
			logger.Warn("ignoring unsupported tool", "tool", t)
		}
	}
	if config.InputTranscription {
		msg.Setup.InputAudioTranscription = &struct{}{}
	}
	if config.OutputTranscription {
		msg.Setup.OutputAudioTranscription = &struct{}{}
	}

	return msg
}

func newRealtimeInputMessage(b audio.Blob) realtimeInputMessage {
	return realtimeInputMessage{RealtimeInput: realtimeInput{
		Audio: blob{MIMEType: b.MIMEType, Data: b.Data},
	}}
}
