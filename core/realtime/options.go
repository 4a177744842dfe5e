package realtime

const (
	DefaultModel = "gemini-2.5-flash-native-audio-preview-09-2025"
	DefaultVoice = "Fenrir"
)

type Modality string

const (
	ModalityAudio Modality = "AUDIO"
	ModalityText  Modality = "TEXT"
)

type Tool string

const (
	ToolGoogleSearch Tool = "googleSearch"
)

// ConnectConfig is handed to the remote service when the session is set up.
type ConnectConfig struct {
	Model             string
	SystemInstruction string
	Tools             []Tool
	ResponseModality  Modality
	Voice             string

	InputTranscription  bool
	OutputTranscription bool
}

type ConnectOption func(*ConnectConfig)

// NewConnectConfig returns the audio-only configuration with transcription
// enabled in both directions and applies opts on top.
func NewConnectConfig(opts ...ConnectOption) ConnectConfig {
	config := ConnectConfig{
		Model:               DefaultModel,
		ResponseModality:    ModalityAudio,
		Voice:               DefaultVoice,
		Tools:               []Tool{ToolGoogleSearch},
		InputTranscription:  true,
		OutputTranscription: true,
	}
	for _, opt := range opts {
		opt(&config)
	}
	return config
}

func WithModel(model string) ConnectOption {
	return func(c *ConnectConfig) {
		if model != "" {
			c.Model = model
		}
	}
}

func WithSystemInstruction(instruction string) ConnectOption {
	return func(c *ConnectConfig) {
		c.SystemInstruction = instruction
	}
}

func WithVoice(voice string) ConnectOption {
	return func(c *ConnectConfig) {
		if voice != "" {
			c.Voice = voice
		}
	}
}

func WithTools(tools ...Tool) ConnectOption {
	return func(c *ConnectConfig) {
		c.Tools = tools
	}
}

func WithTranscription(input, output bool) ConnectOption {
	return func(c *ConnectConfig) {
		c.InputTranscription = input
		c.OutputTranscription = output
	}
}

func (c ConnectConfig) HasTool(tool Tool) bool {
	for _, t := range c.Tools {
		if t == tool {
			return true
		}
	}
	return false
}
