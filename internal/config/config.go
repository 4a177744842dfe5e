// Package config loads the ema-live configuration from a YAML file, a .env
// file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/koscakluka/ema-live/core/realtime"
)

const (
	TransportWebSocket = "websocket"
	TransportGenAI     = "genai"

	BackendMiniaudio = "miniaudio"
	BackendPortaudio = "portaudio"
)

const DefaultSystemInstruction = `You are Yash, a wise and distinguished mentor and intellectual friend.

You are not a customer service agent. Never ask whether there is anything else you can help with and never be transactional.

Do not just answer, ignite the conversation. End your responses with a thought-provoking hook, use humour, wit and anecdotes, and be charming.

You have access to Google Search. Use it actively, and when explaining a concept share videos or articles that go deeper.

Speak articulate, polished English, warm, personal and anecdotal, like a wise grandfather chatting over tea. When the user is wrong, correct them gently with a fun fact. When they share a fact, connect it to a future trend or its global impact.

Keep the momentum going and make the user want to learn more.`

type Config struct {
	Session   SessionConfig   `yaml:"session" json:"session"`
	Transport TransportConfig `yaml:"transport" json:"transport"`
	Audio     AudioConfig     `yaml:"audio" json:"audio"`
	UI        UIConfig        `yaml:"ui" json:"ui"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

type SessionConfig struct {
	APIKey              string `yaml:"-" json:"-"`
	Model               string `yaml:"model" json:"model" jsonschema:"description=Live model identifier"`
	Voice               string `yaml:"voice" json:"voice" jsonschema:"description=Prebuilt voice name"`
	SystemInstruction   string `yaml:"system_instruction" json:"system_instruction,omitempty"`
	GoogleSearch        bool   `yaml:"google_search" json:"google_search"`
	InputTranscription  bool   `yaml:"input_transcription" json:"input_transcription"`
	OutputTranscription bool   `yaml:"output_transcription" json:"output_transcription"`
}

type TransportConfig struct {
	Kind     string `yaml:"kind" json:"kind" jsonschema:"enum=websocket,enum=genai"`
	Endpoint string `yaml:"endpoint" json:"endpoint,omitempty" jsonschema:"description=Websocket endpoint override"`
}

type AudioConfig struct {
	Backend            string `yaml:"backend" json:"backend" jsonschema:"enum=miniaudio,enum=portaudio"`
	CaptureSampleRate  int    `yaml:"capture_sample_rate" json:"capture_sample_rate"`
	PlaybackSampleRate int    `yaml:"playback_sample_rate" json:"playback_sample_rate"`
	FrameSize          int    `yaml:"frame_size" json:"frame_size" jsonschema:"description=Samples per capture frame"`
}

type UIConfig struct {
	VolumeRefreshRate int `yaml:"volume_refresh_rate" json:"volume_refresh_rate" jsonschema:"description=Volume samples per second"`
}

type MetricsConfig struct {
	Address string `yaml:"address" json:"address,omitempty" jsonschema:"description=Serve /metrics on this address when set"`
}

type LoggingConfig struct {
	File string `yaml:"file" json:"file,omitempty" jsonschema:"description=Write logs to this file when set"`
}

func Default() Config {
	return Config{
		Session: SessionConfig{
			Model:               "gemini-2.5-flash-native-audio-preview-09-2025",
			Voice:               "Fenrir",
			SystemInstruction:   DefaultSystemInstruction,
			GoogleSearch:        true,
			InputTranscription:  true,
			OutputTranscription: true,
		},
		Transport: TransportConfig{Kind: TransportWebSocket},
		Audio: AudioConfig{
			Backend:            BackendMiniaudio,
			CaptureSampleRate:  16000,
			PlaybackSampleRate: 24000,
			FrameSize:          4096,
		},
		UI: UIConfig{VolumeRefreshRate: 60},
	}
}

// Load builds the configuration. A missing file at path is not an error;
// the defaults are used instead. An empty path skips the file.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &config); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	config.applyEnv(os.LookupEnv)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &config, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	for _, name := range []string{"GEMINI_API_KEY", "API_KEY"} {
		if value, ok := lookup(name); ok && strings.TrimSpace(value) != "" {
			c.Session.APIKey = strings.TrimSpace(value)
			break
		}
	}
	if value, ok := lookup("EMA_LIVE_MODEL"); ok && value != "" {
		c.Session.Model = value
	}
	if value, ok := lookup("EMA_LIVE_VOICE"); ok && value != "" {
		c.Session.Voice = value
	}
}

func (c *Config) Validate() error {
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session config: %w", err)
	}
	if err := c.Transport.Validate(); err != nil {
		return fmt.Errorf("transport config: %w", err)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if err := c.UI.Validate(); err != nil {
		return fmt.Errorf("ui config: %w", err)
	}
	return nil
}

func (s *SessionConfig) Validate() error {
	if s.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if s.Voice == "" {
		return fmt.Errorf("voice cannot be empty")
	}
	return nil
}

func (t *TransportConfig) Validate() error {
	switch t.Kind {
	case TransportWebSocket:
		if t.Endpoint != "" && !strings.HasPrefix(t.Endpoint, "ws://") && !strings.HasPrefix(t.Endpoint, "wss://") {
			return fmt.Errorf("endpoint must be a ws:// or wss:// url, got %q", t.Endpoint)
		}
	case TransportGenAI:
		if t.Endpoint != "" {
			return fmt.Errorf("endpoint is only supported by the %s transport", TransportWebSocket)
		}
	default:
		return fmt.Errorf("kind must be %s or %s, got %q", TransportWebSocket, TransportGenAI, t.Kind)
	}
	return nil
}

func (a *AudioConfig) Validate() error {
	if a.Backend != BackendMiniaudio && a.Backend != BackendPortaudio {
		return fmt.Errorf("backend must be %s or %s, got %q", BackendMiniaudio, BackendPortaudio, a.Backend)
	}
	if a.CaptureSampleRate < 8000 || a.CaptureSampleRate > 48000 {
		return fmt.Errorf("capture_sample_rate must be between 8000 and 48000 Hz, got %d", a.CaptureSampleRate)
	}
	// Speech arrives at 24 kHz and is not resampled.
	if a.PlaybackSampleRate != 24000 {
		return fmt.Errorf("playback_sample_rate must be 24000 Hz, got %d", a.PlaybackSampleRate)
	}
	if a.FrameSize < 256 || a.FrameSize > 16384 {
		return fmt.Errorf("frame_size must be between 256 and 16384 samples, got %d", a.FrameSize)
	}
	return nil
}

func (u *UIConfig) Validate() error {
	if u.VolumeRefreshRate < 1 || u.VolumeRefreshRate > 240 {
		return fmt.Errorf("volume_refresh_rate must be between 1 and 240, got %d", u.VolumeRefreshRate)
	}
	return nil
}

// ConnectConfig is the session setup handed to the realtime client.
func (c *Config) ConnectConfig() realtime.ConnectConfig {
	tools := []realtime.Tool{}
	if c.Session.GoogleSearch {
		tools = append(tools, realtime.ToolGoogleSearch)
	}
	return realtime.NewConnectConfig(
		realtime.WithModel(c.Session.Model),
		realtime.WithVoice(c.Session.Voice),
		realtime.WithSystemInstruction(c.Session.SystemInstruction),
		realtime.WithTools(tools...),
		realtime.WithTranscription(c.Session.InputTranscription, c.Session.OutputTranscription),
	)
}
