// Package genai opens live sessions through the official Google Gen AI SDK.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/realtime"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"
)

const scopeName = "github.com/koscakluka/ema-live/core/realtime/genai"

var (
	tracer = otel.Tracer(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var _ realtime.Client = (*Client)(nil)

type Client struct {
	apiKey  string
	baseURL string

	mu     sync.Mutex
	client *genai.Client
}

type ClientOption func(*Client)

func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) { c.apiKey = apiKey }
}

// WithBaseURL points the client at another Gemini API host. A ws:// or
// wss:// scheme is used as is for live sessions.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

func NewClient(opts ...ClientOption) *Client {
	client := &Client{}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// genaiClient creates the SDK client on first success. Failures are not
// cached so a key provided later is picked up on the next connect.
func (c *Client) genaiClient(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}

	apiKey := c.apiKey
	if apiKey == "" {
		for _, name := range []string{"GEMINI_API_KEY", "API_KEY"} {
			if value, ok := os.LookupEnv(name); ok && strings.TrimSpace(value) != "" {
				apiKey = strings.TrimSpace(value)
				break
			}
		}
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key not found")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: c.baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	c.client = client
	return client, nil
}

func (c *Client) Connect(ctx context.Context, config realtime.ConnectConfig) (realtime.Session, error) {
	ctx, span := tracer.Start(ctx, "connect genai live session",
		trace.WithAttributes(attribute.String("model", config.Model)))
	defer span.End()

	client, err := c.genaiClient(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &realtime.ConnectError{Err: err}
	}

	live, err := client.Live.Connect(ctx, config.Model, newLiveConnectConfig(config))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &realtime.ConnectError{Err: err}
	}

	return &session{live: live}, nil
}

func newLiveConnectConfig(config realtime.ConnectConfig) *genai.LiveConnectConfig {
	modality := genai.ModalityAudio
	if config.ResponseModality == realtime.ModalityText {
		modality = genai.ModalityText
	}

	liveConfig := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{modality},
	}
	if config.SystemInstruction != "" {
		liveConfig.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: config.SystemInstruction}}}
	}
	if config.Voice != "" {
		liveConfig.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: config.Voice},
			},
		}
	}
	if config.HasTool(realtime.ToolGoogleSearch) {
		liveConfig.Tools = append(liveConfig.Tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}
	if config.InputTranscription {
		liveConfig.InputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	if config.OutputTranscription {
		liveConfig.OutputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	return liveConfig
}

type session struct {
	live   *genai.Session
	closed atomic.Bool
	sendMu sync.Mutex
}

func (s *session) SendAudio(ctx context.Context, blob audio.Blob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return realtime.ErrSessionClosed
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := s.live.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{MIMEType: blob.MIMEType, Data: blob.Data},
	}); err != nil {
		return fmt.Errorf("failed to send realtime input: %w", err)
	}
	return nil
}

func (s *session) Receive(ctx context.Context) (*realtime.ServerMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	msg, err := s.live.Receive()
	if err != nil {
		if isDecodeError(err) {
			return nil, &realtime.ProtocolError{Err: err}
		}
		if s.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, realtime.ErrSessionClosed
		}
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) {
			return nil, &realtime.RemoteError{Code: closeErr.Code, Reason: closeErr.Text, Err: err}
		}
		return nil, &realtime.RemoteError{Err: err}
	}

	converted := convertMessage(msg)
	if converted.IsEmpty() {
		return nil, &realtime.ProtocolError{Err: errors.New("message carries no recognised content")}
	}
	return converted, nil
}

// isDecodeError reports whether the SDK read a frame but could not decode
// it. Read failures come back from the websocket unwrapped, while decode
// failures wrap the json error.
func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var valueErr *json.UnsupportedValueError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.As(err, &valueErr)
}

func (s *session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.live.Close(); err != nil {
		logger.Debug("failed to close genai live session", "error", err)
		return fmt.Errorf("failed to close genai live session: %w", err)
	}
	return nil
}
