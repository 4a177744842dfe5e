package gemini

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-live/core/realtime"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

var _ realtime.Client = (*Client)(nil)

// Client opens Gemini Live sessions over a raw websocket.
type Client struct {
	apiKey   string
	endpoint string
	dialer   *websocket.Dialer
}

type ClientOption func(*Client)

// WithAPIKey sets the key used to authenticate. When unset the client falls
// back to GEMINI_API_KEY and then API_KEY.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) { c.apiKey = apiKey }
}

func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

func WithDialer(dialer *websocket.Dialer) ClientOption {
	return func(c *Client) {
		if dialer != nil {
			c.dialer = dialer
		}
	}
}

func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		endpoint: DefaultEndpoint,
		dialer:   websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func (c *Client) Connect(ctx context.Context, config realtime.ConnectConfig) (realtime.Session, error) {
	ctx, span := tracer.Start(ctx, "connect gemini live session",
		trace.WithAttributes(attribute.String("model", config.Model)))
	defer span.End()

	session, err := c.connect(ctx, config)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &realtime.ConnectError{Err: err}
	}
	return session, nil
}

func (c *Client) connect(ctx context.Context, config realtime.ConnectConfig) (*session, error) {
	apiKey, err := c.resolveAPIKey()
	if err != nil {
		return nil, err
	}

	endpoint, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", c.endpoint, err)
	}
	query := endpoint.Query()
	query.Set("key", apiKey)
	endpoint.RawQuery = query.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, endpoint.String(), http.Header{})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to open socket connection to gemini (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to open socket connection to gemini: %w", err)
	}

	s := newSession(conn)
	if err := s.writeJSON(newSetupMessage(config)); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to send session setup: %w", err)
	}

	return s, nil
}

func (c *Client) resolveAPIKey() (string, error) {
	if c.apiKey != "" {
		return c.apiKey, nil
	}
	for _, name := range []string{"GEMINI_API_KEY", "API_KEY"} {
		if apiKey, ok := os.LookupEnv(name); ok && strings.TrimSpace(apiKey) != "" {
			return apiKey, nil
		}
	}
	return "", fmt.Errorf("gemini api key not found")
}
