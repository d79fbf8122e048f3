// Package realtime is the upstream half of the conversation bridge: a thin
// client for the OpenAI Realtime API over WebSocket.
//
// A [Client] holds the credential and endpoint; [Client.Dial] opens one
// authenticated connection per session and returns a [Conn] that exchanges
// JSON events. The event vocabulary is a closed union ([Event]) on the
// receive side and small typed messages on the send side; anything the bridge
// does not understand decodes to [EventUnknown] instead of failing the
// session.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

const (
	defaultModel   = "gpt-4o-realtime-preview"
	defaultBaseURL = "wss://api.openai.com/v1/realtime"

	// defaultDialTimeout bounds the upstream connection attempt. A timed-out
	// dial is a startup failure, never retried.
	defaultDialTimeout = 10 * time.Second
)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithModel sets the realtime model requested in the connection URL.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithBaseURL overrides the base WebSocket URL. Primarily used in tests to
// point at a local mock server.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithDialTimeout overrides the connection attempt deadline.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) { c.dialTimeout = d }
}

// Client dials upstream realtime sessions. Safe for concurrent use; each
// Dial produces an independent connection.
type Client struct {
	apiKey      string
	model       string
	baseURL     string
	dialTimeout time.Duration
}

// NewClient creates a Client with the given bearer credential and options.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:      apiKey,
		model:       defaultModel,
		baseURL:     defaultBaseURL,
		dialTimeout: defaultDialTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Dial opens an authenticated WebSocket to the upstream service. The attempt
// is bounded by the configured dial timeout on top of ctx.
func (c *Client) Dial(ctx context.Context) (*Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	wsURL := fmt.Sprintf("%s?model=%s", c.baseURL, c.model)
	conn, _, err := websocket.Dial(dialCtx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Authorization": []string{"Bearer " + c.apiKey},
			"OpenAI-Beta":   []string{"realtime=v1"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("realtime: dial: %w", err)
	}
	return &Conn{ws: conn}, nil
}

// Conn is one live upstream connection. Reads and writes may run
// concurrently with each other, but each side must come from a single
// goroutine at a time, which is how the bridge's relay loops use it.
type Conn struct {
	ws *websocket.Conn
}

// ReadEvent blocks until the next decodable upstream frame arrives. Frames
// that are not valid JSON are logged and skipped; only a connection failure
// or ctx cancellation returns an error.
func (c *Conn) ReadEvent(ctx context.Context) (Event, error) {
	for {
		_, data, err := c.ws.Read(ctx)
		if err != nil {
			return Event{}, err
		}
		ev, err := ParseEvent(data)
		if err != nil {
			slog.Warn("realtime: dropping undecodable frame", "err", err)
			continue
		}
		return ev, nil
	}
}

// WriteJSON marshals v and sends it as one text frame.
func (c *Conn) WriteJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("realtime: marshal: %w", err)
	}
	return c.ws.Write(ctx, websocket.MessageText, data)
}

// Close closes the connection with a normal status. Safe to call on an
// already-broken connection; the returned error is best-effort information.
func (c *Conn) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "session ended")
}
