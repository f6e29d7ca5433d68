// Package websocket streams timeline records from a WebSocket relay. Each
// text or binary message is one record (or a JSON array of records).
package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/torosent/vitalscope/internal/auth"
	"github.com/torosent/vitalscope/internal/clientmetrics"
	"github.com/torosent/vitalscope/internal/runner"
)

// Message represents a WebSocket message to send or receive.
type Message struct {
	Type int // websocket.TextMessage or websocket.BinaryMessage
	Data []byte
}

// HandshakeError is returned when the relay rejects the upgrade.
type HandshakeError struct {
	StatusCode int
	Err        error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("websocket dial failed with status %d: %v", e.StatusCode, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// HTTPStatus implements runner.StatusCoder.
func (e *HandshakeError) HTTPStatus() int { return e.StatusCode }

// Client represents a WebSocket client connection.
type Client struct {
	url            string
	headers        http.Header
	auth           auth.Provider
	dialer         *websocket.Dialer
	maxMessageSize int64
	conn           *websocket.Conn
	mu             sync.Mutex
	metrics        *clientmetrics.ClientMetrics
}

// Config configures the WebSocket client behavior.
type Config struct {
	URL              string
	Headers          http.Header
	HandshakeTimeout time.Duration
	MaxMessageSize   int64
	// Subscribe, when set, is sent as a text message right after connecting.
	Subscribe string
	// Auth, when set, authorizes every handshake.
	Auth    auth.Provider
	Metrics *clientmetrics.ClientMetrics
}

// NewClient creates a new WebSocket client with the given configuration.
func NewClient(cfg Config) *Client {
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 30 * time.Second
	}
	if cfg.MaxMessageSize == 0 {
		cfg.MaxMessageSize = 1024 * 1024 // 1MB default
	}
	if cfg.Metrics == nil {
		cfg.Metrics = clientmetrics.New()
	}

	dialer := &websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}

	return &Client{
		url:            cfg.URL,
		headers:        cfg.Headers,
		auth:           cfg.Auth,
		dialer:         dialer,
		maxMessageSize: cfg.MaxMessageSize,
		metrics:        cfg.Metrics,
	}
}

// Connect establishes a WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return fmt.Errorf("already connected")
	}

	headers := c.headers.Clone()
	if headers == nil {
		headers = http.Header{}
	}
	if c.auth != nil {
		if err := c.auth.InjectHeader(ctx, headers); err != nil {
			c.metrics.IncrementErrors()
			return fmt.Errorf("authorize: %w", err)
		}
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.url, headers)
	if err != nil {
		c.metrics.IncrementErrors()
		if resp != nil {
			return &HandshakeError{StatusCode: resp.StatusCode, Err: err}
		}
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	conn.SetReadLimit(c.maxMessageSize)

	c.conn = conn
	c.metrics.MarkConnected()

	return nil
}

// SendMessage sends a message over the WebSocket connection.
func (c *Client) SendMessage(ctx context.Context, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected")
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	if err := c.conn.WriteMessage(msg.Type, msg.Data); err != nil {
		c.metrics.IncrementErrors()
		return fmt.Errorf("write message: %w", err)
	}

	return nil
}

// ReceiveMessage reads a message from the WebSocket connection. It blocks
// until a message arrives or the connection is closed; cancelling ctx closes
// the connection to unblock it.
func (c *Client) ReceiveMessage(ctx context.Context) (Message, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return Message{}, fmt.Errorf("not connected")
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	msgType, data, err := conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return Message{}, ctx.Err()
		}
		if !isNormalClose(err) {
			c.metrics.IncrementErrors()
		}
		return Message{}, fmt.Errorf("read message: %w", err)
	}

	c.metrics.IncrementMessages()
	c.metrics.AddBytes(int64(len(data)))

	return Message{Type: msgType, Data: data}, nil
}

// Close closes the WebSocket connection gracefully.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	err := c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(5*time.Second),
	)

	closeErr := c.conn.Close()
	c.conn = nil
	c.metrics.MarkDisconnected()

	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return err
	}

	return closeErr
}

// Metrics returns the current metrics snapshot.
func (c *Client) Metrics() clientmetrics.Snapshot {
	return c.metrics.Snapshot()
}

func isNormalClose(err error) bool {
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		return false
	}
	return closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway
}

// Source relays a page's timeline over WebSocket. Every Stream call dials a
// new connection; statistics accumulate across reconnects.
type Source struct {
	cfg     Config
	logger  *slog.Logger
	metrics *clientmetrics.ClientMetrics
}

// NewSource creates a WebSocket relay source.
func NewSource(cfg Config, logger *slog.Logger) *Source {
	if cfg.Metrics == nil {
		cfg.Metrics = clientmetrics.New()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Source{
		cfg:     cfg,
		logger:  logger.With("component", "websocket", "url", cfg.URL),
		metrics: cfg.Metrics,
	}
}

// Stream implements runner.Source. It returns nil when the relay closes the
// connection normally.
func (s *Source) Stream(ctx context.Context, sink runner.Sink) error {
	client := NewClient(s.cfg)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()
	s.logger.Debug("relay connected")

	if s.cfg.Subscribe != "" {
		if err := client.SendMessage(ctx, Message{Type: websocket.TextMessage, Data: []byte(s.cfg.Subscribe)}); err != nil {
			return err
		}
	}

	for {
		msg, err := client.ReceiveMessage(ctx)
		if err != nil {
			if isNormalClose(err) {
				s.logger.Debug("relay closed the connection")
				return nil
			}
			return err
		}
		if len(msg.Data) == 0 {
			continue
		}
		sink.Feed(msg.Data)
	}
}

// Stats returns relay statistics across every connection.
func (s *Source) Stats() clientmetrics.Snapshot {
	return s.metrics.Snapshot()
}
