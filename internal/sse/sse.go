// Package sse streams timeline records from a Server-Sent Events relay.
// Each event's data is one record (or a JSON array of records).
package sse

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/torosent/vitalscope/internal/auth"
	"github.com/torosent/vitalscope/internal/clientmetrics"
	"github.com/torosent/vitalscope/internal/runner"
)

// ErrClosed is returned by ReadEvent when the relay closed the stream.
var ErrClosed = errors.New("connection closed")

// Event represents a Server-Sent Event.
type Event struct {
	ID    string
	Event string
	Data  string
}

// StatusError is returned when the SSE endpoint responds with a non-200 status code.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

// HTTPStatus implements runner.StatusCoder.
func (e *StatusError) HTTPStatus() int { return e.Code }

// Client represents an SSE client connection.
type Client struct {
	url        string
	headers    http.Header
	auth       auth.Provider
	httpClient *http.Client
	resp       *http.Response
	reader     *bufio.Reader
	mu         sync.Mutex
	metrics    *clientmetrics.ClientMetrics
}

// Config configures the SSE client behavior.
type Config struct {
	URL     string
	Headers http.Header
	// Timeout bounds dialing and waiting for response headers. The stream
	// itself stays open for the page view's lifetime.
	Timeout time.Duration
	// Auth, when set, authorizes every (re)connection.
	Auth    auth.Provider
	Metrics *clientmetrics.ClientMetrics
}

// NewClient creates a new SSE client with the given configuration.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Metrics == nil {
		cfg.Metrics = clientmetrics.New()
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: cfg.Timeout}).DialContext,
		TLSHandshakeTimeout:   cfg.Timeout,
		ResponseHeaderTimeout: cfg.Timeout,
	}

	return &Client{
		url:        cfg.URL,
		headers:    cfg.Headers,
		auth:       cfg.Auth,
		httpClient: &http.Client{Transport: transport},
		metrics:    cfg.Metrics,
	}
}

// Connect establishes an SSE connection.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resp != nil {
		return fmt.Errorf("already connected")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		c.metrics.IncrementErrors()
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Connection", "keep-alive")

	for key, values := range c.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if c.auth != nil {
		if err := c.auth.InjectHeader(ctx, req.Header); err != nil {
			c.metrics.IncrementErrors()
			return fmt.Errorf("authorize: %w", err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.IncrementErrors()
		return fmt.Errorf("http request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.metrics.IncrementErrors()
		resp.Body.Close()
		return &StatusError{Code: resp.StatusCode}
	}

	c.resp = resp
	c.reader = bufio.NewReader(resp.Body)
	c.metrics.MarkConnected()

	return nil
}

// ReadEvent reads the next SSE event from the stream. It returns ErrClosed
// once the relay ends the stream.
func (c *Client) ReadEvent(ctx context.Context) (Event, error) {
	c.mu.Lock()
	reader := c.reader
	c.mu.Unlock()

	if reader == nil {
		return Event{}, fmt.Errorf("not connected")
	}

	event := Event{}
	var dataLines []string

	for {
		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if ctx.Err() != nil {
				return Event{}, ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return Event{}, ErrClosed
			}
			c.metrics.IncrementErrors()
			return Event{}, fmt.Errorf("read line: %w", err)
		}

		c.metrics.AddBytes(int64(len(line)))

		line = strings.TrimRight(line, "\r\n")

		// Empty line marks end of event
		if line == "" {
			if len(dataLines) > 0 || event.Event != "" || event.ID != "" {
				event.Data = strings.Join(dataLines, "\n")
				c.metrics.IncrementMessages()
				return event, nil
			}
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		colonIdx := strings.Index(line, ":")
		if colonIdx == -1 {
			continue
		}

		field := line[:colonIdx]
		value := line[colonIdx+1:]
		if len(value) > 0 && value[0] == ' ' {
			value = value[1:]
		}

		switch field {
		case "id":
			event.ID = value
		case "event":
			event.Event = value
		case "data":
			dataLines = append(dataLines, value)
		}
	}
}

// Close closes the SSE connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resp == nil {
		return nil
	}

	err := c.resp.Body.Close()
	c.resp = nil
	c.reader = nil
	c.httpClient.CloseIdleConnections()
	c.metrics.MarkDisconnected()

	return err
}

// Metrics returns the current metrics snapshot.
func (c *Client) Metrics() clientmetrics.Snapshot {
	return c.metrics.Snapshot()
}

// Source relays a page's timeline over SSE. Every Stream call opens a new
// connection; statistics accumulate across reconnects.
type Source struct {
	cfg     Config
	logger  *slog.Logger
	metrics *clientmetrics.ClientMetrics
}

// NewSource creates an SSE relay source.
func NewSource(cfg Config, logger *slog.Logger) *Source {
	if cfg.Metrics == nil {
		cfg.Metrics = clientmetrics.New()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Source{
		cfg:     cfg,
		logger:  logger.With("component", "sse", "url", cfg.URL),
		metrics: cfg.Metrics,
	}
}

// Stream implements runner.Source. Events with empty data (keep-alives) are
// skipped. It returns nil when the relay closes the stream.
func (s *Source) Stream(ctx context.Context, sink runner.Sink) error {
	client := NewClient(s.cfg)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()
	s.logger.Debug("relay connected")

	for {
		ev, err := client.ReadEvent(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) {
				s.logger.Debug("relay closed the stream")
				return nil
			}
			return err
		}
		if strings.TrimSpace(ev.Data) == "" {
			continue
		}
		sink.Feed([]byte(ev.Data))
	}
}

// Stats returns relay statistics across every connection.
func (s *Source) Stats() clientmetrics.Snapshot {
	return s.metrics.Snapshot()
}
