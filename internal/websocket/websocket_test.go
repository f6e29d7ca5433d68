package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/torosent/vitalscope/internal/auth"
	"github.com/torosent/vitalscope/internal/runner"
)

// Helper function to create a test WebSocket server
func createTestWSServer(handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func closeNormally(conn *websocket.Conn) {
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "page unloaded"),
		time.Now().Add(time.Second),
	)
}

type recordingSink struct {
	mu      sync.Mutex
	records []string
}

func (s *recordingSink) Feed(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, string(data))
}

func (s *recordingSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.records...)
}

func TestWebSocketConnectAndSendReceiveText(t *testing.T) {
	server := createTestWSServer(func(conn *websocket.Conn) {
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(msgType, data); err != nil {
				return
			}
		}
	})
	defer server.Close()

	client := NewClient(Config{URL: wsURL(server)})

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	testMsg := `{"kind":"load"}`
	if err := client.SendMessage(ctx, Message{Type: websocket.TextMessage, Data: []byte(testMsg)}); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	received, err := client.ReceiveMessage(ctx)
	if err != nil {
		t.Fatalf("ReceiveMessage failed: %v", err)
	}
	if received.Type != websocket.TextMessage {
		t.Errorf("Expected message type %d, got %d", websocket.TextMessage, received.Type)
	}
	if string(received.Data) != testMsg {
		t.Errorf("Expected message %q, got %q", testMsg, string(received.Data))
	}

	metrics := client.Metrics()
	if metrics.MessagesReceived != 1 || metrics.BytesReceived != int64(len(testMsg)) {
		t.Errorf("metrics = %+v", metrics)
	}
	if metrics.Connections != 1 {
		t.Errorf("Connections = %d, want 1", metrics.Connections)
	}
}

func TestWebSocketConnectionError(t *testing.T) {
	client := NewClient(Config{
		URL:              "ws://localhost:99999/invalid",
		HandshakeTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err == nil {
		t.Fatal("Connect() error = nil, want error")
	}
	if metrics := client.Metrics(); metrics.Errors == 0 {
		t.Errorf("Expected error count > 0, got %d", metrics.Errors)
	}
}

func TestWebSocketHandshakeRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "relay overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(Config{URL: wsURL(server)})
	err := client.Connect(context.Background())

	var hsErr *HandshakeError
	if !errors.As(err, &hsErr) {
		t.Fatalf("Connect() error = %v, want *HandshakeError", err)
	}
	if hsErr.HTTPStatus() != http.StatusServiceUnavailable {
		t.Errorf("HTTPStatus() = %d, want 503", hsErr.HTTPStatus())
	}
	var coder runner.StatusCoder
	if !errors.As(err, &coder) {
		t.Error("HandshakeError should satisfy runner.StatusCoder")
	}
}

func TestWebSocketSendWithoutConnect(t *testing.T) {
	client := NewClient(Config{URL: "ws://localhost:8080"})

	err := client.SendMessage(context.Background(), Message{Type: websocket.TextMessage, Data: []byte("test")})
	if err == nil {
		t.Fatal("Expected error when sending without connection, got nil")
	}
	if !strings.Contains(err.Error(), "not connected") {
		t.Errorf("Expected 'not connected' error, got %v", err)
	}
}

func TestWebSocketReceiveWithoutConnect(t *testing.T) {
	client := NewClient(Config{URL: "ws://localhost:8080"})

	_, err := client.ReceiveMessage(context.Background())
	if err == nil {
		t.Fatal("Expected error when receiving without connection, got nil")
	}
	if !strings.Contains(err.Error(), "not connected") {
		t.Errorf("Expected 'not connected' error, got %v", err)
	}
}

func TestWebSocketClose(t *testing.T) {
	server := createTestWSServer(func(conn *websocket.Conn) {
		_, _, _ = conn.ReadMessage()
	})
	defer server.Close()

	client := NewClient(Config{URL: wsURL(server)})
	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := client.SendMessage(ctx, Message{Type: websocket.TextMessage, Data: []byte("test")}); err == nil {
		t.Error("Expected error when sending after close, got nil")
	}
	if client.metrics.Connected() {
		t.Error("metrics still report an open connection after Close")
	}
}

func TestWebSocketCloseWithoutConnect(t *testing.T) {
	client := NewClient(Config{URL: "ws://localhost:8080"})
	if err := client.Close(); err != nil {
		t.Errorf("Close without connection failed: %v", err)
	}
}

func TestWebSocketReceiveCancellation(t *testing.T) {
	server := createTestWSServer(func(conn *websocket.Conn) {
		_, _, _ = conn.ReadMessage()
	})
	defer server.Close()

	client := NewClient(Config{URL: wsURL(server)})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.ReceiveMessage(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("ReceiveMessage() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestWebSocketMessageSizeLimit(t *testing.T) {
	server := createTestWSServer(func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("x", 64)))
		_, _, _ = conn.ReadMessage()
	})
	defer server.Close()

	client := NewClient(Config{URL: wsURL(server), MaxMessageSize: 16})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	if _, err := client.ReceiveMessage(context.Background()); err == nil {
		t.Fatal("expected read limit error for an oversized message")
	}
}

func TestSourceStreamsRecords(t *testing.T) {
	var subscribed atomic.Value
	server := createTestWSServer(func(conn *websocket.Conn) {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		subscribed.Store(string(data))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"kind":"navigation","requestStart":1,"responseStart":9}`))
		_ = conn.WriteMessage(websocket.TextMessage, nil)
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte(`[{"kind":"load"},{"entryType":"layout-shift","value":0.1}]`))
		closeNormally(conn)
		_, _, _ = conn.ReadMessage()
	})
	defer server.Close()

	src := NewSource(Config{URL: wsURL(server), Subscribe: `{"page":"home"}`}, nil)
	sink := &recordingSink{}
	if err := src.Stream(context.Background(), sink); err != nil {
		t.Fatalf("Stream() error = %v, want nil on normal close", err)
	}

	if got, _ := subscribed.Load().(string); got != `{"page":"home"}` {
		t.Errorf("subscribe message = %q", got)
	}
	records := sink.all()
	if len(records) != 2 {
		t.Fatalf("records = %q, want 2 (empty message skipped)", records)
	}
	stats := src.Stats()
	if stats.MessagesReceived != 3 || stats.Errors != 0 {
		t.Errorf("stats = %+v, want 3 messages and no errors", stats)
	}
}

func TestSourceAbnormalCloseIsAnError(t *testing.T) {
	server := createTestWSServer(func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"kind":"load"}`))
		// Dropping the TCP connection without a close frame.
	})
	defer server.Close()

	src := NewSource(Config{URL: wsURL(server)}, nil)
	err := src.Stream(context.Background(), &recordingSink{})
	if err == nil {
		t.Fatal("Stream() error = nil, want error for a dropped connection")
	}
	if src.Stats().Errors == 0 {
		t.Error("dropped connection should be counted as an error")
	}
}

func TestSourceStopsOnCancel(t *testing.T) {
	server := createTestWSServer(func(conn *websocket.Conn) {
		_, _, _ = conn.ReadMessage()
	})
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	src := NewSource(Config{URL: wsURL(server)}, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- src.Stream(ctx, &recordingSink{}) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Stream() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stream did not stop after cancel")
	}
}

func TestWebSocketAuthProvider(t *testing.T) {
	var got atomic.Value
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		closeNormally(conn)
	}))
	defer server.Close()

	headers := http.Header{}
	headers.Set("X-Page", "checkout")
	client := NewClient(Config{URL: wsURL(server), Headers: headers, Auth: auth.NewStaticTokenProvider("ws-token")})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if v, _ := got.Load().(string); v != "Bearer ws-token" {
		t.Errorf("Authorization = %q, want Bearer ws-token", v)
	}
	if headers.Get("Authorization") != "" {
		t.Error("configured headers were mutated")
	}
}
