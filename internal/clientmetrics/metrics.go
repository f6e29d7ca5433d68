// Package clientmetrics tracks relay connection statistics shared by the SSE
// and WebSocket sources.
package clientmetrics

import (
	"sync"
	"time"
)

// ClientMetrics tracks connections, received records and failures across
// every (re)connection of one relay source.
type ClientMetrics struct {
	mu           sync.Mutex
	firstConnect time.Time
	connectTime  time.Time
	connections  int64
	messagesRecv int64
	bytesRecv    int64
	errors       int64
}

// New creates a new ClientMetrics instance.
func New() *ClientMetrics {
	return &ClientMetrics{}
}

// MarkConnected records a successful connection.
func (m *ClientMetrics) MarkConnected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if m.firstConnect.IsZero() {
		m.firstConnect = now
	}
	m.connectTime = now
	m.connections++
}

// MarkDisconnected clears the current connection time.
func (m *ClientMetrics) MarkDisconnected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectTime = time.Time{}
}

// AddBytes counts raw bytes read from the relay.
func (m *ClientMetrics) AddBytes(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bytesRecv += n
}

// IncrementMessages counts one complete relayed message.
func (m *ClientMetrics) IncrementMessages() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messagesRecv++
}

// IncrementErrors increments the error counter.
func (m *ClientMetrics) IncrementErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors++
}

// Connected reports whether a connection is currently open.
func (m *ClientMetrics) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.connectTime.IsZero()
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Connections      int64         `json:"connections" yaml:"connections"`
	Reconnects       int64         `json:"reconnects" yaml:"reconnects"`
	MessagesReceived int64         `json:"messages_received" yaml:"messages_received"`
	BytesReceived    int64         `json:"bytes_received" yaml:"bytes_received"`
	Errors           int64         `json:"errors" yaml:"errors"`
	Connected        time.Duration `json:"connected_ns" yaml:"connected_ns"` // since the first connection
	Current          time.Duration `json:"current_ns" yaml:"current_ns"`     // of the open connection, 0 when closed
}

// Snapshot returns a consistent snapshot of all metrics.
func (m *ClientMetrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		Connections:      m.connections,
		MessagesReceived: m.messagesRecv,
		BytesReceived:    m.bytesRecv,
		Errors:           m.errors,
	}
	if m.connections > 1 {
		s.Reconnects = m.connections - 1
	}
	if !m.firstConnect.IsZero() {
		s.Connected = time.Since(m.firstConnect)
	}
	if !m.connectTime.IsZero() {
		s.Current = time.Since(m.connectTime)
	}
	return s
}
