// Package extractor pulls timeline records out of the envelopes some relays
// wrap them in, e.g. {"type":"perf","payload":{...}}.
package extractor

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/tidwall/gjson"

	"github.com/torosent/vitalscope/internal/runner"
)

// normalizePath accepts "$.a.b", "a.b" and a bare "$" for the whole message.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	switch {
	case path == "$" || path == "":
		return "@this"
	case strings.HasPrefix(path, "$."):
		return path[2:]
	default:
		return path
	}
}

// Extract returns the record found at path inside msg. A string result is
// treated as a JSON-encoded record. ok is false when nothing is at path.
func Extract(msg []byte, path string) (record []byte, ok bool) {
	res := gjson.GetBytes(msg, normalizePath(path))
	if !res.Exists() {
		return nil, false
	}
	if res.Type == gjson.String {
		return []byte(res.String()), true
	}
	return []byte(res.Raw), true
}

// Sink unwraps every message before passing it on. Messages without an
// envelope are passed through unchanged so the page can judge them.
type Sink struct {
	inner   runner.Sink
	path    string
	logger  *slog.Logger
	missing atomic.Int64
}

func NewSink(inner runner.Sink, path string, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sink{inner: inner, path: path, logger: logger}
}

func (s *Sink) Feed(data []byte) {
	rec, ok := Extract(data, s.path)
	if !ok {
		if s.missing.Add(1) == 1 {
			s.logger.Debug("message has no record at path", "path", s.path)
		}
		s.inner.Feed(data)
		return
	}
	s.inner.Feed(rec)
}

// Missing counts messages that had nothing at the path.
func (s *Sink) Missing() int64 { return s.missing.Load() }

// Source wraps src so every message it relays is unwrapped at path.
func Source(src runner.Source, path string, logger *slog.Logger) runner.Source {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "extractor")
	return runner.SourceFunc(func(ctx context.Context, sink runner.Sink) error {
		return src.Stream(ctx, NewSink(sink, path, logger))
	})
}
