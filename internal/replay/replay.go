// Package replay streams a recorded timeline, one JSON record per line, into
// a page.
package replay

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/torosent/vitalscope/internal/runner"
)

// maxLineSize bounds a single record. Relayed entry batches can be long.
const maxLineSize = 4 * 1024 * 1024

// Source replays a JSON-lines trace. Blank lines and lines starting with #
// are skipped; malformed lines reach the page, which counts them.
type Source struct {
	path   string
	stdin  io.Reader
	logger *slog.Logger
}

// NewSource creates a source for path. "-" reads standard input.
func NewSource(path string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Source{path: path, stdin: os.Stdin, logger: logger.With("component", "replay", "path", path)}
}

// FromReader creates a source reading r once.
func FromReader(r io.Reader, logger *slog.Logger) *Source {
	s := NewSource("-", logger)
	s.stdin = r
	return s
}

// Stream implements runner.Source.
func (s *Source) Stream(ctx context.Context, sink runner.Sink) error {
	r, closeFn, err := s.open()
	if err != nil {
		return err
	}
	defer closeFn()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lines := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		lines++
		sink.Feed(append([]byte(nil), line...))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read trace %s: %w", s.path, err)
	}
	s.logger.Debug("trace replayed", "records", lines)
	return nil
}

func (s *Source) open() (io.Reader, func(), error) {
	if s.path == "-" {
		return s.stdin, func() {}, nil
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, nil, fmt.Errorf("open trace: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
