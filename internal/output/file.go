package output

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gofrs/flock"
)

// ErrOutputLocked is returned when another process holds the report file.
var ErrOutputLocked = errors.New("output file is locked by another process")

// Format names a report encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatHTML Format = "html"
)

// Write renders r in format to path, or to stdout when path is empty. The
// file is held under an exclusive advisory lock while it is written so two
// runs sharing an output path cannot interleave.
func Write(format Format, path string, r Report, stdout io.Writer) error {
	if path == "" {
		return Render(stdout, format, r)
	}

	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	if !locked {
		return fmt.Errorf("%s: %w", path, ErrOutputLocked)
	}
	defer func() { _ = lock.Unlock() }()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := Render(f, format, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Render writes r to w in the given format. Empty means text.
func Render(w io.Writer, format Format, r Report) error {
	switch format {
	case "", FormatText:
		PrintReport(w, r)
		return nil
	case FormatJSON:
		return PrintJSONReport(w, r)
	case FormatYAML:
		return PrintYAMLReport(w, r)
	case FormatHTML:
		return GenerateHTMLReport(w, r)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}
