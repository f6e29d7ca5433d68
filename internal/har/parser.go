package har

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// maxArchiveSize caps how much of an archive is read. Browser exports of a
// single page view are far below this.
const maxArchiveSize = 256 << 20

var (
	ErrEmpty      = errors.New("empty HAR data")
	ErrMissingLog = errors.New("invalid HAR: missing log")
)

// ParseFile reads the archive at path.
func ParseFile(path string) (*HAR, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open HAR: %w", err)
	}
	defer f.Close()

	h, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}

// Parse decodes one archive from r.
func Parse(r io.Reader) (*HAR, error) {
	var h HAR
	dec := json.NewDecoder(io.LimitReader(r, maxArchiveSize))
	if err := dec.Decode(&h); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("decode HAR: %w", err)
	}
	if h.Log == nil {
		return nil, ErrMissingLog
	}
	return &h, nil
}
