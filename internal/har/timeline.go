package har

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/torosent/vitalscope/internal/runner"
	"github.com/torosent/vitalscope/internal/vitals"
	"github.com/torosent/vitalscope/internal/wire"
)

// ErrNoEntries is returned for an archive without any requests.
var ErrNoEntries = errors.New("har: archive has no entries")

// Options select what part of an archive becomes the page timeline.
type Options struct {
	// PageID picks a page from log.pages. Empty means the first page, or all
	// entries when the archive has no pages.
	PageID string
}

// Timeline converts an archive into the records a page would have relayed:
// a navigation record for the document request, a first-contentful-paint
// record when the exporter captured one, and a final load record. Archives
// carry no performance entries, so no entry records are produced.
func Timeline(h *HAR, opts Options) ([]wire.Record, error) {
	if h == nil || h.Log == nil {
		return nil, ErrMissingLog
	}

	page, err := selectPage(h.Log, opts.PageID)
	if err != nil {
		return nil, err
	}
	entries := pageEntries(h.Log, page)
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}
	doc := documentEntry(entries)

	pageStart := parseTime(doc.StartedDateTime)
	if page != nil {
		if t := parseTime(page.StartedDateTime); !t.IsZero() {
			pageStart = t
		}
	}

	nav := navigationTiming(doc, pageStart)
	records := []wire.Record{{Kind: wire.KindNavigation, Navigation: nav}}

	if page != nil && page.PageTimings != nil {
		if fcp := page.PageTimings.FirstContentfulPaint; fcp != nil && *fcp >= 0 {
			records = append(records, wire.Record{
				Kind:  wire.KindPaint,
				Paint: wire.Paint{Name: wire.FirstContentfulPaint, StartTime: *fcp},
			})
		}
	}

	records = append(records, wire.Record{Kind: wire.KindLoad})
	return records, nil
}

func selectPage(log *Log, id string) (*Page, error) {
	if id == "" {
		if len(log.Pages) == 0 {
			return nil, nil
		}
		return log.Pages[0], nil
	}
	for _, p := range log.Pages {
		if p != nil && p.ID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("har: page %q not found", id)
}

func pageEntries(log *Log, page *Page) []*Entry {
	var out []*Entry
	for _, e := range log.Entries {
		if e == nil || e.Request == nil {
			continue
		}
		if page != nil && e.PageRef != "" && e.PageRef != page.ID {
			continue
		}
		out = append(out, e)
	}
	return out
}

// documentEntry returns the first HTML response, falling back to the first
// request of the page.
func documentEntry(entries []*Entry) *Entry {
	for _, e := range entries {
		if e.ResourceType == "document" {
			return e
		}
		if e.Response != nil && e.Response.Content != nil &&
			strings.Contains(strings.ToLower(e.Response.Content.MimeType), "html") {
			return e
		}
	}
	return entries[0]
}

// navigationTiming places the document request on the page clock. The
// request starts once blocking, DNS, connect and send are done; the response
// starts after the server wait.
func navigationTiming(doc *Entry, pageStart time.Time) vitals.NavigationTiming {
	var offset float64
	if start := parseTime(doc.StartedDateTime); !start.IsZero() && !pageStart.IsZero() {
		offset = float64(start.Sub(pageStart)) / float64(time.Millisecond)
	}
	if offset < 0 {
		offset = 0
	}
	if doc.Timings == nil {
		return vitals.NavigationTiming{RequestStart: offset, ResponseStart: offset}
	}
	t := doc.Timings
	requestStart := offset + phase(t.Blocked) + phase(t.DNS) + phase(t.Connect) + phase(t.Send)
	return vitals.NavigationTiming{
		RequestStart:  requestStart,
		ResponseStart: requestStart + phase(t.Wait),
	}
}

// phase treats -1 (not applicable) as zero.
func phase(ms float64) float64 {
	if ms < 0 {
		return 0
	}
	return ms
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Source replays an archive into a page as encoded records.
type Source struct {
	path   string
	opts   Options
	logger *slog.Logger
}

// NewSource creates a source reading the archive at path.
func NewSource(path string, opts Options, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Source{path: path, opts: opts, logger: logger.With("component", "har", "path", path)}
}

// Stream implements runner.Source.
func (s *Source) Stream(ctx context.Context, sink runner.Sink) error {
	h, err := ParseFile(s.path)
	if err != nil {
		return err
	}
	records, err := Timeline(h, s.opts)
	if err != nil {
		return err
	}
	s.logger.Debug("archive converted", "entries", len(h.Log.Entries), "records", len(records))

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := wire.Encode(rec)
		if err != nil {
			return fmt.Errorf("encode %s record: %w", rec.Kind, err)
		}
		sink.Feed(data)
	}
	return nil
}
