package vitals

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"
)

// ErrUnavailable is returned by hosts that lack a facility.
var ErrUnavailable = errors.New("facility unavailable")

// TimingSource is the host's one-shot timing facility.
type TimingSource interface {
	// LoadComplete reports whether the page has finished loading.
	LoadComplete() bool
	// OnLoad registers fn to run once load completes. If load has already
	// completed fn runs immediately. The returned func cancels a pending wait.
	OnLoad(fn func()) (cancel func())
	// Navigation returns the primary navigation's timing, false if the host
	// has no timing facility.
	Navigation() (NavigationTiming, bool)
	// FirstContentfulPaint returns the first-contentful-paint start time.
	FirstContentfulPaint() (float64, bool)
}

// Subscription is a live registration on an EntryStream.
type Subscription interface {
	// Unsubscribe stops delivery. No callback runs after it returns.
	Unsubscribe()
}

// EntryStream is the host's asynchronous instrumentation stream.
type EntryStream interface {
	// Subscribe registers fn for every entry. It returns ErrUnavailable when
	// the host cannot deliver entries.
	Subscribe(fn func(Entry)) (Subscription, error)
}

// Recorder receives the outcome of every dispatched entry.
type Recorder interface {
	RecordEntry(e Entry, outcome Outcome)
}

// Options configures a Collector. A nil Timing or Entries means the host lacks
// that facility.
type Options struct {
	Timing   TimingSource
	Entries  EntryStream
	Recorder Recorder
	Logger   *slog.Logger
	// OnChange is called after the snapshot is seeded or changed.
	OnChange func()
}

// Collector owns the snapshot of one page view.
type Collector struct {
	timing   TimingSource
	entries  EntryStream
	recorder Recorder
	logger   *slog.Logger
	onChange func()

	id   ulid.ULID
	once sync.Once

	mu         sync.Mutex
	snap       *Snapshot
	sub        Subscription
	cancelLoad func()
	closed     bool
}

// NewCollector creates a collector for a new page view.
func NewCollector(opts Options) *Collector {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := ulid.Make()
	return &Collector{
		timing:   opts.Timing,
		entries:  opts.Entries,
		recorder: opts.Recorder,
		logger:   logger.With("component", "vitals", "page_view", id.String()),
		onChange: opts.OnChange,
		id:       id,
	}
}

// PageView returns the page-view identifier.
func (c *Collector) PageView() ulid.ULID {
	return c.id
}

// Snapshot returns a copy of the current snapshot, false before acquisition
// or when the host has no timing facility.
func (c *Collector) Snapshot() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap == nil {
		return Snapshot{}, false
	}
	return *c.snap, true
}

// Close tears the collector down. The entry subscription is released before
// Close returns and the snapshot is frozen. Close is idempotent.
func (c *Collector) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	sub, cancel := c.sub, c.cancelLoad
	c.sub, c.cancelLoad = nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sub != nil {
		sub.Unsubscribe()
	}
	c.logger.Debug("collector closed")
}

func (c *Collector) observe() {
	if c.entries == nil {
		c.logger.Debug("instrumentation stream unavailable")
		return
	}
	sub, err := c.entries.Subscribe(c.dispatch)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			c.logger.Debug("instrumentation stream unavailable")
		} else {
			c.logger.Warn("subscribe failed", "error", err)
		}
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	c.sub = sub
	c.mu.Unlock()
}

func (c *Collector) dispatch(e Entry) {
	c.mu.Lock()
	if c.closed || c.snap == nil {
		c.mu.Unlock()
		c.record(e, Dropped)
		return
	}
	next, outcome := Apply(*c.snap, e)
	c.snap = &next
	c.mu.Unlock()

	c.record(e, outcome)
	if outcome == Applied {
		c.changed()
	}
}

func (c *Collector) record(e Entry, outcome Outcome) {
	if c.recorder != nil {
		c.recorder.RecordEntry(e, outcome)
	}
}

func (c *Collector) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}
