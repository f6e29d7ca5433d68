package output

import (
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/torosent/vitalscope/internal/visibility"
	"github.com/torosent/vitalscope/internal/vitals"
)

// ProgressReporter displays the live ratings on a single terminal line while
// the controller allows it.
type ProgressReporter struct {
	controller *visibility.Controller
	snapshot   func() (vitals.Snapshot, bool)
	ticker     *time.Ticker
	done       chan struct{}
	finished   chan struct{}
	writer     io.Writer
	active     int32
	shown      bool
	width      int
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(controller *visibility.Controller, snapshot func() (vitals.Snapshot, bool), interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &ProgressReporter{
		controller: controller,
		snapshot:   snapshot,
		ticker:     time.NewTicker(interval),
		done:       make(chan struct{}),
		finished:   make(chan struct{}),
		writer:     writer,
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates and clears the line.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			p.tick()
		case <-p.done:
			p.clear()
			return
		}
	}
}

// tick renders one frame. Only run's goroutine calls it.
func (p *ProgressReporter) tick() {
	snap, ok := p.snapshot()
	view, visible := p.controller.View(snap, ok)
	if !visible {
		p.clear()
		return
	}
	line := FormatProgress(view)
	pad := ""
	if n := p.width - len(line); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	fmt.Fprint(p.writer, "\r"+line+pad)
	p.width = len(line)
	p.shown = true
}

func (p *ProgressReporter) clear() {
	if !p.shown {
		return
	}
	fmt.Fprint(p.writer, "\r"+strings.Repeat(" ", p.width)+"\r")
	p.shown = false
	p.width = 0
}

// FormatProgress renders a view as one line, e.g.
// "FCP 1200ms good | LCP - | FID - | CLS 0.0120 good | TTFB 90ms good".
func FormatProgress(view visibility.View) string {
	parts := make([]string, 0, len(view.Ratings)+1)
	for _, r := range view.Ratings {
		name := strings.ToUpper(string(r.Metric))
		if !r.Present {
			parts = append(parts, name+" -")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %s %s", name, formatValue(r.Metric, r.Value), r.Band))
	}
	parts = append(parts, fmt.Sprintf("entries %d", view.Snapshot.Entries))
	return strings.Join(parts, " | ")
}
