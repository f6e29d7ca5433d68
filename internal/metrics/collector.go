package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/torosent/vitalscope/internal/vitals"
)

// Collector records per-entry statistics in a thread-safe manner.
type Collector struct {
	mu           sync.Mutex
	delays       *hdrhistogram.Histogram
	total        int64
	byType       map[vitals.EntryType]int64
	outcomes     map[string]map[string]int
	minDelay     time.Duration
	maxDelay     time.Duration
	sumDelay     time.Duration
	interactions int64
	shifts       int64
	largestShift float64
	start        time.Time
}

// DelayStats summarises interaction delays in milliseconds.
type DelayStats struct {
	Count  int64   `json:"count" yaml:"count"`
	MinMs  float64 `json:"min_ms" yaml:"min_ms"`
	MeanMs float64 `json:"mean_ms" yaml:"mean_ms"`
	P50Ms  float64 `json:"p50_ms" yaml:"p50_ms"`
	P90Ms  float64 `json:"p90_ms" yaml:"p90_ms"`
	P99Ms  float64 `json:"p99_ms" yaml:"p99_ms"`
	MaxMs  float64 `json:"max_ms" yaml:"max_ms"`
}

// Stats represents aggregated entry statistics.
type Stats struct {
	Total          int64                     `json:"total" yaml:"total"`
	ByType         map[string]int64          `json:"by_type,omitempty" yaml:"by_type,omitempty"`
	Outcomes       map[string]map[string]int `json:"outcomes,omitempty" yaml:"outcomes,omitempty"`
	Interaction    DelayStats                `json:"interaction_delay" yaml:"interaction_delay"`
	LayoutShifts   int64                     `json:"layout_shifts" yaml:"layout_shifts"`
	LargestShift   float64                   `json:"largest_shift" yaml:"largest_shift"`
	Duration       time.Duration             `json:"-" yaml:"-"`
	DurationMs     float64                   `json:"duration_ms" yaml:"duration_ms"`
	EntriesPerSec  float64                   `json:"entries_per_sec" yaml:"entries_per_sec"`
	MalformedInput int                       `json:"malformed_records,omitempty" yaml:"malformed_records,omitempty"`
}

func NewCollector() *Collector {
	// Track delays from 1µs up to 60s with 3 significant figures.
	h := hdrhistogram.New(1, 60_000_000, 3)
	return &Collector{
		delays:   h,
		byType:   make(map[vitals.EntryType]int64),
		outcomes: make(map[string]map[string]int),
		start:    time.Now(),
	}
}

// Start resets the clock used for the entry rate.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = time.Now()
}

// RecordEntry implements vitals.Recorder.
func (c *Collector) RecordEntry(e vitals.Entry, outcome vitals.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total++
	c.byType[e.Type]++

	key := string(e.Type)
	if c.outcomes[key] == nil {
		c.outcomes[key] = make(map[string]int)
	}
	c.outcomes[key][outcome.String()]++

	switch e.Type {
	case vitals.EntryFirstInput:
		c.recordDelay(time.Duration(e.InputDelay() * float64(time.Millisecond)))
	case vitals.EntryLayoutShift:
		c.shifts++
		if e.Value > c.largestShift {
			c.largestShift = e.Value
		}
	}
}

func (c *Collector) recordDelay(delay time.Duration) {
	if delay < 0 {
		delay = 0
	}
	c.interactions++
	// Zero delays land in the lowest bucket so percentiles cover every
	// interaction; quantile reads map that bucket back to zero.
	us := delay.Microseconds()
	if us < c.delays.LowestTrackableValue() {
		us = c.delays.LowestTrackableValue()
	}
	if us > c.delays.HighestTrackableValue() {
		us = c.delays.HighestTrackableValue()
	}
	_ = c.delays.RecordValue(us)
	c.sumDelay += delay
	if c.interactions == 1 || delay < c.minDelay {
		c.minDelay = delay
	}
	if delay > c.maxDelay {
		c.maxDelay = delay
	}
}

// Stats computes and returns current aggregated statistics.
func (c *Collector) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := time.Since(c.start)
	stats := Stats{
		Total:        c.total,
		LayoutShifts: c.shifts,
		LargestShift: c.largestShift,
		Duration:     elapsed,
		DurationMs:   float64(elapsed) / float64(time.Millisecond),
	}
	if elapsed > 0 && c.total > 0 {
		stats.EntriesPerSec = float64(c.total) / elapsed.Seconds()
	}

	if len(c.byType) > 0 {
		stats.ByType = make(map[string]int64, len(c.byType))
		for k, v := range c.byType {
			stats.ByType[string(k)] = v
		}
	}
	if len(c.outcomes) > 0 {
		stats.Outcomes = make(map[string]map[string]int, len(c.outcomes))
		for entryType, counts := range c.outcomes {
			copied := make(map[string]int, len(counts))
			for k, v := range counts {
				copied[k] = v
			}
			stats.Outcomes[entryType] = copied
		}
	}

	d := DelayStats{Count: c.interactions}
	if c.interactions > 0 {
		d.MinMs = toMs(c.minDelay)
		d.MaxMs = toMs(c.maxDelay)
		d.MeanMs = toMs(time.Duration(int64(c.sumDelay) / c.interactions))
	}
	if c.delays.TotalCount() > 0 {
		d.P50Ms = c.quantileMs(50)
		d.P90Ms = c.quantileMs(90)
		d.P99Ms = c.quantileMs(99)
	}
	stats.Interaction = d

	return stats
}

// quantileMs reads q from the histogram. Bucket rounding never reports more
// than the largest recorded delay, and the lowest bucket reads as zero.
func (c *Collector) quantileMs(q float64) float64 {
	us := c.delays.ValueAtQuantile(q)
	if us <= c.delays.LowestTrackableValue() {
		return 0
	}
	v := time.Duration(us) * time.Microsecond
	if v > c.maxDelay {
		v = c.maxDelay
	}
	return toMs(v)
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
