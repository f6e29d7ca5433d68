package metrics_test

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/torosent/vitalscope/internal/metrics"
	"github.com/torosent/vitalscope/internal/vitals"
)

func interaction(delay float64) vitals.Entry {
	return vitals.Entry{Type: vitals.EntryFirstInput, StartTime: 100, ProcessingStart: 100 + delay}
}

func TestCollectorCountsByTypeAndOutcome(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordEntry(vitals.Entry{Type: vitals.EntryLayoutShift, Value: 0.1}, vitals.Applied)
	c.RecordEntry(vitals.Entry{Type: vitals.EntryLayoutShift, Value: 0.3, HadRecentInput: true}, vitals.IgnoredRecentInput)
	c.RecordEntry(interaction(20), vitals.Applied)
	c.RecordEntry(interaction(40), vitals.IgnoredLateInteraction)
	c.RecordEntry(vitals.Entry{Type: "longtask"}, vitals.IgnoredUnknown)

	stats := c.Stats()
	if stats.Total != 5 {
		t.Errorf("total = %d, want 5", stats.Total)
	}
	if stats.ByType["layout-shift"] != 2 || stats.ByType["first-input"] != 2 || stats.ByType["longtask"] != 1 {
		t.Errorf("by type = %v", stats.ByType)
	}
	if stats.Outcomes["layout-shift"]["ignored_recent_input"] != 1 {
		t.Errorf("outcomes = %v", stats.Outcomes)
	}
	if stats.Outcomes["first-input"]["ignored_late_interaction"] != 1 {
		t.Errorf("outcomes = %v", stats.Outcomes)
	}
	if stats.LayoutShifts != 2 || stats.LargestShift != 0.3 {
		t.Errorf("shifts = %d largest = %v", stats.LayoutShifts, stats.LargestShift)
	}
}

func TestCollectorInteractionDelays(t *testing.T) {
	c := metrics.NewCollector()
	for i := 1; i <= 100; i++ {
		c.RecordEntry(interaction(float64(i)), vitals.IgnoredLateInteraction)
	}

	d := c.Stats().Interaction
	if d.Count != 100 {
		t.Fatalf("count = %d", d.Count)
	}
	if d.MinMs != 1 || d.MaxMs != 100 {
		t.Errorf("min/max = %v/%v", d.MinMs, d.MaxMs)
	}
	if d.MeanMs < 50 || d.MeanMs > 51 {
		t.Errorf("mean = %v, want ~50.5", d.MeanMs)
	}
	if d.P50Ms < 49 || d.P50Ms > 51 {
		t.Errorf("p50 = %v, want ~50", d.P50Ms)
	}
	if d.P99Ms < 98 || d.P99Ms > 100.1 {
		t.Errorf("p99 = %v, want ~99", d.P99Ms)
	}
}

func TestCollectorZeroDelayInteraction(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordEntry(interaction(0), vitals.Applied)
	d := c.Stats().Interaction
	if d.Count != 1 || d.MinMs != 0 || d.MaxMs != 0 {
		t.Errorf("unexpected delay stats %+v", d)
	}
}

func TestCollectorPercentilesIncludeZeroDelays(t *testing.T) {
	c := metrics.NewCollector()
	for i := 0; i < 9; i++ {
		c.RecordEntry(interaction(0), vitals.Applied)
	}
	c.RecordEntry(interaction(500), vitals.IgnoredLateInteraction)

	d := c.Stats().Interaction
	if d.Count != 10 || d.MaxMs != 500 {
		t.Fatalf("count = %d max = %v, want 10 and 500", d.Count, d.MaxMs)
	}
	if d.P50Ms != 0 || d.P90Ms != 0 {
		t.Errorf("p50 = %v p90 = %v, want 0", d.P50Ms, d.P90Ms)
	}
	if d.P99Ms != 500 {
		t.Errorf("p99 = %v, want 500", d.P99Ms)
	}
	for _, p := range []float64{d.P50Ms, d.P90Ms, d.P99Ms} {
		if p > d.MaxMs {
			t.Errorf("percentile %v exceeds max %v", p, d.MaxMs)
		}
	}
}

func TestStatsJSONSchema(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordEntry(interaction(10), vitals.Applied)

	data, err := json.Marshal(c.Stats())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, field := range []string{"total", "by_type", "outcomes", "interaction_delay", "layout_shifts", "duration_ms", "entries_per_sec"} {
		if _, ok := parsed[field]; !ok {
			t.Errorf("missing field %q in JSON output", field)
		}
	}
}

func TestConcurrentRecording(t *testing.T) {
	c := metrics.NewCollector()

	var wg sync.WaitGroup
	workers := 10
	perWorker := 100
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				c.RecordEntry(vitals.Entry{Type: vitals.EntryLayoutShift, Value: 0.01}, vitals.Applied)
			}
		}()
	}
	wg.Wait()

	if got := c.Stats().Total; got != int64(workers*perWorker) {
		t.Errorf("total = %d, want %d", got, workers*perWorker)
	}
}
