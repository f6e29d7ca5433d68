package output_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/torosent/vitalscope/internal/metrics"
	"github.com/torosent/vitalscope/internal/output"
	"github.com/torosent/vitalscope/internal/threshold"
	"github.com/torosent/vitalscope/internal/vitals"
)

func TestGenerateHTMLReport(t *testing.T) {
	lcp := 4200.0
	r := output.Report{
		GeneratedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		PageView:    "01JNBV7Q4XK4Y9B3M2ZC8T6W5R",
		Source:      "sse",
		Target:      "https://relay.example.com/timeline",
		End:         "page unloaded",
		Stats: metrics.Stats{
			Total:       3,
			Interaction: metrics.DelayStats{Count: 1, P50Ms: 14, P90Ms: 14, P99Ms: 14, MinMs: 14, MaxMs: 14},
			Duration:    1500 * time.Millisecond,
		},
		Thresholds: output.SummarizeThresholds([]threshold.Result{
			{Threshold: threshold.Threshold{Raw: "lcp < 2500", Metric: "lcp", Aggregate: "value", Operator: "<", Value: 2500}, Actual: 4200},
		}),
	}
	r.WithSnapshot(vitals.Snapshot{FCP: 1000, TTFB: 200, LCP: &lcp, CLS: 0.3, Entries: 3}, true)

	var buf bytes.Buffer
	if err := output.GenerateHTMLReport(&buf, r); err != nil {
		t.Fatalf("GenerateHTMLReport() error = %v", err)
	}

	html := buf.String()
	for _, want := range []string{
		"<!DOCTYPE html>",
		"Web Vitals Report",
		"01JNBV7Q4XK4Y9B3M2ZC8T6W5R",
		"https://relay.example.com/timeline",
		"2025-03-01T10:00:00Z",
		`class="card poor"`,
		"4200ms",
		"not reported",
		"Interaction Delay",
		"Thresholds (0/1 Passed)",
		"FAIL",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("expected %q in HTML report", want)
		}
	}
	if strings.Contains(html, "<h2>Relay</h2>") {
		t.Error("relay section should be omitted without relay stats")
	}
}

func TestGenerateHTMLReportNoSnapshot(t *testing.T) {
	r := output.Report{Source: "replay", End: "source ended"}
	r.WithSnapshot(vitals.Snapshot{}, false)

	var buf bytes.Buffer
	if err := output.GenerateHTMLReport(&buf, r); err != nil {
		t.Fatalf("GenerateHTMLReport() error = %v", err)
	}
	if !strings.Contains(buf.String(), "No metrics were collected") {
		t.Error("expected no-data notice")
	}
	if strings.Contains(buf.String(), `class="card `) {
		t.Error("metric cards rendered without a snapshot")
	}
}

func TestGenerateHTMLReportEscapesTarget(t *testing.T) {
	r := output.Report{Source: "probe", Target: `https://example.com/?q=<script>alert(1)</script>`}
	var buf bytes.Buffer
	if err := output.GenerateHTMLReport(&buf, r); err != nil {
		t.Fatalf("GenerateHTMLReport() error = %v", err)
	}
	if strings.Contains(buf.String(), "<script>alert(1)</script>") {
		t.Error("target was not escaped")
	}
}
