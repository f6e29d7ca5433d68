package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/vitalscope/internal/clientmetrics"
	"github.com/torosent/vitalscope/internal/metrics"
	"github.com/torosent/vitalscope/internal/threshold"
	"github.com/torosent/vitalscope/internal/vitals"
)

func ptr(v float64) *float64 { return &v }

func sampleReport() Report {
	r := Report{
		GeneratedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		PageView:    "01JNBV7Q4XK4Y9B3M2ZC8T6W5R",
		Source:      "replay",
		Target:      "trace.jsonl",
		End:         "source ended",
		Stats: metrics.Stats{
			Total:        6,
			ByType:       map[string]int64{"layout-shift": 4, "first-input": 2},
			Outcomes:     map[string]map[string]int{"layout-shift": {"applied": 3, "ignored_recent_input": 1}},
			Interaction:  metrics.DelayStats{Count: 2, MinMs: 8, MeanMs: 20, P50Ms: 8, P90Ms: 32, P99Ms: 32, MaxMs: 32},
			LayoutShifts: 4,
			LargestShift: 0.08,
			Duration:     3 * time.Second,
		},
	}
	r.WithSnapshot(vitals.Snapshot{FCP: 1200, TTFB: 90, LCP: ptr(2600), FID: ptr(8), CLS: 0.11, Entries: 5}, true)
	return r
}

func TestPrintReportBasic(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, sampleReport())

	output := buf.String()
	for _, want := range []string{
		"Page View Results",
		"replay (trace.jsonl)",
		"FCP    ",
		"1200ms",
		"LCP",
		"needs-improvement",
		"0.1100",
		"Interaction Delay:",
		"ignored_recent_input: 1",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
	if strings.Contains(output, "Relay:") {
		t.Error("relay section should be omitted without relay stats")
	}
}

func TestPrintReportWithoutSnapshot(t *testing.T) {
	r := Report{Source: "har", End: "source ended"}
	r.WithSnapshot(vitals.Snapshot{}, false)

	var buf bytes.Buffer
	PrintReport(&buf, r)
	output := buf.String()
	if !strings.Contains(output, "No metrics were collected") {
		t.Errorf("expected no-metrics notice, got:\n%s", output)
	}
	if strings.Contains(output, "Applied:") {
		t.Error("applied count needs a snapshot")
	}
}

func TestPrintReportPendingMetrics(t *testing.T) {
	r := Report{Source: "probe"}
	r.WithSnapshot(vitals.Snapshot{FCP: 0, TTFB: 40}, true)

	var buf bytes.Buffer
	PrintReport(&buf, r)
	if !strings.Contains(buf.String(), "not reported") {
		t.Errorf("unset lcp/fid should be reported as missing:\n%s", buf.String())
	}
}

func TestPrintReportRelayAndThresholds(t *testing.T) {
	r := sampleReport()
	r.Relay = &clientmetrics.Snapshot{Connections: 2, Reconnects: 1, MessagesReceived: 12}
	r.Thresholds = SummarizeThresholds([]threshold.Result{
		{Threshold: threshold.Threshold{Raw: "lcp < 2500", Metric: "lcp", Aggregate: "value", Operator: "<", Value: 2500}, Actual: 2600},
		{Threshold: threshold.Threshold{Raw: "cls < 0.25", Metric: "cls", Aggregate: "value", Operator: "<", Value: 0.25}, Actual: 0.11, Pass: true},
	})

	var buf bytes.Buffer
	PrintReport(&buf, r)
	output := buf.String()
	for _, want := range []string{"Reconnects:      1", "Thresholds: 1/2 passed", "[FAIL] lcp < 2500", "[PASS] cls < 0.25"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestSummarizeThresholds(t *testing.T) {
	if SummarizeThresholds(nil) != nil {
		t.Fatal("no thresholds should produce no summary")
	}
	s := SummarizeThresholds([]threshold.Result{{Pass: true}, {Pass: false}, {Pass: true}})
	if s.Total != 3 || s.Passed != 2 || s.Failed != 1 {
		t.Errorf("summary = %+v", s)
	}
}

func TestPrintJSONReport(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintJSONReport(&buf, sampleReport()); err != nil {
		t.Fatalf("PrintJSONReport failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if decoded["collected"] != true {
		t.Errorf("collected = %v", decoded["collected"])
	}
	ratings, ok := decoded["ratings"].([]interface{})
	if !ok || len(ratings) != len(vitals.Metrics) {
		t.Fatalf("ratings = %v", decoded["ratings"])
	}
	lcp := ratings[1].(map[string]interface{})
	if lcp["metric"] != "lcp" || lcp["band"] != "needs-improvement" {
		t.Errorf("lcp rating = %v", lcp)
	}
	if _, ok := decoded["relay"]; ok {
		t.Error("relay should be omitted when nil")
	}
}

func TestPrintYAMLReport(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintYAMLReport(&buf, sampleReport()); err != nil {
		t.Fatalf("PrintYAMLReport failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid YAML: %v\n%s", err, buf.String())
	}
	if decoded["source"] != "replay" {
		t.Errorf("source = %v", decoded["source"])
	}
	if !strings.Contains(buf.String(), "band: needs-improvement") {
		t.Errorf("expected textual band in YAML:\n%s", buf.String())
	}
}
