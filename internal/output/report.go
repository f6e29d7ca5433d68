package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/vitalscope/internal/clientmetrics"
	"github.com/torosent/vitalscope/internal/metrics"
	"github.com/torosent/vitalscope/internal/severity"
	"github.com/torosent/vitalscope/internal/threshold"
	"github.com/torosent/vitalscope/internal/vitals"
)

// Report is the final summary of one page view.
type Report struct {
	GeneratedAt time.Time               `json:"generated_at" yaml:"generated_at"`
	PageView    string                  `json:"page_view" yaml:"page_view"`
	Source      string                  `json:"source" yaml:"source"`
	Target      string                  `json:"target,omitempty" yaml:"target,omitempty"`
	End         string                  `json:"end" yaml:"end"`
	Collected   bool                    `json:"collected" yaml:"collected"`
	Snapshot    *vitals.Snapshot        `json:"snapshot,omitempty" yaml:"snapshot,omitempty"`
	Ratings     []severity.Rating       `json:"ratings,omitempty" yaml:"ratings,omitempty"`
	Stats       metrics.Stats           `json:"entries" yaml:"entries"`
	Relay       *clientmetrics.Snapshot `json:"relay,omitempty" yaml:"relay,omitempty"`
	Thresholds  *ThresholdSummary       `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// ThresholdSummary counts threshold outcomes.
type ThresholdSummary struct {
	Total   int                   `json:"total" yaml:"total"`
	Passed  int                   `json:"passed" yaml:"passed"`
	Failed  int                   `json:"failed" yaml:"failed"`
	Results []ThresholdResultJSON `json:"results" yaml:"results"`
}

// ThresholdResultJSON is one evaluated threshold.
type ThresholdResultJSON struct {
	Threshold string  `json:"threshold" yaml:"threshold"`
	Metric    string  `json:"metric" yaml:"metric"`
	Aggregate string  `json:"aggregate" yaml:"aggregate"`
	Operator  string  `json:"operator" yaml:"operator"`
	Expected  float64 `json:"expected" yaml:"expected"`
	Actual    float64 `json:"actual" yaml:"actual"`
	Pass      bool    `json:"pass" yaml:"pass"`
	Message   string  `json:"message,omitempty" yaml:"message,omitempty"`
}

// SummarizeThresholds converts evaluation results for reporting. It returns
// nil when no thresholds were configured.
func SummarizeThresholds(results []threshold.Result) *ThresholdSummary {
	if len(results) == 0 {
		return nil
	}
	summary := &ThresholdSummary{
		Total:   len(results),
		Results: make([]ThresholdResultJSON, len(results)),
	}
	for i, tr := range results {
		summary.Results[i] = ThresholdResultJSON{
			Threshold: tr.Threshold.Raw,
			Metric:    tr.Threshold.Metric,
			Aggregate: tr.Threshold.Aggregate,
			Operator:  tr.Threshold.Operator,
			Expected:  tr.Threshold.Value,
			Actual:    tr.Actual,
			Pass:      tr.Pass,
			Message:   tr.Message,
		}
		if tr.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}
	return summary
}

// WithSnapshot attaches the final snapshot and its ratings.
func (r *Report) WithSnapshot(snap vitals.Snapshot, ok bool) {
	r.Collected = ok
	if !ok {
		r.Snapshot, r.Ratings = nil, nil
		return
	}
	r.Snapshot = &snap
	r.Ratings = severity.RateAll(snap)
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, r Report) {
	fmt.Fprintln(w, "\n--- Page View Results ---")
	fmt.Fprintf(w, "Page View:         %s\n", r.PageView)
	fmt.Fprintf(w, "Source:            %s\n", describeSource(r))
	fmt.Fprintf(w, "Ended:             %s\n", r.End)
	fmt.Fprintf(w, "Duration:          %s\n", r.Stats.Duration.Round(time.Millisecond))

	if !r.Collected {
		fmt.Fprintln(w, "\nNo metrics were collected (the page never exposed navigation timing).")
	} else {
		fmt.Fprintln(w, "\nWeb Vitals:")
		for _, rating := range r.Ratings {
			name := strings.ToUpper(string(rating.Metric))
			if !rating.Present {
				fmt.Fprintf(w, "  %-5s            not reported\n", name)
				continue
			}
			fmt.Fprintf(w, "  %-5s            %-10s %s\n", name, formatValue(rating.Metric, rating.Value), rating.Band)
		}
	}

	fmt.Fprintln(w, "\nEntries:")
	fmt.Fprintf(w, "  Total:           %d\n", r.Stats.Total)
	if r.Collected {
		fmt.Fprintf(w, "  Applied:         %d\n", r.Snapshot.Entries)
	}
	if r.Stats.MalformedInput > 0 {
		fmt.Fprintf(w, "  Malformed:       %d\n", r.Stats.MalformedInput)
	}
	if d := r.Stats.Interaction; d.Count > 0 {
		fmt.Fprintln(w, "\nInteraction Delay:")
		fmt.Fprintf(w, "  Count:           %d\n", d.Count)
		fmt.Fprintf(w, "  Min:             %.2fms\n", d.MinMs)
		fmt.Fprintf(w, "  Mean:            %.2fms\n", d.MeanMs)
		fmt.Fprintf(w, "  P50:             %.2fms\n", d.P50Ms)
		fmt.Fprintf(w, "  P90:             %.2fms\n", d.P90Ms)
		fmt.Fprintf(w, "  P99:             %.2fms\n", d.P99Ms)
		fmt.Fprintf(w, "  Max:             %.2fms\n", d.MaxMs)
	}
	if r.Stats.LayoutShifts > 0 {
		fmt.Fprintln(w, "\nLayout Shifts:")
		fmt.Fprintf(w, "  Count:           %d\n", r.Stats.LayoutShifts)
		fmt.Fprintf(w, "  Largest:         %.4f\n", r.Stats.LargestShift)
	}
	if len(r.Stats.Outcomes) > 0 {
		fmt.Fprintln(w, "\nOutcomes:")
		writeOutcomes(w, r.Stats.Outcomes, "  ")
	}

	if r.Relay != nil {
		fmt.Fprintln(w, "\nRelay:")
		fmt.Fprintf(w, "  Connections:     %d\n", r.Relay.Connections)
		fmt.Fprintf(w, "  Reconnects:      %d\n", r.Relay.Reconnects)
		fmt.Fprintf(w, "  Messages:        %d\n", r.Relay.MessagesReceived)
		fmt.Fprintf(w, "  Bytes:           %d\n", r.Relay.BytesReceived)
		fmt.Fprintf(w, "  Errors:          %d\n", r.Relay.Errors)
	}

	if r.Thresholds != nil {
		fmt.Fprintf(w, "\nThresholds: %d/%d passed\n", r.Thresholds.Passed, r.Thresholds.Total)
		for _, t := range r.Thresholds.Results {
			status := "PASS"
			if !t.Pass {
				status = "FAIL"
			}
			fmt.Fprintf(w, "  [%s] %s (actual %.2f)\n", status, t.Threshold, t.Actual)
		}
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, r Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

func describeSource(r Report) string {
	if r.Target == "" {
		return r.Source
	}
	return fmt.Sprintf("%s (%s)", r.Source, r.Target)
}

func formatValue(m vitals.Metric, v float64) string {
	if m == vitals.MetricCLS {
		return fmt.Sprintf("%.4f", v)
	}
	return fmt.Sprintf("%.0fms", v)
}

func writeOutcomes(w io.Writer, outcomes map[string]map[string]int, indent string) {
	rows := metrics.FlattenOutcomes(outcomes)
	if len(rows) == 0 {
		fmt.Fprintf(w, "%sNone\n", indent)
		return
	}
	for _, row := range rows {
		fmt.Fprintf(w, "%s%s %s: %d\n", indent, row.EntryType, row.Outcome, row.Count)
	}
}
