package threshold

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/torosent/vitalscope/internal/metrics"
	"github.com/torosent/vitalscope/internal/severity"
	"github.com/torosent/vitalscope/internal/vitals"
)

// Threshold represents a performance assertion that can pass or fail.
type Threshold struct {
	Metric    string  // e.g., "lcp", "cls", "interaction_delay"
	Aggregate string  // e.g., "value", "scaled", "p99", "count"
	Operator  string  // e.g., "<", "<=", ">", ">=", "=="
	Value     float64 // The threshold value to compare against
	Raw       string  // Original threshold string for display
}

// Result represents the outcome of evaluating a threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

// Input is what thresholds are evaluated against. HasSnapshot is false when
// the page view never produced a snapshot.
type Input struct {
	Snapshot    vitals.Snapshot
	HasSnapshot bool
	Stats       metrics.Stats
}

// Evaluator evaluates thresholds against a page view's results.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
	}
}

// Evaluate checks all thresholds against the provided input.
func (e *Evaluator) Evaluate(in Input) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}

	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		results = append(results, e.evaluateOne(t, in))
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}

func (e *Evaluator) evaluateOne(t Threshold, in Input) Result {
	actual, err := extractMetricValue(t, in)
	if err != nil {
		return Result{
			Threshold: t,
			Actual:    0,
			Pass:      false,
			Message:   fmt.Sprintf("✗ %s: %v", t.Raw, err),
		}
	}

	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}

	message := fmt.Sprintf("%s %s: %.3f %s %.3f", status, t.Raw, actual, t.Operator, t.Value)
	return Result{
		Threshold: t,
		Actual:    actual,
		Pass:      pass,
		Message:   message,
	}
}

var thresholdPattern = regexp.MustCompile(`^([a-z_]+)(?::([a-z0-9]+))?\s*([<>=!]+)\s*([0-9.]+)$`)

// Parse parses a threshold string into a Threshold struct.
// Supported formats:
// - "lcp < 2500"                      (raw metric value, ms)
// - "cls <= 0.1"                      (raw cls sum)
// - "cls:scaled <= 100"               (value in classification units)
// - "interaction_delay:p99 < 200"     (every first-input entry, ms)
// - "layout_shift:count < 20"         (layout-shift entries seen)
// - "entries:count > 0"               (entries seen)
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	matches := thresholdPattern.FindStringSubmatch(s)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected format: metric[:aggregate] operator value, e.g., 'lcp < 2500')", s)
	}

	metric := matches[1]
	aggregate := matches[2]
	operator := matches[3]
	valueStr := matches[4]

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", valueStr, err)
	}

	if !isValidMetric(metric) {
		return Threshold{}, fmt.Errorf("unsupported metric: %q (supported: fcp, lcp, fid, cls, ttfb, interaction_delay, layout_shift, entries)", metric)
	}
	if aggregate == "" {
		aggregate = defaultAggregate(metric)
	}
	if !isValidAggregate(metric, aggregate) {
		return Threshold{}, fmt.Errorf("unsupported aggregate %q for %s", aggregate, metric)
	}
	if !isValidOperator(operator) {
		return Threshold{}, fmt.Errorf("unsupported operator: %q (supported: <, <=, >, >=, ==)", operator)
	}

	return Threshold{
		Metric:    metric,
		Aggregate: aggregate,
		Operator:  operator,
		Value:     value,
		Raw:       s,
	}, nil
}

// ParseMultiple parses multiple threshold strings.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var errors []string

	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			errors = append(errors, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errors, "; "))
	}

	return result, nil
}

var aggregates = map[string][]string{
	"fcp":               {"value", "scaled"},
	"lcp":               {"value", "scaled"},
	"fid":               {"value", "scaled"},
	"cls":               {"value", "scaled"},
	"ttfb":              {"value", "scaled"},
	"interaction_delay": {"p50", "p90", "p99", "min", "max", "avg", "count"},
	"layout_shift":      {"count", "max"},
	"entries":           {"count", "rate"},
}

func isValidMetric(metric string) bool {
	_, ok := aggregates[metric]
	return ok
}

func defaultAggregate(metric string) string {
	switch metric {
	case "interaction_delay":
		return "p99"
	case "layout_shift", "entries":
		return "count"
	default:
		return "value"
	}
}

func isValidAggregate(metric, aggregate string) bool {
	for _, v := range aggregates[metric] {
		if aggregate == v {
			return true
		}
	}
	return false
}

func isValidOperator(operator string) bool {
	valid := []string{"<", "<=", ">", ">=", "=="}
	for _, v := range valid {
		if operator == v {
			return true
		}
	}
	return false
}

func extractMetricValue(t Threshold, in Input) (float64, error) {
	switch t.Metric {
	case "interaction_delay":
		return extractDelayMetric(t.Aggregate, in.Stats.Interaction)
	case "layout_shift":
		if t.Aggregate == "max" {
			return in.Stats.LargestShift, nil
		}
		return float64(in.Stats.LayoutShifts), nil
	case "entries":
		if t.Aggregate == "rate" {
			return in.Stats.EntriesPerSec, nil
		}
		return float64(in.Stats.Total), nil
	default:
		return extractVital(vitals.Metric(t.Metric), t.Aggregate, in)
	}
}

func extractVital(m vitals.Metric, aggregate string, in Input) (float64, error) {
	if !in.HasSnapshot {
		return 0, fmt.Errorf("no snapshot collected")
	}
	value, ok := in.Snapshot.Value(m)
	if !ok {
		return 0, fmt.Errorf("%s not observed", m)
	}
	if aggregate == "scaled" {
		return severity.Scaled(m, value), nil
	}
	return value, nil
}

func extractDelayMetric(aggregate string, d metrics.DelayStats) (float64, error) {
	switch aggregate {
	case "p50":
		return d.P50Ms, nil
	case "p90":
		return d.P90Ms, nil
	case "p99":
		return d.P99Ms, nil
	case "avg":
		return d.MeanMs, nil
	case "min":
		return d.MinMs, nil
	case "max":
		return d.MaxMs, nil
	case "count":
		return float64(d.Count), nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for interaction_delay", aggregate)
	}
}

func compareValues(actual float64, operator string, expected float64) bool {
	// Handle floating point comparison with small epsilon
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}
