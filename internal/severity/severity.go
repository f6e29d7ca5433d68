// Package severity classifies collected metrics into quality bands.
package severity

import (
	"fmt"

	"github.com/torosent/vitalscope/internal/vitals"
)

// Band is a three-level quality classification.
type Band int

const (
	Good Band = iota
	NeedsImprovement
	Poor
)

func (b Band) String() string {
	switch b {
	case Good:
		return "good"
	case NeedsImprovement:
		return "needs-improvement"
	case Poor:
		return "poor"
	default:
		return fmt.Sprintf("band(%d)", int(b))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (b Band) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// Thresholds are the inclusive upper bounds of the good and
// needs-improvement bands.
type Thresholds struct {
	Good       float64
	Acceptable float64
}

// Classify maps value onto a band. Both bounds are inclusive.
func Classify(value float64, t Thresholds) Band {
	switch {
	case value <= t.Good:
		return Good
	case value <= t.Acceptable:
		return NeedsImprovement
	default:
		return Poor
	}
}

// clsScale converts the unitless cls sum into the units its thresholds use.
const clsScale = 1000

var table = map[vitals.Metric]Thresholds{
	vitals.MetricFCP:  {Good: 1800, Acceptable: 3000},
	vitals.MetricLCP:  {Good: 2500, Acceptable: 4000},
	vitals.MetricFID:  {Good: 100, Acceptable: 300},
	vitals.MetricTTFB: {Good: 800, Acceptable: 1800},
	vitals.MetricCLS:  {Good: 100, Acceptable: 250},
}

// For returns the fixed thresholds of m.
func For(m vitals.Metric) (Thresholds, bool) {
	t, ok := table[m]
	return t, ok
}

// Scaled returns the value of m in threshold units. Only cls is rescaled.
func Scaled(m vitals.Metric, value float64) float64 {
	if m == vitals.MetricCLS {
		return value * clsScale
	}
	return value
}

// Rating is the classified state of one metric.
type Rating struct {
	Metric  vitals.Metric `json:"metric" yaml:"metric"`
	Value   float64       `json:"value" yaml:"value"`
	Scaled  float64       `json:"scaled" yaml:"scaled"`
	Band    Band          `json:"band" yaml:"band"`
	Present bool          `json:"present" yaml:"present"`
}

// Rate classifies a single metric of snap. Unset metrics are returned with
// Present false and are not classified.
func Rate(snap vitals.Snapshot, m vitals.Metric) Rating {
	r := Rating{Metric: m}
	value, ok := snap.Value(m)
	if !ok {
		return r
	}
	t, ok := For(m)
	if !ok {
		return r
	}
	r.Value = value
	r.Scaled = Scaled(m, value)
	r.Band = Classify(r.Scaled, t)
	r.Present = true
	return r
}

// RateAll classifies every metric in display order.
func RateAll(snap vitals.Snapshot) []Rating {
	ratings := make([]Rating, 0, len(vitals.Metrics))
	for _, m := range vitals.Metrics {
		ratings = append(ratings, Rate(snap, m))
	}
	return ratings
}
