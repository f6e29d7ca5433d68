package vitals

import "github.com/oklog/ulid/v2"

// Metric names a collected metric.
type Metric string

const (
	MetricFCP  Metric = "fcp"
	MetricLCP  Metric = "lcp"
	MetricFID  Metric = "fid"
	MetricCLS  Metric = "cls"
	MetricTTFB Metric = "ttfb"
)

// Metrics lists every metric in display order.
var Metrics = []Metric{MetricFCP, MetricLCP, MetricFID, MetricCLS, MetricTTFB}

// NavigationTiming holds the primary navigation's request timings.
type NavigationTiming struct {
	RequestStart  float64
	ResponseStart float64
}

// TTFB returns responseStart - requestStart.
func (n NavigationTiming) TTFB() float64 {
	return n.ResponseStart - n.RequestStart
}

// Snapshot is the running set of metrics for one page view.
// All values are milliseconds except CLS, which is a unitless sum.
type Snapshot struct {
	PageView ulid.ULID `json:"page_view" yaml:"page_view"`
	FCP      float64   `json:"fcp" yaml:"fcp"`
	TTFB     float64   `json:"ttfb" yaml:"ttfb"`
	LCP      *float64  `json:"lcp,omitempty" yaml:"lcp,omitempty"`
	FID      *float64  `json:"fid,omitempty" yaml:"fid,omitempty"`
	CLS      float64   `json:"cls" yaml:"cls"`
	// Entries counts entries that changed the snapshot.
	Entries int `json:"entries" yaml:"entries"`
}

// Seed builds the initial snapshot produced by acquisition.
func Seed(id ulid.ULID, fcp float64, nav NavigationTiming) Snapshot {
	return Snapshot{
		PageView: id,
		FCP:      fcp,
		TTFB:     nav.TTFB(),
	}
}

// Value returns the raw value for m and whether it has been set.
func (s Snapshot) Value(m Metric) (float64, bool) {
	switch m {
	case MetricFCP:
		return s.FCP, true
	case MetricTTFB:
		return s.TTFB, true
	case MetricCLS:
		return s.CLS, true
	case MetricLCP:
		if s.LCP == nil {
			return 0, false
		}
		return *s.LCP, true
	case MetricFID:
		if s.FID == nil {
			return 0, false
		}
		return *s.FID, true
	default:
		return 0, false
	}
}
