package vitals

// EntryType is the type tag of a performance timeline entry.
type EntryType string

const (
	// EntryLargestContentfulPaint is a render-candidate entry.
	EntryLargestContentfulPaint EntryType = "largest-contentful-paint"
	// EntryFirstInput is a first-interaction entry.
	EntryFirstInput EntryType = "first-input"
	// EntryLayoutShift is a layout-shift entry.
	EntryLayoutShift EntryType = "layout-shift"
)

// Known reports whether the collector folds entries of this type.
func (t EntryType) Known() bool {
	switch t {
	case EntryLargestContentfulPaint, EntryFirstInput, EntryLayoutShift:
		return true
	default:
		return false
	}
}

// Entry is one instrumentation entry as delivered by the host.
// Times are milliseconds relative to navigation start.
type Entry struct {
	Type            EntryType `json:"entry_type"`
	Name            string    `json:"name,omitempty"`
	StartTime       float64   `json:"start_time"`
	ProcessingStart float64   `json:"processing_start,omitempty"`
	Value           float64   `json:"value,omitempty"`
	HadRecentInput  bool      `json:"had_recent_input,omitempty"`
}

// InputDelay is processingStart - startTime for first-input entries.
func (e Entry) InputDelay() float64 {
	return e.ProcessingStart - e.StartTime
}

// Outcome describes what a dispatch did to the snapshot.
type Outcome int

const (
	Applied Outcome = iota
	IgnoredRecentInput
	IgnoredLateInteraction
	IgnoredUnknown
	// Dropped entries arrived with no live snapshot (before seeding or after teardown).
	Dropped
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case IgnoredRecentInput:
		return "ignored_recent_input"
	case IgnoredLateInteraction:
		return "ignored_late_interaction"
	case IgnoredUnknown:
		return "ignored_unknown"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}
