package vitals

// Apply folds one entry into prev and returns the next snapshot.
// prev is never modified.
func Apply(prev Snapshot, e Entry) (Snapshot, Outcome) {
	next := prev
	switch e.Type {
	case EntryLargestContentfulPaint:
		next.LCP = float(e.StartTime)
	case EntryFirstInput:
		if prev.FID != nil {
			return prev, IgnoredLateInteraction
		}
		next.FID = float(e.InputDelay())
	case EntryLayoutShift:
		if e.HadRecentInput {
			return prev, IgnoredRecentInput
		}
		next.CLS = prev.CLS + e.Value
	default:
		return prev, IgnoredUnknown
	}
	next.Entries++
	return next, Applied
}

// Fold applies entries in order starting from initial.
func Fold(initial Snapshot, entries ...Entry) Snapshot {
	snap := initial
	for _, e := range entries {
		snap, _ = Apply(snap, e)
	}
	return snap
}

func float(v float64) *float64 {
	return &v
}
