// Package vitals collects page-load and interaction-quality metrics for a
// single page view.
//
// A [Collector] owns exactly one [Snapshot]. It is seeded once the host page
// reports load completion (first contentful paint and time to first byte are
// read from the host's [TimingSource]) and is then refined for the rest of the
// page's life by entries delivered through an [EntryStream].
//
// # Reducer
//
// Every refinement is expressed as a pure fold step:
//
//	next, outcome := vitals.Apply(prev, entry)
//
// [Apply] never mutates its input. Largest-contentful-paint entries replace
// lcp, the first first-input entry sets fid, and layout-shift entries without
// recent input are summed into cls. Unknown entry types are ignored.
//
// # Lifecycle
//
//	c := vitals.NewCollector(vitals.Options{Timing: page, Entries: page})
//	c.Activate()
//	defer c.Close()
//
//	if snap, ok := c.Snapshot(); ok {
//		fmt.Println(snap.FCP, snap.CLS)
//	}
//
// A host without a timing facility leaves the collector inert: no snapshot is
// ever created. A host without an instrumentation stream leaves lcp and fid
// unset and cls at zero. Neither case is an error.
//
// # Thread Safety
//
// Host adapters may deliver entries from any goroutine. The collector applies
// them one at a time under a single lock, always against the latest snapshot.
// [Collector.Close] unsubscribes synchronously; entries arriving afterwards
// are dropped.
package vitals
