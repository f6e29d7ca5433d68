// Package metrics aggregates statistics about the instrumentation entries a
// page view delivered.
//
// The snapshot in package vitals answers "what are the page's vitals". This
// package answers "what did the stream look like": how many entries of each
// type arrived, what the collector did with them, and how interaction delays
// were distributed across every first-input entry, not only the first one.
//
// # Collector
//
//	stats := metrics.NewCollector()
//	c := vitals.NewCollector(vitals.Options{Timing: page, Entries: page, Recorder: stats})
//
//	// later
//	s := stats.Stats()
//	fmt.Println(s.Interaction.P99Ms, s.Outcomes["layout-shift"]["ignored_recent_input"])
//
// Interaction delays are kept in an HDR histogram with microsecond resolution,
// so percentiles stay accurate without storing every sample.
//
// # Thread Safety
//
// RecordEntry may be called from any goroutine.
package metrics
