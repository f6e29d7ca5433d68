package metrics

import "sort"

// OutcomeBucket is the count of one outcome for one entry type.
type OutcomeBucket struct {
	EntryType string
	Outcome   string
	Count     int
}

// FlattenOutcomes converts a nested entryType->outcome map into a sorted slice.
// Rows are sorted by descending count, then by entry type and outcome for stability.
func FlattenOutcomes(buckets map[string]map[string]int) []OutcomeBucket {
	if len(buckets) == 0 {
		return nil
	}
	rows := make([]OutcomeBucket, 0)
	for entryType, outcomes := range buckets {
		for outcome, count := range outcomes {
			rows = append(rows, OutcomeBucket{EntryType: entryType, Outcome: outcome, Count: count})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			if rows[i].EntryType == rows[j].EntryType {
				return rows[i].Outcome < rows[j].Outcome
			}
			return rows[i].EntryType < rows[j].EntryType
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
