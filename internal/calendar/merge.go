package calendar

import (
	"fmt"
	"sort"
	"time"
)

// MergeBusyIntervals returns the minimal sorted set of disjoint intervals
// covering the same time as in. Touching intervals (next.Start equal to
// last.End) are merged. The input slice is left untouched.
func MergeBusyIntervals(in []BusyInterval) []BusyInterval {
	if len(in) == 0 {
		return []BusyInterval{}
	}

	sorted := make([]BusyInterval, len(in))
	copy(sorted, in)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := make([]BusyInterval, 0, len(sorted))
	last := sorted[0]
	for _, next := range sorted[1:] {
		if !next.Start.After(last.End) {
			if next.End.After(last.End) {
				last.End = next.End
			}
			continue
		}
		merged = append(merged, last)
		last = next
	}
	return append(merged, last)
}

// ParseBusyIntervals converts raw busy periods from every calendar into one
// unordered slice of intervals. Calendar IDs are visited in sorted order so
// the result is deterministic.
func ParseBusyIntervals(calendars map[string][]RawPeriod) ([]BusyInterval, error) {
	ids := make([]string, 0, len(calendars))
	for id := range calendars {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []BusyInterval
	for _, id := range ids {
		for i, p := range calendars[id] {
			start, err := time.Parse(time.RFC3339, p.Start)
			if err != nil {
				return nil, fmt.Errorf("calendar %s busy[%d].start: %w", id, i, err)
			}
			end, err := time.Parse(time.RFC3339, p.End)
			if err != nil {
				return nil, fmt.Errorf("calendar %s busy[%d].end: %w", id, i, err)
			}
			out = append(out, BusyInterval{Start: start, End: end})
		}
	}
	return out, nil
}
