package calendar

import "sort"

// Aggregation is the merged view over a FetchResult.
type Aggregation struct {
	// Events holds every fetched event tagged with its calendar, sorted by
	// effective start. Identical events from different calendars are kept.
	Events []AggregatedEvent `json:"events"`

	// Grouped holds the same events keyed by calendar ID. It is nil when
	// only one calendar was queried.
	Grouped map[string][]AggregatedEvent `json:"grouped,omitempty"`

	// GroupOrder lists the keys of Grouped in request order.
	GroupOrder []string `json:"-"`
}

// Aggregate flattens result into a single list sorted by effective start.
//
// Ordering compares the raw start strings, so a timed start and an all-day
// date on the same day order by string comparison, not by instant. Equal
// starts keep request order.
func Aggregate(result *FetchResult) Aggregation {
	agg := Aggregation{Events: []AggregatedEvent{}}
	if result == nil {
		return agg
	}

	for _, id := range result.Order {
		for _, ev := range result.Events[id] {
			agg.Events = append(agg.Events, AggregatedEvent{CalendarID: id, Event: ev})
		}
	}
	sort.SliceStable(agg.Events, func(i, j int) bool {
		return agg.Events[i].EffectiveStart() < agg.Events[j].EffectiveStart()
	})

	if len(result.Order) > 1 {
		agg.Grouped = make(map[string][]AggregatedEvent, len(result.Order))
		for _, id := range result.Order {
			agg.Grouped[id] = []AggregatedEvent{}
			agg.GroupOrder = append(agg.GroupOrder, id)
		}
		for _, ev := range agg.Events {
			agg.Grouped[ev.CalendarID] = append(agg.Grouped[ev.CalendarID], ev)
		}
	}
	return agg
}
