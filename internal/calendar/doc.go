// Package calendar answers two questions against Google Calendar: when is a
// set of calendars free, and what happened across several calendars in a
// time window.
//
// The package is split into pure computations and the pieces that talk to
// the Calendar API:
//
//   - NormalizeBoundary and ResolveWindow turn caller supplied time bounds
//     into absolute RFC 3339 instants, honouring an embedded offset first,
//     then an explicit zone, then the calendar's default zone.
//   - MergeBusyIntervals and FindFreeSlots collapse busy periods and derive
//     free slots within a search window.
//   - Orchestrator fetches events for one or many calendars, using Google's
//     batch endpoint when more than one calendar is requested, and isolates
//     per-calendar failures into Diagnostics.
//   - Aggregate flattens, tags, sorts and groups fetched events.
//   - ComposeAvailability builds the availability result from a free/busy
//     response, optionally with suggested free slots.
//
// Example usage:
//
//	client, err := calendar.NewClient(ctx, httpClient)
//	if err != nil {
//	    return err
//	}
//
//	orch := calendar.NewOrchestrator(client, calendar.NewHTTPBatchChannel(httpClient, ""))
//	result, err := orch.FetchEvents(ctx, queries)
//	if err != nil {
//	    return err
//	}
//	agg := calendar.Aggregate(result)
package calendar
