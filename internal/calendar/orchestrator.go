package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	calendar "google.golang.org/api/calendar/v3"

	"github.com/teemow/calquery/internal/instrumentation"
)

// DefaultZoneLookupConcurrency bounds the calendar metadata calls issued
// while preparing a batch.
const DefaultZoneLookupConcurrency = 8

// EventSource is the single-calendar side of the Calendar API used by the
// Orchestrator.
type EventSource interface {
	ZoneLookup
	ListEvents(ctx context.Context, calendarID string, w Window) ([]*calendar.Event, error)
}

// FetchResult holds the events fetched per calendar and everything that
// went wrong along the way.
type FetchResult struct {
	// Events maps a calendar ID to its events. Failed calendars are absent.
	Events map[string][]*calendar.Event

	// Order lists the requested calendar IDs in request order.
	Order []string

	Diagnostics Diagnostics
}

// Orchestrator fetches events for one or more calendars. A single calendar
// is read directly; several calendars are read through one batch call per
// batch size calendars, MaxBatchSize unless WithBatchSize lowers it.
type Orchestrator struct {
	source      EventSource
	channel     BatchChannel
	metrics     *instrumentation.Metrics
	batchSize   int
	zoneLookups int
	newID       func() string
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(source EventSource, channel BatchChannel) *Orchestrator {
	return &Orchestrator{
		source:      source,
		channel:     channel,
		batchSize:   MaxBatchSize,
		zoneLookups: DefaultZoneLookupConcurrency,
		newID:       uuid.NewString,
	}
}

// WithBatchSize sends at most n sub-requests per batch call. Values outside
// 1..MaxBatchSize leave the current size unchanged.
func (o *Orchestrator) WithBatchSize(n int) *Orchestrator {
	if n > 0 && n <= MaxBatchSize {
		o.batchSize = n
	}
	return o
}

// WithZoneLookupConcurrency runs at most n calendar time zone lookups at
// once. Non-positive values leave the current limit unchanged.
func (o *Orchestrator) WithZoneLookupConcurrency(n int) *Orchestrator {
	if n > 0 {
		o.zoneLookups = n
	}
	return o
}

// WithMetrics records per sub-request outcomes on m.
func (o *Orchestrator) WithMetrics(m *instrumentation.Metrics) *Orchestrator {
	o.metrics = m
	return o
}

// FetchEvents fetches events for every query. A calendar requested more
// than once is fetched and reported once.
//
// Per-calendar failures of a batched fetch never abort the call; they are
// reported in FetchResult.Diagnostics, even when every calendar failed. A
// returned error is either a *ValidationError or, for a single calendar,
// a *FetchError carrying the upstream status.
func (o *Orchestrator) FetchEvents(ctx context.Context, queries []CalendarQuery) (*FetchResult, error) {
	if len(queries) == 0 {
		return nil, NewValidationError("calendarId", "at least one calendar must be specified")
	}

	for _, q := range queries {
		if q.CalendarID == "" {
			return nil, NewValidationError("calendarId", "calendar IDs cannot be empty")
		}
		if q.TimeMin != "" {
			if err := ValidateBoundary("timeMin", q.TimeMin); err != nil {
				return nil, err
			}
		}
		if q.TimeMax != "" {
			if err := ValidateBoundary("timeMax", q.TimeMax); err != nil {
				return nil, err
			}
		}
		if err := ValidateTimeZone("timeZone", q.TimeZone); err != nil {
			return nil, err
		}
	}

	queries = uniqueQueries(queries)

	result := &FetchResult{
		Events: make(map[string][]*calendar.Event, len(queries)),
		Order:  make([]string, 0, len(queries)),
	}
	for _, q := range queries {
		result.Order = append(result.Order, q.CalendarID)
	}

	if len(queries) == 1 {
		if err := o.fetchSingle(ctx, queries[0], result); err != nil {
			return nil, err
		}
		return result, nil
	}

	o.fetchBatched(ctx, queries, result)
	return result, nil
}

// uniqueQueries drops repeated calendar IDs, keeping the first query for
// each ID in request order.
func uniqueQueries(queries []CalendarQuery) []CalendarQuery {
	seen := make(map[string]bool, len(queries))
	out := make([]CalendarQuery, 0, len(queries))
	for _, q := range queries {
		if seen[q.CalendarID] {
			continue
		}
		seen[q.CalendarID] = true
		out = append(out, q)
	}
	return out
}

func (o *Orchestrator) fetchSingle(ctx context.Context, q CalendarQuery, result *FetchResult) error {
	resolved, err := ResolveWindow(ctx, q, o.source)
	if err != nil {
		return err
	}
	noteLookupFailure(&result.Diagnostics, q.CalendarID, resolved.LookupErr)

	events, err := o.source.ListEvents(ctx, q.CalendarID, resolved.Window)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return fe
		}
		return newFetchError(q.CalendarID, err)
	}
	result.Events[q.CalendarID] = events
	return nil
}

func (o *Orchestrator) fetchBatched(ctx context.Context, queries []CalendarQuery, result *FetchResult) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, instrumentation.OperationBatch,
		attribute.Int("calendar.count", len(queries)))
	defer span.End()

	windows := o.resolveWindows(ctx, queries)

	reqs := make([]SubRequest, len(queries))
	owner := make(map[string]int, len(queries))
	for i, q := range queries {
		id := o.newID()
		reqs[i] = SubRequest{
			ID:     id,
			Method: http.MethodGet,
			Path:   EventsPath(q.CalendarID, windows[i].Window),
		}
		owner[id] = i
		noteLookupFailure(&result.Diagnostics, q.CalendarID, windows[i].LookupErr)
	}

	for start := 0; start < len(reqs); start += o.batchSize {
		end := min(start+o.batchSize, len(reqs))
		chunk := reqs[start:end]

		responses, err := o.channel.Do(ctx, chunk)
		if err != nil {
			instrumentation.AddSpanEvent(span, "batch_chunk_failed", attribute.String("error", err.Error()))
			for _, r := range chunk {
				result.Diagnostics.AddFailure(queries[owner[r.ID]].CalendarID, err.Error(), StatusCode(err))
				o.metrics.RecordBatchSubRequest(ctx, instrumentation.StatusError)
			}
			continue
		}

		seen := make(map[string]bool, len(chunk))
		for _, resp := range responses {
			i, ok := owner[resp.ID]
			if !ok || seen[resp.ID] {
				continue
			}
			seen[resp.ID] = true
			o.collect(ctx, queries[i].CalendarID, resp, result)
		}
		for _, r := range chunk {
			if !seen[r.ID] {
				o.collect(ctx, queries[owner[r.ID]].CalendarID, SubResponse{ID: r.ID}, result)
			}
		}
	}

	if result.Diagnostics.Total(len(queries)) {
		instrumentation.SetSpanError(span, errors.New("all calendars failed"))
	} else {
		instrumentation.SetSpanSuccess(span)
	}
}

// resolveWindows normalizes every query's bounds concurrently. Lookup
// failures degrade to UTC inside ResolveWindow, so no goroutine cancels its
// siblings.
func (o *Orchestrator) resolveWindows(ctx context.Context, queries []CalendarQuery) []ResolvedWindow {
	windows := make([]ResolvedWindow, len(queries))

	var g errgroup.Group
	g.SetLimit(o.zoneLookups)
	for i, q := range queries {
		g.Go(func() error {
			resolved, err := ResolveWindow(ctx, q, o.source)
			if err != nil {
				resolved = ResolvedWindow{LookupErr: err}
			}
			windows[i] = resolved
			return nil
		})
	}
	_ = g.Wait()

	return windows
}

func (o *Orchestrator) collect(ctx context.Context, calendarID string, resp SubResponse, result *FetchResult) {
	switch {
	case resp.StatusCode == 0:
		result.Diagnostics.AddFailure(calendarID, "no response returned for calendar", 0)
		o.metrics.RecordBatchSubRequest(ctx, instrumentation.BatchResultMissing)
		return
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		result.Diagnostics.AddFailure(calendarID, subResponseMessage(resp.StatusCode, resp.Body), resp.StatusCode)
		o.metrics.RecordBatchSubRequest(ctx, instrumentation.StatusError)
		return
	}

	var events calendar.Events
	if err := json.Unmarshal(resp.Body, &events); err != nil {
		result.Diagnostics.AddFailure(calendarID, "invalid events payload: "+err.Error(), resp.StatusCode)
		o.metrics.RecordBatchSubRequest(ctx, instrumentation.StatusError)
		return
	}
	result.Events[calendarID] = append(result.Events[calendarID], events.Items...)
	o.metrics.RecordBatchSubRequest(ctx, instrumentation.StatusSuccess)
}

func noteLookupFailure(d *Diagnostics, calendarID string, err error) {
	if err != nil {
		d.AddNote("time zone lookup for %s failed, using UTC: %v", calendarID, err)
	}
}

// EventsPath builds the events.list path for calendarID used inside a batch.
func EventsPath(calendarID string, w Window) string {
	params := url.Values{}
	params.Set("singleEvents", "true")
	params.Set("orderBy", "startTime")
	if w.TimeMin != "" {
		params.Set("timeMin", w.TimeMin)
	}
	if w.TimeMax != "" {
		params.Set("timeMax", w.TimeMax)
	}
	return "/calendar/v3/calendars/" + url.PathEscape(calendarID) + "/events?" + params.Encode()
}
