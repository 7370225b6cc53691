package calendar

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/calquery/internal/instrumentation"
)

// FreeBusy is the raw answer of a free/busy query.
type FreeBusy struct {
	// Calendars maps calendar ID to its busy periods. Calendars that
	// failed are absent and listed in Diagnostics.
	Calendars map[string][]RawPeriod

	// Order lists the requested calendar IDs in request order.
	Order []string

	// Window is the normalized window the query covered.
	Window Window

	Diagnostics Diagnostics
}

// FreeBusySource is the part of the Calendar API availability checks need.
type FreeBusySource interface {
	ZoneLookup
	QueryFreeBusy(ctx context.Context, calendarIDs []string, w Window, timeZone string) (*FreeBusy, error)
}

// CalendarBusy lists the busy periods of one calendar.
type CalendarBusy struct {
	Busy []RawPeriod `json:"busy"`
}

// SearchCriteria echoes the parameters used to synthesize free slots.
type SearchCriteria struct {
	MinSlotDuration float64 `json:"minSlotDuration"`
	TimeZone        string  `json:"timeZone"`
}

// Availability is the result of an availability check. SuggestedFreeSlots
// and SearchCriteria are only present when slot suggestion was requested
// and succeeded.
type Availability struct {
	Calendars          map[string]CalendarBusy `json:"calendars"`
	SuggestedFreeSlots []FreeSlot              `json:"suggestedFreeSlots,omitzero"`
	SearchCriteria     *SearchCriteria         `json:"searchCriteria,omitempty"`
}

// AvailabilityOptions controls free slot suggestion.
type AvailabilityOptions struct {
	SuggestFreeSlots bool

	// MinSlotDuration in minutes. Zero or less selects DefaultMinSlotMinutes.
	MinSlotDuration float64

	// TimeZone is echoed in SearchCriteria. Empty means "UTC".
	TimeZone string
}

// AvailabilityRequest is the input of CheckAvailability.
type AvailabilityRequest struct {
	CalendarIDs []string
	TimeMin     string
	TimeMax     string
	TimeZone    string
	Options     AvailabilityOptions
}

// CheckAvailability validates req, queries free/busy information for all
// calendars and composes the availability result.
//
// Zone-naive bounds are read in req.TimeZone, else in the default zone of
// the first calendar.
func CheckAvailability(ctx context.Context, src FreeBusySource, req AvailabilityRequest) (Availability, Diagnostics, error) {
	ctx, span := instrumentation.StartSpan(ctx, "calendar.check_availability",
		attribute.Int("calendar.count", len(req.CalendarIDs)),
		attribute.Bool("calendar.suggest_free_slots", req.Options.SuggestFreeSlots))
	defer span.End()

	result, diags, err := checkAvailability(ctx, src, req)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return result, diags, err
	}
	if !diags.Empty() {
		instrumentation.AddSpanEvent(span, "degraded",
			attribute.Int("failures", len(diags.Failures)),
			attribute.Int("notes", len(diags.Notes)))
	}
	instrumentation.SetSpanSuccess(span)
	return result, diags, nil
}

func checkAvailability(ctx context.Context, src FreeBusySource, req AvailabilityRequest) (Availability, Diagnostics, error) {
	if len(req.CalendarIDs) == 0 {
		return Availability{}, Diagnostics{}, NewValidationError("calendars", "at least one calendar must be specified")
	}
	if req.TimeMin == "" || req.TimeMax == "" {
		return Availability{}, Diagnostics{}, NewValidationError("timeMin", "timeMin and timeMax are required")
	}

	resolved, err := ResolveWindow(ctx, CalendarQuery{
		CalendarID: req.CalendarIDs[0],
		TimeMin:    req.TimeMin,
		TimeMax:    req.TimeMax,
		TimeZone:   req.TimeZone,
	}, src)
	if err != nil {
		return Availability{}, Diagnostics{}, err
	}

	fb, err := src.QueryFreeBusy(ctx, req.CalendarIDs, resolved.Window, req.TimeZone)
	if err != nil {
		return Availability{}, Diagnostics{}, err
	}
	noteLookupFailure(&fb.Diagnostics, req.CalendarIDs[0], resolved.LookupErr)

	opts := req.Options
	if opts.TimeZone == "" {
		opts.TimeZone = req.TimeZone
	}
	result, diags := ComposeAvailability(fb, opts)
	return result, diags, nil
}

// ComposeAvailability builds the availability result from fb. When slot
// suggestion is requested but cannot be computed, the unenhanced result is
// returned and the reason is added to the diagnostics.
func ComposeAvailability(fb *FreeBusy, opts AvailabilityOptions) (Availability, Diagnostics) {
	var diags Diagnostics
	base := Availability{Calendars: map[string]CalendarBusy{}}
	if fb == nil {
		return base, diags
	}
	diags.Merge(fb.Diagnostics)

	for id, periods := range fb.Calendars {
		busy := make([]RawPeriod, len(periods))
		copy(busy, periods)
		base.Calendars[id] = CalendarBusy{Busy: busy}
	}

	if !opts.SuggestFreeSlots {
		return base, diags
	}

	slots, err := suggestFreeSlots(fb, opts.MinSlotDuration)
	if err != nil {
		diags.AddNote("free slot suggestion failed: %v", err)
		return base, diags
	}

	minDuration := opts.MinSlotDuration
	if minDuration <= 0 {
		minDuration = DefaultMinSlotMinutes
	}
	timeZone := opts.TimeZone
	if timeZone == "" {
		timeZone = "UTC"
	}

	enhanced := base
	enhanced.SuggestedFreeSlots = slots
	enhanced.SearchCriteria = &SearchCriteria{
		MinSlotDuration: minDuration,
		TimeZone:        timeZone,
	}
	return enhanced, diags
}

func suggestFreeSlots(fb *FreeBusy, minMinutes float64) ([]FreeSlot, error) {
	if fb.Window.TimeMin == "" || fb.Window.TimeMax == "" {
		return nil, errors.New("no search window")
	}
	searchStart, err := time.Parse(time.RFC3339, fb.Window.TimeMin)
	if err != nil {
		return nil, err
	}
	searchEnd, err := time.Parse(time.RFC3339, fb.Window.TimeMax)
	if err != nil {
		return nil, err
	}

	intervals, err := ParseBusyIntervals(fb.Calendars)
	if err != nil {
		return nil, err
	}
	return FindFreeSlots(MergeBusyIntervals(intervals), searchStart, searchEnd, minMinutes)
}
