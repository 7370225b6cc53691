package calendar_tools

import (
	"fmt"
	"strings"
	"time"

	"github.com/teemow/calquery/internal/calendar"
	"github.com/teemow/calquery/internal/tools/batch"
	"github.com/teemow/calquery/internal/tools/common"
)

// Operation names accepted by calendar-manage.
const (
	OpListCalendars = "list-calendars"
	OpListEvents    = "list-events"
	OpSearchEvents  = "search-events"
	OpListColors    = "list-colors"
)

// defaultSearchHorizon is how far ahead search-events looks when no
// timeMax is given.
const defaultSearchHorizon = 365 * 24 * time.Hour

// Operation is one parsed calendar-manage request. The set of
// implementations is closed.
type Operation interface {
	Name() string
	operation()
}

// ListCalendarsOp lists the caller's calendars.
type ListCalendarsOp struct{}

// ListEventsOp lists events across one or more calendars.
type ListEventsOp struct {
	CalendarIDs   []string
	TimeMin       string
	TimeMax       string
	TimeZone      string
	IncludeReport bool
}

// SearchEventsOp runs a free text search on one calendar.
type SearchEventsOp struct {
	CalendarID string
	Query      string
	TimeMin    string
	TimeMax    string
	TimeZone   string
}

// ListColorsOp lists the event color palette.
type ListColorsOp struct{}

func (ListCalendarsOp) Name() string { return OpListCalendars }
func (ListEventsOp) Name() string    { return OpListEvents }
func (SearchEventsOp) Name() string  { return OpSearchEvents }
func (ListColorsOp) Name() string    { return OpListColors }

func (ListCalendarsOp) operation() {}
func (ListEventsOp) operation()    {}
func (SearchEventsOp) operation()  {}
func (ListColorsOp) operation()    {}

// parseOperation turns calendar-manage arguments into an Operation. now
// anchors the default search window.
func parseOperation(args map[string]any, now time.Time) (Operation, error) {
	name := common.StringArg(args, "operation")
	switch name {
	case OpListCalendars:
		return ListCalendarsOp{}, nil

	case OpListEvents:
		ids := []string{"primary"}
		if raw, ok := args["calendarId"]; ok && !isEmptyArg(raw) {
			parsed, err := batch.ParseStringOrArray(raw, "calendarId")
			if err != nil {
				return nil, calendar.NewValidationError("calendarId", err.Error())
			}
			ids = parsed
		}
		includeReport, _ := args["includeReport"].(bool)
		return ListEventsOp{
			CalendarIDs:   ids,
			TimeMin:       common.StringArg(args, "timeMin"),
			TimeMax:       common.StringArg(args, "timeMax"),
			TimeZone:      common.StringArg(args, "timeZone"),
			IncludeReport: includeReport,
		}, nil

	case OpSearchEvents:
		query := common.StringArg(args, "query")
		if query == "" {
			return nil, calendar.NewValidationError("query", "query is required for search-events")
		}
		op := SearchEventsOp{
			CalendarID: common.StringArg(args, "calendarId"),
			Query:      query,
			TimeMin:    common.StringArg(args, "timeMin"),
			TimeMax:    common.StringArg(args, "timeMax"),
			TimeZone:   common.StringArg(args, "timeZone"),
		}
		if op.CalendarID == "" {
			op.CalendarID = "primary"
		}
		if op.TimeMin == "" {
			op.TimeMin = now.UTC().Format(time.RFC3339)
		}
		if op.TimeMax == "" {
			op.TimeMax = now.Add(defaultSearchHorizon).UTC().Format(time.RFC3339)
		}
		return op, nil

	case OpListColors:
		return ListColorsOp{}, nil

	case "":
		return nil, calendar.NewValidationError("operation", "operation is required")

	default:
		return nil, calendar.NewValidationError("operation", fmt.Sprintf(
			"unknown operation %q, valid operations are: %s", name,
			strings.Join([]string{OpListCalendars, OpListEvents, OpSearchEvents, OpListColors}, ", ")))
	}
}

func isEmptyArg(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}
