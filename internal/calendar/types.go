package calendar

import (
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

// BusyInterval is a period during which a calendar reports itself occupied.
type BusyInterval struct {
	Start time.Time
	End   time.Time
}

// RawPeriod is a busy period as returned by the free/busy endpoint.
type RawPeriod struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// FreeSlot is a gap between busy intervals that meets the minimum duration.
type FreeSlot struct {
	Start           string `json:"start"`
	End             string `json:"end"`
	DurationMinutes int    `json:"durationMinutes"`
}

// CalendarQuery describes what to fetch for a single calendar.
type CalendarQuery struct {
	CalendarID string
	TimeMin    string
	TimeMax    string
	TimeZone   string
}

// Window is a pair of normalized time bounds. Empty strings mean the bound
// is absent.
type Window struct {
	TimeMin string
	TimeMax string
}

// IsZero reports whether neither bound is set.
func (w Window) IsZero() bool {
	return w.TimeMin == "" && w.TimeMax == ""
}

// SubRequest is one GET carried inside a batched call.
type SubRequest struct {
	ID     string
	Method string
	Path   string
}

// SubResponse is the answer to a SubRequest with the same ID.
type SubResponse struct {
	ID         string
	StatusCode int
	Body       []byte
}

// AggregatedEvent is an upstream event tagged with the calendar it came from.
type AggregatedEvent struct {
	CalendarID string          `json:"calendarId"`
	Event      *calendar.Event `json:"event"`
}

// EffectiveStart returns the timed start, else the all-day date, else "".
func (e AggregatedEvent) EffectiveStart() string {
	return effectiveStart(e.Event)
}

func effectiveStart(ev *calendar.Event) string {
	if ev == nil || ev.Start == nil {
		return ""
	}
	if ev.Start.DateTime != "" {
		return ev.Start.DateTime
	}
	return ev.Start.Date
}

// CalendarInfo is a summarized calendar list entry.
type CalendarInfo struct {
	ID              string `json:"id"`
	Summary         string `json:"summary"`
	Description     string `json:"description,omitempty"`
	TimeZone        string `json:"timeZone,omitempty"`
	AccessRole      string `json:"accessRole,omitempty"`
	Primary         bool   `json:"primary,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
}

// ColorInfo is one entry of the event color palette.
type ColorInfo struct {
	ID         string
	Background string
	Foreground string
}

// ConnectionStatus describes whether the supplied credentials can reach
// the Calendar API.
type ConnectionStatus struct {
	Connected         bool     `json:"connected"`
	TokenValid        bool     `json:"tokenValid"`
	Scopes            []string `json:"scopes,omitempty"`
	Email             string   `json:"email,omitempty"`
	ExpiresInSeconds  int64    `json:"expiresInSeconds,omitempty"`
	HasCalendarAccess bool     `json:"hasCalendarAccess"`
	Message           string   `json:"message,omitempty"`
	Error             string   `json:"error,omitempty"`
	ErrorCode         string   `json:"errorCode,omitempty"`
	Suggestion        string   `json:"suggestion,omitempty"`
}

func toCalendarInfo(item *calendar.CalendarListEntry) CalendarInfo {
	if item == nil {
		return CalendarInfo{}
	}
	return CalendarInfo{
		ID:              item.Id,
		Summary:         item.Summary,
		Description:     item.Description,
		TimeZone:        item.TimeZone,
		AccessRole:      item.AccessRole,
		Primary:         item.Primary,
		BackgroundColor: item.BackgroundColor,
	}
}
