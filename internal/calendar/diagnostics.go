package calendar

import (
	"encoding/json"
	"fmt"
)

// CalendarFailure records why a single calendar could not be fetched.
type CalendarFailure struct {
	CalendarID string `json:"calendarId"`
	Message    string `json:"error"`
	StatusCode int    `json:"statusCode,omitempty"`
}

// Diagnostics carries non-fatal problems next to a successful result:
// per-calendar fetch failures and notes about degraded enhancements.
type Diagnostics struct {
	Failures []CalendarFailure `json:"failures,omitempty"`
	Notes    []string          `json:"notes,omitempty"`
}

// AddFailure records a per-calendar failure.
func (d *Diagnostics) AddFailure(calendarID, message string, statusCode int) {
	d.Failures = append(d.Failures, CalendarFailure{
		CalendarID: calendarID,
		Message:    message,
		StatusCode: statusCode,
	})
}

// AddNote records a degradation that did not affect correctness of the
// returned data.
func (d *Diagnostics) AddNote(format string, args ...any) {
	d.Notes = append(d.Notes, fmt.Sprintf(format, args...))
}

// Merge appends all entries of other.
func (d *Diagnostics) Merge(other Diagnostics) {
	d.Failures = append(d.Failures, other.Failures...)
	d.Notes = append(d.Notes, other.Notes...)
}

// Empty reports whether there is nothing to report.
func (d Diagnostics) Empty() bool {
	return len(d.Failures) == 0 && len(d.Notes) == 0
}

// Partial reports whether some, but not all, of total calendars failed.
func (d Diagnostics) Partial(total int) bool {
	return len(d.Failures) > 0 && len(d.Failures) < total
}

// Total reports whether every one of total calendars failed.
func (d Diagnostics) Total(total int) bool {
	return total > 0 && len(d.Failures) >= total
}

// subResponseMessage extracts a human readable error from a failed
// sub-response body: body.error.message, else body.message, else
// "HTTP <status>".
func subResponseMessage(statusCode int, body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		if e, ok := payload["error"].(map[string]any); ok {
			if msg, ok := e["message"].(string); ok && msg != "" {
				return msg
			}
		}
		if msg, ok := payload["message"].(string); ok && msg != "" {
			return msg
		}
	}
	return fmt.Sprintf("HTTP %d", statusCode)
}
