package calendar

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// ErrInvalidTimeFormat is returned for time bounds that are neither
// offset-qualified nor zone-naive ISO 8601 date-times.
var ErrInvalidTimeFormat = errors.New("invalid time format")

// ErrUnknownTimeZone is returned for a caller-supplied time zone that is
// not a known IANA name.
var ErrUnknownTimeZone = errors.New("unknown time zone")

// ValidationError reports missing or malformed caller input. It is raised
// before any call to the Calendar API.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// FetchError is returned when the Calendar API rejects a call outright.
// StatusCode carries the upstream HTTP status, or 0 when the call never
// produced a response.
type FetchError struct {
	CalendarID string
	StatusCode int
	Message    string
	Err        error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	b.WriteString("calendar fetch failed")
	if e.CalendarID != "" {
		fmt.Fprintf(&b, " for %s", e.CalendarID)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// newFetchError wraps an error returned by the Google API client.
func newFetchError(calendarID string, err error) *FetchError {
	fe := &FetchError{CalendarID: calendarID, Err: err, Message: err.Error()}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		fe.StatusCode = gerr.Code
		if gerr.Message != "" {
			fe.Message = gerr.Message
		} else {
			fe.Message = http.StatusText(gerr.Code)
		}
	}
	return fe
}

// StatusCode returns the upstream HTTP status carried by err, if any.
func StatusCode(err error) int {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}
