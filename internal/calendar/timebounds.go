package calendar

import (
	"context"
	"fmt"
	"regexp"
	"time"
)

var (
	offsetQualifiedPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d{1,9})?(Z|[+-]\d{2}:\d{2})$`)
	zoneNaivePattern       = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d{1,9})?$`)
)

const naiveLayout = "2006-01-02T15:04:05"

// ZoneLookup resolves the default IANA time zone of a calendar.
type ZoneLookup interface {
	CalendarTimeZone(ctx context.Context, calendarID string) (string, error)
}

// IsOffsetQualified reports whether raw carries its own zone designator.
func IsOffsetQualified(raw string) bool {
	return offsetQualifiedPattern.MatchString(raw)
}

// ValidateTimeZone checks that zone, when set, is a loadable IANA zone.
func ValidateTimeZone(field, zone string) error {
	if zone == "" {
		return nil
	}
	if _, err := time.LoadLocation(zone); err != nil {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%q is not a known IANA time zone", zone),
			Err:     ErrUnknownTimeZone,
		}
	}
	return nil
}

// ValidateBoundary checks that raw is an accepted time boundary.
func ValidateBoundary(field, raw string) error {
	if offsetQualifiedPattern.MatchString(raw) || zoneNaivePattern.MatchString(raw) {
		return nil
	}
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("%q must be an ISO 8601 date-time such as 2025-01-01T10:00:00 or 2025-01-01T10:00:00Z", raw),
		Err:     ErrInvalidTimeFormat,
	}
}

// NormalizeBoundary converts raw into an absolute RFC 3339 instant.
//
// An offset embedded in raw always wins and raw is returned unchanged.
// Otherwise the naive date-time is read in explicitZone, then fallbackZone,
// then UTC. An explicitZone that cannot be loaded is an ErrUnknownTimeZone;
// an unloadable fallbackZone is treated as UTC.
func NormalizeBoundary(raw, explicitZone, fallbackZone string) (string, error) {
	if offsetQualifiedPattern.MatchString(raw) {
		return raw, nil
	}
	if !zoneNaivePattern.MatchString(raw) {
		return "", fmt.Errorf("%q: %w", raw, ErrInvalidTimeFormat)
	}

	loc := time.UTC
	switch {
	case explicitZone != "":
		l, err := time.LoadLocation(explicitZone)
		if err != nil {
			return "", fmt.Errorf("%q: %w", explicitZone, ErrUnknownTimeZone)
		}
		loc = l
	case fallbackZone != "":
		if l, err := time.LoadLocation(fallbackZone); err == nil {
			loc = l
		}
	}

	t, err := time.ParseInLocation(naiveLayout, raw, loc)
	if err != nil {
		return "", fmt.Errorf("%q: %w", raw, ErrInvalidTimeFormat)
	}
	return t.Format(time.RFC3339Nano), nil
}

// ResolvedWindow is the outcome of ResolveWindow.
type ResolvedWindow struct {
	Window

	// Zone is the zone applied to zone-naive bounds. Empty when no bound
	// needed one.
	Zone string

	// LookupErr is set when the calendar's default zone could not be
	// fetched and UTC was used instead.
	LookupErr error
}

// ReportLookupFailure adds a note to d when the zone lookup for calendarID
// failed and UTC was used instead.
func (r ResolvedWindow) ReportLookupFailure(d *Diagnostics, calendarID string) {
	noteLookupFailure(d, calendarID, r.LookupErr)
}

// ResolveWindow normalizes the bounds of q. When both bounds are absent the
// result is empty and lookup is never called. The calendar's default zone
// is only fetched when a zone-naive bound exists and q carries no explicit
// zone. An explicit zone that is not a known IANA name is rejected even
// when no bound needs it.
func ResolveWindow(ctx context.Context, q CalendarQuery, lookup ZoneLookup) (ResolvedWindow, error) {
	var res ResolvedWindow
	if err := ValidateTimeZone("timeZone", q.TimeZone); err != nil {
		return res, err
	}
	if q.TimeMin == "" && q.TimeMax == "" {
		return res, nil
	}

	needsZone := false
	for _, b := range []struct{ field, raw string }{{"timeMin", q.TimeMin}, {"timeMax", q.TimeMax}} {
		if b.raw == "" {
			continue
		}
		if err := ValidateBoundary(b.field, b.raw); err != nil {
			return res, err
		}
		if !IsOffsetQualified(b.raw) {
			needsZone = true
		}
	}

	var fallback string
	if needsZone {
		res.Zone = q.TimeZone
		if res.Zone == "" && lookup != nil {
			zone, err := lookup.CalendarTimeZone(ctx, q.CalendarID)
			if err != nil {
				res.LookupErr = err
			} else {
				fallback = zone
				res.Zone = zone
			}
		}
		if res.Zone == "" {
			res.Zone = "UTC"
		}
	}

	var err error
	if q.TimeMin != "" {
		if res.TimeMin, err = NormalizeBoundary(q.TimeMin, q.TimeZone, fallback); err != nil {
			return res, &ValidationError{Field: "timeMin", Message: err.Error(), Err: err}
		}
	}
	if q.TimeMax != "" {
		if res.TimeMax, err = NormalizeBoundary(q.TimeMax, q.TimeZone, fallback); err != nil {
			return res, &ValidationError{Field: "timeMax", Message: err.Error(), Err: err}
		}
	}
	return res, nil
}
