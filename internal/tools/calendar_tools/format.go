package calendar_tools

import (
	"fmt"
	"strings"

	calendarapi "google.golang.org/api/calendar/v3"

	"github.com/teemow/calquery/internal/calendar"
)

// formatEvent renders one event as an indented block under its list number.
func formatEvent(b *strings.Builder, n int, ev *calendarapi.Event) {
	summary := ev.Summary
	if summary == "" {
		summary = "(no title)"
	}
	fmt.Fprintf(b, "%d. %s\n", n, summary)
	fmt.Fprintf(b, "   ID: %s\n", ev.Id)
	fmt.Fprintf(b, "   Start: %s\n", formatEventTime(ev.Start))
	fmt.Fprintf(b, "   End: %s\n", formatEventTime(ev.End))
	if ev.Location != "" {
		fmt.Fprintf(b, "   Location: %s\n", ev.Location)
	}
	if ev.Status != "" && ev.Status != "confirmed" {
		fmt.Fprintf(b, "   Status: %s\n", ev.Status)
	}
	if ev.HangoutLink != "" {
		fmt.Fprintf(b, "   Meet: %s\n", ev.HangoutLink)
	}
	if len(ev.Attendees) > 0 {
		fmt.Fprintf(b, "   Attendees: %d\n", len(ev.Attendees))
	}
	if ev.HtmlLink != "" {
		fmt.Fprintf(b, "   Link: %s\n", ev.HtmlLink)
	}
	b.WriteString("\n")
}

func formatEventTime(t *calendarapi.EventDateTime) string {
	switch {
	case t == nil:
		return "unknown"
	case t.DateTime != "":
		return t.DateTime
	case t.Date != "":
		return t.Date + " (all day)"
	default:
		return "unknown"
	}
}

// formatAggregation renders the list-events result. A single calendar is a
// flat numbered list; several calendars are grouped under a header each.
func formatAggregation(agg calendar.Aggregation, calendarCount int) string {
	var b strings.Builder

	if len(agg.Events) == 0 {
		fmt.Fprintf(&b, "No events found in %d calendar(s).\n", calendarCount)
		return b.String()
	}

	if agg.Grouped == nil {
		fmt.Fprintf(&b, "Found %d event(s):\n\n", len(agg.Events))
		for i, ev := range agg.Events {
			formatEvent(&b, i+1, ev.Event)
		}
		return b.String()
	}

	fmt.Fprintf(&b, "Found %d event(s) across %d calendars:\n\n", len(agg.Events), calendarCount)
	for _, id := range agg.GroupOrder {
		events := agg.Grouped[id]
		if len(events) == 0 {
			continue
		}
		fmt.Fprintf(&b, "Calendar: %s\n\n", id)
		for i, ev := range events {
			formatEvent(&b, i+1, ev.Event)
		}
	}
	return b.String()
}

func formatSearchResults(events []*calendarapi.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d event(s) matching your search:\n\n", len(events))
	for i, ev := range events {
		formatEvent(&b, i+1, ev)
	}
	return b.String()
}

// formatWarnings renders per-calendar failures and degradation notes. It
// returns "" when there is nothing to report.
func formatWarnings(d calendar.Diagnostics) string {
	if d.Empty() {
		return ""
	}

	var b strings.Builder
	b.WriteString("Warnings:\n")
	for _, f := range d.Failures {
		if f.StatusCode != 0 {
			fmt.Fprintf(&b, "- %s: %s (HTTP %d)\n", f.CalendarID, f.Message, f.StatusCode)
		} else {
			fmt.Fprintf(&b, "- %s: %s\n", f.CalendarID, f.Message)
		}
	}
	for _, n := range d.Notes {
		fmt.Fprintf(&b, "- %s\n", n)
	}
	return b.String()
}

func formatCalendars(cals []calendar.CalendarInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d calendar(s):\n\n", len(cals))
	for i, cal := range cals {
		fmt.Fprintf(&b, "%d. %s\n", i+1, cal.Summary)
		fmt.Fprintf(&b, "   ID: %s\n", cal.ID)
		if cal.AccessRole != "" {
			fmt.Fprintf(&b, "   Access Role: %s\n", cal.AccessRole)
		}
		if cal.Primary {
			b.WriteString("   [PRIMARY]\n")
		}
		if cal.Description != "" {
			fmt.Fprintf(&b, "   Description: %s\n", cal.Description)
		}
		if cal.TimeZone != "" {
			fmt.Fprintf(&b, "   Time Zone: %s\n", cal.TimeZone)
		}
		if cal.BackgroundColor != "" {
			fmt.Fprintf(&b, "   Color: %s\n", cal.BackgroundColor)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatColors(colors []calendar.ColorInfo) string {
	var b strings.Builder
	b.WriteString("Available event colors:\n")
	for _, c := range colors {
		fmt.Fprintf(&b, "Color ID: %s - %s (background) / %s (foreground)\n", c.ID, c.Background, c.Foreground)
	}
	return b.String()
}

// joinSections joins non-empty sections with a blank line and trims the
// result.
func joinSections(sections ...string) string {
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}
