package calendar_tools

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calquery/internal/calendar"
)

func TestParseOperation(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))

	tests := []struct {
		name string
		args map[string]any
		want Operation
	}{
		{
			name: "list calendars",
			args: map[string]any{"operation": "list-calendars"},
			want: ListCalendarsOp{},
		},
		{
			name: "list colors",
			args: map[string]any{"operation": " list-colors "},
			want: ListColorsOp{},
		},
		{
			name: "list events defaults to primary",
			args: map[string]any{"operation": "list-events", "timeMin": "2025-01-01T09:00:00"},
			want: ListEventsOp{CalendarIDs: []string{"primary"}, TimeMin: "2025-01-01T09:00:00"},
		},
		{
			name: "list events blank calendar defaults to primary",
			args: map[string]any{"operation": "list-events", "calendarId": "  "},
			want: ListEventsOp{CalendarIDs: []string{"primary"}},
		},
		{
			name: "list events with array",
			args: map[string]any{
				"operation":     "list-events",
				"calendarId":    []any{"a@example.com", "b@example.com"},
				"timeZone":      "Europe/Berlin",
				"includeReport": true,
			},
			want: ListEventsOp{
				CalendarIDs:   []string{"a@example.com", "b@example.com"},
				TimeZone:      "Europe/Berlin",
				IncludeReport: true,
			},
		},
		{
			name: "list events with JSON array string",
			args: map[string]any{"operation": "list-events", "calendarId": `["a@example.com","b@example.com"]`},
			want: ListEventsOp{CalendarIDs: []string{"a@example.com", "b@example.com"}},
		},
		{
			name: "search defaults window to one year ahead",
			args: map[string]any{"operation": "search-events", "query": "standup"},
			want: SearchEventsOp{
				CalendarID: "primary",
				Query:      "standup",
				TimeMin:    "2025-03-01T11:00:00Z",
				TimeMax:    "2026-03-01T11:00:00Z",
			},
		},
		{
			name: "search keeps explicit window",
			args: map[string]any{
				"operation":  "search-events",
				"calendarId": "team@example.com",
				"query":      "retro",
				"timeMin":    "2025-01-01T00:00:00Z",
				"timeMax":    "2025-02-01T00:00:00Z",
			},
			want: SearchEventsOp{
				CalendarID: "team@example.com",
				Query:      "retro",
				TimeMin:    "2025-01-01T00:00:00Z",
				TimeMax:    "2025-02-01T00:00:00Z",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseOperation(tt.args, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Name(), got.Name())
		})
	}
}

func TestParseOperation_Errors(t *testing.T) {
	tests := []struct {
		name      string
		args      map[string]any
		wantField string
	}{
		{name: "missing operation", args: map[string]any{}, wantField: "operation"},
		{name: "unknown operation", args: map[string]any{"operation": "delete-event"}, wantField: "operation"},
		{name: "search without query", args: map[string]any{"operation": "search-events"}, wantField: "query"},
		{name: "bad calendar list", args: map[string]any{"operation": "list-events", "calendarId": 42}, wantField: "calendarId"},
		{name: "empty calendar array", args: map[string]any{"operation": "list-events", "calendarId": []any{}}, wantField: "calendarId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseOperation(tt.args, time.Now())
			require.Error(t, err)

			var verr *calendar.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}
