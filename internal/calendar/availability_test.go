package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

type fakeFreeBusy struct {
	fakeZones
	busy    map[string][]RawPeriod
	err     error
	gotW    Window
	gotZone string
	gotCals []string
}

func (f *fakeFreeBusy) QueryFreeBusy(_ context.Context, ids []string, w Window, tz string) (*FreeBusy, error) {
	f.gotW, f.gotZone, f.gotCals = w, tz, ids
	if f.err != nil {
		return nil, f.err
	}
	fb := &FreeBusy{Calendars: map[string][]RawPeriod{}, Order: ids, Window: w}
	for _, id := range ids {
		periods, ok := f.busy[id]
		if !ok {
			fb.Diagnostics.AddFailure(id, "notFound", 0)
			continue
		}
		fb.Calendars[id] = periods
	}
	return fb, nil
}

func TestComposeAvailability_WithSuggestions(t *testing.T) {
	fb := &FreeBusy{
		Calendars: map[string][]RawPeriod{
			"a": {{Start: "2025-01-01T10:00:00Z", End: "2025-01-01T10:30:00Z"}},
			"b": {{Start: "2025-01-01T10:15:00Z", End: "2025-01-01T11:00:00Z"}},
		},
		Order:  []string{"a", "b"},
		Window: Window{TimeMin: "2025-01-01T09:00:00Z", TimeMax: "2025-01-01T12:00:00Z"},
	}

	got, diags := ComposeAvailability(fb, AvailabilityOptions{SuggestFreeSlots: true, MinSlotDuration: 30})

	assert.True(t, diags.Empty())
	assert.Equal(t, []FreeSlot{
		{Start: "2025-01-01T09:00:00.000Z", End: "2025-01-01T10:00:00.000Z", DurationMinutes: 60},
		{Start: "2025-01-01T11:00:00.000Z", End: "2025-01-01T12:00:00.000Z", DurationMinutes: 60},
	}, got.SuggestedFreeSlots)
	assert.Equal(t, &SearchCriteria{MinSlotDuration: 30, TimeZone: "UTC"}, got.SearchCriteria)
	assert.Len(t, got.Calendars["a"].Busy, 1)
	assert.Len(t, got.Calendars["b"].Busy, 1)
}

func TestComposeAvailability_WithoutSuggestions(t *testing.T) {
	fb := &FreeBusy{
		Calendars: map[string][]RawPeriod{"a": {{Start: "2025-01-01T10:00:00Z", End: "2025-01-01T10:30:00Z"}}},
		Order:     []string{"a"},
	}

	got, diags := ComposeAvailability(fb, AvailabilityOptions{})
	assert.True(t, diags.Empty())

	out, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"calendars":{"a":{"busy":[{"start":"2025-01-01T10:00:00Z","end":"2025-01-01T10:30:00Z"}]}}}`, string(out))
}

func TestComposeAvailability_EmptySuggestionsAreRendered(t *testing.T) {
	fb := &FreeBusy{
		Calendars: map[string][]RawPeriod{"a": {{Start: "2025-01-01T08:00:00Z", End: "2025-01-01T13:00:00Z"}}},
		Window:    Window{TimeMin: "2025-01-01T09:00:00Z", TimeMax: "2025-01-01T12:00:00Z"},
	}

	got, _ := ComposeAvailability(fb, AvailabilityOptions{SuggestFreeSlots: true, MinSlotDuration: 15, TimeZone: "Europe/Berlin"})

	out, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"calendars":{"a":{"busy":[{"start":"2025-01-01T08:00:00Z","end":"2025-01-01T13:00:00Z"}]}},
		"suggestedFreeSlots":[],
		"searchCriteria":{"minSlotDuration":15,"timeZone":"Europe/Berlin"}
	}`, string(out))
}

func TestComposeAvailability_EnhancementFailureFallsBack(t *testing.T) {
	tests := []struct {
		name string
		fb   *FreeBusy
	}{
		{
			name: "malformed busy period",
			fb: &FreeBusy{
				Calendars: map[string][]RawPeriod{"a": {{Start: "garbage", End: "2025-01-01T10:30:00Z"}}},
				Window:    Window{TimeMin: "2025-01-01T09:00:00Z", TimeMax: "2025-01-01T12:00:00Z"},
			},
		},
		{
			name: "missing window",
			fb:   &FreeBusy{Calendars: map[string][]RawPeriod{"a": {}}},
		},
		{
			name: "inverted window",
			fb: &FreeBusy{
				Calendars: map[string][]RawPeriod{"a": {}},
				Window:    Window{TimeMin: "2025-01-01T12:00:00Z", TimeMax: "2025-01-01T09:00:00Z"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, diags := ComposeAvailability(tt.fb, AvailabilityOptions{SuggestFreeSlots: true})

			assert.Nil(t, got.SuggestedFreeSlots)
			assert.Nil(t, got.SearchCriteria)
			assert.Contains(t, got.Calendars, "a")
			require.Len(t, diags.Notes, 1)
			assert.Contains(t, diags.Notes[0], "free slot suggestion failed")
		})
	}
}

func TestComposeAvailability_CarriesFailures(t *testing.T) {
	fb := &FreeBusy{Calendars: map[string][]RawPeriod{"a": {}}}
	fb.Diagnostics.AddFailure("b", "notFound", 0)

	got, diags := ComposeAvailability(fb, AvailabilityOptions{})

	assert.NotNil(t, got.Calendars["a"].Busy)
	assert.NotContains(t, got.Calendars, "b")
	require.Len(t, diags.Failures, 1)
	assert.Equal(t, "b", diags.Failures[0].CalendarID)
}

func TestCheckAvailability(t *testing.T) {
	src := &fakeFreeBusy{
		fakeZones: fakeZones{zones: map[string]string{"a": "Europe/Berlin"}},
		busy: map[string][]RawPeriod{
			"a": {{Start: "2025-01-01T09:00:00Z", End: "2025-01-01T10:00:00Z"}},
		},
	}

	got, diags, err := CheckAvailability(context.Background(), src, AvailabilityRequest{
		CalendarIDs: []string{"a", "b"},
		TimeMin:     "2025-01-01T09:00:00",
		TimeMax:     "2025-01-01T12:00:00",
		Options:     AvailabilityOptions{SuggestFreeSlots: true},
	})
	require.NoError(t, err)

	assert.Equal(t, Window{TimeMin: "2025-01-01T09:00:00+01:00", TimeMax: "2025-01-01T12:00:00+01:00"}, src.gotW)
	assert.Equal(t, []string{"a"}, src.calls, "only the first calendar's zone is looked up")
	assert.Equal(t, []string{"a", "b"}, src.gotCals)

	require.Len(t, diags.Failures, 1)
	assert.Equal(t, "b", diags.Failures[0].CalendarID)

	// Window is 08:00Z..11:00Z, busy 09:00Z..10:00Z.
	assert.Equal(t, []FreeSlot{
		{Start: "2025-01-01T08:00:00.000Z", End: "2025-01-01T09:00:00.000Z", DurationMinutes: 60},
		{Start: "2025-01-01T10:00:00.000Z", End: "2025-01-01T11:00:00.000Z", DurationMinutes: 60},
	}, got.SuggestedFreeSlots)
	assert.Equal(t, DefaultMinSlotMinutes, got.SearchCriteria.MinSlotDuration)
	assert.Equal(t, "UTC", got.SearchCriteria.TimeZone)
}

func TestCheckAvailability_ExplicitZoneIsEchoed(t *testing.T) {
	src := &fakeFreeBusy{busy: map[string][]RawPeriod{"a": {}}}

	got, _, err := CheckAvailability(context.Background(), src, AvailabilityRequest{
		CalendarIDs: []string{"a"},
		TimeMin:     "2025-01-01T09:00:00",
		TimeMax:     "2025-01-01T12:00:00",
		TimeZone:    "America/New_York",
		Options:     AvailabilityOptions{SuggestFreeSlots: true, MinSlotDuration: 45},
	})
	require.NoError(t, err)

	assert.Empty(t, src.calls)
	assert.Equal(t, "America/New_York", src.gotZone)
	assert.Equal(t, &SearchCriteria{MinSlotDuration: 45, TimeZone: "America/New_York"}, got.SearchCriteria)
	require.Len(t, got.SuggestedFreeSlots, 1)
	assert.Equal(t, 180, got.SuggestedFreeSlots[0].DurationMinutes)
}

func TestCheckAvailability_Errors(t *testing.T) {
	tests := []struct {
		name      string
		src       *fakeFreeBusy
		req       AvailabilityRequest
		wantField string
		wantCode  int
	}{
		{
			name:      "no calendars",
			src:       &fakeFreeBusy{},
			req:       AvailabilityRequest{TimeMin: "2025-01-01T09:00:00Z", TimeMax: "2025-01-01T12:00:00Z"},
			wantField: "calendars",
		},
		{
			name:      "missing window",
			src:       &fakeFreeBusy{},
			req:       AvailabilityRequest{CalendarIDs: []string{"a"}, TimeMin: "2025-01-01T09:00:00Z"},
			wantField: "timeMin",
		},
		{
			name:      "bad bound",
			src:       &fakeFreeBusy{},
			req:       AvailabilityRequest{CalendarIDs: []string{"a"}, TimeMin: "2025-01-01T09:00:00Z", TimeMax: "noon"},
			wantField: "timeMax",
		},
		{
			name:      "unknown time zone",
			src:       &fakeFreeBusy{},
			req:       AvailabilityRequest{CalendarIDs: []string{"a"}, TimeMin: "2025-01-01T09:00:00Z", TimeMax: "2025-01-01T12:00:00Z", TimeZone: "Mars/Base"},
			wantField: "timeZone",
		},
		{
			name:     "upstream rejects query",
			src:      &fakeFreeBusy{err: newFetchError("", &googleapi.Error{Code: http.StatusUnauthorized, Message: "Invalid Credentials"})},
			req:      AvailabilityRequest{CalendarIDs: []string{"a"}, TimeMin: "2025-01-01T09:00:00Z", TimeMax: "2025-01-01T12:00:00Z"},
			wantCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := CheckAvailability(context.Background(), tt.src, tt.req)
			require.Error(t, err)

			if tt.wantField != "" {
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, tt.wantField, verr.Field)
				return
			}
			assert.Equal(t, tt.wantCode, StatusCode(err))
		})
	}
}
