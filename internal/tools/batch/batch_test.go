package batch

import (
	"encoding/json"
	"testing"

	calendarapi "google.golang.org/api/calendar/v3"

	"github.com/teemow/calquery/internal/calendar"
)

func TestParseStringOrArray(t *testing.T) {
	tests := []struct {
		name      string
		input     any
		paramName string
		want      []string
		wantErr   bool
	}{
		{
			name:      "single string",
			input:     "test123",
			paramName: "testParam",
			want:      []string{"test123"},
			wantErr:   false,
		},
		{
			name:      "array of strings",
			input:     []any{"id1", "id2", "id3"},
			paramName: "testParam",
			want:      []string{"id1", "id2", "id3"},
			wantErr:   false,
		},
		{
			name:      "nil input",
			input:     nil,
			paramName: "testParam",
			want:      nil,
			wantErr:   true,
		},
		{
			name:      "empty string",
			input:     "",
			paramName: "testParam",
			want:      nil,
			wantErr:   true,
		},
		{
			name:      "empty array",
			input:     []any{},
			paramName: "testParam",
			want:      nil,
			wantErr:   true,
		},
		{
			name:      "array with non-string",
			input:     []any{"id1", 123, "id3"},
			paramName: "testParam",
			want:      nil,
			wantErr:   true,
		},
		{
			name:      "array with empty string",
			input:     []any{"id1", "", "id3"},
			paramName: "testParam",
			want:      nil,
			wantErr:   true,
		},
		{
			name:      "invalid type",
			input:     123,
			paramName: "testParam",
			want:      nil,
			wantErr:   true,
		},
		{
			name:      "string slice",
			input:     []string{"a@example.com", "b@example.com"},
			paramName: "testParam",
			want:      []string{"a@example.com", "b@example.com"},
			wantErr:   false,
		},
		{
			name:      "JSON string array with number",
			input:     `["a@example.com", 1]`,
			paramName: "testParam",
			want:      nil,
			wantErr:   true,
		},
		{
			name:      "JSON string array",
			input:     `["id1", "id2", "id3"]`,
			paramName: "testParam",
			want:      []string{"id1", "id2", "id3"},
			wantErr:   false,
		},
		{
			name:      "JSON string array with calendar IDs",
			input:     `["jane@example.com", "team@group.calendar.google.com"]`,
			paramName: "testParam",
			want:      []string{"jane@example.com", "team@group.calendar.google.com"},
			wantErr:   false,
		},
		{
			name:      "JSON string single element array",
			input:     `["primary"]`,
			paramName: "testParam",
			want:      []string{"primary"},
			wantErr:   false,
		},
		{
			name:      "JSON string empty array",
			input:     `[]`,
			paramName: "testParam",
			want:      nil,
			wantErr:   true,
		},
		{
			name:      "invalid JSON string",
			input:     `[invalid json`,
			paramName: "testParam",
			want:      []string{`[invalid json`},
			wantErr:   false,
		},
		{
			name:      "string starting with bracket (not JSON)",
			input:     `[team] calendar`,
			paramName: "testParam",
			want:      []string{`[team] calendar`},
			wantErr:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStringOrArray(tt.input, tt.paramName)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseStringOrArray() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && !stringSliceEqual(got, tt.want) {
				t.Errorf("ParseStringOrArray() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewReport(t *testing.T) {
	result := &calendar.FetchResult{
		Order: []string{"a@example.com", "b@example.com", "c@example.com"},
		Events: map[string][]*calendarapi.Event{
			"a@example.com": {{Id: "e1"}, {Id: "e2"}},
			"c@example.com": {},
		},
	}
	result.Diagnostics.AddFailure("b@example.com", "Not Found", 404)
	result.Diagnostics.AddNote("time zone lookup for c@example.com failed, using UTC")

	r := NewReport(result)

	if r.Total != 3 {
		t.Errorf("Total = %d, want 3", r.Total)
	}
	if r.Successful != 2 {
		t.Errorf("Successful = %d, want 2", r.Successful)
	}
	if r.Failed != 1 {
		t.Errorf("Failed = %d, want 1", r.Failed)
	}
	if r.Results[0].EventCount != 2 {
		t.Errorf("Results[0].EventCount = %d, want 2", r.Results[0].EventCount)
	}
	if r.Results[1].Status != StatusError || r.Results[1].Error != "Not Found" || r.Results[1].StatusCode != 404 {
		t.Errorf("Results[1] = %+v, want failed with Not Found (404)", r.Results[1])
	}
	if len(r.Notes) != 1 {
		t.Errorf("len(Notes) = %d, want 1", len(r.Notes))
	}
}

func TestFormatResults(t *testing.T) {
	result := &calendar.FetchResult{
		Order:  []string{"a@example.com", "b@example.com"},
		Events: map[string][]*calendarapi.Event{"a@example.com": {{Id: "e1"}}},
	}
	result.Diagnostics.AddFailure("b@example.com", "HTTP 500", 500)

	output := FormatResults(NewReport(result))

	var r Report
	if err := json.Unmarshal([]byte(output), &r); err != nil {
		t.Fatalf("Failed to parse output JSON: %v", err)
	}
	if r.Total != 2 || r.Successful != 1 || r.Failed != 1 {
		t.Errorf("counts = %d/%d/%d, want 2/1/1", r.Total, r.Successful, r.Failed)
	}
	if len(r.Results) != 2 {
		t.Errorf("len(Results) = %d, want 2", len(r.Results))
	}
}

func TestFormatResults_Empty(t *testing.T) {
	output := FormatResults(NewReport(nil))

	var raw map[string]any
	if err := json.Unmarshal([]byte(output), &raw); err != nil {
		t.Fatalf("Failed to parse output JSON: %v", err)
	}
	if results, ok := raw["results"].([]any); !ok || len(results) != 0 {
		t.Errorf("results = %v, want empty array", raw["results"])
	}
}

func stringSliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
