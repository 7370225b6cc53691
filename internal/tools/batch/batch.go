package batch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/teemow/calquery/internal/calendar"
)

// Result statuses
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the outcome of fetching a single calendar.
type Result struct {
	CalendarID string `json:"calendarId"`
	Status     string `json:"status"`
	EventCount int    `json:"eventCount"`
	Error      string `json:"error,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
}

// Report aggregates the per-calendar results of one fetch.
type Report struct {
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Results    []Result `json:"results"`
	Notes      []string `json:"notes,omitempty"`
}

// ParseStringOrArray parses a parameter that can be a single string, an
// array of strings, or a string holding a JSON array of strings.
func ParseStringOrArray(param any, paramName string) ([]string, error) {
	if param == nil {
		return nil, fmt.Errorf("%s is required", paramName)
	}

	switch v := param.(type) {
	case string:
		if v == "" {
			return nil, fmt.Errorf("%s cannot be empty", paramName)
		}
		if strings.HasPrefix(strings.TrimSpace(v), "[") {
			var items []any
			if err := json.Unmarshal([]byte(v), &items); err == nil {
				return parseItems(items, paramName)
			}
		}
		return []string{v}, nil
	case []string:
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
		return parseItems(items, paramName)
	case []any:
		return parseItems(v, paramName)
	default:
		return nil, fmt.Errorf("%s must be a string or array of strings", paramName)
	}
}

func parseItems(items []any, paramName string) ([]string, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%s cannot be empty", paramName)
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		str, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%s[%d] must be a string", paramName, i)
		}
		if str == "" {
			return nil, fmt.Errorf("%s[%d] cannot be empty", paramName, i)
		}
		out = append(out, str)
	}
	return out, nil
}

// NewReport summarizes result per calendar in request order.
func NewReport(result *calendar.FetchResult) Report {
	var r Report
	if result == nil {
		return r
	}

	failures := make(map[string]calendar.CalendarFailure, len(result.Diagnostics.Failures))
	for _, f := range result.Diagnostics.Failures {
		failures[f.CalendarID] = f
	}

	for _, id := range result.Order {
		res := Result{CalendarID: id, Status: StatusSuccess, EventCount: len(result.Events[id])}
		if f, failed := failures[id]; failed {
			res.Status = StatusError
			res.Error = f.Message
			res.StatusCode = f.StatusCode
			res.EventCount = 0
		}
		r.add(res)
	}
	r.Notes = result.Diagnostics.Notes
	return r
}

func (r *Report) add(res Result) {
	r.Total++
	if res.Status == StatusSuccess {
		r.Successful++
	} else {
		r.Failed++
	}
	r.Results = append(r.Results, res)
}

// FormatResults renders the report as indented JSON.
func FormatResults(r Report) string {
	if r.Results == nil {
		r.Results = []Result{}
	}
	jsonBytes, _ := json.MarshalIndent(r, "", "  ")
	return string(jsonBytes)
}
