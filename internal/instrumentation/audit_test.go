package instrumentation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
)

const (
	testTraceID      = "abc123def456"
	testSpanID       = "span789"
	testToolManage   = "calendar-manage"
	testToolAvailYes = "calendar-availability"
)

var testCalendars = []string{"jane@example.com", "room-1@resource.example.com", "bob@example.com"}

func attrsToMap(attrs []slog.Attr) map[string]slog.Value {
	m := make(map[string]slog.Value, len(attrs))
	for _, a := range attrs {
		m[a.Key] = a.Value
	}
	return m
}

func TestToolInvocation_NewAndComplete(t *testing.T) {
	ti := NewToolInvocation(testToolManage)

	if ti.Tool != testToolManage {
		t.Errorf("Tool = %q, want %q", ti.Tool, testToolManage)
	}
	if ti.StartTime.IsZero() {
		t.Error("StartTime should not be zero")
	}

	ti.CompleteSuccess()

	if !ti.Success {
		t.Error("Success should be true")
	}
	if ti.Duration < 0 {
		t.Error("Duration should not be negative")
	}
	if ti.Error != "" {
		t.Errorf("Error should be empty, got %q", ti.Error)
	}
}

func TestToolInvocation_CompleteWithError(t *testing.T) {
	ti := NewToolInvocation(testToolAvailYes)
	ti.CompleteWithError(errors.New("permission denied"))

	if ti.Success {
		t.Error("Success should be false")
	}
	if ti.Error != "permission denied" {
		t.Errorf("Error = %q, want %q", ti.Error, "permission denied")
	}
	if ti.Status() != StatusError {
		t.Errorf("Status() = %q, want %q", ti.Status(), StatusError)
	}
}

func TestToolInvocation_CalendarDomains(t *testing.T) {
	ti := NewToolInvocation(testToolManage).WithCalendars(append(testCalendars, "primary"))

	got := ti.CalendarDomains()
	want := []string{"example.com", "resource.example.com", "unknown"}
	if len(got) != len(want) {
		t.Fatalf("CalendarDomains() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("CalendarDomains()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestToolInvocation_LogAttrs(t *testing.T) {
	ti := NewToolInvocation(testToolManage).
		WithCalendars(testCalendars).
		WithService(ServiceCalendar, OperationBatch).
		WithFailedCalendars(1)
	ti.TraceID = testTraceID
	ti.CompleteSuccess()

	m := attrsToMap(ti.LogAttrs())

	if m["tool"].String() != testToolManage {
		t.Errorf("tool = %q", m["tool"].String())
	}
	if m["calendar_count"].Int64() != 3 {
		t.Errorf("calendar_count = %d, want 3", m["calendar_count"].Int64())
	}
	if _, ok := m["calendars"]; ok {
		t.Error("LogAttrs must not include full calendar IDs")
	}
	if m["operation"].String() != OperationBatch {
		t.Errorf("operation = %q", m["operation"].String())
	}
	if m["failed_calendars"].Int64() != 1 {
		t.Errorf("failed_calendars = %d, want 1", m["failed_calendars"].Int64())
	}
	if m["trace_id"].String() != testTraceID {
		t.Errorf("trace_id = %q", m["trace_id"].String())
	}
}

func TestToolInvocation_LogAttrs_MinimalFields(t *testing.T) {
	ti := NewToolInvocation("calendar-connect")
	ti.CompleteSuccess()

	m := attrsToMap(ti.LogAttrs())
	for _, key := range []string{"calendar_domains", "service", "operation", "failed_calendars", "trace_id", "error"} {
		if _, ok := m[key]; ok {
			t.Errorf("unexpected attribute %q for minimal invocation", key)
		}
	}
}

func TestToolInvocation_LogAuditAttrs(t *testing.T) {
	ti := NewToolInvocation(testToolAvailYes).WithCalendars(testCalendars)
	ti.TraceID = testTraceID
	ti.SpanID = testSpanID
	ti.CompleteWithError(errors.New("boom"))

	m := attrsToMap(ti.LogAuditAttrs())

	if _, ok := m["calendars"]; !ok {
		t.Error("LogAuditAttrs must include calendar IDs")
	}
	if m["span_id"].String() != testSpanID {
		t.Errorf("span_id = %q", m["span_id"].String())
	}
	if m["error"].String() != "boom" {
		t.Errorf("error = %q", m["error"].String())
	}
}

func TestToolInvocation_WithSpanContext_NoSpan(t *testing.T) {
	ti := NewToolInvocation(testToolManage).WithSpanContext(context.Background())

	if ti.TraceID != "" || ti.SpanID != "" {
		t.Errorf("expected empty trace context, got %q/%q", ti.TraceID, ti.SpanID)
	}
}

func TestAuditLogger_LogToolInvocation(t *testing.T) {
	tests := []struct {
		name       string
		includePII bool
		success    bool
		wantMsg    string
		wantLevel  string
		wantIDs    bool
	}{
		{name: "success anonymized", success: true, wantMsg: "tool_executed", wantLevel: "INFO"},
		{name: "failure anonymized", success: false, wantMsg: "tool_failed", wantLevel: "WARN"},
		{name: "success with PII", includePII: true, success: true, wantMsg: "tool_executed", wantLevel: "INFO", wantIDs: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))
			al := NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true, IncludePII: tt.includePII})

			ti := NewToolInvocation(testToolManage).WithCalendars(testCalendars)
			ti.Complete(tt.success, nil)
			al.LogToolInvocation(ti)

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("invalid log output %q: %v", buf.String(), err)
			}
			if entry["msg"] != tt.wantMsg {
				t.Errorf("msg = %v, want %s", entry["msg"], tt.wantMsg)
			}
			if entry["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %s", entry["level"], tt.wantLevel)
			}
			if _, ok := entry["calendars"]; ok != tt.wantIDs {
				t.Errorf("calendars present = %v, want %v", ok, tt.wantIDs)
			}
		})
	}
}

func TestAuditLogger_Disabled(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	al.SetEnabled(false)

	al.LogToolInvocation(NewToolInvocation(testToolManage).CompleteSuccess())

	if buf.Len() != 0 {
		t.Errorf("expected no output when disabled, got %q", buf.String())
	}
}

func TestAuditLogger_Nil(t *testing.T) {
	var al *AuditLogger
	al.LogToolInvocation(NewToolInvocation(testToolManage).CompleteSuccess())
}
