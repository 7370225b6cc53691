package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// ToolInvocation captures all information about a tool invocation for audit logging.
//
// # Privacy Considerations
//
// Calendar IDs are usually email addresses. LogAttrs only reports how many
// calendars were touched and their domains; LogAuditAttrs includes the IDs.
type ToolInvocation struct {
	Tool string

	// Target information
	ServiceName string   // Google service (calendar, oauth2)
	Operation   string   // Operation type (list, search, freebusy, ...)
	CalendarIDs []string // Calendars the call covered

	// FailedCalendars counts calendars reported as failed while the call
	// itself still succeeded.
	FailedCalendars int

	// Execution details
	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	// Tracing context
	TraceID string
	SpanID  string
}

// CalendarDomains returns the distinct domains of the covered calendars in
// first-seen order.
func (ti *ToolInvocation) CalendarDomains() []string {
	seen := make(map[string]bool, len(ti.CalendarIDs))
	var domains []string
	for _, id := range ti.CalendarIDs {
		d := ExtractUserDomain(id)
		if !seen[d] {
			seen[d] = true
			domains = append(domains, d)
		}
	}
	return domains
}

// Status returns "success" or "error" based on the Success field.
func (ti *ToolInvocation) Status() string {
	if ti.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns cardinality-controlled slog attributes.
func (ti *ToolInvocation) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("tool", ti.Tool),
		slog.Int("calendar_count", len(ti.CalendarIDs)),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
	}
	if len(ti.CalendarIDs) > 0 {
		attrs = append(attrs, slog.Any("calendar_domains", ti.CalendarDomains()))
	}
	return append(attrs, ti.commonAttrs()...)
}

// LogAuditAttrs returns slog attributes including the full calendar IDs.
//
// # Security Warning
//
// Calendar IDs identify people. Ensure audit logs are stored with
// appropriate access controls.
func (ti *ToolInvocation) LogAuditAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("tool", ti.Tool),
		slog.Any("calendars", ti.CalendarIDs),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
	}
	attrs = append(attrs, ti.commonAttrs()...)
	if ti.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", ti.SpanID))
	}
	return attrs
}

func (ti *ToolInvocation) commonAttrs() []slog.Attr {
	var attrs []slog.Attr
	if ti.ServiceName != "" {
		attrs = append(attrs, slog.String("service", ti.ServiceName))
	}
	if ti.Operation != "" {
		attrs = append(attrs, slog.String("operation", ti.Operation))
	}
	if ti.FailedCalendars > 0 {
		attrs = append(attrs, slog.Int("failed_calendars", ti.FailedCalendars))
	}
	if ti.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ti.TraceID))
	}
	if ti.Error != "" {
		attrs = append(attrs, slog.String("error", ti.Error))
	}
	return attrs
}

// NewToolInvocation creates a new ToolInvocation with timing started.
// Call Complete() when the tool operation finishes.
func NewToolInvocation(tool string) *ToolInvocation {
	return &ToolInvocation{
		Tool:      tool,
		StartTime: time.Now(),
	}
}

// WithCalendars sets the calendars covered by the invocation.
func (ti *ToolInvocation) WithCalendars(ids []string) *ToolInvocation {
	ti.CalendarIDs = ids
	return ti
}

// WithFailedCalendars sets the number of calendars that failed without
// failing the invocation.
func (ti *ToolInvocation) WithFailedCalendars(n int) *ToolInvocation {
	ti.FailedCalendars = n
	return ti
}

// WithService sets the Google service and operation.
func (ti *ToolInvocation) WithService(serviceName, operation string) *ToolInvocation {
	ti.ServiceName = serviceName
	ti.Operation = operation
	return ti
}

// WithSpanContext extracts trace context from the current span.
func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		ti.TraceID = span.SpanContext().TraceID().String()
		ti.SpanID = span.SpanContext().SpanID().String()
	}
	return ti
}

// Complete marks the invocation as completed and calculates duration.
func (ti *ToolInvocation) Complete(success bool, err error) *ToolInvocation {
	ti.Duration = time.Since(ti.StartTime)
	ti.Success = success
	if err != nil {
		ti.Error = err.Error()
	}
	return ti
}

// CompleteWithError marks the invocation as failed with the given error.
func (ti *ToolInvocation) CompleteWithError(err error) *ToolInvocation {
	return ti.Complete(false, err)
}

// CompleteSuccess marks the invocation as successful.
func (ti *ToolInvocation) CompleteSuccess() *ToolInvocation {
	return ti.Complete(true, nil)
}

// AuditLogger provides structured audit logging for tool invocations.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates a new AuditLogger with the given slog.Logger.
// By default calendar IDs are not logged, only their domains.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true})
}

// NewAuditLoggerWithConfig creates a new AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// SetEnabled sets whether audit logging is enabled.
func (al *AuditLogger) SetEnabled(enabled bool) {
	al.enabled = enabled
}

// LogToolInvocation logs a tool invocation. Failed invocations are logged
// at warn level.
func (al *AuditLogger) LogToolInvocation(ti *ToolInvocation) {
	if al == nil || !al.enabled {
		return
	}

	var attrs []slog.Attr
	if al.includePII {
		attrs = ti.LogAuditAttrs()
	} else {
		attrs = ti.LogAttrs()
	}

	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if ti.Success {
		al.logger.Info("tool_executed", args...)
	} else {
		al.logger.Warn("tool_failed", args...)
	}
}
