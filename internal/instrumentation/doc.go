// Package instrumentation provides OpenTelemetry instrumentation for the
// calquery MCP server.
//
// # Metrics
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//   - active_sessions: Gauge of active MCP sessions
//
// Google API Metrics:
//   - google_api_operations_total: Counter of Google API operations by service, operation, status
//   - google_api_operation_duration_seconds: Histogram of Google API operation durations
//
// Calendar Metrics:
//   - calendar_batch_subrequests_total: Counter of batched sub-requests by result
//     (success, error, missing)
//   - calendar_free_slots_suggested: Histogram of free slots returned per availability query
//
// MCP Tool Metrics:
//   - mcp_tool_invocations_total: Counter of MCP tool invocations by tool name and status
//   - mcp_tool_duration_seconds: Histogram of MCP tool execution durations
//
// # Tracing
//
// Spans are created for MCP tool invocations (tool.<name>) and Google API
// calls (google.<service>.<operation>), including one span per batch call.
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, otlp, stdout, default: prometheus)
//   - TRACING_EXPORTER: Tracing exporter type (otlp, stdout, none, default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: calquery)
//   - METRICS_DETAILED_LABELS: Add the calendar domain to tool metrics (default: false)
//   - METRICS_FREE_SLOT_BUCKETS: Comma separated calendar_free_slots_suggested boundaries
//   - METRICS_LATENCY_BUCKETS: Comma separated duration boundaries in seconds
//   - AUDIT_LOGGING_ENABLED, AUDIT_LOGGING_INCLUDE_PII: Audit log switches
//
// LoadConfig reports malformed values instead of falling back to defaults.
//
// # Example Usage
//
//	cfg, err := instrumentation.LoadConfig(os.Getenv)
//	if err != nil {
//		return err
//	}
//	provider, err := instrumentation.NewProvider(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	recorder := provider.Metrics()
//	recorder.RecordGoogleAPIOperation(ctx, instrumentation.ServiceCalendar,
//		instrumentation.OperationFreeBusy, instrumentation.StatusSuccess, time.Since(start))
//	recorder.RecordToolInvocation(ctx, "calendar-availability", "success", time.Since(start))
package instrumentation
