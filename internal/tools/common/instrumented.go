package common

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel/codes"

	"github.com/teemow/calquery/internal/instrumentation"
	"github.com/teemow/calquery/internal/server"
)

// ToolHandler is the signature of an MCP tool handler.
type ToolHandler func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

type invocationKey struct{}

// ReportCalendars records the calendars a tool call covered and how many of
// them failed without failing the call. It is a no-op outside an
// instrumented handler.
func ReportCalendars(ctx context.Context, calendarIDs []string, failed int) {
	ti, ok := ctx.Value(invocationKey{}).(*instrumentation.ToolInvocation)
	if !ok {
		return
	}
	ti.WithCalendars(calendarIDs).WithFailedCalendars(failed)
}

// InstrumentedToolHandler wraps a tool handler with tracing, metrics and
// audit logging.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my-tool", sc, handler))
func InstrumentedToolHandler(toolName string, sc *server.ServerContext, handler ToolHandler) ToolHandler {
	return instrumented(toolName, "", "", sc, handler)
}

// InstrumentedToolHandlerWithService is like InstrumentedToolHandler but also
// records the Google service and operation the tool maps to.
func InstrumentedToolHandlerWithService(toolName, serviceName, operation string, sc *server.ServerContext, handler ToolHandler) ToolHandler {
	return instrumented(toolName, serviceName, operation, sc, handler)
}

func instrumented(toolName, serviceName, operation string, sc *server.ServerContext, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		attrs := instrumentation.NewSpanAttributeBuilder()
		if serviceName != "" {
			attrs.WithService(serviceName).WithOperation(operation)
		}
		ctx, span := instrumentation.StartToolSpan(ctx, toolName, attrs.Build()...)
		defer span.End()

		start := time.Now()
		invocation := instrumentation.NewToolInvocation(toolName).WithSpanContext(ctx)
		if serviceName != "" {
			invocation.WithService(serviceName, operation)
		}
		ctx = context.WithValue(ctx, invocationKey{}, invocation)

		result, err := handler(ctx, request)
		duration := time.Since(start)

		status := instrumentation.StatusSuccess
		switch {
		case err != nil:
			status = instrumentation.StatusError
			invocation.CompleteWithError(err)
			instrumentation.SetSpanError(span, err)
		case result != nil && result.IsError:
			status = instrumentation.StatusError
			invocation.Complete(false, nil)
			span.SetStatus(codes.Error, "tool returned an error result")
		default:
			invocation.CompleteSuccess()
			instrumentation.SetSpanSuccess(span)
		}
		domain := singleDomain(invocation)
		span.SetAttributes(instrumentation.NewSpanAttributeBuilder().
			WithCalendarCount(len(invocation.CalendarIDs)).
			WithCalendarDomain(domain).Build()...)

		sc.Metrics().RecordToolInvocationWithDomain(ctx, toolName, status, domain, duration)

		if al := sc.AuditLogger(); al != nil {
			al.LogToolInvocation(invocation)
		}

		return result, err
	}
}

// singleDomain returns the calendar domain when every covered calendar
// shares it, and "" otherwise.
func singleDomain(ti *instrumentation.ToolInvocation) string {
	domains := ti.CalendarDomains()
	if len(domains) != 1 {
		return ""
	}
	return domains[0]
}
