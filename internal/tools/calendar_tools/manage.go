package calendar_tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calquery/internal/calendar"
	"github.com/teemow/calquery/internal/logging"
	"github.com/teemow/calquery/internal/server"
	"github.com/teemow/calquery/internal/tools/batch"
	"github.com/teemow/calquery/internal/tools/common"
)

func registerManageTool(s *mcpserver.MCPServer, sc *server.ServerContext) {
	tool := mcp.NewTool(ToolManage, withCredentials(
		mcp.WithDescription("Read Google Calendar data: list calendars, list or search events across one or more calendars, and list event colors"),
		mcp.WithString("operation",
			mcp.Required(),
			mcp.Enum(OpListCalendars, OpListEvents, OpSearchEvents, OpListColors),
			mcp.Description("Operation to perform"),
		),
		mcp.WithString("calendarId",
			mcp.Description("Calendar ID (default 'primary'). For list-events also an array or a JSON array string of IDs to query several calendars in one batch"),
		),
		mcp.WithString("timeMin",
			mcp.Description("Start of the range, ISO 8601 with or without offset (e.g. '2025-01-01T09:00:00' or '2025-01-01T09:00:00Z')"),
		),
		mcp.WithString("timeMax",
			mcp.Description("End of the range, ISO 8601 with or without offset"),
		),
		mcp.WithString("timeZone",
			mcp.Description("IANA time zone for bounds without an offset (default: the calendar's zone)"),
		),
		mcp.WithString("query",
			mcp.Description("Free text search query (required for search-events)"),
		),
		mcp.WithBoolean("includeReport",
			mcp.Description("For list-events across several calendars, append a per-calendar fetch report as JSON"),
		),
	)...)

	s.AddTool(tool, mcpserver.ToolHandlerFunc(common.InstrumentedToolHandler(ToolManage, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCalendarManage(ctx, request, sc)
		})))
}

func handleCalendarManage(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	op, err := parseOperation(args, time.Now())
	if err != nil {
		return toolError(err), nil
	}

	ctx, cancel := sc.WithRequestTimeout(ctx)
	defer cancel()

	clients, err := clientsFor(ctx, sc, args)
	if err != nil {
		return toolError(err), nil
	}

	switch op := op.(type) {
	case ListCalendarsOp:
		return runListCalendars(ctx, clients)
	case ListEventsOp:
		return runListEvents(ctx, sc, clients, op)
	case SearchEventsOp:
		return runSearchEvents(ctx, sc, clients, op)
	case ListColorsOp:
		return runListColors(ctx, clients)
	default:
		return toolError(fmt.Errorf("unsupported operation %s", op.Name())), nil
	}
}

func runListCalendars(ctx context.Context, clients *server.Clients) (*mcp.CallToolResult, error) {
	cals, err := clients.Calendar.ListCalendars(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(formatCalendars(cals)), nil
}

func runListColors(ctx context.Context, clients *server.Clients) (*mcp.CallToolResult, error) {
	colors, err := clients.Calendar.ListColors(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(formatColors(colors)), nil
}

func runListEvents(ctx context.Context, sc *server.ServerContext, clients *server.Clients, op ListEventsOp) (*mcp.CallToolResult, error) {
	queries := make([]calendar.CalendarQuery, len(op.CalendarIDs))
	for i, id := range op.CalendarIDs {
		queries[i] = calendar.CalendarQuery{
			CalendarID: id,
			TimeMin:    op.TimeMin,
			TimeMax:    op.TimeMax,
			TimeZone:   op.TimeZone,
		}
	}

	cfg := sc.Config()
	result, err := calendar.NewOrchestrator(clients.Calendar, clients.Batch).
		WithMetrics(sc.Metrics()).
		WithBatchSize(cfg.BatchSize).
		WithZoneLookupConcurrency(cfg.ZoneLookupConcurrency).
		FetchEvents(ctx, queries)
	if err != nil {
		common.ReportCalendars(ctx, op.CalendarIDs, len(op.CalendarIDs))
		return toolError(err), nil
	}

	calendars := len(result.Order)
	common.ReportCalendars(ctx, result.Order, len(result.Diagnostics.Failures))
	logDiagnostics(ctx, sc, ToolManage, result.Diagnostics)
	if result.Diagnostics.Partial(calendars) {
		logging.WithTool(sc.Logger(), ToolManage).Info("returning partial event list",
			slog.Int("calendars", calendars),
			slog.Int("failed", len(result.Diagnostics.Failures)))
	}

	agg := calendar.Aggregate(result)
	sections := []string{
		formatAggregation(agg, calendars),
		formatWarnings(result.Diagnostics),
	}
	if op.IncludeReport && calendars > 1 {
		sections = append(sections, "Fetch report:\n"+batch.FormatResults(batch.NewReport(result)))
	}
	return mcp.NewToolResultText(joinSections(sections...)), nil
}

func runSearchEvents(ctx context.Context, sc *server.ServerContext, clients *server.Clients, op SearchEventsOp) (*mcp.CallToolResult, error) {
	resolved, err := calendar.ResolveWindow(ctx, calendar.CalendarQuery{
		CalendarID: op.CalendarID,
		TimeMin:    op.TimeMin,
		TimeMax:    op.TimeMax,
		TimeZone:   op.TimeZone,
	}, clients.Calendar)
	if err != nil {
		return toolError(err), nil
	}

	var diags calendar.Diagnostics
	resolved.ReportLookupFailure(&diags, op.CalendarID)
	logDiagnostics(ctx, sc, ToolManage, diags)

	events, err := clients.Calendar.SearchEvents(ctx, op.CalendarID, op.Query, resolved.Window)
	if err != nil {
		common.ReportCalendars(ctx, []string{op.CalendarID}, 1)
		return toolError(err), nil
	}
	common.ReportCalendars(ctx, []string{op.CalendarID}, 0)

	if len(events) == 0 {
		return mcp.NewToolResultText(joinSections(
			"No events found matching your search criteria.",
			formatWarnings(diags),
		)), nil
	}

	return mcp.NewToolResultText(joinSections(formatSearchResults(events), formatWarnings(diags))), nil
}
