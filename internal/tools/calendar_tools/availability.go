package calendar_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calquery/internal/calendar"
	"github.com/teemow/calquery/internal/instrumentation"
	"github.com/teemow/calquery/internal/server"
	"github.com/teemow/calquery/internal/tools/batch"
	"github.com/teemow/calquery/internal/tools/common"
)

// availabilityResponse is the calendar-availability output. Diagnostics
// only appear when something went wrong.
type availabilityResponse struct {
	calendar.Availability
	Diagnostics *calendar.Diagnostics `json:"diagnostics,omitempty"`
}

func registerAvailabilityTool(s *mcpserver.MCPServer, sc *server.ServerContext) {
	tool := mcp.NewTool(ToolAvailability, withCredentials(
		mcp.WithDescription("Check free/busy availability for one or more calendars and optionally suggest free slots common to all of them"),
		mcp.WithString("calendars",
			mcp.Required(),
			mcp.Description("Calendar ID, array of IDs, or JSON array string of IDs"),
		),
		mcp.WithString("timeMin",
			mcp.Required(),
			mcp.Description("Start of the range, ISO 8601 with or without offset"),
		),
		mcp.WithString("timeMax",
			mcp.Required(),
			mcp.Description("End of the range, ISO 8601 with or without offset"),
		),
		mcp.WithString("timeZone",
			mcp.Description("IANA time zone for bounds without an offset (default: the first calendar's zone)"),
		),
		mcp.WithBoolean("suggestFreeSlots",
			mcp.Description("Suggest free slots where every calendar is free"),
		),
		mcp.WithNumber("minSlotDuration",
			mcp.Description("Minimum free slot length in minutes (default 30)"),
		),
	)...)

	s.AddTool(tool, mcpserver.ToolHandlerFunc(common.InstrumentedToolHandlerWithService(
		ToolAvailability, instrumentation.ServiceCalendar, instrumentation.OperationFreeBusy, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCalendarAvailability(ctx, request, sc)
		})))
}

func handleCalendarAvailability(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	ids, err := batch.ParseStringOrArray(args["calendars"], "calendars")
	if err != nil {
		return toolError(calendar.NewValidationError("calendars", err.Error())), nil
	}

	req := calendar.AvailabilityRequest{
		CalendarIDs: ids,
		TimeMin:     common.StringArg(args, "timeMin"),
		TimeMax:     common.StringArg(args, "timeMax"),
		TimeZone:    common.StringArg(args, "timeZone"),
	}
	req.Options.SuggestFreeSlots, _ = args["suggestFreeSlots"].(bool)
	if v, ok := args["minSlotDuration"].(float64); ok && v > 0 {
		req.Options.MinSlotDuration = v
	}

	ctx, cancel := sc.WithRequestTimeout(ctx)
	defer cancel()

	clients, err := clientsFor(ctx, sc, args)
	if err != nil {
		return toolError(err), nil
	}

	result, diags, err := calendar.CheckAvailability(ctx, clients.Calendar, req)
	if err != nil {
		common.ReportCalendars(ctx, ids, len(ids))
		return toolError(err), nil
	}

	common.ReportCalendars(ctx, ids, len(diags.Failures))
	logDiagnostics(ctx, sc, ToolAvailability, diags)
	if result.SearchCriteria != nil {
		sc.Metrics().RecordFreeSlotsSuggested(ctx, len(result.SuggestedFreeSlots))
	}

	resp := availabilityResponse{Availability: result}
	if !diags.Empty() {
		resp.Diagnostics = &diags
	}
	return jsonResult(resp)
}
