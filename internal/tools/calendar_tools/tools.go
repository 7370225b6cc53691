package calendar_tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calquery/internal/calendar"
	"github.com/teemow/calquery/internal/instrumentation"
	"github.com/teemow/calquery/internal/logging"
	"github.com/teemow/calquery/internal/server"
	"github.com/teemow/calquery/internal/tools/common"
)

// Tool names.
const (
	ToolManage       = "calendar-manage"
	ToolAvailability = "calendar-availability"
	ToolConnect      = "calendar-connect"
)

// RegisterCalendarTools registers all Calendar-related tools with the MCP server
func RegisterCalendarTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if s == nil || sc == nil {
		return fmt.Errorf("mcp server and server context are required")
	}

	registerManageTool(s, sc)
	registerAvailabilityTool(s, sc)
	registerConnectTool(s, sc)

	return nil
}

// withCredentials appends the shared credential arguments to opts.
func withCredentials(opts ...mcp.ToolOption) []mcp.ToolOption {
	return append(opts, common.CredentialOptions()...)
}

// clientsFor builds the Calendar clients for the credentials in args.
func clientsFor(ctx context.Context, sc *server.ServerContext, args map[string]any) (*server.Clients, error) {
	creds := common.CredentialsFromArgs(args)
	sc.Logger().Debug("building calendar clients",
		slog.String("access_token", logging.SanitizeToken(creds.AccessToken)),
		slog.Bool("refreshable", creds.RefreshToken != ""))
	return sc.ClientsFor(ctx, creds)
}

// toolError converts err into an in-band MCP error result.
func toolError(err error) *mcp.CallToolResult {
	var verr *calendar.ValidationError
	if errors.As(err, &verr) {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid input: %v", verr))
	}
	var ferr *calendar.FetchError
	if errors.As(err, &ferr) {
		return mcp.NewToolResultError(ferr.Error())
	}
	return mcp.NewToolResultError(fmt.Sprintf("Calendar request failed: %v", err))
}

// jsonResult renders v as indented JSON.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// logDiagnostics reports non-fatal problems of a tool call.
func logDiagnostics(ctx context.Context, sc *server.ServerContext, tool string, d calendar.Diagnostics) {
	if d.Empty() {
		return
	}
	logger := logging.WithTool(sc.Logger(), tool)
	if traceID := instrumentation.GetTraceID(ctx); traceID != "" {
		logger = logger.With(
			slog.String("trace_id", traceID),
			slog.String("span_id", instrumentation.GetSpanID(ctx)))
	}
	for _, f := range d.Failures {
		logging.WithCalendar(logger, f.CalendarID).Warn("calendar fetch failed",
			slog.String(logging.KeyError, f.Message),
			slog.Int("status_code", f.StatusCode))
	}
	for _, n := range d.Notes {
		logger.Warn("calendar result degraded", slog.String("note", n))
	}
}
