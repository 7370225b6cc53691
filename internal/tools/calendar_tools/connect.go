package calendar_tools

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calquery/internal/instrumentation"
	"github.com/teemow/calquery/internal/logging"
	"github.com/teemow/calquery/internal/server"
	"github.com/teemow/calquery/internal/tools/common"
)

func registerConnectTool(s *mcpserver.MCPServer, sc *server.ServerContext) {
	tool := mcp.NewTool(ToolConnect, withCredentials(
		mcp.WithDescription("Verify that the supplied OAuth credentials can reach Google Calendar and report token details"),
	)...)

	s.AddTool(tool, mcpserver.ToolHandlerFunc(common.InstrumentedToolHandlerWithService(
		ToolConnect, instrumentation.ServiceOAuth2, instrumentation.OperationTokenInfo, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCalendarConnect(ctx, request, sc)
		})))
}

// handleCalendarConnect reports the connection status as JSON. Failures to
// reach Google are part of the report, not tool errors.
func handleCalendarConnect(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	ctx, cancel := sc.WithRequestTimeout(ctx)
	defer cancel()

	clients, err := clientsFor(ctx, sc, args)
	if err != nil {
		return toolError(err), nil
	}

	creds := common.CredentialsFromArgs(args)
	status := clients.Calendar.ConnectionStatus(ctx, creds.AccessToken)

	logger := logging.WithTool(sc.Logger(), ToolConnect)
	if status.Connected {
		logger.Info("calendar connection verified",
			logging.UserHash(status.Email),
			logging.Domain(status.Email),
			slog.Bool("calendar_access", status.HasCalendarAccess))
	} else {
		logger.Warn("calendar connection check failed",
			slog.String("error_code", status.ErrorCode))
	}

	return jsonResult(status)
}
