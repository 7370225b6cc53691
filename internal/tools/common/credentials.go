package common

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/calquery/internal/google"
)

// Argument names shared by every tool that talks to Google Calendar.
const (
	ArgAccessToken  = "access_token"
	ArgRefreshToken = "refresh_token"
	ArgClientID     = "client_id"
	ArgClientSecret = "client_secret"
)

// CredentialOptions returns the tool options declaring the per-call
// credential arguments.
func CredentialOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString(ArgAccessToken,
			mcp.Required(),
			mcp.Description("OAuth 2.0 access token with a Google Calendar scope"),
		),
		mcp.WithString(ArgRefreshToken,
			mcp.Description("OAuth 2.0 refresh token used when the access token has expired"),
		),
		mcp.WithString(ArgClientID,
			mcp.Description("OAuth client ID for token refresh (defaults to the server's GOOGLE_CLIENT_ID)"),
		),
		mcp.WithString(ArgClientSecret,
			mcp.Description("OAuth client secret for token refresh (defaults to the server's GOOGLE_CLIENT_SECRET)"),
		),
	}
}

// CredentialsFromArgs extracts the caller's credentials from tool arguments.
// Missing client settings are left empty for the server to fill in.
func CredentialsFromArgs(args map[string]any) google.Credentials {
	return google.Credentials{
		AccessToken:  StringArg(args, ArgAccessToken),
		RefreshToken: StringArg(args, ArgRefreshToken),
		ClientID:     StringArg(args, ArgClientID),
		ClientSecret: StringArg(args, ArgClientSecret),
	}
}

// StringArg returns the trimmed string argument name, or "" when it is
// absent or not a string.
func StringArg(args map[string]any, name string) string {
	v, _ := args[name].(string)
	return strings.TrimSpace(v)
}
