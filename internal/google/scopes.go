package google

// DefaultOAuthScopes are the Google OAuth scopes requested when a refresh
// token is exchanged for a new access token.
//
// The scopes provide access to:
//   - Google Calendar: full access (events, calendar list, free/busy, colors)
//   - User info: the account email reported by calendar-connect
var DefaultOAuthScopes = []string{
	// OpenID Connect scopes (required for user info)
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",

	// Google Calendar scope
	"https://www.googleapis.com/auth/calendar",
}

// CalendarScope is the scope a token needs for every calendar tool.
const CalendarScope = "https://www.googleapis.com/auth/calendar"

// HasCalendarScope reports whether scopes grants calendar access. The
// read-only scope is accepted as well.
func HasCalendarScope(scopes []string) bool {
	for _, s := range scopes {
		if s == CalendarScope || s == CalendarScope+".readonly" {
			return true
		}
	}
	return false
}
