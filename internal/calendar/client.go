package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/teemow/calquery/internal/google"
	"github.com/teemow/calquery/internal/instrumentation"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// HTTPClient must carry the caller's credentials.
	HTTPClient *http.Client

	// CalendarEndpoint overrides the Calendar API base URL, including the
	// "/calendar/v3/" path. Empty selects Google's endpoint.
	CalendarEndpoint string

	// OAuth2Endpoint overrides the base URL of the token info API.
	OAuth2Endpoint string

	Metrics *instrumentation.Metrics
}

// Client wraps the Google Calendar service for a single set of credentials.
// A Client is cheap to create and is meant to live for one tool invocation.
type Client struct {
	svc     *calendar.Service
	oauth2  *oauth2api.Service
	metrics *instrumentation.Metrics
}

// NewClient creates a Client from cfg.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.HTTPClient == nil {
		return nil, fmt.Errorf("http client cannot be nil")
	}

	calOpts := []option.ClientOption{option.WithHTTPClient(cfg.HTTPClient)}
	if cfg.CalendarEndpoint != "" {
		calOpts = append(calOpts, option.WithEndpoint(cfg.CalendarEndpoint))
	}
	svc, err := calendar.NewService(ctx, calOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	oauthOpts := []option.ClientOption{option.WithHTTPClient(cfg.HTTPClient)}
	if cfg.OAuth2Endpoint != "" {
		oauthOpts = append(oauthOpts, option.WithEndpoint(cfg.OAuth2Endpoint))
	}
	oauthSvc, err := oauth2api.NewService(ctx, oauthOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OAuth2 service: %w", err)
	}

	return &Client{svc: svc, oauth2: oauthSvc, metrics: cfg.Metrics}, nil
}

// observe runs fn inside a Google API span and records the operation metric.
func (c *Client) observe(ctx context.Context, service, operation, resourceID string, fn func(ctx context.Context) error) error {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, service, operation,
		instrumentation.NewSpanAttributeBuilder().WithResource("calendar", resourceID).Build()...)
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	c.metrics.RecordGoogleAPIOperation(ctx, service, operation, status, time.Since(start))
	return err
}

// ListCalendars returns every calendar in the caller's calendar list.
func (c *Client) ListCalendars(ctx context.Context) ([]CalendarInfo, error) {
	var out []CalendarInfo
	err := c.observe(ctx, instrumentation.ServiceCalendar, instrumentation.OperationList, "", func(ctx context.Context) error {
		return c.svc.CalendarList.List().Pages(ctx, func(page *calendar.CalendarList) error {
			for _, item := range page.Items {
				out = append(out, toCalendarInfo(item))
			}
			return nil
		})
	})
	if err != nil {
		return nil, newFetchError("", err)
	}
	return out, nil
}

// ListEvents returns the expanded events of calendarID within w, ordered by
// start time.
func (c *Client) ListEvents(ctx context.Context, calendarID string, w Window) ([]*calendar.Event, error) {
	return c.listEvents(ctx, instrumentation.OperationList, calendarID, "", w)
}

// SearchEvents returns the events of calendarID within w matching the free
// text query.
func (c *Client) SearchEvents(ctx context.Context, calendarID, query string, w Window) ([]*calendar.Event, error) {
	return c.listEvents(ctx, instrumentation.OperationSearch, calendarID, query, w)
}

func (c *Client) listEvents(ctx context.Context, operation, calendarID, query string, w Window) ([]*calendar.Event, error) {
	var out []*calendar.Event
	err := c.observe(ctx, instrumentation.ServiceCalendar, operation, calendarID, func(ctx context.Context) error {
		call := c.svc.Events.List(calendarID).
			SingleEvents(true).
			OrderBy("startTime")
		if w.TimeMin != "" {
			call = call.TimeMin(w.TimeMin)
		}
		if w.TimeMax != "" {
			call = call.TimeMax(w.TimeMax)
		}
		if query != "" {
			call = call.Q(query)
		}
		return call.Pages(ctx, func(page *calendar.Events) error {
			out = append(out, page.Items...)
			return nil
		})
	})
	if err != nil {
		return nil, newFetchError(calendarID, err)
	}
	return out, nil
}

// CalendarTimeZone returns the default time zone of calendarID. The
// caller's calendar list entry is consulted first; calendars that are not
// in the list fall back to the calendar resource itself.
func (c *Client) CalendarTimeZone(ctx context.Context, calendarID string) (string, error) {
	var zone string
	err := c.observe(ctx, instrumentation.ServiceCalendar, instrumentation.OperationGet, calendarID, func(ctx context.Context) error {
		entry, err := c.svc.CalendarList.Get(calendarID).Context(ctx).Do()
		if err == nil && entry.TimeZone != "" {
			zone = entry.TimeZone
			return nil
		}
		cal, calErr := c.svc.Calendars.Get(calendarID).Context(ctx).Do()
		if calErr != nil {
			return calErr
		}
		zone = cal.TimeZone
		return nil
	})
	if err != nil {
		return "", newFetchError(calendarID, err)
	}
	if zone == "" {
		return "", fmt.Errorf("calendar %s has no time zone", calendarID)
	}
	return zone, nil
}

// ListColors returns the event color palette ordered by color ID.
func (c *Client) ListColors(ctx context.Context) ([]ColorInfo, error) {
	var colors *calendar.Colors
	err := c.observe(ctx, instrumentation.ServiceCalendar, instrumentation.OperationColors, "", func(ctx context.Context) error {
		var err error
		colors, err = c.svc.Colors.Get().Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, newFetchError("", err)
	}

	out := make([]ColorInfo, 0, len(colors.Event))
	for id, def := range colors.Event {
		out = append(out, ColorInfo{ID: id, Background: def.Background, Foreground: def.Foreground})
	}
	sort.Slice(out, func(i, j int) bool {
		a, errA := strconv.Atoi(out[i].ID)
		b, errB := strconv.Atoi(out[j].ID)
		if errA == nil && errB == nil {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// QueryFreeBusy asks for the busy periods of calendarIDs within w.
// Calendars the service reports errors for are recorded in the returned
// diagnostics and left out of FreeBusy.Calendars.
func (c *Client) QueryFreeBusy(ctx context.Context, calendarIDs []string, w Window, timeZone string) (*FreeBusy, error) {
	req := &calendar.FreeBusyRequest{
		TimeMin:  w.TimeMin,
		TimeMax:  w.TimeMax,
		TimeZone: timeZone,
	}
	for _, id := range calendarIDs {
		req.Items = append(req.Items, &calendar.FreeBusyRequestItem{Id: id})
	}

	var resp *calendar.FreeBusyResponse
	err := c.observe(ctx, instrumentation.ServiceCalendar, instrumentation.OperationFreeBusy, strings.Join(calendarIDs, ","), func(ctx context.Context) error {
		var err error
		resp, err = c.svc.Freebusy.Query(req).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, newFetchError("", err)
	}

	return freeBusyFromResponse(calendarIDs, w, resp), nil
}

func freeBusyFromResponse(calendarIDs []string, w Window, resp *calendar.FreeBusyResponse) *FreeBusy {
	fb := &FreeBusy{
		Calendars: make(map[string][]RawPeriod, len(calendarIDs)),
		Order:     calendarIDs,
		Window:    w,
	}
	for _, id := range calendarIDs {
		cal, ok := resp.Calendars[id]
		if !ok {
			fb.Diagnostics.AddFailure(id, "calendar missing from free/busy response", 0)
			continue
		}
		if len(cal.Errors) > 0 {
			reasons := make([]string, 0, len(cal.Errors))
			for _, e := range cal.Errors {
				reasons = append(reasons, e.Reason)
			}
			fb.Diagnostics.AddFailure(id, strings.Join(reasons, ", "), 0)
			continue
		}
		periods := make([]RawPeriod, 0, len(cal.Busy))
		for _, p := range cal.Busy {
			periods = append(periods, RawPeriod{Start: p.Start, End: p.End})
		}
		fb.Calendars[id] = periods
	}
	return fb
}

// ConnectionStatus checks that accessToken is valid and can read the
// caller's calendar list. Failures are reported in the returned status,
// never as an error.
func (c *Client) ConnectionStatus(ctx context.Context, accessToken string) ConnectionStatus {
	var info *oauth2api.Tokeninfo
	err := c.observe(ctx, instrumentation.ServiceOAuth2, instrumentation.OperationTokenInfo, "", func(ctx context.Context) error {
		var err error
		info, err = c.oauth2.Tokeninfo().AccessToken(accessToken).Context(ctx).Do()
		return err
	})
	if err != nil {
		return disconnectedStatus(err)
	}

	var list *calendar.CalendarList
	err = c.observe(ctx, instrumentation.ServiceCalendar, instrumentation.OperationList, "", func(ctx context.Context) error {
		var err error
		list, err = c.svc.CalendarList.List().MaxResults(1).Fields("items(id)").Context(ctx).Do()
		return err
	})
	if err != nil {
		return disconnectedStatus(err)
	}

	status := ConnectionStatus{
		Connected:         true,
		TokenValid:        true,
		Email:             info.Email,
		ExpiresInSeconds:  info.ExpiresIn,
		HasCalendarAccess: list != nil,
		Message:           "Successfully connected to Google Calendar",
	}
	if status.Email == "" {
		status.Email = "unknown"
	}
	if info.Scope != "" {
		status.Scopes = strings.Fields(info.Scope)
		status.HasCalendarAccess = google.HasCalendarScope(status.Scopes)
	}
	return status
}

func disconnectedStatus(err error) ConnectionStatus {
	status := ConnectionStatus{
		Error:     err.Error(),
		ErrorCode: "UNKNOWN",
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		status.ErrorCode = strconv.Itoa(gerr.Code)
		if gerr.Message != "" {
			status.Error = gerr.Message
		}
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.ErrorCode != "" {
		status.ErrorCode = rerr.ErrorCode
	}

	code := StatusCode(err)
	switch {
	case strings.Contains(err.Error(), "invalid_grant"):
		status.Error = "OAuth token has expired or been revoked"
		status.Suggestion = "Request a new access token using the refresh token"
	case code == http.StatusUnauthorized:
		status.Error = "OAuth token has expired or been revoked"
		status.Suggestion = "Authentication failed. The access token may be invalid or expired."
	case code == http.StatusForbidden:
		status.Suggestion = "Permission denied. Ensure the token has the necessary Google Calendar scopes."
	case strings.Contains(strings.ToLower(err.Error()), "network"), errors.Is(err, context.DeadlineExceeded):
		status.Suggestion = "Network error. Check your internet connection and try again."
	default:
		status.Suggestion = "Verify your OAuth credentials and ensure they have proper Google Calendar permissions."
	}
	return status
}
