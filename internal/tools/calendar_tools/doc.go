// Package calendar_tools provides the MCP tools of calquery.
//
// Every tool takes the caller's Google OAuth credentials as arguments and
// builds fresh clients for the call; nothing is stored between calls.
//
//   - calendar-manage lists calendars, lists events across one or more
//     calendars (batched when there are several), searches events and
//     lists the event color palette.
//   - calendar-availability reports busy periods and can suggest free slots
//     common to all requested calendars.
//   - calendar-connect checks that the credentials reach Google Calendar.
//
// Per-calendar failures never fail a call; they are listed as warnings next
// to the data that could be fetched.
package calendar_tools
