// Package logging provides structured logging utilities for calquery.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Structured logging with slog
//   - PII sanitization (email and calendar ID anonymization)
//   - Consistent attribute naming across the codebase
//   - Logger adapter interface for flexibility
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithTool(slog.Default(), "calendar-manage")
//	logger.Warn("calendar fetch failed",
//	    logging.Calendar(failure.CalendarID))
//
// Sanitize sensitive data before logging:
//
//	logger.Debug("credentials received",
//	    slog.String("access_token", logging.SanitizeToken(token)))
//
// # Security Considerations
//
// Calendar IDs are usually email addresses and are hashed before logging.
// Tokens are never logged directly.
package logging
