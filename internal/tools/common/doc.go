// Package common provides shared utilities for the MCP tool implementations:
// extraction of per-call Google credentials from tool arguments and the
// instrumented handler wrapper that adds tracing, metrics and audit logging.
package common
