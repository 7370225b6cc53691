// Package server provides the MCP server context and the HTTP surfaces of
// calquery.
//
// # Key Components
//
// ServerContext carries the process-wide collaborators shared by every tool
// invocation: configuration, metrics, the audit logger and the ClientFactory
// that turns per-call credentials into Calendar clients. Credentials are
// never cached; each invocation builds its own clients.
//
// HTTPServer serves the MCP streamable HTTP transport at /mcp together with
// the /healthz, /readyz and /healthz/detailed endpoints. Requests to /mcp are
// rate limited per client IP and traced with otelhttp.
//
// MetricsServer exposes /metrics for Prometheus on a dedicated port.
package server
