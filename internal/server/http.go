package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/teemow/calquery/internal/logging"
)

// MCPEndpointPath is where the streamable HTTP transport is mounted.
const MCPEndpointPath = "/mcp"

const (
	httpReadHeaderTimeout = 10 * time.Second
	httpIdleTimeout       = 120 * time.Second
	// httpWriteMargin is added to the request timeout so a slow tool call
	// can still write its result.
	httpWriteMargin = 10 * time.Second
)

// HTTPServer serves the MCP streamable HTTP transport next to the health
// endpoints.
type HTTPServer struct {
	mcpServer     *mcpserver.MCPServer
	serverContext *ServerContext
	health        *HealthChecker
	rateLimiter   *RateLimiter
	httpServer    *http.Server
}

// NewHTTPServer creates an HTTPServer. rateLimiter may be nil to disable
// rate limiting.
func NewHTTPServer(mcpServer *mcpserver.MCPServer, sc *ServerContext, rateLimiter *RateLimiter) (*HTTPServer, error) {
	if mcpServer == nil {
		return nil, fmt.Errorf("mcp server cannot be nil")
	}
	if sc == nil {
		return nil, fmt.Errorf("server context cannot be nil")
	}

	return &HTTPServer{
		mcpServer:     mcpServer,
		serverContext: sc,
		health:        NewHealthChecker(sc),
		rateLimiter:   rateLimiter,
	}, nil
}

// Health returns the health checker backing /healthz and /readyz.
func (s *HTTPServer) Health() *HealthChecker {
	return s.health
}

// Handler returns the HTTP handler with every endpoint registered.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	s.health.RegisterHealthEndpoints(mux)

	streamable := mcpserver.NewStreamableHTTPServer(s.mcpServer,
		mcpserver.WithEndpointPath(MCPEndpointPath),
		mcpserver.WithLogger(logging.NewSlogAdapter(s.serverContext.Logger())),
	)
	mux.Handle(MCPEndpointPath, s.rateLimiter.Middleware(
		otelhttp.NewHandler(streamable, "mcp"),
	))

	return s.metricsMiddleware(mux)
}

// Start starts the HTTP server in a blocking manner.
func (s *HTTPServer) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: httpReadHeaderTimeout,
		WriteTimeout:      s.serverContext.Config().RequestTimeout + httpWriteMargin,
		IdleTimeout:       httpIdleTimeout,
	}

	slog.Info("starting HTTP server", "addr", addr, "endpoint", MCPEndpointPath)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server. The readiness check starts
// failing before connections are drained.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// metricsMiddleware records http_requests_total and the request duration
// for every request.
func (s *HTTPServer) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.serverContext.Metrics().RecordHTTPRequest(r.Context(), r.Method, routeLabel(r.URL.Path), m.Code, m.Duration)
	})
}

// routeLabel maps request paths onto a fixed set of metric labels.
func routeLabel(path string) string {
	switch path {
	case MCPEndpointPath, "/healthz", "/readyz", "/healthz/detailed":
		return path
	default:
		return "other"
	}
}
