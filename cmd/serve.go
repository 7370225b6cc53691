package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/calquery/internal/calendar"
	"github.com/teemow/calquery/internal/instrumentation"
	"github.com/teemow/calquery/internal/logging"
	"github.com/teemow/calquery/internal/server"
	"github.com/teemow/calquery/internal/tools/calendar_tools"
)

const (
	transportStdio          = "stdio"
	transportStreamableHTTP = "streamable-http"

	logFormatText = "text"
	logFormatJSON = "json"

	shutdownTimeout = 30 * time.Second
)

// ServeConfig holds the settings of the serve command after flags and
// environment variables have been merged.
type ServeConfig struct {
	Transport string
	HTTPAddr  string
	Debug     bool
	LogFormat string

	GoogleClientID     string
	GoogleClientSecret string

	CalendarEndpoint string
	BatchEndpoint    string
	RequestTimeout   time.Duration

	BatchSize             int
	ZoneLookupConcurrency int

	RateLimit      float64
	RateLimitBurst int
	TrustProxy     bool

	Metrics MetricsConfig
}

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

func newServeCmd() *cobra.Command {
	cfg := ServeConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server providing the calendar-manage,
calendar-availability and calendar-connect tools.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport on /mcp with /healthz and /readyz

Credentials:
  Every tool call carries the caller's access_token (and optionally a
  refresh_token). To refresh tokens without a per-call OAuth client, set
  --google-client-id and --google-client-secret or the GOOGLE_CLIENT_ID and
  GOOGLE_CLIENT_SECRET env vars.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadServeEnvVars(cmd, &cfg); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.Transport, "transport", transportStdio, "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&cfg.HTTPAddr, "http-addr", ":8080", "HTTP server address (for streamable-http transport)")
	cmd.Flags().BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&cfg.LogFormat, "log-format", logFormatText, "Log format: text or json. Can also use LOG_FORMAT env var.")
	cmd.Flags().StringVar(&cfg.GoogleClientID, "google-client-id", "", "Google OAuth Client ID used to refresh caller tokens. Can also use GOOGLE_CLIENT_ID env var.")
	cmd.Flags().StringVar(&cfg.GoogleClientSecret, "google-client-secret", "", "Google OAuth Client Secret used to refresh caller tokens. Can also use GOOGLE_CLIENT_SECRET env var.")
	cmd.Flags().StringVar(&cfg.CalendarEndpoint, "calendar-endpoint", "", "Override the Calendar API base URL (testing only). Can also use CALENDAR_API_ENDPOINT env var.")
	cmd.Flags().StringVar(&cfg.BatchEndpoint, "batch-endpoint", "", "Override the Calendar batch URL (testing only). Can also use CALENDAR_BATCH_ENDPOINT env var.")
	cmd.Flags().DurationVar(&cfg.RequestTimeout, "request-timeout", server.DefaultRequestTimeout, "Upper bound for a single tool call against Google. Can also use REQUEST_TIMEOUT env var.")
	cmd.Flags().IntVar(&cfg.BatchSize, "batch-size", calendar.MaxBatchSize, "Calendars per Google batch call, at most 50. Can also use BATCH_SIZE env var.")
	cmd.Flags().IntVar(&cfg.ZoneLookupConcurrency, "zone-lookup-concurrency", calendar.DefaultZoneLookupConcurrency, "Parallel calendar time zone lookups per request. Can also use ZONE_LOOKUP_CONCURRENCY env var.")

	// Rate limiting (streamable-http only)
	cmd.Flags().Float64Var(&cfg.RateLimit, "rate-limit", server.DefaultRateLimit, "Requests per second allowed per client IP on /mcp; 0 disables rate limiting. Can also use RATE_LIMIT env var.")
	cmd.Flags().IntVar(&cfg.RateLimitBurst, "rate-limit-burst", server.DefaultRateLimitBurst, "Burst size per client IP. Can also use RATE_LIMIT_BURST env var.")
	cmd.Flags().BoolVar(&cfg.TrustProxy, "trust-proxy", false, "Key rate limits on X-Forwarded-For / X-Real-IP. Only enable behind a trusted proxy. Can also use TRUST_PROXY env var.")

	// Metrics server flags
	cmd.Flags().BoolVar(&cfg.Metrics.Enabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&cfg.Metrics.Addr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

// loadServeEnvVars fills cfg from environment variables. Environment
// variables only override flag values when the flag was not explicitly set.
func loadServeEnvVars(cmd *cobra.Command, cfg *ServeConfig) error {
	envString := func(flag, env string, dst *string) {
		if !cmd.Flags().Changed(flag) {
			if v := os.Getenv(env); v != "" {
				*dst = v
			}
		}
	}

	envString("log-format", "LOG_FORMAT", &cfg.LogFormat)
	envString("google-client-id", "GOOGLE_CLIENT_ID", &cfg.GoogleClientID)
	envString("google-client-secret", "GOOGLE_CLIENT_SECRET", &cfg.GoogleClientSecret)
	envString("calendar-endpoint", "CALENDAR_API_ENDPOINT", &cfg.CalendarEndpoint)
	envString("batch-endpoint", "CALENDAR_BATCH_ENDPOINT", &cfg.BatchEndpoint)
	envString("metrics-addr", "METRICS_ADDR", &cfg.Metrics.Addr)

	if !cmd.Flags().Changed("request-timeout") {
		if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid REQUEST_TIMEOUT %q: %w", v, err)
			}
			cfg.RequestTimeout = d
		}
	}

	if !cmd.Flags().Changed("rate-limit") {
		if v := os.Getenv("RATE_LIMIT"); v != "" {
			limit, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid RATE_LIMIT %q: %w", v, err)
			}
			cfg.RateLimit = limit
		}
	}

	intEnv := func(flag, env string, dst *int) error {
		if cmd.Flags().Changed(flag) {
			return nil
		}
		v := os.Getenv(env)
		if v == "" {
			return nil
		}
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", env, v, err)
		}
		*dst = parsed
		return nil
	}
	if err := intEnv("rate-limit-burst", "RATE_LIMIT_BURST", &cfg.RateLimitBurst); err != nil {
		return err
	}
	if err := intEnv("batch-size", "BATCH_SIZE", &cfg.BatchSize); err != nil {
		return err
	}
	if err := intEnv("zone-lookup-concurrency", "ZONE_LOOKUP_CONCURRENCY", &cfg.ZoneLookupConcurrency); err != nil {
		return err
	}

	boolEnv := func(flag, env string, dst *bool) error {
		if cmd.Flags().Changed(flag) {
			return nil
		}
		v := os.Getenv(env)
		if v == "" {
			return nil
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s value %q (expected true/false): %w", env, v, err)
		}
		*dst = parsed
		return nil
	}
	if err := boolEnv("trust-proxy", "TRUST_PROXY", &cfg.TrustProxy); err != nil {
		return err
	}
	return boolEnv("metrics-enabled", "METRICS_ENABLED", &cfg.Metrics.Enabled)
}

// newLogger builds the process logger. Logs always go to w, which is stderr
// in production so the stdio transport keeps stdout for protocol traffic.
func newLogger(w io.Writer, format string, debug bool) (*slog.Logger, error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(format) {
	case "", logFormatText:
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case logFormatJSON:
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s (supported: text, json)", format)
	}
}

func runServe(ctx context.Context, cfg ServeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := newLogger(os.Stderr, cfg.LogFormat, cfg.Debug)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Initialize instrumentation provider
	instrConfig, err := instrumentation.LoadConfig(os.Getenv)
	if err != nil {
		return fmt.Errorf("invalid instrumentation settings: %w", err)
	}
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.Warn("error during instrumentation shutdown", logging.Err(err))
		}
	}()

	serverContext, err := server.NewServerContext(shutdownCtx, server.Config{
		GoogleClientID:     cfg.GoogleClientID,
		GoogleClientSecret: cfg.GoogleClientSecret,
		CalendarEndpoint:   cfg.CalendarEndpoint,
		BatchEndpoint:      cfg.BatchEndpoint,
		RequestTimeout:     cfg.RequestTimeout,

		BatchSize:             cfg.BatchSize,
		ZoneLookupConcurrency: cfg.ZoneLookupConcurrency,
	})
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	serverContext.SetLogger(logger)
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Warn("error during server context shutdown", logging.Err(err))
		}
	}()

	if provider.Enabled() {
		serverContext.SetMetrics(provider.Metrics())
		if instrConfig.AuditLogging.Enabled {
			serverContext.SetAuditLogger(instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging))
		}
	}

	mcpSrv := newMCPServer(serverContext)
	if err := calendar_tools.RegisterCalendarTools(mcpSrv, serverContext); err != nil {
		return fmt.Errorf("failed to register Calendar tools: %w", err)
	}

	switch cfg.Transport {
	case transportStdio:
		return runStdioServer(mcpSrv)
	case transportStreamableHTTP:
		metricsServer, err := startMetricsServer(cfg.Metrics, provider)
		if err != nil {
			return err
		}
		if metricsServer != nil {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := metricsServer.Shutdown(ctx); err != nil {
					logger.Warn("error during metrics server shutdown", logging.Err(err))
				}
			}()
		}
		return runStreamableHTTPServer(shutdownCtx, mcpSrv, serverContext, cfg)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", cfg.Transport)
	}
}

// newMCPServer creates the MCP server and tracks active sessions in the
// metrics of sc.
func newMCPServer(sc *server.ServerContext) *mcpserver.MCPServer {
	hooks := &mcpserver.Hooks{}
	hooks.AddOnRegisterSession(func(ctx context.Context, _ mcpserver.ClientSession) {
		sc.Metrics().IncrementActiveSessions(ctx)
	})
	hooks.AddOnUnregisterSession(func(ctx context.Context, _ mcpserver.ClientSession) {
		sc.Metrics().DecrementActiveSessions(ctx)
	})

	return mcpserver.NewMCPServer("calquery", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithHooks(hooks),
	)
}

// startMetricsServer starts the Prometheus endpoint in the background and
// waits briefly for bind errors. It returns nil when metrics are disabled.
func startMetricsServer(cfg MetricsConfig, provider *instrumentation.Provider) (*server.MetricsServer, error) {
	if !cfg.Enabled || !provider.HasPrometheusExporter() {
		return nil, nil
	}

	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    cfg.Addr,
		Enabled:                 true,
		InstrumentationProvider: provider,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	metricsErr := make(chan error, 1)
	go func() {
		if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			metricsErr <- err
		}
		close(metricsErr)
	}()

	select {
	case err := <-metricsErr:
		if err != nil {
			return nil, fmt.Errorf("metrics server failed to start: %w", err)
		}
	case <-time.After(250 * time.Millisecond):
	}

	return metricsServer, nil
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runStreamableHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, cfg ServeConfig) error {
	var rateLimiter *server.RateLimiter
	if cfg.RateLimit > 0 {
		rateLimiter = server.NewRateLimiter(cfg.RateLimit, cfg.RateLimitBurst, cfg.TrustProxy)
	}

	httpServer, err := server.NewHTTPServer(mcpSrv, sc, rateLimiter)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}
	httpServer.Health().SetVersion(version)

	fmt.Printf("Streamable HTTP server starting on %s\n", cfg.HTTPAddr)
	fmt.Printf("  HTTP endpoint: %s\n", server.MCPEndpointPath)
	fmt.Printf("  Health endpoints: /healthz, /readyz, /healthz/detailed\n")
	if cfg.Metrics.Enabled {
		fmt.Printf("  Metrics endpoint: %s/metrics\n", cfg.Metrics.Addr)
	}
	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		fmt.Println("  Token refresh: only with per-call client_id and client_secret")
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		fmt.Println("Shutdown signal received, stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
		fmt.Println("HTTP server stopped normally")
	}

	fmt.Println("HTTP server gracefully stopped")
	return nil
}
