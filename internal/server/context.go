package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teemow/calquery/internal/calendar"
	"github.com/teemow/calquery/internal/google"
	"github.com/teemow/calquery/internal/instrumentation"
)

// DefaultRequestTimeout bounds a single tool invocation against the
// Calendar API.
const DefaultRequestTimeout = 60 * time.Second

// Config holds the process-wide settings shared by every tool invocation.
type Config struct {
	// GoogleClientID and GoogleClientSecret are used when a caller supplies
	// a refresh token without its own OAuth client.
	GoogleClientID     string
	GoogleClientSecret string

	// CalendarEndpoint overrides the Calendar REST base URL.
	CalendarEndpoint string
	// BatchEndpoint overrides the Calendar batch URL.
	BatchEndpoint string
	// OAuth2Endpoint overrides the token info base URL.
	OAuth2Endpoint string

	RequestTimeout time.Duration

	// BatchSize caps the sub-requests per Calendar batch call. Zero means
	// calendar.MaxBatchSize.
	BatchSize int

	// ZoneLookupConcurrency caps parallel calendar time zone lookups. Zero
	// means calendar.DefaultZoneLookupConcurrency.
	ZoneLookupConcurrency int
}

// Clients are the per-invocation collaborators built from caller credentials.
type Clients struct {
	Calendar *calendar.Client
	Batch    calendar.BatchChannel
}

// ClientFactory builds the Calendar clients for one set of credentials.
type ClientFactory func(ctx context.Context, creds google.Credentials) (*Clients, error)

// ServerContext holds the context for the MCP server
type ServerContext struct {
	ctx         context.Context
	cancel      context.CancelFunc
	config      Config
	logger      *slog.Logger
	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger
	factory     ClientFactory
	mu          sync.RWMutex
	shutdown    bool
}

// NewServerContext creates a new server context
func NewServerContext(ctx context.Context, config Config) (*ServerContext, error) {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultRequestTimeout
	}
	switch {
	case config.BatchSize < 0 || config.BatchSize > calendar.MaxBatchSize:
		return nil, fmt.Errorf("batch size must be between 1 and %d, got %d", calendar.MaxBatchSize, config.BatchSize)
	case config.BatchSize == 0:
		config.BatchSize = calendar.MaxBatchSize
	}
	switch {
	case config.ZoneLookupConcurrency < 0:
		return nil, fmt.Errorf("zone lookup concurrency must be positive, got %d", config.ZoneLookupConcurrency)
	case config.ZoneLookupConcurrency == 0:
		config.ZoneLookupConcurrency = calendar.DefaultZoneLookupConcurrency
	}

	shutdownCtx, cancel := context.WithCancel(ctx)
	sc := &ServerContext{
		ctx:    shutdownCtx,
		cancel: cancel,
		config: config,
		logger: slog.Default(),
	}
	sc.factory = sc.defaultClients
	return sc, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Config returns the server configuration.
func (sc *ServerContext) Config() Config {
	return sc.config
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() *slog.Logger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.logger
}

// SetLogger replaces the server logger.
func (sc *ServerContext) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.logger = logger
}

// Metrics returns the metrics recorder, or nil when instrumentation is off.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// SetMetrics sets the metrics recorder.
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = m
}

// AuditLogger returns the audit logger, or nil when audit logging is off.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auditLogger
}

// SetAuditLogger sets the audit logger.
func (sc *ServerContext) SetAuditLogger(al *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.auditLogger = al
}

// SetClientFactory replaces how Calendar clients are built. Tests use it to
// point the tools at fakes.
func (sc *ServerContext) SetClientFactory(f ClientFactory) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if f == nil {
		sc.factory = sc.defaultClients
		return
	}
	sc.factory = f
}

// ClientsFor builds the Calendar clients for creds. Missing OAuth client
// settings are filled in from the server configuration.
func (sc *ServerContext) ClientsFor(ctx context.Context, creds google.Credentials) (*Clients, error) {
	if creds.ClientID == "" {
		creds.ClientID = sc.config.GoogleClientID
	}
	if creds.ClientSecret == "" {
		creds.ClientSecret = sc.config.GoogleClientSecret
	}
	if err := creds.Validate(); err != nil {
		return nil, calendar.NewValidationError("access_token", err.Error())
	}

	sc.mu.RLock()
	factory := sc.factory
	sc.mu.RUnlock()

	return factory(ctx, creds)
}

// WithRequestTimeout derives a context bounded by the configured request
// timeout.
func (sc *ServerContext) WithRequestTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, sc.config.RequestTimeout)
}

func (sc *ServerContext) defaultClients(ctx context.Context, creds google.Credentials) (*Clients, error) {
	// The token source outlives the request context so that refreshed tokens
	// stay usable for the whole invocation.
	httpClient, err := google.HTTPClient(sc.ctx, creds)
	if err != nil {
		return nil, err
	}

	client, err := calendar.NewClient(ctx, calendar.ClientConfig{
		HTTPClient:       httpClient,
		CalendarEndpoint: sc.config.CalendarEndpoint,
		OAuth2Endpoint:   sc.config.OAuth2Endpoint,
		Metrics:          sc.Metrics(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar client: %w", err)
	}

	return &Clients{
		Calendar: client,
		Batch:    calendar.NewHTTPBatchChannel(httpClient, sc.config.BatchEndpoint),
	}, nil
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
