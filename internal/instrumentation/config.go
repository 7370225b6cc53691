package instrumentation

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// DefaultServiceName is reported as service.name unless OTEL_SERVICE_NAME
// overrides it.
const DefaultServiceName = "calquery"

// Histogram boundaries applied when no override is configured.
var (
	// DefaultFreeSlotBuckets bound the number of slots returned by one
	// availability query.
	DefaultFreeSlotBuckets = []float64{0, 1, 2, 5, 10, 25, 50, 100}

	// DefaultLatencyBuckets bound Google API and tool durations in seconds.
	DefaultLatencyBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
)

// Config holds the telemetry settings of the server.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// ServiceInstanceID defaults to the host name.
	ServiceInstanceID string

	// Enabled turns metrics, tracing and audit logging on.
	Enabled bool

	// MetricsExporter is one of prometheus, otlp, stdout.
	MetricsExporter string

	// TracingExporter is one of otlp, stdout, none.
	TracingExporter string

	// OTLPEndpoint is host:port of the collector, without scheme.
	OTLPEndpoint string

	// OTLPInsecure disables TLS towards the collector.
	OTLPInsecure bool

	// TraceSamplingRate is the ratio of root spans kept, 0.0 to 1.0.
	TraceSamplingRate float64

	// DetailedLabels adds the calendar domain to tool metrics.
	DetailedLabels bool

	// FreeSlotBuckets overrides the calendar_free_slots_suggested
	// boundaries. Empty keeps the instrument defaults.
	FreeSlotBuckets []float64

	// LatencyBuckets overrides the boundaries, in seconds, of
	// google_api_operation_duration_seconds and mcp_tool_duration_seconds.
	// Empty keeps the instrument defaults.
	LatencyBuckets []float64

	AuditLogging AuditLoggingConfig
}

// AuditLoggingConfig holds configuration for audit logging.
type AuditLoggingConfig struct {
	Enabled bool

	// IncludePII logs full calendar IDs instead of their domains.
	IncludePII bool
}

// LoadConfig reads the telemetry settings from the environment through
// getenv. Unset variables take their defaults; malformed ones are reported
// together in the returned error.
func LoadConfig(getenv func(string) string) (Config, error) {
	env := envReader{getenv: getenv}

	cfg := Config{
		ServiceName:       env.str("OTEL_SERVICE_NAME", DefaultServiceName),
		ServiceVersion:    "unknown",
		ServiceInstanceID: env.str("OTEL_SERVICE_INSTANCE_ID", ""),
		Enabled:           env.boolean("INSTRUMENTATION_ENABLED", true),
		MetricsExporter:   env.str("METRICS_EXPORTER", ExporterPrometheus),
		TracingExporter:   env.str("TRACING_EXPORTER", ExporterNone),
		OTLPEndpoint:      env.str("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:      env.boolean("OTEL_EXPORTER_OTLP_INSECURE", false),
		TraceSamplingRate: env.float("OTEL_TRACES_SAMPLER_ARG", 0.1),
		DetailedLabels:    env.boolean("METRICS_DETAILED_LABELS", false),
		FreeSlotBuckets:   env.buckets("METRICS_FREE_SLOT_BUCKETS", DefaultFreeSlotBuckets),
		LatencyBuckets:    env.buckets("METRICS_LATENCY_BUCKETS", DefaultLatencyBuckets),
		AuditLogging: AuditLoggingConfig{
			Enabled:    env.boolean("AUDIT_LOGGING_ENABLED", true),
			IncludePII: env.boolean("AUDIT_LOGGING_INCLUDE_PII", false),
		},
	}

	if err := errors.Join(env.errs...); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate)
	}

	switch c.MetricsExporter {
	case "", ExporterPrometheus, ExporterOTLP, ExporterStdout:
	default:
		return fmt.Errorf("invalid metrics exporter %q, must be one of: prometheus, otlp, stdout", c.MetricsExporter)
	}

	switch c.TracingExporter {
	case "", ExporterOTLP, ExporterStdout, ExporterNone:
	default:
		return fmt.Errorf("invalid tracing exporter %q, must be one of: otlp, stdout, none", c.TracingExporter)
	}

	if c.OTLPEndpoint == "" && (c.TracingExporter == ExporterOTLP || c.MetricsExporter == ExporterOTLP) {
		return fmt.Errorf("OTLP endpoint is required when using an OTLP exporter")
	}

	if err := validateBuckets("free slot buckets", c.FreeSlotBuckets, 0); err != nil {
		return err
	}
	return validateBuckets("latency buckets", c.LatencyBuckets, 0)
}

// validateBuckets requires strictly increasing boundaries no lower than
// floor. An empty slice is valid.
func validateBuckets(name string, bounds []float64, floor float64) error {
	for i, b := range bounds {
		if b < floor {
			return fmt.Errorf("%s must not be below %g, got %g", name, floor, b)
		}
		if i > 0 && b <= bounds[i-1] {
			return fmt.Errorf("%s must be strictly increasing, got %g after %g", name, b, bounds[i-1])
		}
	}
	return nil
}

// envReader reads typed values and collects every parse failure.
type envReader struct {
	getenv func(string) string
	errs   []error
}

func (r *envReader) str(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *envReader) boolean(key string, def bool) bool {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return def
	}
	return parsed
}

func (r *envReader) float(key string, def float64) float64 {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not a number", key, v))
		return def
	}
	return parsed
}

// buckets parses a comma separated list such as "0,1,5,10".
func (r *envReader) buckets(key string, def []float64) []float64 {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return slices.Clone(def)
	}
	var out []float64
	for field := range strings.SplitSeq(v, ",") {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %q is not a number", key, field))
			return slices.Clone(def)
		}
		out = append(out, parsed)
	}
	return out
}

// Constants for metric label values.
const (
	// Status values
	StatusSuccess = "success"
	StatusError   = "error"
	StatusUnknown = "unknown"

	// BatchResultMissing marks a batched sub-request the batch response did
	// not answer.
	BatchResultMissing = "missing"

	// Google service names
	ServiceCalendar = "calendar"
	ServiceOAuth2   = "oauth2"

	// Exporter types
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"

	// Metric recording intervals
	DefaultMetricInterval = 10 * time.Second
)
