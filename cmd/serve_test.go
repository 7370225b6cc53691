package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calquery/internal/calendar"
	"github.com/teemow/calquery/internal/server"
)

func TestLoadServeEnvVars(t *testing.T) {
	t.Setenv("GOOGLE_CLIENT_ID", "env-client")
	t.Setenv("GOOGLE_CLIENT_SECRET", "env-secret")
	t.Setenv("CALENDAR_API_ENDPOINT", "http://127.0.0.1:9999/calendar/v3/")
	t.Setenv("REQUEST_TIMEOUT", "15s")
	t.Setenv("RATE_LIMIT", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("BATCH_SIZE", "20")
	t.Setenv("ZONE_LOOKUP_CONCURRENCY", "3")
	t.Setenv("TRUST_PROXY", "true")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("LOG_FORMAT", "json")

	cmd := newServeCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--google-client-id", "flag-client"}))

	var cfg ServeConfig
	cfg.GoogleClientID = "flag-client"
	cfg.RequestTimeout = server.DefaultRequestTimeout
	cfg.Metrics.Enabled = true
	require.NoError(t, loadServeEnvVars(cmd, &cfg))

	assert.Equal(t, "flag-client", cfg.GoogleClientID, "explicit flags win over env")
	assert.Equal(t, "env-secret", cfg.GoogleClientSecret)
	assert.Equal(t, "http://127.0.0.1:9999/calendar/v3/", cfg.CalendarEndpoint)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 2.5, cfg.RateLimit)
	assert.Equal(t, 5, cfg.RateLimitBurst)
	assert.Equal(t, 20, cfg.BatchSize)
	assert.Equal(t, 3, cfg.ZoneLookupConcurrency)
	assert.True(t, cfg.TrustProxy)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadServeEnvVars_Invalid(t *testing.T) {
	tests := []struct {
		env   string
		value string
	}{
		{"REQUEST_TIMEOUT", "soon"},
		{"RATE_LIMIT", "fast"},
		{"RATE_LIMIT_BURST", "many"},
		{"BATCH_SIZE", "big"},
		{"ZONE_LOOKUP_CONCURRENCY", "lots"},
		{"TRUST_PROXY", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)

			var cfg ServeConfig
			err := loadServeEnvVars(newServeCmd(), &cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.env)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := newLogger(&buf, "json", false)
	require.NoError(t, err)
	logger.Debug("hidden")
	logger.Info("shown", "calendar", "primary")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	logger, err = newLogger(&buf, "TEXT", true)
	require.NoError(t, err)
	logger.Debug("visible")
	assert.Contains(t, buf.String(), "msg=visible")

	_, err = newLogger(&buf, "xml", false)
	assert.Error(t, err)
}

func TestServeCmdDefaults(t *testing.T) {
	cmd := newServeCmd()

	transport, err := cmd.Flags().GetString("transport")
	require.NoError(t, err)
	assert.Equal(t, "stdio", transport)

	timeout, err := cmd.Flags().GetDuration("request-timeout")
	require.NoError(t, err)
	assert.Equal(t, server.DefaultRequestTimeout, timeout)

	batchSize, err := cmd.Flags().GetInt("batch-size")
	require.NoError(t, err)
	assert.Equal(t, calendar.MaxBatchSize, batchSize)

	lookups, err := cmd.Flags().GetInt("zone-lookup-concurrency")
	require.NoError(t, err)
	assert.Equal(t, calendar.DefaultZoneLookupConcurrency, lookups)

	addr, err := cmd.Flags().GetString("metrics-addr")
	require.NoError(t, err)
	assert.Equal(t, server.DefaultMetricsAddr, addr)
}

func TestGetCategoryFromToolName(t *testing.T) {
	assert.Equal(t, "Google Calendar Tools", getCategoryFromToolName("calendar-manage"))
	assert.Equal(t, "Other", getCategoryFromToolName("ping"))
	assert.Equal(t, "Other", getCategoryFromToolName("mail-send"))
}

func TestGenerateToolsMarkdown(t *testing.T) {
	tool := mcp.NewTool("calendar-manage",
		mcp.WithDescription("Read calendars"),
		mcp.WithString("operation", mcp.Required(), mcp.Enum("list-events", "list-colors"), mcp.Description("Operation to perform")),
		mcp.WithBoolean("includeReport"),
	)

	md := generateToolsMarkdown([]mcp.Tool{tool})

	assert.Contains(t, md, "## Google Calendar Tools")
	assert.Contains(t, md, "### calendar-manage\n\nRead calendars\n\n")
	assert.Contains(t, md, "- `operation` (required): Operation to perform (one of: `list-events`, `list-colors`)")
	assert.Contains(t, md, "- `includeReport` (optional): boolean parameter")
	assert.Less(t, strings.Index(md, "`includeReport`"), strings.Index(md, "`operation`"))
}
