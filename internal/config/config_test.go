package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadNoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFullFile(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "full.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "/var/lib/crimelab/crimelab.db", cfg.Database)
	assert.Equal(t, "data/catalog.cue", cfg.Catalog)
	assert.Equal(t, "s3cret", cfg.WebhookSecret)
	assert.True(t, cfg.EnableReset)
	assert.Equal(t, 5.0, cfg.ActivityRate)
	assert.Equal(t, 10, cfg.ActivityBurst)
	assert.Equal(t, TracingStdout, cfg.Tracing)
	assert.Equal(t, BackendRedis, cfg.Activity.Backend)
	assert.Equal(t, "localhost:6379", cfg.Activity.RedisAddr)
	assert.Equal(t, 48*time.Hour, cfg.Activity.Retention.Std())
	assert.Equal(t, time.Second, cfg.Feed.Interval.Std())
	assert.Equal(t, 2*time.Minute, cfg.Feed.Lifetime.Std())
	assert.Equal(t, 10*time.Second, cfg.Feed.ActiveWindow.Std())
	assert.Equal(t, 5, cfg.Analytics.TopN)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := writeFile(t, "feed:\n  interval: 500ms\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, cfg.Feed.Interval.Std())
	assert.Equal(t, Default().Feed.Lifetime, cfg.Feed.Lifetime)
	assert.Equal(t, Default().HTTPAddr, cfg.HTTPAddr)
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeFile(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "unknown.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "databse_path")
}

func TestLoadRejectsBadDuration(t *testing.T) {
	_, err := Load(writeFile(t, "feed:\n  interval: soon\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("CRIMELAB_HTTP_ADDR", ":7070")
	t.Setenv("CRIMELAB_ACTIVITY_BACKEND", "memory")
	t.Setenv("CRIMELAB_FEED_INTERVAL", "250ms")
	t.Setenv("CRIMELAB_ENABLE_RESET", "false")
	t.Setenv("CRIMELAB_ANALYTICS_TOP_N", "3")
	t.Setenv("CRIMELAB_ACTIVITY_RATE", "1.5")
	t.Setenv("CRIMELAB_ACTIVITY_BURST", "2")

	cfg, err := Load(filepath.Join("testdata", "full.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.HTTPAddr)
	assert.Equal(t, BackendMemory, cfg.Activity.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.Feed.Interval.Std())
	assert.False(t, cfg.EnableReset)
	assert.Equal(t, 3, cfg.Analytics.TopN)
	assert.Equal(t, 1.5, cfg.ActivityRate)
	assert.Equal(t, 2, cfg.ActivityBurst)
	// Untouched by env.
	assert.Equal(t, "s3cret", cfg.WebhookSecret)
}

func TestEnvRejectsMalformedValues(t *testing.T) {
	tests := map[string]string{
		"CRIMELAB_FEED_LIFETIME":   "forever",
		"CRIMELAB_ENABLE_RESET":    "maybe",
		"CRIMELAB_ANALYTICS_TOP_N": "ten",
		"CRIMELAB_ACTIVITY_RATE":   "fast",
		"CRIMELAB_ACTIVITY_BURST":  "big",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no database", func(c *Config) { c.Database = "" }, "database is required"},
		{"unknown backend", func(c *Config) { c.Activity.Backend = "kafka" }, `"kafka"`},
		{"redis without addr", func(c *Config) { c.Activity.Backend = BackendRedis }, "redis_addr"},
		{"unknown tracing", func(c *Config) { c.Tracing = "jaeger" }, `"jaeger"`},
		{"zero retention", func(c *Config) { c.Activity.Retention = 0 }, "activity.retention"},
		{"negative interval", func(c *Config) { c.Feed.Interval = -1 }, "feed.interval"},
		{"zero lifetime", func(c *Config) { c.Feed.Lifetime = 0 }, "feed.lifetime"},
		{"zero active window", func(c *Config) { c.Feed.ActiveWindow = 0 }, "feed.active_window"},
		{"zero top n", func(c *Config) { c.Analytics.TopN = 0 }, "top_n"},
		{"zero burst", func(c *Config) { c.ActivityBurst = 0 }, "activity_burst"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Database = ""
	cfg.Tracing = "zipkin"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is required")
	assert.Contains(t, err.Error(), `"zipkin"`)
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crimelab.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
