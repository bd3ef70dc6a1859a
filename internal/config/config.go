// Package config loads service configuration from a YAML file and
// CRIMELAB_* environment variables.
//
// Precedence, lowest first: Default(), the YAML file, the environment. CLI
// flags are applied by the caller on top.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that reads from YAML as a Go duration string
// such as "3s" or "168h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Activity log backends.
const (
	BackendBadger = "badger"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Tracing exporters.
const (
	TracingNone   = "none"
	TracingStdout = "stdout"
)

// Config is the complete service configuration.
type Config struct {
	HTTPAddr      string    `yaml:"http_addr"`
	Database      string    `yaml:"database"`
	Catalog       string    `yaml:"catalog"`
	WebhookSecret string    `yaml:"webhook_secret"`
	EnableReset   bool      `yaml:"enable_reset"`
	ActivityRate  float64   `yaml:"activity_rate"`
	ActivityBurst int       `yaml:"activity_burst"`
	Tracing       string    `yaml:"tracing"`
	Activity      Activity  `yaml:"activity"`
	Feed          Feed      `yaml:"feed"`
	Analytics     Analytics `yaml:"analytics"`
}

// Activity configures the activity log.
type Activity struct {
	Backend    string   `yaml:"backend"`
	BadgerPath string   `yaml:"badger_path"`
	RedisAddr  string   `yaml:"redis_addr"`
	Retention  Duration `yaml:"retention"`
}

// Feed configures live feed loops.
type Feed struct {
	Interval     Duration `yaml:"interval"`
	Lifetime     Duration `yaml:"lifetime"`
	ActiveWindow Duration `yaml:"active_window"`
}

// Analytics configures the aggregator.
type Analytics struct {
	TopN int `yaml:"top_n"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		HTTPAddr:      ":8080",
		Database:      "crimelab.db",
		ActivityRate:  20,
		ActivityBurst: 40,
		Tracing:       TracingNone,
		Activity: Activity{
			Backend:    BackendBadger,
			BadgerPath: "crimelab-activity",
			Retention:  Duration(7 * 24 * time.Hour),
		},
		Feed: Feed{
			Interval:     Duration(3 * time.Second),
			Lifetime:     Duration(5 * time.Minute),
			ActiveWindow: Duration(30 * time.Second),
		},
		Analytics: Analytics{TopN: 10},
	}
}

// Load reads the YAML file at path (if path is non-empty) over the defaults,
// applies environment overrides and validates the result.
//
// Unknown YAML fields are errors.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides fields from CRIMELAB_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"CRIMELAB_HTTP_ADDR":            &c.HTTPAddr,
		"CRIMELAB_DATABASE":             &c.Database,
		"CRIMELAB_CATALOG":              &c.Catalog,
		"CRIMELAB_WEBHOOK_SECRET":       &c.WebhookSecret,
		"CRIMELAB_TRACING":              &c.Tracing,
		"CRIMELAB_ACTIVITY_BACKEND":     &c.Activity.Backend,
		"CRIMELAB_ACTIVITY_BADGER_PATH": &c.Activity.BadgerPath,
		"CRIMELAB_ACTIVITY_REDIS_ADDR":  &c.Activity.RedisAddr,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	durations := map[string]*Duration{
		"CRIMELAB_ACTIVITY_RETENTION": &c.Activity.Retention,
		"CRIMELAB_FEED_INTERVAL":      &c.Feed.Interval,
		"CRIMELAB_FEED_LIFETIME":      &c.Feed.Lifetime,
		"CRIMELAB_FEED_ACTIVE_WINDOW": &c.Feed.ActiveWindow,
	}
	for key, dst := range durations {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = Duration(d)
		}
	}

	if v, ok := lookup("CRIMELAB_ENABLE_RESET"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CRIMELAB_ENABLE_RESET: %w", err)
		}
		c.EnableReset = b
	}
	if v, ok := lookup("CRIMELAB_ANALYTICS_TOP_N"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CRIMELAB_ANALYTICS_TOP_N: %w", err)
		}
		c.Analytics.TopN = n
	}
	if v, ok := lookup("CRIMELAB_ACTIVITY_RATE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("CRIMELAB_ACTIVITY_RATE: %w", err)
		}
		c.ActivityRate = f
	}
	if v, ok := lookup("CRIMELAB_ACTIVITY_BURST"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CRIMELAB_ACTIVITY_BURST: %w", err)
		}
		c.ActivityBurst = n
	}
	return nil
}

// Validate reports every problem with the configuration.
func (c Config) Validate() error {
	var problems []string
	if c.Database == "" {
		problems = append(problems, "database is required")
	}
	switch c.Activity.Backend {
	case BackendBadger, BackendMemory:
	case BackendRedis:
		if c.Activity.RedisAddr == "" {
			problems = append(problems, "activity.redis_addr is required for the redis backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("activity.backend %q is not one of badger, redis, memory", c.Activity.Backend))
	}
	switch c.Tracing {
	case TracingNone, TracingStdout:
	default:
		problems = append(problems, fmt.Sprintf("tracing %q is not one of none, stdout", c.Tracing))
	}

	durations := []struct {
		name  string
		value Duration
	}{
		{"activity.retention", c.Activity.Retention},
		{"feed.interval", c.Feed.Interval},
		{"feed.lifetime", c.Feed.Lifetime},
		{"feed.active_window", c.Feed.ActiveWindow},
	}
	for _, d := range durations {
		if d.value <= 0 {
			problems = append(problems, d.name+" must be positive")
		}
	}
	if c.Analytics.TopN <= 0 {
		problems = append(problems, "analytics.top_n must be positive")
	}
	if c.ActivityRate <= 0 || c.ActivityBurst <= 0 {
		problems = append(problems, "activity_rate and activity_burst must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
