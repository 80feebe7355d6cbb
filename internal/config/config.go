package config

import (
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/vango-dev/eventwire/internal/errors"
)

const (
	// ConfigFileName is the configuration file looked up in the working
	// directory when none is given.
	ConfigFileName = "eventwire.yaml"

	// EnvPrefix prefixes environment overrides.
	EnvPrefix = "EVENTWIRE_"

	// DefaultPort is the default server port.
	DefaultPort = 8080

	// DefaultHost is the default server host.
	DefaultHost = "localhost"

	// DefaultTimeout bounds outbound route calls.
	DefaultTimeout = 30 * time.Second
)

// Config is the complete eventwire configuration.
type Config struct {
	// Document locates the HTML document: a path, file://, http(s):// or
	// s3:// URI.
	Document string `koanf:"document"`

	// Manifest locates the TOML manifest, with the same URI forms.
	Manifest string `koanf:"manifest"`

	// BasePath overrides the manifest's base path for route calls.
	BasePath string `koanf:"base_path"`

	Server  ServerConfig  `koanf:"server"`
	HTTP    HTTPConfig    `koanf:"http"`
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
	Tracing TracingConfig `koanf:"tracing"`
	AWS     AWSConfig     `koanf:"aws"`

	// File is the configuration file that was loaded, if any.
	File string `koanf:"-"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// HTTPConfig contains outbound call settings.
type HTTPConfig struct {
	Timeout time.Duration     `koanf:"timeout"`
	Headers map[string]string `koanf:"headers"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `koanf:"level"`

	// Format is text or json.
	Format string `koanf:"format"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Namespace string `koanf:"namespace"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	Enabled    bool   `koanf:"enabled"`
	TracerName string `koanf:"tracer_name"`
}

// AWSConfig configures the S3 source.
type AWSConfig struct {
	Region string `koanf:"region"`

	// Endpoint overrides the S3 endpoint, for S3-compatible stores.
	Endpoint string `koanf:"endpoint"`
}

// New creates a Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		HTTP: HTTPConfig{
			Timeout: DefaultTimeout,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "eventwire",
		},
		Tracing: TracingConfig{
			TracerName: "eventwire",
		},
	}
}

// defaults returns New() as a flat koanf map.
func defaults() map[string]any {
	c := New()
	return map[string]any{
		"server.host":         c.Server.Host,
		"server.port":         c.Server.Port,
		"http.timeout":        c.HTTP.Timeout.String(),
		"log.level":           c.Log.Level,
		"log.format":          c.Log.Format,
		"metrics.enabled":     c.Metrics.Enabled,
		"metrics.namespace":   c.Metrics.Namespace,
		"tracing.enabled":     c.Tracing.Enabled,
		"tracing.tracer_name": c.Tracing.TracerName,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.New("E320").
			WithDetail("server.port must be between 0 and 65535")
	}
	if c.HTTP.Timeout < 0 {
		return errors.New("E320").
			WithDetail("http.timeout must not be negative")
	}
	if _, ok := parseLevel(c.Log.Level); !ok {
		return errors.New("E320").
			WithDetailf("unknown log.level %q", c.Log.Level).
			WithSuggestion("Use debug, info, warn or error")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.New("E320").
			WithDetailf("unknown log.format %q", c.Log.Format).
			WithSuggestion("Use text or json")
	}
	return nil
}

// Address returns the server listen address.
func (c *Config) Address() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

// Logger builds the logger described by the log settings.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}
