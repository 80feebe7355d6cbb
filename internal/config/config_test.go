package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/eventwire/internal/errors"
)

func TestNewDefaults(t *testing.T) {
	cfg := New()
	assert.Equal(t, DefaultHost, cfg.Server.Host)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, DefaultTimeout, cfg.HTTP.Timeout)
	assert.Equal(t, "localhost:8080", cfg.Address())
	assert.NoError(t, cfg.Validate())
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "eventwire.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
document: ./page.html
manifest: ./routes.toml
server:
  port: 9000
http:
  timeout: 5s
  headers:
    X-Client: eventwire
log:
  level: debug
aws:
  region: eu-west-1
`), 0o644))

	t.Setenv("EVENTWIRE_SERVER_PORT", "9100")
	t.Setenv("EVENTWIRE_LOG_FORMAT", "json")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("config", "", "")
	flags.String("log-level", "info", "")
	flags.Int("port", 0, "")
	flags.String("document", "", "")
	require.NoError(t, flags.Parse([]string{"--config", path, "--log-level", "warn"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "./page.html", cfg.Document)
	assert.Equal(t, "./routes.toml", cfg.Manifest)
	assert.Equal(t, 9100, cfg.Server.Port, "env overrides file")
	assert.Equal(t, "warn", cfg.Log.Level, "flag overrides file")
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 5*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, "eventwire", cfg.HTTP.Headers["X-Client"])
	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
	assert.Equal(t, DefaultHost, cfg.Server.Host, "default survives")
}

func TestLoadWithoutFile(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Empty(t, cfg.File)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
}

func TestLoadInvalid(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("EVENTWIRE_LOG_LEVEL", "loud")
	_, err := Load("", nil)
	require.Error(t, err)
	assert.Equal(t, "E320", errors.CodeOf(err))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
	assert.Equal(t, "E320", errors.CodeOf(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 70000 }},
		{"timeout", func(c *Config) { c.HTTP.Timeout = -time.Second }},
		{"level", func(c *Config) { c.Log.Level = "loud" }},
		{"format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, "E320", errors.CodeOf(err))
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := New()
	cfg.Log.Format = "json"
	cfg.Log.Level = "warn"

	logger := cfg.Logger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"k":"v"`)
}

func TestEnvAndFlagKeys(t *testing.T) {
	assert.Equal(t, "server.port", envKey("EVENTWIRE_SERVER_PORT"))
	assert.Equal(t, "tracing.tracer_name", envKey("EVENTWIRE_TRACING_TRACER_NAME"))
	assert.Equal(t, "base_path", envKey("EVENTWIRE_BASE_PATH"))
	assert.Equal(t, "log.level", flagKey("log-level"))
	assert.Equal(t, "base_path", flagKey("base-path"))
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
