package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsProductionModeAndRequiresMetricsToken(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.IsDevMode())
	err := validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "METRICS_AUTH_TOKEN")
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	t.Setenv("NODE_ENV", "development")
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Port, cfg.Port)
}

func TestLoadReadsYAMLOverDefaults(t *testing.T) {
	t.Setenv("NODE_ENV", "development")
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9999\nlog_level: debug\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestEnvOverridesWinOverYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9999\n"), 0o644))

	t.Setenv("GATEWAY_PORT", "7000")
	t.Setenv("NODE_ENV", "development")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, "development", cfg.Env)
}

func TestEnvDurationOverrideIsMilliseconds(t *testing.T) {
	t.Setenv("NODE_ENV", "development")
	t.Setenv("GATEWAY_DRAIN_TIMEOUT_MS", "5000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.DrainTimeout)
}

func TestValidateAggregatesEveryProductionProblem(t *testing.T) {
	cfg := Default()
	cfg.Env = "production"
	cfg.AllowedOrigins = nil
	cfg.AllowNoOrigin = false
	cfg.MetricsAuthToken = ""
	cfg.BackendURL = ""
	cfg.BackendStreamAddr = ""

	err := validate(cfg)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "GATEWAY_ALLOWED_ORIGINS")
	assert.Contains(t, msg, "METRICS_AUTH_TOKEN")
	assert.Contains(t, msg, "GATEWAY_BACKEND_URL")
	assert.Contains(t, msg, "GATEWAY_BACKEND_STREAM_ADDR")
}

func TestValidateRejectsPlaceholderToken(t *testing.T) {
	cfg := Default()
	cfg.Env = "production"
	cfg.AllowNoOrigin = true
	cfg.BackendURL = "http://backend"
	cfg.BackendStreamAddr = "backend:9091"
	cfg.MetricsAuthToken = "your_metrics_token_here"

	err := validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "placeholder")
}

func TestValidatePassesWithRealProductionConfig(t *testing.T) {
	cfg := Default()
	cfg.Env = "production"
	cfg.AllowedOrigins = []string{"https://example.com"}
	cfg.BackendURL = "http://backend"
	cfg.BackendStreamAddr = "backend:9091"
	cfg.MetricsAuthToken = "s3cr3t-real-token"

	assert.NoError(t, validate(cfg))
}

func TestRedactShortSecretFullyMasked(t *testing.T) {
	assert.Equal(t, "[REDACTED]", redact("short"))
}

func TestRedactLongSecretShowsPrefixOnly(t *testing.T) {
	assert.Equal(t, "ab...", redact("abcdefgh"))
}

func TestRedactEmptySecret(t *testing.T) {
	assert.Equal(t, "(empty)", redact(""))
}

func TestIsPlaceholderToken(t *testing.T) {
	assert.True(t, isPlaceholderToken(""))
	assert.True(t, isPlaceholderToken("your_token"))
	assert.True(t, isPlaceholderToken("PLACEHOLDER_abc"))
	assert.False(t, isPlaceholderToken("a-real-secret-value"))
}

func TestDatabaseConfigDSN(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "n", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/n?sslmode=disable", db.DSN())
}
