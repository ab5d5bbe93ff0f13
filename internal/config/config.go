// Package config loads the gateway's configuration from a YAML file with
// environment-variable overrides, grounded on the teacher's
// internal/config/config.go (LoadLoginServer: defaults struct, optional
// YAML file, yaml.Unmarshal over it) generalized with an env-override
// pass the teacher's loader doesn't have, since the gateway's production
// deployment target configures itself entirely through the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Gateway holds every runtime setting the gateway needs, populated from a
// YAML file (if present) then overridden by GATEWAY_*/other env vars.
type Gateway struct {
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`
	AdminPort   int    `yaml:"admin_port"`

	BackendURL        string        `yaml:"backend_url"`
	BackendTimeout    time.Duration `yaml:"backend_timeout"`
	BackendStreamAddr string        `yaml:"backend_stream_addr"`

	AllowedOrigins  []string `yaml:"allowed_origins"`
	AllowNoOrigin   bool     `yaml:"allow_no_origin"`
	TrustedProxyCIDRs []string `yaml:"trusted_proxy_cidrs"`

	SessionRateLimitPoints int           `yaml:"session_rate_limit_points"`
	EventTimeout           time.Duration `yaml:"event_timeout"`
	DrainTimeout           time.Duration `yaml:"drain_timeout"`

	MaxConnectionsPerIP int           `yaml:"max_connections_per_ip"`
	MaxTotalSessions    int           `yaml:"max_total_sessions"`
	MessageBucketMax    int           `yaml:"message_bucket_max"`
	MessageBucketWindow time.Duration `yaml:"message_bucket_window"`
	MessageBucketBlock  time.Duration `yaml:"message_bucket_block"`

	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`

	MetricsAuthToken string `yaml:"metrics_auth_token"`

	Database DatabaseConfig `yaml:"database"`

	LogLevel string `yaml:"log_level"`

	// Env is NODE_ENV's Go-side equivalent: "development", "test", or
	// "production". Development/test bypass metrics auth and relax the
	// required-config check, mirroring the spec's NODE_ENV gate.
	Env string `yaml:"env"`
}

// DatabaseConfig holds PostgreSQL connection parameters for the
// nonce-snapshot store.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// IsDevMode reports whether Env is development or test, the two values
// that bypass metrics auth per the spec.
func (g Gateway) IsDevMode() bool {
	return g.Env == "development" || g.Env == "test"
}

// Default returns Gateway config with local-development addresses but Env
// set to "production", so an unset NODE_ENV gets production validation
// (which fails until MetricsAuthToken is set). A production deployment is
// expected to override BackendURL, AllowedOrigins, MetricsAuthToken, and
// Database via env vars or a YAML file.
func Default() Gateway {
	return Gateway{
		BindAddress:            "0.0.0.0",
		Port:                   8080,
		AdminPort:              8081,
		BackendURL:             "http://127.0.0.1:9090",
		BackendTimeout:         5 * time.Second,
		BackendStreamAddr:      "127.0.0.1:9091",
		AllowNoOrigin:          true,
		SessionRateLimitPoints: 10,
		EventTimeout:           30 * time.Second,
		DrainTimeout:           30 * time.Second,
		MaxConnectionsPerIP:    20,
		MaxTotalSessions:       5000,
		MessageBucketMax:       30,
		MessageBucketWindow:    60 * time.Second,
		MessageBucketBlock:     30 * time.Second,
		IdempotencyTTL:         10 * time.Minute,
		LogLevel:               "info",
		Env:                    "production",
		Database: DatabaseConfig{
			Host:    "127.0.0.1",
			Port:    5432,
			User:    "rtgateway",
			Password: "rtgateway",
			DBName:  "rtgateway",
			SSLMode: "disable",
		},
	}
}

// Load reads path (if present) over the defaults, then applies env-var
// overrides, then validates. A missing file is not an error: env vars
// alone are a valid production configuration.
func Load(path string) (Gateway, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// fall through to env overrides on top of defaults
		default:
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Gateway) {
	if v, ok := os.LookupEnv("GATEWAY_BIND_ADDRESS"); ok {
		cfg.BindAddress = v
	}
	if v, ok := envInt("GATEWAY_PORT"); ok {
		cfg.Port = v
	}
	if v, ok := envInt("GATEWAY_ADMIN_PORT"); ok {
		cfg.AdminPort = v
	}
	if v, ok := os.LookupEnv("GATEWAY_BACKEND_URL"); ok {
		cfg.BackendURL = v
	}
	if v, ok := os.LookupEnv("GATEWAY_BACKEND_STREAM_ADDR"); ok {
		cfg.BackendStreamAddr = v
	}
	if v, ok := envDuration("GATEWAY_BACKEND_TIMEOUT_MS"); ok {
		cfg.BackendTimeout = v
	}
	if v, ok := os.LookupEnv("GATEWAY_ALLOWED_ORIGINS"); ok {
		cfg.AllowedOrigins = splitNonEmpty(v, ",")
	}
	if v, ok := envBool("GATEWAY_ALLOW_NO_ORIGIN"); ok {
		cfg.AllowNoOrigin = v
	}
	if v, ok := os.LookupEnv("TRUSTED_PROXY_CIDRS"); ok {
		cfg.TrustedProxyCIDRs = splitNonEmpty(v, ",")
	}
	if v, ok := envInt("GATEWAY_SESSION_RATE_LIMIT_POINTS"); ok {
		cfg.SessionRateLimitPoints = v
	}
	if v, ok := envInt("GATEWAY_MAX_CONNECTIONS_PER_IP"); ok {
		cfg.MaxConnectionsPerIP = v
	}
	if v, ok := envInt("GATEWAY_MAX_TOTAL_SESSIONS"); ok {
		cfg.MaxTotalSessions = v
	}
	if v, ok := envInt("GATEWAY_MESSAGE_BUCKET_MAX"); ok {
		cfg.MessageBucketMax = v
	}
	if v, ok := envDuration("GATEWAY_MESSAGE_BUCKET_WINDOW_MS"); ok {
		cfg.MessageBucketWindow = v
	}
	if v, ok := envDuration("GATEWAY_MESSAGE_BUCKET_BLOCK_MS"); ok {
		cfg.MessageBucketBlock = v
	}
	if v, ok := envDuration("GATEWAY_EVENT_TIMEOUT_MS"); ok {
		cfg.EventTimeout = v
	}
	if v, ok := envDuration("GATEWAY_DRAIN_TIMEOUT_MS"); ok {
		cfg.DrainTimeout = v
	}
	if v, ok := os.LookupEnv("METRICS_AUTH_TOKEN"); ok {
		cfg.MetricsAuthToken = v
	}
	if v, ok := os.LookupEnv("NODE_ENV"); ok {
		cfg.Env = v
	}
	if v, ok := os.LookupEnv("GATEWAY_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("GATEWAY_DB_HOST"); ok {
		cfg.Database.Host = v
	}
	if v, ok := envInt("GATEWAY_DB_PORT"); ok {
		cfg.Database.Port = v
	}
	if v, ok := os.LookupEnv("GATEWAY_DB_USER"); ok {
		cfg.Database.User = v
	}
	if v, ok := os.LookupEnv("GATEWAY_DB_PASSWORD"); ok {
		cfg.Database.Password = v
	}
	if v, ok := os.LookupEnv("GATEWAY_DB_NAME"); ok {
		cfg.Database.DBName = v
	}
}

func envInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) (bool, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func envDuration(key string) (time.Duration, bool) {
	ms, ok := envInt(key)
	if !ok {
		return 0, false
	}
	return time.Duration(ms) * time.Millisecond, true
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// validate enforces required production config, aggregating every
// problem into one actionable error rather than failing on the first.
func validate(cfg Gateway) error {
	if cfg.IsDevMode() {
		return nil
	}

	var problems []string
	if len(cfg.AllowedOrigins) == 0 && !cfg.AllowNoOrigin {
		problems = append(problems, "GATEWAY_ALLOWED_ORIGINS is required in production (set it, or set GATEWAY_ALLOW_NO_ORIGIN=true to explicitly allow no-Origin clients)")
	}
	if isPlaceholderToken(cfg.MetricsAuthToken) {
		problems = append(problems, fmt.Sprintf("METRICS_AUTH_TOKEN is missing or a placeholder (%s) — set a real secret", redact(cfg.MetricsAuthToken)))
	}
	if cfg.BackendURL == "" {
		problems = append(problems, "GATEWAY_BACKEND_URL is required in production")
	}
	if cfg.BackendStreamAddr == "" {
		problems = append(problems, "GATEWAY_BACKEND_STREAM_ADDR is required in production")
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("invalid production configuration:\n  - %s", strings.Join(problems, "\n  - "))
}

func isPlaceholderToken(token string) bool {
	return token == "" || strings.HasPrefix(token, "your_") || strings.HasPrefix(token, "PLACEHOLDER_")
}

// redact renders a secret for inclusion in an error message: fully
// masked under 8 characters, otherwise the first 2 characters followed
// by an ellipsis, enough to recognize "yes that's the value I set"
// without leaking it into logs.
func redact(secret string) string {
	if secret == "" {
		return "(empty)"
	}
	if len(secret) < 8 {
		return "[REDACTED]"
	}
	return secret[:2] + "..."
}
