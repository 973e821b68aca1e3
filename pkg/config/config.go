package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/saazpayhq/saazpay/pkg/audit"
	"github.com/saazpayhq/saazpay/pkg/embed"
	"github.com/saazpayhq/saazpay/pkg/observability"
	"github.com/saazpayhq/saazpay/pkg/planchange"
	"gopkg.in/yaml.v3"
)

// Provider kinds
const (
	ProviderREST   = "rest"
	ProviderStripe = "stripe"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Provider      ProviderConfig      `yaml:"provider"`
	Flow          FlowConfig          `yaml:"flow"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	Journal       JournalConfig       `yaml:"journal"`
	Templates     TemplatesConfig     `yaml:"templates"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// AllowedOrigins are the host pages allowed to call the API
	AllowedOrigins []string `yaml:"allowed_origins"`
	// AccessLog writes combined-format access logs to stdout
	AccessLog bool `yaml:"access_log"`
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// ProviderConfig selects the billing backend and carries the embed settings
type ProviderConfig struct {
	// Kind is rest or stripe
	Kind string `yaml:"kind"`
	// BackendURL is the REST backend base URL
	BackendURL string `yaml:"backend_url"`
	// APIKey is the REST bearer token or the Stripe secret key
	APIKey        string        `yaml:"api_key"`
	WebhookSecret string        `yaml:"webhook_secret"`
	Timeout       time.Duration `yaml:"timeout"`

	Embed embed.ProviderConfig `yaml:"embed"`
}

// FlowConfig tunes plan change flows
type FlowConfig struct {
	SettleDelay   time.Duration `yaml:"settle_delay"`
	CommitTimeout time.Duration `yaml:"commit_timeout"`
	SettlePolicy  string        `yaml:"settle_policy"`
	// SessionTTL evicts flows idle for longer
	SessionTTL  time.Duration `yaml:"session_ttl"`
	MaxSessions int           `yaml:"max_sessions"`
	// SweepSchedule is the cron spec of the idle flow sweep
	SweepSchedule string `yaml:"sweep_schedule"`
}

// PlanChange returns the flow configuration. The settle policy must have
// passed Validate.
func (f FlowConfig) PlanChange() planchange.Config {
	cfg := planchange.DefaultConfig()
	cfg.SettleDelay = f.SettleDelay
	if f.CommitTimeout > 0 {
		cfg.CommitTimeout = f.CommitTimeout
	}
	if policy, err := planchange.ParseSettlePolicy(f.SettlePolicy); err == nil {
		cfg.SettlePolicy = policy
	}
	return cfg
}

// CatalogConfig tunes the catalog cache
type CatalogConfig struct {
	TTL      time.Duration `yaml:"ttl"`
	RedisURL string        `yaml:"redis_url"`
	// RefreshSchedule is the cron spec of the background catalog refresh,
	// empty to disable
	RefreshSchedule string `yaml:"refresh_schedule"`
}

// JournalConfig selects the plan change journal store
type JournalConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	RetentionDays   int           `yaml:"retention_days"`
	CleanupSchedule string        `yaml:"cleanup_schedule"`
	// FileDir mirrors entries to rotating NDJSON files when set
	FileDir string `yaml:"file_dir"`
}

// AuditConfig returns the journal store configuration
func (j JournalConfig) AuditConfig() audit.Config {
	return audit.Config{
		Driver:          j.Driver,
		DSN:             j.DSN,
		MaxOpenConns:    j.MaxOpenConns,
		MaxIdleConns:    j.MaxIdleConns,
		ConnMaxLifetime: j.ConnMaxLifetime,
	}
}

// TemplatesConfig locates the portal templates
type TemplatesConfig struct {
	// Dir serves templates from disk and watches them for changes. Empty
	// serves the embedded templates.
	Dir    string `yaml:"dir"`
	Folder string `yaml:"folder"`
	// Timezone renders billing dates, an IANA name
	Timezone string `yaml:"timezone"`
}

// Location returns the configured timezone, UTC when unset or unknown
func (t TemplatesConfig) Location() *time.Location {
	if t.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// RateLimitConfig limits commit requests per flow
type RateLimitConfig struct {
	CommitsPerMinute int  `yaml:"commits_per_minute"`
	Burst            int  `yaml:"burst"`
	Distributed      bool `yaml:"distributed"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"`

	// OTelSampleRatio is the share of traces kept, 1 keeps everything
	OTelSampleRatio    float64       `yaml:"otel_sample_ratio"`
	OTelExportInterval time.Duration `yaml:"otel_export_interval"`
	Environment        string        `yaml:"environment"`
}

// Level returns the parsed log level
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// OTel returns the exporter configuration
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
		ExportInterval: o.OTelExportInterval,
		Environment:    o.Environment,
	}
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    45 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Provider: ProviderConfig{
			Kind:    ProviderREST,
			Timeout: 15 * time.Second,
			Embed:   embed.ProviderConfig{Environment: embed.EnvironmentSandbox},
		},
		Flow: FlowConfig{
			SettleDelay:   planchange.DefaultSettleDelay,
			CommitTimeout: planchange.DefaultCommitTimeout,
			SettlePolicy:  string(planchange.SettleAlways),
			SessionTTL:    30 * time.Minute,
			MaxSessions:   10000,
			SweepSchedule: "@every 1m",
		},
		Catalog: CatalogConfig{
			TTL:             5 * time.Minute,
			RefreshSchedule: "@every 5m",
		},
		Journal: JournalConfig{
			Driver:          audit.DriverMemory,
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			RetentionDays:   audit.DefaultRetentionPolicy().RetentionDays,
			CleanupSchedule: "@daily",
		},
		Templates: TemplatesConfig{
			Folder: "saazpay",
		},
		RateLimit: RateLimitConfig{
			CommitsPerMinute: 10,
			Burst:            3,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "saazpay",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
			OTelExportInterval: 10 * time.Second,
		},
	}
}

// LoadConfig loads .env (when present), then the YAML file named by
// SAAZPAY_CONFIG_FILE, then SAAZPAY_* environment variables, and validates
// the result. Environment variables win over the file.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("SAAZPAY_CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFile overlays the YAML file at path
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("SAAZPAY_HOST", s.Host)
	s.Port = getEnv("SAAZPAY_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("SAAZPAY_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("SAAZPAY_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("SAAZPAY_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("SAAZPAY_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.AllowedOrigins = getEnvList("SAAZPAY_ALLOWED_ORIGINS", s.AllowedOrigins)
	s.AccessLog = getEnvBool("SAAZPAY_ACCESS_LOG", s.AccessLog)

	p := &c.Provider
	p.Kind = getEnv("SAAZPAY_PROVIDER", p.Kind)
	p.BackendURL = getEnv("SAAZPAY_BACKEND_URL", p.BackendURL)
	p.APIKey = getEnv("SAAZPAY_API_KEY", p.APIKey)
	p.WebhookSecret = getEnv("SAAZPAY_WEBHOOK_SECRET", p.WebhookSecret)
	p.Timeout = getEnvDuration("SAAZPAY_PROVIDER_TIMEOUT", p.Timeout)
	p.Embed.Environment = embed.Environment(getEnv("SAAZPAY_ENVIRONMENT", string(p.Embed.Environment)))
	p.Embed.ClientToken = getEnv("SAAZPAY_CLIENT_TOKEN", p.Embed.ClientToken)
	p.Embed.BaseURL = getEnv("SAAZPAY_BASE_URL", p.Embed.BaseURL)
	p.Embed.SuccessURL = getEnv("SAAZPAY_SUCCESS_URL", p.Embed.SuccessURL)

	f := &c.Flow
	f.SettleDelay = getEnvDuration("SAAZPAY_SETTLE_DELAY", f.SettleDelay)
	f.CommitTimeout = getEnvDuration("SAAZPAY_COMMIT_TIMEOUT", f.CommitTimeout)
	f.SettlePolicy = getEnv("SAAZPAY_SETTLE_POLICY", f.SettlePolicy)
	f.SessionTTL = getEnvDuration("SAAZPAY_SESSION_TTL", f.SessionTTL)
	f.MaxSessions = getEnvInt("SAAZPAY_MAX_SESSIONS", f.MaxSessions)
	f.SweepSchedule = getEnv("SAAZPAY_SWEEP_SCHEDULE", f.SweepSchedule)

	cat := &c.Catalog
	cat.TTL = getEnvDuration("SAAZPAY_CATALOG_TTL", cat.TTL)
	cat.RedisURL = getEnv("SAAZPAY_REDIS_URL", cat.RedisURL)
	cat.RefreshSchedule = getEnv("SAAZPAY_CATALOG_REFRESH_SCHEDULE", cat.RefreshSchedule)

	j := &c.Journal
	j.Driver = getEnv("SAAZPAY_JOURNAL_DRIVER", j.Driver)
	j.DSN = getEnv("SAAZPAY_JOURNAL_DSN", j.DSN)
	j.MaxOpenConns = getEnvInt("SAAZPAY_JOURNAL_MAX_OPEN_CONNS", j.MaxOpenConns)
	j.MaxIdleConns = getEnvInt("SAAZPAY_JOURNAL_MAX_IDLE_CONNS", j.MaxIdleConns)
	j.ConnMaxLifetime = getEnvDuration("SAAZPAY_JOURNAL_CONN_MAX_LIFETIME", j.ConnMaxLifetime)
	j.RetentionDays = getEnvInt("SAAZPAY_JOURNAL_RETENTION_DAYS", j.RetentionDays)
	j.CleanupSchedule = getEnv("SAAZPAY_JOURNAL_CLEANUP_SCHEDULE", j.CleanupSchedule)
	j.FileDir = getEnv("SAAZPAY_JOURNAL_FILE_DIR", j.FileDir)

	t := &c.Templates
	t.Dir = getEnv("SAAZPAY_TEMPLATE_DIR", t.Dir)
	t.Folder = getEnv("SAAZPAY_TEMPLATE_FOLDER", t.Folder)
	t.Timezone = getEnv("SAAZPAY_TIMEZONE", t.Timezone)

	r := &c.RateLimit
	r.CommitsPerMinute = getEnvInt("SAAZPAY_COMMITS_PER_MINUTE", r.CommitsPerMinute)
	r.Burst = getEnvInt("SAAZPAY_COMMIT_BURST", r.Burst)
	r.Distributed = getEnvBool("SAAZPAY_RATE_LIMIT_DISTRIBUTED", r.Distributed)

	o := &c.Observability
	o.LogLevel = getEnv("SAAZPAY_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("SAAZPAY_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("SAAZPAY_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("SAAZPAY_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("SAAZPAY_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("SAAZPAY_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("SAAZPAY_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("SAAZPAY_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
	o.OTelExportInterval = getEnvDuration("SAAZPAY_OTEL_EXPORT_INTERVAL", o.OTelExportInterval)
	o.Environment = getEnv("SAAZPAY_ENV", o.Environment)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Provider.Kind {
	case ProviderREST:
		if c.Provider.BackendURL == "" {
			return fmt.Errorf("backend URL is required for the rest provider")
		}
	case ProviderStripe:
		if c.Provider.APIKey == "" {
			return fmt.Errorf("API key is required for the stripe provider")
		}
	default:
		return fmt.Errorf("invalid provider: %s (must be rest or stripe)", c.Provider.Kind)
	}
	if c.Provider.Embed.ClientToken != "" || c.Provider.Embed.BaseURL != "" {
		if err := c.Provider.Embed.Validate(); err != nil {
			return fmt.Errorf("invalid embed configuration: %w", err)
		}
	}

	if _, err := planchange.ParseSettlePolicy(c.Flow.SettlePolicy); err != nil {
		return err
	}
	if c.Flow.CommitTimeout <= 0 || c.Flow.SettleDelay < 0 {
		return fmt.Errorf("commit timeout must be positive and settle delay non-negative")
	}
	if c.Flow.MaxSessions <= 0 {
		return fmt.Errorf("max sessions must be positive")
	}

	switch c.Journal.Driver {
	case audit.DriverMemory:
	case audit.DriverPostgres, audit.DriverSQLite:
		if c.Journal.DSN == "" {
			return fmt.Errorf("journal DSN is required for driver %s", c.Journal.Driver)
		}
	default:
		return fmt.Errorf("invalid journal driver: %s (must be memory, postgres or sqlite3)", c.Journal.Driver)
	}

	if c.RateLimit.Distributed && c.Catalog.RedisURL == "" {
		return fmt.Errorf("redis URL is required for distributed rate limiting")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
		if r := c.Observability.OTelSampleRatio; r < 0 || r > 1 {
			return fmt.Errorf("OpenTelemetry sample ratio must be between 0 and 1, got %v", r)
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma separated environment variable or a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
