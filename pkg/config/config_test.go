package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/saazpayhq/saazpay/pkg/audit"
	"github.com/saazpayhq/saazpay/pkg/embed"
	"github.com/saazpayhq/saazpay/pkg/observability"
	"github.com/saazpayhq/saazpay/pkg/planchange"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_NOT_SET",
			defaultValue: "default",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}

			if got := getEnv(tt.key, tt.defaultValue); got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		envValue string
		want     bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"false", false},
		{"yes", false},
	}

	for _, tt := range tests {
		t.Run(tt.envValue, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.envValue)
			if got := getEnvBool("TEST_BOOL", !tt.want); got != tt.want {
				t.Errorf("getEnvBool(%q) = %v, want %v", tt.envValue, got, tt.want)
			}
		})
	}

	if !getEnvBool("TEST_BOOL_NOT_SET", true) {
		t.Error("getEnvBool() should return the default when unset")
	}
}

func TestGetEnvIntAndDuration(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_INT_BAD", "forty-two")
	t.Setenv("TEST_DURATION", "90s")
	t.Setenv("TEST_DURATION_BAD", "soon")

	if got := getEnvInt("TEST_INT", 1); got != 42 {
		t.Errorf("getEnvInt() = %d, want 42", got)
	}
	if got := getEnvInt("TEST_INT_BAD", 1); got != 1 {
		t.Errorf("getEnvInt() with invalid value = %d, want 1", got)
	}
	if got := getEnvDuration("TEST_DURATION", time.Second); got != 90*time.Second {
		t.Errorf("getEnvDuration() = %v, want 90s", got)
	}
	if got := getEnvDuration("TEST_DURATION_BAD", time.Second); got != time.Second {
		t.Errorf("getEnvDuration() with invalid value = %v, want 1s", got)
	}
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("TEST_LIST", " https://a.example.com, ,https://b.example.com ")

	got := getEnvList("TEST_LIST", nil)
	if len(got) != 2 || got[0] != "https://a.example.com" || got[1] != "https://b.example.com" {
		t.Errorf("getEnvList() = %v", got)
	}
	if got := getEnvList("TEST_LIST_NOT_SET", []string{"x"}); len(got) != 1 {
		t.Errorf("getEnvList() should return the default when unset, got %v", got)
	}
}

func validConfig() *Config {
	cfg := Default()
	cfg.Provider.BackendURL = "http://billing.internal"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults with backend", func(c *Config) {}, false},
		{"missing port", func(c *Config) { c.Server.Port = "" }, true},
		{"unknown provider", func(c *Config) { c.Provider.Kind = "paypal" }, true},
		{"rest without backend", func(c *Config) { c.Provider.BackendURL = "" }, true},
		{"stripe without key", func(c *Config) { c.Provider.Kind = ProviderStripe }, true},
		{"stripe with key", func(c *Config) {
			c.Provider.Kind = ProviderStripe
			c.Provider.APIKey = "sk_test_123"
		}, false},
		{"invalid embed", func(c *Config) {
			c.Provider.Embed.ClientToken = "tok"
			c.Provider.Embed.BaseURL = "not a url"
		}, true},
		{"valid embed", func(c *Config) {
			c.Provider.Embed.ClientToken = "tok"
			c.Provider.Embed.BaseURL = "https://app.saazpay.com"
		}, false},
		{"unknown settle policy", func(c *Config) { c.Flow.SettlePolicy = "sometimes" }, true},
		{"zero commit timeout", func(c *Config) { c.Flow.CommitTimeout = 0 }, true},
		{"zero max sessions", func(c *Config) { c.Flow.MaxSessions = 0 }, true},
		{"postgres without dsn", func(c *Config) { c.Journal.Driver = audit.DriverPostgres }, true},
		{"unknown journal driver", func(c *Config) { c.Journal.Driver = "mysql" }, true},
		{"distributed without redis", func(c *Config) { c.RateLimit.Distributed = true }, true},
		{"otel without endpoint", func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelEndpoint = ""
		}, true},
		{"otel sample ratio above one", func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelSampleRatio = 1.5
		}, true},
		{"otel partial sampling", func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelSampleRatio = 0.1
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saazpay.yaml")
	yamlData := `
server:
  port: "9000"
provider:
  kind: rest
  backend_url: http://from-file
  embed:
    environment: production
    client_token: tok_file
    base_url: https://app.saazpay.com
flow:
  settle_delay: 2s
  settle_policy: on_success
catalog:
  ttl: 1m
`
	if err := os.WriteFile(path, []byte(yamlData), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	// run from an empty directory so no .env is picked up
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	t.Setenv("SAAZPAY_CONFIG_FILE", path)
	t.Setenv("SAAZPAY_BACKEND_URL", "http://from-env")
	t.Setenv("SAAZPAY_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "9000" {
		t.Errorf("Server.Port = %s, want 9000", cfg.Server.Port)
	}
	if cfg.Provider.BackendURL != "http://from-env" {
		t.Errorf("environment should override the file, got %s", cfg.Provider.BackendURL)
	}
	if cfg.Provider.Embed.Environment != embed.EnvironmentProduction {
		t.Errorf("Embed.Environment = %s", cfg.Provider.Embed.Environment)
	}
	if cfg.Flow.SettleDelay != 2*time.Second {
		t.Errorf("Flow.SettleDelay = %v, want 2s", cfg.Flow.SettleDelay)
	}
	if cfg.Catalog.TTL != time.Minute {
		t.Errorf("Catalog.TTL = %v, want 1m", cfg.Catalog.TTL)
	}
	if cfg.Flow.CommitTimeout != 30*time.Second {
		t.Errorf("unset keys should keep defaults, CommitTimeout = %v", cfg.Flow.CommitTimeout)
	}
	if cfg.Observability.Level() != observability.DebugLevel {
		t.Errorf("log level = %v, want debug", cfg.Observability.Level())
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	wd, _ := os.Getwd()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	t.Setenv("SAAZPAY_PROVIDER", "paypal")
	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() should fail for an unknown provider")
	}
}

func TestLoadFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := Default().LoadFile(path); err == nil {
		t.Error("LoadFile() should fail for malformed YAML")
	}
	if err := Default().LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFile() should fail for a missing file")
	}
}

func TestTemplatesLocation(t *testing.T) {
	if loc := (TemplatesConfig{}).Location(); loc != time.UTC {
		t.Errorf("Location() = %v, want UTC", loc)
	}
	if loc := (TemplatesConfig{Timezone: "Not/AZone"}).Location(); loc != time.UTC {
		t.Errorf("Location() with unknown zone = %v, want UTC", loc)
	}
	if loc := (TemplatesConfig{Timezone: "Europe/Berlin"}).Location(); loc.String() != "Europe/Berlin" {
		t.Errorf("Location() = %v, want Europe/Berlin", loc)
	}
}

func TestServerAddr(t *testing.T) {
	if got := (ServerConfig{Host: "127.0.0.1", Port: "8080"}).Addr(); got != "127.0.0.1:8080" {
		t.Errorf("Addr() = %s", got)
	}
}

func TestFlowConfigPlanChange(t *testing.T) {
	f := FlowConfig{
		SettleDelay:   2 * time.Second,
		CommitTimeout: 10 * time.Second,
		SettlePolicy:  string(planchange.SettleOnSuccess),
	}
	cfg := f.PlanChange()
	if cfg.SettleDelay != 2*time.Second || cfg.CommitTimeout != 10*time.Second {
		t.Errorf("PlanChange() timings = %v / %v", cfg.SettleDelay, cfg.CommitTimeout)
	}
	if cfg.SettlePolicy != planchange.SettleOnSuccess {
		t.Errorf("PlanChange() policy = %s", cfg.SettlePolicy)
	}
	if cfg.Clock == nil {
		t.Error("PlanChange() should keep the system clock")
	}

	if got := (FlowConfig{}).PlanChange(); got.CommitTimeout != planchange.DefaultCommitTimeout || got.SettlePolicy != planchange.SettleAlways {
		t.Errorf("PlanChange() of zero config = %+v", got)
	}
}
