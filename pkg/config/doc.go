// Package config loads saazpay configuration from a YAML file and
// environment variables.
//
// Values are applied in order: built-in defaults, the YAML file named by
// SAAZPAY_CONFIG_FILE, then SAAZPAY_* environment variables. A .env file in
// the working directory is loaded into the environment first.
//
// Commonly set variables:
//
//	SAAZPAY_PORT="8080"
//	SAAZPAY_PROVIDER="rest"            # rest, stripe
//	SAAZPAY_BACKEND_URL="http://billing.internal"
//	SAAZPAY_API_KEY="sk_test_..."
//	SAAZPAY_ENVIRONMENT="sandbox"      # sandbox, production
//	SAAZPAY_CLIENT_TOKEN="..."
//	SAAZPAY_SETTLE_DELAY="5s"
//	SAAZPAY_SETTLE_POLICY="always"     # always, on_success
//	SAAZPAY_REDIS_URL="redis://localhost:6379/0"
//	SAAZPAY_JOURNAL_DRIVER="postgres"  # memory, postgres, sqlite3
//	SAAZPAY_JOURNAL_DSN="postgres://localhost/saazpay?sslmode=disable"
//	SAAZPAY_LOG_LEVEL="info"
//	SAAZPAY_OTEL_ENABLED="false"
//
// Usage:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.Addr())
package config
