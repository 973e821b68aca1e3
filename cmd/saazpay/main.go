package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/saazpayhq/saazpay/pkg/api"
	"github.com/saazpayhq/saazpay/pkg/audit"
	"github.com/saazpayhq/saazpay/pkg/billing"
	"github.com/saazpayhq/saazpay/pkg/config"
	"github.com/saazpayhq/saazpay/pkg/middleware"
	"github.com/saazpayhq/saazpay/pkg/observability"
	"github.com/saazpayhq/saazpay/pkg/portal"
	"github.com/saazpayhq/saazpay/pkg/provider"
	"github.com/saazpayhq/saazpay/pkg/templates"
)

const (
	templateReloadDebounce = 250 * time.Millisecond
	poolStatsSchedule      = "@every 30s"
	jobTimeout             = time.Minute
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("saazpay stopped")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx := context.Background()

	// Metrics
	var (
		registry *prometheus.Registry
		metrics  *observability.Metrics
	)
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		metrics = observability.NewMetrics(registry)
	}

	// OpenTelemetry
	providers, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	var otelMetrics *observability.OTelMetrics
	if providers != nil {
		if otelMetrics, err = observability.NewOTelMetrics(); err != nil {
			return fmt.Errorf("failed to create OpenTelemetry metrics: %w", err)
		}
	}

	// Shared cache
	var redisClient *redis.Client
	if cfg.Catalog.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Catalog.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid redis URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis unreachable, catalog cache is process local until it recovers")
		}
	}

	// Journal
	store, err := audit.Open(cfg.Journal.AuditConfig())
	if err != nil {
		return err
	}
	var journal audit.Journal = store
	if cfg.Journal.FileDir != "" {
		files, err := audit.NewFileJournal(audit.FileJournalConfig{BasePath: cfg.Journal.FileDir})
		if err != nil {
			store.Close()
			return err
		}
		journal = audit.NewMultiJournal(store, files)
	}
	recorder := audit.NewRecorder(journal, audit.DefaultRecorderBuffer, metrics, logger).WithOTel(otelMetrics)

	var db *sql.DB
	sqlJournal, _ := store.(*audit.SQLJournal)
	if sqlJournal != nil {
		db = sqlJournal.DB()
	}

	// Billing provider
	backend, webhooks, subscriptions, err := newBackend(cfg.Provider, metrics, otelMetrics)
	if err != nil {
		return err
	}
	cached := provider.NewCachedBackend(backend, provider.CacheConfig{
		TTL:     cfg.Catalog.TTL,
		Redis:   redisClient,
		Metrics: metrics,
		Logger:  logger,
	})

	// Pages
	folder, err := templateFolder(cfg.Templates)
	if err != nil {
		return err
	}
	settings, err := templates.LoadSettings(folder)
	if err != nil {
		return err
	}
	renderer, err := portal.NewRenderer(folder)
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}
	var reloader *portal.Reloader
	if cfg.Templates.Dir != "" {
		reloader, err = portal.NewReloader(renderer, cfg.Templates.Dir, templateReloadDebounce, logger)
		if err != nil {
			return fmt.Errorf("failed to watch templates: %w", err)
		}
		reloader.Start(ctx)
	}

	// Commit rate limiting
	var limiter middleware.Limiter
	if cfg.RateLimit.CommitsPerMinute > 0 {
		limitCfg := middleware.CommitRateLimitConfig()
		limitCfg.RequestsPerWindow = cfg.RateLimit.CommitsPerMinute
		if cfg.RateLimit.Burst > 0 {
			limitCfg.BurstSize = cfg.RateLimit.Burst
		}
		if cfg.RateLimit.Distributed && redisClient != nil {
			limiter = middleware.NewDistributedRateLimiter(redisClient, limitCfg, "saazpay:commit")
		} else {
			local := middleware.NewRateLimiter(limitCfg)
			local.StartCleanup(ctx)
			limiter = local
		}
	}

	health := observability.NewHealthChecker(db, redisClient).WithVersion(cfg.Observability.OTelServiceVersion)

	var accessLog io.Writer
	if cfg.Server.AccessLog {
		accessLog = os.Stdout
	}

	server := api.NewServer(api.Options{
		Backend:        cached,
		Catalog:        cached.Catalog,
		Flows:          api.NewFlowStore(cfg.Flow.MaxSessions, cfg.Flow.SessionTTL, metrics, otelMetrics),
		FlowConfig:     cfg.Flow.PlanChange(),
		Subscriptions:  subscriptions,
		Journal:        store,
		Recorder:       recorder,
		Webhooks:       webhooks,
		Renderer:       renderer,
		Embed:          cfg.Provider.Embed,
		Pricing:        settings.Pricing,
		Location:       cfg.Templates.Location(),
		CommitLimiter:  limiter,
		Metrics:        metrics,
		Registry:       registry,
		OTel:           otelMetrics,
		Health:         health,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AccessLog:      accessLog,
		Logger:         logger,
	})

	// Background jobs
	scheduler := cron.New()
	if err := scheduleJobs(scheduler, cfg, server, cached.Catalog, store, sqlJournal, metrics, logger); err != nil {
		return err
	}
	scheduler.Start()

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		<-scheduler.Stop().Done()
		return nil
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return server.Flows().Purge(ctx)
	})
	if reloader != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return reloader.Stop()
		})
	}
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		recorder.Close()
		return journal.Close()
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return redisClient.Close()
		})
	}
	if providers != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, providers, logger)
		})
	}

	// a listener failure shuts everything down like a signal would
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(map[string]interface{}{
			"addr":     httpServer.Addr,
			"provider": cfg.Provider.Kind,
			"journal":  cfg.Journal.Driver,
		}).Info("saazpay listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			cancel()
		}
	}()

	shutdownErr := shutdown.WaitForShutdown(runCtx)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	default:
	}
	return shutdownErr
}

// newBackend builds the configured billing provider. Webhook verification and
// subscription lookups are only available with Stripe.
func newBackend(cfg config.ProviderConfig, metrics *observability.Metrics, otelMetrics *observability.OTelMetrics) (provider.Backend, api.WebhookVerifier, api.SubscriptionLoader, error) {
	switch cfg.Kind {
	case config.ProviderStripe:
		client := provider.NewStripeClient(provider.StripeConfig{
			SecretKey:     cfg.APIKey,
			WebhookSecret: cfg.WebhookSecret,
			Metrics:       metrics,
			OTel:          otelMetrics,
		})
		loader := func(ctx context.Context, id string) (*billing.Subscription, error) {
			return client.ForSubscription(id).GetSubscription(ctx)
		}
		var webhooks api.WebhookVerifier
		if cfg.WebhookSecret != "" {
			webhooks = client
		}
		return client, webhooks, loader, nil
	default:
		client, err := provider.NewRESTClient(provider.RESTConfig{
			BaseURL: cfg.BackendURL,
			Token:   cfg.APIKey,
			Timeout: cfg.Timeout,
			Metrics: metrics,
			OTel:    otelMetrics,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return client, nil, nil, nil
	}
}

// templateFolder serves templates from disk when a directory is configured
// and from the embedded folders otherwise
func templateFolder(cfg config.TemplatesConfig) (fs.FS, error) {
	if cfg.Dir != "" {
		return os.DirFS(cfg.Dir), nil
	}
	return templates.Folder(cfg.Folder)
}

func scheduleJobs(
	scheduler *cron.Cron,
	cfg *config.Config,
	server *api.Server,
	catalog *provider.CachedCatalog,
	store audit.Store,
	sqlJournal *audit.SQLJournal,
	metrics *observability.Metrics,
	logger *observability.Logger,
) error {
	add := func(name, spec string, job func(ctx context.Context) error) error {
		if spec == "" {
			return nil
		}
		jobLogger := logger.WithField("job", name)
		_, err := scheduler.AddFunc(spec, func() {
			defer observability.RecoverPanic(jobLogger, name)
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			if err := job(ctx); err != nil {
				jobLogger.WithError(err).Warn("scheduled job failed")
			}
		})
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", name, err)
		}
		return nil
	}

	if err := add("flow_sweep", cfg.Flow.SweepSchedule, func(ctx context.Context) error {
		if n := server.Flows().Sweep(); n > 0 {
			logger.WithField("removed", n).Debug("swept finished flows")
		}
		return nil
	}); err != nil {
		return err
	}

	if err := add("catalog_refresh", cfg.Catalog.RefreshSchedule, catalog.Refresh); err != nil {
		return err
	}

	if err := add("journal_cleanup", cfg.Journal.CleanupSchedule, func(ctx context.Context) error {
		deleted, err := store.Cleanup(ctx, audit.RetentionPolicy{RetentionDays: cfg.Journal.RetentionDays})
		if err != nil {
			return err
		}
		logger.WithField("deleted", deleted).Info("journal cleanup finished")
		return nil
	}); err != nil {
		return err
	}

	if sqlJournal != nil && metrics != nil {
		if err := add("pool_stats", poolStatsSchedule, func(ctx context.Context) error {
			sqlJournal.ReportPoolStats(metrics)
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}
