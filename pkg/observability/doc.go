// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry export, health checks and graceful shutdown.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithFlow(flowID).WithPlan(planID).Info("preview applied")
//
// Request-scoped loggers travel in the context:
//
//	ctx = observability.WithLogger(ctx, logger)
//	observability.FromContext(ctx).Warn("stale preview dropped")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//	router.Handle("/metrics", observability.MetricsHandler(registry))
//
// Flow metrics (saazpay_previews_total, saazpay_commits_total,
// saazpay_flows_active) are fed by the flow observer in pkg/api.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(journalDB, redisClient)
//	observability.RegisterHealthRoutes(router, checker)
//
// The journal database decides readiness. A redis outage only degrades it,
// since the catalog cache falls back to the provider.
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "saazpay",
//		Insecure:    true,
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
package observability
