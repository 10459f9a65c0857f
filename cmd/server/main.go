package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/snowflake"
	appbilling "github.com/fieldops/backend/internal/application/billing"
	"github.com/fieldops/backend/internal/infrastructure/billing"
	"github.com/fieldops/backend/internal/infrastructure/cache"
	"github.com/fieldops/backend/internal/infrastructure/config"
	"github.com/fieldops/backend/internal/infrastructure/logger"
	"github.com/fieldops/backend/internal/infrastructure/persistence"
	"github.com/fieldops/backend/internal/infrastructure/telemetry"
	"github.com/fieldops/backend/internal/interfaces/http/handler"
	"github.com/fieldops/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output}
	bootLog, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsExportEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize logger provider", zap.Error(err))
	}

	// Tee application logs into the OTLP exporter once it exists
	log := bootLog
	if loggerProvider.IsEnabled() {
		if log, err = logger.New(logCfg, loggerProvider.Core(logger.ParseLevel(cfg.Log.Level))); err != nil {
			bootLog.Fatal("Failed to initialize logger", zap.Error(err))
		}
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting billing ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	db, err := persistence.NewDatabase(&cfg.Database, persistence.Options{
		Logger:        log,
		LogLevel:      logger.MapGormLogLevel(cfg.Log.Level),
		SlowThreshold: cfg.Telemetry.DBSlowQueryThresh,
		Tracing: telemetry.DBTracingConfig{
			Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:        "postgresql",
		},
	})
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	node, err := snowflake.NewNode(cfg.Billing.SnowflakeNode)
	if err != nil {
		log.Fatal("Failed to create audit id generator", zap.Error(err))
	}

	ledger := persistence.NewGormLedger(db.DB, node)
	scope := persistence.NewGormLedgerScope(db.DB, node, persistence.WithIsolation(sql.LevelReadCommitted))

	eventCache, err := cache.NewProcessedEventCacheFactory(cfg.Redis, cfg.Billing.ProcessedEventTTL,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateCache(ctx)
	if err != nil {
		log.Fatal("Failed to create processed event cache", zap.Error(err))
	}
	defer func() {
		if err := eventCache.Close(); err != nil {
			log.Warn("Error closing processed event cache", zap.Error(err))
		}
	}()

	stripeAPI, err := billing.NewStripeClient(&cfg.Stripe, nil, log)
	if err != nil {
		log.Fatal("Failed to create Stripe client", zap.Error(err))
	}
	gateway, err := billing.NewStripeCheckoutGateway(stripeAPI, &cfg.Stripe, log)
	if err != nil {
		log.Fatal("Failed to create checkout gateway", zap.Error(err))
	}
	decoder, err := billing.NewStripeEventDecoder(cfg.Stripe.WebhookSecret, log)
	if err != nil {
		log.Fatal("Failed to create webhook decoder", zap.Error(err))
	}

	metrics, err := telemetry.NewReconciliationMetrics(meterProvider.Meter("billing"))
	if err != nil {
		log.Fatal("Failed to create reconciliation metrics", zap.Error(err))
	}

	invoiceService := appbilling.NewInvoiceService(appbilling.InvoiceServiceConfig{
		Ledger:  ledger,
		Scope:   scope,
		Gateway: gateway,
		Metrics: metrics,
		Logger:  log,
	})
	planService := appbilling.NewPaymentPlanService(ledger, scope, gateway, log)
	webhookService := appbilling.NewWebhookService(appbilling.WebhookServiceConfig{
		Decoder:    decoder,
		Scope:      scope,
		Ledger:     ledger,
		Reconciler: appbilling.NewReconciler(log),
		Cache:      eventCache,
		Metrics:    metrics,
		Logger:     log,
	})

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := router.NewEngine(router.Config{
		Logger:        log,
		ServiceName:   cfg.Telemetry.ServiceName,
		Tracing:       tracerProvider.IsEnabled(),
		MeterProvider: meterProvider,
		MaxBodyBytes:  cfg.HTTP.MaxBodySize,
		Invoices:      handler.NewInvoiceHandler(invoiceService),
		PaymentPlans:  handler.NewPaymentPlanHandler(planService),
		Webhooks:      handler.NewStripeWebhookHandler(webhookService).WithMaxPayload(cfg.HTTP.WebhookMaxBodySize),
		Health: handler.NewHealthHandler(map[string]handler.HealthCheck{
			"database": func(context.Context) error { return db.Ping() },
			"cache": func(ctx context.Context) error {
				_, err := eventCache.Seen(ctx, "health-probe")
				return err
			},
		}),
	})
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	shutdownTelemetry(shutdownCtx, log, tracerProvider, meterProvider, loggerProvider)

	log.Info("Server exited gracefully")
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdownTelemetry flushes exporters in reverse start order
func shutdownTelemetry(ctx context.Context, log *zap.Logger, providers ...shutdowner) {
	for i := len(providers) - 1; i >= 0; i-- {
		if err := providers[i].Shutdown(ctx); err != nil {
			log.Warn("Telemetry shutdown failed", zap.Error(err))
		}
	}
}
