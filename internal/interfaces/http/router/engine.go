package router

import (
	"github.com/fieldops/backend/internal/infrastructure/logger"
	"github.com/fieldops/backend/internal/infrastructure/telemetry"
	"github.com/fieldops/backend/internal/interfaces/http/handler"
	"github.com/fieldops/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Config wires the billing HTTP surface
type Config struct {
	Logger        *zap.Logger
	ServiceName   string
	Tracing       bool
	MeterProvider *telemetry.MeterProvider
	// MaxBodyBytes caps lifecycle API request bodies; webhooks have their own limit
	MaxBodyBytes int64

	Invoices     *handler.InvoiceHandler
	PaymentPlans *handler.PaymentPlanHandler
	Webhooks     *handler.StripeWebhookHandler
	Health       *handler.HealthHandler
}

// NewEngine builds the gin engine. RequestID runs before the logger, and
// tracing wraps the tenant middleware.
func NewEngine(cfg Config) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	middleware.SetupValidator()

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.Secure(),
		middleware.TracingWithConfig(middleware.TracingConfig{ServiceName: cfg.ServiceName, Enabled: cfg.Tracing}),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetrics(middleware.HTTPMetricsConfig{MeterProvider: cfg.MeterProvider, Enabled: true}),
	)

	if cfg.Health != nil {
		engine.GET("/health", cfg.Health.Health)
		engine.GET("/ready", cfg.Health.Ready)
	}

	if cfg.Webhooks != nil {
		webhooks := engine.Group("/webhooks/stripe", middleware.TracingAttributeInjector())
		webhooks.POST("", cfg.Webhooks.HandlePlatform)
		webhooks.POST("/accounts/:account_id", cfg.Webhooks.HandleConnectedAccount)
	}

	billingGroup := NewDomainGroup("billing", "/billing").
		Use(middleware.BodyLimit(maxBody), middleware.TenantMiddleware(), middleware.TracingAttributeInjector())
	if cfg.Invoices != nil {
		billingGroup.
			POST("/estimates/:id/invoices", cfg.Invoices.CreateFromEstimate).
			GET("/invoices/:id", cfg.Invoices.Get).
			POST("/invoices/:id/send", cfg.Invoices.Send).
			POST("/invoices/:id/payments", cfg.Invoices.RecordPayment).
			POST("/invoices/:id/void", cfg.Invoices.Void)
	}
	if cfg.PaymentPlans != nil {
		billingGroup.
			POST("/payment-plans", cfg.PaymentPlans.Create).
			GET("/payment-plans/:id", cfg.PaymentPlans.Get).
			POST("/payment-plans/:id/items/:item_id/send", cfg.PaymentPlans.SendInstallment)
	}

	NewRouter(engine).Register(billingGroup).Setup()
	billingGroup.LogRoutes(log, "/api/v1")
	return engine
}
