package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTestTracer sets up a test tracer provider and returns the span recorder.
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t.Cleanup(func() {
		_ = tp.Shutdown(t.Context())
		otel.SetTracerProvider(previous)
	})

	return sr
}

func serverSpan(t *testing.T, sr *tracetest.SpanRecorder) sdktrace.ReadOnlySpan {
	t.Helper()
	spans := sr.Ended()
	require.Len(t, spans, 1)
	return spans[0]
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, attr := range span.Attributes() {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return attribute.Value{}, false
}

func tracedRouter(extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.Use(TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "test-service"}))
	router.Use(extra...)
	return router
}

func TestTracingWithConfig_Disabled(t *testing.T) {
	sr := setupTestTracer(t)
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(TracingWithConfig(TracingConfig{Enabled: false}))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sr.Ended())
}

func TestTracingAttributeInjector(t *testing.T) {
	const tenantID = "11111111-2222-3333-4444-555555555555"

	t.Run("request and tenant ids", func(t *testing.T) {
		sr := setupTestTracer(t)
		router := tracedRouter(TenantMiddleware(), TracingAttributeInjector())
		router.GET("/api/v1/billing/invoices/:id", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/invoices/abc", nil)
		req.Header.Set(RequestIDHeader, "req-123")
		req.Header.Set(TenantHeaderKey, tenantID)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		span := serverSpan(t, sr)
		v, ok := spanAttr(span, "request_id")
		require.True(t, ok)
		assert.Equal(t, "req-123", v.AsString())
		v, ok = spanAttr(span, "tenant_id")
		require.True(t, ok)
		assert.Equal(t, tenantID, v.AsString())
	})

	t.Run("tenant header without tenant middleware", func(t *testing.T) {
		sr := setupTestTracer(t)
		router := tracedRouter(TracingAttributeInjector())
		router.POST("/webhooks/stripe", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", nil)
		req.Header.Set(TenantHeaderKey, tenantID)
		router.ServeHTTP(httptest.NewRecorder(), req)

		v, ok := spanAttr(serverSpan(t, sr), "tenant_id")
		require.True(t, ok)
		assert.Equal(t, tenantID, v.AsString())
	})

	t.Run("malformed tenant header is not recorded", func(t *testing.T) {
		sr := setupTestTracer(t)
		router := tracedRouter(TracingAttributeInjector())
		router.POST("/webhooks/stripe", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", nil)
		req.Header.Set(TenantHeaderKey, "<script>")
		router.ServeHTTP(httptest.NewRecorder(), req)

		_, ok := spanAttr(serverSpan(t, sr), "tenant_id")
		assert.False(t, ok)
	})

	t.Run("no span in context", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		router := gin.New()
		router.Use(TracingAttributeInjector())
		router.GET("/test", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestSpanErrorMarker(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		wantError   bool
		wantMessage string
	}{
		{"success", http.StatusOK, false, ""},
		{"bad request", http.StatusBadRequest, true, "Client Error"},
		{"unauthorized", http.StatusUnauthorized, true, "Unauthorized"},
		{"not found", http.StatusNotFound, true, "Not Found"},
		{"conflict", http.StatusConflict, true, "Conflict"},
		{"server error", http.StatusInternalServerError, true, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sr := setupTestTracer(t)
			router := tracedRouter(SpanErrorMarker())
			router.GET("/test", func(c *gin.Context) {
				c.Status(tt.status)
			})

			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))

			span := serverSpan(t, sr)
			if !tt.wantError {
				assert.NotEqual(t, codes.Error, span.Status().Code)
				return
			}
			assert.Equal(t, codes.Error, span.Status().Code)
			assert.Equal(t, tt.wantMessage, span.Status().Description)
		})
	}
}

func TestDefaultTracingConfig(t *testing.T) {
	cfg := DefaultTracingConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "fieldops-billing", cfg.ServiceName)
}
