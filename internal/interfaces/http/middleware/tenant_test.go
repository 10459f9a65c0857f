package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fieldops/backend/internal/infrastructure/logger"
	"github.com/fieldops/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTenantID = "8f14e45f-ceea-4e7a-9c1a-3b2f0d6a7e11"

func newTenantRouter(cfg TenantMiddlewareConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.Use(TenantMiddlewareWithConfig(cfg))
	handler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"tenant_id":  GetTenantID(c),
			"ctx_tenant": logger.GetTenantID(c.Request.Context()),
		})
	}
	router.GET("/api/v1/billing/invoices", handler)
	router.GET("/health", handler)
	router.GET("/health/deep", handler)
	return router
}

func doTenantRequest(router http.Handler, path, tenant string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if tenant != "" {
		req.Header.Set(TenantHeaderKey, tenant)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestTenantMiddleware_HeaderExtraction(t *testing.T) {
	router := newTenantRouter(DefaultTenantConfig())

	t.Run("valid tenant header", func(t *testing.T) {
		w := doTenantRequest(router, "/api/v1/billing/invoices", testTenantID)
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, testTenantID, body["tenant_id"])
		assert.Equal(t, testTenantID, body["ctx_tenant"])
	})

	t.Run("uppercase uuid is normalized", func(t *testing.T) {
		w := doTenantRequest(router, "/api/v1/billing/invoices", "8F14E45F-CEEA-4E7A-9C1A-3B2F0D6A7E11")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), testTenantID)
	})

	tests := []struct {
		name   string
		tenant string
	}{
		{"missing header", ""},
		{"not a uuid", "acme-corp"},
		{"nil uuid", uuid.Nil.String()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doTenantRequest(router, "/api/v1/billing/invoices", tt.tenant)
			assert.Equal(t, http.StatusUnauthorized, w.Code)

			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, dto.ErrCodeUnauthorized, resp.Error.Code)
			assert.Equal(t, w.Header().Get(RequestIDHeader), resp.Error.RequestID)
		})
	}
}

func TestTenantMiddleware_SkipPaths(t *testing.T) {
	router := newTenantRouter(DefaultTenantConfig())

	assert.Equal(t, http.StatusOK, doTenantRequest(router, "/health", "").Code)
	assert.Equal(t, http.StatusOK, doTenantRequest(router, "/health/deep", "").Code)
}

func TestTenantMiddleware_OptionalTenant(t *testing.T) {
	router := newTenantRouter(TenantMiddlewareConfig{Required: false})

	w := doTenantRequest(router, "/api/v1/billing/invoices", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"tenant_id":""`)

	// A malformed header is still rejected
	assert.Equal(t, http.StatusUnauthorized, doTenantRequest(router, "/api/v1/billing/invoices", "bogus").Code)
}

func TestGetTenantUUID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := GetTenantUUID(c)
	assert.False(t, ok)

	c.Set(TenantIDKey, testTenantID)
	id, ok := GetTenantUUID(c)
	assert.True(t, ok)
	assert.Equal(t, uuid.MustParse(testTenantID), id)
}

func TestDefaultTenantConfig(t *testing.T) {
	cfg := DefaultTenantConfig()
	assert.True(t, cfg.Required)
	assert.Contains(t, cfg.SkipPaths, "/health")
}
