package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewRouter(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	assert.NotNil(t, r)
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	assert.Equal(t, "v2", NewRouter(engine, WithAPIVersion("v2")).apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v1"))

	group := NewDomainGroup("billing", "/billing")
	group.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	r.Register(group)
	assert.Len(t, r.registrars, 1)
	r.Setup()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/ping", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestDomainGroup(t *testing.T) {
	t.Run("creates group with name and prefix", func(t *testing.T) {
		g := NewDomainGroup("billing", "/billing")
		assert.Equal(t, "billing", g.Name())
		assert.Equal(t, "/billing", g.Prefix())
	})

	t.Run("registers chained routes", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("billing", "/billing")
		g.GET("/invoices/:id", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) }).
			POST("/invoices/:id/send", func(c *gin.Context) { c.String(http.StatusAccepted, "sent") })

		g.RegisterRoutes(engine.Group("/api/v1"))

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/billing/invoices/inv_1", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "inv_1", w.Body.String())

		w = httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/billing/invoices/inv_1/send", nil))
		assert.Equal(t, http.StatusAccepted, w.Code)

		// Method not registered
		w = httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/billing/invoices/inv_1", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("applies middleware", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("billing", "/billing")
		g.Use(func(c *gin.Context) {
			c.Header("X-Test-Middleware", "applied")
			c.Next()
		})
		g.GET("/invoices", func(c *gin.Context) {
			c.String(http.StatusOK, "ok")
		})

		g.RegisterRoutes(engine.Group("/api/v1"))

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/billing/invoices", nil))
		assert.Equal(t, "applied", w.Header().Get("X-Test-Middleware"))
	})

	t.Run("creates subgroups", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("billing", "/billing")

		plans := g.Group("plans", "/payment-plans")
		plans.GET("", func(c *gin.Context) {
			c.String(http.StatusOK, "plans")
		})

		g.RegisterRoutes(engine.Group("/api/v1"))

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/billing/payment-plans", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "plans", w.Body.String())
	})
}

func TestDomainGroup_Routes(t *testing.T) {
	noop := func(c *gin.Context) {}
	g := NewDomainGroup("billing", "/billing").
		POST("/invoices/:id/void", noop).
		GET("/invoices/:id", noop)
	g.Group("plans", "/payment-plans").POST("/:id/items/:item_id/send", noop)

	routes := g.Routes()
	if assert.Len(t, routes, 3) {
		assert.Equal(t, http.MethodPost, routes[0].Method)
		assert.Equal(t, "/invoices/:id/void", routes[0].Path)
		assert.Equal(t, http.MethodGet, routes[1].Method)
		assert.Equal(t, "/payment-plans/:id/items/:item_id/send", routes[2].Path)
	}

	// Logging only reads the table
	g.LogRoutes(zap.NewNop(), "/api/v1")
	assert.Len(t, g.Routes(), 3)
}
