package router

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	appbilling "github.com/fieldops/backend/internal/application/billing"
	"github.com/fieldops/backend/internal/domain/billing"
	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/fieldops/backend/internal/interfaces/http/handler"
	"github.com/fieldops/backend/internal/interfaces/http/middleware"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// stubLedgerAPI answers every lifecycle call so route wiring can be checked
type stubLedgerAPI struct {
	lastTenant uuid.UUID
	routing    billing.AccountRef
}

func (s *stubLedgerAPI) CreateFromEstimate(_ context.Context, tenantID, _ uuid.UUID, _ appbilling.CreateInvoiceInput) (*appbilling.InvoiceResponse, error) {
	s.lastTenant = tenantID
	return &appbilling.InvoiceResponse{Status: "draft"}, nil
}

func (s *stubLedgerAPI) Get(_ context.Context, tenantID, _ uuid.UUID) (*appbilling.InvoiceResponse, error) {
	s.lastTenant = tenantID
	return nil, shared.ErrNotFound
}

func (s *stubLedgerAPI) Send(_ context.Context, tenantID, _ uuid.UUID) (*appbilling.SendResult, error) {
	s.lastTenant = tenantID
	return &appbilling.SendResult{CheckoutURL: "https://checkout.stripe.com/c/pay/cs_stub"}, nil
}

func (s *stubLedgerAPI) RecordOfflinePayment(_ context.Context, tenantID, _ uuid.UUID, _ appbilling.OfflinePaymentInput) (*appbilling.InvoiceResponse, error) {
	s.lastTenant = tenantID
	return &appbilling.InvoiceResponse{Status: "partial"}, nil
}

func (s *stubLedgerAPI) Void(_ context.Context, tenantID, _ uuid.UUID, _ string, _ *uuid.UUID) (*appbilling.InvoiceResponse, error) {
	s.lastTenant = tenantID
	return &appbilling.InvoiceResponse{Status: "voided"}, nil
}

type stubPlans struct{}

func (stubPlans) Create(context.Context, uuid.UUID, appbilling.CreatePaymentPlanInput) (*appbilling.PaymentPlanResponse, error) {
	return &appbilling.PaymentPlanResponse{Status: "active"}, nil
}

func (stubPlans) Get(context.Context, uuid.UUID, uuid.UUID) (*appbilling.PaymentPlanResponse, error) {
	return &appbilling.PaymentPlanResponse{Status: "active"}, nil
}

func (stubPlans) SendInstallment(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) (*appbilling.SendResult, error) {
	return &appbilling.SendResult{CheckoutURL: "https://checkout.stripe.com/c/pay/cs_item"}, nil
}

func (s *stubLedgerAPI) ProcessEvent(_ context.Context, _ []byte, _ string, routing billing.AccountRef) (*appbilling.WebhookResult, error) {
	s.routing = routing
	return &appbilling.WebhookResult{EventID: "evt_stub", Processed: true}, nil
}

func newTestEngine(t *testing.T) (*stubLedgerAPI, http.Handler) {
	stub := &stubLedgerAPI{}
	engine := NewEngine(Config{
		Logger:       zaptest.NewLogger(t),
		ServiceName:  "router-test",
		MaxBodyBytes: 4096,
		Invoices:     handler.NewInvoiceHandler(stub),
		PaymentPlans: handler.NewPaymentPlanHandler(stubPlans{}),
		Webhooks:     handler.NewStripeWebhookHandler(stub),
		Health:       handler.NewHealthHandler(nil),
	})
	return stub, engine
}

func TestNewEngine_BillingRoutes(t *testing.T) {
	stub, engine := newTestEngine(t)
	tenant := uuid.New()
	id := uuid.New().String()

	routes := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{http.MethodPost, "/api/v1/billing/estimates/" + id + "/invoices", "", http.StatusCreated},
		{http.MethodGet, "/api/v1/billing/invoices/" + id, "", http.StatusNotFound},
		{http.MethodPost, "/api/v1/billing/invoices/" + id + "/send", "", http.StatusOK},
		{http.MethodPost, "/api/v1/billing/invoices/" + id + "/payments", `{"amount":"5","instrument":"cash"}`, http.StatusCreated},
		{http.MethodPost, "/api/v1/billing/invoices/" + id + "/void", "", http.StatusOK},
		{http.MethodPost, "/api/v1/billing/payment-plans", `{"customer_id":"` + id + `","total":"10","items":[{"amount":"10","due_date":"2026-11-01T00:00:00Z"}]}`, http.StatusCreated},
		{http.MethodGet, "/api/v1/billing/payment-plans/" + id, "", http.StatusOK},
		{http.MethodPost, "/api/v1/billing/payment-plans/" + id + "/items/" + id + "/send", "", http.StatusOK},
	}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			var req *http.Request
			if rt.body != "" {
				req = httptest.NewRequest(rt.method, rt.path, strings.NewReader(rt.body))
				req.Header.Set("Content-Type", "application/json")
			} else {
				req = httptest.NewRequest(rt.method, rt.path, nil)
			}
			req.Header.Set(middleware.TenantHeaderKey, tenant.String())
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			assert.Equal(t, rt.status, w.Code, w.Body.String())
			assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
			assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
		})
	}
	assert.Equal(t, tenant, stub.lastTenant)
}

func TestNewEngine_TenantRequired(t *testing.T) {
	_, engine := newTestEngine(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/billing/invoices/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNewEngine_BodyLimit(t *testing.T) {
	_, engine := newTestEngine(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/payment-plans", bytes.NewReader(bytes.Repeat([]byte("x"), 5000)))
	req.Header.Set(middleware.TenantHeaderKey, uuid.NewString())
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestNewEngine_WebhooksSkipTenant(t *testing.T) {
	stub, engine := newTestEngine(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe/accounts/acct_42", strings.NewReader(`{}`))
	req.Header.Set(handler.StripeSignatureHeader, "t=1,v1=x")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, stub.routing.Equal(billing.SomeAccount("acct_42")))

	req = httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
	req.Header.Set(handler.StripeSignatureHeader, "t=1,v1=x")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, stub.routing.IsSome())
}

func TestNewEngine_Health(t *testing.T) {
	_, engine := newTestEngine(t)

	for _, path := range []string{"/health", "/ready"} {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
