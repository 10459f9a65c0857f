package handler

import (
	"context"

	appbilling "github.com/fieldops/backend/internal/application/billing"
	"github.com/fieldops/backend/internal/domain/billing"
	"github.com/fieldops/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceLifecycle is the invoice surface the HTTP layer drives
type InvoiceLifecycle interface {
	CreateFromEstimate(ctx context.Context, tenantID, estimateID uuid.UUID, input appbilling.CreateInvoiceInput) (*appbilling.InvoiceResponse, error)
	Get(ctx context.Context, tenantID, invoiceID uuid.UUID) (*appbilling.InvoiceResponse, error)
	Send(ctx context.Context, tenantID, invoiceID uuid.UUID) (*appbilling.SendResult, error)
	RecordOfflinePayment(ctx context.Context, tenantID, invoiceID uuid.UUID, input appbilling.OfflinePaymentInput) (*appbilling.InvoiceResponse, error)
	Void(ctx context.Context, tenantID, invoiceID uuid.UUID, reason string, actor *uuid.UUID) (*appbilling.InvoiceResponse, error)
}

// InvoiceHandler handles invoice lifecycle endpoints
type InvoiceHandler struct {
	BaseHandler
	invoices InvoiceLifecycle
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoices InvoiceLifecycle) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

// CreateInvoiceRequest is the body for creating an invoice from an estimate
type CreateInvoiceRequest struct {
	Type            string  `json:"type" binding:"omitempty,oneof=standard deposit"`
	StripeAccountID *string `json:"stripe_account_id" binding:"omitempty,min=1,max=255"`
}

// RecordPaymentRequest is the body for recording an offline payment
type RecordPaymentRequest struct {
	Amount     decimal.Decimal `json:"amount" binding:"decimal_gt0"`
	Instrument string          `json:"instrument" binding:"required,oneof=cash check bank_transfer other"`
	Notes      string          `json:"notes" binding:"max=1000"`
}

// VoidInvoiceRequest is the body for voiding an invoice
type VoidInvoiceRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// CreateFromEstimate creates a draft invoice from an approved estimate
//
//	POST /api/v1/billing/estimates/:id/invoices
func (h *InvoiceHandler) CreateFromEstimate(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	estimateID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req CreateInvoiceRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.HandleValidationError(c, err)
			return
		}
	}

	inv, err := h.invoices.CreateFromEstimate(c.Request.Context(), tenantID, estimateID, appbilling.CreateInvoiceInput{
		Type:            billing.InvoiceType(req.Type),
		StripeAccountID: req.StripeAccountID,
		Actor:           getActorID(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, inv)
}

// Get returns an invoice with its allocations
//
//	GET /api/v1/billing/invoices/:id
func (h *InvoiceHandler) Get(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	invoiceID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	inv, err := h.invoices.Get(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// Send opens (or reuses) a checkout session and returns its URL
//
//	POST /api/v1/billing/invoices/:id/send
func (h *InvoiceHandler) Send(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	invoiceID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.invoices.Send(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// RecordPayment records cash, check or other offline money against an invoice
//
//	POST /api/v1/billing/invoices/:id/payments
func (h *InvoiceHandler) RecordPayment(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	invoiceID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	inv, err := h.invoices.RecordOfflinePayment(c.Request.Context(), tenantID, invoiceID, appbilling.OfflinePaymentInput{
		Amount:     req.Amount,
		Instrument: billing.PaymentInstrument(req.Instrument),
		Notes:      req.Notes,
		RecordedBy: getActorID(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, inv)
}

// Void voids an invoice that has no payments applied
//
//	POST /api/v1/billing/invoices/:id/void
func (h *InvoiceHandler) Void(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	invoiceID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req VoidInvoiceRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.HandleValidationError(c, err)
			return
		}
	}

	inv, err := h.invoices.Void(c.Request.Context(), tenantID, invoiceID, req.Reason, getActorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}
