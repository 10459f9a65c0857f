package handler

import (
	"context"
	"time"

	appbilling "github.com/fieldops/backend/internal/application/billing"
	"github.com/fieldops/backend/internal/domain/billing"
	"github.com/fieldops/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentPlanLifecycle is the payment plan surface the HTTP layer drives
type PaymentPlanLifecycle interface {
	Create(ctx context.Context, tenantID uuid.UUID, input appbilling.CreatePaymentPlanInput) (*appbilling.PaymentPlanResponse, error)
	Get(ctx context.Context, tenantID, planID uuid.UUID) (*appbilling.PaymentPlanResponse, error)
	SendInstallment(ctx context.Context, tenantID, planID, itemID uuid.UUID) (*appbilling.SendResult, error)
}

// PaymentPlanHandler handles payment plan endpoints
type PaymentPlanHandler struct {
	BaseHandler
	plans PaymentPlanLifecycle
}

// NewPaymentPlanHandler creates a new PaymentPlanHandler
func NewPaymentPlanHandler(plans PaymentPlanLifecycle) *PaymentPlanHandler {
	return &PaymentPlanHandler{plans: plans}
}

// PaymentPlanItemRequest is one installment in a create request
type PaymentPlanItemRequest struct {
	Amount  decimal.Decimal `json:"amount" binding:"decimal_gt0"`
	DueDate time.Time       `json:"due_date" binding:"required"`
}

// CreatePaymentPlanRequest is the body for creating a payment plan
type CreatePaymentPlanRequest struct {
	CustomerID      uuid.UUID                `json:"customer_id" binding:"required"`
	JobID           *uuid.UUID               `json:"job_id"`
	Currency        string                   `json:"currency" binding:"omitempty,len=3"`
	Total           decimal.Decimal          `json:"total" binding:"decimal_gt0"`
	Items           []PaymentPlanItemRequest `json:"items" binding:"required,min=1,max=60,dive"`
	StripeAccountID *string                  `json:"stripe_account_id" binding:"omitempty,min=1,max=255"`
}

// Create stores a new payment plan
//
//	POST /api/v1/billing/payment-plans
func (h *PaymentPlanHandler) Create(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}

	var req CreatePaymentPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = "usd"
	}
	items := make([]billing.PaymentPlanItemInput, len(req.Items))
	for i, item := range req.Items {
		items[i] = billing.PaymentPlanItemInput{Amount: item.Amount, DueDate: item.DueDate}
	}

	plan, err := h.plans.Create(c.Request.Context(), tenantID, appbilling.CreatePaymentPlanInput{
		CustomerID:      req.CustomerID,
		JobID:           req.JobID,
		Currency:        currency,
		Total:           req.Total,
		Items:           items,
		StripeAccountID: req.StripeAccountID,
		Actor:           getActorID(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, plan)
}

// Get returns a payment plan with its installments
//
//	GET /api/v1/billing/payment-plans/:id
func (h *PaymentPlanHandler) Get(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	planID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	plan, err := h.plans.Get(c.Request.Context(), tenantID, planID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, plan)
}

// SendInstallment opens a checkout session for one installment
//
//	POST /api/v1/billing/payment-plans/:id/items/:item_id/send
func (h *PaymentPlanHandler) SendInstallment(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	planID, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := h.parseUUIDParam(c, "item_id")
	if !ok {
		return
	}

	result, err := h.plans.SendInstallment(c.Request.Context(), tenantID, planID, itemID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
