package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	appbilling "github.com/fieldops/backend/internal/application/billing"
	"github.com/fieldops/backend/internal/domain/billing"
	"github.com/fieldops/backend/internal/infrastructure/logger"
	"github.com/fieldops/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Maximum webhook payload size (64KB - Stripe webhooks are typically small)
const maxWebhookPayloadSize = 65536

// StripeSignatureHeader carries the webhook signature
const StripeSignatureHeader = "Stripe-Signature"

// WebhookProcessor applies a verified processor event to the ledger
type WebhookProcessor interface {
	ProcessEvent(ctx context.Context, payload []byte, signature string, routing billing.AccountRef) (*appbilling.WebhookResult, error)
}

// StripeWebhookHandler handles Stripe webhook endpoints.
// These endpoints are called by Stripe and are not tenant scoped.
type StripeWebhookHandler struct {
	BaseHandler
	processor  WebhookProcessor
	maxPayload int64
}

// NewStripeWebhookHandler creates a new StripeWebhookHandler
func NewStripeWebhookHandler(processor WebhookProcessor) *StripeWebhookHandler {
	return &StripeWebhookHandler{processor: processor, maxPayload: maxWebhookPayloadSize}
}

// WithMaxPayload overrides the payload cap. Non-positive values keep the default.
func (h *StripeWebhookHandler) WithMaxPayload(n int64) *StripeWebhookHandler {
	if n > 0 {
		h.maxPayload = n
	}
	return h
}

// StripeWebhookResponse is the acknowledgement body returned to Stripe
type StripeWebhookResponse struct {
	Received  bool   `json:"received"`
	EventID   string `json:"event_id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Ignored   bool   `json:"ignored,omitempty"`
	Message   string `json:"message,omitempty"`
}

// HandlePlatform receives events for the platform account
//
//	POST /webhooks/stripe
func (h *StripeWebhookHandler) HandlePlatform(c *gin.Context) {
	h.handle(c, billing.NoAccount())
}

// HandleConnectedAccount receives events delivered to a connected account endpoint
//
//	POST /webhooks/stripe/accounts/:account_id
func (h *StripeWebhookHandler) HandleConnectedAccount(c *gin.Context) {
	accountID := c.Param("account_id")
	if accountID == "" {
		h.BadRequest(c, "account_id is required")
		return
	}
	h.handle(c, billing.SomeAccount(accountID))
}

func (h *StripeWebhookHandler) handle(c *gin.Context, routing billing.AccountRef) {
	// Stripe requires the raw body for signature verification
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxPayload+1))
	if err != nil {
		h.BadRequest(c, "Failed to read request body")
		return
	}
	if int64(len(payload)) > h.maxPayload {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodePayloadTooLarge, "Payload too large")
		return
	}

	signature := c.GetHeader(StripeSignatureHeader)
	if signature == "" {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeSignatureInvalid, "Missing Stripe-Signature header")
		return
	}

	result, err := h.processor.ProcessEvent(c.Request.Context(), payload, signature, routing)
	if result != nil && result.EventID != "" {
		c.Set(logger.GinEventIDKey, result.EventID)
	}
	if err != nil {
		if result == nil {
			// Rejected before any transaction: bad signature or malformed event
			if errors.Is(err, billing.ErrSignatureInvalid) {
				logger.GetGinLogger(c).Warn("Webhook signature verification failed", zap.Error(err))
				h.Error(c, http.StatusUnauthorized, dto.ErrCodeSignatureInvalid, "Webhook signature verification failed")
				return
			}
			h.HandleError(c, err)
			return
		}
		// Nothing was committed; a 5xx makes Stripe redeliver
		logger.GetGinLogger(c).Error("Webhook processing failed",
			zap.String("event_id", result.EventID),
			zap.String("event_type", result.EventType),
			zap.Error(err))
		_ = c.Error(err)
		h.InternalError(c, "Webhook processing failed")
		return
	}

	c.JSON(http.StatusOK, StripeWebhookResponse{
		Received:  true,
		EventID:   result.EventID,
		EventType: result.EventType,
		Duplicate: result.Duplicate,
		Ignored:   result.Ignored,
		Message:   result.Message,
	})
}
