package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	appbilling "github.com/fieldops/backend/internal/application/billing"
	"github.com/fieldops/backend/internal/domain/billing"
	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/fieldops/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newWebhookRouter(processor WebhookProcessor) *gin.Engine {
	h := NewStripeWebhookHandler(processor)
	r := gin.New()
	r.POST("/webhooks/stripe", h.HandlePlatform)
	r.POST("/webhooks/stripe/accounts/:account_id", h.HandleConnectedAccount)
	return r
}

func postWebhook(r http.Handler, path string, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	if signature != "" {
		req.Header.Set(StripeSignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStripeWebhookHandler_Success(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)

	t.Run("platform endpoint routes with no account", func(t *testing.T) {
		processor := new(mockWebhookProcessor)
		processor.On("ProcessEvent", mock.Anything, payload, "t=1,v1=abc", billing.NoAccount()).
			Return(&appbilling.WebhookResult{EventID: "evt_1", EventType: "checkout.session.completed", Processed: true}, nil)

		w := postWebhook(newWebhookRouter(processor), "/webhooks/stripe", payload, "t=1,v1=abc")

		assert.Equal(t, http.StatusOK, w.Code)
		var resp StripeWebhookResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Received)
		assert.Equal(t, "evt_1", resp.EventID)
		assert.False(t, resp.Duplicate)
		processor.AssertExpectations(t)
	})

	t.Run("account endpoint routes with the path account", func(t *testing.T) {
		processor := new(mockWebhookProcessor)
		processor.On("ProcessEvent", mock.Anything, payload, "sig", billing.SomeAccount("acct_123")).
			Return(&appbilling.WebhookResult{EventID: "evt_1", Ignored: true, Message: "Event account does not match endpoint"}, nil)

		w := postWebhook(newWebhookRouter(processor), "/webhooks/stripe/accounts/acct_123", payload, "sig")

		assert.Equal(t, http.StatusOK, w.Code)
		var resp StripeWebhookResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Ignored)
		processor.AssertExpectations(t)
	})

	t.Run("duplicates are acknowledged", func(t *testing.T) {
		processor := new(mockWebhookProcessor)
		processor.On("ProcessEvent", mock.Anything, payload, "sig", billing.NoAccount()).
			Return(&appbilling.WebhookResult{EventID: "evt_1", Processed: true, Duplicate: true}, nil)

		w := postWebhook(newWebhookRouter(processor), "/webhooks/stripe", payload, "sig")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"duplicate":true`)
	})
}

func TestStripeWebhookHandler_Rejections(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)

	t.Run("missing signature", func(t *testing.T) {
		processor := new(mockWebhookProcessor)
		w := postWebhook(newWebhookRouter(processor), "/webhooks/stripe", payload, "")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrCodeSignatureInvalid)
		processor.AssertNotCalled(t, "ProcessEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("oversized payload", func(t *testing.T) {
		processor := new(mockWebhookProcessor)
		big := bytes.Repeat([]byte("x"), maxWebhookPayloadSize+1)
		w := postWebhook(newWebhookRouter(processor), "/webhooks/stripe", big, "sig")

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		processor.AssertNotCalled(t, "ProcessEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("configured payload cap", func(t *testing.T) {
		processor := new(mockWebhookProcessor)
		h := NewStripeWebhookHandler(processor).WithMaxPayload(8)
		r := gin.New()
		r.POST("/webhooks/stripe", h.HandlePlatform)

		w := postWebhook(r, "/webhooks/stripe", payload, "sig")

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrCodePayloadTooLarge)
	})

	t.Run("invalid signature", func(t *testing.T) {
		processor := new(mockWebhookProcessor)
		processor.On("ProcessEvent", mock.Anything, payload, "bad", billing.NoAccount()).
			Return(nil, billing.ErrSignatureInvalid.WithDetail("reason", "no matching v1 signature"))

		w := postWebhook(newWebhookRouter(processor), "/webhooks/stripe", payload, "bad")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.NotContains(t, w.Body.String(), "no matching")
	})

	t.Run("malformed event", func(t *testing.T) {
		processor := new(mockWebhookProcessor)
		processor.On("ProcessEvent", mock.Anything, payload, "sig", billing.NoAccount()).
			Return(nil, shared.ErrInvalidInput.WithMessage("stripe: webhook event has no data object"))

		w := postWebhook(newWebhookRouter(processor), "/webhooks/stripe", payload, "sig")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrCodeInvalidInput)
	})

	t.Run("handler failure asks for redelivery", func(t *testing.T) {
		processor := new(mockWebhookProcessor)
		processor.On("ProcessEvent", mock.Anything, payload, "sig", billing.NoAccount()).
			Return(&appbilling.WebhookResult{EventID: "evt_1", EventType: "charge.refunded"}, billing.NewInvalidTransitionError("refund", billing.InvoiceStatusVoided))

		w := postWebhook(newWebhookRouter(processor), "/webhooks/stripe", payload, "sig")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrCodeInternal)
	})
}
