package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/fieldops/backend/internal/domain/billing"
	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeSignatureInvalid, http.StatusUnauthorized},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeAlreadyExists, http.StatusConflict},
		{ErrCodeInvalidStateTransition, http.StatusConflict},
		{ErrCodeNotBillable, http.StatusConflict},
		{ErrCodeRefundInsteadOfVoid, http.StatusConflict},
		{ErrCodeExceedsAmountDue, http.StatusUnprocessableEntity},
		{ErrCodeInvalidInput, http.StatusBadRequest},
		{ErrCodePayloadTooLarge, http.StatusRequestEntityTooLarge},
		// Unknown code should return 500
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode_DomainSentinels(t *testing.T) {
	tests := []struct {
		err      *shared.DomainError
		expected string
	}{
		{shared.ErrNotFound, ErrCodeNotFound},
		{shared.ErrAlreadyExists, ErrCodeAlreadyExists},
		{shared.ErrInvalidInput, ErrCodeInvalidInput},
		{shared.ErrConcurrencyConflict, ErrCodeConcurrencyConflict},
		{billing.ErrInvalidStateTransition, ErrCodeInvalidStateTransition},
		{billing.ErrNotBillable, ErrCodeNotBillable},
		{billing.ErrRefundInsteadOfVoid, ErrCodeRefundInsteadOfVoid},
		{billing.ErrExceedsAmountDue, ErrCodeExceedsAmountDue},
		{billing.ErrSignatureInvalid, ErrCodeSignatureInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeErrorCode(tt.err.Code))
		})
	}

	assert.Equal(t, ErrCodeInternal, NormalizeErrorCode(ErrCodeInternal))
}

func TestNewValidationErrorResponse(t *testing.T) {
	fields := []ValidationDetail{
		{Field: "amount", Message: "Must be greater than zero"},
	}

	resp := NewValidationErrorResponse("Request validation failed", "req-789", fields)

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-789", resp.Error.RequestID)
	assert.Equal(t, fields, resp.Error.Fields)
}

func TestResponse_JSON(t *testing.T) {
	t.Run("success omits error", func(t *testing.T) {
		raw, err := json.Marshal(NewSuccessResponse(map[string]string{"id": "inv_1"}))
		require.NoError(t, err)
		assert.JSONEq(t, `{"success":true,"data":{"id":"inv_1"}}`, string(raw))
	})

	t.Run("error carries details", func(t *testing.T) {
		resp := NewErrorResponseWithRequestID(ErrCodeInvalidStateTransition, "cannot void invoice in paid status", "req-1")
		resp.Error.Details = map[string]string{"current_status": "paid"}

		raw, err := json.Marshal(resp)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"success": false,
			"error": {
				"code": "ERR_INVALID_STATE_TRANSITION",
				"message": "cannot void invoice in paid status",
				"request_id": "req-1",
				"details": {"current_status": "paid"}
			}
		}`, string(raw))
	})
}
