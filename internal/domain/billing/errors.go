package billing

import (
	"fmt"

	"github.com/fieldops/backend/internal/domain/shared"
)

// Error codes specific to the billing ledger
const (
	CodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	CodeNotBillable            = "NOT_BILLABLE"
	CodeRefundInsteadOfVoid    = "REFUND_INSTEAD_OF_VOID"
	CodeExceedsAmountDue       = "EXCEEDS_AMOUNT_DUE"
	CodeSignatureInvalid       = "SIGNATURE_INVALID"
	CodeUnsupportedEvent       = "UNSUPPORTED_EVENT"
)

var (
	// ErrInvalidStateTransition is returned when an operation is not legal from the
	// invoice's current status. Derived errors carry "current_status" in Details.
	ErrInvalidStateTransition = shared.NewDomainError(CodeInvalidStateTransition, "Operation not allowed in current invoice status")
	ErrNotBillable            = shared.NewDomainError(CodeNotBillable, "Estimate is not billable")
	ErrRefundInsteadOfVoid    = shared.NewDomainError(CodeRefundInsteadOfVoid, "Invoice has payments applied; refund instead of void")
	ErrExceedsAmountDue       = shared.NewDomainError(CodeExceedsAmountDue, "Payment amount exceeds amount due")
	ErrSignatureInvalid       = shared.NewDomainError(CodeSignatureInvalid, "Webhook signature verification failed")
	ErrUnsupportedEvent       = shared.NewDomainError(CodeUnsupportedEvent, "Event type is not handled by the ledger")
)

// Detail keys carried by ErrUnsupportedEvent so an ignored delivery can still
// be named in logs and acknowledgements
const (
	DetailEventID   = "event_id"
	DetailEventType = "event_type"
)

// NewInvalidTransitionError builds an ErrInvalidStateTransition naming the attempted
// operation and the status it was attempted from.
func NewInvalidTransitionError(operation string, current InvoiceStatus) *shared.DomainError {
	return ErrInvalidStateTransition.
		WithMessage(fmt.Sprintf("cannot %s invoice in %s status", operation, current)).
		WithDetail("current_status", current.String()).
		WithDetail("operation", operation)
}
