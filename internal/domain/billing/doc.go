// Package billing provides the invoice and payment ledger for field-service jobs.
//
// The package owns:
//   - Invoice: amount owed by a customer, governed by a single status state machine
//   - Payment and InvoiceAllocation: settlement records and the append-only lines applying them
//   - PaymentPlan: a parallel installment ledger keyed by schedule items
//   - ProcessorEvent: the finite set of payment-processor notifications the ledger reacts to
//   - Job deposit gate and AuditLog entries written alongside every ledger transition
//
// Money is always decimal.Decimal; processor amounts arrive in minor units and are
// converted with FromMinorUnits.
package billing
