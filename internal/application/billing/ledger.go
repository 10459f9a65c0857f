package billing

import (
	"context"

	"github.com/fieldops/backend/internal/domain/billing"
)

// Ledger is the set of repositories a reconciliation step may touch. Every
// repository returned by one Ledger shares the same database handle, so inside
// LedgerScope.Execute they share one transaction.
type Ledger interface {
	Invoices() billing.InvoiceRepository
	Payments() billing.PaymentRepository
	Allocations() billing.AllocationRepository
	Jobs() billing.JobRepository
	AuditLogs() billing.AuditLogRepository
	PaymentPlans() billing.PaymentPlanRepository
	ProcessedEvents() billing.ProcessedEventRepository
	Estimates() billing.EstimateRepository
}

// LedgerScope runs a function inside one database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
type LedgerScope interface {
	Execute(ctx context.Context, fn func(ledger Ledger) error) error
}
