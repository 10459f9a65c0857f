package persistence

import (
	"context"
	"database/sql"

	"github.com/bwmarrin/snowflake"
	appbilling "github.com/fieldops/backend/internal/application/billing"
	"github.com/fieldops/backend/internal/domain/billing"
	"gorm.io/gorm"
)

// GormLedgerScope implements LedgerScope using GORM transactions.
// Every repository handed to fn shares the same transaction.
type GormLedgerScope struct {
	db     *gorm.DB
	node   *snowflake.Node
	txOpts *sql.TxOptions
}

// LedgerScopeOption configures a GormLedgerScope
type LedgerScopeOption func(*GormLedgerScope)

// WithIsolation begins every transaction at the given isolation level.
// Row locks taken by the ForUpdate finders serialize writers at read committed.
func WithIsolation(level sql.IsolationLevel) LedgerScopeOption {
	return func(s *GormLedgerScope) {
		s.txOpts = &sql.TxOptions{Isolation: level}
	}
}

// NewGormLedgerScope creates a new GormLedgerScope. node generates audit log ids.
func NewGormLedgerScope(db *gorm.DB, node *snowflake.Node, opts ...LedgerScopeOption) *GormLedgerScope {
	s := &GormLedgerScope{db: db, node: node}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormLedgerScope) Execute(ctx context.Context, fn func(ledger appbilling.Ledger) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormLedger{db: tx, node: s.node})
	}, s.txOptions()...)
}

func (s *GormLedgerScope) txOptions() []*sql.TxOptions {
	if s.txOpts == nil {
		return nil
	}
	return []*sql.TxOptions{s.txOpts}
}

// NewGormLedger returns a Ledger bound to db without opening a transaction.
// Use it for reads; ForUpdate finders require a transaction.
func NewGormLedger(db *gorm.DB, node *snowflake.Node) appbilling.Ledger {
	return &gormLedger{db: db, node: node}
}

// gormLedger provides access to the billing repositories on one handle
type gormLedger struct {
	db   *gorm.DB
	node *snowflake.Node
}

func (l *gormLedger) Invoices() billing.InvoiceRepository {
	return NewGormInvoiceRepository(l.db)
}

func (l *gormLedger) Payments() billing.PaymentRepository {
	return NewGormPaymentRepository(l.db)
}

func (l *gormLedger) Allocations() billing.AllocationRepository {
	return NewGormAllocationRepository(l.db)
}

func (l *gormLedger) Jobs() billing.JobRepository {
	return NewGormJobRepository(l.db)
}

func (l *gormLedger) AuditLogs() billing.AuditLogRepository {
	return NewGormAuditLogRepository(l.db, l.node)
}

func (l *gormLedger) PaymentPlans() billing.PaymentPlanRepository {
	return NewGormPaymentPlanRepository(l.db)
}

func (l *gormLedger) ProcessedEvents() billing.ProcessedEventRepository {
	return NewGormProcessedEventRepository(l.db)
}

func (l *gormLedger) Estimates() billing.EstimateRepository {
	return NewGormEstimateRepository(l.db)
}

// Ensure GormLedgerScope implements LedgerScope
var _ appbilling.LedgerScope = (*GormLedgerScope)(nil)

// Ensure gormLedger implements Ledger
var _ appbilling.Ledger = (*gormLedger)(nil)
