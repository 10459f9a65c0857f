package persistence

import (
	"context"

	"github.com/fieldops/backend/internal/domain/billing"
	"github.com/fieldops/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAllocationRepository implements AllocationRepository using GORM
type GormAllocationRepository struct {
	db *gorm.DB
}

// NewGormAllocationRepository creates a new GormAllocationRepository
func NewGormAllocationRepository(db *gorm.DB) *GormAllocationRepository {
	return &GormAllocationRepository{db: db}
}

// Create inserts an allocation
func (r *GormAllocationRepository) Create(ctx context.Context, allocation *billing.InvoiceAllocation) error {
	return r.db.WithContext(ctx).Create(models.InvoiceAllocationModelFromDomain(allocation)).Error
}

// ListByInvoice lists the allocations of an invoice, oldest first
func (r *GormAllocationRepository) ListByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]billing.InvoiceAllocation, error) {
	var allocationModels []models.InvoiceAllocationModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("created_at ASC").
		Find(&allocationModels).Error; err != nil {
		return nil, err
	}
	allocations := make([]billing.InvoiceAllocation, len(allocationModels))
	for i, model := range allocationModels {
		allocations[i] = model.ToDomain()
	}
	return allocations, nil
}

// CountByInvoice counts the allocations of an invoice
func (r *GormAllocationRepository) CountByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.InvoiceAllocationModel{}).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure GormAllocationRepository implements AllocationRepository
var _ billing.AllocationRepository = (*GormAllocationRepository)(nil)
