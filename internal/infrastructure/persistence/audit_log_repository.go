package persistence

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/fieldops/backend/internal/domain/billing"
	"github.com/fieldops/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAuditLogRepository implements AuditLogRepository using GORM.
// Entry ids come from a snowflake node so they sort by creation time.
type GormAuditLogRepository struct {
	db   *gorm.DB
	node *snowflake.Node
}

// NewGormAuditLogRepository creates a new GormAuditLogRepository
func NewGormAuditLogRepository(db *gorm.DB, node *snowflake.Node) *GormAuditLogRepository {
	return &GormAuditLogRepository{db: db, node: node}
}

// Append inserts an audit entry
func (r *GormAuditLogRepository) Append(ctx context.Context, entry *billing.AuditLog) error {
	if entry.ID == 0 {
		entry.ID = r.node.Generate().Int64()
	}
	return r.db.WithContext(ctx).Create(models.AuditLogModelFromDomain(entry)).Error
}

// ListByEntity lists the audit trail of an entity in creation order
func (r *GormAuditLogRepository) ListByEntity(ctx context.Context, tenantID uuid.UUID, entityType string, entityID uuid.UUID) ([]billing.AuditLog, error) {
	var logModels []models.AuditLogModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND entity_type = ? AND entity_id = ?", tenantID, entityType, entityID).
		Order("id ASC").
		Find(&logModels).Error; err != nil {
		return nil, err
	}
	entries := make([]billing.AuditLog, len(logModels))
	for i, model := range logModels {
		entries[i] = model.ToDomain()
	}
	return entries, nil
}

// Ensure GormAuditLogRepository implements AuditLogRepository
var _ billing.AuditLogRepository = (*GormAuditLogRepository)(nil)
