package shared

import (
	"github.com/google/uuid"
)

// TenantAggregateRoot is the base for tenant-scoped aggregates.
// Version is bumped on every persisted mutation.
type TenantAggregateRoot struct {
	BaseEntity
	TenantID uuid.UUID
	Version  int
}

// NewTenantAggregateRoot creates a new tenant-scoped aggregate root
func NewTenantAggregateRoot(tenantID uuid.UUID) TenantAggregateRoot {
	return TenantAggregateRoot{
		BaseEntity: NewBaseEntity(),
		TenantID:   tenantID,
		Version:    1,
	}
}

// IncrementVersion increments the version number
func (a *TenantAggregateRoot) IncrementVersion() {
	a.Version++
}

// BelongsTo reports whether the aggregate is owned by tenantID
func (a *TenantAggregateRoot) BelongsTo(tenantID uuid.UUID) bool {
	return a.TenantID == tenantID
}
