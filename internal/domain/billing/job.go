package billing

import (
	"time"

	"github.com/google/uuid"
)

// Job is the downstream work order whose scheduling waits on a cleared deposit.
// The ledger only ever writes DepositPaid.
type Job struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	DepositPaid bool
	UpdatedAt   time.Time
}

// SetDepositPaid updates the deposit gate and reports whether it changed
func (j *Job) SetDepositPaid(paid bool, at time.Time) bool {
	if j.DepositPaid == paid {
		return false
	}
	j.DepositPaid = paid
	j.UpdatedAt = at
	return true
}
