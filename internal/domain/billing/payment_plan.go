package billing

import (
	"fmt"
	"time"

	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentPlanStatus represents the status of a payment plan
type PaymentPlanStatus string

const (
	PaymentPlanStatusActive    PaymentPlanStatus = "active"
	PaymentPlanStatusCompleted PaymentPlanStatus = "completed"
)

// PaymentPlanItemStatus represents the status of a single installment
type PaymentPlanItemStatus string

const (
	PaymentPlanItemPending PaymentPlanItemStatus = "pending"
	PaymentPlanItemPaid    PaymentPlanItemStatus = "paid"
)

// PaymentPlanItem is one scheduled installment
type PaymentPlanItem struct {
	ID                uuid.UUID
	PlanID            uuid.UUID
	Sequence          int
	Amount            decimal.Decimal
	DueDate           time.Time
	Status            PaymentPlanItemStatus
	CheckoutSessionID *string
	CorrelationID     *string
	PaidAt            *time.Time
}

// PaymentPlan splits a job's price into installments collected independently of invoices
type PaymentPlan struct {
	shared.TenantAggregateRoot
	CustomerID      uuid.UUID
	JobID           *uuid.UUID
	Currency        string
	Total           decimal.Decimal
	AmountPaid      decimal.Decimal
	AmountDue       decimal.Decimal
	Status          PaymentPlanStatus
	StripeAccountID *string
	Items           []PaymentPlanItem
}

// PaymentPlanItemInput describes an installment when creating a plan
type PaymentPlanItemInput struct {
	Amount  decimal.Decimal
	DueDate time.Time
}

// NewPaymentPlan creates an active plan. The installment amounts must add up to total.
func NewPaymentPlan(tenantID, customerID uuid.UUID, jobID *uuid.UUID, currency string, total decimal.Decimal, items []PaymentPlanItemInput, account AccountRef) (*PaymentPlan, error) {
	if !total.IsPositive() {
		return nil, shared.ErrInvalidInput.WithMessage("payment plan total must be positive")
	}
	if len(items) == 0 {
		return nil, shared.ErrInvalidInput.WithMessage("payment plan requires at least one item")
	}
	if currency == "" {
		currency = DefaultCurrency
	}

	plan := &PaymentPlan{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		CustomerID:          customerID,
		JobID:               jobID,
		Currency:            currency,
		Total:               RoundMoney(total),
		AmountPaid:          decimal.Zero,
		AmountDue:           RoundMoney(total),
		Status:              PaymentPlanStatusActive,
		StripeAccountID:     account.Ptr(),
	}

	sum := decimal.Zero
	for idx, in := range items {
		if !in.Amount.IsPositive() {
			return nil, shared.ErrInvalidInput.WithMessage(fmt.Sprintf("item %d amount must be positive", idx+1))
		}
		amount := RoundMoney(in.Amount)
		sum = sum.Add(amount)
		plan.Items = append(plan.Items, PaymentPlanItem{
			ID:       uuid.New(),
			PlanID:   plan.ID,
			Sequence: idx + 1,
			Amount:   amount,
			DueDate:  in.DueDate,
			Status:   PaymentPlanItemPending,
		})
	}
	if !sum.Equal(plan.Total) {
		return nil, shared.ErrInvalidInput.
			WithMessage("payment plan items must sum to the plan total").
			WithDetail("items_total", sum.StringFixed(2)).
			WithDetail("plan_total", plan.Total.StringFixed(2))
	}
	return plan, nil
}

// Account returns the processor account the plan is routed through
func (p *PaymentPlan) Account() AccountRef {
	return AccountFromPtr(p.StripeAccountID)
}

// Item returns the installment with the given id
func (p *PaymentPlan) Item(itemID uuid.UUID) (*PaymentPlanItem, bool) {
	for i := range p.Items {
		if p.Items[i].ID == itemID {
			return &p.Items[i], true
		}
	}
	return nil, false
}

// EnsureItemPayable returns an error unless the item exists and is still pending
func (p *PaymentPlan) EnsureItemPayable(itemID uuid.UUID) (*PaymentPlanItem, error) {
	item, ok := p.Item(itemID)
	if !ok {
		return nil, shared.ErrNotFound.WithMessage("payment plan item not found")
	}
	if item.Status == PaymentPlanItemPaid {
		return nil, shared.ErrInvalidState.
			WithMessage("installment is already paid").
			WithDetail("item_status", string(item.Status))
	}
	return item, nil
}

// AttachItemCheckout records the checkout session created for a pending installment
func (p *PaymentPlan) AttachItemCheckout(itemID uuid.UUID, sessionID string, at time.Time) error {
	item, err := p.EnsureItemPayable(itemID)
	if err != nil {
		return err
	}
	item.CheckoutSessionID = &sessionID
	p.Touch(at)
	return nil
}

// MarkItemPaid settles an installment and recomputes the plan totals. It reports
// false when the item was already paid.
func (p *PaymentPlan) MarkItemPaid(itemID uuid.UUID, correlationID string, at time.Time) (bool, error) {
	item, ok := p.Item(itemID)
	if !ok {
		return false, shared.ErrNotFound.WithMessage("payment plan item not found")
	}
	if item.Status == PaymentPlanItemPaid {
		return false, nil
	}
	item.Status = PaymentPlanItemPaid
	paidAt := at
	item.PaidAt = &paidAt
	if correlationID != "" {
		item.CorrelationID = &correlationID
	}
	p.Recompute()
	p.Touch(at)
	return true, nil
}

// Recompute derives AmountPaid, AmountDue and Status from the items
func (p *PaymentPlan) Recompute() {
	paid := decimal.Zero
	allPaid := len(p.Items) > 0
	for _, item := range p.Items {
		if item.Status == PaymentPlanItemPaid {
			paid = paid.Add(item.Amount)
		} else {
			allPaid = false
		}
	}
	p.AmountPaid = paid
	p.AmountDue = p.Total.Sub(paid)
	if allPaid {
		p.Status = PaymentPlanStatusCompleted
	} else {
		p.Status = PaymentPlanStatusActive
	}
}

// IsCompleted reports whether every installment is paid
func (p *PaymentPlan) IsCompleted() bool {
	return p.Status == PaymentPlanStatusCompleted
}

// Snapshot returns the audit representation of the plan's current state
func (p *PaymentPlan) Snapshot() map[string]any {
	return map[string]any{
		"status":      string(p.Status),
		"total":       p.Total.StringFixed(2),
		"amount_paid": p.AmountPaid.StringFixed(2),
		"amount_due":  p.AmountDue.StringFixed(2),
	}
}
