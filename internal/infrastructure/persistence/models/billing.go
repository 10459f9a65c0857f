package models

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/fieldops/backend/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
type InvoiceModel struct {
	TenantAggregateModel
	CustomerID uuid.UUID             `gorm:"type:uuid;not null;index"`
	JobID      *uuid.UUID            `gorm:"type:uuid;index"`
	EstimateID *uuid.UUID            `gorm:"type:uuid;index:idx_invoice_estimate_type,priority:1"`
	Type       billing.InvoiceType   `gorm:"type:varchar(20);not null;default:'standard';index:idx_invoice_estimate_type,priority:2"`
	Status     billing.InvoiceStatus `gorm:"type:varchar(20);not null;default:'draft';index"`
	Currency   string                `gorm:"type:varchar(3);not null;default:'usd'"`
	Subtotal   decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	TaxRate    decimal.Decimal       `gorm:"type:decimal(9,6);not null"`
	TaxAmount  decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	Total      decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	AmountPaid decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	AmountDue  decimal.Decimal       `gorm:"type:decimal(18,2);not null"`

	StripeAccountID   *string `gorm:"type:varchar(255);index"`
	CheckoutSessionID *string `gorm:"type:varchar(255);uniqueIndex"`
	CheckoutURL       *string `gorm:"type:text"`
	CheckoutExpiresAt *time.Time
	PaymentIntentID   *string `gorm:"type:varchar(255);index"`
	DisputeID         *string `gorm:"type:varchar(255);index"`

	VoidReason string `gorm:"type:varchar(500)"`
	SentAt     *time.Time
	PaidAt     *time.Time
	DisputedAt *time.Time
	RefundedAt *time.Time
	VoidedAt   *time.Time
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice.
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	return &billing.Invoice{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		CustomerID:          m.CustomerID,
		JobID:               m.JobID,
		EstimateID:          m.EstimateID,
		Type:                m.Type,
		Status:              m.Status,
		Currency:            m.Currency,
		Subtotal:            m.Subtotal,
		TaxRate:             m.TaxRate,
		TaxAmount:           m.TaxAmount,
		Total:               m.Total,
		AmountPaid:          m.AmountPaid,
		AmountDue:           m.AmountDue,
		StripeAccountID:     m.StripeAccountID,
		CheckoutSessionID:   m.CheckoutSessionID,
		CheckoutURL:         m.CheckoutURL,
		CheckoutExpiresAt:   m.CheckoutExpiresAt,
		PaymentIntentID:     m.PaymentIntentID,
		DisputeID:           m.DisputeID,
		VoidReason:          m.VoidReason,
		SentAt:              m.SentAt,
		PaidAt:              m.PaidAt,
		DisputedAt:          m.DisputedAt,
		RefundedAt:          m.RefundedAt,
		VoidedAt:            m.VoidedAt,
	}
}

// FromDomain populates the persistence model from a domain Invoice.
func (m *InvoiceModel) FromDomain(inv *billing.Invoice) {
	m.FromDomainTenantAggregateRoot(inv.TenantAggregateRoot)
	m.CustomerID = inv.CustomerID
	m.JobID = inv.JobID
	m.EstimateID = inv.EstimateID
	m.Type = inv.Type
	m.Status = inv.Status
	m.Currency = inv.Currency
	m.Subtotal = inv.Subtotal
	m.TaxRate = inv.TaxRate
	m.TaxAmount = inv.TaxAmount
	m.Total = inv.Total
	m.AmountPaid = inv.AmountPaid
	m.AmountDue = inv.AmountDue
	m.StripeAccountID = inv.StripeAccountID
	m.CheckoutSessionID = inv.CheckoutSessionID
	m.CheckoutURL = inv.CheckoutURL
	m.CheckoutExpiresAt = inv.CheckoutExpiresAt
	m.PaymentIntentID = inv.PaymentIntentID
	m.DisputeID = inv.DisputeID
	m.VoidReason = inv.VoidReason
	m.SentAt = inv.SentAt
	m.PaidAt = inv.PaidAt
	m.DisputedAt = inv.DisputedAt
	m.RefundedAt = inv.RefundedAt
	m.VoidedAt = inv.VoidedAt
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *billing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// PaymentModel is the persistence model for payments.
// payment_intent_id is unique so a payment intent settles at most once.
type PaymentModel struct {
	BaseModel
	TenantID        uuid.UUID                 `gorm:"type:uuid;not null;index"`
	InvoiceID       uuid.UUID                 `gorm:"type:uuid;not null;index"`
	Method          billing.PaymentMethod     `gorm:"type:varchar(20);not null"`
	Instrument      billing.PaymentInstrument `gorm:"type:varchar(20);not null"`
	Status          billing.PaymentStatus     `gorm:"type:varchar(20);not null;default:'completed'"`
	Amount          decimal.Decimal           `gorm:"type:decimal(18,2);not null"`
	RefundedAmount  decimal.Decimal           `gorm:"type:decimal(18,2);not null;default:0"`
	PaymentIntentID *string                   `gorm:"type:varchar(255);uniqueIndex"`
	ChargeID        *string                   `gorm:"type:varchar(255);index"`
	StripeAccountID *string                   `gorm:"type:varchar(255);index"`
	RecordedBy      *uuid.UUID                `gorm:"type:uuid"`
	Notes           string                    `gorm:"type:text"`
	PaidAt          time.Time                 `gorm:"not null"`
	RefundedAt      *time.Time
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment.
func (m *PaymentModel) ToDomain() *billing.Payment {
	return &billing.Payment{
		BaseEntity:      m.BaseModel.ToDomain(),
		TenantID:        m.TenantID,
		InvoiceID:       m.InvoiceID,
		Method:          m.Method,
		Instrument:      m.Instrument,
		Status:          m.Status,
		Amount:          m.Amount,
		RefundedAmount:  m.RefundedAmount,
		PaymentIntentID: m.PaymentIntentID,
		ChargeID:        m.ChargeID,
		StripeAccountID: m.StripeAccountID,
		RecordedBy:      m.RecordedBy,
		Notes:           m.Notes,
		PaidAt:          m.PaidAt,
		RefundedAt:      m.RefundedAt,
	}
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment.
func PaymentModelFromDomain(p *billing.Payment) *PaymentModel {
	return &PaymentModel{
		BaseModel: BaseModel{
			ID:        p.ID,
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		},
		TenantID:        p.TenantID,
		InvoiceID:       p.InvoiceID,
		Method:          p.Method,
		Instrument:      p.Instrument,
		Status:          p.Status,
		Amount:          p.Amount,
		RefundedAmount:  p.RefundedAmount,
		PaymentIntentID: p.PaymentIntentID,
		ChargeID:        p.ChargeID,
		StripeAccountID: p.StripeAccountID,
		RecordedBy:      p.RecordedBy,
		Notes:           p.Notes,
		PaidAt:          p.PaidAt,
		RefundedAt:      p.RefundedAt,
	}
}

// InvoiceAllocationModel is the persistence model for invoice allocations.
type InvoiceAllocationModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key"`
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	PaymentID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	AmountApplied decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	CreatedAt     time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InvoiceAllocationModel) TableName() string {
	return "invoice_allocations"
}

// ToDomain converts the persistence model to a domain InvoiceAllocation.
func (m *InvoiceAllocationModel) ToDomain() billing.InvoiceAllocation {
	return billing.InvoiceAllocation{
		ID:            m.ID,
		TenantID:      m.TenantID,
		InvoiceID:     m.InvoiceID,
		PaymentID:     m.PaymentID,
		AmountApplied: m.AmountApplied,
		CreatedAt:     m.CreatedAt,
	}
}

// InvoiceAllocationModelFromDomain creates a new persistence model from a domain InvoiceAllocation.
func InvoiceAllocationModelFromDomain(a *billing.InvoiceAllocation) *InvoiceAllocationModel {
	return &InvoiceAllocationModel{
		ID:            a.ID,
		TenantID:      a.TenantID,
		InvoiceID:     a.InvoiceID,
		PaymentID:     a.PaymentID,
		AmountApplied: a.AmountApplied,
		CreatedAt:     a.CreatedAt,
	}
}

// ProcessedEventModel records claimed processor event ids. The table is global
// because event ids are unique per processor, not per tenant.
type ProcessedEventModel struct {
	EventID     string         `gorm:"type:varchar(255);primaryKey"`
	EventType   string         `gorm:"type:varchar(100);not null"`
	AccountID   *string        `gorm:"type:varchar(255)"`
	Payload     datatypes.JSON `gorm:"not null"`
	ProcessedAt time.Time      `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProcessedEventModel) TableName() string {
	return "processed_events"
}

// ProcessedEventModelFromDomain creates a new persistence model from a domain ProcessedEvent.
func ProcessedEventModelFromDomain(e *billing.ProcessedEvent) *ProcessedEventModel {
	payload := datatypes.JSON(e.Payload)
	if !json.Valid(payload) {
		payload = datatypes.JSON("{}")
	}
	return &ProcessedEventModel{
		EventID:     e.EventID,
		EventType:   e.EventType,
		AccountID:   e.AccountID,
		Payload:     payload,
		ProcessedAt: e.ProcessedAt,
	}
}

// JobModel holds the slice of the jobs table the ledger reads and writes.
type JobModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID    uuid.UUID `gorm:"type:uuid;not null;index"`
	DepositPaid bool      `gorm:"not null;default:false"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (JobModel) TableName() string {
	return "jobs"
}

// ToDomain converts the persistence model to a domain Job.
func (m *JobModel) ToDomain() *billing.Job {
	return &billing.Job{
		ID:          m.ID,
		TenantID:    m.TenantID,
		DepositPaid: m.DepositPaid,
		UpdatedAt:   m.UpdatedAt,
	}
}

// AuditLogModel is the persistence model for audit entries.
type AuditLogModel struct {
	ID         snowflake.ID      `gorm:"primaryKey;autoIncrement:false"`
	TenantID   uuid.UUID         `gorm:"type:uuid;not null;index:idx_audit_entity,priority:1"`
	Action     string            `gorm:"type:varchar(100);not null;index"`
	EntityType string            `gorm:"type:varchar(50);not null;index:idx_audit_entity,priority:2"`
	EntityID   uuid.UUID         `gorm:"type:uuid;not null;index:idx_audit_entity,priority:3"`
	NewState   datatypes.JSONMap `gorm:"not null"`
	ActorID    *uuid.UUID        `gorm:"type:uuid"`
	CreatedAt  time.Time         `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AuditLogModel) TableName() string {
	return "audit_logs"
}

// ToDomain converts the persistence model to a domain AuditLog.
func (m *AuditLogModel) ToDomain() billing.AuditLog {
	return billing.AuditLog{
		ID:         m.ID.Int64(),
		TenantID:   m.TenantID,
		Action:     billing.AuditAction(m.Action),
		EntityType: m.EntityType,
		EntityID:   m.EntityID,
		NewState:   map[string]any(m.NewState),
		ActorID:    m.ActorID,
		CreatedAt:  m.CreatedAt,
	}
}

// AuditLogModelFromDomain creates a new persistence model from a domain AuditLog.
func AuditLogModelFromDomain(e *billing.AuditLog) *AuditLogModel {
	state := datatypes.JSONMap(e.NewState)
	if state == nil {
		state = datatypes.JSONMap{}
	}
	return &AuditLogModel{
		ID:         snowflake.ID(e.ID),
		TenantID:   e.TenantID,
		Action:     string(e.Action),
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		NewState:   state,
		ActorID:    e.ActorID,
		CreatedAt:  e.CreatedAt,
	}
}

// EstimateModel is the persistence model for estimates.
type EstimateModel struct {
	TenantAggregateModel
	CustomerID uuid.UUID              `gorm:"type:uuid;not null;index"`
	JobID      *uuid.UUID             `gorm:"type:uuid;index"`
	Status     billing.EstimateStatus `gorm:"type:varchar(20);not null;default:'draft'"`
	Snapshot   datatypes.JSON
}

// TableName returns the table name for GORM
func (EstimateModel) TableName() string {
	return "estimates"
}

// ToDomain converts the persistence model to a domain Estimate.
func (m *EstimateModel) ToDomain() (*billing.Estimate, error) {
	est := &billing.Estimate{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		CustomerID:          m.CustomerID,
		JobID:               m.JobID,
		Status:              m.Status,
	}
	if len(m.Snapshot) > 0 && string(m.Snapshot) != "null" {
		var snap billing.EstimateSnapshot
		if err := json.Unmarshal(m.Snapshot, &snap); err != nil {
			return nil, err
		}
		est.Snapshot = &snap
	}
	return est, nil
}

// EstimateModelFromDomain creates a new persistence model from a domain Estimate.
func EstimateModelFromDomain(e *billing.Estimate) (*EstimateModel, error) {
	m := &EstimateModel{
		CustomerID: e.CustomerID,
		JobID:      e.JobID,
		Status:     e.Status,
	}
	m.FromDomainTenantAggregateRoot(e.TenantAggregateRoot)
	if e.Snapshot != nil {
		raw, err := json.Marshal(e.Snapshot)
		if err != nil {
			return nil, err
		}
		m.Snapshot = datatypes.JSON(raw)
	}
	return m, nil
}

// PaymentPlanModel is the persistence model for the PaymentPlan aggregate root.
type PaymentPlanModel struct {
	TenantAggregateModel
	CustomerID      uuid.UUID                 `gorm:"type:uuid;not null;index"`
	JobID           *uuid.UUID                `gorm:"type:uuid;index"`
	Currency        string                    `gorm:"type:varchar(3);not null;default:'usd'"`
	Total           decimal.Decimal           `gorm:"type:decimal(18,2);not null"`
	AmountPaid      decimal.Decimal           `gorm:"type:decimal(18,2);not null"`
	AmountDue       decimal.Decimal           `gorm:"type:decimal(18,2);not null"`
	Status          billing.PaymentPlanStatus `gorm:"type:varchar(20);not null;default:'active'"`
	StripeAccountID *string                   `gorm:"type:varchar(255);index"`
	Items           []PaymentPlanItemModel    `gorm:"foreignKey:PlanID;references:ID"`
}

// TableName returns the table name for GORM
func (PaymentPlanModel) TableName() string {
	return "payment_plans"
}

// PaymentPlanItemModel is the persistence model for a payment plan installment.
type PaymentPlanItemModel struct {
	ID                uuid.UUID                     `gorm:"type:uuid;primary_key"`
	PlanID            uuid.UUID                     `gorm:"type:uuid;not null;index"`
	Sequence          int                           `gorm:"not null"`
	Amount            decimal.Decimal               `gorm:"type:decimal(18,2);not null"`
	DueDate           time.Time                     `gorm:"not null"`
	Status            billing.PaymentPlanItemStatus `gorm:"type:varchar(20);not null;default:'pending'"`
	CheckoutSessionID *string                       `gorm:"type:varchar(255)"`
	CorrelationID     *string                       `gorm:"type:varchar(255)"`
	PaidAt            *time.Time
}

// TableName returns the table name for GORM
func (PaymentPlanItemModel) TableName() string {
	return "payment_plan_items"
}

// ToDomain converts the persistence model to a domain PaymentPlan.
func (m *PaymentPlanModel) ToDomain() *billing.PaymentPlan {
	plan := &billing.PaymentPlan{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		CustomerID:          m.CustomerID,
		JobID:               m.JobID,
		Currency:            m.Currency,
		Total:               m.Total,
		AmountPaid:          m.AmountPaid,
		AmountDue:           m.AmountDue,
		Status:              m.Status,
		StripeAccountID:     m.StripeAccountID,
		Items:               make([]billing.PaymentPlanItem, len(m.Items)),
	}
	for i, item := range m.Items {
		plan.Items[i] = billing.PaymentPlanItem{
			ID:                item.ID,
			PlanID:            item.PlanID,
			Sequence:          item.Sequence,
			Amount:            item.Amount,
			DueDate:           item.DueDate,
			Status:            item.Status,
			CheckoutSessionID: item.CheckoutSessionID,
			CorrelationID:     item.CorrelationID,
			PaidAt:            item.PaidAt,
		}
	}
	return plan
}

// PaymentPlanModelFromDomain creates a new persistence model from a domain PaymentPlan.
func PaymentPlanModelFromDomain(p *billing.PaymentPlan) *PaymentPlanModel {
	m := &PaymentPlanModel{
		CustomerID:      p.CustomerID,
		JobID:           p.JobID,
		Currency:        p.Currency,
		Total:           p.Total,
		AmountPaid:      p.AmountPaid,
		AmountDue:       p.AmountDue,
		Status:          p.Status,
		StripeAccountID: p.StripeAccountID,
		Items:           make([]PaymentPlanItemModel, len(p.Items)),
	}
	m.FromDomainTenantAggregateRoot(p.TenantAggregateRoot)
	for i, item := range p.Items {
		m.Items[i] = PaymentPlanItemModel{
			ID:                item.ID,
			PlanID:            p.ID,
			Sequence:          item.Sequence,
			Amount:            item.Amount,
			DueDate:           item.DueDate,
			Status:            item.Status,
			CheckoutSessionID: item.CheckoutSessionID,
			CorrelationID:     item.CorrelationID,
			PaidAt:            item.PaidAt,
		}
	}
	return m
}

// AllModels returns every billing model for AutoMigrate in tests
func AllModels() []any {
	return []any{
		&InvoiceModel{},
		&PaymentModel{},
		&InvoiceAllocationModel{},
		&ProcessedEventModel{},
		&JobModel{},
		&AuditLogModel{},
		&EstimateModel{},
		&PaymentPlanModel{},
		&PaymentPlanItemModel{},
	}
}
