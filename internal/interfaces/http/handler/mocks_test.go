package handler

import (
	"context"

	appbilling "github.com/fieldops/backend/internal/application/billing"
	"github.com/fieldops/backend/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type mockWebhookProcessor struct {
	mock.Mock
}

func (m *mockWebhookProcessor) ProcessEvent(ctx context.Context, payload []byte, signature string, routing billing.AccountRef) (*appbilling.WebhookResult, error) {
	args := m.Called(ctx, payload, signature, routing)
	result, _ := args.Get(0).(*appbilling.WebhookResult)
	return result, args.Error(1)
}

type mockInvoiceLifecycle struct {
	mock.Mock
}

func (m *mockInvoiceLifecycle) CreateFromEstimate(ctx context.Context, tenantID, estimateID uuid.UUID, input appbilling.CreateInvoiceInput) (*appbilling.InvoiceResponse, error) {
	args := m.Called(ctx, tenantID, estimateID, input)
	inv, _ := args.Get(0).(*appbilling.InvoiceResponse)
	return inv, args.Error(1)
}

func (m *mockInvoiceLifecycle) Get(ctx context.Context, tenantID, invoiceID uuid.UUID) (*appbilling.InvoiceResponse, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	inv, _ := args.Get(0).(*appbilling.InvoiceResponse)
	return inv, args.Error(1)
}

func (m *mockInvoiceLifecycle) Send(ctx context.Context, tenantID, invoiceID uuid.UUID) (*appbilling.SendResult, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	result, _ := args.Get(0).(*appbilling.SendResult)
	return result, args.Error(1)
}

func (m *mockInvoiceLifecycle) RecordOfflinePayment(ctx context.Context, tenantID, invoiceID uuid.UUID, input appbilling.OfflinePaymentInput) (*appbilling.InvoiceResponse, error) {
	args := m.Called(ctx, tenantID, invoiceID, input)
	inv, _ := args.Get(0).(*appbilling.InvoiceResponse)
	return inv, args.Error(1)
}

func (m *mockInvoiceLifecycle) Void(ctx context.Context, tenantID, invoiceID uuid.UUID, reason string, actor *uuid.UUID) (*appbilling.InvoiceResponse, error) {
	args := m.Called(ctx, tenantID, invoiceID, reason, actor)
	inv, _ := args.Get(0).(*appbilling.InvoiceResponse)
	return inv, args.Error(1)
}

type mockPaymentPlanLifecycle struct {
	mock.Mock
}

func (m *mockPaymentPlanLifecycle) Create(ctx context.Context, tenantID uuid.UUID, input appbilling.CreatePaymentPlanInput) (*appbilling.PaymentPlanResponse, error) {
	args := m.Called(ctx, tenantID, input)
	plan, _ := args.Get(0).(*appbilling.PaymentPlanResponse)
	return plan, args.Error(1)
}

func (m *mockPaymentPlanLifecycle) Get(ctx context.Context, tenantID, planID uuid.UUID) (*appbilling.PaymentPlanResponse, error) {
	args := m.Called(ctx, tenantID, planID)
	plan, _ := args.Get(0).(*appbilling.PaymentPlanResponse)
	return plan, args.Error(1)
}

func (m *mockPaymentPlanLifecycle) SendInstallment(ctx context.Context, tenantID, planID, itemID uuid.UUID) (*appbilling.SendResult, error) {
	args := m.Called(ctx, tenantID, planID, itemID)
	result, _ := args.Get(0).(*appbilling.SendResult)
	return result, args.Error(1)
}
