package billing_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	appbilling "github.com/fieldops/backend/internal/application/billing"
	"github.com/fieldops/backend/internal/domain/billing"
	"github.com/fieldops/backend/internal/domain/shared"
	infrabilling "github.com/fieldops/backend/internal/infrastructure/billing"
	"github.com/fieldops/backend/internal/infrastructure/cache"
	"github.com/fieldops/backend/internal/infrastructure/persistence"
	"github.com/fieldops/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testWebhookSecret = "whsec_ledger_test"

// MockCheckoutGateway is a testify mock for CheckoutGateway
type MockCheckoutGateway struct {
	mock.Mock
}

func (m *MockCheckoutGateway) CreateCheckoutSession(ctx context.Context, req appbilling.CheckoutRequest) (*billing.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if sess := args.Get(0); sess != nil {
		return sess.(*billing.CheckoutSession), args.Error(1)
	}
	return nil, args.Error(1)
}

// ledgerHarness wires the services onto an in-memory sqlite ledger with real
// Stripe signature verification
type ledgerHarness struct {
	db       *gorm.DB
	node     *snowflake.Node
	ledger   appbilling.Ledger
	gateway  *MockCheckoutGateway
	webhooks *appbilling.WebhookService
	invoices *appbilling.InvoiceService
	plans    *appbilling.PaymentPlanService
	cache    *cache.InMemoryProcessedEventCache
	logs     *observer.ObservedLogs
}

func newLedgerHarness(t *testing.T) *ledgerHarness {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps every handle on the same in-memory database and
	// serializes concurrent transactions
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	decoder, err := infrabilling.NewStripeEventDecoder(testWebhookSecret, log)
	require.NoError(t, err)

	ledger := persistence.NewGormLedger(db, node)
	scope := persistence.NewGormLedgerScope(db, node)
	gateway := &MockCheckoutGateway{}
	processed := cache.NewInMemoryProcessedEventCache(time.Hour)
	t.Cleanup(func() { _ = processed.Close() })

	return &ledgerHarness{
		db:      db,
		node:    node,
		ledger:  ledger,
		gateway: gateway,
		webhooks: appbilling.NewWebhookService(appbilling.WebhookServiceConfig{
			Decoder: decoder,
			Scope:   scope,
			Ledger:  ledger,
			Cache:   processed,
			Logger:  log,
		}),
		invoices: appbilling.NewInvoiceService(appbilling.InvoiceServiceConfig{
			Ledger:  ledger,
			Scope:   scope,
			Gateway: gateway,
			Logger:  log,
		}),
		plans: appbilling.NewPaymentPlanService(ledger, scope, gateway, log),
		cache: processed,
		logs:  logs,
	}
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// seedEstimate stores an estimate priced at 540.00 with a 108.00 deposit
func (h *ledgerHarness) seedEstimate(t *testing.T, tenantID uuid.UUID, jobID *uuid.UUID, status billing.EstimateStatus) *billing.Estimate {
	t.Helper()
	now := time.Now().UTC()
	root := shared.NewTenantAggregateRoot(tenantID)
	root.CreatedAt, root.UpdatedAt = now, now
	est := &billing.Estimate{
		TenantAggregateRoot: root,
		CustomerID:          uuid.New(),
		JobID:               jobID,
		Status:              status,
		Snapshot: &billing.EstimateSnapshot{
			Subtotal:   money("500.00"),
			TaxRate:    money("0.08"),
			TaxAmount:  money("40.00"),
			Total:      money("540.00"),
			Currency:   "usd",
			ApprovedAt: now,
			Deposit: &billing.DepositBreakdown{
				Subtotal:  money("100.00"),
				TaxAmount: money("8.00"),
				Total:     money("108.00"),
			},
		},
	}
	require.NoError(t, h.ledger.Estimates().Create(context.Background(), est))
	return est
}

// seedJob stores a job whose deposit gate starts closed
func (h *ledgerHarness) seedJob(t *testing.T, tenantID uuid.UUID) uuid.UUID {
	t.Helper()
	job := &billing.Job{ID: uuid.New(), TenantID: tenantID, UpdatedAt: time.Now().UTC()}
	require.NoError(t, h.ledger.Jobs().Create(context.Background(), job))
	return job.ID
}

// createInvoice creates an invoice of the given type from a fresh approved estimate
func (h *ledgerHarness) createInvoice(t *testing.T, tenantID uuid.UUID, jobID *uuid.UUID, invoiceType billing.InvoiceType, account *string) *appbilling.InvoiceResponse {
	t.Helper()
	est := h.seedEstimate(t, tenantID, jobID, billing.EstimateStatusApproved)
	inv, err := h.invoices.CreateFromEstimate(context.Background(), tenantID, est.ID, appbilling.CreateInvoiceInput{
		Type:            invoiceType,
		StripeAccountID: account,
	})
	require.NoError(t, err)
	return inv
}

// sendInvoice sends an invoice through the mock gateway with the given session id
func (h *ledgerHarness) sendInvoice(t *testing.T, tenantID, invoiceID uuid.UUID, sessionID string) *appbilling.SendResult {
	t.Helper()
	h.gateway.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(req appbilling.CheckoutRequest) bool {
		return req.ClientReferenceID == invoiceID.String()
	})).Return(&billing.CheckoutSession{
		ID:        sessionID,
		URL:       "https://checkout.stripe.com/c/pay/" + sessionID,
		ExpiresAt: time.Now().Add(time.Hour).UTC(),
	}, nil).Once()

	res, err := h.invoices.Send(context.Background(), tenantID, invoiceID)
	require.NoError(t, err)
	return res
}

// createPlan stores a 300.00 plan split into three monthly installments
func (h *ledgerHarness) createPlan(t *testing.T, tenantID uuid.UUID) *appbilling.PaymentPlanResponse {
	t.Helper()
	due := time.Now().UTC().AddDate(0, 1, 0)
	plan, err := h.plans.Create(context.Background(), tenantID, appbilling.CreatePaymentPlanInput{
		CustomerID: uuid.New(),
		Total:      money("300.00"),
		Items: []billing.PaymentPlanItemInput{
			{Amount: money("100.00"), DueDate: due},
			{Amount: money("100.00"), DueDate: due.AddDate(0, 1, 0)},
			{Amount: money("100.00"), DueDate: due.AddDate(0, 2, 0)},
		},
	})
	require.NoError(t, err)
	return plan
}

func (h *ledgerHarness) invoice(t *testing.T, tenantID, invoiceID uuid.UUID) *billing.Invoice {
	t.Helper()
	inv, err := h.ledger.Invoices().FindByIDForTenant(context.Background(), tenantID, invoiceID)
	require.NoError(t, err)
	return inv
}

func (h *ledgerHarness) payments(t *testing.T, tenantID, invoiceID uuid.UUID) []billing.Payment {
	t.Helper()
	payments, err := h.ledger.Payments().ListByInvoice(context.Background(), tenantID, invoiceID)
	require.NoError(t, err)
	return payments
}

func (h *ledgerHarness) depositPaid(t *testing.T, tenantID, jobID uuid.UUID) bool {
	t.Helper()
	job, err := h.ledger.Jobs().FindForUpdate(context.Background(), tenantID, jobID)
	require.NoError(t, err)
	return job.DepositPaid
}

func (h *ledgerHarness) claimed(t *testing.T, eventID string) bool {
	t.Helper()
	exists, err := h.ledger.ProcessedEvents().Exists(context.Background(), eventID)
	require.NoError(t, err)
	return exists
}

// deliver signs and processes an event through the general endpoint
func (h *ledgerHarness) deliver(t *testing.T, id, eventType, account string, object map[string]any) (*appbilling.WebhookResult, error) {
	t.Helper()
	payload, header := signedEvent(t, id, eventType, account, object)
	return h.webhooks.ProcessEvent(context.Background(), payload, header, billing.NoAccount())
}

// signedEvent builds a Stripe event payload with a valid signature header
func signedEvent(t *testing.T, id, eventType, account string, object map[string]any) ([]byte, string) {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)

	payload, err := json.Marshal(map[string]any{
		"id":      id,
		"object":  "event",
		"type":    eventType,
		"account": account,
		"created": time.Now().Unix(),
		"data":    map[string]any{"object": json.RawMessage(raw)},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return payload, signed.Header
}

func checkoutObject(sessionID, paymentIntentID string, cents int64, md map[string]string) map[string]any {
	return map[string]any{
		"id":             sessionID,
		"object":         "checkout.session",
		"payment_intent": paymentIntentID,
		"payment_status": "paid",
		"amount_total":   cents,
		"metadata":       md,
	}
}

func paymentIntentObject(paymentIntentID, chargeID string, cents int64, md map[string]string) map[string]any {
	return map[string]any{
		"id":              paymentIntentID,
		"object":          "payment_intent",
		"amount_received": cents,
		"latest_charge":   chargeID,
		"metadata":        md,
	}
}

func disputeObject(disputeID, chargeID, paymentIntentID, status string) map[string]any {
	return map[string]any{
		"id":             disputeID,
		"object":         "dispute",
		"charge":         chargeID,
		"payment_intent": paymentIntentID,
		"status":         status,
	}
}
