package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bwmarrin/snowflake"
	"github.com/fieldops/backend/internal/domain/billing"
	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/fieldops/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// setupLedgerDB opens an in-memory sqlite database with the billing schema.
// A single connection keeps every handle on the same in-memory database.
func setupLedgerDB(t *testing.T) (*gorm.DB, *snowflake.Node) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return db, node
}

// newMockGormDB returns a postgres-dialect gorm handle backed by sqlmock
func newMockGormDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

func approvedEstimate(tenantID uuid.UUID, jobID *uuid.UUID) *billing.Estimate {
	root := shared.NewTenantAggregateRoot(tenantID)
	root.CreatedAt, root.UpdatedAt = testNow, testNow
	return &billing.Estimate{
		TenantAggregateRoot: root,
		CustomerID:          uuid.New(),
		JobID:               jobID,
		Status:              billing.EstimateStatusApproved,
		Snapshot: &billing.EstimateSnapshot{
			Subtotal:   decimal.RequireFromString("500.00"),
			TaxRate:    decimal.RequireFromString("0.08"),
			TaxAmount:  decimal.RequireFromString("40.00"),
			Total:      decimal.RequireFromString("540.00"),
			Currency:   "usd",
			ApprovedAt: testNow,
			Deposit: &billing.DepositBreakdown{
				Subtotal:  decimal.RequireFromString("100.00"),
				TaxAmount: decimal.RequireFromString("8.00"),
				Total:     decimal.RequireFromString("108.00"),
			},
		},
	}
}

// seedInvoice persists an estimate and a draft invoice built from it
func seedInvoice(t *testing.T, db *gorm.DB, tenantID uuid.UUID, account billing.AccountRef) *billing.Invoice {
	t.Helper()
	ctx := context.Background()

	est := approvedEstimate(tenantID, nil)
	require.NoError(t, NewGormEstimateRepository(db).Create(ctx, est))

	inv, err := billing.NewInvoiceFromEstimate(est, billing.InvoiceTypeStandard, account)
	require.NoError(t, err)
	inv.CreatedAt, inv.UpdatedAt = testNow, testNow
	require.NoError(t, NewGormInvoiceRepository(db).Create(ctx, inv))
	return inv
}
