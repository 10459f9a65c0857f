package persistence

import (
	"context"
	"testing"

	"github.com/fieldops/backend/internal/infrastructure/config"
	"github.com/fieldops/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	gormlogger "gorm.io/gorm/logger"
)

func testDatabaseConfig() *config.DatabaseConfig {
	return &config.DatabaseConfig{MaxOpenConns: 1, MaxIdleConns: 1, ConnMaxLifetime: 5, ConnMaxIdleTime: 1}
}

func TestOpen(t *testing.T) {
	t.Run("applies pool settings", func(t *testing.T) {
		db, err := open(sqlite.Open(":memory:"), testDatabaseConfig(), Options{})
		require.NoError(t, err)
		defer db.Close()

		stats, err := db.Stats()
		require.NoError(t, err)
		assert.Equal(t, 1, stats.MaxOpenConnections)
		assert.NoError(t, db.Ping())
	})

	t.Run("routes SQL errors through the zap gorm logger", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		db, err := open(sqlite.Open(":memory:"), testDatabaseConfig(), Options{
			Logger:   zap.New(core),
			LogLevel: gormlogger.Error,
		})
		require.NoError(t, err)
		defer db.Close()

		err = db.DB.WithContext(context.Background()).Exec("SELECT * FROM missing_table").Error
		require.Error(t, err)
		assert.Equal(t, 1, logs.FilterMessage("SQL Error").Len())
	})

	t.Run("registers tracing when enabled", func(t *testing.T) {
		db, err := open(sqlite.Open(":memory:"), testDatabaseConfig(), Options{
			Tracing: telemetry.DBTracingConfig{Enabled: true, DBSystem: "sqlite"},
		})
		require.NoError(t, err)
		defer db.Close()

		assert.NotNil(t, db.DB.Callback().Query().Get("billing_trace:after_query"))
	})
}

func TestDatabase_Close(t *testing.T) {
	db, mock, mockDB := newMockGormDB(t)
	_ = mockDB

	mock.ExpectClose()
	require.NoError(t, (&Database{DB: db}).Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Ping(t *testing.T) {
	db, mock, mockDB := newMockGormDB(t)
	defer mockDB.Close()

	mock.ExpectPing()
	require.NoError(t, (&Database{DB: db}).Ping())
}
