package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestGormLogger_Trace(t *testing.T) {
	sqlFn := func() (string, int64) { return `SELECT * FROM "invoices" WHERE id = $1 FOR UPDATE`, 1 }

	t.Run("logs errors with context ids", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		l := NewGormLogger(zap.New(core), gormlogger.Warn, 200*time.Millisecond)

		ctx := WithEventID(WithTenantID(context.Background(), "tenant-1"), "evt_1")
		l.Trace(ctx, time.Now(), sqlFn, errors.New("connection reset"))

		entry := findEntry(t, recorded, "SQL Error")
		fields := entry.ContextMap()
		assert.Equal(t, "tenant-1", fields["tenant_id"])
		assert.Equal(t, "evt_1", fields["event_id"])
		assert.Contains(t, fields["sql"], "FOR UPDATE")
	})

	t.Run("ignores record not found", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		l := NewGormLogger(zap.New(core), gormlogger.Warn, 0)

		l.Trace(context.Background(), time.Now(), sqlFn, gormlogger.ErrRecordNotFound)

		assert.Zero(t, recorded.Len())
	})

	t.Run("warns on slow queries", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		l := NewGormLogger(zap.New(core), gormlogger.Warn, time.Millisecond)

		l.Trace(context.Background(), time.Now().Add(-time.Second), sqlFn, nil)

		entry := findEntry(t, recorded, "Slow SQL")
		assert.Equal(t, zapcore.WarnLevel, entry.Level)
	})

	t.Run("silent logs nothing", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		l := NewGormLogger(zap.New(core), gormlogger.Info, 0).LogMode(gormlogger.Silent)

		l.Trace(context.Background(), time.Now(), sqlFn, errors.New("boom"))

		require.Zero(t, recorded.Len())
	})
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("anything"))
}
