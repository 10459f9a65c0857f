package migration

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fieldops/backend/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add payment plans", "add_payment_plans"},
		{"Add-Payment-Plans", "add_payment_plans"},
		{"ADD__PAYMENT__PLANS", "add_payment_plans"},
		{"Backfill 2026", "backfill_2026"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	first, err := CreateMigration(dir, "billing ledger", "Initial ledger schema")
	require.NoError(t, err)
	assert.Equal(t, uint(1), first.Version)
	assert.Equal(t, "000001_billing_ledger.up.sql", filepath.Base(first.UpPath))
	assert.Equal(t, "000001_billing_ledger.down.sql", filepath.Base(first.DownPath))

	second, err := CreateMigration(dir, "Add dispute reason", "")
	require.NoError(t, err)
	assert.Equal(t, uint(2), second.Version)
	assert.True(t, strings.HasPrefix(filepath.Base(second.UpPath), "000002_add_dispute_reason"))

	upContent, err := os.ReadFile(first.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(upContent), "Initial ledger schema")

	downContent, err := os.ReadFile(first.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(downContent), "Rollback")
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "")
	assert.Error(t, err)
}

func TestListMigrations(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		names, err := ListMigrations(filepath.Join(t.TempDir(), "absent"))
		require.NoError(t, err)
		assert.Empty(t, names)
	})

	t.Run("orders by version and skips unversioned files", func(t *testing.T) {
		dir := t.TempDir()
		for _, name := range []string{
			"000010_later.up.sql", "000010_later.down.sql",
			"000002_early.up.sql", "000002_early.down.sql",
			"README.up.sql", "notes.txt",
		} {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
		}

		names, err := ListMigrations(dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"000002_early", "000010_later"}, names)
	})
}

func TestEmbeddedMigrations(t *testing.T) {
	ups, err := fs.Glob(migrations.FS, "*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)

	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		_, err := fs.Stat(migrations.FS, down)
		assert.NoError(t, err, "missing rollback for %s", up)
	}

	schema, err := fs.ReadFile(migrations.FS, "000001_billing_ledger.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(schema), "WHERE status <> 'voided'")
	assert.Contains(t, string(schema), "CREATE TABLE IF NOT EXISTS processed_events")
}
