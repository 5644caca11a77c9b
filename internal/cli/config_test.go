package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/transfer-reconciler/internal/infrastructure/config"
)

func TestLoadConfig(t *testing.T) {
	t.Run("explicit file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "reconciler.yaml")
		require.NoError(t, os.WriteFile(path, []byte("matching:\n  auto_link_threshold: 88\n"), 0644))

		cfg, err := LoadConfig(path)

		require.NoError(t, err)
		assert.Equal(t, 88.0, cfg.Matching.AutoLinkThreshold)
	})

	t.Run("invalid file is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("matching:\n  auto_link_threshold: 250\n"), 0644))

		_, err := LoadConfig(path)

		assert.Error(t, err)
	})

	t.Run("falls back to environment", func(t *testing.T) {
		wd, err := os.Getwd()
		require.NoError(t, err)
		require.NoError(t, os.Chdir(t.TempDir()))
		t.Cleanup(func() { _ = os.Chdir(wd) })
		t.Setenv("TRANSFER_DB_PATH", "env.db")

		cfg, err := LoadConfig("")

		require.NoError(t, err)
		assert.Equal(t, "env.db", cfg.Storage.DatabasePath)
	})
}

func TestServiceOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Matching.AutoLinkThreshold = 97
	cfg.Matching.MaxWindowDays = 90
	cfg.Matching.Weights.Description = 0.25
	cfg.Matching.Pending.ToleranceDays = 9
	cfg.Matching.Pending.ToleranceAmount = decimal.RequireFromString("2.00")

	detection := DetectionOptions(cfg)
	assert.Equal(t, 97.0, detection.AutoLinkThreshold)
	assert.Equal(t, 90, detection.MaxWindowDays)
	assert.Equal(t, 0.25, detection.Weights.Description)
	assert.Equal(t, 0.50, detection.Weights.Amount)

	ledger := LedgerOptions(cfg)
	assert.Equal(t, 9, ledger.DefaultToleranceDays)
	assert.True(t, ledger.DefaultToleranceAmount.Equal(decimal.RequireFromString("2.00")))
}
