package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFromYAML(t *testing.T) {
	// Test loading the repository's config.yaml if present
	configPaths := []string{
		"../../../config.yaml", // From internal/infrastructure/config
		"config.yaml",          // From root
	}

	var cfg *Config
	var err error
	found := false

	for _, path := range configPaths {
		cfg, err = Load(path)
		if err == nil {
			found = true
			break
		}
	}

	if !found {
		t.Skip("config.yaml not found in expected locations")
	}

	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, 95.0, cfg.Matching.AutoLinkThreshold)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: "custom.db"
matching:
  auto_link_threshold: 90
  amount_tolerance: 1.25
  pending:
    tolerance_days: 7
scheduler:
  pending_match_interval: 90s
observability:
  logging:
    format: json
`)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "custom.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 90.0, cfg.Matching.AutoLinkThreshold)
	assert.True(t, cfg.Matching.AmountTolerance.Equal(decimal.RequireFromString("1.25")))
	assert.Equal(t, 7, cfg.Matching.Pending.ToleranceDays)
	assert.Equal(t, 90*time.Second, cfg.Scheduler.PendingMatchInterval)
	assert.Equal(t, "json", cfg.Observability.Logging.Format)

	// Untouched keys keep their defaults
	assert.Equal(t, 3, cfg.Matching.DateToleranceDays)
	assert.Equal(t, 0.35, cfg.Matching.Weights.Date)
	assert.True(t, cfg.Matching.Pending.ToleranceAmount.Equal(decimal.RequireFromString("0.50")))
	assert.Equal(t, 8085, cfg.API.Port)
	assert.Equal(t, "info", cfg.Observability.Logging.Level)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"threshold above 100", "matching:\n  auto_link_threshold: 120\n"},
		{"negative date tolerance", "matching:\n  date_tolerance_days: -1\n"},
		{"negative amount tolerance", "matching:\n  amount_tolerance: -0.5\n"},
		{"negative weight", "matching:\n  weights:\n    amount: -1\n"},
		{"unknown log format", "observability:\n  logging:\n    format: xml\n"},
		{"malformed yaml", "matching: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TRANSFER_DB_PATH", "test.db")
	t.Setenv("API_PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", "https://books.example.com, http://localhost:5173")
	t.Setenv("AUTO_LINK_THRESHOLD", "97.5")
	t.Setenv("AMOUNT_TOLERANCE", "0.25")
	t.Setenv("PENDING_MATCH_INTERVAL", "1m")

	cfg := LoadFromEnv()

	assert.Equal(t, "test.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 9090, cfg.API.Port)
	assert.Equal(t, []string{"https://books.example.com", "http://localhost:5173"}, cfg.API.AllowedOrigins)
	assert.Equal(t, 97.5, cfg.Matching.AutoLinkThreshold)
	assert.True(t, cfg.Matching.AmountTolerance.Equal(decimal.RequireFromString("0.25")))
	assert.Equal(t, time.Minute, cfg.Scheduler.PendingMatchInterval)
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("TRANSFER_DB_PATH", "")
	t.Setenv("AMOUNT_TOLERANCE", "not-a-number")

	cfg := LoadFromEnv()

	assert.Equal(t, "transfers.db", cfg.Storage.DatabasePath)
	assert.True(t, cfg.Matching.AmountTolerance.Equal(decimal.RequireFromString("0.50")))
	assert.Equal(t, 5, cfg.Matching.Pending.ToleranceDays)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOrEnv_FallbackToEnv(t *testing.T) {
	t.Setenv("TRANSFER_DB_PATH", "fallback.db")

	cfg := LoadOrEnvWithPath("nonexistent.yaml")

	assert.NotNil(t, cfg)
	assert.Equal(t, "fallback.db", cfg.Storage.DatabasePath)
}

func TestEnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_DB_PATH", "expanded.db")
	t.Setenv("TEST_THRESHOLD", "92")

	cfg, err := Load(writeConfig(t, `
storage:
  database_path: "${TEST_DB_PATH}"
matching:
  auto_link_threshold: ${TEST_THRESHOLD}
`))

	require.NoError(t, err)
	assert.Equal(t, "expanded.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 92.0, cfg.Matching.AutoLinkThreshold)
}
