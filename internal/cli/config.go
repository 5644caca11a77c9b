package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/eshaffer321/transfer-reconciler/internal/application/service"
	"github.com/eshaffer321/transfer-reconciler/internal/domain/matcher"
	"github.com/eshaffer321/transfer-reconciler/internal/infrastructure/config"
	"github.com/eshaffer321/transfer-reconciler/internal/infrastructure/logging"
)

// LoadConfig loads configFile, or the first config file found in the working
// directory, falling back to environment variables when there is none.
func LoadConfig(configFile string) (*config.Config, error) {
	if configFile == "" {
		for _, candidate := range []string{"config.yaml", "config.yml"} {
			if _, err := os.Stat(candidate); err == nil {
				configFile = candidate
				break
			}
		}
	}

	if configFile == "" {
		return config.LoadFromEnv(), nil
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", configFile, err)
	}
	return cfg, nil
}

// NewLogger builds the command logger, forcing debug level when verbose.
func NewLogger(cfg *config.Config, flags CommonFlags, system string) *slog.Logger {
	loggingCfg := cfg.Observability.Logging
	if flags.Verbose {
		loggingCfg.Level = "debug"
	}
	return logging.NewLoggerWithSystem(loggingCfg, system)
}

// DetectionOptions converts the matching config into service options.
func DetectionOptions(cfg *config.Config) service.DetectionOptions {
	m := cfg.Matching
	opts := service.DefaultDetectionOptions()
	opts.AutoLinkThreshold = m.AutoLinkThreshold
	opts.DateToleranceDays = m.DateToleranceDays
	opts.AmountTolerance = m.AmountTolerance
	opts.MaxWindowDays = m.MaxWindowDays
	opts.Weights = matcher.Weights{
		Amount:      m.Weights.Amount,
		Date:        m.Weights.Date,
		Description: m.Weights.Description,
	}
	return opts
}

// LedgerOptions converts the pending-transfer config into service options.
func LedgerOptions(cfg *config.Config) service.LedgerOptions {
	return service.LedgerOptions{
		DefaultToleranceDays:   cfg.Matching.Pending.ToleranceDays,
		DefaultToleranceAmount: cfg.Matching.Pending.ToleranceAmount,
	}
}
