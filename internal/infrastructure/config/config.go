// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Keys missing from the YAML file keep their defaults.
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	threshold := cfg.Matching.AutoLinkThreshold
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config represents the entire application configuration
type Config struct {
	Storage       StorageConfig       `yaml:"storage"`
	API           APIConfig           `yaml:"api"`
	Matching      MatchingConfig      `yaml:"matching"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// APIConfig holds HTTP server settings
type APIConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// MatchingConfig holds detection and pending-transfer defaults
type MatchingConfig struct {
	AutoLinkThreshold float64         `yaml:"auto_link_threshold"`
	DateToleranceDays int             `yaml:"date_tolerance_days"`
	AmountTolerance   decimal.Decimal `yaml:"amount_tolerance"`
	MaxWindowDays     int             `yaml:"max_window_days"`
	Weights           WeightsConfig   `yaml:"weights"`
	Pending           PendingConfig   `yaml:"pending"`
}

// WeightsConfig holds the score signal weights
type WeightsConfig struct {
	Amount      float64 `yaml:"amount"`
	Date        float64 `yaml:"date"`
	Description float64 `yaml:"description"`
}

// PendingConfig holds defaults for newly declared transfers
type PendingConfig struct {
	ToleranceDays   int             `yaml:"tolerance_days"`
	ToleranceAmount decimal.Decimal `yaml:"tolerance_amount"`
}

// SchedulerConfig holds background job settings
type SchedulerConfig struct {
	// PendingMatchInterval is how often the opportunistic matcher runs. 0 disables it.
	PendingMatchInterval time.Duration `yaml:"pending_match_interval"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" (Maven-style) or "json"
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			DatabasePath: "transfers.db",
		},
		API: APIConfig{
			Port:           8085,
			AllowedOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		},
		Matching: MatchingConfig{
			AutoLinkThreshold: 95,
			DateToleranceDays: 3,
			AmountTolerance:   decimal.RequireFromString("0.50"),
			MaxWindowDays:     366,
			Weights: WeightsConfig{
				Amount:      0.50,
				Date:        0.35,
				Description: 0.15,
			},
			Pending: PendingConfig{
				ToleranceDays:   5,
				ToleranceAmount: decimal.RequireFromString("0.50"),
			},
		},
		Scheduler: SchedulerConfig{
			PendingMatchInterval: 15 * time.Minute,
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  "info",
				Format: "text",
			},
		},
	}
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${TRANSFER_DB_PATH})
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := Default()

	cfg.Storage.DatabasePath = getEnv("TRANSFER_DB_PATH", cfg.Storage.DatabasePath)
	cfg.API.Port = getEnvInt("API_PORT", cfg.API.Port)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.API.AllowedOrigins = splitList(origins)
	}

	cfg.Matching.AutoLinkThreshold = getEnvFloat("AUTO_LINK_THRESHOLD", cfg.Matching.AutoLinkThreshold)
	cfg.Matching.DateToleranceDays = getEnvInt("DATE_TOLERANCE_DAYS", cfg.Matching.DateToleranceDays)
	cfg.Matching.AmountTolerance = getEnvDecimal("AMOUNT_TOLERANCE", cfg.Matching.AmountTolerance)
	cfg.Matching.MaxWindowDays = getEnvInt("MAX_WINDOW_DAYS", cfg.Matching.MaxWindowDays)
	cfg.Matching.Pending.ToleranceDays = getEnvInt("PENDING_TOLERANCE_DAYS", cfg.Matching.Pending.ToleranceDays)
	cfg.Matching.Pending.ToleranceAmount = getEnvDecimal("PENDING_TOLERANCE_AMOUNT", cfg.Matching.Pending.ToleranceAmount)

	cfg.Scheduler.PendingMatchInterval = getEnvDuration("PENDING_MATCH_INTERVAL", cfg.Scheduler.PendingMatchInterval)

	cfg.Observability.Logging.Level = getEnv("LOG_LEVEL", cfg.Observability.Logging.Level)
	cfg.Observability.Logging.Format = getEnv("LOG_FORMAT", cfg.Observability.Logging.Format)

	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnvWithPath("config.yaml")
}

// LoadOrEnvWithPath tries to load from specified path, falls back to environment variables
func LoadOrEnvWithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// Validate rejects values the matcher cannot work with
func (c *Config) Validate() error {
	m := c.Matching
	switch {
	case m.AutoLinkThreshold < 0 || m.AutoLinkThreshold > 100:
		return fmt.Errorf("matching.auto_link_threshold must be between 0 and 100, got %v", m.AutoLinkThreshold)
	case m.DateToleranceDays < 0:
		return fmt.Errorf("matching.date_tolerance_days must not be negative")
	case m.AmountTolerance.IsNegative():
		return fmt.Errorf("matching.amount_tolerance must not be negative")
	case m.Weights.Amount < 0 || m.Weights.Date < 0 || m.Weights.Description < 0:
		return fmt.Errorf("matching.weights must not be negative")
	case m.Pending.ToleranceDays < 0 || m.Pending.ToleranceAmount.IsNegative():
		return fmt.Errorf("matching.pending tolerances must not be negative")
	case c.Scheduler.PendingMatchInterval < 0:
		return fmt.Errorf("scheduler.pending_match_interval must not be negative")
	}
	switch c.Observability.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("observability.logging.format must be text or json, got %q", c.Observability.Logging.Format)
	}
	return nil
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		var result float64
		if _, err := fmt.Sscanf(val, "%g", &result); err == nil {
			return result
		}
	}
	return fallback
}

func getEnvDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	if val := os.Getenv(key); val != "" {
		if d, err := decimal.NewFromString(val); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
