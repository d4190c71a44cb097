// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure
type Config struct {
	System      SystemConfig      `yaml:"system"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	RiskLimits  RiskLimitsConfig  `yaml:"risk_limits"`
	ExitZones   []ZoneConfig      `yaml:"exit_zones"`
	Evaluation  EvaluationConfig  `yaml:"evaluation"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
	Alerts      AlertsConfig      `yaml:"alerts"`
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel string `yaml:"log_level"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
}

// RiskLimitsConfig contains the pre-trade gate thresholds
type RiskLimitsConfig struct {
	MaxPositionSizeUSD  float64  `yaml:"max_position_size_usd"`
	MaxOpenPositions    int      `yaml:"max_open_positions"`
	MaxDailyLossPercent float64  `yaml:"max_daily_loss_percent"`
	MaxDrawdownPercent  float64  `yaml:"max_drawdown_percent"`
	MaxOrdersPerMinute  int      `yaml:"max_orders_per_minute"`
	AllowedSymbols      []string `yaml:"allowed_symbols"`
}

// PolicyConfig describes a stop-loss or take-profit policy attached to a zone
type PolicyConfig struct {
	Type  string   `yaml:"type"`
	Value *float64 `yaml:"value"`
}

// ZoneConfig describes one exit zone band. A nil bound means unbounded on
// that end.
type ZoneConfig struct {
	Name              string       `yaml:"name"`
	MinPnLPercent     *float64     `yaml:"min_pnl_percent"`
	MaxPnLPercent     *float64     `yaml:"max_pnl_percent"`
	StopLoss          PolicyConfig `yaml:"stop_loss"`
	TakeProfit        PolicyConfig `yaml:"take_profit"`
	ExitImmediately   bool         `yaml:"exit_immediately"`
	MinBarsBeforeExit int          `yaml:"min_bars_before_exit"`
}

// EvaluationConfig contains exit evaluator settings
type EvaluationConfig struct {
	TickIntervalMs   int `yaml:"tick_interval_ms"`
	SignalPoolSize   int `yaml:"signal_pool_size"`
	SignalPoolBuffer int `yaml:"signal_pool_buffer"`
}

// PersistenceConfig contains snapshot store settings
type PersistenceConfig struct {
	Backend             string `yaml:"backend"` // "memory" or "sqlite"
	SQLitePath          string `yaml:"sqlite_path"`
	SnapshotIntervalSec int    `yaml:"snapshot_interval_sec"`
}

// ScheduleConfig contains scheduler settings
type ScheduleConfig struct {
	DailyResetCron string `yaml:"daily_reset_cron"`
}

// AlertsConfig contains external alert channel settings. Empty values
// disable the corresponding channel.
type AlertsConfig struct {
	SlackWebhookURL  string `yaml:"slack_webhook_url"`
	TelegramBotToken string `yaml:"telegram_bot_token"`
	TelegramChatID   string `yaml:"telegram_chat_id"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable expansion
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData := os.Expand(string(data), os.Getenv)

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errors []string

	if err := c.validateSystemConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateRiskLimitsConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateZoneConfigs(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateEvaluationConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validatePersistenceConfig(); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errors, "\n"))
	}

	return nil
}

func (c *Config) validateSystemConfig() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		return ValidationError{
			Field:   "system.log_level",
			Value:   c.System.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}
	return nil
}

func (c *Config) validateRiskLimitsConfig() error {
	if c.RiskLimits.MaxPositionSizeUSD < 0 {
		return ValidationError{
			Field:   "risk_limits.max_position_size_usd",
			Value:   c.RiskLimits.MaxPositionSizeUSD,
			Message: "must not be negative",
		}
	}
	if c.RiskLimits.MaxOpenPositions < 1 {
		return ValidationError{
			Field:   "risk_limits.max_open_positions",
			Value:   c.RiskLimits.MaxOpenPositions,
			Message: "must be at least 1",
		}
	}
	if c.RiskLimits.MaxOrdersPerMinute < 1 {
		return ValidationError{
			Field:   "risk_limits.max_orders_per_minute",
			Value:   c.RiskLimits.MaxOrdersPerMinute,
			Message: "must be at least 1",
		}
	}
	return nil
}

func (c *Config) validateZoneConfigs() error {
	validPolicies := []string{"", "none", "fixed_percent", "trailing_percent", "atr"}

	for i, zone := range c.ExitZones {
		if zone.Name == "" {
			return ValidationError{
				Field:   fmt.Sprintf("exit_zones[%d].name", i),
				Message: "zone name is required",
			}
		}
		if zone.MinPnLPercent != nil && zone.MaxPnLPercent != nil && *zone.MinPnLPercent >= *zone.MaxPnLPercent {
			return ValidationError{
				Field:   fmt.Sprintf("exit_zones[%d]", i),
				Value:   zone.Name,
				Message: "min_pnl_percent must be strictly below max_pnl_percent",
			}
		}
		if zone.MinBarsBeforeExit < 0 {
			return ValidationError{
				Field:   fmt.Sprintf("exit_zones[%d].min_bars_before_exit", i),
				Value:   zone.MinBarsBeforeExit,
				Message: "must not be negative",
			}
		}
		if !contains(validPolicies, zone.StopLoss.Type) {
			return ValidationError{
				Field:   fmt.Sprintf("exit_zones[%d].stop_loss.type", i),
				Value:   zone.StopLoss.Type,
				Message: fmt.Sprintf("must be one of: %s", strings.Join(validPolicies[1:], ", ")),
			}
		}
		if !contains(validPolicies, zone.TakeProfit.Type) {
			return ValidationError{
				Field:   fmt.Sprintf("exit_zones[%d].take_profit.type", i),
				Value:   zone.TakeProfit.Type,
				Message: fmt.Sprintf("must be one of: %s", strings.Join(validPolicies[1:], ", ")),
			}
		}
	}

	// Interval ordering and full coverage of the real line is a caller
	// obligation; an unmatched P&L falls through to the default zone.
	return nil
}

func (c *Config) validateEvaluationConfig() error {
	if c.Evaluation.TickIntervalMs < 1 {
		return ValidationError{
			Field:   "evaluation.tick_interval_ms",
			Value:   c.Evaluation.TickIntervalMs,
			Message: "must be at least 1",
		}
	}
	return nil
}

func (c *Config) validatePersistenceConfig() error {
	switch c.Persistence.Backend {
	case "memory":
	case "sqlite":
		if c.Persistence.SQLitePath == "" {
			return ValidationError{
				Field:   "persistence.sqlite_path",
				Message: "required when backend is sqlite",
			}
		}
	default:
		return ValidationError{
			Field:   "persistence.backend",
			Value:   c.Persistence.Backend,
			Message: "must be one of: memory, sqlite",
		}
	}
	if c.Persistence.SnapshotIntervalSec < 1 {
		return ValidationError{
			Field:   "persistence.snapshot_interval_sec",
			Value:   c.Persistence.SnapshotIntervalSec,
			Message: "must be at least 1",
		}
	}
	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// DefaultConfig returns a default configuration for testing
func DefaultConfig() *Config {
	protect := 2.0
	failure := -5.0

	return &Config{
		System: SystemConfig{
			LogLevel: "INFO",
		},
		Telemetry: TelemetryConfig{
			MetricsPort:   9091,
			EnableMetrics: true,
		},
		RiskLimits: RiskLimitsConfig{
			MaxPositionSizeUSD:  10000,
			MaxOpenPositions:    5,
			MaxDailyLossPercent: 5.0,
			MaxDrawdownPercent:  15.0,
			MaxOrdersPerMinute:  10,
		},
		ExitZones: []ZoneConfig{
			{
				Name:            "failure",
				MaxPnLPercent:   &failure,
				StopLoss:        PolicyConfig{Type: "none"},
				ExitImmediately: true,
			},
			{
				Name:              "default",
				MinPnLPercent:     &failure,
				MaxPnLPercent:     &protect,
				StopLoss:          PolicyConfig{Type: "fixed_percent", Value: floatPtr(5.0)},
				TakeProfit:        PolicyConfig{Type: "fixed_percent", Value: floatPtr(10.0)},
				MinBarsBeforeExit: 3,
			},
			{
				Name:              "protect",
				MinPnLPercent:     &protect,
				StopLoss:          PolicyConfig{Type: "trailing_percent", Value: floatPtr(1.5)},
				MinBarsBeforeExit: 1,
			},
		},
		Evaluation: EvaluationConfig{
			TickIntervalMs:   1000,
			SignalPoolSize:   4,
			SignalPoolBuffer: 64,
		},
		Persistence: PersistenceConfig{
			Backend:             "memory",
			SnapshotIntervalSec: 30,
		},
		Schedule: ScheduleConfig{
			DailyResetCron: "0 0 * * *",
		},
	}
}

func floatPtr(v float64) *float64 { return &v }
