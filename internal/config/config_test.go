package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validYAML = `
system:
  log_level: DEBUG
telemetry:
  metrics_port: 9091
  enable_metrics: true
risk_limits:
  max_position_size_usd: 5000
  max_open_positions: 3
  max_daily_loss_percent: 2.5
  max_drawdown_percent: 10
  max_orders_per_minute: 20
  allowed_symbols: ["BTCUSDT", "ETHUSDT"]
exit_zones:
  - name: failure
    max_pnl_percent: -5
    exit_immediately: true
  - name: default
    min_pnl_percent: -5
    max_pnl_percent: 2
    min_bars_before_exit: 3
evaluation:
  tick_interval_ms: 500
  signal_pool_size: 2
  signal_pool_buffer: 16
persistence:
  backend: memory
  snapshot_interval_sec: 10
schedule:
  daily_reset_cron: "0 0 * * *"
`

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, validYAML)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.System.LogLevel)
	assert.Equal(t, 3, cfg.RiskLimits.MaxOpenPositions)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.RiskLimits.AllowedSymbols)
	require.Len(t, cfg.ExitZones, 2)
	assert.Nil(t, cfg.ExitZones[0].MinPnLPercent)
	require.NotNil(t, cfg.ExitZones[0].MaxPnLPercent)
	assert.Equal(t, -5.0, *cfg.ExitZones[0].MaxPnLPercent)
	assert.Equal(t, 500, cfg.Evaluation.TickIntervalMs)
}

func TestLoadConfig_EnvExpansion(t *testing.T) {
	t.Setenv("RG_TEST_SQLITE_PATH", "/tmp/rg.db")
	path := writeConfig(t, `
system:
  log_level: INFO
risk_limits:
  max_position_size_usd: 1000
  max_open_positions: 1
  max_daily_loss_percent: 5
  max_drawdown_percent: 15
  max_orders_per_minute: 10
evaluation:
  tick_interval_ms: 1000
  signal_pool_size: 1
  signal_pool_buffer: 1
persistence:
  backend: sqlite
  sqlite_path: "${RG_TEST_SQLITE_PATH}"
  snapshot_interval_sec: 30
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/rg.db", cfg.Persistence.SQLitePath)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate_Errors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad log level", func(c *Config) { c.System.LogLevel = "VERBOSE" }, "system.log_level"},
		{"negative size", func(c *Config) { c.RiskLimits.MaxPositionSizeUSD = -1 }, "risk_limits.max_position_size_usd"},
		{"zero open positions", func(c *Config) { c.RiskLimits.MaxOpenPositions = 0 }, "risk_limits.max_open_positions"},
		{"zero order rate", func(c *Config) { c.RiskLimits.MaxOrdersPerMinute = 0 }, "risk_limits.max_orders_per_minute"},
		{"unnamed zone", func(c *Config) { c.ExitZones[0].Name = "" }, "exit_zones"},
		{"inverted bounds", func(c *Config) {
			lo, hi := 5.0, -5.0
			c.ExitZones[0].MinPnLPercent = &lo
			c.ExitZones[0].MaxPnLPercent = &hi
		}, "exit_zones"},
		{"negative dwell", func(c *Config) { c.ExitZones[0].MinBarsBeforeExit = -1 }, "exit_zones"},
		{"bad policy", func(c *Config) { c.ExitZones[0].StopLoss.Type = "martingale" }, "exit_zones"},
		{"bad backend", func(c *Config) { c.Persistence.Backend = "etcd" }, "persistence.backend"},
		{"zero snapshot interval", func(c *Config) { c.Persistence.SnapshotIntervalSec = 0 }, "persistence.snapshot_interval_sec"},
		{"zero tick", func(c *Config) { c.Evaluation.TickIntervalMs = 0 }, "evaluation.tick_interval_ms"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.field)
		})
	}
}

func TestDefaultConfig_IsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidationError_Message(t *testing.T) {
	err := ValidationError{Field: "x.y", Value: 42, Message: "too large"}
	assert.Contains(t, err.Error(), "x.y")
	assert.Contains(t, err.Error(), "too large")
}
