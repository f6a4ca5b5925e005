package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
mode: backtest
symbol: QQQ
strategy:
  trend_window: 10
  consume_zones: true
confirm:
  timeout: 90s
  clock: candle
feed:
  timeframe: 1Day
  session_resets: false
journal:
  driver: sqlite
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "values.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_FileOverDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, ModeBacktest, cfg.Mode)
	assert.Equal(t, "QQQ", cfg.Symbol)
	assert.Equal(t, 10, cfg.Strategy.TrendWindow)
	assert.True(t, cfg.Strategy.ConsumeZones)
	assert.Equal(t, 90*time.Second, cfg.Confirm.Timeout)
	assert.Equal(t, ClockCandle, cfg.Confirm.Clock)
	assert.False(t, cfg.Feed.SessionResets)
	assert.Equal(t, JournalSQLite, cfg.Journal.Driver)

	// untouched keys keep their defaults
	assert.Equal(t, 8, cfg.Strategy.MaxFVGAge)
	assert.Equal(t, 0.02, cfg.Risk.StopLossPct)
	assert.True(t, cfg.Confirm.RequireEntry)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FVG_SYMBOL", "IWM")
	t.Setenv("FVG_ALPACA_KEY_ID", "env-key")
	t.Setenv("FVG_TELEGRAM_CHAT_ID", "42")
	t.Setenv("FVG_DATABASE_DSN", "postgres://localhost/fvg")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "IWM", cfg.Symbol)
	assert.Equal(t, "env-key", cfg.Alpaca.KeyID)
	assert.Equal(t, int64(42), cfg.Telegram.ChatID)
	assert.Equal(t, "postgres://localhost/fvg", cfg.Journal.DSN)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Symbol, cfg.Symbol)
	assert.Equal(t, ModeLive, cfg.Mode)
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "mode: [live"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"mode", func(c *Config) { c.Mode = "paper" }},
		{"symbol", func(c *Config) { c.Symbol = "" }},
		{"trend window", func(c *Config) { c.Strategy.TrendWindow = 0 }},
		{"max age", func(c *Config) { c.Strategy.MaxFVGAge = -1 }},
		{"timeout", func(c *Config) { c.Confirm.Timeout = 0 }},
		{"clock", func(c *Config) { c.Confirm.Clock = "sundial" }},
		{"stop loss", func(c *Config) { c.Risk.StopLossPct = 1 }},
		{"risk per trade", func(c *Config) { c.Risk.RiskPerTrade = 0 }},
		{"cash at risk", func(c *Config) { c.Risk.CashAtRisk = 1.5 }},
		{"drawdown", func(c *Config) { c.Risk.MaxDrawdownPct = 0 }},
		{"initial cash", func(c *Config) { c.Portfolio.InitialCash = 0 }},
		{"queue", func(c *Config) { c.Feed.QueueSize = 0 }},
		{"journal driver", func(c *Config) { c.Journal.Driver = "mongo" }},
		{"postgres dsn", func(c *Config) { c.Journal.Driver = JournalPostgres; c.Journal.DSN = "" }},
		{"timezone", func(c *Config) { c.Feed.SessionTZ = "Mars/Olympus" }},
		{"session open", func(c *Config) { c.Feed.SessionOpen = "9.30" }},
		{"session close", func(c *Config) { c.Feed.SessionClose = "" }},
		{"session window", func(c *Config) { c.Feed.SessionOpen, c.Feed.SessionClose = "16:00", "09:30" }},
		{"backtest wall clock entry", func(c *Config) {
			c.Mode = ModeBacktest
			c.Confirm.Clock = ClockWall
			c.Confirm.RequireExit = false
		}},
		{"backtest wall clock exit", func(c *Config) {
			c.Mode = ModeBacktest
			c.Confirm.Clock = ClockWall
			c.Confirm.RequireEntry = false
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			require.NoError(t, c.Validate())
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestForBacktest(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"wall clock with confirmations", func(c *Config) {}},
		{"wall clock without confirmations", func(c *Config) {
			c.Confirm.RequireEntry = false
			c.Confirm.RequireExit = false
		}},
		{"candle clock", func(c *Config) { c.Confirm.Clock = ClockCandle }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)

			got, err := c.ForBacktest()
			require.NoError(t, err)
			assert.Equal(t, ModeBacktest, got.Mode)
			assert.Equal(t, ClockCandle, got.Confirm.Clock)
		})
	}

	c := Default()
	c.Symbol = ""
	_, err := c.ForBacktest()
	assert.Error(t, err)
}
