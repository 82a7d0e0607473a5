package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/swingbot/config"
	"github.com/alejandrodnm/swingbot/internal/application/backtest"
	"github.com/alejandrodnm/swingbot/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingKeysKeepDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "portfolio:\n  max_positions: 5\n"))
	require.NoError(t, err)

	bt, err := cfg.BacktestConfig()
	require.NoError(t, err)

	want := backtest.DefaultConfig()
	want.MaxPositions = 5
	assert.Equal(t, want, bt)
	assert.NoError(t, bt.Validate())
	assert.Equal(t, "SPY", cfg.Run.Benchmark)
	assert.Equal(t, "parquet", cfg.Data.Source)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_ExplicitZeroAndFalse(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
strategy:
  setup_expiry_days: 0
  profit_target:
    enabled: true
    pct: 0.15
portfolio:
  slippage_bps: 0
  commission:
    model: per_share
    amount: 0.005
run:
  benchmark: qqq
  start: "2020-01-02"
  end: "2020-12-31"
  force_close_at_end: true
`))
	require.NoError(t, err)

	bt, err := cfg.BacktestConfig()
	require.NoError(t, err)
	assert.Zero(t, bt.SetupExpiryDays)
	assert.Zero(t, bt.SlippageBps)
	assert.True(t, bt.ProfitTargetEnabled)
	assert.InDelta(t, 0.15, bt.ProfitTargetPct, 1e-12)
	assert.Equal(t, domain.CommissionPerShare, bt.CommissionModel)
	assert.True(t, bt.ForceCloseAtEnd)
	assert.Equal(t, time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), bt.Start)
	assert.Equal(t, time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC), bt.End)
	assert.Equal(t, "QQQ", cfg.Run.Benchmark)

	hist, err := cfg.HistoryStart()
	require.NoError(t, err)
	assert.Equal(t, bt.Start.AddDate(0, 0, -400), hist)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("APCA_API_KEY_ID", "key-from-env")
	t.Setenv("SWINGBOT_DB", ":memory:")

	cfg, err := config.Load(writeConfig(t, "log:\n  level: warn\n"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "key-from-env", cfg.Data.Alpaca.APIKey)
	assert.Equal(t, ":memory:", cfg.Storage.DSN)
}

func TestLoad_Errors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = config.Load(writeConfig(t, "strategy: [not, a, map]\n"))
	assert.Error(t, err)
}

func TestBacktestConfig_BadDate(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "run:\n  start: 2020/01/02\n"))
	require.NoError(t, err)

	_, err = cfg.BacktestConfig()
	var cf *domain.ConfigFault
	require.True(t, errors.As(err, &cf))
	assert.Equal(t, "start", cf.Field)
}

func TestExampleConfigIsValid(t *testing.T) {
	cfg, err := config.Load("config.yaml")
	require.NoError(t, err)
	bt, err := cfg.BacktestConfig()
	require.NoError(t, err)
	assert.NoError(t, bt.Validate())
}
