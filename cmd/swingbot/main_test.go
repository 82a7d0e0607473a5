package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/swingbot/config"
	"github.com/alejandrodnm/swingbot/internal/adapters/storage"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"backtest", "fetch", "runs", "show"})
}

func TestBacktestCmd_RejectsUnknownFormat(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"backtest", "--format", "xml"})
	err := root.ExecuteContext(context.Background())
	assert.ErrorContains(t, err, `invalid --format "xml"`)
}

func TestBarSource(t *testing.T) {
	cfg := config.Default()

	cfg.Data.Source = "parquet"
	src, err := barSource(cfg)
	require.NoError(t, err)
	assert.IsType(t, &storage.ParquetBars{}, src)

	cfg.Data.Source = "alpaca"
	cfg.Data.Alpaca.APIKey = ""
	_, err = barSource(cfg)
	assert.ErrorContains(t, err, "credentials missing")

	cfg.Data.Source = "csv"
	_, err = barSource(cfg)
	assert.ErrorContains(t, err, "unknown data.source")
}

func TestResolveUniverse_SavesResolvedFile(t *testing.T) {
	dir := t.TempDir()
	tickers := filepath.Join(dir, "tickers.txt")
	require.NoError(t, os.WriteFile(tickers, []byte("aapl\nmsft\naapl\n"), 0o644))

	cfg := config.Default()
	cfg.Run.Universe.TickersFile = tickers
	cfg.Run.Universe.ResolvedOutputFile = filepath.Join(dir, "out", "resolved.csv")

	got, err := resolveUniverse(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, got)
	assert.FileExists(t, cfg.Run.Universe.ResolvedOutputFile)
}
