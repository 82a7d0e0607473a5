package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/alejandrodnm/swingbot/internal/adapters/storage"
	"github.com/alejandrodnm/swingbot/internal/application/runner"
	"github.com/alejandrodnm/swingbot/internal/domain"
)

func newFetchCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download daily bars from Alpaca into the parquet cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags, os.Stdout)
			if err != nil {
				return err
			}
			start, err := cfg.FetchStartDate()
			if err != nil {
				return err
			}
			end, err := cfg.EndDate()
			if err != nil {
				return err
			}
			if end.IsZero() {
				end = domain.Day(time.Now())
			}
			tickers, err := resolveUniverse(cfg)
			if err != nil {
				return err
			}
			src, err := alpacaSource(cfg)
			if err != nil {
				return err
			}

			symbols := append([]string{cfg.Run.Benchmark}, tickers...)
			slog.Info("fetch starting",
				"symbols", len(symbols),
				"start", cfg.Data.FetchStart,
				"end", end.Format(domain.DateLayout),
				"data_dir", cfg.Data.DataDir,
			)

			f := runner.NewFetcher(src, storage.NewParquetBars(cfg.Data.DataDir), cfg.Data.FetchWorkers)
			report, err := f.Fetch(cmd.Context(), symbols, start, end)
			if err != nil {
				return err
			}
			for sym, reason := range report.Failed {
				slog.Warn("symbol not fetched", "symbol", sym, "err", reason)
			}
			if len(report.Empty) > 0 {
				slog.Warn("symbols without data", "symbols", report.Empty)
			}
			if len(report.Failed) > 0 {
				return fmt.Errorf("fetch: %d of %d symbols failed", len(report.Failed), len(symbols))
			}
			return nil
		},
	}
}
