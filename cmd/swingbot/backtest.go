package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/alejandrodnm/swingbot/config"
	"github.com/alejandrodnm/swingbot/internal/adapters/alpaca"
	"github.com/alejandrodnm/swingbot/internal/adapters/notify"
	"github.com/alejandrodnm/swingbot/internal/adapters/storage"
	"github.com/alejandrodnm/swingbot/internal/adapters/telemetry"
	"github.com/alejandrodnm/swingbot/internal/application/runner"
	"github.com/alejandrodnm/swingbot/internal/ports"
	"github.com/alejandrodnm/swingbot/internal/universe"
)

func newBacktestCmd(flags *globalFlags) *cobra.Command {
	var (
		format    string
		noSave    bool
		maxTrades int
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run a backtest over the configured universe",
		Long: `Carga el universo y las barras, simula día a día y publica el resultado:
sqlite (salvo --no-save), reporte de consola y textfile de Prometheus si está configurado.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != string(notify.FormatText) && format != string(notify.FormatJSON) {
				return fmt.Errorf("invalid --format %q: want text or json", format)
			}
			logOut := os.Stdout
			if format == string(notify.FormatJSON) {
				logOut = os.Stderr
			}
			cfg, err := loadConfig(flags, logOut)
			if err != nil {
				return err
			}

			btCfg, err := cfg.BacktestConfig()
			if err != nil {
				return err
			}
			historyStart, err := cfg.HistoryStart()
			if err != nil {
				return err
			}
			tickers, err := resolveUniverse(cfg)
			if err != nil {
				return err
			}

			slog.Info("swingbot starting",
				"config", flags.configPath,
				"source", cfg.Data.Source,
				"benchmark", cfg.Run.Benchmark,
				"tickers", len(tickers),
				"no_save", noSave,
			)

			bars, err := barSource(cfg)
			if err != nil {
				return err
			}

			// nil explícito: una interfaz con puntero nil no es nil
			var store ports.RunStorage
			if !noSave {
				db, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
				if err != nil {
					return fmt.Errorf("open storage %q: %w", cfg.Storage.DSN, err)
				}
				defer db.Close()
				store = db
			}

			var metrics ports.MetricsRecorder
			if cfg.Metrics.Textfile != "" {
				metrics = telemetry.NewRecorder(cfg.Metrics.Textfile)
			}

			r := runner.New(runner.Config{
				Backtest:     btCfg,
				Benchmark:    cfg.Run.Benchmark,
				Symbols:      tickers,
				HistoryStart: historyStart,
				Workers:      cfg.Run.Workers,
			}, bars, store, notify.NewConsole(notify.Format(format), maxTrades), metrics)

			_, err = r.Run(cmd.Context())
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "report format: text|json")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not persist the run to sqlite")
	cmd.Flags().IntVar(&maxTrades, "max-trades", 50, "max trades in the text report (0 = all)")
	return cmd
}

// resolveUniverse lee los archivos de tickers y, si está configurado, guarda
// el universo resuelto.
func resolveUniverse(cfg *config.Config) ([]string, error) {
	u := cfg.Run.Universe
	files := universe.Files{
		Tickers: u.TickersFile,
		Include: u.IncludeFile,
		Exclude: u.ExcludeFile,
	}
	res, err := universe.Resolve(files)
	if err != nil {
		return nil, err
	}
	if len(res.Invalid) > 0 {
		slog.Warn("invalid tickers ignored", "count", len(res.Invalid), "tickers", res.Invalid)
	}
	slog.Debug("universe resolved", "tickers", len(res.Tickers), "duplicates", res.Duplicates)

	if u.ResolvedOutputFile != "" {
		if err := universe.SaveResolved(res, u.ResolvedOutputFile, files); err != nil {
			return nil, err
		}
		slog.Info("resolved universe saved", "path", u.ResolvedOutputFile)
	}
	return res.Tickers, nil
}

// barSource elige la fuente de barras según data.source.
func barSource(cfg *config.Config) (ports.BarSource, error) {
	switch cfg.Data.Source {
	case "parquet":
		return storage.NewParquetBars(cfg.Data.DataDir), nil
	case "alpaca":
		return alpacaSource(cfg)
	default:
		return nil, fmt.Errorf("unknown data.source %q: want parquet or alpaca", cfg.Data.Source)
	}
}

func alpacaSource(cfg *config.Config) (*alpaca.BarSource, error) {
	a := cfg.Data.Alpaca
	if a.APIKey == "" || a.APISecret == "" {
		return nil, fmt.Errorf("alpaca credentials missing: set APCA_API_KEY_ID and APCA_API_SECRET_KEY")
	}
	return alpaca.NewBarSource(alpaca.Options{
		APIKey:            a.APIKey,
		APISecret:         a.APISecret,
		BaseURL:           a.BaseURL,
		Feed:              a.Feed,
		RequestsPerMinute: a.RequestsPerMinute,
		BatchSize:         a.BatchSize,
	}), nil
}
