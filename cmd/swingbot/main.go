package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alejandrodnm/swingbot/config"
)

type globalFlags struct {
	configPath string
	verbose    bool
	logFormat  string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("swingbot failed", "err", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "swingbot",
		Short: "Swing-trading backtester for US equities",
		Long: `swingbot simula una estrategia de pullback en tendencia sobre barras diarias:
filtro de régimen del benchmark, ranking por momentum, stops por precio y por tiempo.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "config/config.yaml", "path to config file")
	root.PersistentFlags().BoolVar(&flags.verbose, "verbose", false, "set log level to debug")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "log format: text|json (overrides config)")

	root.AddCommand(
		newBacktestCmd(flags),
		newFetchCmd(flags),
		newRunsCmd(flags),
		newShowCmd(flags),
	)
	return root
}

// loadConfig carga el YAML, aplica los flags globales y configura el logger.
// Con reportes JSON en stdout los logs van a stderr.
func loadConfig(flags *globalFlags, logOut io.Writer) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.verbose {
		cfg.Log.Level = "debug"
	}
	if flags.logFormat != "" {
		cfg.Log.Format = flags.logFormat
	}
	setupLogger(cfg.Log, logOut)
	return cfg, nil
}

func setupLogger(cfg config.LogConfig, out io.Writer) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	slog.SetDefault(slog.New(handler))
}
