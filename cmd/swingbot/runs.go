package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/alejandrodnm/swingbot/internal/adapters/notify"
	"github.com/alejandrodnm/swingbot/internal/adapters/storage"
	"github.com/alejandrodnm/swingbot/internal/domain"
)

func newRunsCmd(flags *globalFlags) *cobra.Command {
	var (
		limit       int
		pruneBefore string
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored backtest runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags, os.Stderr)
			if err != nil {
				return err
			}
			db, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
			if err != nil {
				return fmt.Errorf("open storage %q: %w", cfg.Storage.DSN, err)
			}
			defer db.Close()

			if pruneBefore != "" {
				cutoff, err := domain.ParseDay(pruneBefore)
				if err != nil {
					return fmt.Errorf("invalid --prune-before: %w", err)
				}
				n, err := db.DeleteRunsBefore(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				slog.Info("runs pruned", "before", pruneBefore, "deleted", n)
			}

			runs, err := db.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			notify.NewConsole(notify.FormatText, 0).PrintRuns(runs)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to list")
	cmd.Flags().StringVar(&pruneBefore, "prune-before", "", "delete runs started before YYYY-MM-DD")
	return cmd
}

func newShowCmd(flags *globalFlags) *cobra.Command {
	var (
		format    string
		maxTrades int
	)

	cmd := &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Print a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags, os.Stderr)
			if err != nil {
				return err
			}
			db, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
			if err != nil {
				return fmt.Errorf("open storage %q: %w", cfg.Storage.DSN, err)
			}
			defer db.Close()

			run, err := db.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return notify.NewConsole(notify.Format(format), maxTrades).Notify(cmd.Context(), run)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "report format: text|json")
	cmd.Flags().IntVar(&maxTrades, "max-trades", 0, "max trades to print (0 = all)")
	return cmd
}
