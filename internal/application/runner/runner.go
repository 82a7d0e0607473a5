package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/swingbot/internal/application/backtest"
	"github.com/alejandrodnm/swingbot/internal/domain"
	"github.com/alejandrodnm/swingbot/internal/performance"
	"github.com/alejandrodnm/swingbot/internal/ports"
)

// Config contiene la configuración de un run.
type Config struct {
	Backtest     backtest.Config
	Benchmark    string
	Symbols      []string
	HistoryStart time.Time // primer día de barras a cargar (warmup incluido), cero = todo
	Workers      int       // goroutines de Prepare (0 = NumCPU)
}

// Runner orquesta un backtest: carga → prepare → simulación → métricas →
// persistencia → reporte.
type Runner struct {
	cfg      Config
	bars     ports.BarSource
	storage  ports.RunStorage      // opcional
	notifier ports.Notifier        // opcional
	metrics  ports.MetricsRecorder // opcional
	now      func() time.Time
}

// New crea un Runner con todas las dependencias inyectadas. storage,
// notifier y metrics pueden ser nil.
func New(
	cfg Config,
	bars ports.BarSource,
	storage ports.RunStorage,
	notifier ports.Notifier,
	metrics ports.MetricsRecorder,
) *Runner {
	return &Runner{
		cfg:      cfg,
		bars:     bars,
		storage:  storage,
		notifier: notifier,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Run ejecuta un backtest completo y devuelve el resultado ya persistido.
// Los errores de storage, notifier y metrics se loguean pero no abortan.
func (r *Runner) Run(ctx context.Context) (*domain.RunResult, error) {
	started := r.now()
	cfg := r.cfg.Backtest
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("runner.Run: %w", err)
	}

	benchmark := domain.NormalizeSymbol(r.cfg.Benchmark)
	symbols := make([]string, 0, len(r.cfg.Symbols))
	for _, s := range r.cfg.Symbols {
		if s = domain.NormalizeSymbol(s); s != "" && s != benchmark {
			symbols = append(symbols, s)
		}
	}
	slices.Sort(symbols)
	symbols = slices.Compact(symbols)

	slog.Info("backtest starting",
		"benchmark", benchmark,
		"symbols", len(symbols),
		"history_start", dateOrEmpty(r.cfg.HistoryStart),
		"start", dateOrEmpty(cfg.Start),
		"end", dateOrEmpty(cfg.End),
	)

	loaded, err := r.bars.FetchBars(ctx, append([]string{benchmark}, symbols...), r.cfg.HistoryStart, cfg.End)
	if err != nil {
		return nil, fmt.Errorf("runner.Run: load bars: %w", err)
	}
	benchBars := loaded[benchmark]
	delete(loaded, benchmark)

	var missing []domain.DataFault
	for _, s := range symbols {
		if len(loaded[s]) == 0 {
			missing = append(missing, domain.DataFault{Symbol: s, Reason: "no bars"})
			delete(loaded, s)
		}
	}
	if len(missing) > 0 {
		slog.Warn("symbols without bars", "count", len(missing))
	}

	prep, err := backtest.Prepare(ctx, cfg, benchmark, benchBars, loaded, r.cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("runner.Run: %w", err)
	}
	run, err := backtest.Run(prep, cfg)
	if err != nil {
		return nil, fmt.Errorf("runner.Run: %w", err)
	}

	run.Faults = append(missing, run.Faults...)
	slices.SortFunc(run.Faults, func(a, b domain.DataFault) int { return strings.Compare(a.Symbol, b.Symbol) })
	run.Summary = performance.Summarize(run.Curve, run.Trades, cfg.StartingCash)
	run.ID = NewRunID(started)
	run.StartedAt = started.UTC()
	if b, err := json.Marshal(cfg); err == nil {
		run.ConfigJSON = string(b)
	}
	run.Duration = r.now().Sub(started)

	r.publish(ctx, run)

	slog.Info("backtest finished",
		"run_id", run.ID,
		"trades", run.Summary.TradeCount,
		"final_equity", fmt.Sprintf("%.2f", run.Summary.FinalEquity),
		"total_return", fmt.Sprintf("%.4f", run.Summary.TotalReturn),
		"max_drawdown", fmt.Sprintf("%.4f", run.Summary.MaxDrawdown),
		"excluded", len(run.Faults),
		"duration", run.Duration.Round(time.Millisecond),
	)
	return run, nil
}

// publish persiste, notifica y exporta métricas.
func (r *Runner) publish(ctx context.Context, run *domain.RunResult) {
	if r.storage != nil {
		if err := r.storage.SaveRun(ctx, run); err != nil {
			slog.Warn("storage error", "run_id", run.ID, "err", err)
		}
	}
	if r.notifier != nil {
		if err := r.notifier.Notify(ctx, run); err != nil {
			slog.Warn("notifier error", "err", err)
		}
	}
	if r.metrics != nil {
		if err := r.metrics.Record(run); err != nil {
			slog.Warn("metrics error", "err", err)
		}
	}
}

// NewRunID genera un ID ordenable por fecha: 20260101T000000-1a2b3c4d.
func NewRunID(t time.Time) string {
	return t.UTC().Format("20060102T150405") + "-" + uuid.NewString()[:8]
}

func dateOrEmpty(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(domain.DateLayout)
}
