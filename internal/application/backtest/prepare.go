package backtest

// prepare.go — materialización paralela de indicadores y señales por símbolo.
//
// Cada símbolo es independiente: los workers leen sus barras y escriben en su
// propio slot del resultado, sin estado compartido. Todo termina antes de que
// el driver empiece el loop diario.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/swingbot/internal/domain"
	"github.com/alejandrodnm/swingbot/internal/indicator"
	"github.com/alejandrodnm/swingbot/internal/signal"
)

// Series es la arena materializada de indicadores y señales de un símbolo.
// Frames y Signals se indexan por los días de trading del propio símbolo.
type Series struct {
	Symbol  string
	Frames  []indicator.Frame
	Signals []signal.State
}

// At devuelve el índice de date en la serie.
func (s *Series) At(date time.Time) (int, bool) {
	return slices.BinarySearchFunc(s.Frames, date, func(f indicator.Frame, d time.Time) int {
		return f.Date.Compare(d)
	})
}

// Prepared es la entrada de solo lectura del driver.
type Prepared struct {
	Benchmark string
	Calendar  []time.Time // fechas del benchmark dentro de la ventana
	Regime    signal.RegimeSeries
	Series    []*Series // ordenadas por símbolo
	Faults    []domain.DataFault

	bySymbol map[string]*Series
}

// Lookup devuelve la serie de symbol.
func (p *Prepared) Lookup(symbol string) (*Series, bool) {
	s, ok := p.bySymbol[symbol]
	return s, ok
}

// Symbols devuelve los símbolos que pasaron la validación, en orden.
func (p *Prepared) Symbols() []string {
	out := make([]string, len(p.Series))
	for i, s := range p.Series {
		out[i] = s.Symbol
	}
	return out
}

// Prepare valida la config y cada serie, y calcula indicadores, régimen y
// señales. Los símbolos con barras inválidas se excluyen y se reportan en
// Faults; un benchmark ausente o inválido aborta el run.
//
// Si workers <= 0 usa runtime.NumCPU().
func Prepare(
	ctx context.Context,
	cfg Config,
	benchmark string,
	benchBars []domain.PriceBar,
	universe map[string][]domain.PriceBar,
	workers int,
) (*Prepared, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("backtest.Prepare: %w", err)
	}
	if len(benchBars) == 0 {
		return nil, fmt.Errorf("backtest.Prepare: %s: %w", benchmark, domain.ErrBenchmarkMissing)
	}
	if err := domain.ValidateSeries(benchmark, benchBars); err != nil {
		return nil, fmt.Errorf("backtest.Prepare: benchmark: %w", err)
	}

	// El régimen queda completo antes de evaluar las señales de cualquier símbolo.
	regime := signal.ClassifyRegime(indicator.Compute(benchBars, cfg.BenchmarkPeriods()))

	calendar := make([]time.Time, 0, regime.Len())
	for _, d := range regime.Dates() {
		if !cfg.Start.IsZero() && d.Before(cfg.Start) {
			continue
		}
		if !cfg.End.IsZero() && d.After(cfg.End) {
			continue
		}
		calendar = append(calendar, d)
	}
	if len(calendar) == 0 {
		return nil, &domain.ConfigFault{Field: "start", Reason: "no benchmark dates inside the simulation window"}
	}

	symbols := make([]string, 0, len(universe))
	for s := range universe {
		symbols = append(symbols, s)
	}
	slices.Sort(symbols)

	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	series := make([]*Series, len(symbols))
	faults := make([]*domain.DataFault, len(symbols))
	periods := cfg.SymbolPeriods()
	params := cfg.SignalParams()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, sym := range symbols {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			bars := universe[sym]
			if err := domain.ValidateSeries(sym, bars); err != nil {
				var df *domain.DataFault
				if !errors.As(err, &df) {
					return fmt.Errorf("validate %s: %w", sym, err)
				}
				faults[i] = df
				return nil
			}
			frames := indicator.Compute(bars, periods)
			series[i] = &Series{
				Symbol:  sym,
				Frames:  frames,
				Signals: signal.Evaluate(frames, regime, params),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("backtest.Prepare: %w", err)
	}

	prep := &Prepared{
		Benchmark: benchmark,
		Calendar:  calendar,
		Regime:    regime,
		bySymbol:  make(map[string]*Series, len(symbols)),
	}
	for i := range symbols {
		if f := faults[i]; f != nil {
			slog.Warn("symbol excluded", "symbol", f.Symbol, "date", f.Date.Format(domain.DateLayout), "reason", f.Reason)
			prep.Faults = append(prep.Faults, *f)
			continue
		}
		prep.Series = append(prep.Series, series[i])
		prep.bySymbol[series[i].Symbol] = series[i]
	}

	slog.Debug("prepare complete",
		"symbols", len(prep.Series),
		"excluded", len(prep.Faults),
		"calendar_days", len(calendar),
		"workers", workers,
	)
	return prep, nil
}
