package runner

// fetch.go — worker pool que descarga barras por símbolo y las escribe en la
// cache local. El ritmo contra la API lo pone el rate limiter del BarSource;
// los workers solo solapan la latencia de red con la escritura a disco.

import (
	"context"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/alejandrodnm/swingbot/internal/domain"
	"github.com/alejandrodnm/swingbot/internal/ports"
)

// FetchReport resume una descarga.
type FetchReport struct {
	Written []string          // símbolos con barras escritas
	Empty   []string          // la fuente no devolvió barras
	Failed  map[string]string // símbolo → error
	Bars    int
}

// Fetcher copia barras de un BarSource a un BarSink.
type Fetcher struct {
	source  ports.BarSource
	sink    ports.BarSink
	workers int
}

// NewFetcher crea un Fetcher. Si workers <= 0 usa runtime.NumCPU().
func NewFetcher(source ports.BarSource, sink ports.BarSink, workers int) *Fetcher {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Fetcher{source: source, sink: sink, workers: workers}
}

// Fetch descarga [start, end] para cada símbolo. Un fallo en un símbolo no
// detiene al resto; queda en FetchReport.Failed.
func (f *Fetcher) Fetch(ctx context.Context, symbols []string, start, end time.Time) (FetchReport, error) {
	began := time.Now()

	type result struct {
		symbol string
		bars   int
		err    error
	}

	workCh := make(chan string, len(symbols))
	resultCh := make(chan result, len(symbols))

	// Worker pool: cada worker toma símbolos de workCh y envía resultados a resultCh.
	var wg sync.WaitGroup
	for range min(f.workers, max(len(symbols), 1)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range workCh {
				if ctx.Err() != nil {
					resultCh <- result{symbol: sym, err: ctx.Err()}
					continue
				}
				n, err := f.fetchOne(ctx, sym, start, end)
				if err != nil {
					slog.Debug("fetch failed", "symbol", sym, "err", err)
				}
				resultCh <- result{symbol: sym, bars: n, err: err}
			}
		}()
	}

	for _, sym := range symbols {
		workCh <- domain.NormalizeSymbol(sym)
	}
	close(workCh)

	// Cerrar resultCh cuando todos los workers terminen.
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	report := FetchReport{Failed: make(map[string]string)}
	for res := range resultCh {
		switch {
		case res.err != nil:
			report.Failed[res.symbol] = res.err.Error()
		case res.bars == 0:
			report.Empty = append(report.Empty, res.symbol)
		default:
			report.Written = append(report.Written, res.symbol)
			report.Bars += res.bars
		}
	}
	slices.Sort(report.Written)
	slices.Sort(report.Empty)

	slog.Info("fetch complete",
		"symbols", len(symbols),
		"written", len(report.Written),
		"empty", len(report.Empty),
		"failed", len(report.Failed),
		"bars", report.Bars,
		"workers", f.workers,
		"duration", time.Since(began).Round(time.Millisecond),
	)
	return report, ctx.Err()
}

func (f *Fetcher) fetchOne(ctx context.Context, symbol string, start, end time.Time) (int, error) {
	got, err := f.source.FetchBars(ctx, []string{symbol}, start, end)
	if err != nil {
		return 0, err
	}
	bars := got[symbol]
	if len(bars) == 0 {
		return 0, nil
	}
	if err := f.sink.WriteBars(ctx, symbol, bars); err != nil {
		return 0, err
	}
	return len(bars), nil
}
