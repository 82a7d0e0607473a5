package runner_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/swingbot/internal/adapters/storage"
	"github.com/alejandrodnm/swingbot/internal/application/backtest"
	"github.com/alejandrodnm/swingbot/internal/application/runner"
	"github.com/alejandrodnm/swingbot/internal/domain"
)

func day(i int) time.Time {
	return time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func barsFrom(symbol string, closes []float64) []domain.PriceBar {
	bars := make([]domain.PriceBar, len(closes))
	for i, c := range closes {
		o := c
		if i > 0 {
			o = closes[i-1]
		}
		bars[i] = domain.PriceBar{
			Symbol: symbol, Date: day(i),
			Open: o, High: max(o, c) + 0.5, Low: min(o, c) - 0.5, Close: c, AdjClose: c,
			Volume: 1_000_000,
		}
	}
	return bars
}

// pullbackCloses: subida, caída de tres días a RSI < 35 y recuperación.
// Con testConfig el único trigger es el día 55.
func pullbackCloses(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		switch {
		case i <= 48:
			out[i] = 100 + float64(i)
		case i <= 51:
			out[i] = 148 - 10*float64(i-48)
		case i <= 61:
			out[i] = 118 + 4*float64(i-51)
		default:
			out[i] = 158 + float64(i-61)
		}
	}
	return out
}

func linearCloses(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)
	}
	return out
}

func testConfig() backtest.Config {
	cfg := backtest.DefaultConfig()
	cfg.RegimeSMAWindow = 40
	cfg.TrendFastSMA = 20
	cfg.TrendSlowSMA = 40
	cfg.RankingMetric = "ROC_30"
	cfg.SlippageBps = 0
	return cfg
}

// memSource es un BarSource en memoria.
type memSource struct {
	bars map[string][]domain.PriceBar
	fail map[string]bool
}

func (m *memSource) FetchBars(_ context.Context, symbols []string, start, end time.Time) (map[string][]domain.PriceBar, error) {
	out := make(map[string][]domain.PriceBar)
	for _, s := range symbols {
		if m.fail[s] {
			return nil, errors.New("upstream unavailable")
		}
		for _, b := range m.bars[s] {
			if (!start.IsZero() && b.Date.Before(start)) || (!end.IsZero() && b.Date.After(end)) {
				continue
			}
			out[s] = append(out[s], b)
		}
	}
	return out, nil
}

type recordingNotifier struct{ runs []*domain.RunResult }

func (n *recordingNotifier) Notify(_ context.Context, run *domain.RunResult) error {
	n.runs = append(n.runs, run)
	return nil
}

type failingMetrics struct{ calls int }

func (m *failingMetrics) Record(*domain.RunResult) error {
	m.calls++
	return errors.New("disk full")
}

func universe() *memSource {
	broken := barsFrom("BRKN", linearCloses(100))
	broken[10].Date = broken[9].Date
	return &memSource{bars: map[string][]domain.PriceBar{
		"SPY":  barsFrom("SPY", linearCloses(100)),
		"AAA":  barsFrom("AAA", pullbackCloses(100)),
		"BRKN": broken,
	}}
}

func TestRunner_EndToEnd(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	notifier := &recordingNotifier{}
	metrics := &failingMetrics{}
	r := runner.New(runner.Config{
		Backtest:  testConfig(),
		Benchmark: "spy",
		Symbols:   []string{"aaa", "BRKN", "GONE", "AAA", "SPY"},
		Workers:   2,
	}, universe(), db, notifier, metrics)

	run, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^\d{8}T\d{6}-[0-9a-f]{8}$`), run.ID)
	assert.Equal(t, []string{"AAA"}, run.Symbols)
	require.Len(t, run.Faults, 2)
	assert.Equal(t, "BRKN", run.Faults[0].Symbol)
	assert.Equal(t, "GONE", run.Faults[1].Symbol)
	assert.Equal(t, "no bars", run.Faults[1].Reason)

	require.Len(t, run.Trades, 1)
	tr := run.Trades[0]
	assert.Equal(t, day(56), tr.EntryDate)
	assert.InDelta(t, 134.0, tr.EntryPrice, 1e-9)
	assert.Equal(t, int64(74), tr.Shares)
	assert.Equal(t, domain.ExitTimeStop, tr.ExitReason)
	assert.InDelta(t, 100_000+39*74.0, run.Summary.FinalEquity, 1e-6)
	assert.Equal(t, 1, run.Summary.TradeCount)
	assert.Contains(t, run.ConfigJSON, `"ranking_metric":"ROC_30"`)

	// persistido, notificado y métricas intentadas aunque fallen
	stored, err := db.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Trades, 1)
	assert.Len(t, stored.Faults, 2)
	require.Len(t, notifier.runs, 1)
	assert.Same(t, run, notifier.runs[0])
	assert.Equal(t, 1, metrics.calls)
}

func TestRunner_OptionalCollaborators(t *testing.T) {
	r := runner.New(runner.Config{
		Backtest:  testConfig(),
		Benchmark: "SPY",
		Symbols:   []string{"AAA"},
	}, universe(), nil, nil, nil)

	run, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, run.Trades, 1)
}

func TestRunner_MissingBenchmarkIsFatal(t *testing.T) {
	r := runner.New(runner.Config{
		Backtest:  testConfig(),
		Benchmark: "QQQ",
		Symbols:   []string{"AAA"},
	}, universe(), nil, nil, nil)

	_, err := r.Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrBenchmarkMissing)
}

func TestRunner_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPositions = 0
	r := runner.New(runner.Config{Backtest: cfg, Benchmark: "SPY"}, universe(), nil, nil, nil)

	_, err := r.Run(context.Background())
	var cf *domain.ConfigFault
	require.True(t, errors.As(err, &cf))
	assert.Equal(t, "max_positions", cf.Field)
}

func TestRunner_SourceError(t *testing.T) {
	src := universe()
	src.fail = map[string]bool{"AAA": true}
	r := runner.New(runner.Config{Backtest: testConfig(), Benchmark: "SPY", Symbols: []string{"AAA"}}, src, nil, nil, nil)

	_, err := r.Run(context.Background())
	assert.ErrorContains(t, err, "upstream unavailable")
}

func TestNewRunID(t *testing.T) {
	id := runner.NewRunID(time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC))
	assert.Regexp(t, `^20260101T093000-[0-9a-f]{8}$`, id)
	assert.NotEqual(t, id, runner.NewRunID(time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC)))
}
