package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/swingbot/internal/domain"
)

func day(i int) time.Time {
	return time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

// barsFrom builds bars whose open is the previous close and whose range
// extends half a point beyond the body.
func barsFrom(symbol string, closes []float64) []domain.PriceBar {
	bars := make([]domain.PriceBar, len(closes))
	for i, c := range closes {
		o := c
		if i > 0 {
			o = closes[i-1]
		}
		bars[i] = domain.PriceBar{
			Symbol:   symbol,
			Date:     day(i),
			Open:     o,
			High:     max(o, c) + 0.5,
			Low:      min(o, c) - 0.5,
			Close:    c,
			AdjClose: c,
			Volume:   1_000_000,
		}
	}
	return bars
}

// pullbackCloses rises one point a day to 148 on day 48, drops ten points a
// day to 118 on day 51 (RSI ~28.7), climbs four a day to 158 on day 61 and
// one a day after that. With testConfig the only entry trigger is on day 55.
func pullbackCloses(n int, offset float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		var c float64
		switch {
		case i <= 48:
			c = 100 + float64(i)
		case i <= 51:
			c = 148 - 10*float64(i-48)
		case i <= 61:
			c = 118 + 4*float64(i-51)
		default:
			c = 158 + float64(i-61)
		}
		out[i] = c + offset
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

// testConfig shortens the trend and regime windows so a 100-day series warms
// up well before the pullback.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RegimeSMAWindow = 40
	cfg.TrendFastSMA = 20
	cfg.TrendSlowSMA = 40
	cfg.RankingMetric = "ROC_30"
	cfg.SlippageBps = 0
	return cfg
}

func prepare(t *testing.T, cfg Config, bench []domain.PriceBar, universe map[string][]domain.PriceBar) *Prepared {
	t.Helper()
	prep, err := Prepare(context.Background(), cfg, "BENCH", bench, universe, 4)
	require.NoError(t, err)
	return prep
}
