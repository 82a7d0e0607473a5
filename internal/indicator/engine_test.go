package indicator

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/swingbot/internal/domain"
)

func day(i int) time.Time {
	return time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func values(vs []Value) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		if v.Valid {
			out[i] = v.V
		}
	}
	return out
}

// randomBars genera una serie válida con un random walk determinista.
func randomBars(n int, seed uint64) []domain.PriceBar {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	bars := make([]domain.PriceBar, n)
	prev := 50.0
	for i := range bars {
		c := math.Max(1, prev*(1+(rng.Float64()-0.5)*0.06))
		o := prev
		bars[i] = domain.PriceBar{
			Symbol:   "RND",
			Date:     day(i),
			Open:     o,
			High:     math.Max(o, c) * (1 + rng.Float64()*0.01),
			Low:      math.Min(o, c) * (1 - rng.Float64()*0.01),
			Close:    c,
			AdjClose: c * 0.98,
			Volume:   int64(1000 + rng.IntN(5000)),
		}
		prev = c
	}
	return bars
}

func TestSMA(t *testing.T) {
	got := SMA([]float64{1, 2, 3, 4, 5}, 3)
	assert.Equal(t, []any{nil, nil, 2.0, 3.0, 4.0}, values(got))
	assert.Equal(t, []any{nil, nil}, values(SMA([]float64{1, 2}, 3)))
	assert.Equal(t, []any{nil, nil}, values(SMA([]float64{1, 2}, 0)))
}

func TestEMA_SeededWithSMA(t *testing.T) {
	// alpha = 2/(3+1) = 0.5, seed = mean(1,2,3) = 2
	got := EMA([]float64{1, 2, 3, 4, 5}, 3)
	assert.Equal(t, []any{nil, nil, 2.0, 3.0, 4.0}, values(got))
}

func TestRSI_Wilder(t *testing.T) {
	got := RSI([]float64{1, 2, 1, 2, 1}, 2)
	require.Len(t, got, 5)
	assert.False(t, got[0].Valid)
	assert.False(t, got[1].Valid)
	assert.InDelta(t, 50.0, got[2].V, 1e-9)
	assert.InDelta(t, 75.0, got[3].V, 1e-9)
	assert.InDelta(t, 37.5, got[4].V, 1e-9)
}

func TestRSI_NoLossesIs100(t *testing.T) {
	got := RSI([]float64{1, 2, 3, 4, 5, 6}, 3)
	assert.Equal(t, []any{nil, nil, nil, 100.0, 100.0, 100.0}, values(got))
}

func TestATR_Wilder(t *testing.T) {
	bars := []domain.PriceBar{
		{High: 11, Low: 9, Close: 10, AdjClose: 10},  // tr 2
		{High: 12, Low: 10, Close: 11, AdjClose: 11}, // tr 2
		{High: 16, Low: 12, Close: 15, AdjClose: 15}, // tr max(4, 5, 1) = 5
		{High: 15, Low: 14, Close: 14, AdjClose: 14}, // tr max(1, 0, 1) = 1
	}
	assert.Equal(t, []float64{2, 2, 5, 1}, TrueRange(bars))

	got := ATR(bars, 2)
	assert.False(t, got[0].Valid)
	assert.InDelta(t, 2.0, got[1].V, 1e-12)
	assert.InDelta(t, 3.5, got[2].V, 1e-12)  // (2*1 + 5) / 2
	assert.InDelta(t, 2.25, got[3].V, 1e-12) // (3.5*1 + 1) / 2
}

func TestATR_UsesAdjustedPrices(t *testing.T) {
	raw := []domain.PriceBar{
		{High: 22, Low: 18, Close: 20, AdjClose: 20},
		{High: 24, Low: 20, Close: 22, AdjClose: 22},
	}
	half := []domain.PriceBar{
		{High: 22, Low: 18, Close: 20, AdjClose: 10},
		{High: 24, Low: 20, Close: 22, AdjClose: 11},
	}
	a, b := ATR(raw, 2), ATR(half, 2)
	assert.InDelta(t, a[1].V/2, b[1].V, 1e-12)
}

func TestRollingMaxAndROC(t *testing.T) {
	assert.Equal(t, []any{nil, nil, 3.0, 5.0, 5.0}, values(RollingMax([]float64{1, 3, 2, 5, 4}, 3)))
	assert.Equal(t, []any{nil, nil, 0.5, 1.0}, values(ROC([]float64{2, 3, 3, 6}, 2)))
}

func TestCompute_IsCausal(t *testing.T) {
	bars := randomBars(320, 7)
	full := Compute(bars, DefaultPeriods())
	for _, cut := range []int{0, 13, 14, 19, 62, 63, 199, 200, 250, 319} {
		part := Compute(bars[:cut+1], DefaultPeriods())
		require.Equal(t, full[:cut+1], part, "frames differ when truncated at %d", cut)
	}
}

func TestCompute_CalendarGapsDoNotShiftWindows(t *testing.T) {
	bars := randomBars(260, 11)
	gapped := make([]domain.PriceBar, len(bars))
	copy(gapped, bars)
	offset := 0
	for i := range gapped {
		if i%7 == 3 {
			offset += 3 // missing trading days
		}
		gapped[i].Date = day(i + offset)
	}

	a := Compute(bars, DefaultPeriods())
	b := Compute(gapped, DefaultPeriods())
	for i := range a {
		a[i].Date, b[i].Date = time.Time{}, time.Time{}
	}
	assert.Equal(t, a, b)
}

func TestCompute_ReadyAfterWarmup(t *testing.T) {
	frames := Compute(randomBars(210, 3), DefaultPeriods())
	assert.False(t, frames[198].Ready())
	assert.True(t, frames[199].Ready())
	assert.True(t, frames[209].Ready())
	assert.True(t, frames[63].ROC.Valid)
	assert.False(t, frames[62].ROC.Valid)
}
