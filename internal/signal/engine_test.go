package signal

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/swingbot/internal/indicator"
)

func day(i int) time.Time {
	return time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func v(x float64) indicator.Value { return indicator.Value{V: x, Valid: true} }

// trendFrame is a frame in an established uptrend: price above both SMAs and
// the fast SMA above the slow one.
func trendFrame(i int, adj, ema, rsi float64) indicator.Frame {
	return indicator.Frame{
		Date:     day(i),
		Close:    adj,
		AdjClose: adj,
		SMASlow:  v(50),
		SMAFast:  v(60),
		EMA:      v(ema),
		RSI:      v(rsi),
		ROC:      v(0.1),
	}
}

func regimeOn(n int) RegimeSeries {
	bench := make([]indicator.Frame, n)
	for i := range bench {
		bench[i] = indicator.Frame{Date: day(i), AdjClose: 110, SMASlow: v(100)}
	}
	return ClassifyRegime(bench)
}

func TestFlagWindow(t *testing.T) {
	w := newFlagWindow(3)
	assert.False(t, w.Any())
	w.Push(true)
	assert.True(t, w.Any())
	w.Push(false)
	w.Push(false)
	assert.True(t, w.Any())
	w.Push(false) // evicts the true
	assert.False(t, w.Any())
	w.Push(true)
	w.Push(true)
	w.Push(false)
	w.Push(false)
	assert.True(t, w.Any())
	w.Push(false)
	assert.False(t, w.Any())
}

func TestClassifyRegime(t *testing.T) {
	bench := []indicator.Frame{
		{Date: day(0), AdjClose: 100},
		{Date: day(1), AdjClose: 100, SMASlow: v(99)},
		{Date: day(2), AdjClose: 100, SMASlow: v(100)},
		{Date: day(4), AdjClose: 90, SMASlow: v(95)},
	}
	rs := ClassifyRegime(bench)
	assert.Equal(t, Regime{}, rs.At(day(0)))
	assert.Equal(t, Regime{Known: true, On: true}, rs.At(day(1)))
	assert.Equal(t, Regime{Known: true, On: false}, rs.At(day(2)))
	assert.Equal(t, Regime{}, rs.At(day(3)), "date outside the benchmark calendar")
	assert.Equal(t, Regime{Known: true, On: false}, rs.At(day(4)))
	assert.Equal(t, 4, rs.Len())
}

func TestTrendEligible(t *testing.T) {
	assert.True(t, TrendEligible(trendFrame(0, 70, 65, 50)))

	f := trendFrame(0, 55, 65, 50)
	f.SMAFast = v(45)
	assert.False(t, TrendEligible(f), "fast below slow")

	f = trendFrame(0, 40, 65, 50)
	assert.False(t, TrendEligible(f), "price below slow")

	f = trendFrame(0, 70, 65, 50)
	f.SMASlow = indicator.Value{}
	assert.False(t, TrendEligible(f), "undefined slow")
}

func TestEvaluate_PullbackMatchesDefinition(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 43))
	p := DefaultParams()

	for run := 0; run < 50; run++ {
		n := 60
		frames := make([]indicator.Frame, n)
		for i := range frames {
			rsi := 20 + rng.Float64()*60
			f := trendFrame(i, 100+rng.Float64()*10, 100+rng.Float64()*10, rsi)
			if rng.IntN(10) == 0 {
				f.RSI = indicator.Value{}
			}
			if rng.IntN(15) == 0 {
				f.EMA = indicator.Value{}
			}
			frames[i] = f
		}
		states := Evaluate(frames, regimeOn(n), p)

		for i, s := range states {
			want := false
			for j := max(0, i-p.PullbackLookback+1); j <= i; j++ {
				if frames[j].RSI.Valid && frames[j].RSI.V < p.PullbackRSI {
					want = true
				}
			}
			f := frames[i]
			want = want && f.EMA.Valid && f.AdjClose < f.EMA.V
			require.Equal(t, want, s.PullbackActive, "run %d day %d", run, i)
		}
	}
}

func TestEvaluate_TriggerAfterPullback(t *testing.T) {
	frames := []indicator.Frame{
		trendFrame(0, 100, 98, 55), // no setup yet
		trendFrame(1, 95, 99, 30),  // oversold + below EMA
		trendFrame(2, 96, 99, 40),  // still below EMA
		trendFrame(3, 100, 99, 46), // recovered above EMA with RSI >= 45
		trendFrame(4, 101, 99, 50), // setup consumed
	}
	states := Evaluate(frames, regimeOn(len(frames)), DefaultParams())

	active := make([]bool, len(states))
	trig := make([]bool, len(states))
	for i, s := range states {
		active[i], trig[i] = s.PullbackActive, s.EntryTrigger
	}
	assert.Equal(t, []bool{false, true, true, false, false}, active)
	assert.Equal(t, []bool{false, false, false, true, false}, trig)
	assert.True(t, states[3].SetupArmed)
	assert.False(t, states[4].SetupArmed)
}

func TestEvaluate_TriggerGates(t *testing.T) {
	base := func() []indicator.Frame {
		return []indicator.Frame{
			trendFrame(0, 95, 99, 30),
			trendFrame(1, 100, 99, 46),
		}
	}

	t.Run("regime off", func(t *testing.T) {
		s := Evaluate(base(), RegimeSeries{}, DefaultParams())
		assert.False(t, s[1].EntryTrigger)
		assert.True(t, s[1].SetupArmed)
	})
	t.Run("rsi below entry threshold", func(t *testing.T) {
		f := base()
		f[1].RSI = v(44.9)
		assert.False(t, Evaluate(f, regimeOn(2), DefaultParams())[1].EntryTrigger)
	})
	t.Run("not trend eligible", func(t *testing.T) {
		f := base()
		f[1].SMAFast = v(40)
		assert.False(t, Evaluate(f, regimeOn(2), DefaultParams())[1].EntryTrigger)
	})
	t.Run("close equal to ema", func(t *testing.T) {
		f := base()
		f[1].AdjClose = 99
		assert.False(t, Evaluate(f, regimeOn(2), DefaultParams())[1].EntryTrigger)
	})
	t.Run("all gates pass", func(t *testing.T) {
		assert.True(t, Evaluate(base(), regimeOn(2), DefaultParams())[1].EntryTrigger)
	})
}

func TestEvaluate_SetupExpires(t *testing.T) {
	p := DefaultParams()
	p.SetupExpiryDays = 2

	frames := []indicator.Frame{
		trendFrame(0, 95, 99, 30), // active
		trendFrame(1, 100, 99, 40),
		trendFrame(2, 100, 99, 40),
		trendFrame(3, 100, 99, 50), // three days after the last active day
	}
	s := Evaluate(frames, regimeOn(4), p)
	assert.True(t, s[2].SetupArmed)
	assert.False(t, s[3].SetupArmed)
	assert.False(t, s[3].EntryTrigger)

	p.SetupExpiryDays = 3
	s = Evaluate(frames, regimeOn(4), p)
	assert.True(t, s[3].EntryTrigger)
}

func TestEvaluate_IsCausal(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	n := 80
	frames := make([]indicator.Frame, n)
	for i := range frames {
		frames[i] = trendFrame(i, 95+rng.Float64()*10, 100, 20+rng.Float64()*40)
	}
	regime := regimeOn(n)
	full := Evaluate(frames, regime, DefaultParams())
	for _, cut := range []int{0, 4, 5, 17, 40, 79} {
		part := Evaluate(frames[:cut+1], regime, DefaultParams())
		require.Equal(t, full[:cut+1], part, "cut %d", cut)
	}
}
