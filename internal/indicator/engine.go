// Package indicator calcula indicadores técnicos sobre las barras diarias
// ordenadas de un símbolo. El valor en el índice i solo depende de bars[0..i].
package indicator

import (
	"math"
	"time"

	"github.com/alejandrodnm/swingbot/internal/domain"
)

// Value es una lectura de indicador que puede estar aún en warm-up.
type Value struct {
	V     float64
	Valid bool
}

func valid(v float64) Value { return Value{V: v, Valid: true} }

// Periods configura el lookback de cada indicador. Un periodo 0 lo desactiva
// (sus valores quedan inválidos).
type Periods struct {
	SMASlow int // 200
	SMAFast int // 50
	EMA     int // 20
	RSI     int // 14, Wilder
	ATR     int // 14, Wilder
	High    int // 20, máximo del high ajustado
	VolSMA  int // 50, media del volumen
	ROC     int // 63, rate of change de adj_close
}

// DefaultPeriods devuelve los lookbacks estándar.
func DefaultPeriods() Periods {
	return Periods{SMASlow: 200, SMAFast: 50, EMA: 20, RSI: 14, ATR: 14, High: 20, VolSMA: 50, ROC: 63}
}

// Frame contiene los indicadores de un símbolo en uno de sus días de trading,
// junto a los precios de los que salen.
type Frame struct {
	Date     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose float64

	SMASlow Value
	SMAFast Value
	EMA     Value
	RSI     Value
	ATR     Value
	High20  Value
	VolSMA  Value
	ROC     Value
}

// Ready indica si todos los indicadores activos terminaron el warm-up.
func (f Frame) Ready() bool {
	return f.SMASlow.Valid && f.SMAFast.Valid && f.EMA.Valid && f.RSI.Valid &&
		f.ATR.Valid && f.High20.Valid && f.VolSMA.Valid
}

// Compute devuelve un Frame por barra. Las ventanas cuentan las barras del
// propio símbolo: un hueco de calendario no desplaza ninguna ventana.
func Compute(bars []domain.PriceBar, p Periods) []Frame {
	frames := make([]Frame, len(bars))
	adj := make([]float64, len(bars))
	vol := make([]float64, len(bars))
	adjHigh := make([]float64, len(bars))
	for i, b := range bars {
		adj[i] = b.AdjClose
		vol[i] = float64(b.Volume)
		adjHigh[i] = b.AdjHigh()
		frames[i] = Frame{
			Date:     b.Date,
			Open:     b.Open,
			High:     b.High,
			Low:      b.Low,
			Close:    b.Close,
			AdjClose: b.AdjClose,
		}
	}

	smaSlow := SMA(adj, p.SMASlow)
	smaFast := SMA(adj, p.SMAFast)
	ema := EMA(adj, p.EMA)
	rsi := RSI(adj, p.RSI)
	atr := ATR(bars, p.ATR)
	high := RollingMax(adjHigh, p.High)
	volSMA := SMA(vol, p.VolSMA)
	roc := ROC(adj, p.ROC)

	for i := range frames {
		frames[i].SMASlow = smaSlow[i]
		frames[i].SMAFast = smaFast[i]
		frames[i].EMA = ema[i]
		frames[i].RSI = rsi[i]
		frames[i].ATR = atr[i]
		frames[i].High20 = high[i]
		frames[i].VolSMA = volSMA[i]
		frames[i].ROC = roc[i]
	}
	return frames
}

// SMA es la media simple de los últimos n valores, inválida hasta tener n.
// La suma se recalcula por índice: una entrada truncada da los mismos bits
// que la completa.
func SMA(xs []float64, n int) []Value {
	out := make([]Value, len(xs))
	if n <= 0 {
		return out
	}
	for i := n - 1; i < len(xs); i++ {
		sum := 0.0
		for _, x := range xs[i-n+1 : i+1] {
			sum += x
		}
		out[i] = valid(sum / float64(n))
	}
	return out
}

// EMA arranca con la SMA de los primeros n valores y luego suaviza con
// factor 2/(n+1).
func EMA(xs []float64, n int) []Value {
	out := make([]Value, len(xs))
	if n <= 0 || len(xs) < n {
		return out
	}
	sum := 0.0
	for _, x := range xs[:n] {
		sum += x
	}
	prev := sum / float64(n)
	out[n-1] = valid(prev)
	alpha := 2.0 / float64(n+1)
	for i := n; i < len(xs); i++ {
		prev = alpha*xs[i] + (1-alpha)*prev
		out[i] = valid(prev)
	}
	return out
}

// RSI de Wilder. El primer valor necesita n cambios de precio (n+1 barras) y
// arranca con sus medias simples; después las medias se suavizan con factor
// 1/n. Sin pérdidas el RSI es 100.
func RSI(xs []float64, n int) []Value {
	out := make([]Value, len(xs))
	if n <= 0 || len(xs) <= n {
		return out
	}
	var gain, loss float64
	for i := 1; i <= n; i++ {
		d := xs[i] - xs[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(n)
	avgLoss := loss / float64(n)
	out[n] = valid(rsiFrom(avgGain, avgLoss))

	for i := n + 1; i < len(xs); i++ {
		d := xs[i] - xs[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*float64(n-1) + g) / float64(n)
		avgLoss = (avgLoss*float64(n-1) + l) / float64(n)
		out[i] = valid(rsiFrom(avgGain, avgLoss))
	}
	return out
}

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// TrueRange devuelve el true range ajustado de cada barra. La primera no tiene
// close previo y usa high - low.
func TrueRange(bars []domain.PriceBar) []float64 {
	tr := make([]float64, len(bars))
	for i, b := range bars {
		hi, lo := b.AdjHigh(), b.AdjLow()
		tr[i] = hi - lo
		if i == 0 {
			continue
		}
		prev := bars[i-1].AdjClose
		tr[i] = max(tr[i], math.Abs(hi-prev), math.Abs(lo-prev))
	}
	return tr
}

// ATR de Wilder, arrancado con la media simple de los primeros n true ranges.
func ATR(bars []domain.PriceBar, n int) []Value {
	out := make([]Value, len(bars))
	if n <= 0 || len(bars) < n {
		return out
	}
	tr := TrueRange(bars)
	sum := 0.0
	for _, v := range tr[:n] {
		sum += v
	}
	prev := sum / float64(n)
	out[n-1] = valid(prev)
	for i := n; i < len(tr); i++ {
		prev = (prev*float64(n-1) + tr[i]) / float64(n)
		out[i] = valid(prev)
	}
	return out
}

// RollingMax es el máximo de los últimos n valores.
func RollingMax(xs []float64, n int) []Value {
	out := make([]Value, len(xs))
	if n <= 0 {
		return out
	}
	for i := n - 1; i < len(xs); i++ {
		m := xs[i-n+1]
		for _, x := range xs[i-n+2 : i+1] {
			m = max(m, x)
		}
		out[i] = valid(m)
	}
	return out
}

// ROC es el rate of change a n barras: xs[i]/xs[i-n] - 1.
func ROC(xs []float64, n int) []Value {
	out := make([]Value, len(xs))
	if n <= 0 {
		return out
	}
	for i := n; i < len(xs); i++ {
		if xs[i-n] == 0 {
			continue
		}
		out[i] = valid(xs[i]/xs[i-n] - 1)
	}
	return out
}

