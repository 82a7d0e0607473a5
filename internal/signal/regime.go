// Package signal deriva el régimen de mercado y el estado de tendencia,
// pullback y trigger de entrada de cada símbolo a partir de sus frames.
package signal

import (
	"slices"
	"time"

	"github.com/alejandrodnm/swingbot/internal/indicator"
)

// Regime es el estado del benchmark en una fecha. Known es false durante el
// warm-up de la SMA; un régimen desconocido bloquea entradas igual que OFF.
type Regime struct {
	Known bool
	On    bool
}

// RegimeSeries asocia fechas del benchmark con su régimen. ClassifyRegime la
// construye entera y no se muta después.
type RegimeSeries struct {
	dates   []time.Time
	regimes []Regime
}

// ClassifyRegime calcula regimeOn = adj_close > SMASlow para cada frame del
// benchmark. Los frames deben venir calculados con SMASlow = ventana de régimen.
func ClassifyRegime(bench []indicator.Frame) RegimeSeries {
	rs := RegimeSeries{
		dates:   make([]time.Time, len(bench)),
		regimes: make([]Regime, len(bench)),
	}
	for i, f := range bench {
		rs.dates[i] = f.Date
		r := Regime{Known: f.SMASlow.Valid}
		if r.Known {
			r.On = f.AdjClose > f.SMASlow.V
		}
		rs.regimes[i] = r
	}
	return rs
}

// At devuelve el régimen de date. Fuera del calendario del benchmark es
// desconocido.
func (rs RegimeSeries) At(date time.Time) Regime {
	i, ok := slices.BinarySearchFunc(rs.dates, date, time.Time.Compare)
	if !ok {
		return Regime{}
	}
	return rs.regimes[i]
}

// Dates devuelve el calendario del benchmark en orden.
func (rs RegimeSeries) Dates() []time.Time {
	return rs.dates
}

// Len devuelve el número de fechas clasificadas.
func (rs RegimeSeries) Len() int { return len(rs.dates) }
