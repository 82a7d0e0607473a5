package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DateLayout es el formato de fecha usado en logs, storage y reportes.
const DateLayout = "2006-01-02"

// PriceBar es una barra diaria OHLCV de un símbolo.
// AdjClose alimenta indicadores y retornos; Open/High/Low/Close son precios
// crudos de ejecución.
type PriceBar struct {
	Symbol   string
	Date     time.Time // medianoche UTC del día de trading
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose float64
	Volume   int64
}

// AdjRatio devuelve el factor de ajuste adj_close/close (1 si close es 0).
func (b PriceBar) AdjRatio() float64 {
	if b.Close == 0 {
		return 1
	}
	return b.AdjClose / b.Close
}

// AdjHigh devuelve el high ajustado por splits y dividendos.
func (b PriceBar) AdjHigh() float64 { return b.High * b.AdjRatio() }

// AdjLow devuelve el low ajustado por splits y dividendos.
func (b PriceBar) AdjLow() float64 { return b.Low * b.AdjRatio() }

// Day trunca t a medianoche UTC de su fecha de calendario.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parsea una fecha YYYY-MM-DD como día UTC.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("domain.ParseDay: %q: %w", s, err)
	}
	return t, nil
}

// NormalizeSymbol recorta espacios y pasa el ticker a mayúsculas.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidateSeries revisa la serie ordenada de un símbolo. Devuelve un
// *DataFault con la primera barra inválida.
func ValidateSeries(symbol string, bars []PriceBar) error {
	if len(bars) == 0 {
		return &DataFault{Symbol: symbol, Reason: "empty series"}
	}
	for i, b := range bars {
		if NormalizeSymbol(b.Symbol) != symbol {
			return &DataFault{Symbol: symbol, Date: b.Date, Reason: fmt.Sprintf("bar belongs to %q", b.Symbol)}
		}
		if i > 0 {
			prev := bars[i-1].Date
			switch {
			case b.Date.Equal(prev):
				return &DataFault{Symbol: symbol, Date: b.Date, Reason: "duplicate date"}
			case b.Date.Before(prev):
				return &DataFault{Symbol: symbol, Date: b.Date, Reason: "dates out of order"}
			}
		}
		if !allFinite(b.Open, b.High, b.Low, b.Close, b.AdjClose) {
			return &DataFault{Symbol: symbol, Date: b.Date, Reason: "non-finite price"}
		}
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 || b.AdjClose <= 0 {
			return &DataFault{Symbol: symbol, Date: b.Date, Reason: "non-positive price"}
		}
		if b.Volume < 0 {
			return &DataFault{Symbol: symbol, Date: b.Date, Reason: "negative volume"}
		}
		if b.High < max(b.Open, b.Close, b.Low) || b.Low > min(b.Open, b.Close, b.High) {
			return &DataFault{Symbol: symbol, Date: b.Date, Reason: "high/low inconsistent with open/close"}
		}
	}
	return nil
}

func allFinite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
