package signal

import (
	"time"

	"github.com/alejandrodnm/swingbot/internal/indicator"
)

// Params configura el setup de pullback y el trigger de entrada.
type Params struct {
	PullbackRSI      float64 // sobrevendido si RSI < esto
	PullbackLookback int     // días de trading de la ventana, T incluido
	EntryRSI         float64 // el trigger exige RSI >= esto
	SetupExpiryDays  int     // días que el setup sigue armado tras su último día activo
}

// DefaultParams devuelve los umbrales estándar.
func DefaultParams() Params {
	return Params{PullbackRSI: 35, PullbackLookback: 5, EntryRSI: 45, SetupExpiryDays: 10}
}

// State es el estado de señales de un símbolo en uno de sus días de trading.
type State struct {
	Date           time.Time
	TrendEligible  bool
	Oversold       bool // RSI < PullbackRSI ese día
	PullbackActive bool
	SetupArmed     bool // pullback activo hoy o dentro de la ventana de expiración
	EntryTrigger   bool
	RegimeOn       bool
	ROC            indicator.Value
}

// Evaluate recorre los frames de un símbolo en orden y devuelve un State por
// frame.
//
// pullbackActive[T] vale si el RSI estuvo bajo PullbackRSI en alguna de las
// últimas PullbackLookback barras y adj_close[T] < EMA[T]. Como el trigger
// exige adj_close > EMA, dispara en una barra posterior mientras el setup siga
// armado: como mucho SetupExpiryDays barras tras el último día activo. El
// trigger consume el setup.
func Evaluate(frames []indicator.Frame, regime RegimeSeries, p Params) []State {
	out := make([]State, len(frames))
	window := newFlagWindow(p.PullbackLookback)
	lastActive := -1

	for i, f := range frames {
		s := State{
			Date:          f.Date,
			TrendEligible: TrendEligible(f),
			RegimeOn:      regime.At(f.Date).On,
			ROC:           f.ROC,
		}

		s.Oversold = f.RSI.Valid && f.RSI.V < p.PullbackRSI
		window.Push(s.Oversold)
		s.PullbackActive = window.Any() && f.EMA.Valid && f.AdjClose < f.EMA.V
		if s.PullbackActive {
			lastActive = i
		}
		s.SetupArmed = lastActive >= 0 && i-lastActive <= p.SetupExpiryDays

		s.EntryTrigger = s.SetupArmed &&
			f.RSI.Valid && f.RSI.V >= p.EntryRSI &&
			f.EMA.Valid && f.AdjClose > f.EMA.V &&
			s.RegimeOn &&
			s.TrendEligible
		if s.EntryTrigger {
			lastActive = -1
		}
		out[i] = s
	}
	return out
}

// TrendEligible es adj_close > SMASlow y SMAFast > SMASlow; false mientras
// alguno esté indefinido.
func TrendEligible(f indicator.Frame) bool {
	if !f.SMASlow.Valid || !f.SMAFast.Valid {
		return false
	}
	return f.AdjClose > f.SMASlow.V && f.SMAFast.V > f.SMASlow.V
}
