package backtest

import (
	"github.com/alejandrodnm/swingbot/internal/domain"
	"github.com/alejandrodnm/swingbot/internal/indicator"
)

// ExitRules configura el evaluador de salidas.
type ExitRules struct {
	HardStopPct         float64
	HardStopOnEntryDay  bool
	TimeStopDays        int
	ProfitTargetPct     float64
	ProfitTargetEnabled bool
}

// ExitDecision es una salida que disparó para una posición abierta. Price es
// el fill nominal antes de slippage.
type ExitDecision struct {
	Symbol string
	Reason domain.ExitReason
	Price  float64
}

// StopLevel devuelve el precio del hard stop de una posición.
func (r ExitRules) StopLevel(p domain.Position) float64 {
	return p.EntryPrice * (1 - r.HardStopPct)
}

// EvaluateExit revisa las reglas en orden de precedencia y devuelve la
// primera que dispara en el frame f:
//
//  1. hard stop: low <= stop, fill al nivel del stop incluso con gap
//  2. trend break: adj_close < EMA, fill al close
//  3. time stop: DaysHeld >= TimeStopDays, fill al close
//  4. profit target (opcional): close >= entry * (1 + pct), fill al close
//
// El mismo día de entrada no dispara nada salvo con HardStopOnEntryDay, y
// entonces solo el hard stop.
func (r ExitRules) EvaluateExit(p domain.Position, f indicator.Frame) (ExitDecision, bool) {
	entryDay := !f.Date.After(p.EntryDate)
	if entryDay && !r.HardStopOnEntryDay {
		return ExitDecision{}, false
	}

	if stop := r.StopLevel(p); f.Low <= stop {
		return ExitDecision{Symbol: p.Symbol, Reason: domain.ExitHardStop, Price: stop}, true
	}
	if entryDay {
		return ExitDecision{}, false
	}
	if f.EMA.Valid && f.AdjClose < f.EMA.V {
		return ExitDecision{Symbol: p.Symbol, Reason: domain.ExitTrendBreak, Price: f.Close}, true
	}
	if p.DaysHeld >= r.TimeStopDays {
		return ExitDecision{Symbol: p.Symbol, Reason: domain.ExitTimeStop, Price: f.Close}, true
	}
	if r.ProfitTargetEnabled && f.Close >= p.EntryPrice*(1+r.ProfitTargetPct) {
		return ExitDecision{Symbol: p.Symbol, Reason: domain.ExitProfitTarget, Price: f.Close}, true
	}
	return ExitDecision{}, false
}
